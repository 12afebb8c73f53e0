package compressor

import (
	"encoding/binary"

	"github.com/pierrec/lz4/v4"

	"github.com/lk2023060901/rmarshal-go/pkg/util/merr"
)

const (
	lz4ModeRaw   byte = 0
	lz4ModeBlock byte = 1

	// lz4HeaderSize = mode(1) + 原始长度(4, 大端)
	lz4HeaderSize = 5
)

// LZ4Compressor 使用 LZ4 块格式。块格式不记录原始长度，因此在数据前附加
// 5 字节头：模式与原始长度。不可压缩的数据以原样写出。
type LZ4Compressor struct {
	maxDecodedSize int
}

var _ Compressor = (*LZ4Compressor)(nil)

// NewLZ4Compressor 创建一个 LZ4Compressor，maxDecodedSize 为 0 时不限制解压大小。
func NewLZ4Compressor(maxDecodedSize int) *LZ4Compressor {
	return &LZ4Compressor{maxDecodedSize: maxDecodedSize}
}

func (c *LZ4Compressor) Compress(dst, src []byte) ([]byte, error) {
	bound := lz4HeaderSize + lz4.CompressBlockBound(len(src))
	if cap(dst) < bound {
		dst = make([]byte, bound)
	}
	dst = dst[:bound]
	binary.BigEndian.PutUint32(dst[1:lz4HeaderSize], uint32(len(src)))

	written, err := lz4.CompressBlock(src, dst[lz4HeaderSize:], nil)
	if err != nil {
		return nil, merr.WrapErrStreamFrame("lz4 compress failed", err.Error())
	}
	if written == 0 || written >= len(src) {
		dst[0] = lz4ModeRaw
		return append(dst[:lz4HeaderSize], src...), nil
	}
	dst[0] = lz4ModeBlock
	return dst[:lz4HeaderSize+written], nil
}

func (c *LZ4Compressor) Decompress(dst, src []byte) ([]byte, error) {
	if len(src) < lz4HeaderSize {
		return nil, merr.WrapErrStreamFrame("lz4 packet too short")
	}
	size := int(binary.BigEndian.Uint32(src[1:lz4HeaderSize]))
	if c.maxDecodedSize > 0 && size > c.maxDecodedSize {
		return nil, merr.WrapErrStreamTooLarge(size, c.maxDecodedSize, "lz4 decoded size")
	}
	body := src[lz4HeaderSize:]

	switch src[0] {
	case lz4ModeRaw:
		if len(body) != size {
			return nil, merr.WrapErrStreamFrame("lz4 raw size mismatch")
		}
		return append(dst[:0], body...), nil
	case lz4ModeBlock:
		if cap(dst) < size {
			dst = make([]byte, size)
		}
		dst = dst[:size]
		read, err := lz4.UncompressBlock(body, dst)
		if err != nil {
			return nil, merr.WrapErrStreamFrame("lz4 decompress failed", err.Error())
		}
		if read != size {
			return nil, merr.WrapErrStreamFrame("lz4 decompress size mismatch")
		}
		return dst, nil
	default:
		return nil, merr.WrapErrStreamFrame("lz4 unknown mode")
	}
}
