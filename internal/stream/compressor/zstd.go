package compressor

import (
	"github.com/klauspost/compress/zstd"

	"github.com/lk2023060901/rmarshal-go/pkg/util/hardware"
	"github.com/lk2023060901/rmarshal-go/pkg/util/merr"
)

// ZstdCompressor 基于 klauspost/compress/zstd 的压缩实现，持有独立的 encoder 与 decoder。
type ZstdCompressor struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
	// maxDecodedSize 限制单次解压的输出大小。
	maxDecodedSize uint64
}

var _ Compressor = (*ZstdCompressor)(nil)

// NewZstdCompressor 创建一个 ZstdCompressor。
//
// concurrency <= 0 时使用 CPU 核数；maxDecodedSize 为 0 时不额外限制解压大小。
func NewZstdCompressor(concurrency int, maxDecodedSize uint64) (*ZstdCompressor, error) {
	if concurrency <= 0 {
		concurrency = hardware.GetCPUNum()
	}

	enc, err := zstd.NewWriter(nil,
		zstd.WithZeroFrames(true),
		zstd.WithEncoderConcurrency(concurrency),
	)
	if err != nil {
		return nil, err
	}
	decOpts := []zstd.DOption{zstd.WithDecoderConcurrency(concurrency)}
	if maxDecodedSize > 0 {
		decOpts = append(decOpts, zstd.WithDecoderMaxMemory(maxDecodedSize))
	}
	dec, err := zstd.NewReader(nil, decOpts...)
	if err != nil {
		enc.Close()
		return nil, err
	}
	return &ZstdCompressor{enc: enc, dec: dec, maxDecodedSize: maxDecodedSize}, nil
}

func (c *ZstdCompressor) Compress(dst, src []byte) ([]byte, error) {
	if c == nil || c.enc == nil {
		return nil, merr.WrapErrServiceInternal("zstd encoder closed")
	}
	return c.enc.EncodeAll(src, dst[:0]), nil
}

func (c *ZstdCompressor) Decompress(dst, src []byte) ([]byte, error) {
	if c == nil || c.dec == nil {
		return nil, merr.WrapErrServiceInternal("zstd decoder closed")
	}
	out, err := c.dec.DecodeAll(src, dst[:0])
	if err != nil {
		return nil, merr.WrapErrStreamFrame("zstd decompress failed", err.Error())
	}
	return out, nil
}

// Close 释放 encoder 与 decoder，关闭后的实例不可再使用。
func (c *ZstdCompressor) Close() {
	if c == nil {
		return
	}
	if c.enc != nil {
		_ = c.enc.Close()
		c.enc = nil
	}
	if c.dec != nil {
		c.dec.Close()
		c.dec = nil
	}
}
