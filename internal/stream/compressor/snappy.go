package compressor

import (
	"github.com/golang/snappy"

	"github.com/lk2023060901/rmarshal-go/pkg/util/merr"
)

// SnappyCompressor 基于 github.com/golang/snappy 的块格式，无状态，可并发使用。
type SnappyCompressor struct {
	maxDecodedSize int
}

var _ Compressor = (*SnappyCompressor)(nil)

// NewSnappyCompressor 创建一个 SnappyCompressor，maxDecodedSize 为 0 时不限制解压大小。
func NewSnappyCompressor(maxDecodedSize int) *SnappyCompressor {
	return &SnappyCompressor{maxDecodedSize: maxDecodedSize}
}

func (c *SnappyCompressor) Compress(dst, src []byte) ([]byte, error) {
	return snappy.Encode(dst[:cap(dst)], src), nil
}

func (c *SnappyCompressor) Decompress(dst, src []byte) ([]byte, error) {
	n, err := snappy.DecodedLen(src)
	if err != nil {
		return nil, merr.WrapErrStreamFrame("snappy decompress failed", err.Error())
	}
	if c.maxDecodedSize > 0 && n > c.maxDecodedSize {
		return nil, merr.WrapErrStreamTooLarge(n, c.maxDecodedSize, "snappy decoded size")
	}
	out, err := snappy.Decode(dst[:cap(dst)], src)
	if err != nil {
		return nil, merr.WrapErrStreamFrame("snappy decompress failed", err.Error())
	}
	return out, nil
}
