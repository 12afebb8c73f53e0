package compressor

import (
	"github.com/lk2023060901/rmarshal-go/pkg/util/merr"
)

// Compressor 抽象了单次压缩与解压。
//
// dst 可以传入一个可复用的缓冲区（长度可为 0），实现可选择复用其底层容量。
type Compressor interface {
	Compress(dst, src []byte) (packet []byte, err error)
	Decompress(dst, src []byte) (plain []byte, err error)
}

// NopCompressor 不做任何处理，直接返回输入内容。
type NopCompressor struct{}

func (NopCompressor) Compress(_ []byte, src []byte) ([]byte, error) {
	return src, nil
}

func (NopCompressor) Decompress(_ []byte, src []byte) ([]byte, error) {
	return src, nil
}

var _ Compressor = NopCompressor{}

// 支持的压缩算法名。
const (
	NameNone   = "none"
	NameZstd   = "zstd"
	NameSnappy = "snappy"
	NameLZ4    = "lz4"
)

// New 按名称创建 Compressor，maxDecodedSize 为 0 时不限制解压大小。
func New(name string, maxDecodedSize int) (Compressor, error) {
	switch name {
	case "", NameNone:
		return NopCompressor{}, nil
	case NameZstd:
		c, err := NewZstdCompressor(0, uint64(max(maxDecodedSize, 0)))
		if err != nil {
			return nil, err
		}
		return c, nil
	case NameSnappy:
		return NewSnappyCompressor(maxDecodedSize), nil
	case NameLZ4:
		return NewLZ4Compressor(maxDecodedSize), nil
	default:
		return nil, merr.WrapErrParameterInvalidMsg("unknown compressor %q", name)
	}
}
