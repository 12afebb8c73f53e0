// Package stream 在字节流上传输编码后的值：每个值编码后可选压缩、加密，再封装为长度前缀帧。
package stream

import (
	"encoding/binary"
	"io"

	"go.uber.org/zap"

	"github.com/lk2023060901/rmarshal-go/internal/stream/compressor"
	"github.com/lk2023060901/rmarshal-go/internal/stream/crypto"
	"github.com/lk2023060901/rmarshal-go/internal/stream/framer"
	"github.com/lk2023060901/rmarshal-go/pkg/log"
	"github.com/lk2023060901/rmarshal-go/pkg/marshal"
	"github.com/lk2023060901/rmarshal-go/pkg/metrics"
	"github.com/lk2023060901/rmarshal-go/pkg/util/merr"
)

// Codec 抽象了从值到帧、以及从帧回到值的完整流程。
//
// 写出：value --> marshal --> [compress?] --> [encrypt?] --> framer.WriteFrame
//
// 读入：framer.ReadFrame --> [decrypt?] --> [decompress?] --> unmarshal --> value
type Codec interface {
	// Encode 编码 v 并写入一帧。header 的 Flags 与 Size 由 Encode 填写。
	Encode(w io.Writer, header *framer.Header, v marshal.Value) error

	// Decode 读取一帧并解码为值。流在帧边界处结束时返回 io.EOF。
	Decode(r io.Reader) (*framer.Header, marshal.Value, error)

	// DecodeRaw 读取一帧，返回帧头与已解密、解压的编码字节。
	DecodeRaw(r io.Reader) (*framer.Header, []byte, error)
}

// Options 用于构造 Codec 的依赖注入参数。
type Options struct {
	Framer     framer.Framer         // 允许为 nil（使用默认大小的长度前缀帧）
	Compressor compressor.Compressor // 允许为 nil（使用 NopCompressor）
	Encryptor  crypto.Encryptor      // 允许为 nil（使用 NopEncryptor）

	EnableCompression bool
	EnableEncryption  bool

	// MarshalOptions 作用于每一帧内的编解码会话。
	MarshalOptions []marshal.Option
	Logger         *log.MLogger
}

type codec struct {
	log.Binder

	framer     framer.Framer
	compressor compressor.Compressor
	encryptor  crypto.Encryptor
	compress   bool
	encrypt    bool
	opts       []marshal.Option
}

var _ Codec = (*codec)(nil)

// New 创建一个基于给定依赖的 Codec。
func New(opts Options) (Codec, error) {
	if opts.EnableCompression && opts.Compressor == nil {
		return nil, merr.WrapErrParameterMissing("compressor", "compression enabled")
	}
	if opts.EnableEncryption && opts.Encryptor == nil {
		return nil, merr.WrapErrParameterMissing("encryptor", "encryption enabled")
	}

	c := &codec{
		framer:     opts.Framer,
		compressor: opts.Compressor,
		encryptor:  opts.Encryptor,
		compress:   opts.EnableCompression,
		encrypt:    opts.EnableEncryption,
		opts:       opts.MarshalOptions,
	}
	if c.framer == nil {
		c.framer = framer.NewLengthPrefixedFramer(0)
	}
	if c.compressor == nil {
		c.compressor = compressor.NopCompressor{}
	}
	if c.encryptor == nil {
		c.encryptor = crypto.NopEncryptor{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.With(log.FieldModule("stream"))
	}
	c.SetLogger(logger)
	return c, nil
}

func (c *codec) Encode(w io.Writer, header *framer.Header, v marshal.Value) (err error) {
	if header == nil {
		return merr.WrapErrParameterMissing("header")
	}
	defer func() { observeFrame(metrics.OutboundLabel, err) }()

	body, err := marshal.Marshal(v, c.opts...)
	if err != nil {
		return err
	}
	metrics.StreamFrameBytes.WithLabelValues(metrics.OutboundLabel, metrics.RawStageLabel).Observe(float64(len(body)))

	// 复用 header 时先清理上一次的标记位。
	header.Flags &^= framer.FlagCompressed | framer.FlagEncrypted

	if c.compress {
		if body, err = c.compressor.Compress(nil, body); err != nil {
			return err
		}
		header.Flags |= framer.FlagCompressed
	}
	if c.encrypt {
		header.Flags |= framer.FlagEncrypted
		if body, err = c.encryptor.Encrypt(body, buildAAD(header)); err != nil {
			return err
		}
	}

	frame := &framer.Frame{Header: *header, Payload: body}
	if err = c.framer.WriteFrame(w, frame); err != nil {
		return err
	}
	header.Size = frame.Header.Size
	metrics.StreamFrameBytes.WithLabelValues(metrics.OutboundLabel, metrics.WireStageLabel).Observe(float64(len(body)))
	return nil
}

func (c *codec) DecodeRaw(r io.Reader) (header *framer.Header, data []byte, err error) {
	defer func() {
		if err != io.EOF {
			observeFrame(metrics.InboundLabel, err)
		}
	}()

	frame, err := c.framer.ReadFrame(r)
	if err != nil {
		return nil, nil, err
	}
	header = &frame.Header
	data = frame.Payload
	metrics.StreamFrameBytes.WithLabelValues(metrics.InboundLabel, metrics.WireStageLabel).Observe(float64(len(data)))

	if header.Flags&framer.FlagEncrypted != 0 {
		if !c.encrypt {
			return nil, nil, merr.WrapErrStreamFrame("encrypted payload but encryption disabled")
		}
		if data, err = c.encryptor.Decrypt(data, buildAAD(header)); err != nil {
			return nil, nil, err
		}
	}
	if header.Flags&framer.FlagCompressed != 0 {
		if !c.compress {
			return nil, nil, merr.WrapErrStreamFrame("compressed payload but compression disabled")
		}
		if data, err = c.compressor.Decompress(nil, data); err != nil {
			return nil, nil, err
		}
	}
	metrics.StreamFrameBytes.WithLabelValues(metrics.InboundLabel, metrics.RawStageLabel).Observe(float64(len(data)))
	return header, data, nil
}

func (c *codec) Decode(r io.Reader) (*framer.Header, marshal.Value, error) {
	header, data, err := c.DecodeRaw(r)
	if err != nil {
		return nil, nil, err
	}
	v, err := marshal.Unmarshal(data, c.opts...)
	if err != nil {
		c.Logger().Warn("failed to unmarshal frame payload",
			zap.Uint64("seq", header.Seq),
			zap.Int("size", len(data)),
			zap.Error(err))
		return header, nil, err
	}
	return header, v, nil
}

func observeFrame(direction string, err error) {
	status := metrics.SuccessLabel
	if err != nil {
		status = metrics.FailLabel
	}
	metrics.StreamFrameTotal.WithLabelValues(direction, status).Inc()
}

// buildAAD 将帧头中需要完整性保护的字段编码为关联数据：
//
//	seq(uint64) | flags(uint64) | timestamp(int64)
//
// 不包含 size 字段，避免与负载最终长度产生循环依赖。
func buildAAD(h *framer.Header) []byte {
	var buf [24]byte
	binary.BigEndian.PutUint64(buf[0:8], h.Seq)
	binary.BigEndian.PutUint64(buf[8:16], h.Flags)
	binary.BigEndian.PutUint64(buf[16:24], uint64(h.Timestamp))
	return buf[:]
}
