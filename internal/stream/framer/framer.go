package framer

import (
	"encoding/binary"
	"io"

	"github.com/lk2023060901/rmarshal-go/internal/pool/bytebuffer"
	"github.com/lk2023060901/rmarshal-go/pkg/util/merr"
)

// HeaderSize 为帧头的定长字节数：
//
//	seq(uint64) | flags(uint64) | timestamp(int64) | size(uint32)
const HeaderSize = 28

const (
	// FlagCompressed 表示负载经过压缩。
	FlagCompressed uint64 = 1 << iota
	// FlagEncrypted 表示负载经过加密。
	FlagEncrypted
)

const defaultMaxFrameSize uint32 = 16 * 1024 * 1024 // 16MB

// Header 是帧头，所有字段以大端序写出。
type Header struct {
	Seq       uint64
	Flags     uint64
	Timestamp int64
	// Size 为负载长度，由 WriteFrame 自动填写。
	Size uint32
}

// AppendBinary 追加帧头的二进制形式。
func (h *Header) AppendBinary(dst []byte) []byte {
	dst = binary.BigEndian.AppendUint64(dst, h.Seq)
	dst = binary.BigEndian.AppendUint64(dst, h.Flags)
	dst = binary.BigEndian.AppendUint64(dst, uint64(h.Timestamp))
	return binary.BigEndian.AppendUint32(dst, h.Size)
}

// UnmarshalBinary 从 data 中解析帧头。
func (h *Header) UnmarshalBinary(data []byte) error {
	if len(data) < HeaderSize {
		return merr.WrapErrStreamFrame("header too short")
	}
	h.Seq = binary.BigEndian.Uint64(data[0:8])
	h.Flags = binary.BigEndian.Uint64(data[8:16])
	h.Timestamp = int64(binary.BigEndian.Uint64(data[16:24]))
	h.Size = binary.BigEndian.Uint32(data[24:28])
	return nil
}

// Frame 是一帧完整数据。
type Frame struct {
	Header  Header
	Payload []byte
}

// Framer 抽象了帧的打包与解包。
//
// 一帧数据的格式为：4 字节大端长度（帧头加负载）+ 帧头 + 负载。
type Framer interface {
	WriteFrame(w io.Writer, f *Frame) error
	ReadFrame(r io.Reader) (*Frame, error)
}

// LengthPrefixedFramer 使用长度前缀作为帧边界，适用于基于流的连接。
type LengthPrefixedFramer struct {
	// MaxFrameSize 为允许的最大负载长度，为 0 时使用 16MB。
	MaxFrameSize uint32
}

var _ Framer = (*LengthPrefixedFramer)(nil)

// NewLengthPrefixedFramer 创建一个长度前缀帧编码器，maxFrameSize 为 0 时使用默认值。
func NewLengthPrefixedFramer(maxFrameSize uint32) *LengthPrefixedFramer {
	if maxFrameSize == 0 {
		maxFrameSize = defaultMaxFrameSize
	}
	return &LengthPrefixedFramer{MaxFrameSize: maxFrameSize}
}

// WriteFrame 将帧编码后一次性写入 w。
func (f *LengthPrefixedFramer) WriteFrame(w io.Writer, frame *Frame) error {
	if frame == nil {
		return merr.WrapErrParameterMissing("frame")
	}
	if len(frame.Payload) > int(f.effectiveMaxSize()) {
		return merr.WrapErrStreamTooLarge(len(frame.Payload), int(f.effectiveMaxSize()))
	}
	frame.Header.Size = uint32(len(frame.Payload))

	buf := bytebuffer.Get()
	defer bytebuffer.Put(buf)

	buf.B = binary.BigEndian.AppendUint32(buf.B, uint32(HeaderSize+len(frame.Payload)))
	buf.B = frame.Header.AppendBinary(buf.B)
	buf.B = append(buf.B, frame.Payload...)

	if _, err := w.Write(buf.B); err != nil {
		return merr.WrapErrIoFailed("stream frame", err)
	}
	return nil
}

// ReadFrame 从流中读取一帧。流在帧边界处结束时返回 io.EOF。
func (f *LengthPrefixedFramer) ReadFrame(r io.Reader) (*Frame, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, merr.WrapErrIoUnexpectEOF("stream frame prefix", err)
	}

	length := binary.BigEndian.Uint32(prefix[:])
	if length < HeaderSize {
		return nil, merr.WrapErrStreamFrame("frame shorter than header")
	}
	if length-HeaderSize > f.effectiveMaxSize() {
		return nil, merr.WrapErrStreamTooLarge(int(length-HeaderSize), int(f.effectiveMaxSize()))
	}

	// 使用 ByteBuffer 池降低频繁 make 带来的分配与 GC 压力。
	buf := bytebuffer.Get()
	defer bytebuffer.Put(buf)
	if cap(buf.B) < int(length) {
		buf.B = make([]byte, int(length))
	} else {
		buf.B = buf.B[:int(length)]
	}
	if _, err := io.ReadFull(r, buf.B); err != nil {
		return nil, merr.WrapErrIoUnexpectEOF("stream frame body", err)
	}

	frame := &Frame{}
	if err := frame.Header.UnmarshalBinary(buf.B); err != nil {
		return nil, err
	}
	if int(frame.Header.Size) != int(length)-HeaderSize {
		return nil, merr.WrapErrStreamFrame("payload size mismatch")
	}
	frame.Payload = append([]byte(nil), buf.B[HeaderSize:]...)
	return frame, nil
}

func (f *LengthPrefixedFramer) effectiveMaxSize() uint32 {
	if f == nil || f.MaxFrameSize == 0 {
		return defaultMaxFrameSize
	}
	return f.MaxFrameSize
}
