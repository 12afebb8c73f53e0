package marshal

import (
	"github.com/lk2023060901/rmarshal-go/internal/pool/bytebuffer"
)

// sink 是只追加的输出缓冲，底层缓冲区来自 bytebuffer 池，会话结束时归还。
type sink struct {
	buf *bytebuffer.ByteBuffer
}

func newSink() *sink {
	return &sink{buf: bytebuffer.Get()}
}

func (s *sink) writeByte(b byte) {
	s.buf.B = append(s.buf.B, b)
}

func (s *sink) write(p []byte) {
	s.buf.B = append(s.buf.B, p...)
}

func (s *sink) writeLong(v int64) error {
	b, err := appendLong(s.buf.B, v)
	if err != nil {
		return err
	}
	s.buf.B = b
	return nil
}

// writeBytes 写出长度前缀加原始字节。
func (s *sink) writeBytes(p []byte) error {
	if err := s.writeLong(int64(len(p))); err != nil {
		return err
	}
	s.write(p)
	return nil
}

func (s *sink) bytes() []byte {
	return s.buf.B
}

func (s *sink) len() int {
	return len(s.buf.B)
}

func (s *sink) release() {
	bytebuffer.Put(s.buf)
	s.buf = nil
}
