package marshal

import (
	"bufio"
	"io"

	"github.com/cockroachdb/errors"

	"github.com/lk2023060901/rmarshal-go/pkg/util/merr"
)

// readChunk 为从 io.Reader 读取长数据时单次扩容的上限，
// 避免按数据中声明的长度一次性分配内存。
const readChunk = 64 << 10

// source 是顺序读取的字节游标。
// ReadExact 返回的切片在下一次读取前有效，调用方需要自行复制才能长期持有。
type source interface {
	ReadByte() (byte, error)
	ReadExact(n int) ([]byte, error)
	// Offset 返回已消费的字节数。
	Offset() int64
	// Remaining 返回剩余字节数，未知时返回 -1。
	Remaining() int
}

func errShortData() error {
	return merr.WrapErrMarshalMalformed("marshal data too short")
}

// bytesSource 在内存切片上读取，所有读取都做边界检查。
type bytesSource struct {
	data []byte
	pos  int
}

func newBytesSource(data []byte) *bytesSource {
	return &bytesSource{data: data}
}

func (s *bytesSource) ReadByte() (byte, error) {
	if s.pos >= len(s.data) {
		return 0, errShortData()
	}
	b := s.data[s.pos]
	s.pos++
	return b, nil
}

func (s *bytesSource) ReadExact(n int) ([]byte, error) {
	if n < 0 || n > len(s.data)-s.pos {
		return nil, errShortData()
	}
	p := s.data[s.pos : s.pos+n : s.pos+n]
	s.pos += n
	return p, nil
}

func (s *bytesSource) Offset() int64 {
	return int64(s.pos)
}

func (s *bytesSource) Remaining() int {
	return len(s.data) - s.pos
}

// readerSource 在 io.Reader 上读取，内部使用 bufio 缓冲。
type readerSource struct {
	r       *bufio.Reader
	scratch []byte
	offset  int64
}

func newReaderSource(r io.Reader) *readerSource {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &readerSource{r: br}
}

func (s *readerSource) ReadByte() (byte, error) {
	b, err := s.r.ReadByte()
	if err != nil {
		return 0, wrapReadErr(err)
	}
	s.offset++
	return b, nil
}

func (s *readerSource) ReadExact(n int) ([]byte, error) {
	if n < 0 {
		return nil, errShortData()
	}
	if n <= readChunk {
		if cap(s.scratch) < n {
			s.scratch = make([]byte, n)
		}
		p := s.scratch[:n]
		read, err := io.ReadFull(s.r, p)
		s.offset += int64(read)
		if err != nil {
			return nil, wrapReadErr(err)
		}
		return p, nil
	}

	// 大块数据按实际到达的字节逐步扩容。
	p := make([]byte, 0, readChunk)
	for len(p) < n {
		step := min(n-len(p), readChunk)
		if cap(p)-len(p) < step {
			grown := make([]byte, len(p), min(n, 2*cap(p)+step))
			copy(grown, p)
			p = grown
		}
		read, err := io.ReadFull(s.r, p[len(p):len(p)+step])
		s.offset += int64(read)
		if err != nil {
			return nil, wrapReadErr(err)
		}
		p = p[:len(p)+step]
	}
	return p, nil
}

func (s *readerSource) Offset() int64 {
	return s.offset
}

func (s *readerSource) Remaining() int {
	return -1
}

func wrapReadErr(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return errShortData()
	}
	return merr.WrapErrIoFailed("marshal source", err)
}
