package stream

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/lk2023060901/rmarshal-go/internal/stream/compressor"
	"github.com/lk2023060901/rmarshal-go/internal/stream/crypto"
	"github.com/lk2023060901/rmarshal-go/internal/stream/framer"
	"github.com/lk2023060901/rmarshal-go/pkg/marshal"
	"github.com/lk2023060901/rmarshal-go/pkg/util/merr"
)

type CodecSuite struct {
	suite.Suite

	zstd *compressor.ZstdCompressor
	aead *crypto.AEADHMACCodec
}

func (s *CodecSuite) SetupSuite() {
	var err error
	s.zstd, err = compressor.NewZstdCompressor(2, 0)
	s.Require().NoError(err)
	s.aead, err = crypto.NewAESGCMHMACCodec(bytes.Repeat([]byte{7}, 32), []byte("stream-mac"))
	s.Require().NoError(err)
}

func (s *CodecSuite) TearDownSuite() {
	s.zstd.Close()
}

func (s *CodecSuite) newCodec(compress, encrypt bool) Codec {
	c, err := New(Options{
		Compressor:        s.zstd,
		Encryptor:         s.aead,
		EnableCompression: compress,
		EnableEncryption:  encrypt,
	})
	s.Require().NoError(err)
	return c
}

func (s *CodecSuite) TestPipeline() {
	value := []marshal.Value{"hello", marshal.Symbol("world"), 42, bytes.Repeat([]byte("z"), 512)}
	for _, mode := range []struct{ compress, encrypt bool }{
		{false, false}, {true, false}, {false, true}, {true, true},
	} {
		c := s.newCodec(mode.compress, mode.encrypt)
		var buf bytes.Buffer
		header := &framer.Header{Seq: 1, Timestamp: time.Now().UnixMilli()}
		s.Require().NoError(c.Encode(&buf, header, value))
		s.Equal(mode.compress, header.Flags&framer.FlagCompressed != 0)
		s.Equal(mode.encrypt, header.Flags&framer.FlagEncrypted != 0)

		got, v, err := c.Decode(&buf)
		s.Require().NoError(err)
		s.Equal(header.Seq, got.Seq)
		s.Equal(header.Flags, got.Flags)
		s.True(marshal.Equal(value, v))

		_, _, err = c.Decode(&buf)
		s.ErrorIs(err, io.EOF)
	}
}

func (s *CodecSuite) TestCompressors() {
	value := marshal.NewArray(marshal.NewString("frame"), bytes.Repeat([]byte("y"), 2048))
	for _, name := range []string{compressor.NameSnappy, compressor.NameLZ4} {
		comp, err := compressor.New(name, 1<<20)
		s.Require().NoError(err)
		c, err := New(Options{
			Compressor:        comp,
			Encryptor:         s.aead,
			EnableCompression: true,
			EnableEncryption:  true,
		})
		s.Require().NoError(err)

		var buf bytes.Buffer
		s.Require().NoError(c.Encode(&buf, &framer.Header{Seq: 3}, value), name)
		s.Less(buf.Len(), 2048, name)

		_, v, err := c.Decode(&buf)
		s.Require().NoError(err, name)
		s.True(marshal.Equal(value, v), name)
	}
}

func (s *CodecSuite) TestDecodeRaw() {
	c := s.newCodec(true, false)
	var buf bytes.Buffer
	s.Require().NoError(c.Encode(&buf, &framer.Header{Seq: 9}, nil))

	header, data, err := c.DecodeRaw(&buf)
	s.Require().NoError(err)
	s.Equal(uint64(9), header.Seq)
	s.Equal([]byte{0x04, 0x08, 0x30}, data)
}

func (s *CodecSuite) TestMismatchedFlags() {
	var buf bytes.Buffer
	s.Require().NoError(s.newCodec(true, true).Encode(&buf, &framer.Header{}, 1))
	_, _, err := s.newCodec(true, false).Decode(&buf)
	s.ErrorIs(err, merr.ErrStreamFrame)

	buf.Reset()
	s.Require().NoError(s.newCodec(true, false).Encode(&buf, &framer.Header{}, 1))
	_, _, err = s.newCodec(false, false).Decode(&buf)
	s.ErrorIs(err, merr.ErrStreamFrame)
}

func (s *CodecSuite) TestTamperedHeader() {
	var buf bytes.Buffer
	s.Require().NoError(s.newCodec(false, true).Encode(&buf, &framer.Header{Seq: 1}, "x"))
	data := buf.Bytes()
	// seq 的最低字节位于长度前缀之后的第 8 个字节。
	data[4+7] ^= 0x01
	_, _, err := s.newCodec(false, true).Decode(bytes.NewReader(data))
	s.ErrorIs(err, merr.ErrStreamCrypto)
}

func (s *CodecSuite) TestMarshalError() {
	c := s.newCodec(false, false)
	var buf bytes.Buffer
	err := c.Encode(&buf, &framer.Header{}, make(chan int))
	s.ErrorIs(err, merr.ErrMarshalUnsupported)
	s.Zero(buf.Len())

	s.ErrorIs(c.Encode(&buf, nil, 1), merr.ErrParameterMissing)

	_, err = New(Options{EnableCompression: true})
	s.ErrorIs(err, merr.ErrParameterMissing)
}

func (s *CodecSuite) TestMarshalOptions() {
	c, err := New(Options{MarshalOptions: []marshal.Option{marshal.WithMaxDepth(1)}})
	s.Require().NoError(err)
	var buf bytes.Buffer
	s.ErrorIs(c.Encode(&buf, &framer.Header{}, []marshal.Value{1}), merr.ErrMarshalDepthExceeded)
}

func TestCodec(t *testing.T) {
	suite.Run(t, new(CodecSuite))
}
