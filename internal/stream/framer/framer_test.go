package framer

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/rmarshal-go/pkg/util/merr"
)

func TestFrameRoundTrip(t *testing.T) {
	f := NewLengthPrefixedFramer(0)
	var buf bytes.Buffer

	in := &Frame{Header: Header{Seq: 7, Flags: FlagCompressed, Timestamp: -1}, Payload: []byte("payload")}
	require.NoError(t, f.WriteFrame(&buf, in))
	require.NoError(t, f.WriteFrame(&buf, &Frame{Header: Header{Seq: 8}}))

	assert.Equal(t, uint32(HeaderSize+7), binary.BigEndian.Uint32(buf.Bytes()[:4]))

	out, err := f.ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, Header{Seq: 7, Flags: FlagCompressed, Timestamp: -1, Size: 7}, out.Header)
	assert.Equal(t, []byte("payload"), out.Payload)

	out, err = f.ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, uint64(8), out.Header.Seq)
	assert.Empty(t, out.Payload)

	_, err = f.ReadFrame(&buf)
	assert.ErrorIs(t, err, io.EOF)
}

func TestFrameLimits(t *testing.T) {
	f := NewLengthPrefixedFramer(4)
	err := f.WriteFrame(io.Discard, &Frame{Payload: []byte("12345")})
	assert.ErrorIs(t, err, merr.ErrStreamTooLarge)

	var buf bytes.Buffer
	require.NoError(t, NewLengthPrefixedFramer(0).WriteFrame(&buf, &Frame{Payload: []byte("12345")}))
	_, err = f.ReadFrame(bytes.NewReader(buf.Bytes()))
	assert.ErrorIs(t, err, merr.ErrStreamTooLarge)

	_, err = f.ReadFrame(bytes.NewReader([]byte{0, 0, 0, 3, 1, 2, 3}))
	assert.ErrorIs(t, err, merr.ErrStreamFrame)

	_, err = NewLengthPrefixedFramer(0).ReadFrame(bytes.NewReader(buf.Bytes()[:10]))
	assert.ErrorIs(t, err, merr.ErrIoUnexpectEOF)

	assert.ErrorIs(t, f.WriteFrame(io.Discard, nil), merr.ErrParameterMissing)
}

func TestFrameSizeMismatch(t *testing.T) {
	h := Header{Size: 9}
	data := binary.BigEndian.AppendUint32(nil, HeaderSize+1)
	data = h.AppendBinary(data)
	data = append(data, 'x')

	_, err := NewLengthPrefixedFramer(0).ReadFrame(bytes.NewReader(data))
	assert.ErrorIs(t, err, merr.ErrStreamFrame)
}
