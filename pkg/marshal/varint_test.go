package marshal

import (
	"math"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/lk2023060901/rmarshal-go/pkg/util/merr"
)

type VarIntSuite struct {
	suite.Suite
}

func (s *VarIntSuite) TestBoundaries() {
	cases := []struct {
		v    int64
		wire []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x06}},
		{2, []byte{0x07}},
		{121, []byte{0x7e}},
		{122, []byte{0x7f}},
		{123, []byte{0x01, 0x7b}},
		{124, []byte{0x01, 0x7c}},
		{255, []byte{0x01, 0xff}},
		{256, []byte{0x02, 0x00, 0x01}},
		{-1, []byte{0xfa}},
		{-2, []byte{0xf9}},
		{-122, []byte{0x81}},
		{-123, []byte{0x80}},
		{-124, []byte{0xff, 0x84}},
		{-125, []byte{0xff, 0x83}},
		{-256, []byte{0xff, 0x00}},
		{-257, []byte{0xfe, 0xff, 0xfe}},
		{1<<30 - 1, []byte{0x04, 0xff, 0xff, 0xff, 0x3f}},
		{-1 << 30, []byte{0xfc, 0x00, 0x00, 0x00, 0xc0}},
		{math.MaxInt32, []byte{0x04, 0xff, 0xff, 0xff, 0x7f}},
		{math.MinInt32, []byte{0xfc, 0x00, 0x00, 0x00, 0x80}},
	}
	for _, c := range cases {
		wire, err := appendLong(nil, c.v)
		s.Require().NoError(err)
		s.Equal(c.wire, wire, "encode %d", c.v)

		src := newBytesSource(wire)
		got, err := readLong(src)
		s.Require().NoError(err)
		s.Equal(c.v, got, "decode %x", c.wire)
		s.Equal(0, src.Remaining())
	}
}

func (s *VarIntSuite) TestOutOfRange() {
	_, err := appendLong(nil, math.MaxInt32+1)
	s.ErrorIs(err, merr.ErrMarshalUnsupported)
	_, err = appendLong(nil, math.MinInt32-1)
	s.ErrorIs(err, merr.ErrMarshalUnsupported)
}

func (s *VarIntSuite) TestTruncated() {
	_, err := readLong(newBytesSource(nil))
	s.ErrorIs(err, merr.ErrMarshalMalformed)
	_, err = readLong(newBytesSource([]byte{0x02, 0x01}))
	s.ErrorIs(err, merr.ErrMarshalMalformed)
	_, err = readLong(newBytesSource([]byte{0xfd, 0x01}))
	s.ErrorIs(err, merr.ErrMarshalMalformed)
}

func TestVarInt(t *testing.T) {
	suite.Run(t, new(VarIntSuite))
}
