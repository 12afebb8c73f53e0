package marshal

import (
	"fmt"
	"math"

	"github.com/lk2023060901/rmarshal-go/pkg/util/merr"
)

// appendLong 以变长格式追加 v：
//
//	0                 -> 0x00
//	1..122            -> v+5
//	-123..-1          -> v-5
//	其余              -> 长度字节（正数 n，负数 -n）后跟 n 个小端字节
//
// v 必须在 32 位有符号整数范围内。
func appendLong(dst []byte, v int64) ([]byte, error) {
	if v < math.MinInt32 || v > math.MaxInt32 {
		return dst, merr.WrapErrMarshalUnsupported("long", fmt.Sprintf("%d exceeds 32-bit range", v))
	}
	switch {
	case v == 0:
		return append(dst, 0), nil
	case 0 < v && v < 123:
		return append(dst, byte(v+5)), nil
	case -124 < v && v < 0:
		return append(dst, byte((v-5)&0xff)), nil
	}

	var buf [5]byte
	n := 0
	for i := 1; i < len(buf); i++ {
		buf[i] = byte(v & 0xff)
		v >>= 8
		if v == 0 {
			buf[0] = byte(i)
			n = i + 1
			break
		}
		if v == -1 {
			buf[0] = byte(-i)
			n = i + 1
			break
		}
	}
	return append(dst, buf[:n]...), nil
}

// readLong 读取 appendLong 写出的变长整数。
func readLong(src source) (int64, error) {
	b, err := src.ReadByte()
	if err != nil {
		return 0, err
	}
	c := int64(int8(b))
	switch {
	case c == 0:
		return 0, nil
	case c > 4:
		return c - 5, nil
	case c < -4:
		return c + 5, nil
	}

	if c > 0 {
		data, err := src.ReadExact(int(c))
		if err != nil {
			return 0, err
		}
		var x int64
		for i := range data {
			x |= int64(data[i]) << (8 * i)
		}
		return x, nil
	}

	data, err := src.ReadExact(int(-c))
	if err != nil {
		return 0, err
	}
	x := int64(-1)
	for i := range data {
		x &= ^(int64(0xff) << (8 * i))
		x |= int64(data[i]) << (8 * i)
	}
	return x, nil
}
