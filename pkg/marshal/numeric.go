package marshal

import (
	"bytes"
	"math"
	"math/big"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/exp/constraints"

	"github.com/lk2023060901/rmarshal-go/pkg/util/merr"
)

// formatFloat 生成浮点数的文本形式：最短可往返的有效数字，
// 小数点位置超出 [-3, 有效位数] 时使用指数形式。
func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case f == 0:
		if math.Signbit(f) {
			return "-0"
		}
		return "0"
	}

	mant, exp, _ := strings.Cut(strconv.FormatFloat(math.Abs(f), 'e', -1, 64), "e")
	digits := strings.Replace(mant, ".", "", 1)
	e, _ := strconv.Atoi(exp)
	decpt := e + 1
	digs := len(digits)

	var b strings.Builder
	if f < 0 {
		b.WriteByte('-')
	}
	switch {
	case decpt < -3 || decpt > digs:
		b.WriteByte(digits[0])
		if digs > 1 {
			b.WriteByte('.')
			b.WriteString(digits[1:])
		}
		b.WriteByte('e')
		b.WriteString(strconv.Itoa(decpt - 1))
	case decpt > 0:
		b.WriteString(digits[:decpt])
		if decpt < digs {
			b.WriteByte('.')
			b.WriteString(digits[decpt:])
		}
	default:
		b.WriteString("0.")
		b.WriteString(strings.Repeat("0", -decpt))
		b.WriteString(digits)
	}
	return b.String()
}

// parseFloat 解析 formatFloat 的输出，NUL 之后的内容被忽略。
func parseFloat(data []byte) (float64, error) {
	if i := bytes.IndexByte(data, 0); i >= 0 {
		data = data[:i]
	}
	s := string(data)
	switch s {
	case "nan":
		return math.NaN(), nil
	case "inf":
		return math.Inf(1), nil
	case "-inf":
		return math.Inf(-1), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, merr.WrapErrMarshalMalformedf("invalid float %q", s)
	}
	return f, nil
}

// bignumBytes 返回大整数的符号字节与补齐到偶数长度的小端绝对值字节。
func bignumBytes(b *big.Int) (byte, []byte) {
	sign := byte('+')
	if b.Sign() < 0 {
		sign = '-'
	}
	mag := b.Bytes()
	slices.Reverse(mag)
	if len(mag)%2 != 0 {
		mag = append(mag, 0)
	}
	return sign, mag
}

// bignumFromBytes 由符号与小端绝对值字节还原整数，能放入 int64 时返回 int64。
func bignumFromBytes(sign byte, le []byte) Value {
	be := slices.Clone(le)
	slices.Reverse(be)
	b := new(big.Int).SetBytes(be)
	if sign == '-' {
		b.Neg(b)
	}
	if b.IsInt64() {
		return b.Int64()
	}
	return b
}

func inFixnumRange(v int64) bool {
	return fixnumMin <= v && v <= fixnumMax
}

// integerValue 把任意 Go 整数规整为 int64 或 *big.Int。
func integerValue[T constraints.Integer](v T) Value {
	if v < 0 || uint64(v) <= math.MaxInt64 {
		return int64(v)
	}
	return new(big.Int).SetUint64(uint64(v))
}

// asInteger 识别 Go 整数类型，返回规整后的值。
func asInteger(v Value) (Value, bool) {
	switch x := v.(type) {
	case int:
		return integerValue(x), true
	case int8:
		return integerValue(x), true
	case int16:
		return integerValue(x), true
	case int32:
		return integerValue(x), true
	case int64:
		return x, true
	case uint:
		return integerValue(x), true
	case uint8:
		return integerValue(x), true
	case uint16:
		return integerValue(x), true
	case uint32:
		return integerValue(x), true
	case uint64:
		return integerValue(x), true
	case uintptr:
		return integerValue(x), true
	}
	return nil, false
}
