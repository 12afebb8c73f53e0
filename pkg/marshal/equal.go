package marshal

import (
	"bytes"
	"math"
	"math/big"
	"reflect"
	"slices"

	"github.com/lk2023060901/rmarshal-go/pkg/util/typeutil"
)

type visit struct {
	a, b any
}

// Equal 按结构比较两个值，可以比较带环的值图。
//
// Go 原生的整数、字符串、字节切片、切片与映射先转换为解码时会得到的类型再比较，
// 因此 Equal(v, Unmarshal(Marshal(v))) 对受支持的值成立。冻结标记不参与比较。
func Equal(a, b Value) bool {
	return equalValue(a, b, typeutil.NewSet[visit](), DefaultMaxDepth)
}

func equalValue(a, b Value, seen typeutil.Set[visit], depth int) bool {
	if depth <= 0 {
		return false
	}
	a, b = normalize(a), normalize(b)

	if _, ok := identityOf(a); ok && (b == nil || reflect.TypeOf(b).Comparable()) {
		key := visit{a, b}
		if seen.Contain(key) {
			return true
		}
		seen.Insert(key)
	}
	depth--

	switch x := a.(type) {
	case nil:
		return b == nil
	case bool, int64, Symbol:
		return a == b
	case float64:
		y, ok := b.(float64)
		return ok && floatEqual(x, y)
	case *big.Int:
		y, ok := b.(*big.Int)
		return ok && x.Cmp(y) == 0
	case *String:
		y, ok := b.(*String)
		return ok && bytes.Equal(x.Data, y.Data) && x.Encoding == y.Encoding &&
			attrsEqual(&x.Attrs, &y.Attrs, seen, depth)
	case *Regexp:
		y, ok := b.(*Regexp)
		return ok && x.Source == y.Source && x.Options == y.Options && x.Encoding == y.Encoding &&
			attrsEqual(&x.Attrs, &y.Attrs, seen, depth)
	case *Array:
		y, ok := b.(*Array)
		if !ok || len(x.Elems) != len(y.Elems) || !attrsEqual(&x.Attrs, &y.Attrs, seen, depth) {
			return false
		}
		for i := range x.Elems {
			if !equalValue(x.Elems[i], y.Elems[i], seen, depth) {
				return false
			}
		}
		return true
	case *Hash:
		y, ok := b.(*Hash)
		if !ok || len(x.Entries) != len(y.Entries) || x.HasDefault != y.HasDefault ||
			x.CompareByIdentity != y.CompareByIdentity || !attrsEqual(&x.Attrs, &y.Attrs, seen, depth) {
			return false
		}
		for i := range x.Entries {
			if !equalValue(x.Entries[i].Key, y.Entries[i].Key, seen, depth) ||
				!equalValue(x.Entries[i].Value, y.Entries[i].Value, seen, depth) {
				return false
			}
		}
		return !x.HasDefault || equalValue(x.Default, y.Default, seen, depth)
	case *Struct:
		y, ok := b.(*Struct)
		return ok && x.Name == y.Name && fieldsEqual(x.Members, y.Members, seen, depth) &&
			attrsEqual(&x.Attrs, &y.Attrs, seen, depth)
	case *Object:
		y, ok := b.(*Object)
		return ok && x.Class == y.Class && x.UserClass == y.UserClass &&
			slices.Equal(x.Extends, y.Extends) &&
			fieldsEqual(objectFields(x), objectFields(y), seen, depth)
	case *Class:
		y, ok := b.(*Class)
		return ok && x.Name == y.Name
	case *Module:
		y, ok := b.(*Module)
		return ok && x.Name == y.Name
	case *UserDefined:
		y, ok := b.(*UserDefined)
		return ok && x.Class == y.Class && bytes.Equal(x.Data, y.Data) && x.Encoding == y.Encoding &&
			attrsEqual(&x.Attrs, &y.Attrs, seen, depth)
	case *UserMarshal:
		y, ok := b.(*UserMarshal)
		return ok && x.Class == y.Class && equalValue(x.Data, y.Data, seen, depth) &&
			attrsEqual(&x.Attrs, &y.Attrs, seen, depth)
	}
	return reflect.DeepEqual(a, b)
}

// normalize 将 Go 原生值转换为解码结果中对应的类型。
func normalize(v Value) Value {
	if n, ok := asInteger(v); ok {
		v = n
	}
	switch x := v.(type) {
	case float32:
		return float64(x)
	case *big.Int:
		if x != nil && x.IsInt64() {
			return x.Int64()
		}
	case string:
		return &String{Data: []byte(x), Encoding: UTF8}
	case []byte:
		return &String{Data: x}
	case []Value:
		return &Array{Elems: x}
	case map[string]Value:
		return sortedHash(x)
	case map[Symbol]Value:
		return sortedHash(x)
	}
	return v
}

func sortedHash[K string | Symbol](m map[K]Value) *Hash {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	h := &Hash{Entries: make([]HashEntry, 0, len(keys))}
	for _, k := range keys {
		h.Entries = append(h.Entries, HashEntry{Key: k, Value: m[k]})
	}
	return h
}

func floatEqual(a, b float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.IsNaN(a) && math.IsNaN(b)
	}
	return a == b && math.Signbit(a) == math.Signbit(b)
}

func attrsEqual(a, b *Attrs, seen typeutil.Set[visit], depth int) bool {
	return a.UserClass == b.UserClass &&
		slices.Equal(a.Extends, b.Extends) &&
		fieldsEqual(a.IVars, b.IVars, seen, depth)
}

// objectFields 返回对象线上的字段顺序：Fields 后接 IVars。
func objectFields(o *Object) []Field {
	if len(o.IVars) == 0 {
		return o.Fields
	}
	return slices.Concat(o.Fields, o.IVars)
}

func fieldsEqual(a, b []Field, seen typeutil.Set[visit], depth int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name || !equalValue(a[i].Value, b[i].Value, seen, depth) {
			return false
		}
	}
	return true
}
