package marshal

import (
	"math/big"
	"reflect"

	"github.com/lk2023060901/rmarshal-go/pkg/util/merr"
)

// refTable 是编码侧的引用表：键到索引的映射，索引按登记顺序从 0 递增。
// 没有身份的值通过 reserve 占用索引但不登记键，使编解码两侧的索引保持一致。
type refTable[K comparable] struct {
	index map[K]int
	size  int
}

func newRefTable[K comparable]() *refTable[K] {
	return &refTable[K]{index: make(map[K]int)}
}

func (t *refTable[K]) lookup(k K) (int, bool) {
	idx, ok := t.index[k]
	return idx, ok
}

func (t *refTable[K]) record(k K) int {
	idx := t.size
	t.index[k] = idx
	t.size++
	return idx
}

func (t *refTable[K]) reserve() int {
	idx := t.size
	t.size++
	return idx
}

func (t *refTable[K]) len() int {
	return t.size
}

// arena 是解码侧的引用表，按索引保存已创建的值。
// 槽位可以先 reserve 再 store，未 store 的槽位不可被引用。
type arena[T any] struct {
	kind   string
	slots  []T
	filled []bool
}

func newArena[T any](kind string) *arena[T] {
	return &arena[T]{kind: kind}
}

func (a *arena[T]) push(v T) int {
	idx := len(a.slots)
	a.slots = append(a.slots, v)
	a.filled = append(a.filled, true)
	return idx
}

func (a *arena[T]) reserve() int {
	var zero T
	idx := len(a.slots)
	a.slots = append(a.slots, zero)
	a.filled = append(a.filled, false)
	return idx
}

func (a *arena[T]) store(idx int, v T) {
	a.slots[idx] = v
	a.filled[idx] = true
}

func (a *arena[T]) get(idx int64) (T, error) {
	if idx < 0 || idx >= int64(len(a.slots)) || !a.filled[idx] {
		var zero T
		return zero, merr.WrapErrMarshalUnlinked(a.kind, idx, int64(len(a.slots)))
	}
	return a.slots[idx], nil
}

func (a *arena[T]) len() int {
	return len(a.slots)
}

// floatKey 使相同位模式的浮点数共享一个引用表条目。
type floatKey uint64

// identityOf 返回值在引用表中的身份键。
// 指针即身份；字符串、切片、映射等没有稳定身份的值返回 false。
func identityOf(v Value) (any, bool) {
	switch v.(type) {
	case *String, *Regexp, *Array, *Hash, *Struct, *Object,
		*Class, *Module, *UserDefined, *UserMarshal, *big.Int:
		return v, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer && !rv.IsNil() {
		return v, true
	}
	return nil, false
}
