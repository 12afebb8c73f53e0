package marshal

import (
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEqual(t *testing.T) {
	assert.True(t, Equal(nil, nil))
	assert.True(t, Equal(1, int64(1)))
	assert.True(t, Equal(uint8(7), big.NewInt(7)))
	assert.False(t, Equal(1, 1.0))
	assert.True(t, Equal(math.NaN(), math.NaN()))
	assert.False(t, Equal(0.0, math.Copysign(0, -1)))
	assert.True(t, Equal(float32(1.5), 1.5))
	assert.True(t, Equal("a", NewString("a")))
	assert.False(t, Equal("a", NewBinary([]byte("a"))))
	assert.True(t, Equal([]byte("a"), NewBinary([]byte("a"))))
	assert.False(t, Equal(Symbol("a"), "a"))
	assert.True(t, Equal(map[string]Value{"b": 1, "a": 2}, &Hash{Entries: []HashEntry{
		{Key: NewString("a"), Value: int64(2)},
		{Key: NewString("b"), Value: int64(1)},
	}}))
	assert.False(t, Equal(&Hash{}, &Hash{CompareByIdentity: true}))
	assert.False(t, Equal(&Array{}, &Array{Attrs: Attrs{UserClass: "List"}}))
	assert.True(t, Equal(&Array{Attrs: Attrs{Frozen: true}}, &Array{}))
	assert.False(t, Equal(&Class{Name: "A"}, &Module{Name: "A"}))
	assert.True(t, Equal(&Object{Class: "A", Fields: []Field{{"@x", 1}}}, &Object{Class: "A", Fields: []Field{{"@x", int64(1)}}}))
	assert.False(t, Equal(&Struct{Name: "P"}, &Struct{Name: "Q"}))
	assert.False(t, Equal(&Object{Class: "Foo"}, &Object{Attrs: Attrs{IVars: []Field{{"@x", 1}}}, Class: "Foo"}))
	assert.False(t, Equal(&Object{Class: "Foo"}, &Object{Attrs: Attrs{UserClass: "Sub"}, Class: "Foo"}))
	assert.True(t, Equal(
		&Object{Attrs: Attrs{IVars: []Field{{"@x", 1}}}, Class: "Foo"},
		&Object{Class: "Foo", Fields: []Field{{"@x", int64(1)}}}))

	a := &Array{}
	a.Elems = []Value{a}
	b := &Array{}
	b.Elems = []Value{b}
	assert.True(t, Equal(a, b))

	c := &Array{}
	c.Elems = []Value{&Array{Elems: []Value{int64(1)}}}
	assert.False(t, Equal(a, c))
}
