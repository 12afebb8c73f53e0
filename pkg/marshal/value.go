package marshal

import (
	"bytes"
	"math/big"
	"reflect"
)

// Value 是可编码值的动态类型。
//
// 解码结果只会出现以下类型：nil、bool、int64、*big.Int、float64、Symbol、
// *String、*Regexp、*Array、*Hash、*Struct、*Object、*Class、*Module、
// *UserDefined、*UserMarshal，以及 Registry 中注册的加载器返回的值。
type Value = any

// Symbol 是驻留字符串，在一次会话中只完整写出一次。
type Symbol string

// Encoding 是字符串的字符编码名，空值表示二进制（ASCII-8BIT），不携带编码信息。
type Encoding string

const (
	Binary  Encoding = ""
	UTF8    Encoding = "UTF-8"
	USASCII Encoding = "US-ASCII"
)

// Field 是一个具名成员，用于实例变量、结构体成员与对象字段。
type Field struct {
	Name  Symbol
	Value Value
}

// Attrs 记录值的附加信息：实例变量、扩展模块、用户子类名与冻结标记。
// 嵌入 Attrs 的类型自动实现 Annotated。
type Attrs struct {
	// IVars 按写出顺序保存实例变量，名称通常以 "@" 开头。
	IVars []Field
	// Extends 为扩展模块名，按线上顺序保存。
	Extends []Symbol
	// UserClass 为内建类型的用户子类名，空值表示未使用子类。
	UserClass Symbol
	// Frozen 仅在解码时由冻结选项设置，不影响编码结果。
	Frozen bool
}

// Annotations 返回自身，供嵌入类型满足 Annotated。
func (a *Attrs) Annotations() *Attrs { return a }

// IVar 按名称查找实例变量。
func (a *Attrs) IVar(name Symbol) (Value, bool) {
	for i := range a.IVars {
		if a.IVars[i].Name == name {
			return a.IVars[i].Value, true
		}
	}
	return nil, false
}

// SetIVar 设置实例变量，已存在时原地替换以保持顺序。
func (a *Attrs) SetIVar(name Symbol, v Value) {
	for i := range a.IVars {
		if a.IVars[i].Name == name {
			a.IVars[i].Value = v
			return
		}
	}
	a.IVars = append(a.IVars, Field{Name: name, Value: v})
}

// Annotated 表示携带 Attrs 的值。
type Annotated interface {
	Annotations() *Attrs
}

// String 是带编码信息的字节串。
type String struct {
	Attrs
	Data     []byte
	Encoding Encoding
}

// NewString 创建一个 UTF-8 字符串。
func NewString(s string) *String {
	return &String{Data: []byte(s), Encoding: UTF8}
}

// NewBinary 创建一个二进制字节串，data 会被复制。
func NewBinary(data []byte) *String {
	return &String{Data: bytes.Clone(data)}
}

func (s *String) String() string {
	return string(s.Data)
}

// RegexpOption 是正则表达式的选项位。
type RegexpOption byte

const (
	RegexpIgnoreCase    RegexpOption = 1
	RegexpExtended      RegexpOption = 2
	RegexpMultiline     RegexpOption = 4
	RegexpFixedEncoding RegexpOption = 16
	RegexpNoEncoding    RegexpOption = 32
)

// Regexp 是正则表达式的源码与选项，本包不做编译。
type Regexp struct {
	Attrs
	Source   string
	Options  RegexpOption
	Encoding Encoding
}

// Array 是有序序列。
type Array struct {
	Attrs
	Elems []Value
}

// NewArray 使用给定元素创建序列。
func NewArray(elems ...Value) *Array {
	return &Array{Elems: elems}
}

// HashEntry 是映射中的一个键值对。
type HashEntry struct {
	Key   Value
	Value Value
}

// Hash 是保持插入顺序的映射。
//
// CompareByIdentity 为 true 时键按身份比较；解码得到的 Entries 保留线上原始顺序，
// 重复键不会被合并。
type Hash struct {
	Attrs
	Entries           []HashEntry
	Default           Value
	HasDefault        bool
	CompareByIdentity bool
}

// NewHash 创建一个空映射。
func NewHash() *Hash {
	return &Hash{}
}

// Len 返回键值对个数。
func (h *Hash) Len() int {
	return len(h.Entries)
}

// Get 按键查找值，未命中时返回缺省值（若有）与 false。
func (h *Hash) Get(key Value) (Value, bool) {
	for i := range h.Entries {
		if h.keyEqual(h.Entries[i].Key, key) {
			return h.Entries[i].Value, true
		}
	}
	return h.Default, false
}

// Set 写入键值对，已存在的键原地更新。
func (h *Hash) Set(key, value Value) *Hash {
	for i := range h.Entries {
		if h.keyEqual(h.Entries[i].Key, key) {
			h.Entries[i].Value = value
			return h
		}
	}
	h.Entries = append(h.Entries, HashEntry{Key: key, Value: value})
	return h
}

// SetDefault 设置缺省值。
func (h *Hash) SetDefault(v Value) *Hash {
	h.Default = v
	h.HasDefault = true
	return h
}

func (h *Hash) keyEqual(a, b Value) bool {
	if h.CompareByIdentity {
		return sameIdentity(a, b)
	}
	switch x := a.(type) {
	case *String:
		y, ok := b.(*String)
		return ok && (x == y || bytes.Equal(x.Data, y.Data))
	case *big.Int:
		y, ok := b.(*big.Int)
		return ok && x.Cmp(y) == 0
	}
	return sameIdentity(a, b)
}

// sameIdentity 对可比较类型使用 ==，不可比较类型视为不同。
func sameIdentity(a, b Value) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta != nil && !ta.Comparable() {
		return false
	}
	return a == b
}

// Struct 是具名记录，成员顺序即线上顺序。
type Struct struct {
	Attrs
	Name    Symbol
	Members []Field
}

// Get 按名称查找成员。
func (s *Struct) Get(name Symbol) (Value, bool) {
	for i := range s.Members {
		if s.Members[i].Name == name {
			return s.Members[i].Value, true
		}
	}
	return nil, false
}

// Object 是通用对象：类名加有序字段。
// 编码时 Attrs.IVars 接在 Fields 之后写入同一字段表，解码结果只填充 Fields；
// 对象不能携带 UserClass。
type Object struct {
	Attrs
	Class  Symbol
	Fields []Field
}

// Get 按名称查找字段。
func (o *Object) Get(name Symbol) (Value, bool) {
	for i := range o.Fields {
		if o.Fields[i].Name == name {
			return o.Fields[i].Value, true
		}
	}
	return nil, false
}

// Set 设置字段，已存在时原地替换。
func (o *Object) Set(name Symbol, v Value) *Object {
	for i := range o.Fields {
		if o.Fields[i].Name == name {
			o.Fields[i].Value = v
			return o
		}
	}
	o.Fields = append(o.Fields, Field{Name: name, Value: v})
	return o
}

// Class 是类引用，只写出名称。
type Class struct {
	Name string
}

// Module 是模块引用，只写出名称。
type Module struct {
	Name string
}

// UserDefined 是未被 Registry 识别的 'u' 单元：类名加不透明字节。
// 再次编码时按原样写回。
type UserDefined struct {
	Attrs
	Class    Symbol
	Data     []byte
	Encoding Encoding
}

// MarshalClass 实现 BytesDumper。
func (u *UserDefined) MarshalClass() Symbol { return u.Class }

// MarshalDumpBytes 实现 BytesDumper，Attrs.IVars 作为字节串的实例变量写回。
func (u *UserDefined) MarshalDumpBytes(int) (Value, error) {
	return &String{Attrs: Attrs{IVars: u.IVars}, Data: u.Data, Encoding: u.Encoding}, nil
}

// UserMarshal 是未被 Registry 识别的 'U' 单元：类名加一个嵌套值。
type UserMarshal struct {
	Attrs
	Class Symbol
	Data  Value
}

// MarshalClass 实现 Dumper。
func (u *UserMarshal) MarshalClass() Symbol { return u.Class }

// MarshalDump 实现 Dumper。
func (u *UserMarshal) MarshalDump() (Value, error) { return u.Data, nil }

var (
	_ Annotated   = (*String)(nil)
	_ Annotated   = (*Hash)(nil)
	_ BytesDumper = (*UserDefined)(nil)
	_ Dumper      = (*UserMarshal)(nil)
)
