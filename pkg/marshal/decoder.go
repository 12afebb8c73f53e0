package marshal

import (
	"bytes"
	"fmt"

	"github.com/lk2023060901/rmarshal-go/pkg/util/merr"
	"github.com/lk2023060901/rmarshal-go/pkg/util/typeutil"
)

// maxCapHint 限制从 io.Reader 解码时按声明长度预分配的元素个数。
const maxCapHint = 64 << 10

// decodeState 是一次解码会话的全部状态。
type decodeState struct {
	in      source
	links   *arena[Value]
	symbols *arena[Symbol]
	// classes 使同一会话中同名的类引用解码为同一个值。
	classes map[string]Value
	// partial 记录仍在构建中的单元的引用索引。
	partial typeutil.Set[int]
	depth   int
	opts    *options
}

func newDecodeState(in source, opts *options) *decodeState {
	return &decodeState{
		in:      in,
		links:   newArena[Value]("object"),
		symbols: newArena[Symbol]("symbol"),
		classes: make(map[string]Value),
		partial: typeutil.NewSet[int](),
		depth:   opts.maxDepth,
		opts:    opts,
	}
}

// load 读取数据头与根值，根值之后的字节不被读取。
func (d *decodeState) load() (Value, error) {
	if err := d.readHeader(); err != nil {
		return nil, err
	}
	return d.readValue(nil)
}

func (d *decodeState) readHeader() error {
	major, err := d.in.ReadByte()
	if err != nil {
		return err
	}
	minor, err := d.in.ReadByte()
	if err != nil {
		return err
	}
	return CheckVersion(major, minor)
}

// readValue 读取一个完整单元。ivp 非空时表示外层 'I' 的实例变量尚未读取，
// 能自行消费实例变量的单元会把 *ivp 置为 false。
func (d *decodeState) readValue(ivp *bool) (Value, error) {
	if d.depth <= 0 {
		return nil, merr.WrapErrMarshalDepthExceeded(d.opts.maxDepth)
	}
	d.depth--
	defer func() { d.depth++ }()

	tag, err := d.in.ReadByte()
	if err != nil {
		return nil, err
	}
	v, skip, err := d.readTagged(tag, ivp)
	if err != nil {
		return nil, err
	}
	if skip {
		return v, nil
	}
	return d.leave(v)
}

// leave 在单元完整读取后应用冻结与后处理函数，引用表中保留原值。
func (d *decodeState) leave(v Value) (Value, error) {
	if d.opts.freeze {
		if an, ok := v.(Annotated); ok {
			an.Annotations().Frozen = true
		}
	}
	if d.opts.proc == nil {
		return v, nil
	}
	out, err := d.opts.proc(v)
	if err != nil {
		return nil, merr.WrapErrMarshalHookFailed(fmt.Sprintf("%T", v), "proc", err)
	}
	return out, nil
}

// readTagged 按类型标记分派。skip 为 true 时调用方不再对结果执行 leave。
func (d *decodeState) readTagged(tag byte, ivp *bool) (Value, bool, error) {
	switch tag {
	case tagLink:
		idx, err := readLong(d.in)
		if err != nil {
			return nil, false, err
		}
		v, err := d.links.get(idx)
		if err != nil {
			return nil, false, err
		}
		return v, d.partial.Contain(int(idx)), nil

	case tagIVar:
		next, err := d.in.ReadByte()
		if err != nil {
			return nil, false, err
		}
		if next == tagIVar {
			return nil, false, merr.WrapErrMarshalMalformed("dump format error (nested ivar)")
		}
		pending := true
		v, skip, err := d.readTagged(next, &pending)
		if err != nil {
			return nil, false, err
		}
		if pending {
			if err := d.readIVars(v); err != nil {
				return nil, false, err
			}
		}
		return v, skip, nil

	case tagExtended, tagUClass:
		return d.readWrapped(tag, ivp)

	case tagNil:
		return nil, false, nil
	case tagTrue:
		return true, false, nil
	case tagFalse:
		return false, false, nil

	case tagFixnum:
		n, err := readLong(d.in)
		if err != nil {
			return nil, false, err
		}
		return n, false, nil

	case tagFloat:
		data, err := d.readBytes()
		if err != nil {
			return nil, false, err
		}
		f, err := parseFloat(data)
		if err != nil {
			return nil, false, err
		}
		d.links.push(f)
		return f, false, nil

	case tagBignum:
		v, err := d.readBignum()
		return v, false, err

	case tagSymbol:
		sym, err := d.readSymbolReal(ivp)
		return sym, false, err

	case tagSymlink:
		idx, err := readLong(d.in)
		if err != nil {
			return nil, false, err
		}
		sym, err := d.symbols.get(idx)
		return sym, true, err

	case tagString:
		data, err := d.readBytes()
		if err != nil {
			return nil, false, err
		}
		s := &String{Data: data}
		d.links.push(s)
		return s, false, nil

	case tagRegexp:
		v, err := d.readRegexp()
		return v, false, err
	case tagArray:
		v, err := d.readArray()
		return v, false, err
	case tagHash, tagHashDef:
		v, err := d.readHash(tag == tagHashDef)
		return v, false, err
	case tagStruct:
		v, err := d.readStruct()
		return v, false, err
	case tagObject:
		v, err := d.readObject()
		return v, false, err
	case tagUserDef:
		v, err := d.readUserDefined(ivp)
		return v, false, err
	case tagUserMarshal:
		v, err := d.readUserMarshal()
		return v, false, err
	case tagClass, tagModule:
		v, err := d.readClassRef(tag)
		return v, false, err
	}
	return nil, false, merr.WrapErrMarshalUnexpectedTag(tag, d.in.Offset()-1)
}

// readWrapped 读取连续的 'e' 与 'C' 前缀及其后的载荷。
// 紧跟 '{' 或 '}' 的 "C :Hash" 表示按身份比较键，最外层的其余 'C' 为用户子类。
func (d *decodeState) readWrapped(tag byte, ivp *bool) (Value, bool, error) {
	var (
		extends  []Symbol
		uclass   Symbol
		identity bool
	)
	for tag == tagExtended || tag == tagUClass {
		name, err := d.readClassName()
		if err != nil {
			return nil, false, err
		}
		next, err := d.in.ReadByte()
		if err != nil {
			return nil, false, err
		}
		switch {
		case tag == tagExtended:
			extends = append(extends, name)
		case name == "Hash" && (next == tagHash || next == tagHashDef):
			identity = true
		case uclass == "":
			uclass = name
		}
		tag = next
	}
	if tag == tagIVar {
		return nil, false, merr.WrapErrMarshalMalformed("dump format error (ivar after class prefix)")
	}

	v, skip, err := d.readTagged(tag, ivp)
	if err != nil {
		return nil, false, err
	}
	if h, ok := v.(*Hash); ok && identity {
		h.CompareByIdentity = true
	}
	an, ok := v.(Annotated)
	if uclass != "" {
		if !ok {
			return nil, false, merr.WrapErrMarshalMalformed("dump format error (user class)",
				fmt.Sprintf("%s for %T", uclass, v))
		}
		an.Annotations().UserClass = uclass
	}
	// 非 Annotated 的值没有位置保存扩展模块，忽略即可。
	if ok && len(extends) > 0 {
		a := an.Annotations()
		a.Extends = append(extends, a.Extends...)
	}
	return v, skip, nil
}

func (d *decodeState) readIVars(v Value) error {
	n, err := readLong(d.in)
	if err != nil {
		return err
	}
	if n < 0 {
		return merr.WrapErrMarshalMalformedf("negative ivar count %d", n)
	}
	if n == 0 {
		return nil
	}
	an, ok := v.(Annotated)
	if !ok {
		return merr.WrapErrMarshalMalformedf("instance variables on %T", v)
	}
	a := an.Annotations()
	for i := int64(0); i < n; i++ {
		name, err := d.readSymbol()
		if err != nil {
			return err
		}
		val, err := d.readValue(nil)
		if err != nil {
			return err
		}
		switch x := val.(type) {
		case bool:
			if name == "E" {
				enc := USASCII
				if x {
					enc = UTF8
				}
				if setEncoding(v, enc) {
					continue
				}
			}
		case *String:
			if name == "encoding" && setEncoding(v, encodingByName(string(x.Data))) {
				continue
			}
		}
		a.IVars = append(a.IVars, Field{Name: name, Value: val})
	}
	return nil
}

func setEncoding(v Value, enc Encoding) bool {
	switch x := v.(type) {
	case *String:
		x.Encoding = enc
	case *Regexp:
		x.Encoding = enc
	case *UserDefined:
		x.Encoding = enc
	default:
		return false
	}
	return true
}

func encodingByName(name string) Encoding {
	switch name {
	case "ASCII-8BIT", "BINARY":
		return Binary
	case string(UTF8):
		return UTF8
	case string(USASCII):
		return USASCII
	}
	return Encoding(name)
}

// readSymbol 读取名称位置上的符号：可选的 'I' 加 ':'，或 ';' 回引用。
func (d *decodeState) readSymbol() (Symbol, error) {
	tag, err := d.in.ReadByte()
	if err != nil {
		return "", err
	}
	if tag == tagIVar {
		if tag, err = d.in.ReadByte(); err != nil {
			return "", err
		}
		if tag != tagSymbol {
			return "", merr.WrapErrMarshalMalformedf("dump format error for symbol(0x%x)", tag)
		}
		pending := true
		return d.readSymbolReal(&pending)
	}
	switch tag {
	case tagSymbol:
		return d.readSymbolReal(nil)
	case tagSymlink:
		idx, err := readLong(d.in)
		if err != nil {
			return "", err
		}
		return d.symbols.get(idx)
	}
	return "", merr.WrapErrMarshalMalformedf("dump format error for symbol(0x%x)", tag)
}

// readSymbolReal 先占用符号表索引再读取编码实例变量，与编码侧的登记顺序一致。
func (d *decodeState) readSymbolReal(ivp *bool) (Symbol, error) {
	data, err := d.readBytes()
	if err != nil {
		return "", err
	}
	sym := Symbol(data)
	idx := d.symbols.reserve()
	if ivp != nil && *ivp {
		*ivp = false
		n, err := readLong(d.in)
		if err != nil {
			return "", err
		}
		if n < 0 {
			return "", merr.WrapErrMarshalMalformedf("negative ivar count %d", n)
		}
		for i := int64(0); i < n; i++ {
			if _, err := d.readSymbol(); err != nil {
				return "", err
			}
			if _, err := d.readValue(nil); err != nil {
				return "", err
			}
		}
	}
	d.symbols.store(idx, sym)
	return sym, nil
}

// readClassName 读取类名或模块名，严格模式下校验其已登记。
func (d *decodeState) readClassName() (Symbol, error) {
	name, err := d.readSymbol()
	if err != nil {
		return "", err
	}
	return name, d.checkDefined(string(name))
}

func (d *decodeState) checkDefined(name string) error {
	if d.opts.strict && !d.opts.registry.IsDefined(name) {
		return merr.WrapErrMarshalUndefinedClass(name)
	}
	return nil
}

// readLength 读取非负长度，不超过剩余字节数。
func (d *decodeState) readLength() (int, error) {
	n, err := readLong(d.in)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, merr.WrapErrMarshalMalformedf("negative length %d", n)
	}
	if rem := d.in.Remaining(); rem >= 0 && n > int64(rem) {
		return 0, errShortData()
	}
	return int(n), nil
}

func (d *decodeState) capHint(n int) int {
	if rem := d.in.Remaining(); rem >= 0 {
		return min(n, rem)
	}
	return min(n, maxCapHint)
}

// readBytes 读取长度前缀的字节串，返回的切片归调用方所有。
func (d *decodeState) readBytes() ([]byte, error) {
	n, err := d.readLength()
	if err != nil {
		return nil, err
	}
	data, err := d.in.ReadExact(n)
	if err != nil {
		return nil, err
	}
	return bytes.Clone(data), nil
}

func (d *decodeState) readBignum() (Value, error) {
	sign, err := d.in.ReadByte()
	if err != nil {
		return nil, err
	}
	if sign != '+' && sign != '-' {
		return nil, merr.WrapErrMarshalMalformedf("invalid bignum sign 0x%02x", sign)
	}
	words, err := d.readLength()
	if err != nil {
		return nil, err
	}
	data, err := d.in.ReadExact(words * 2)
	if err != nil {
		return nil, err
	}
	v := bignumFromBytes(sign, data)
	d.links.push(v)
	return v, nil
}

func (d *decodeState) readRegexp() (Value, error) {
	src, err := d.readBytes()
	if err != nil {
		return nil, err
	}
	opts, err := d.in.ReadByte()
	if err != nil {
		return nil, err
	}
	r := &Regexp{Source: string(src), Options: RegexpOption(opts)}
	d.links.push(r)
	return r, nil
}

func (d *decodeState) readArray() (Value, error) {
	n, err := d.readLength()
	if err != nil {
		return nil, err
	}
	a := &Array{Elems: make([]Value, 0, d.capHint(n))}
	idx := d.links.push(a)
	d.partial.Insert(idx)
	for i := 0; i < n; i++ {
		elem, err := d.readValue(nil)
		if err != nil {
			return nil, err
		}
		a.Elems = append(a.Elems, elem)
	}
	d.partial.Remove(idx)
	return a, nil
}

func (d *decodeState) readHash(hasDefault bool) (Value, error) {
	n, err := d.readLength()
	if err != nil {
		return nil, err
	}
	h := &Hash{Entries: make([]HashEntry, 0, d.capHint(n)), HasDefault: hasDefault}
	idx := d.links.push(h)
	d.partial.Insert(idx)
	for i := 0; i < n; i++ {
		key, err := d.readValue(nil)
		if err != nil {
			return nil, err
		}
		val, err := d.readValue(nil)
		if err != nil {
			return nil, err
		}
		h.Entries = append(h.Entries, HashEntry{Key: key, Value: val})
	}
	if hasDefault {
		if h.Default, err = d.readValue(nil); err != nil {
			return nil, err
		}
	}
	d.partial.Remove(idx)
	return h, nil
}

func (d *decodeState) readStruct() (Value, error) {
	name, err := d.readClassName()
	if err != nil {
		return nil, err
	}
	s := &Struct{Name: name}
	idx := d.links.push(s)
	d.partial.Insert(idx)

	n, err := d.readLength()
	if err != nil {
		return nil, err
	}
	members, known := d.opts.registry.structMembers(string(name))
	if known && len(members) != n {
		return nil, merr.WrapErrMarshalMalformedf("struct %s not compatible (struct size differs)", name)
	}
	s.Members = make([]Field, 0, d.capHint(n))
	for i := 0; i < n; i++ {
		slot, err := d.readSymbol()
		if err != nil {
			return nil, err
		}
		if known && slot != members[i] {
			return nil, merr.WrapErrMarshalMalformedf("struct %s not compatible (:%s for :%s)", name, slot, members[i])
		}
		val, err := d.readValue(nil)
		if err != nil {
			return nil, err
		}
		s.Members = append(s.Members, Field{Name: slot, Value: val})
	}
	d.partial.Remove(idx)
	return s, nil
}

func (d *decodeState) readObject() (Value, error) {
	class, err := d.readClassName()
	if err != nil {
		return nil, err
	}
	o := &Object{Class: class}
	idx := d.links.push(o)
	d.partial.Insert(idx)

	n, err := d.readLength()
	if err != nil {
		return nil, err
	}
	o.Fields = make([]Field, 0, d.capHint(n))
	for i := 0; i < n; i++ {
		name, err := d.readSymbol()
		if err != nil {
			return nil, err
		}
		val, err := d.readValue(nil)
		if err != nil {
			return nil, err
		}
		o.Fields = append(o.Fields, Field{Name: name, Value: val})
	}
	d.partial.Remove(idx)
	return o, nil
}

// readUserDefined 读取 'u' 单元。外层 'I' 的实例变量属于字节串本身，
// 单元在字节与实例变量之后才登记。
func (d *decodeState) readUserDefined(ivp *bool) (Value, error) {
	class, err := d.readClassName()
	if err != nil {
		return nil, err
	}
	data, err := d.readBytes()
	if err != nil {
		return nil, err
	}
	str := &String{Data: data}
	if ivp != nil && *ivp {
		*ivp = false
		if err := d.readIVars(str); err != nil {
			return nil, err
		}
	}

	var v Value
	if load, ok := d.opts.registry.userDefinedLoader(string(class)); ok {
		if v, err = load(str); err != nil {
			return nil, merr.WrapErrMarshalHookFailed(string(class), "_load", err)
		}
	} else {
		v = &UserDefined{
			Attrs:    Attrs{IVars: str.IVars},
			Class:    class,
			Data:     str.Data,
			Encoding: str.Encoding,
		}
	}
	d.links.push(v)
	return v, nil
}

// readUserMarshal 读取 'U' 单元：先登记空实例，再读取嵌套值并交给 MarshalLoad。
func (d *decodeState) readUserMarshal() (Value, error) {
	class, err := d.readClassName()
	if err != nil {
		return nil, err
	}

	factory, ok := d.opts.registry.userMarshalFactory(string(class))
	if !ok {
		u := &UserMarshal{Class: class}
		idx := d.links.push(u)
		d.partial.Insert(idx)
		if u.Data, err = d.readValue(nil); err != nil {
			return nil, err
		}
		d.partial.Remove(idx)
		return u, nil
	}

	shell := factory()
	if shell == nil {
		return nil, merr.WrapErrMarshalHookContract(string(class), "loader factory returned nil")
	}
	idx := d.links.push(shell)
	d.partial.Insert(idx)
	data, err := d.readValue(nil)
	if err != nil {
		return nil, err
	}
	if err := shell.MarshalLoad(data); err != nil {
		return nil, merr.WrapErrMarshalHookFailed(string(class), "marshal_load", err)
	}
	d.partial.Remove(idx)
	return shell, nil
}

func (d *decodeState) readClassRef(tag byte) (Value, error) {
	data, err := d.readBytes()
	if err != nil {
		return nil, err
	}
	name := string(data)
	if err := d.checkDefined(name); err != nil {
		return nil, err
	}
	key := string(tag) + name
	v, ok := d.classes[key]
	if !ok {
		if tag == tagClass {
			v = &Class{Name: name}
		} else {
			v = &Module{Name: name}
		}
		d.classes[key] = v
	}
	d.links.push(v)
	return v, nil
}
