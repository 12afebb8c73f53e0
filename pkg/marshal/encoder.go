package marshal

import (
	"fmt"
	"math"
	"math/big"
	"reflect"
	"slices"
	"unicode/utf8"

	"github.com/samber/lo"

	"github.com/lk2023060901/rmarshal-go/pkg/util/merr"
)

// encodeState 是一次编码会话的全部状态，不跨会话复用。
type encodeState struct {
	out     *sink
	links   *refTable[any]
	symbols *refTable[Symbol]
	// encodings 缓存 "encoding" 实例变量中编码名字符串的引用索引。
	encodings map[Encoding]int
	depth     int
	opts      *options
}

func newEncodeState(opts *options) *encodeState {
	return &encodeState{
		out:       newSink(),
		links:     newRefTable[any](),
		symbols:   newRefTable[Symbol](),
		encodings: make(map[Encoding]int),
		depth:     opts.maxDepth,
		opts:      opts,
	}
}

func (e *encodeState) release() {
	e.out.release()
}

// dump 写出数据头与根值。
func (e *encodeState) dump(v Value) error {
	e.out.writeByte(MajorVersion)
	e.out.writeByte(MinorVersion)
	return e.encode(v)
}

func (e *encodeState) encode(v Value) error {
	if e.depth <= 0 {
		return merr.WrapErrMarshalDepthExceeded(e.opts.maxDepth)
	}
	e.depth--
	defer func() { e.depth++ }()

	if ok, err := e.writeImmediate(v); ok {
		return err
	}

	key, hasID := identityOf(v)
	if hasID {
		if idx, ok := e.links.lookup(key); ok {
			e.out.writeByte(tagLink)
			return e.out.writeLong(int64(idx))
		}
	}

	if e.opts.rewriter != nil {
		rewritten, err := e.opts.rewriter(v)
		if err != nil {
			return merr.WrapErrMarshalHookFailed(fmt.Sprintf("%T", v), "rewrite", err)
		}
		if ok, err := e.writeImmediate(rewritten); ok {
			return err
		}
		if !hasID {
			key, hasID = identityOf(rewritten)
		}
		v = rewritten
	}
	return e.writeObject(key, hasID, v)
}

// writeImmediate 写出不进入引用表的值，返回是否已处理。
func (e *encodeState) writeImmediate(v Value) (bool, error) {
	switch x := v.(type) {
	case nil:
		e.out.writeByte(tagNil)
		return true, nil
	case bool:
		if x {
			e.out.writeByte(tagTrue)
		} else {
			e.out.writeByte(tagFalse)
		}
		return true, nil
	case Symbol:
		return true, e.writeSymbol(x)
	case float64:
		return true, e.writeFloat(x)
	case float32:
		return true, e.writeFloat(float64(x))
	case *big.Int:
		if x != nil && x.IsInt64() && inFixnumRange(x.Int64()) {
			return true, e.writeFixnum(x.Int64())
		}
		if x != nil {
			return false, nil
		}
	}

	if n, ok := asInteger(v); ok {
		switch x := n.(type) {
		case int64:
			if inFixnumRange(x) {
				return true, e.writeFixnum(x)
			}
			e.links.reserve()
			return true, e.writeBignum(big.NewInt(x))
		case *big.Int:
			e.links.reserve()
			return true, e.writeBignum(x)
		}
	}

	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && rv.IsNil() {
		e.out.writeByte(tagNil)
		return true, nil
	}
	return false, nil
}

func (e *encodeState) remember(key any, hasID bool) {
	if hasID {
		e.links.record(key)
		return
	}
	e.links.reserve()
}

func (e *encodeState) writeObject(key any, hasID bool, v Value) error {
	switch x := v.(type) {
	case Dumper:
		return e.writeUserMarshal(key, hasID, x)
	case BytesDumper:
		return e.writeUserDefined(key, hasID, x)
	case *String:
		e.remember(key, hasID)
		return e.writeString(&x.Attrs, x.Data, x.Encoding)
	case string:
		e.remember(key, hasID)
		return e.writeString(nil, []byte(x), UTF8)
	case []byte:
		e.remember(key, hasID)
		return e.writeString(nil, x, Binary)
	case *Regexp:
		e.remember(key, hasID)
		return e.writeRegexp(x)
	case *Array:
		e.remember(key, hasID)
		return e.writeArray(&x.Attrs, x.Elems)
	case []Value:
		e.remember(key, hasID)
		return e.writeArray(nil, x)
	case *Hash:
		e.remember(key, hasID)
		return e.writeHash(x)
	case map[string]Value:
		e.remember(key, hasID)
		return writeMap(e, x)
	case map[Symbol]Value:
		e.remember(key, hasID)
		return writeMap(e, x)
	case *big.Int:
		e.remember(key, hasID)
		return e.writeBignum(x)
	case *Struct:
		if isAnonymousName(string(x.Name)) {
			return merr.WrapErrMarshalUnsupported("Struct", "can't dump anonymous class")
		}
		e.remember(key, hasID)
		return e.writeStruct(x)
	case *Object:
		if isAnonymousName(string(x.Class)) {
			return merr.WrapErrMarshalUnsupported("Object", "can't dump anonymous class")
		}
		if x.UserClass != "" {
			return merr.WrapErrMarshalUnsupported("Object",
				fmt.Sprintf("user class %s on object %s", x.UserClass, x.Class))
		}
		e.remember(key, hasID)
		return e.writeObjectFields(x)
	case *Class:
		if isAnonymousName(x.Name) {
			return merr.WrapErrMarshalUnsupported("Class", "can't dump anonymous class")
		}
		e.remember(key, hasID)
		e.out.writeByte(tagClass)
		return e.out.writeBytes([]byte(x.Name))
	case *Module:
		if isAnonymousName(x.Name) {
			return merr.WrapErrMarshalUnsupported("Module", "can't dump anonymous module")
		}
		e.remember(key, hasID)
		e.out.writeByte(tagModule)
		return e.out.writeBytes([]byte(x.Name))
	}
	return merr.WrapErrMarshalUnsupported(fmt.Sprintf("%T", v), "no marshal encoding is defined")
}

// writePrefix 写出 I 标记、扩展模块与用户子类，顺序与解码侧的包装语法一致。
func (e *encodeState) writePrefix(a *Attrs, hasIVar bool) error {
	if hasIVar {
		e.out.writeByte(tagIVar)
	}
	if a == nil {
		return nil
	}
	if err := e.writeExtends(a); err != nil {
		return err
	}
	if a.UserClass != "" {
		e.out.writeByte(tagUClass)
		return e.writeSymbol(a.UserClass)
	}
	return nil
}

func (e *encodeState) writeExtends(a *Attrs) error {
	for _, m := range a.Extends {
		e.out.writeByte(tagExtended)
		if err := e.writeSymbol(m); err != nil {
			return err
		}
	}
	return nil
}

// writeIVars 写出实例变量，编码信息总是作为第一个实例变量。
func (e *encodeState) writeIVars(enc Encoding, ivars []Field) error {
	n := len(ivars)
	if enc != Binary {
		n++
	}
	if err := e.out.writeLong(int64(n)); err != nil {
		return err
	}
	if enc != Binary {
		if err := e.writeEncoding(enc); err != nil {
			return err
		}
	}
	for _, f := range ivars {
		if err := e.writeSymbol(f.Name); err != nil {
			return err
		}
		if err := e.encode(f.Value); err != nil {
			return err
		}
	}
	return nil
}

func (e *encodeState) writeEncoding(enc Encoding) error {
	switch enc {
	case UTF8:
		if err := e.writeSymbol("E"); err != nil {
			return err
		}
		e.out.writeByte(tagTrue)
	case USASCII:
		if err := e.writeSymbol("E"); err != nil {
			return err
		}
		e.out.writeByte(tagFalse)
	default:
		if err := e.writeSymbol("encoding"); err != nil {
			return err
		}
		// 同一编码名在会话内只写出一次，之后使用回引用。
		if idx, ok := e.encodings[enc]; ok {
			e.out.writeByte(tagLink)
			return e.out.writeLong(int64(idx))
		}
		e.encodings[enc] = e.links.reserve()
		e.out.writeByte(tagString)
		return e.out.writeBytes([]byte(enc))
	}
	return nil
}

func (e *encodeState) writeSymbol(sym Symbol) error {
	if idx, ok := e.symbols.lookup(sym); ok {
		e.out.writeByte(tagSymlink)
		return e.out.writeLong(int64(idx))
	}
	e.symbols.record(sym)

	enc := symbolEncoding(sym)
	if enc != Binary {
		e.out.writeByte(tagIVar)
	}
	e.out.writeByte(tagSymbol)
	if err := e.out.writeBytes([]byte(sym)); err != nil {
		return err
	}
	if enc != Binary {
		if err := e.out.writeLong(1); err != nil {
			return err
		}
		return e.writeEncoding(enc)
	}
	return nil
}

// symbolEncoding 纯 ASCII 符号不携带编码，合法 UTF-8 的非 ASCII 符号标记为 UTF-8。
func symbolEncoding(sym Symbol) Encoding {
	for i := 0; i < len(sym); i++ {
		if sym[i] >= utf8.RuneSelf {
			if utf8.ValidString(string(sym)) {
				return UTF8
			}
			return Binary
		}
	}
	return Binary
}

func (e *encodeState) writeFixnum(v int64) error {
	e.out.writeByte(tagFixnum)
	return e.out.writeLong(v)
}

func (e *encodeState) writeBignum(b *big.Int) error {
	sign, mag := bignumBytes(b)
	e.out.writeByte(tagBignum)
	e.out.writeByte(sign)
	if err := e.out.writeLong(int64(len(mag) / 2)); err != nil {
		return err
	}
	e.out.write(mag)
	return nil
}

func (e *encodeState) writeFloat(f float64) error {
	key := floatKey(math.Float64bits(f))
	if idx, ok := e.links.lookup(key); ok {
		e.out.writeByte(tagLink)
		return e.out.writeLong(int64(idx))
	}
	e.links.record(key)
	e.out.writeByte(tagFloat)
	return e.out.writeBytes([]byte(formatFloat(f)))
}

func ivarsOf(a *Attrs) []Field {
	if a == nil {
		return nil
	}
	return a.IVars
}

func (e *encodeState) writeString(a *Attrs, data []byte, enc Encoding) error {
	ivars := ivarsOf(a)
	hasIVar := enc != Binary || len(ivars) > 0
	if err := e.writePrefix(a, hasIVar); err != nil {
		return err
	}
	e.out.writeByte(tagString)
	if err := e.out.writeBytes(data); err != nil {
		return err
	}
	if hasIVar {
		return e.writeIVars(enc, ivars)
	}
	return nil
}

func (e *encodeState) writeRegexp(r *Regexp) error {
	hasIVar := r.Encoding != Binary || len(r.IVars) > 0
	if err := e.writePrefix(&r.Attrs, hasIVar); err != nil {
		return err
	}
	e.out.writeByte(tagRegexp)
	if err := e.out.writeBytes([]byte(r.Source)); err != nil {
		return err
	}
	e.out.writeByte(byte(r.Options))
	if hasIVar {
		return e.writeIVars(r.Encoding, r.IVars)
	}
	return nil
}

func (e *encodeState) writeArray(a *Attrs, elems []Value) error {
	ivars := ivarsOf(a)
	if err := e.writePrefix(a, len(ivars) > 0); err != nil {
		return err
	}
	e.out.writeByte(tagArray)
	if err := e.out.writeLong(int64(len(elems))); err != nil {
		return err
	}
	for _, elem := range elems {
		if err := e.encode(elem); err != nil {
			return err
		}
	}
	if len(ivars) > 0 {
		return e.writeIVars(Binary, ivars)
	}
	return nil
}

func (e *encodeState) writeHash(h *Hash) error {
	hasIVar := len(h.IVars) > 0
	if err := e.writePrefix(&h.Attrs, hasIVar); err != nil {
		return err
	}
	if h.CompareByIdentity {
		e.out.writeByte(tagUClass)
		if err := e.writeSymbol("Hash"); err != nil {
			return err
		}
	}
	if h.HasDefault {
		e.out.writeByte(tagHashDef)
	} else {
		e.out.writeByte(tagHash)
	}
	if err := e.out.writeLong(int64(len(h.Entries))); err != nil {
		return err
	}
	for _, entry := range h.Entries {
		if err := e.encode(entry.Key); err != nil {
			return err
		}
		if err := e.encode(entry.Value); err != nil {
			return err
		}
	}
	if h.HasDefault {
		if err := e.encode(h.Default); err != nil {
			return err
		}
	}
	if hasIVar {
		return e.writeIVars(Binary, h.IVars)
	}
	return nil
}

// writeMap 将 Go 映射按键排序后写出，使输出稳定。
func writeMap[K string | Symbol](e *encodeState, m map[K]Value) error {
	keys := lo.Keys(m)
	slices.Sort(keys)

	e.out.writeByte(tagHash)
	if err := e.out.writeLong(int64(len(keys))); err != nil {
		return err
	}
	for _, k := range keys {
		if err := e.encode(k); err != nil {
			return err
		}
		if err := e.encode(m[k]); err != nil {
			return err
		}
	}
	return nil
}

func (e *encodeState) writeStruct(s *Struct) error {
	hasIVar := len(s.IVars) > 0
	if err := e.writePrefix(&s.Attrs, hasIVar); err != nil {
		return err
	}
	e.out.writeByte(tagStruct)
	if err := e.writeSymbol(s.Name); err != nil {
		return err
	}
	if err := e.writeFields(s.Members); err != nil {
		return err
	}
	if hasIVar {
		return e.writeIVars(Binary, s.IVars)
	}
	return nil
}

// writeObjectFields 写出 'o' 单元。对象的实例变量就是字段表，Attrs.IVars 接在 Fields 之后写出。
func (e *encodeState) writeObjectFields(o *Object) error {
	if err := e.writeExtends(&o.Attrs); err != nil {
		return err
	}
	e.out.writeByte(tagObject)
	if err := e.writeSymbol(o.Class); err != nil {
		return err
	}
	return e.writeFields(o.Fields, o.IVars)
}

func (e *encodeState) writeFields(groups ...[]Field) error {
	n := 0
	for _, fields := range groups {
		n += len(fields)
	}
	if err := e.out.writeLong(int64(n)); err != nil {
		return err
	}
	for _, fields := range groups {
		for _, f := range fields {
			if err := e.writeSymbol(f.Name); err != nil {
				return err
			}
			if err := e.encode(f.Value); err != nil {
				return err
			}
		}
	}
	return nil
}

// writeUserMarshal 先登记自身再调用 MarshalDump，嵌套值中对自身的引用写为回引用。
func (e *encodeState) writeUserMarshal(key any, hasID bool, d Dumper) error {
	class := d.MarshalClass()
	if isAnonymousName(string(class)) {
		return merr.WrapErrMarshalUnsupported(fmt.Sprintf("%T", d), "can't dump anonymous class")
	}
	e.remember(key, hasID)

	data, err := d.MarshalDump()
	if err != nil {
		return merr.WrapErrMarshalHookFailed(string(class), "marshal_dump", err)
	}
	if an, ok := d.(Annotated); ok {
		if err := e.writeExtends(an.Annotations()); err != nil {
			return err
		}
	}
	e.out.writeByte(tagUserMarshal)
	if err := e.writeSymbol(class); err != nil {
		return err
	}
	return e.encode(data)
}

// writeUserDefined 在写出字节之后才登记自身，与解码侧的索引分配顺序一致。
func (e *encodeState) writeUserDefined(key any, hasID bool, d BytesDumper) error {
	class := d.MarshalClass()
	if isAnonymousName(string(class)) {
		return merr.WrapErrMarshalUnsupported(fmt.Sprintf("%T", d), "can't dump anonymous class")
	}

	payload, err := d.MarshalDumpBytes(e.depth)
	if err != nil {
		return merr.WrapErrMarshalHookFailed(string(class), "_dump", err)
	}
	str, err := dumpedString(class, payload)
	if err != nil {
		return err
	}

	hasIVar := str.Encoding != Binary || len(str.IVars) > 0
	if hasIVar {
		e.out.writeByte(tagIVar)
	}
	if an, ok := d.(Annotated); ok {
		if err := e.writeExtends(an.Annotations()); err != nil {
			return err
		}
	}
	e.out.writeByte(tagUserDef)
	if err := e.writeSymbol(class); err != nil {
		return err
	}
	if err := e.out.writeBytes(str.Data); err != nil {
		return err
	}
	if hasIVar {
		if err := e.writeIVars(str.Encoding, str.IVars); err != nil {
			return err
		}
	}
	e.remember(key, hasID)
	return nil
}

func dumpedString(class Symbol, payload Value) (*String, error) {
	switch x := payload.(type) {
	case *String:
		if x != nil {
			return x, nil
		}
	case string:
		return &String{Data: []byte(x), Encoding: UTF8}, nil
	case []byte:
		return &String{Data: x}, nil
	}
	return nil, merr.WrapErrMarshalHookContract(string(class),
		fmt.Sprintf("_dump() must return string, got %T", payload))
}
