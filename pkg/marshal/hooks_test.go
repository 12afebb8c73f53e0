package marshal

import (
	"net/netip"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/suite"

	"github.com/lk2023060901/rmarshal-go/pkg/util/merr"
)

// point 以 'U' 形式编码为两个整数的序列。
type point struct {
	X, Y int64
	Self *point
}

func (p *point) MarshalClass() Symbol { return "Point" }

func (p *point) MarshalDump() (Value, error) {
	if p.Self != nil {
		return []Value{p.X, p.Y, p.Self}, nil
	}
	return []Value{p.X, p.Y}, nil
}

func (p *point) MarshalLoad(data Value) error {
	arr, ok := data.(*Array)
	if !ok || len(arr.Elems) < 2 {
		return errors.Newf("unexpected point payload %T", data)
	}
	p.X, _ = arr.Elems[0].(int64)
	p.Y, _ = arr.Elems[1].(int64)
	if len(arr.Elems) > 2 {
		p.Self, _ = arr.Elems[2].(*point)
	}
	return nil
}

// addr 以 'u' 形式编码为文本。
type addr struct {
	ip netip.Addr
}

func (a addr) MarshalClass() Symbol { return "IPAddr" }

func (a addr) MarshalDumpBytes(int) (Value, error) {
	return a.ip.String(), nil
}

func loadAddr(data *String) (Value, error) {
	ip, err := netip.ParseAddr(data.String())
	if err != nil {
		return nil, err
	}
	return addr{ip: ip}, nil
}

type badDump struct {
	payload Value
	err     error
}

func (b *badDump) MarshalClass() Symbol { return "Bad" }

func (b *badDump) MarshalDumpBytes(int) (Value, error) { return b.payload, b.err }

type HookSuite struct {
	suite.Suite

	registry *Registry
}

func (s *HookSuite) SetupTest() {
	s.registry = NewRegistry().
		RegisterUserMarshal("Point", func() Loader { return &point{} }).
		RegisterUserDefined("IPAddr", loadAddr)
}

func (s *HookSuite) TestDumper() {
	data, err := Marshal(&point{X: 1, Y: 2})
	s.Require().NoError(err)
	s.Equal(unhex("0408 55 3a0a506f696e74 5b07 6906 6907"), data)

	v, err := Unmarshal(data, WithRegistry(s.registry))
	s.Require().NoError(err)
	s.Equal(&point{X: 1, Y: 2}, v)

	v, err = Unmarshal(data)
	s.Require().NoError(err)
	um, ok := v.(*UserMarshal)
	s.Require().True(ok)
	s.Equal(Symbol("Point"), um.Class)
	s.True(Equal([]Value{1, 2}, um.Data))
}

func (s *HookSuite) TestDumperSelfReference() {
	p := &point{X: 3, Y: 4}
	p.Self = p
	data, err := Marshal(p)
	s.Require().NoError(err)
	// 自身在调用 MarshalDump 之前登记，嵌套值中写为回引用。
	s.Equal(unhex("0408 55 3a0a506f696e74 5b08 6908 6909 4000"), data)

	v, err := Unmarshal(data, WithRegistry(s.registry))
	s.Require().NoError(err)
	got := v.(*point)
	s.Same(got, got.Self)
}

func (s *HookSuite) TestBytesDumper() {
	a := addr{ip: netip.MustParseAddr("10.0.0.1")}
	data, err := Marshal([]Value{a, Symbol("IPAddr")})
	s.Require().NoError(err)
	s.Equal(unhex("0408 5b07 49 75 3a0b495041646472 0d31302e302e302e31 06 3a0645 54 3b00"), data)

	v, err := Unmarshal(data, WithRegistry(s.registry))
	s.Require().NoError(err)
	s.Equal(a, v.(*Array).Elems[0])

	v, err = Unmarshal(data)
	s.Require().NoError(err)
	ud := v.(*Array).Elems[0].(*UserDefined)
	s.Equal(Symbol("IPAddr"), ud.Class)
	s.Equal("10.0.0.1", string(ud.Data))
	s.Equal(UTF8, ud.Encoding)
}

func (s *HookSuite) TestUserDefinedLinkOrder() {
	shared := &UserDefined{Class: "Blob", Data: []byte("z")}
	data, err := Marshal([]Value{shared, NewString("s"), shared})
	s.Require().NoError(err)

	v, err := Unmarshal(data)
	s.Require().NoError(err)
	elems := v.(*Array).Elems
	s.Same(elems[0], elems[2])
}

func (s *HookSuite) TestHookContract() {
	_, err := Marshal(&badDump{payload: 42})
	s.ErrorIs(err, merr.ErrMarshalHookContract)

	_, err = Marshal(&badDump{payload: (*String)(nil)})
	s.ErrorIs(err, merr.ErrMarshalHookContract)

	data, err := Marshal(&badDump{payload: []byte{1, 2}})
	s.NoError(err)
	s.Equal(unhex("0408 75 3a0842616407 0102"), data)
}

func (s *HookSuite) TestHookError() {
	errBoom := errors.New("boom")
	_, err := Marshal(&badDump{err: errBoom})
	s.ErrorIs(err, errBoom)
	s.Contains(err.Error(), "_dump hook failed for class Bad")

	data, err := Marshal(&UserDefined{Class: "IPAddr", Data: []byte("not an ip")})
	s.Require().NoError(err)
	_, err = Unmarshal(data, WithRegistry(s.registry))
	s.Error(err)

	data, err = Marshal(&UserMarshal{Class: "Point", Data: int64(1)})
	s.Require().NoError(err)
	_, err = Unmarshal(data, WithRegistry(s.registry))
	s.Error(err)
	s.Contains(err.Error(), "marshal_load hook failed for class Point")
}

func (s *HookSuite) TestNilFactory() {
	data, err := Marshal(&UserMarshal{Class: "Nil", Data: nil})
	s.Require().NoError(err)
	_, err = Unmarshal(data, WithRegistry(NewRegistry().RegisterUserMarshal("Nil", func() Loader { return nil })))
	s.ErrorIs(err, merr.ErrMarshalHookContract)
}

func (s *HookSuite) TestRegistry() {
	r := NewRegistry()
	s.True(r.IsDefined("String"))
	s.False(r.IsDefined("Point"))
	r.DefineStruct("Point", "x", "y")
	s.True(r.IsDefined("Point"))
	s.True(r.Defined().Contain("Point", "Hash"))

	var nilRegistry *Registry
	s.False(nilRegistry.IsDefined("String"))
	s.Zero(nilRegistry.Defined().Len())
	_, ok := nilRegistry.structMembers("Point")
	s.False(ok)
}

func TestHooks(t *testing.T) {
	suite.Run(t, new(HookSuite))
}
