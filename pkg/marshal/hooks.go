package marshal

import (
	"strings"
	"sync"

	"github.com/lk2023060901/rmarshal-go/pkg/util/typeutil"
)

// Dumper 由需要以 'U' 形式编码的类型实现：写出类名后递归编码 MarshalDump 的结果。
// 同时实现 Dumper 与 BytesDumper 时优先使用 Dumper。
type Dumper interface {
	MarshalClass() Symbol
	MarshalDump() (Value, error)
}

// BytesDumper 由需要以 'u' 形式编码的类型实现：写出类名与一段不透明字节。
// MarshalDumpBytes 的结果必须是 *String、string 或 []byte，depth 为剩余深度预算。
type BytesDumper interface {
	MarshalClass() Symbol
	MarshalDumpBytes(depth int) (Value, error)
}

// Loader 是 'U' 单元解码时的接收者：先创建空实例并登记，再用嵌套值填充。
type Loader interface {
	MarshalLoad(data Value) error
}

// LoaderFactory 为 'U' 单元创建空实例。
type LoaderFactory func() Loader

// BytesLoader 将 'u' 单元的字节（含编码与实例变量）还原为值。
type BytesLoader func(data *String) (Value, error)

// builtinNames 为严格模式下默认可解析的核心类名与模块名。
var builtinNames = []string{
	"Object", "BasicObject", "String", "Symbol", "Array", "Hash", "Regexp",
	"Struct", "Integer", "Float", "Range", "Class", "Module",
	"Kernel", "Comparable", "Enumerable", "Exception", "StandardError",
}

// Registry 描述解码侧可以识别的类型：已定义的类名、结构体成员表与自定义加载器。
// 注册应在使用前完成，之后可被多个会话并发读取。nil Registry 等价于空注册表。
type Registry struct {
	defined *typeutil.ConcurrentSet[string]

	mu          sync.RWMutex
	structs     map[string][]Symbol
	userMarshal map[string]LoaderFactory
	userDefined map[string]BytesLoader
}

// NewRegistry 创建一个只包含核心类名的注册表。
func NewRegistry() *Registry {
	r := &Registry{
		defined:     typeutil.NewConcurrentSet[string](),
		structs:     make(map[string][]Symbol),
		userMarshal: make(map[string]LoaderFactory),
		userDefined: make(map[string]BytesLoader),
	}
	r.Define(builtinNames...)
	return r
}

// Define 登记类名或模块名，严格模式下只接受已登记的名称。
func (r *Registry) Define(names ...string) *Registry {
	for _, name := range names {
		r.defined.Insert(name)
	}
	return r
}

// DefineStruct 登记结构体及其成员顺序，解码时成员个数与名称必须一致。
func (r *Registry) DefineStruct(name string, members ...Symbol) *Registry {
	r.mu.Lock()
	r.structs[name] = append([]Symbol(nil), members...)
	r.mu.Unlock()
	return r.Define(name)
}

// RegisterUserMarshal 为 'U' 单元登记实例工厂。
func (r *Registry) RegisterUserMarshal(name string, factory LoaderFactory) *Registry {
	r.mu.Lock()
	r.userMarshal[name] = factory
	r.mu.Unlock()
	return r.Define(name)
}

// RegisterUserDefined 为 'u' 单元登记加载函数。
func (r *Registry) RegisterUserDefined(name string, load BytesLoader) *Registry {
	r.mu.Lock()
	r.userDefined[name] = load
	r.mu.Unlock()
	return r.Define(name)
}

// IsDefined 判断名称是否已登记。
func (r *Registry) IsDefined(name string) bool {
	if r == nil {
		return false
	}
	return r.defined.Contain(name)
}

// Defined 返回已登记名称的快照。
func (r *Registry) Defined() typeutil.Set[string] {
	if r == nil {
		return typeutil.NewSet[string]()
	}
	return typeutil.NewSet(r.defined.Collect()...)
}

func (r *Registry) structMembers(name string) ([]Symbol, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	members, ok := r.structs[name]
	return members, ok
}

func (r *Registry) userMarshalFactory(name string) (LoaderFactory, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.userMarshal[name]
	return f, ok
}

func (r *Registry) userDefinedLoader(name string) (BytesLoader, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.userDefined[name]
	return f, ok
}

// isAnonymousName 判断类名是否无法在解码侧解析。
func isAnonymousName(name string) bool {
	return name == "" || strings.HasPrefix(name, "#")
}
