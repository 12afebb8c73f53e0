package marshal

import (
	"go.uber.org/zap"

	"github.com/lk2023060901/rmarshal-go/pkg/log"
)

// DefaultMaxDepth 为缺省的嵌套深度预算。
const DefaultMaxDepth = 4096

type options struct {
	maxDepth int
	registry *Registry
	strict   bool
	freeze   bool
	proc     func(Value) (Value, error)
	rewriter func(Value) (Value, error)
	logger   *log.MLogger
}

// Option 用于配置编解码会话。
type Option func(*options)

func newOptions(opts ...Option) *options {
	o := &options{maxDepth: DefaultMaxDepth}
	for _, opt := range opts {
		opt(o)
	}
	if o.maxDepth <= 0 {
		o.maxDepth = DefaultMaxDepth
	}
	if o.logger == nil {
		o.logger = log.With(log.FieldModule("marshal"))
	}
	return o
}

// WithMaxDepth 设置嵌套深度预算，<= 0 时使用 DefaultMaxDepth。
func WithMaxDepth(depth int) Option {
	return func(o *options) {
		o.maxDepth = depth
	}
}

// WithRegistry 设置解码侧的类型注册表。
func WithRegistry(r *Registry) Option {
	return func(o *options) {
		o.registry = r
	}
}

// WithStrict 开启后，解码遇到注册表中未登记的类名或模块名时报错。
func WithStrict(strict bool) Option {
	return func(o *options) {
		o.strict = strict
	}
}

// WithFreeze 开启后，解码得到的带 Attrs 的值均标记为冻结。
func WithFreeze(freeze bool) Option {
	return func(o *options) {
		o.freeze = freeze
	}
}

// WithProc 设置解码后处理函数，每个完整解码的单元都会经过它，返回值替换原值。
// 引用表中保留原值，回引用到仍在构建中的单元时不调用。
func WithProc(proc func(Value) (Value, error)) Option {
	return func(o *options) {
		o.proc = proc
	}
}

// WithRewriter 设置编码前的替换函数，对每个非立即值调用一次。
// 引用表按原值的身份登记。
func WithRewriter(rewriter func(Value) (Value, error)) Option {
	return func(o *options) {
		o.rewriter = rewriter
	}
}

// WithLogger 设置会话使用的 Logger。
func WithLogger(logger *log.MLogger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func (o *options) fields() []zap.Field {
	return []zap.Field{
		zap.Int("maxDepth", o.maxDepth),
		zap.Bool("strict", o.strict),
	}
}
