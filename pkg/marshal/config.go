package marshal

import (
	"github.com/lk2023060901/rmarshal-go/pkg/util/merr"
)

// Config 为编解码的可配置项，对应配置文件中的 marshal 小节。
type Config struct {
	// MaxDepth 为嵌套深度预算，0 表示使用 DefaultMaxDepth。
	MaxDepth int `mapstructure:"max_depth" json:"max_depth" yaml:"max_depth"`
	// Strict 表示解码时是否拒绝未登记的类名。
	Strict bool `mapstructure:"strict" json:"strict" yaml:"strict"`
	// Freeze 表示解码结果是否标记为冻结。
	Freeze bool `mapstructure:"freeze" json:"freeze" yaml:"freeze"`
	// BatchConcurrency 为批量接口的并发度，0 表示使用 CPU 核数。
	BatchConcurrency int `mapstructure:"batch_concurrency" json:"batch_concurrency" yaml:"batch_concurrency"`
}

// DefaultConfig 返回缺省配置。
func DefaultConfig() Config {
	return Config{MaxDepth: DefaultMaxDepth}
}

// Validate 检查配置取值。
func (c Config) Validate() error {
	if c.MaxDepth < 0 {
		return merr.WrapErrParameterInvalidRange(0, 1<<20, c.MaxDepth, "marshal.max_depth")
	}
	if c.BatchConcurrency < 0 {
		return merr.WrapErrParameterInvalidRange(0, 1<<16, c.BatchConcurrency, "marshal.batch_concurrency")
	}
	return nil
}

// Options 将配置转换为会话选项。
func (c Config) Options() []Option {
	return []Option{
		WithMaxDepth(c.MaxDepth),
		WithStrict(c.Strict),
		WithFreeze(c.Freeze),
	}
}
