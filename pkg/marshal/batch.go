package marshal

import (
	"context"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/lk2023060901/rmarshal-go/pkg/log"
	"github.com/lk2023060901/rmarshal-go/pkg/metrics"
	"github.com/lk2023060901/rmarshal-go/pkg/util/conc"
)

// Batcher 在协程池上并发执行互相独立的编解码会话，结果顺序与输入一致。
type Batcher struct {
	log.Binder

	pool *conc.Pool[any]
	opts []Option
}

// NewBatcher 创建并发度为 concurrency 的 Batcher，<= 0 时使用 CPU 核数。
func NewBatcher(concurrency int, opts ...Option) *Batcher {
	b := &Batcher{
		pool: conc.NewPool[any](concurrency,
			conc.WithName("marshal.batch"),
			conc.WithConcealPanic(true)),
		opts: opts,
	}
	b.SetLogger(newOptions(opts...).logger.With(log.FieldComponent("batcher")))
	return b
}

// MarshalAll 编码全部值。任一会话失败时返回第一个错误。
func (b *Batcher) MarshalAll(ctx context.Context, values []Value) ([][]byte, error) {
	futures := make([]*conc.Future[any], 0, len(values))
	for _, v := range values {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v := v
		futures = append(futures, b.submit(func() (any, error) {
			return Marshal(v, b.opts...)
		}))
	}
	if err := conc.AwaitAll(futures...); err != nil {
		b.Logger().Warn("batch marshal failed", zap.Int("size", len(values)), zap.Error(err))
		return nil, err
	}
	return lo.Map(futures, func(f *conc.Future[any], _ int) []byte {
		return f.Value().([]byte)
	}), nil
}

// UnmarshalAll 解码全部数据块。任一会话失败时返回第一个错误。
func (b *Batcher) UnmarshalAll(ctx context.Context, chunks [][]byte) ([]Value, error) {
	futures := make([]*conc.Future[any], 0, len(chunks))
	for _, data := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data := data
		futures = append(futures, b.submit(func() (any, error) {
			return Unmarshal(data, b.opts...)
		}))
	}
	if err := conc.AwaitAll(futures...); err != nil {
		b.Logger().Warn("batch unmarshal failed", zap.Int("size", len(chunks)), zap.Error(err))
		return nil, err
	}
	return lo.Map(futures, func(f *conc.Future[any], _ int) Value {
		return f.Value()
	}), nil
}

func (b *Batcher) submit(fn func() (any, error)) *conc.Future[any] {
	return b.pool.Submit(func() (any, error) {
		metrics.MarshalBatchInflight.Inc()
		defer metrics.MarshalBatchInflight.Dec()
		return fn()
	})
}

// Close 释放协程池。
func (b *Batcher) Close() {
	b.pool.Release()
}
