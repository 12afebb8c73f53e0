// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxLoggerKey struct{}

// Info 使用全局 Logger 输出 Info 日志。
func Info(msg string, fields ...zap.Field) {
	L().Info(msg, fields...)
}

// Warn 使用全局 Logger 输出 Warn 日志。
func Warn(msg string, fields ...zap.Field) {
	L().Warn(msg, fields...)
}

// Error 使用全局 Logger 输出 Error 日志。
func Error(msg string, fields ...zap.Field) {
	L().Error(msg, fields...)
}

// With 基于全局 Logger 创建携带 fields 的 MLogger。字段延迟到首次输出时编码。
func With(fields ...zap.Field) *MLogger {
	return &MLogger{Logger: direct().WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return NewLazyWith(core, fields)
	}))}
}

// direct 返回去掉包级函数那层调用栈的全局 Logger。
func direct() *zap.Logger {
	return L().WithOptions(zap.AddCallerSkip(-1))
}

// WithModule 返回在 ctx 的 Logger 上附加模块名的上下文。
func WithModule(ctx context.Context, module string) context.Context {
	return WithFields(ctx, FieldModule(module))
}

// WithFields 返回在 ctx 的 Logger 上附加 fields 的上下文。
func WithFields(ctx context.Context, fields ...zap.Field) context.Context {
	return context.WithValue(ctx, ctxLoggerKey{}, &MLogger{Logger: Ctx(ctx).Logger.With(fields...)})
}

// NewIntentContext 开启名为 intent 的 span，并返回带有 role、intent、traceID 字段的上下文。
func NewIntentContext(name string, intent string) (context.Context, trace.Span) {
	ctx, span := otel.Tracer(name).Start(context.Background(), intent)
	ctx = WithFields(ctx,
		zap.String("role", name),
		zap.String("intent", intent),
		zap.String("traceID", span.SpanContext().TraceID().String()))
	return ctx, span
}

// Ctx 返回 ctx 上绑定的 Logger，没有时返回全局 Logger。
func Ctx(ctx context.Context) *MLogger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxLoggerKey{}).(*MLogger); ok {
			return l
		}
	}
	return &MLogger{Logger: direct()}
}
