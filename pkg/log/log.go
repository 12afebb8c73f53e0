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
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/uber/jaeger-client-go/utils"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"gopkg.in/natefinch/lumberjack.v2"
)

// globals 是 ReplaceGlobals 整体替换的一组全局状态。
type globals struct {
	logger *zap.Logger
	props  *ZapProperties
}

var (
	_global  atomic.Pointer[globals]
	_limiter RateLimiter = nopRateLimiter{}

	_namedRateLimiters sync.Map

	_cleanupMu sync.Mutex
	_cleanups  []func()
)

// RateLimiter 控制限流日志的输出额度。
type RateLimiter interface {
	CheckCredit(delta float64) bool
}

type nopRateLimiter struct{}

func (nopRateLimiter) CheckCredit(float64) bool { return true }

func init() {
	ReplaceGlobals(newStdLogger())
	_limiter = limiterFromEnv()
}

// newStdLogger 构建缺省的全局 Logger：info 级别，输出到 stdout。
func newStdLogger() (*zap.Logger, *ZapProperties) {
	lg, props, _ := InitLogger(&Config{Level: "info", Stdout: true, DisableErrorVerbose: true},
		zap.OnFatal(zapcore.WriteThenPanic))
	return lg, props
}

// InitLogger 按 cfg 构建 Logger。配置了文件时写入滚动文件，
// 未配置文件或显式开启 Stdout 时同时写 stdout。
func InitLogger(cfg *Config, opts ...zap.Option) (*zap.Logger, *ZapProperties, error) {
	conf := *cfg
	if strings.EqualFold(conf.Level, "trace") {
		conf.Level = "debug"
	}

	var sinks []zapcore.WriteSyncer
	var closer func()
	if conf.File.Filename != "" {
		fl, err := newFileSink(&conf.File)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, zapcore.AddSync(fl))
		closer = func() { _ = fl.Close() }
	}
	if conf.Stdout || len(sinks) == 0 {
		stdout, _, err := zap.Open("stdout")
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, stdout)
	}

	lg, props, err := InitLoggerWithWriteSyncer(&conf, zap.CombineWriteSyncers(sinks...), opts...)
	if err != nil {
		return nil, nil, err
	}
	if closer != nil {
		RegisterCleanup(closer)
	}
	// 包级的 Info/Warn/Error 多一层调用栈。
	return lg.WithOptions(zap.AddCallerSkip(1)), props, nil
}

// InitTestLogger 构建写入 t.Log 的 Logger，zap 内部错误会使测试失败。
func InitTestLogger(t zaptest.TestingT, cfg *Config, opts ...zap.Option) (*zap.Logger, *ZapProperties, error) {
	opts = append([]zap.Option{zap.ErrorOutput(testingWriter{t: t, failOnWrite: true})}, opts...)
	return InitLoggerWithWriteSyncer(cfg, testingWriter{t: t}, opts...)
}

// InitLoggerWithWriteSyncer 构建输出到 output 的 Logger。
func InitLoggerWithWriteSyncer(cfg *Config, output zapcore.WriteSyncer, opts ...zap.Option) (*zap.Logger, *ZapProperties, error) {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, nil, errors.Wrapf(err, "invalid log level %q", cfg.Level)
	}
	core := zapcore.NewCore(newZapEncoder(cfg), output, level)
	lg := zap.New(core, append(cfg.buildOptions(output), opts...)...)
	return lg, &ZapProperties{Core: core, Syncer: output, Level: level}, nil
}

func newFileSink(cfg *FileLogConfig) (*lumberjack.Logger, error) {
	path := filepath.Join(cfg.RootPath, cfg.Filename)
	if st, err := os.Stat(path); err == nil && st.IsDir() {
		return nil, errors.Newf("log file %s is a directory", path)
	}
	maxSize := cfg.MaxSize
	if maxSize == 0 {
		maxSize = defaultLogMaxSize
	}
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxDays,
		LocalTime:  true,
	}, nil
}

// L 返回全局 Logger，并发安全。
func L() *zap.Logger {
	return _global.Load().logger
}

// R 返回全局限流器。未通过 ZEUS_LOG_RATE_ENABLE 开启时不限流。
func R() RateLimiter {
	return _limiter
}

// ReplaceGlobals 替换全局 Logger。
func ReplaceGlobals(logger *zap.Logger, props *ZapProperties) {
	_global.Store(&globals{logger: logger, props: props})
}

// RegisterCleanup 注册进程退出前由 Cleanup 执行的函数。
func RegisterCleanup(fn func()) {
	_cleanupMu.Lock()
	_cleanups = append(_cleanups, fn)
	_cleanupMu.Unlock()
}

// Cleanup 依注册的逆序执行清理函数，并清空列表。
func Cleanup() {
	_cleanupMu.Lock()
	fns := _cleanups
	_cleanups = nil
	_cleanupMu.Unlock()
	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
}

// Sync 刷出全局 Logger 的缓冲。
func Sync() error {
	return L().Sync()
}

// limiterFromEnv 读取 ZEUS_LOG_RATE_* 环境变量：
//
//   - ZEUS_LOG_RATE_ENABLE: 开启限流，缺省关闭。
//   - ZEUS_LOG_RATE_CREDIT_PER_SECOND: 每秒额度，缺省 1。
//   - ZEUS_LOG_RATE_MAX_BALANCE: 额度上限，缺省 60。
func limiterFromEnv() RateLimiter {
	if on, _ := strconv.ParseBool(strings.TrimSpace(os.Getenv("ZEUS_LOG_RATE_ENABLE"))); !on {
		return nopRateLimiter{}
	}
	return utils.NewRateLimiter(
		envFloat("ZEUS_LOG_RATE_CREDIT_PER_SECOND", 1),
		envFloat("ZEUS_LOG_RATE_MAX_BALANCE", 60))
}

func envFloat(key string, def float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv(key)), 64)
	if err != nil {
		return def
	}
	return f
}
