package application

import (
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	zlog "github.com/lk2023060901/rmarshal-go/pkg/log"
	"github.com/lk2023060901/rmarshal-go/pkg/marshal"
	"github.com/lk2023060901/rmarshal-go/pkg/metrics"
	"github.com/lk2023060901/rmarshal-go/pkg/util/merr"
	zviper "github.com/lk2023060901/rmarshal-go/pkg/util/viper"
)

// envPrefix 为配置项环境变量覆盖的前缀，例如 ZEUS_MARSHAL_MAX_DEPTH。
const envPrefix = "ZEUS"

// Application 是进程级的运行时容器，负责加载配置、初始化日志与指标，
// 并向使用方提供编解码配置。
type Application struct {
	cfg        *zviper.Config
	loggers    map[string]*zlog.MLogger
	marshalCfg marshal.Config
	registerer prometheus.Registerer
}

// Option 用于定制 Application。
type Option func(*Application)

// WithRegisterer 指定指标注册使用的 Registerer，缺省为 prometheus.DefaultRegisterer。
func WithRegisterer(r prometheus.Registerer) Option {
	return func(a *Application) {
		a.registerer = r
	}
}

// New creates a new Application instance.
func New(opts ...Option) *Application {
	a := &Application{marshalCfg: marshal.DefaultConfig()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run 使用 os.Args 启动应用。配置文件路径的优先级：
//  1. Default: ./config.yaml
//  2. Env: ZEUS_CONFIG_FILE_PATH
//  3. CLI: --config <path> or --config=<path>
func (a *Application) Run() error {
	return a.RunWithArgs(os.Args[1:])
}

// RunWithArgs 与 Run 相同，但使用给定的命令行参数。
func (a *Application) RunWithArgs(args []string) error {
	cfg, err := a.loadConfig(args)
	if err != nil {
		return err
	}
	a.cfg = cfg

	if err := a.initLogging(); err != nil {
		return err
	}
	if err := a.initMarshal(); err != nil {
		return err
	}
	a.initMetrics()

	zlog.Info("application started",
		zap.Int("marshalMaxDepth", a.marshalCfg.MaxDepth),
		zap.Bool("marshalStrict", a.marshalCfg.Strict))
	return nil
}

// Close 刷出全局日志并关闭日志文件。
func (a *Application) Close() {
	_ = zlog.Sync()
	zlog.Cleanup()
}

// Config returns the loaded configuration, if any.
func (a *Application) Config() *zviper.Config {
	return a.cfg
}

// Logger returns a named logger created from configuration.
// If the name is unknown, it falls back to the global logger.
func (a *Application) Logger(name string) *zlog.MLogger {
	if lg, ok := a.loggers[name]; ok && lg != nil {
		return lg
	}
	return &zlog.MLogger{Logger: zlog.L()}
}

// MarshalConfig 返回 marshal 小节的配置。
func (a *Application) MarshalConfig() marshal.Config {
	return a.marshalCfg
}

// MarshalOptions 返回由配置生成的编解码选项，registry 可为 nil。
// 若配置了名为 marshal 的模块日志，则会话日志输出到该 Logger。
func (a *Application) MarshalOptions(registry *marshal.Registry) []marshal.Option {
	opts := a.marshalCfg.Options()
	if registry != nil {
		opts = append(opts, marshal.WithRegistry(registry))
	}
	if lg, ok := a.loggers["marshal"]; ok {
		opts = append(opts, marshal.WithLogger(lg))
	}
	return opts
}

// NewBatcher 按配置的并发度创建 Batcher，调用方负责 Close。
func (a *Application) NewBatcher(registry *marshal.Registry) *marshal.Batcher {
	return marshal.NewBatcher(a.marshalCfg.BatchConcurrency, a.MarshalOptions(registry)...)
}

// loadConfig resolves config file path and loads it via viper wrapper.
func (a *Application) loadConfig(args []string) (*zviper.Config, error) {
	configPath := "./config.yaml"

	if envPath := os.Getenv("ZEUS_CONFIG_FILE_PATH"); envPath != "" {
		configPath = envPath
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--config" {
			if i+1 >= len(args) {
				return nil, merr.WrapErrParameterMissing("--config", "missing value after --config")
			}
			configPath = args[i+1]
			i++
			continue
		}
		if val, ok := strings.CutPrefix(arg, "--config="); ok && val != "" {
			configPath = val
		}
	}

	cfg := zviper.New()
	defaults := marshal.DefaultConfig()
	cfg.SetDefault("marshal.max_depth", defaults.MaxDepth)
	cfg.SetDefault("marshal.strict", defaults.Strict)
	cfg.SetDefault("marshal.freeze", defaults.Freeze)
	cfg.SetDefault("marshal.batch_concurrency", defaults.BatchConcurrency)
	cfg.BindEnv(envPrefix)

	if err := cfg.LoadFile(configPath); err != nil {
		return nil, errors.Wrapf(err, "failed to load config file %q", configPath)
	}
	return cfg, nil
}

// initLogging initializes global and module-level loggers.
func (a *Application) initLogging() error {
	if err := a.initGlobalLoggerFromEnv(); err != nil {
		return err
	}
	return a.initModuleLoggersFromConfig()
}

// initGlobalLoggerFromEnv configures the process-wide logger based on ZEUS_LOG_* env vars.
//
//   - ZEUS_LOG_ENABLE: "1"/"true" to enable outputs; others treated as disabled.
//   - ZEUS_LOG_LEVEL: log level (default "info").
//   - ZEUS_LOG_STDOUT: whether to log to stdout (default false).
//   - ZEUS_LOG_FILE_DIR: log directory.
//   - ZEUS_LOG_FILE: log file name (empty means no file).
//   - ZEUS_LOG_FORMAT: log format ("console" or "json", default "console").
func (a *Application) initGlobalLoggerFromEnv() error {
	if !getenvBool("ZEUS_LOG_ENABLE", false) {
		return nil
	}

	cfg := &zlog.Config{
		Level:               getenvDefault("ZEUS_LOG_LEVEL", "info"),
		Format:              getenvDefault("ZEUS_LOG_FORMAT", "console"),
		Stdout:              getenvBool("ZEUS_LOG_STDOUT", false),
		DisableErrorVerbose: true,
		File: zlog.FileLogConfig{
			RootPath: getenvDefault("ZEUS_LOG_FILE_DIR", ""),
			Filename: getenvDefault("ZEUS_LOG_FILE", ""),
		},
	}

	logger, props, err := zlog.InitLogger(cfg)
	if err != nil {
		return errors.Wrap(err, "init global logger from env")
	}
	zlog.ReplaceGlobals(logger, props)
	return nil
}

// initModuleLoggersFromConfig creates named loggers from YAML config under "logging" key.
//
// Example:
//
//	logging:
//	  marshal:
//	    level: debug
//	    stdout: true
//	    file:
//	      rootpath: ./logs
//	      filename: marshal.log
func (a *Application) initModuleLoggersFromConfig() error {
	raw := make(map[string]zlog.Config)
	if err := a.cfg.UnmarshalKey("logging", &raw); err != nil {
		return err
	}
	if len(raw) == 0 {
		return nil
	}

	a.loggers = make(map[string]*zlog.MLogger, len(raw))
	for name, lc := range raw {
		cfgCopy := lc
		logger, _, err := zlog.InitLogger(&cfgCopy)
		if err != nil {
			return errors.Wrapf(err, "init module logger %q", name)
		}
		a.loggers[name] = &zlog.MLogger{Logger: logger.With(zlog.FieldModule(name))}
	}
	return nil
}

// initMarshal 读取并校验 marshal 小节。
// 通过完整反序列化读取，使环境变量覆盖对嵌套 key 生效。
func (a *Application) initMarshal() error {
	settings := struct {
		Marshal marshal.Config `mapstructure:"marshal"`
	}{Marshal: marshal.DefaultConfig()}
	if err := a.cfg.Unmarshal(&settings); err != nil {
		return errors.Wrap(err, "decode marshal config")
	}
	if err := settings.Marshal.Validate(); err != nil {
		return err
	}
	a.marshalCfg = settings.Marshal
	return nil
}

func (a *Application) initMetrics() {
	r := a.registerer
	if r == nil {
		r = metrics.GetRegisterer()
	}
	metrics.Register(r)
}

func getenvDefault(key, def string) string {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return def
	}
	return val
}

func getenvBool(key string, def bool) bool {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return def
	}
	switch strings.ToLower(val) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}
