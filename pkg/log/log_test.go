package log

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestInitTestLogger(t *testing.T) {
	lg, props, err := InitTestLogger(t, &Config{Level: "info", Format: "json"})
	require.NoError(t, err)
	require.NotNil(t, props)
	assert.Equal(t, zapcore.InfoLevel, props.Level.Level())
	lg.Info("marshal session finished", FieldOperation("dump"), zap.Int("bytes", 12))
	assert.False(t, props.Core.Enabled(zapcore.DebugLevel))
}

func TestInitLoggerBadLevel(t *testing.T) {
	_, _, err := InitTestLogger(t, &Config{Level: "loud"})
	assert.Error(t, err)
}

func TestBinderFallback(t *testing.T) {
	var b Binder
	assert.NotNil(t, b.Logger())

	lg, props, err := InitTestLogger(t, &Config{Level: "debug"})
	require.NoError(t, err)
	ml := &MLogger{Logger: lg}
	b.SetLogger(ml)
	assert.Same(t, ml, b.Logger())
	assert.Equal(t, zapcore.DebugLevel, props.Level.Level())
}

func TestRatedWarn(t *testing.T) {
	lg, _, err := InitTestLogger(t, &Config{Level: "debug"})
	require.NoError(t, err)
	ml := (&MLogger{Logger: lg}).WithRateGroup("test.rated", 1, 1)
	assert.True(t, ml.RatedWarn(1, "first warn passes"))
	assert.False(t, ml.RatedWarn(1, "second warn is dropped"))
}

func TestCtxFields(t *testing.T) {
	assert.NotNil(t, Ctx(nil)) //nolint:staticcheck
	ctx := WithModule(context.Background(), "marshal")
	l1 := Ctx(ctx)
	assert.NotNil(t, l1)
	assert.Same(t, l1, Ctx(ctx))

	ctx2 := WithFields(ctx, zap.String("traceID", "abc"))
	assert.NotSame(t, l1, Ctx(ctx2))
	assert.Same(t, l1, Ctx(ctx))
}

func TestDefaultLevel(t *testing.T) {
	assert.True(t, L().Core().Enabled(zapcore.InfoLevel))
	assert.False(t, L().Core().Enabled(zapcore.DebugLevel))
	assert.False(t, With(FieldModule("marshal")).Core().Enabled(zapcore.DebugLevel))
}

func TestCleanup(t *testing.T) {
	var order []int
	RegisterCleanup(func() { order = append(order, 1) })
	RegisterCleanup(func() { order = append(order, 2) })
	Cleanup()
	assert.Equal(t, []int{2, 1}, order)

	Cleanup()
	assert.Equal(t, []int{2, 1}, order)
}

func TestLimiterFromEnv(t *testing.T) {
	t.Setenv("ZEUS_LOG_RATE_ENABLE", "")
	assert.IsType(t, nopRateLimiter{}, limiterFromEnv())

	t.Setenv("ZEUS_LOG_RATE_ENABLE", "true")
	t.Setenv("ZEUS_LOG_RATE_CREDIT_PER_SECOND", "1")
	t.Setenv("ZEUS_LOG_RATE_MAX_BALANCE", "2")
	rl := limiterFromEnv()
	assert.True(t, rl.CheckCredit(2))
	assert.False(t, rl.CheckCredit(2))
}

func TestNewZapEncoder(t *testing.T) {
	assert.NotNil(t, newZapEncoder(&Config{Format: "json"}))
	assert.NotNil(t, newZapEncoder(&Config{Format: "text", DisableTimestamp: true}))
}
