package marshal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/lk2023060901/rmarshal-go/pkg/log"
)

func TestSessionLogging(t *testing.T) {
	assert.False(t, newOptions().logger.Core().Enabled(zapcore.DebugLevel))

	core, logs := observer.New(zapcore.InfoLevel)
	lg := &log.MLogger{Logger: zap.New(core)}

	for i := 0; i < 8; i++ {
		data, err := Marshal([]Value{i, "x"}, WithLogger(lg))
		require.NoError(t, err)
		_, err = Unmarshal(data, WithLogger(lg))
		require.NoError(t, err)
	}
	assert.Zero(t, logs.Len())

	_, err := Unmarshal(unhex("0408 3f"), WithLogger(lg))
	require.Error(t, err)
	failed := logs.FilterMessage("marshal session failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, zapcore.WarnLevel, failed[0].Level)
	assert.Equal(t, "input_error", failed[0].ContextMap()["errorType"])

	debugCore, debugLogs := observer.New(zapcore.DebugLevel)
	_, err = Marshal(1, WithLogger(&log.MLogger{Logger: zap.New(debugCore)}))
	require.NoError(t, err)
	assert.Equal(t, 1, debugLogs.FilterMessage("marshal session finished").Len())
}
