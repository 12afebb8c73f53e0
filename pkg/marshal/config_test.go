package marshal

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lk2023060901/rmarshal-go/pkg/util/merr"
)

func TestConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultMaxDepth, cfg.MaxDepth)

	cfg.MaxDepth = -1
	assert.ErrorIs(t, cfg.Validate(), merr.ErrParameterInvalid)

	cfg = Config{MaxDepth: 2, Strict: true, Freeze: true}
	o := newOptions(cfg.Options()...)
	assert.Equal(t, 2, o.maxDepth)
	assert.True(t, o.strict)
	assert.True(t, o.freeze)

	o = newOptions(WithMaxDepth(0))
	assert.Equal(t, DefaultMaxDepth, o.maxDepth)
	assert.NotNil(t, o.logger)
}
