package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	assert.Equal(t, prometheus.DefaultRegisterer, GetRegisterer())

	r := prometheus.NewRegistry()
	Register(r)
	assert.Equal(t, prometheus.Registerer(r), GetRegisterer())

	MarshalSessionTotal.WithLabelValues(DumpLabel, SuccessLabel).Inc()
	StreamFrameTotal.WithLabelValues(OutboundLabel, SuccessLabel).Inc()
	assert.Equal(t, float64(1), testutil.ToFloat64(MarshalSessionTotal.WithLabelValues(DumpLabel, SuccessLabel)))

	families, err := r.Gather()
	require.NoError(t, err)
	names := make(map[string]struct{})
	for _, f := range families {
		names[f.GetName()] = struct{}{}
	}
	assert.Contains(t, names, "zeus_marshal_session_total")
	assert.Contains(t, names, "zeus_stream_frame_total")
}
