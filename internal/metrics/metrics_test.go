package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m, err := New(prometheus.NewRegistry())
	require.NoError(t, err)

	m.Issued()
	m.Issued()
	m.Attempt("one", "hit")
	m.Rejected("too_short")
	m.Request("POST", "/api/basketball/validate", "200", 10*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ChallengesIssued))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Attempts.WithLabelValues("one", "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BehaviorRejections.WithLabelValues("too_short")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("POST", "/api/basketball/validate", "200")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Issued()
		m.Attempt("two", "miss")
		m.Rejected("low_jerk")
		m.LinkGenerated("default", true)
		m.Limited("/api/generate")
		m.Request("GET", "/", "200", time.Second)
	})
}

func TestRegisterTwiceOnSameRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)
	_, err = New(reg)
	require.NoError(t, err)
}
