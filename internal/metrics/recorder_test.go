package metrics

import (
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopRecorderIsSafe(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.ObserveCompileDuration("local", time.Second)
	r.IncCompileOutcome("local", ResultSuccess)
	r.ObserveDispatchDuration(time.Second, true)
	r.ObservePollAttempts(3)
	r.SetSSESubscribers(1)
}

func TestNilPrometheusRecorderIsSafe(t *testing.T) {
	var p *PrometheusRecorder
	p.ObserveCompileDuration("local", time.Second)
	p.IncCompileOutcome("local", ResultFailed)
	p.ObserveDispatchDuration(time.Second, false)
	p.ObservePollAttempts(3)
	p.SetSSESubscribers(0)
}

func TestPrometheusRecorderCounters(t *testing.T) {
	reg := prom.NewRegistry()
	p := NewPrometheusRecorder(reg)

	p.IncCompileOutcome("github-actions", ResultSuccess)
	p.IncCompileOutcome("github-actions", ResultSuccess)
	p.IncCompileOutcome("local", ResultFailed)
	p.SetSSESubscribers(2)

	assert.Equal(t, 2.0, testutil.ToFloat64(p.compileOutcomes.WithLabelValues("github-actions", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.compileOutcomes.WithLabelValues("local", "failed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.sseSubscribers))
}

func TestPrometheusRecorderExposition(t *testing.T) {
	reg := prom.NewRegistry()
	p := NewPrometheusRecorder(reg)
	p.ObserveCompileDuration("local", 250*time.Millisecond)
	p.ObserveDispatchDuration(time.Second, true)
	p.ObservePollAttempts(5)

	families, err := reg.Gather()
	require.NoError(t, err)

	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	joined := strings.Join(names, ",")
	assert.Contains(t, joined, "agentify_compile_duration_seconds")
	assert.Contains(t, joined, "agentify_dispatch_duration_seconds")
	assert.Contains(t, joined, "agentify_poll_attempts")
}
