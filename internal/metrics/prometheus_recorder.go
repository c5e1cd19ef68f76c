package metrics

import (
	"net/http"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once             sync.Once
	compileDuration  *prom.HistogramVec
	compileOutcomes  *prom.CounterVec
	dispatchDuration *prom.HistogramVec
	pollAttempts     prom.Histogram
	sseSubscribers   prom.Gauge
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.compileDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "agentify",
			Name:      "compile_duration_seconds",
			Help:      "End-to-end compile duration by compilation method",
			Buckets:   prom.DefBuckets,
		}, []string{"method"})
		pr.compileOutcomes = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "agentify",
			Name:      "compile_outcomes_total",
			Help:      "Compile outcomes by method and result",
		}, []string{"method", "result"})
		pr.dispatchDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "agentify",
			Name:      "dispatch_duration_seconds",
			Help:      "Duration of remote workflow dispatch calls",
			Buckets:   prom.DefBuckets,
		}, []string{"result"})
		pr.pollAttempts = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "agentify",
			Name:      "poll_attempts",
			Help:      "Status poll attempts consumed before a job resolved",
			Buckets:   []float64{1, 2, 5, 10, 20, 40, 60},
		})
		pr.sseSubscribers = prom.NewGauge(prom.GaugeOpts{
			Namespace: "agentify",
			Name:      "sse_subscribers",
			Help:      "Currently connected progress event subscribers",
		})
		reg.MustRegister(pr.compileDuration, pr.compileOutcomes, pr.dispatchDuration, pr.pollAttempts, pr.sseSubscribers)
	})
	return pr
}

func (p *PrometheusRecorder) ObserveCompileDuration(method string, d time.Duration) {
	if p == nil || p.compileDuration == nil {
		return
	}
	p.compileDuration.WithLabelValues(method).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncCompileOutcome(method string, result ResultLabel) {
	if p == nil || p.compileOutcomes == nil {
		return
	}
	p.compileOutcomes.WithLabelValues(method, string(result)).Inc()
}

func (p *PrometheusRecorder) ObserveDispatchDuration(d time.Duration, success bool) {
	if p == nil || p.dispatchDuration == nil {
		return
	}
	res := "failed"
	if success {
		res = "success"
	}
	p.dispatchDuration.WithLabelValues(res).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObservePollAttempts(n int) {
	if p == nil || p.pollAttempts == nil {
		return
	}
	p.pollAttempts.Observe(float64(n))
}

func (p *PrometheusRecorder) SetSSESubscribers(n int) {
	if p == nil || p.sseSubscribers == nil {
		return
	}
	p.sseSubscribers.Set(float64(n))
}

// HTTPHandler returns an http.Handler serving Prometheus metrics for the
// provided registry.
func HTTPHandler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
