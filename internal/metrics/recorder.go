// Package metrics defines observability hooks for the compile service.
package metrics

import "time"

// ResultLabel enumerates compile result categories for counters.
type ResultLabel string

const (
	ResultSuccess ResultLabel = "success"
	ResultFailed  ResultLabel = "failed"
	ResultTimeout ResultLabel = "timeout"
)

// Recorder defines observability hooks for compile, dispatch, and polling
// metrics. All methods must be safe on nil receivers when using the
// NoopRecorder (allowing optional injection).
type Recorder interface {
	ObserveCompileDuration(method string, d time.Duration)
	IncCompileOutcome(method string, result ResultLabel)
	ObserveDispatchDuration(d time.Duration, success bool)
	ObservePollAttempts(n int)
	SetSSESubscribers(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are
// not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveCompileDuration(string, time.Duration) {}
func (NoopRecorder) IncCompileOutcome(string, ResultLabel)        {}
func (NoopRecorder) ObserveDispatchDuration(time.Duration, bool)  {}
func (NoopRecorder) ObservePollAttempts(int)                      {}
func (NoopRecorder) SetSSESubscribers(int)                        {}
