package metrics

import "time"

// ResultLabel enumerates build outcomes for counters.
type ResultLabel string

const (
	ResultSuccess   ResultLabel = "success"
	ResultFailed    ResultLabel = "failed"
	ResultTolerated ResultLabel = "tolerated"
	ResultCanceled  ResultLabel = "canceled"
)

// Recorder defines the observability hooks of a docstream run.
type Recorder interface {
	ObservePhaseDuration(phase string, d time.Duration)
	IncBuildResult(result ResultLabel)
	AddInputs(n int)
	AddOutputs(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are
// not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObservePhaseDuration(string, time.Duration) {}
func (NoopRecorder) IncBuildResult(ResultLabel)                 {}
func (NoopRecorder) AddInputs(int)                              {}
func (NoopRecorder) AddOutputs(int)                             {}
