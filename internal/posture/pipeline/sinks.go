package pipeline

import (
	"time"

	"github.com/banshee-data/posture.report/internal/posture/l2baseline"
	"github.com/banshee-data/posture.report/internal/posture/l3metrics"
	"github.com/banshee-data/posture.report/internal/posture/l6classify"
	"github.com/banshee-data/posture.report/internal/posture/l7alerts"
)

// AlertSink receives notification events. Notify is called on the runner
// goroutine and must not block; implementations queue and deliver
// elsewhere.
type AlertSink interface {
	Notify(ev l7alerts.Event)
}

// HistorySink persists session history. Its methods run on a dedicated
// goroutine fed by a bounded queue; errors are logged and dropped.
type HistorySink interface {
	RecordCalibration(b l2baseline.Baseline, r l2baseline.Report) error
	RecordEvent(ev l7alerts.Event) error
	RecordEpisodes(eps []l7alerts.Episode) error
}

// Sample is one freshly computed smoothed state.
type Sample struct {
	At       time.Time          `json:"at"`
	Smoothed l3metrics.Values   `json:"smoothed"`
	Issues   []l6classify.Issue `json:"issues"`
}

// SampleSink receives every processed sample, for live charts. AddSample
// is called on the runner goroutine and must not block.
type SampleSink interface {
	AddSample(s Sample)
}

// SampleSinks fans a sample out to several sinks in order.
type SampleSinks []SampleSink

func (s SampleSinks) AddSample(sample Sample) {
	for _, sink := range s {
		sink.AddSample(sample)
	}
}
