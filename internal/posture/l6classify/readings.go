package l6classify

import "github.com/banshee-data/posture.report/internal/posture/l3metrics"

// Reading is one smoothed metric tagged for the renderer.
type Reading struct {
	Metric    l3metrics.Metric `json:"metric"`
	Value     float64          `json:"value"`
	Triggered bool             `json:"triggered"`
}

// IssueReading is the per-issue summary line shown to the user.
type IssueReading struct {
	Issue     Issue   `json:"issue"`
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
	Triggered bool    `json:"triggered"`
}

// Readings tags every smoothed metric with whether it currently triggers.
func Readings(s l3metrics.Values, c Config) [l3metrics.NumMetrics]Reading {
	var out [l3metrics.NumMetrics]Reading
	for _, m := range l3metrics.All {
		out[m] = Reading{Metric: m, Value: s[m], Triggered: MetricTriggered(m, s, c)}
	}
	return out
}

// IssueReadings summarises each enabled issue.
func IssueReadings(s l3metrics.Values, c Config) []IssueReading {
	out := make([]IssueReading, 0, NumIssues)
	for _, i := range AllIssues {
		if !c.Enabled[i] {
			continue
		}
		out = append(out, IssueReading{
			Issue:     i,
			Value:     DisplayValue(i, s),
			Threshold: c.Thresholds[i],
			Triggered: Triggered(i, s, c),
		})
	}
	return out
}
