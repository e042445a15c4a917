package l6classify

import (
	"fmt"
	"math"

	"github.com/banshee-data/posture.report/internal/posture/l3metrics"
)

// Issue is a posture problem label. Declaration order is evaluation,
// display and notification order.
type Issue int

const (
	Slouching Issue = iota
	UnevenShoulders
	HeadTilted
	NeckForward
	ShouldersForward

	NumIssues
)

var issueLabels = [NumIssues]string{
	Slouching:        "Slouching",
	UnevenShoulders:  "Uneven Shoulders",
	HeadTilted:       "Head Tilted",
	NeckForward:      "Neck Forward",
	ShouldersForward: "Shoulders Forward",
}

// AllIssues lists every issue in evaluation order.
var AllIssues = []Issue{Slouching, UnevenShoulders, HeadTilted, NeckForward, ShouldersForward}

func (i Issue) String() string {
	if i >= 0 && i < NumIssues {
		return issueLabels[i]
	}
	return fmt.Sprintf("Issue(%d)", int(i))
}

func (i Issue) MarshalText() ([]byte, error) { return []byte(i.String()), nil }

func (i *Issue) UnmarshalText(b []byte) error {
	v, err := ParseIssue(string(b))
	if err != nil {
		return err
	}
	*i = v
	return nil
}

// ParseIssue maps a label back to its issue.
func ParseIssue(s string) (Issue, error) {
	for i, label := range issueLabels {
		if label == s {
			return Issue(i), nil
		}
	}
	return 0, fmt.Errorf("unknown issue %q", s)
}

// Config is the threshold set and enable flags of a metric preset.
type Config struct {
	Thresholds [NumIssues]float64
	Enabled    [NumIssues]bool
}

// DefaultConfig returns the "Default" preset with every issue enabled.
func DefaultConfig() Config {
	return Config{
		Thresholds: [NumIssues]float64{
			Slouching:        400,
			UnevenShoulders:  150,
			HeadTilted:       10,
			NeckForward:      30,
			ShouldersForward: 400,
		},
		Enabled: [NumIssues]bool{true, true, true, true, true},
	}
}

type comparison int

const (
	above    comparison = iota // v > T
	belowNeg                   // v < -T
	absAbove                   // |v| > T
)

type condition struct {
	issue  Issue
	metric l3metrics.Metric
	cmp    comparison
}

// conditions is the single rule table. An issue triggers when any of its
// rows holds.
var conditions = []condition{
	{Slouching, l3metrics.ShoulderForward, above},
	{Slouching, l3metrics.RelativeShoulderY, belowNeg},
	{UnevenShoulders, l3metrics.ShoulderAsymmetry, above},
	{HeadTilted, l3metrics.HeadTilt, absAbove},
	{NeckForward, l3metrics.NeckAngle, above},
	{ShouldersForward, l3metrics.ShoulderForward, above},
}

func (c condition) holds(v, threshold float64) bool {
	switch c.cmp {
	case above:
		return v > threshold
	case belowNeg:
		return v < -threshold
	case absAbove:
		return math.Abs(v) > threshold
	}
	return false
}

// Triggered reports whether issue i exceeds its threshold, ignoring the
// enable flag.
func Triggered(i Issue, s l3metrics.Values, c Config) bool {
	for _, cond := range conditions {
		if cond.issue == i && cond.holds(s[cond.metric], c.Thresholds[i]) {
			return true
		}
	}
	return false
}

// Classify returns the enabled, triggered issues in evaluation order.
func Classify(s l3metrics.Values, c Config) []Issue {
	var out []Issue
	for _, i := range AllIssues {
		if c.Enabled[i] && Triggered(i, s, c) {
			out = append(out, i)
		}
	}
	return out
}

// MetricTriggered reports whether metric m satisfies any condition of an
// enabled issue. Metrics with no threshold never trigger.
func MetricTriggered(m l3metrics.Metric, s l3metrics.Values, c Config) bool {
	for _, cond := range conditions {
		if cond.metric == m && c.Enabled[cond.issue] && cond.holds(s[m], c.Thresholds[cond.issue]) {
			return true
		}
	}
	return false
}

// DisplayValue is the single number shown for an issue. Slouching shows the
// larger of its two indicators.
func DisplayValue(i Issue, s l3metrics.Values) float64 {
	switch i {
	case Slouching:
		drop := 0.0
		if s[l3metrics.RelativeShoulderY] < 0 {
			drop = -s[l3metrics.RelativeShoulderY]
		}
		return math.Max(s[l3metrics.ShoulderForward], drop)
	case UnevenShoulders:
		return s[l3metrics.ShoulderAsymmetry]
	case HeadTilted:
		return s[l3metrics.HeadTilt]
	case NeckForward:
		return s[l3metrics.NeckAngle]
	case ShouldersForward:
		return s[l3metrics.ShoulderForward]
	}
	return 0
}
