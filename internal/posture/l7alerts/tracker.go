package l7alerts

import (
	"fmt"
	"time"

	"github.com/banshee-data/posture.report/internal/posture/l6classify"
)

// Config sets the debounce timings.
type Config struct {
	MinDuration time.Duration // Sustained presence before alerting (default: 5s)
	Cooldown    time.Duration // Minimum gap between alerts of any issue (default: 30s)
}

// DefaultConfig returns 5s/30s.
func DefaultConfig() Config {
	return Config{MinDuration: 5 * time.Second, Cooldown: 30 * time.Second}
}

// Validate rejects negative durations.
func (c Config) Validate() error {
	if c.MinDuration < 0 {
		return fmt.Errorf("min duration must be >= 0, got %s", c.MinDuration)
	}
	if c.Cooldown < 0 {
		return fmt.Errorf("cooldown must be >= 0, got %s", c.Cooldown)
	}
	return nil
}

// State is the per-issue notification state.
type State int

const (
	Inactive State = iota
	Pending
	Notified
)

func (s State) String() string {
	switch s {
	case Inactive:
		return "inactive"
	case Pending:
		return "pending"
	case Notified:
		return "notified"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// EventKind distinguishes the two outbound events.
type EventKind int

const (
	EventAlert EventKind = iota
	EventBackToNormal
)

func (k EventKind) String() string {
	if k == EventBackToNormal {
		return "back_to_normal"
	}
	return "alert"
}

func (k EventKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Event is a notification decision.
type Event struct {
	Kind EventKind `json:"kind"`
	At   time.Time `json:"at"`

	// Issue and Present are only meaningful for EventAlert.
	Issue   l6classify.Issue `json:"issue"`
	Present time.Duration    `json:"present_ns"`
}

// Episode is one resolved stretch of a single issue.
type Episode struct {
	Issue   l6classify.Issue `json:"issue"`
	Start   time.Time        `json:"start"`
	End     time.Time        `json:"end"`
	Alerted bool             `json:"alerted"`
}

// Duration is End minus Start.
func (e Episode) Duration() time.Duration { return e.End.Sub(e.Start) }

// Outcome is the result of one evaluation.
type Outcome struct {
	Event    *Event
	Resolved []Episode
}

type onset struct {
	active  bool
	since   time.Time
	alerted bool
}

// Tracker is the notification state machine. It is not safe for concurrent
// use.
type Tracker struct {
	cfg Config

	onsets [l6classify.NumIssues]onset
	totals [l6classify.NumIssues]time.Duration

	lastNotification time.Time
	hasNotified      bool

	inBad        bool
	negativeSent bool
}

// NewTracker returns a tracker with nothing pending.
func NewTracker(cfg Config) *Tracker {
	return &Tracker{cfg: cfg}
}

// SetConfig changes the timings. Pending onsets keep their timestamps.
func (t *Tracker) SetConfig(cfg Config) { t.cfg = cfg }

// Config returns the active timings.
func (t *Tracker) Config() Config { return t.cfg }

// Evaluate folds the current issue list into the state machine.
func (t *Tracker) Evaluate(issues []l6classify.Issue, now time.Time) Outcome {
	var out Outcome
	var present [l6classify.NumIssues]bool
	for _, i := range issues {
		present[i] = true
	}

	if t.inBad && len(issues) == 0 {
		if t.negativeSent {
			out.Event = &Event{Kind: EventBackToNormal, At: now}
			t.negativeSent = false
		}
		t.inBad = false
		out.Resolved = t.resolveAbsent(present, now)
		return out
	}
	if len(issues) > 0 {
		t.inBad = true
	}
	out.Resolved = t.resolveAbsent(present, now)

	for _, i := range issues {
		if !t.onsets[i].active {
			t.onsets[i] = onset{active: true, since: now}
		}
	}

	if !t.cooldownElapsed(now) {
		return out
	}
	for _, i := range issues {
		o := &t.onsets[i]
		if now.Sub(o.since) < t.cfg.MinDuration {
			continue
		}
		o.alerted = true
		t.lastNotification = now
		t.hasNotified = true
		t.negativeSent = true
		out.Event = &Event{Kind: EventAlert, At: now, Issue: i, Present: now.Sub(o.since)}
		break
	}
	return out
}

// MarkNotified starts a cooldown without an issue, as a manual test alert
// does.
func (t *Tracker) MarkNotified(now time.Time) {
	t.lastNotification = now
	t.hasNotified = true
}

func (t *Tracker) cooldownElapsed(now time.Time) bool {
	return !t.hasNotified || now.Sub(t.lastNotification) >= t.cfg.Cooldown
}

func (t *Tracker) resolveAbsent(present [l6classify.NumIssues]bool, now time.Time) []Episode {
	var eps []Episode
	for i := range t.onsets {
		o := t.onsets[i]
		if !o.active || present[i] {
			continue
		}
		ep := Episode{Issue: l6classify.Issue(i), Start: o.since, End: now, Alerted: o.alerted}
		t.totals[i] += ep.Duration()
		t.onsets[i] = onset{}
		eps = append(eps, ep)
	}
	return eps
}

// Flush resolves every open episode without emitting events, for shutdown.
func (t *Tracker) Flush(now time.Time) []Episode {
	t.inBad = false
	return t.resolveAbsent([l6classify.NumIssues]bool{}, now)
}

// State returns the state of issue i.
func (t *Tracker) State(i l6classify.Issue) State {
	o := t.onsets[i]
	switch {
	case !o.active:
		return Inactive
	case o.alerted:
		return Notified
	default:
		return Pending
	}
}

// Since returns the onset time of an active issue.
func (t *Tracker) Since(i l6classify.Issue) (time.Time, bool) {
	o := t.onsets[i]
	return o.since, o.active
}

// Totals returns accumulated bad-posture time per issue. Open episodes are
// not included until they resolve.
func (t *Tracker) Totals() [l6classify.NumIssues]time.Duration { return t.totals }

// InBadPosture reports whether the last evaluation saw any issue.
func (t *Tracker) InBadPosture() bool { return t.inBad }

// NegativeSent reports whether an alert fired since posture was last good.
func (t *Tracker) NegativeSent() bool { return t.negativeSent }

// LastNotification returns the time of the last alert, if any.
func (t *Tracker) LastNotification() (time.Time, bool) {
	return t.lastNotification, t.hasNotified
}
