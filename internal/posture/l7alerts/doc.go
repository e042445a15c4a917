// Package l7alerts owns Layer 7 (Alerts) of the posture data model: the
// hysteresis state machine deciding when a posture alert or a "back to
// normal" event is due.
//
// Each issue moves Inactive -> Pending -> Notified. One global cooldown is
// shared by every issue, and at most one event is emitted per evaluation.
// The tracker only decides when and what; delivery belongs to the notifier.
package l7alerts
