// Package l6classify owns Layer 6 (Classification) of the posture data
// model.
//
// Responsibilities: the ordered issue labels, per-issue thresholds and
// enable flags, and one condition table that both the classifier and the
// per-metric "triggered" tags are computed from. Classification is stateless.
//
// Dependency rule: L6 may depend on L1-L5, but never on L7.
package l6classify
