// Package l3metrics owns Layer 3 (Metrics) of the posture data model.
//
// Responsibilities: the fixed set of tracked posture metrics and the pure
// derivation of their raw, unscaled values from stabilized positions and a
// calibration baseline. Metrics are enum-indexed so later layers keep their
// per-metric state in arrays.
//
// Dependency rule: L3 may depend on L1-L2, but never on L4+.
package l3metrics
