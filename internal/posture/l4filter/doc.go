// Package l4filter owns Layer 4 (Noise Filter) of the posture data model.
//
// Responsibilities: the dead zone that zeroes sub-jitter depth readings and
// the statistical outlier rejector backed by fixed per-metric ring buffers.
//
// Dependency rule: L4 may depend on L1-L3, but never on L5+.
package l4filter
