// Package l2baseline owns Layer 2 (Baseline) of the posture data model.
//
// Responsibilities: capturing the calibration baseline from one frame and
// scoring how trustworthy that frame was. A baseline is either wholly set or
// absent; there is no partial calibration.
//
// Dependency rule: L2 may depend on L1, but never on L3+.
package l2baseline
