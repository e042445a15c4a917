// Package l1landmarks owns Layer 1 (Landmarks) of the posture data model.
//
// Responsibilities: the per-frame landmark sample types produced by an
// external detector, the visibility/presence gate, and the stabilizer that
// reduces many noisy samples to one face, shoulder and chest estimate.
// Key types: Landmark, Frame, Gate, Stabilizer, Positions.
//
// Dependency rule: L1 depends on nothing else in internal/posture.
package l1landmarks
