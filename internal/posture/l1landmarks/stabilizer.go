package l1landmarks

import "fmt"

// Gate decides whether a landmark is trustworthy enough to use.
type Gate struct {
	MinVisibility float64
	MinPresence   float64
}

// DefaultGate returns the 0.7/0.7 gate.
func DefaultGate() Gate {
	return Gate{MinVisibility: 0.7, MinPresence: 0.7}
}

// Usable reports whether both confidence scores clear the gate.
func (g Gate) Usable(l Landmark) bool {
	return l.Visibility >= g.MinVisibility && l.Presence >= g.MinPresence
}

// Positions are the stabilized estimates for one frame, plus the raw
// landmarks later stages read directly.
type Positions struct {
	FaceZ, FaceY         float64
	ShoulderZ, ShoulderY float64
	ChestZ               float64

	LeftShoulder, RightShoulder Landmark

	// Temples are only set when the face mesh is dense enough to include them.
	HasTemples              bool
	LeftTemple, RightTemple Landmark
}

// Stabilizer reduces raw samples to stable positions. The zero value is not
// usable; construct with NewStabilizer.
type Stabilizer struct {
	gate        Gate
	faceIndices []int
}

// NewStabilizer returns a stabilizer averaging the given face index set.
func NewStabilizer(gate Gate, set FaceIndexSet) *Stabilizer {
	return &Stabilizer{gate: gate, faceIndices: set.Indices()}
}

// SetFaceIndexSet swaps the face averaging set between frames.
func (s *Stabilizer) SetFaceIndexSet(set FaceIndexSet) {
	s.faceIndices = set.Indices()
}

// SetGate replaces the visibility gate.
func (s *Stabilizer) SetGate(g Gate) { s.gate = g }

// Gate returns the active gate.
func (s *Stabilizer) Gate() Gate { return s.gate }

// FacePosition averages (z, y) over the usable landmarks of the active index
// set. With none usable it falls back to the nose tip, ignoring the gate.
func (s *Stabilizer) FacePosition(face []Landmark) (z, y float64, err error) {
	if len(face) == 0 {
		return 0, 0, fmt.Errorf("face position: %w", ErrUnavailable)
	}
	var sumZ, sumY float64
	n := 0
	for _, idx := range s.faceIndices {
		if idx >= len(face) {
			continue
		}
		l := face[idx]
		if !s.gate.Usable(l) {
			continue
		}
		sumZ += l.Z
		sumY += l.Y
		n++
	}
	if n > 0 {
		return sumZ / float64(n), sumY / float64(n), nil
	}
	if len(face) <= FaceNoseTip {
		return 0, 0, fmt.Errorf("face position: no nose tip: %w", ErrUnavailable)
	}
	nose := face[FaceNoseTip]
	return nose.Z, nose.Y, nil
}

// ShoulderPosition is a visibility-weighted average of up to four estimates:
// each shoulder, and the ear/elbow midpoint on each side. Without any usable
// estimate it falls back to the plain mean of the two shoulder points.
func (s *Stabilizer) ShoulderPosition(pose []Landmark) (Point, error) {
	if len(pose) < MinPoseLandmarks {
		return Point{}, fmt.Errorf("shoulder position: %d pose landmarks: %w", len(pose), ErrUnavailable)
	}
	ls, rs := pose[PoseLeftShoulder], pose[PoseRightShoulder]

	var sum Point
	var totalWeight float64
	add := func(p Point, w float64) {
		sum.X += p.X * w
		sum.Y += p.Y * w
		sum.Z += p.Z * w
		totalWeight += w
	}

	if s.gate.Usable(ls) {
		add(pointOf(ls), ls.Visibility)
	}
	if s.gate.Usable(rs) {
		add(pointOf(rs), rs.Visibility)
	}
	for _, side := range [2][2]int{{PoseLeftEar, PoseLeftElbow}, {PoseRightEar, PoseRightElbow}} {
		ear, elbow := pose[side[0]], pose[side[1]]
		if s.gate.Usable(ear) && s.gate.Usable(elbow) {
			add(midpoint(ear, elbow), (ear.Visibility+elbow.Visibility)/2)
		}
	}

	if totalWeight == 0 {
		return midpoint(ls, rs), nil
	}
	return Point{
		X: sum.X / totalWeight,
		Y: sum.Y / totalWeight,
		Z: sum.Z / totalWeight,
	}, nil
}

// ChestZ is the mean of the shoulder-pair and hip-pair depth midpoints. It is
// not gated.
func (s *Stabilizer) ChestZ(pose []Landmark) (float64, error) {
	if len(pose) < MinPoseLandmarks {
		return 0, fmt.Errorf("chest position: %w", ErrUnavailable)
	}
	shoulderZ := (pose[PoseLeftShoulder].Z + pose[PoseRightShoulder].Z) / 2
	hipZ := (pose[PoseLeftHip].Z + pose[PoseRightHip].Z) / 2
	return (shoulderZ + hipZ) / 2, nil
}

// Stabilize computes every position the metric stages need. It returns
// ErrUnavailable when either collection is missing.
func (s *Stabilizer) Stabilize(f *Frame) (Positions, error) {
	var p Positions
	if !f.HasFace() || !f.HasPose() {
		return p, ErrUnavailable
	}
	var err error
	if p.FaceZ, p.FaceY, err = s.FacePosition(f.Face); err != nil {
		return p, err
	}
	shoulder, err := s.ShoulderPosition(f.Pose)
	if err != nil {
		return p, err
	}
	p.ShoulderZ, p.ShoulderY = shoulder.Z, shoulder.Y
	if p.ChestZ, err = s.ChestZ(f.Pose); err != nil {
		return p, err
	}
	p.LeftShoulder = f.Pose[PoseLeftShoulder]
	p.RightShoulder = f.Pose[PoseRightShoulder]
	if len(f.Face) > FaceRightTemple {
		p.HasTemples = true
		p.LeftTemple = f.Face[FaceLeftTemple]
		p.RightTemple = f.Face[FaceRightTemple]
	}
	return p, nil
}

func pointOf(l Landmark) Point { return Point{X: l.X, Y: l.Y, Z: l.Z} }

func midpoint(a, b Landmark) Point {
	return Point{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2, Z: (a.Z + b.Z) / 2}
}
