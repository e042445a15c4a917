package testutil

import (
	"time"

	"github.com/banshee-data/posture.report/internal/posture/l1landmarks"
)

// FaceMeshSize is the landmark count of a full face mesh with irises.
const FaceMeshSize = 478

// PoseSize is the BlazePose landmark count.
const PoseSize = 33

// FrameSpec describes a synthetic body. Every point is fully visible unless
// Visibility is set.
type FrameSpec struct {
	Timestamp time.Time

	FaceZ, FaceY         float64
	ShoulderZ, ShoulderY float64
	HipZ                 float64

	// ShoulderTilt lowers the right shoulder and raises the left one by half
	// the value each, so |left.Y - right.Y| == |ShoulderTilt|.
	ShoulderTilt float64

	// TempleDY is left temple Y minus right temple Y.
	TempleDY float64

	// Visibility applies to every landmark. Zero means 0.99.
	Visibility float64

	NoFace bool
	NoPose bool
}

// Upright returns a spec of a centred, upright sitter.
func Upright() FrameSpec {
	return FrameSpec{
		FaceZ:     -0.05,
		FaceY:     0.30,
		ShoulderZ: 0.10,
		ShoulderY: 0.60,
		HipZ:      0.20,
	}
}

// Frame builds a detector frame matching spec. The stabilizer reproduces
// FaceZ/FaceY, ShoulderZ/ShoulderY and (ShoulderZ+HipZ)/2 exactly when every
// landmark is usable.
func Frame(spec FrameSpec) *l1landmarks.Frame {
	vis := spec.Visibility
	if vis == 0 {
		vis = 0.99
	}
	f := &l1landmarks.Frame{Timestamp: spec.Timestamp}
	mk := func(x, y, z float64) l1landmarks.Landmark {
		return l1landmarks.Landmark{X: x, Y: y, Z: z, Visibility: vis, Presence: vis}
	}

	if !spec.NoFace {
		f.Face = make([]l1landmarks.Landmark, FaceMeshSize)
		for i := range f.Face {
			f.Face[i] = mk(0.5, spec.FaceY, spec.FaceZ)
		}
		// The left temple is part of every face index set, so only the
		// right one moves.
		f.Face[l1landmarks.FaceLeftTemple] = mk(0.4, spec.FaceY, spec.FaceZ)
		f.Face[l1landmarks.FaceRightTemple] = mk(0.6, spec.FaceY-spec.TempleDY, spec.FaceZ)
	}

	if !spec.NoPose {
		f.Pose = make([]l1landmarks.Landmark, PoseSize)
		for i := range f.Pose {
			f.Pose[i] = mk(0.5, spec.ShoulderY, spec.ShoulderZ)
		}
		leftY := spec.ShoulderY - spec.ShoulderTilt/2
		rightY := spec.ShoulderY + spec.ShoulderTilt/2
		f.Pose[l1landmarks.PoseLeftShoulder] = mk(0.4, leftY, spec.ShoulderZ)
		f.Pose[l1landmarks.PoseRightShoulder] = mk(0.6, rightY, spec.ShoulderZ)
		// Ear/elbow midpoints coincide with their shoulder.
		f.Pose[l1landmarks.PoseLeftEar] = mk(0.4, leftY-0.2, spec.ShoulderZ)
		f.Pose[l1landmarks.PoseLeftElbow] = mk(0.4, leftY+0.2, spec.ShoulderZ)
		f.Pose[l1landmarks.PoseRightEar] = mk(0.6, rightY-0.2, spec.ShoulderZ)
		f.Pose[l1landmarks.PoseRightElbow] = mk(0.6, rightY+0.2, spec.ShoulderZ)
		f.Pose[l1landmarks.PoseLeftHip] = mk(0.4, 0.9, spec.HipZ)
		f.Pose[l1landmarks.PoseRightHip] = mk(0.6, 0.9, spec.HipZ)
	}
	return f
}
