package l1landmarks

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnavailable is returned when a frame does not carry enough landmarks to
// produce a required position. Callers skip the frame; it is never fatal.
var ErrUnavailable = errors.New("landmarks unavailable")

// Landmark is a single detected anatomical point in normalised
// frame-relative coordinates, with detector confidence scores in [0,1].
type Landmark struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Visibility float64 `json:"visibility"`
	Presence   float64 `json:"presence"`
}

// Point is a plain 3D position.
type Point struct {
	X, Y, Z float64
}

// Frame is one detector output. Either collection may be empty.
type Frame struct {
	Timestamp time.Time  `json:"ts"`
	Face      []Landmark `json:"face,omitempty"`
	Pose      []Landmark `json:"pose,omitempty"`
}

// HasFace reports whether the frame carries a face collection.
func (f *Frame) HasFace() bool { return len(f.Face) > 0 }

// HasPose reports whether the frame carries a pose collection with every
// body role this package reads.
func (f *Frame) HasPose() bool { return len(f.Pose) >= MinPoseLandmarks }

// Pose landmark roles (BlazePose 33-point topology).
const (
	PoseNose          = 0
	PoseLeftEar       = 7
	PoseRightEar      = 8
	PoseLeftShoulder  = 11
	PoseRightShoulder = 12
	PoseLeftElbow     = 13
	PoseRightElbow    = 14
	PoseLeftHip       = 23
	PoseRightHip      = 24

	// MinPoseLandmarks is the smallest pose collection that defines every
	// role above.
	MinPoseLandmarks = 25
)

// Face mesh indices with a fixed meaning.
const (
	FaceNoseTip      = 1
	FaceLeftTemple   = 234
	FaceRightTemple  = 454
	faceQualitySlice = 10
)

// RequiredPoseRoles are the pose landmarks checked by calibration quality
// scoring, in report order.
var RequiredPoseRoles = []struct {
	Name  string
	Index int
}{
	{"Left Shoulder", PoseLeftShoulder},
	{"Right Shoulder", PoseRightShoulder},
	{"Left Ear", PoseLeftEar},
	{"Right Ear", PoseRightEar},
	{"Left Elbow", PoseLeftElbow},
	{"Right Elbow", PoseRightElbow},
	{"Left Hip", PoseLeftHip},
	{"Right Hip", PoseRightHip},
}

// FaceIndexSet selects how many face mesh points are averaged into the face
// position estimate.
type FaceIndexSet int

const (
	FaceIndexLow FaceIndexSet = iota
	FaceIndexMedium
	FaceIndexHigh
)

var faceIndices = map[FaceIndexSet][]int{
	FaceIndexLow: {1, 33, 168, 234, 283},
	FaceIndexMedium: {
		1, 2, 4, 9, 10, 33, 36, 39, 42, 45, 48, 103, 109, 151, 168,
		172, 175, 234, 236, 238, 241, 244, 250, 283, 284, 288, 296, 297, 300,
	},
	FaceIndexHigh: {
		1, 2, 4, 5, 6, 9, 10, 19, 20, 21, 33, 36, 39, 42, 45, 48,
		234, 236, 238, 241, 244, 250, 151, 168, 172, 175, 197,
		283, 284, 288, 291, 296, 297, 298, 300, 103, 107, 109, 332, 338,
	},
}

// Indices returns the face mesh indices of the set. The slice is shared and
// must not be modified.
func (s FaceIndexSet) Indices() []int {
	if idx, ok := faceIndices[s]; ok {
		return idx
	}
	return faceIndices[FaceIndexMedium]
}

// QualityIndices returns the leading indices used for calibration quality.
func (s FaceIndexSet) QualityIndices() []int {
	idx := s.Indices()
	if len(idx) > faceQualitySlice {
		return idx[:faceQualitySlice]
	}
	return idx
}

func (s FaceIndexSet) String() string {
	switch s {
	case FaceIndexLow:
		return "low"
	case FaceIndexMedium:
		return "medium"
	case FaceIndexHigh:
		return "high"
	default:
		return fmt.Sprintf("FaceIndexSet(%d)", int(s))
	}
}

// FaceIndexSetForCount maps a requested landmark count onto the nearest set
// that covers it.
func FaceIndexSetForCount(n int) FaceIndexSet {
	switch {
	case n <= 5:
		return FaceIndexLow
	case n <= 20:
		return FaceIndexMedium
	default:
		return FaceIndexHigh
	}
}

// ParseFaceIndexSet accepts "low", "medium" or "high" in any case.
func ParseFaceIndexSet(s string) (FaceIndexSet, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return FaceIndexLow, nil
	case "medium", "":
		return FaceIndexMedium, nil
	case "high":
		return FaceIndexHigh, nil
	}
	return FaceIndexMedium, fmt.Errorf("unknown face index set %q", s)
}

func (s FaceIndexSet) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *FaceIndexSet) UnmarshalText(b []byte) error {
	v, err := ParseFaceIndexSet(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
