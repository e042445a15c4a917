package l2baseline

import (
	"fmt"
	"strings"

	"github.com/banshee-data/posture.report/internal/posture/l1landmarks"
)

const (
	maxQuality          = 100.0
	faceVisibilityFloor = 70.0
	facePenalty         = 20.0
	posePenalty         = 10.0
)

// QualityBand buckets a calibration quality score.
type QualityBand int

const (
	QualityPoor QualityBand = iota
	QualityAcceptable
	QualityExcellent
)

func (b QualityBand) String() string {
	switch b {
	case QualityPoor:
		return "poor"
	case QualityAcceptable:
		return "acceptable"
	case QualityExcellent:
		return "excellent"
	}
	return fmt.Sprintf("QualityBand(%d)", int(b))
}

func (b QualityBand) MarshalText() ([]byte, error) { return []byte(b.String()), nil }

// BandFor maps a score onto its band: below 50 is poor, below 80 acceptable.
func BandFor(score float64) QualityBand {
	switch {
	case score < 50:
		return QualityPoor
	case score < 80:
		return QualityAcceptable
	default:
		return QualityExcellent
	}
}

// Report describes how well the calibration frame was observed.
type Report struct {
	Score            float64     `json:"score"`
	Band             QualityBand `json:"band"`
	FaceVisibility   float64     `json:"face_visibility_pct"`
	MissingLandmarks []string    `json:"missing_landmarks,omitempty"`
	Issues           []string    `json:"issues,omitempty"`
}

// Assess scores a frame: 20 points off when under 70% of the leading face
// landmarks are usable, 10 off per unusable required pose landmark, floored
// at zero.
func Assess(f *l1landmarks.Frame, gate l1landmarks.Gate, faceSet l1landmarks.FaceIndexSet) Report {
	r := Report{Score: maxQuality}

	if f.HasFace() {
		total, usable := 0, 0
		for _, idx := range faceSet.QualityIndices() {
			if idx >= len(f.Face) {
				continue
			}
			total++
			if gate.Usable(f.Face[idx]) {
				usable++
			}
		}
		if total > 0 {
			r.FaceVisibility = float64(usable) / float64(total) * 100
		}
		if r.FaceVisibility < faceVisibilityFloor {
			r.Issues = append(r.Issues, fmt.Sprintf("Low face visibility: %.0f%%", r.FaceVisibility))
			r.Score -= facePenalty
		}
	}

	if f.HasPose() {
		for _, role := range l1landmarks.RequiredPoseRoles {
			if !gate.Usable(f.Pose[role.Index]) {
				r.MissingLandmarks = append(r.MissingLandmarks, role.Name)
				r.Score -= posePenalty
			}
		}
		if len(r.MissingLandmarks) > 0 {
			r.Issues = append(r.Issues, fmt.Sprintf("Low visibility: %s", strings.Join(r.MissingLandmarks, ", ")))
		}
	}

	if r.Score < 0 {
		r.Score = 0
	}
	r.Band = BandFor(r.Score)
	return r
}
