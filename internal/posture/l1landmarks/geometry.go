package l1landmarks

import "math"

// AngleEpsilon keeps angle denominators away from zero.
const AngleEpsilon = 0.001

// NeckAngleDegrees is the forward-lean angle of the face over the shoulders.
// headYWeight discounts vertical head movement against depth movement.
func NeckAngleDegrees(faceY, faceZ, shoulderY, shoulderZ, headYWeight float64) float64 {
	dy := (faceY - shoulderY) * headYWeight
	dz := math.Abs(faceZ-shoulderZ) + AngleEpsilon
	return math.Atan2(dy, dz) * 180 / math.Pi
}

// HeadTiltDegrees is the roll angle between two temple landmarks, clamped to
// [-90, 90]. Negative tilts left.
func HeadTiltDegrees(left, right Landmark) float64 {
	dy := left.Y - right.Y
	dx := math.Abs(left.X-right.X) + AngleEpsilon
	deg := math.Atan2(dy, dx) * 180 / math.Pi
	return math.Max(-90, math.Min(90, deg))
}
