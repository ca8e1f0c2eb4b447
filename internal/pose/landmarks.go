package pose

import (
	"fmt"
	"math"
	"strings"
)

// MediaPipe pose landmark indices used for the knee hinge.
const (
	LeftHip    = 23
	RightHip   = 24
	LeftKnee   = 25
	RightKnee  = 26
	LeftAnkle  = 27
	RightAnkle = 28

	NumLandmarks = 33
)

// Landmark is a detected point with the detector's visibility score (0..1).
type Landmark struct {
	Point
	Visibility float64 `json:"visibility,omitempty"`
}

// Joints holds the three landmarks that drive rep detection.
type Joints struct {
	Hip   Landmark `json:"hip"`
	Knee  Landmark `json:"knee"`
	Ankle Landmark `json:"ankle"`
}

// Side selects which leg is tracked.
type Side string

const (
	SideRight Side = "right"
	SideLeft  Side = "left"
	SideAuto  Side = "auto"
)

// ParseSide parses a configured side. Empty means right, which matches the
// camera-facing default of most setups.
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToLower(strings.TrimSpace(s))) {
	case "", SideRight:
		return SideRight, nil
	case SideLeft:
		return SideLeft, nil
	case SideAuto:
		return SideAuto, nil
	}
	return "", fmt.Errorf("unknown side %q (want right, left or auto)", s)
}

// SelectJoints picks hip, knee and ankle for the given side out of a full
// landmark list. It returns nil when the list is too short or any selected
// landmark is less visible than minVisibility or has a non-finite coordinate;
// callers treat nil as "no pose".
func SelectJoints(lms []Landmark, side Side, minVisibility float64) *Joints {
	if len(lms) <= RightAnkle {
		return nil
	}

	right := Joints{Hip: lms[RightHip], Knee: lms[RightKnee], Ankle: lms[RightAnkle]}
	left := Joints{Hip: lms[LeftHip], Knee: lms[LeftKnee], Ankle: lms[LeftAnkle]}

	var j Joints
	switch side {
	case SideLeft:
		j = left
	case SideAuto:
		j = right
		if left.visibility() > right.visibility() {
			j = left
		}
	default:
		j = right
	}

	if j.Hip.Visibility < minVisibility || j.Knee.Visibility < minVisibility || j.Ankle.Visibility < minVisibility {
		return nil
	}
	if !j.finite() {
		return nil
	}
	return &j
}

func (j Joints) finite() bool {
	for _, lm := range []Landmark{j.Hip, j.Knee, j.Ankle} {
		if math.IsNaN(lm.X) || math.IsInf(lm.X, 0) || math.IsNaN(lm.Y) || math.IsInf(lm.Y, 0) {
			return false
		}
	}
	return true
}

func (j Joints) visibility() float64 {
	return j.Hip.Visibility + j.Knee.Visibility + j.Ankle.Visibility
}
