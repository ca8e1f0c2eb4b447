package pose

import (
	"math"
	"testing"
)

func fullPose(rightVis, leftVis float64) []Landmark {
	lms := make([]Landmark, NumLandmarks)
	for i := range lms {
		lms[i] = Landmark{Point: Point{X: float64(i) / 100, Y: 0.5}, Visibility: 0.99}
	}
	for _, i := range []int{RightHip, RightKnee, RightAnkle} {
		lms[i].Visibility = rightVis
	}
	for _, i := range []int{LeftHip, LeftKnee, LeftAnkle} {
		lms[i].Visibility = leftVis
	}
	return lms
}

// TestSelectJointsSides verifies the MediaPipe indices chosen for each side.
func TestSelectJointsSides(t *testing.T) {
	tests := []struct {
		name     string
		side     Side
		right    float64
		left     float64
		wantKnee int
	}{
		{"right", SideRight, 0.9, 0.9, RightKnee},
		{"left", SideLeft, 0.9, 0.9, LeftKnee},
		{"auto prefers visible left", SideAuto, 0.2, 0.8, LeftKnee},
		{"auto prefers visible right", SideAuto, 0.8, 0.2, RightKnee},
		{"unknown side falls back to right", Side("bogus"), 0.9, 0.9, RightKnee},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lms := fullPose(tt.right, tt.left)
			j := SelectJoints(lms, tt.side, 0)
			if j == nil {
				t.Fatal("SelectJoints returned nil")
			}
			if j.Knee.X != lms[tt.wantKnee].X {
				t.Errorf("knee x = %v, want landmark %d (x=%v)", j.Knee.X, tt.wantKnee, lms[tt.wantKnee].X)
			}
		})
	}
}

// TestSelectJointsMissing verifies that short lists and low-visibility joints
// are reported as no pose.
func TestSelectJointsMissing(t *testing.T) {
	if j := SelectJoints(nil, SideRight, 0); j != nil {
		t.Errorf("nil landmarks: got %+v, want nil", j)
	}
	if j := SelectJoints(make([]Landmark, RightAnkle), SideRight, 0); j != nil {
		t.Errorf("short landmarks: got %+v, want nil", j)
	}
	if j := SelectJoints(fullPose(0.3, 0.9), SideRight, 0.5); j != nil {
		t.Errorf("occluded right leg: got %+v, want nil", j)
	}
	if j := SelectJoints(fullPose(0.3, 0.9), SideLeft, 0.5); j == nil {
		t.Error("visible left leg: got nil")
	}
}

// TestSelectJointsNonFinite verifies that NaN or infinite coordinates from
// the detector are reported as no pose instead of reaching the counter.
func TestSelectJointsNonFinite(t *testing.T) {
	tests := []struct {
		name  string
		index int
		x, y  float64
	}{
		{"NaN hip x", RightHip, math.NaN(), 0.5},
		{"NaN knee y", RightKnee, 0.5, math.NaN()},
		{"+Inf ankle x", RightAnkle, math.Inf(1), 0.5},
		{"-Inf ankle y", RightAnkle, 0.5, math.Inf(-1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lms := fullPose(0.9, 0.9)
			lms[tt.index].X, lms[tt.index].Y = tt.x, tt.y
			if j := SelectJoints(lms, SideRight, 0.5); j != nil {
				t.Errorf("got %+v, want nil", j)
			}
		})
	}

	lms := fullPose(0.9, 0.9)
	lms[LeftKnee].X = math.NaN()
	if j := SelectJoints(lms, SideRight, 0.5); j == nil {
		t.Error("NaN on the untracked leg must not hide the right leg")
	}
}

// TestParseSide covers accepted spellings and rejection of unknown values.
func TestParseSide(t *testing.T) {
	tests := []struct {
		in      string
		want    Side
		wantErr bool
	}{
		{"", SideRight, false},
		{"right", SideRight, false},
		{" Left ", SideLeft, false},
		{"AUTO", SideAuto, false},
		{"both", "", true},
	}
	for _, tt := range tests {
		got, err := ParseSide(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseSide(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseSide(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
