package pose

import (
	"math"
	"testing"
)

const tolerance = 1e-9

func near(a, b float64) bool { return math.Abs(a-b) < tolerance }

// TestAngleKnownShapes checks the interior angle for right, straight and
// acute configurations around a vertex.
func TestAngleKnownShapes(t *testing.T) {
	tests := []struct {
		name    string
		a, b, c Point
		want    float64
	}{
		{"right angle", Point{0, 1}, Point{0, 0}, Point{1, 0}, 90},
		{"straight leg", Point{0.5, 0.2}, Point{0.5, 0.5}, Point{0.5, 0.8}, 180},
		{"folded", Point{1, 0}, Point{0, 0}, Point{1, 0}, 0},
		{"45 degrees", Point{1, 1}, Point{0, 0}, Point{1, 0}, 45},
		{"135 degrees", Point{-1, 1}, Point{0, 0}, Point{1, 0}, 135},
		{"wraps past 180", Point{-1, -0.0001}, Point{0, 0}, Point{-1, 0.0001}, 2 * math.Atan(0.0001) * 180 / math.Pi},
		{"outside unit square", Point{-3, 7}, Point{-3, 2}, Point{2, 2}, 90},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Angle(tt.a, tt.b, tt.c)
			if math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("Angle = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestAngleEquidistantRightAngle checks that a and c equidistant from b and
// 90° apart always measure 90, whatever the rotation.
func TestAngleEquidistantRightAngle(t *testing.T) {
	b := Point{0.5, 0.5}
	const r = 0.25
	for deg := 0.0; deg < 360; deg += 7.5 {
		th := deg * math.Pi / 180
		a := Point{b.X + r*math.Cos(th), b.Y + r*math.Sin(th)}
		c := Point{b.X + r*math.Cos(th+math.Pi/2), b.Y + r*math.Sin(th+math.Pi/2)}
		if got := Angle(a, b, c); math.Abs(got-90) > 1e-6 {
			t.Errorf("rotation %v: Angle = %v, want 90", deg, got)
		}
	}
}

// TestAngleSymmetric verifies angle(a,b,c) == angle(c,b,a).
func TestAngleSymmetric(t *testing.T) {
	pts := []Point{{0, 0}, {1, 0}, {0, 1}, {0.3, 0.7}, {-2, 5}, {0.5, 0.5}, {0.9, 0.1}}
	for _, a := range pts {
		for _, b := range pts {
			for _, c := range pts {
				x, y := Angle(a, b, c), Angle(c, b, a)
				if !near(x, y) {
					t.Errorf("Angle(%v,%v,%v)=%v but reversed=%v", a, b, c, x, y)
				}
				if x < 0 || x > 180 || math.IsNaN(x) {
					t.Errorf("Angle(%v,%v,%v)=%v out of [0,180]", a, b, c, x)
				}
			}
		}
	}
}

// TestAngleDegenerate verifies that coincident points give 0 instead of NaN.
func TestAngleDegenerate(t *testing.T) {
	tests := []struct {
		name    string
		a, b, c Point
	}{
		{"a on vertex", Point{0.4, 0.4}, Point{0.4, 0.4}, Point{0.9, 0.1}},
		{"c on vertex", Point{0.1, 0.9}, Point{0.4, 0.4}, Point{0.4, 0.4}},
		{"all coincident", Point{0.4, 0.4}, Point{0.4, 0.4}, Point{0.4, 0.4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Angle(tt.a, tt.b, tt.c)
			if got != 0 {
				t.Errorf("Angle = %v, want 0", got)
			}
		})
	}
}

// TestHingeAngle verifies the knee is used as the vertex.
func TestHingeAngle(t *testing.T) {
	j := Joints{
		Hip:   Landmark{Point: Point{0.5, 0.3}},
		Knee:  Landmark{Point: Point{0.5, 0.5}},
		Ankle: Landmark{Point: Point{0.7, 0.5}},
	}
	if got := HingeAngle(j); math.Abs(got-90) > 1e-6 {
		t.Errorf("HingeAngle = %v, want 90", got)
	}
}
