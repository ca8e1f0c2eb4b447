package pose

import "math"

// Point is a planar landmark position. Detectors report normalized camera
// coordinates in [0,1], but nothing here depends on that range.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Angle returns the interior angle at vertex b formed by the segments b→a
// and b→c, in degrees within [0,180]. A zero-length segment yields 0.
func Angle(a, b, c Point) float64 {
	bax, bay := a.X-b.X, a.Y-b.Y
	bcx, bcy := c.X-b.X, c.Y-b.Y
	if (bax == 0 && bay == 0) || (bcx == 0 && bcy == 0) {
		return 0
	}

	radians := math.Atan2(bcy, bcx) - math.Atan2(bay, bax)
	deg := math.Abs(radians * 180.0 / math.Pi)
	if deg > 180.0 {
		deg = 360.0 - deg
	}
	return deg
}

// HingeAngle returns the knee angle between the hip-knee and knee-ankle segments.
func HingeAngle(j Joints) float64 {
	return Angle(j.Hip.Point, j.Knee.Point, j.Ankle.Point)
}
