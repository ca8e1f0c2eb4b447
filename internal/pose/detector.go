package pose

import (
	"context"
	"time"
)

// Frame is one encoded video frame (JPEG) handed to a Detector.
type Frame struct {
	Seq       uint64
	Timestamp time.Time
	Data      []byte
}

// Detection is the detector's answer for one frame. A nil Joints means no
// pose was found. Image optionally carries an annotated copy of the frame.
type Detection struct {
	Joints *Joints
	Image  []byte
}

// Detector is the external pose-estimation capability.
type Detector interface {
	Detect(ctx context.Context, f Frame) (Detection, error)
}

// DetectorFunc adapts an ordinary function to the Detector interface.
type DetectorFunc func(ctx context.Context, f Frame) (Detection, error)

// Detect calls fn(ctx, f).
func (fn DetectorFunc) Detect(ctx context.Context, f Frame) (Detection, error) {
	return fn(ctx, f)
}
