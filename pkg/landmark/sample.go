// Package landmark adapts external hand-landmark detectors into validated samples.
//
// A detector delivers zero or one hand per processed frame. Its raw output is
// checked once here; everything downstream works with Sample and never
// re-inspects the shape.
package landmark

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// MediaPipe hand topology indices used by the control core.
const (
	Wrist           = 0
	MiddleFingerMCP = 9

	// HandLandmarks is the number of points a complete hand carries.
	HandLandmarks = 21
)

// Sample is the result of one processed detector frame: either a detected
// hand with its landmarks or nothing.
type Sample struct {
	landmarks []r3.Vec
	detected  bool
}

// Detected returns a sample carrying a hand.
// Callers outside this package should go through FromRaw or FromPoints.
func Detected(points []r3.Vec) Sample {
	return Sample{landmarks: points, detected: true}
}

// None returns a sample with no hand.
func None() Sample {
	return Sample{}
}

// Hand returns the landmarks and whether a hand is present.
func (s Sample) Hand() ([]r3.Vec, bool) {
	return s.landmarks, s.detected
}

// IsDetected reports whether the sample carries a hand.
func (s Sample) IsDetected() bool {
	return s.detected
}

// Landmark returns the i-th point of a detected sample.
func (s Sample) Landmark(i int) (r3.Vec, bool) {
	if !s.detected || i < 0 || i >= len(s.landmarks) {
		return r3.Vec{}, false
	}
	return s.landmarks[i], true
}

// RawPoint is a landmark as detectors serialize it.
type RawPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// RawResult mirrors a MediaPipe Hands result. Only the first hand is used.
type RawResult struct {
	MultiHandLandmarks [][]RawPoint `json:"multiHandLandmarks,omitempty"`
}

// FromRaw validates a raw detector result and converts it into a Sample.
// Results with no hands, too few points, or non-finite coordinates become None.
func FromRaw(raw RawResult) Sample {
	if len(raw.MultiHandLandmarks) == 0 {
		return None()
	}
	hand := raw.MultiHandLandmarks[0]
	points := make([]r3.Vec, len(hand))
	for i, p := range hand {
		points[i] = r3.Vec{X: p.X, Y: p.Y, Z: p.Z}
	}
	return FromPoints(points)
}

// FromPoints validates a single hand's landmarks.
func FromPoints(points []r3.Vec) Sample {
	if len(points) < HandLandmarks {
		return None()
	}
	for _, p := range points {
		if !finite(p.X) || !finite(p.Y) || !finite(p.Z) {
			return None()
		}
	}
	return Detected(points)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
