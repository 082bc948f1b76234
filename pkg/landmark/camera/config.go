// Package camera provides a local landmark source: OpenCV capture plus an
// ONNX hand-landmark model, both through gocv.
package camera

import (
	"errors"
	"fmt"
)

// Config holds capture and detector configuration.
type Config struct {
	// Capture
	Device int // Video capture device index
	Width  int // Requested frame width in pixels
	Height int // Requested frame height in pixels

	// Detector
	ModelPath         string  // Path to hand landmark ONNX model
	InputSize         int     // Square model input (224 for MediaPipe hand_landmark)
	PresenceThreshold float64 // Minimum hand presence score (0-1)
	LandmarksOutput   string  // Output layer carrying 21x3 landmarks
	PresenceOutput    string  // Output layer carrying the presence score

	// MaxReadFailures is how many consecutive failed reads are tolerated
	// before the capture loop backs off.
	MaxReadFailures int
}

// DefaultConfig returns production defaults matching the browser detector
// (640x480, single hand, 0.5 confidence).
func DefaultConfig() Config {
	return Config{
		Device:            0,
		Width:             640,
		Height:            480,
		ModelPath:         "models/hand_landmark.onnx",
		InputSize:         224,
		PresenceThreshold: 0.5,
		LandmarksOutput:   "Identity",
		PresenceOutput:    "Identity_1",
		MaxReadFailures:   30,
	}
}

// Validate checks the configuration for values the source cannot work with.
func (c Config) Validate() error {
	var errs []error
	if c.Width <= 0 || c.Height <= 0 {
		errs = append(errs, fmt.Errorf("frame size must be positive, got %dx%d", c.Width, c.Height))
	}
	if c.ModelPath == "" {
		errs = append(errs, errors.New("model path is required"))
	}
	if c.InputSize <= 0 {
		errs = append(errs, fmt.Errorf("input size must be positive, got %d", c.InputSize))
	}
	if c.PresenceThreshold < 0 || c.PresenceThreshold > 1 {
		errs = append(errs, fmt.Errorf("presence threshold must be 0-1, got %v", c.PresenceThreshold))
	}
	if c.LandmarksOutput == "" || c.PresenceOutput == "" {
		errs = append(errs, errors.New("output layer names are required"))
	}
	return errors.Join(errs...)
}
