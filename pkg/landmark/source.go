package landmark

import (
	"context"
	"errors"
	"fmt"
)

// SampleFunc receives one sample per processed detector frame.
type SampleFunc func(Sample)

// Source is an external landmark capability: camera capture plus detector.
//
// Start acquires the capability and begins delivering samples to onSample at
// the source's own cadence. It fails with *AcquisitionError when the camera or
// detector cannot be acquired. There is no retry and no reconnection.
//
// Stop is idempotent and releases everything Start acquired. No callback is
// invoked after Stop returns.
type Source interface {
	Start(ctx context.Context, onSample SampleFunc) error
	Stop() error
}

// Sentinel reasons for acquisition failures.
var (
	// ErrPermissionDenied is returned when camera access is refused.
	ErrPermissionDenied = errors.New("landmark: camera permission denied")

	// ErrCameraUnavailable is returned when no capture device can be opened.
	ErrCameraUnavailable = errors.New("landmark: camera not available")

	// ErrDetectorUnavailable is returned when the detector cannot initialize.
	ErrDetectorUnavailable = errors.New("landmark: detector not available")

	// ErrAlreadyStarted is returned by Start on a running source.
	ErrAlreadyStarted = errors.New("landmark: source already started")
)

// AcquisitionError reports why a source could not be started.
type AcquisitionError struct {
	// Reason is a short human-readable explanation for display.
	Reason string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *AcquisitionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("landmark: acquisition failed: %s", e.Reason)
	}
	return fmt.Sprintf("landmark: acquisition failed: %s: %v", e.Reason, e.Err)
}

// Unwrap returns the underlying error.
func (e *AcquisitionError) Unwrap() error {
	return e.Err
}

// Acquire wraps err as an AcquisitionError unless it already is one.
func Acquire(reason string, err error) error {
	var acq *AcquisitionError
	if errors.As(err, &acq) {
		return err
	}
	return &AcquisitionError{Reason: reason, Err: err}
}
