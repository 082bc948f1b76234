package tracking

import (
	"errors"
	"fmt"
	"time"
)

// Config holds all tunable parameters for the signal-to-motion core.
//
// The scroll calibration (NeutralPoint, Deadzone, ScrollGain) was tuned
// against MediaPipe's coordinate conventions and is expected to be
// recalibrated for other detectors.
type Config struct {
	// Timing
	RenderInterval time.Duration // Render tick cadence (display refresh)
	ScrollInterval time.Duration // Scroll integration step

	// Rotation
	RotationGainX     float64 // Tilt per unit of vertical palm offset (radians)
	RotationGainY     float64 // Turn per unit of horizontal palm offset (radians)
	RotationSmoothing float64 // EMA alpha in (0,1], higher = snappier

	// Idle motion when no hand is tracked
	IdleBobFrequency float64 // Tilt oscillation frequency (rad/s)
	IdleBobAmplitude float64 // Tilt oscillation amplitude (radians)
	IdleSpinRate     float64 // Steady turn rate (rad/s)

	// Pulse
	PulseBase float64 // Pulse intensity without a hand; a close hand adds up to 1-PulseBase

	// Scroll
	NeutralPoint      float64 // PalmY mapped to zero velocity
	Deadzone          float64 // |PalmY-NeutralPoint| at or below this is ignored
	ScrollGain        float64 // Pixels per tick per unit distance; negative = raised palm scrolls up
	VelocitySmoothing float64 // EMA alpha in (0,1] toward target velocity
	NoiseFloor        float64 // Velocities at or below this magnitude are not applied (px/tick)
}

// DefaultConfig returns the calibrated configuration.
func DefaultConfig() Config {
	return Config{
		// ~60 Hz, matching display refresh
		RenderInterval: 16 * time.Millisecond,
		ScrollInterval: 16 * time.Millisecond,

		// Dramatic tilt: the object follows the palm like a compass
		RotationGainX:     1.5,
		RotationGainY:     2.0,
		RotationSmoothing: 0.12,

		IdleBobFrequency: 0.3,
		IdleBobAmplitude: 0.15,
		IdleSpinRate:     0.15,

		PulseBase: 0.5,

		// A relaxed palm rests low in the frame, so neutral sits below center
		NeutralPoint:      0.3,
		Deadzone:          0.15,
		ScrollGain:        -60,
		VelocitySmoothing: 0.1,
		NoiseFloor:        0.1,
	}
}

// SmoothConfig returns a configuration for slower, floatier motion.
func SmoothConfig() Config {
	cfg := DefaultConfig()
	cfg.RotationSmoothing = 0.06
	cfg.VelocitySmoothing = 0.05
	cfg.Deadzone = 0.18
	cfg.ScrollGain = -45
	return cfg
}

// ResponsiveConfig returns a configuration for snappy, reactive motion.
func ResponsiveConfig() Config {
	cfg := DefaultConfig()
	cfg.RotationSmoothing = 0.25
	cfg.VelocitySmoothing = 0.2
	cfg.Deadzone = 0.12
	cfg.ScrollGain = -80
	return cfg
}

// Preset returns a named configuration: "default", "smooth" or "responsive".
func Preset(name string) (Config, bool) {
	switch name {
	case "", "default":
		return DefaultConfig(), true
	case "smooth":
		return SmoothConfig(), true
	case "responsive":
		return ResponsiveConfig(), true
	}
	return Config{}, false
}

// Validate reports every parameter outside its usable range.
func (c Config) Validate() error {
	var errs []error
	if c.RenderInterval <= 0 {
		errs = append(errs, fmt.Errorf("render interval must be positive, got %v", c.RenderInterval))
	}
	if c.ScrollInterval <= 0 {
		errs = append(errs, fmt.Errorf("scroll interval must be positive, got %v", c.ScrollInterval))
	}
	if !unitAlpha(c.RotationSmoothing) {
		errs = append(errs, fmt.Errorf("rotation smoothing must be in (0,1], got %v", c.RotationSmoothing))
	}
	if !unitAlpha(c.VelocitySmoothing) {
		errs = append(errs, fmt.Errorf("velocity smoothing must be in (0,1], got %v", c.VelocitySmoothing))
	}
	if c.NeutralPoint < 0 || c.NeutralPoint > 1 {
		errs = append(errs, fmt.Errorf("neutral point must be in [0,1], got %v", c.NeutralPoint))
	}
	if c.Deadzone < 0 || c.Deadzone >= 1 {
		errs = append(errs, fmt.Errorf("deadzone must be in [0,1), got %v", c.Deadzone))
	}
	if c.NoiseFloor < 0 {
		errs = append(errs, fmt.Errorf("noise floor must not be negative, got %v", c.NoiseFloor))
	}
	if c.PulseBase < 0 || c.PulseBase > 1 {
		errs = append(errs, fmt.Errorf("pulse base must be in [0,1], got %v", c.PulseBase))
	}
	return errors.Join(errs...)
}

func unitAlpha(a float64) bool {
	return a > 0 && a <= 1
}
