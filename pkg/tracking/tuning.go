package tracking

import "fmt"

// TuningParams holds the calibration that can be adjusted at runtime
// without restarting tracking.
type TuningParams struct {
	// Rotation
	RotationGainX     float64 `json:"rotation_gain_x"`
	RotationGainY     float64 `json:"rotation_gain_y"`
	RotationSmoothing float64 `json:"rotation_smoothing"` // EMA alpha (0.06=floaty, 0.25=snappy)

	// Scroll calibration
	NeutralPoint      float64 `json:"neutral_point"`
	Deadzone          float64 `json:"deadzone"`
	ScrollGain        float64 `json:"scroll_gain"`
	VelocitySmoothing float64 `json:"velocity_smoothing"`
	NoiseFloor        float64 `json:"noise_floor"`
}

// Tuning extracts the runtime-adjustable part of a Config.
func (c Config) Tuning() TuningParams {
	return TuningParams{
		RotationGainX:     c.RotationGainX,
		RotationGainY:     c.RotationGainY,
		RotationSmoothing: c.RotationSmoothing,
		NeutralPoint:      c.NeutralPoint,
		Deadzone:          c.Deadzone,
		ScrollGain:        c.ScrollGain,
		VelocitySmoothing: c.VelocitySmoothing,
		NoiseFloor:        c.NoiseFloor,
	}
}

// WithTuning returns a copy of c with params applied.
func (c Config) WithTuning(params TuningParams) Config {
	c.RotationGainX = params.RotationGainX
	c.RotationGainY = params.RotationGainY
	c.RotationSmoothing = params.RotationSmoothing
	c.NeutralPoint = params.NeutralPoint
	c.Deadzone = params.Deadzone
	c.ScrollGain = params.ScrollGain
	c.VelocitySmoothing = params.VelocitySmoothing
	c.NoiseFloor = params.NoiseFloor
	return c
}

// GetTuningParams returns current tuning parameters from the tracker.
func (t *Tracker) GetTuningParams() TuningParams {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.config.Tuning()
}

// SetTuningParams validates and applies new parameters to the running
// smoother and scroll controller. Current rotation and velocity carry over.
func (t *Tracker) SetTuningParams(params TuningParams) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	cfg := t.config.WithTuning(params)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid tuning: %w", err)
	}
	t.config = cfg
	t.smoother.SetConfig(cfg)
	t.scroll.SetConfig(cfg)

	t.logger.Info("tuning updated",
		"neutral", cfg.NeutralPoint,
		"deadzone", cfg.Deadzone,
		"gain", cfg.ScrollGain,
		"rotation_alpha", cfg.RotationSmoothing,
		"velocity_alpha", cfg.VelocitySmoothing)
	return nil
}
