// Package config loads go-handflow service configuration from the
// environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/teslashibe/go-handflow/pkg/landmark"
	"github.com/teslashibe/go-handflow/pkg/tracking"
)

// Source kinds.
const (
	SourceRemote = "remote"
	SourceCamera = "camera"
	SourceReplay = "replay"
)

// Config is the service configuration.
type Config struct {
	LogLevel  string `env:"HANDFLOW_LOG_LEVEL"  envDefault:"info"`
	Port      string `env:"HANDFLOW_PORT"       envDefault:"8080"`
	StaticDir string `env:"HANDFLOW_STATIC_DIR"`

	Source        string        `env:"HANDFLOW_SOURCE"         envDefault:"remote"`
	AttachTimeout time.Duration `env:"HANDFLOW_ATTACH_TIMEOUT" envDefault:"10s"`

	CameraDevice      int     `env:"HANDFLOW_CAMERA_DEVICE"      envDefault:"0"`
	CameraWidth       int     `env:"HANDFLOW_CAMERA_WIDTH"       envDefault:"640"`
	CameraHeight      int     `env:"HANDFLOW_CAMERA_HEIGHT"      envDefault:"480"`
	ModelPath         string  `env:"HANDFLOW_MODEL_PATH"         envDefault:"models/hand_landmark.onnx"`
	PresenceThreshold float64 `env:"HANDFLOW_PRESENCE_THRESHOLD" envDefault:"0.5"`

	ReplayPath string  `env:"HANDFLOW_REPLAY_PATH"`
	ReplayFPS  float64 `env:"HANDFLOW_REPLAY_FPS"  envDefault:"30"`
	ReplayLoop bool    `env:"HANDFLOW_REPLAY_LOOP" envDefault:"true"`

	Preset      string `env:"HANDFLOW_PRESET" envDefault:"default"`
	Calibration Calibration
}

// Calibration holds optional overrides applied on top of the preset.
// Unset variables leave the preset value in place.
type Calibration struct {
	RenderInterval    *time.Duration `env:"HANDFLOW_RENDER_INTERVAL"`
	ScrollInterval    *time.Duration `env:"HANDFLOW_SCROLL_INTERVAL"`
	RotationGainX     *float64       `env:"HANDFLOW_ROTATION_GAIN_X"`
	RotationGainY     *float64       `env:"HANDFLOW_ROTATION_GAIN_Y"`
	RotationSmoothing *float64       `env:"HANDFLOW_ROTATION_SMOOTHING"`
	PulseBase         *float64       `env:"HANDFLOW_PULSE_BASE"`
	NeutralPoint      *float64       `env:"HANDFLOW_NEUTRAL_POINT"`
	Deadzone          *float64       `env:"HANDFLOW_DEADZONE"`
	ScrollGain        *float64       `env:"HANDFLOW_SCROLL_GAIN"`
	VelocitySmoothing *float64       `env:"HANDFLOW_VELOCITY_SMOOTHING"`
	NoiseFloor        *float64       `env:"HANDFLOW_NOISE_FLOOR"`
}

// Load reads configuration from the process environment.
func Load() (Config, error) {
	return parse(env.Options{})
}

// LoadFrom reads configuration from the given variables instead of the
// process environment.
func LoadFrom(environ map[string]string) (Config, error) {
	return parse(env.Options{Environment: environ})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks settings that do not belong to a single component.
func (c Config) Validate() error {
	var errs []error
	switch c.Source {
	case SourceRemote, SourceCamera:
	case SourceReplay:
		if c.ReplayPath == "" {
			errs = append(errs, errors.New("HANDFLOW_REPLAY_PATH is required for the replay source"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown source %q (want remote, camera or replay)", c.Source))
	}
	if c.Port == "" {
		errs = append(errs, errors.New("port must not be empty"))
	}
	if _, ok := tracking.Preset(c.Preset); !ok {
		errs = append(errs, fmt.Errorf("unknown preset %q", c.Preset))
	}
	return errors.Join(errs...)
}

// Tracking returns the selected preset with calibration overrides applied.
func (c Config) Tracking() (tracking.Config, error) {
	cfg, ok := tracking.Preset(c.Preset)
	if !ok {
		return tracking.Config{}, fmt.Errorf("unknown preset %q", c.Preset)
	}

	o := c.Calibration
	setDuration(&cfg.RenderInterval, o.RenderInterval)
	setDuration(&cfg.ScrollInterval, o.ScrollInterval)
	setFloat(&cfg.RotationGainX, o.RotationGainX)
	setFloat(&cfg.RotationGainY, o.RotationGainY)
	setFloat(&cfg.RotationSmoothing, o.RotationSmoothing)
	setFloat(&cfg.PulseBase, o.PulseBase)
	setFloat(&cfg.NeutralPoint, o.NeutralPoint)
	setFloat(&cfg.Deadzone, o.Deadzone)
	setFloat(&cfg.ScrollGain, o.ScrollGain)
	setFloat(&cfg.VelocitySmoothing, o.VelocitySmoothing)
	setFloat(&cfg.NoiseFloor, o.NoiseFloor)

	if err := cfg.Validate(); err != nil {
		return tracking.Config{}, fmt.Errorf("calibration: %w", err)
	}
	return cfg, nil
}

// Replay returns the recording playback configuration.
func (c Config) Replay() landmark.ReplayConfig {
	return landmark.ReplayConfig{
		Path: c.ReplayPath,
		FPS:  c.ReplayFPS,
		Loop: c.ReplayLoop,
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *time.Duration) {
	if v != nil {
		*dst = *v
	}
}
