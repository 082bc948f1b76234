package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teslashibe/go-handflow/pkg/tracking"
)

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, SourceRemote, cfg.Source)
	assert.Equal(t, 10*time.Second, cfg.AttachTimeout)
	assert.Equal(t, 30.0, cfg.ReplayFPS)
	assert.True(t, cfg.ReplayLoop)

	tr, err := cfg.Tracking()
	require.NoError(t, err)
	assert.Equal(t, tracking.DefaultConfig(), tr)
}

func TestLoadFrom_CalibrationOverrides(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"HANDFLOW_PRESET":          "smooth",
		"HANDFLOW_NEUTRAL_POINT":   "0.4",
		"HANDFLOW_SCROLL_GAIN":     "60",
		"HANDFLOW_SCROLL_INTERVAL": "8ms",
	})
	require.NoError(t, err)

	tr, err := cfg.Tracking()
	require.NoError(t, err)

	want := tracking.SmoothConfig()
	want.NeutralPoint = 0.4
	want.ScrollGain = 60
	want.ScrollInterval = 8 * time.Millisecond
	assert.Equal(t, want, tr)
}

func TestLoadFrom_InvalidCalibration(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{"HANDFLOW_DEADZONE": "1.5"})
	require.NoError(t, err)

	_, err = cfg.Tracking()
	assert.Error(t, err)
}

func TestLoadFrom_Errors(t *testing.T) {
	tests := []struct {
		name    string
		environ map[string]string
	}{
		{"unknown source", map[string]string{"HANDFLOW_SOURCE": "usb"}},
		{"replay without path", map[string]string{"HANDFLOW_SOURCE": "replay"}},
		{"unknown preset", map[string]string{"HANDFLOW_PRESET": "turbo"}},
		{"malformed number", map[string]string{"HANDFLOW_REPLAY_FPS": "fast"}},
		{"malformed duration", map[string]string{"HANDFLOW_ATTACH_TIMEOUT": "soon"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadFrom(tt.environ); err == nil {
				t.Errorf("LoadFrom(%v): expected error", tt.environ)
			}
		})
	}
}

func TestConfig_SourceSettings(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"HANDFLOW_SOURCE":        "replay",
		"HANDFLOW_REPLAY_PATH":   "testdata/wave.jsonl",
		"HANDFLOW_REPLAY_FPS":    "60",
		"HANDFLOW_REPLAY_LOOP":   "false",
		"HANDFLOW_CAMERA_DEVICE": "2",
		"HANDFLOW_MODEL_PATH":    "/opt/models/hand.onnx",
	})
	require.NoError(t, err)

	replay := cfg.Replay()
	assert.Equal(t, "testdata/wave.jsonl", replay.Path)
	assert.Equal(t, 60.0, replay.FPS)
	assert.False(t, replay.Loop)

	assert.Equal(t, 2, cfg.CameraDevice)
	assert.Equal(t, "/opt/models/hand.onnx", cfg.ModelPath)
}
