package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teslashibe/go-handflow/internal/config"
)

func TestCameraConfig(t *testing.T) {
	cfg, err := config.LoadFrom(map[string]string{
		"HANDFLOW_SOURCE":             "camera",
		"HANDFLOW_CAMERA_DEVICE":      "2",
		"HANDFLOW_CAMERA_WIDTH":       "1280",
		"HANDFLOW_CAMERA_HEIGHT":      "720",
		"HANDFLOW_MODEL_PATH":         "/opt/models/hand.onnx",
		"HANDFLOW_PRESENCE_THRESHOLD": "0.7",
	})
	require.NoError(t, err)

	cam := cameraConfig(cfg)
	assert.Equal(t, 2, cam.Device)
	assert.Equal(t, 1280, cam.Width)
	assert.Equal(t, 720, cam.Height)
	assert.Equal(t, "/opt/models/hand.onnx", cam.ModelPath)
	assert.Equal(t, 0.7, cam.PresenceThreshold)
	assert.Equal(t, 224, cam.InputSize, "model settings keep their defaults")
	assert.NoError(t, cam.Validate())
}

func TestBuildSource_Remote(t *testing.T) {
	cfg, err := config.LoadFrom(map[string]string{"HANDFLOW_SOURCE": "remote"})
	require.NoError(t, err)

	src, remote, err := buildSource(cfg)
	require.NoError(t, err)
	assert.NotNil(t, remote)
	assert.Same(t, remote, src)
}
