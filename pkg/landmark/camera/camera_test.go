package camera

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teslashibe/go-handflow/pkg/landmark"
	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Width != 640 || cfg.Height != 480 {
		t.Errorf("frame size: got %dx%d, want 640x480", cfg.Width, cfg.Height)
	}
	if cfg.InputSize != 224 {
		t.Errorf("InputSize: got %d, want 224", cfg.InputSize)
	}
	if cfg.PresenceThreshold != 0.5 {
		t.Errorf("PresenceThreshold: got %v, want 0.5", cfg.PresenceThreshold)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero width", func(c *Config) { c.Width = 0 }},
		{"no model", func(c *Config) { c.ModelPath = "" }},
		{"zero input", func(c *Config) { c.InputSize = 0 }},
		{"threshold above one", func(c *Config) { c.PresenceThreshold = 1.5 }},
		{"missing output", func(c *Config) { c.PresenceOutput = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestDecodeLandmarks(t *testing.T) {
	values := make([]float32, landmark.HandLandmarks*3)
	for i := 0; i < landmark.HandLandmarks; i++ {
		values[i*3] = 112
		values[i*3+1] = 56
		values[i*3+2] = -22.4
	}

	points, err := decodeLandmarks(values, 224)
	require.NoError(t, err)
	require.Len(t, points, landmark.HandLandmarks)

	want := r3.Vec{X: 0.5, Y: 0.25, Z: -0.1}
	for i, p := range points {
		if math.Abs(p.X-want.X) > 1e-6 || math.Abs(p.Y-want.Y) > 1e-6 || math.Abs(p.Z-want.Z) > 1e-6 {
			t.Errorf("point %d: got %v, want %v", i, p, want)
		}
	}

	assert.True(t, landmark.FromPoints(points).IsDetected())
}

func TestDecodeLandmarks_TooShort(t *testing.T) {
	_, err := decodeLandmarks(make([]float32, 20), 224)
	assert.Error(t, err)
}

func TestPresenceScore(t *testing.T) {
	tests := []struct {
		in   float32
		want float64
	}{
		{0, 0},
		{0.75, 0.75},
		{1, 1},
		{-10, 1 / (1 + math.Exp(10))},
		{3, 1 / (1 + math.Exp(-3))},
	}
	for _, tt := range tests {
		got := presenceScore(tt.in)
		if math.Abs(got-tt.want) > 1e-6 {
			t.Errorf("presenceScore(%v): got %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want error
	}{
		{errors.New("Permission denied opening /dev/video0"), landmark.ErrPermissionDenied},
		{errors.New("access DENIED"), landmark.ErrPermissionDenied},
		{errors.New("no such device"), landmark.ErrCameraUnavailable},
	}
	for _, tt := range tests {
		got := classify(tt.err)
		if !errors.Is(got, tt.want) {
			t.Errorf("classify(%q): got %v, want %v", tt.err, got, tt.want)
		}
		assert.ErrorIs(t, got, tt.err, "underlying error is kept")
	}
}

func TestSource_StartRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ModelPath = ""
	src := New(cfg)

	err := src.Start(context.Background(), func(landmark.Sample) {})
	var acq *landmark.AcquisitionError
	require.ErrorAs(t, err, &acq)
	assert.NoError(t, src.Stop(), "stop after failed start")
}

func TestSource_StopWithoutStart(t *testing.T) {
	src := New(DefaultConfig())
	assert.NoError(t, src.Stop())
	assert.NoError(t, src.Stop())
}

func TestSource_StartRequiresCallback(t *testing.T) {
	assert.Error(t, New(DefaultConfig()).Start(context.Background(), nil))
}

// scriptedReader returns one scripted read result per call, then fails
type scriptedReader struct {
	mu    sync.Mutex
	reads []bool
}

func (r *scriptedReader) Read(m *gocv.Mat) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.reads) == 0 {
		return false
	}
	ok := r.reads[0]
	r.reads = r.reads[1:]
	if !ok {
		return false
	}
	frame := gocv.NewMatWithSize(4, 4, gocv.MatTypeCV8UC3)
	defer frame.Close()
	frame.CopyTo(m)
	return true
}

// handDetector reports a hand in every frame
type handDetector struct{}

func (handDetector) Detect(gocv.Mat) (landmark.Sample, error) {
	points := make([]r3.Vec, landmark.HandLandmarks)
	for i := range points {
		points[i] = r3.Vec{X: 0.5, Y: 0.2}
	}
	return landmark.FromPoints(points), nil
}

func (handDetector) Close() error { return nil }

func TestSource_ReadFailureReadsAsNoHand(t *testing.T) {
	src := New(DefaultConfig())
	reader := &scriptedReader{reads: []bool{true, true, false, false, false, true, false}}

	var mu sync.Mutex
	var got []bool
	onSample := func(s landmark.Sample) {
		mu.Lock()
		got = append(got, s.IsDetected())
		mu.Unlock()
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go src.run(ctx, reader, handDetector{}, onSample, done)

	// Two frames, one None for the failure streak, one frame, one None for
	// the trailing streak
	want := []bool{true, true, false, true, false}
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) >= len(want)
	}, time.Second, time.Millisecond)

	// The trailing streak keeps failing without repeating the None
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, want, got)
}
