package camera

import (
	"fmt"
	"image"
	"math"
	"os"
	"sync"

	"github.com/teslashibe/go-handflow/pkg/landmark"
	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/spatial/r3"
)

// Detector turns a captured frame into a landmark sample.
type Detector interface {
	// Detect finds at most one hand in the frame
	Detect(frame gocv.Mat) (landmark.Sample, error)

	// Close releases resources
	Close() error
}

// HandLandmarker runs a MediaPipe-style hand landmark model through OpenCV DNN.
// The model sees the full frame, so it works best with the hand filling a
// reasonable part of the view.
type HandLandmarker struct {
	net     gocv.Net
	config  Config
	outputs []string
	mu      sync.Mutex // Protects inference
}

// NewHandLandmarker loads the ONNX model named by cfg.ModelPath.
func NewHandLandmarker(cfg Config) (*HandLandmarker, error) {
	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", cfg.ModelPath)
	}

	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load hand landmark model from %s", cfg.ModelPath)
	}

	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return nil, fmt.Errorf("set backend: %w", err)
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, fmt.Errorf("set target: %w", err)
	}

	return &HandLandmarker{
		net:     net,
		config:  cfg,
		outputs: []string{cfg.LandmarksOutput, cfg.PresenceOutput},
	}, nil
}

// Detect runs the model on one BGR frame.
func (d *HandLandmarker) Detect(frame gocv.Mat) (landmark.Sample, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if frame.Empty() {
		return landmark.None(), fmt.Errorf("empty frame")
	}

	size := d.config.InputSize
	blob := gocv.BlobFromImage(frame, 1.0/255.0, image.Pt(size, size), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	outs := d.net.ForwardLayers(d.outputs)
	defer func() {
		for i := range outs {
			outs[i].Close()
		}
	}()
	if len(outs) != 2 {
		return landmark.None(), fmt.Errorf("expected 2 outputs, got %d", len(outs))
	}

	presence, err := outs[1].DataPtrFloat32()
	if err != nil || len(presence) == 0 {
		return landmark.None(), fmt.Errorf("read presence: %v", err)
	}
	if presenceScore(presence[0]) < d.config.PresenceThreshold {
		return landmark.None(), nil
	}

	values, err := outs[0].DataPtrFloat32()
	if err != nil {
		return landmark.None(), fmt.Errorf("read landmarks: %w", err)
	}
	points, err := decodeLandmarks(values, size)
	if err != nil {
		return landmark.None(), err
	}
	return landmark.FromPoints(points), nil
}

// Close releases the network.
func (d *HandLandmarker) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}

// decodeLandmarks converts the flat x,y,z output (input-pixel units) into
// normalized points. z shares the x scale, as in MediaPipe.
func decodeLandmarks(values []float32, inputSize int) ([]r3.Vec, error) {
	need := landmark.HandLandmarks * 3
	if len(values) < need {
		return nil, fmt.Errorf("landmark output too short: %d < %d", len(values), need)
	}
	scale := float64(inputSize)
	points := make([]r3.Vec, landmark.HandLandmarks)
	for i := range points {
		points[i] = r3.Vec{
			X: float64(values[i*3]) / scale,
			Y: float64(values[i*3+1]) / scale,
			Z: float64(values[i*3+2]) / scale,
		}
	}
	return points, nil
}

// presenceScore accepts either a probability or a raw logit.
func presenceScore(v float32) float64 {
	f := float64(v)
	if f >= 0 && f <= 1 {
		return f
	}
	return 1 / (1 + math.Exp(-f))
}
