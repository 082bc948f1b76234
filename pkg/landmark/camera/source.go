package camera

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/teslashibe/go-handflow/internal/log"
	"github.com/teslashibe/go-handflow/pkg/landmark"
	"gocv.io/x/gocv"
)

// Source captures frames from a local camera and runs a Detector on each.
type Source struct {
	config      Config
	newDetector func(Config) (Detector, error)

	mu      sync.Mutex
	capture *gocv.VideoCapture
	det     Detector
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a camera source using the ONNX hand landmarker.
func New(cfg Config) *Source {
	return &Source{
		config: cfg,
		newDetector: func(c Config) (Detector, error) {
			return NewHandLandmarker(c)
		},
	}
}

// Start opens the camera, loads the detector and begins the capture loop.
func (s *Source) Start(ctx context.Context, onSample landmark.SampleFunc) error {
	if onSample == nil {
		return errors.New("landmark: nil sample callback")
	}
	if err := s.config.Validate(); err != nil {
		return &landmark.AcquisitionError{Reason: "invalid camera config", Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return landmark.ErrAlreadyStarted
	}

	capture, err := gocv.OpenVideoCapture(s.config.Device)
	if err != nil {
		return &landmark.AcquisitionError{Reason: "camera access denied or not available", Err: classify(err)}
	}
	if !capture.IsOpened() {
		capture.Close()
		return &landmark.AcquisitionError{Reason: "camera access denied or not available", Err: landmark.ErrCameraUnavailable}
	}
	capture.Set(gocv.VideoCaptureFrameWidth, float64(s.config.Width))
	capture.Set(gocv.VideoCaptureFrameHeight, float64(s.config.Height))

	det, err := s.newDetector(s.config)
	if err != nil {
		capture.Close()
		return &landmark.AcquisitionError{Reason: "hand detector failed to initialize", Err: errors.Join(landmark.ErrDetectorUnavailable, err)}
	}

	if err := ctx.Err(); err != nil {
		det.Close()
		capture.Close()
		return landmark.Acquire("start canceled", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.capture = capture
	s.det = det
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(runCtx, capture, det, onSample, s.done)

	log.Info("camera source started",
		"component", "camera",
		"device", s.config.Device,
		"size", [2]int{s.config.Width, s.config.Height},
		"model", s.config.ModelPath)
	return nil
}

// frameReader is the part of gocv.VideoCapture the capture loop uses.
type frameReader interface {
	Read(m *gocv.Mat) bool
}

// run is the capture loop. Its cadence is the camera's frame rate. The first
// failed read of a streak delivers a None sample so a stalled camera reads
// as no hand.
func (s *Source) run(ctx context.Context, capture frameReader, det Detector, onSample landmark.SampleFunc, done chan struct{}) {
	defer close(done)

	logger := log.Component("camera")
	img := gocv.NewMat()
	defer img.Close()

	failures := 0
	for {
		if ctx.Err() != nil {
			return
		}

		if ok := capture.Read(&img); !ok || img.Empty() {
			failures++
			if failures == 1 {
				onSample(landmark.None())
			}
			if failures == s.config.MaxReadFailures {
				logger.Warn("camera delivering no frames", "failures", failures)
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(10 * time.Millisecond):
			}
			continue
		}
		failures = 0

		sample, err := det.Detect(img)
		if err != nil {
			logger.Debug("detection error", "error", err)
			sample = landmark.None()
		}
		onSample(sample)
	}
}

// Stop halts the capture loop and releases the camera and detector.
func (s *Source) Stop() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	capture, det := s.capture, s.det
	s.cancel, s.done, s.capture, s.det = nil, nil, nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done

	var errs []error
	if det != nil {
		errs = append(errs, det.Close())
	}
	if capture != nil {
		errs = append(errs, capture.Close())
	}
	log.Info("camera source stopped", "component", "camera")
	return errors.Join(errs...)
}

// classify maps OS capture errors onto acquisition sentinels.
func classify(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "permission") || strings.Contains(msg, "denied") {
		return errors.Join(landmark.ErrPermissionDenied, err)
	}
	return errors.Join(landmark.ErrCameraUnavailable, err)
}
