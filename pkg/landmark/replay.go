package landmark

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// ReplayConfig controls a ReplaySource.
type ReplayConfig struct {
	Path string  // JSON-lines recording, one RawResult per line
	FPS  float64 // Delivery rate (default 30)
	Loop bool    // Restart from the first frame after the last
}

// ReplaySource plays back recorded detector results at a fixed rate.
// It stands in for a camera when none is available.
type ReplaySource struct {
	config ReplayConfig
	frames []RawResult

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewReplaySource creates a replay source. When frames is nil the recording
// at config.Path is read during Start.
func NewReplaySource(config ReplayConfig, frames []RawResult) *ReplaySource {
	if config.FPS <= 0 {
		config.FPS = 30
	}
	return &ReplaySource{config: config, frames: frames}
}

// ReadRecording parses a JSON-lines recording. Blank lines are skipped.
func ReadRecording(r io.Reader) ([]RawResult, error) {
	var frames []RawResult
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		data := scanner.Bytes()
		if len(data) == 0 {
			continue
		}
		var raw RawResult
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		frames = append(frames, raw)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return frames, nil
}

// LoadRecording reads a JSON-lines recording from disk.
func LoadRecording(path string) ([]RawResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadRecording(f)
}

// Start begins playback.
func (s *ReplaySource) Start(ctx context.Context, onSample SampleFunc) error {
	if onSample == nil {
		return errors.New("landmark: nil sample callback")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return ErrAlreadyStarted
	}

	frames := s.frames
	if frames == nil {
		loaded, err := LoadRecording(s.config.Path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) || errors.Is(err, os.ErrPermission) {
				return &AcquisitionError{Reason: "recording not readable", Err: errors.Join(ErrCameraUnavailable, err)}
			}
			return &AcquisitionError{Reason: "invalid recording", Err: errors.Join(ErrDetectorUnavailable, err)}
		}
		frames = loaded
	}
	if len(frames) == 0 {
		return &AcquisitionError{Reason: "empty recording", Err: ErrDetectorUnavailable}
	}
	if err := ctx.Err(); err != nil {
		return Acquire("start canceled", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.play(runCtx, frames, onSample, s.done)
	return nil
}

func (s *ReplaySource) play(ctx context.Context, frames []RawResult, onSample SampleFunc, done chan struct{}) {
	defer close(done)

	interval := time.Duration(float64(time.Second) / s.config.FPS)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	i := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if i >= len(frames) {
				if !s.config.Loop {
					// Detector silence is "no hand".
					onSample(None())
					return
				}
				i = 0
			}
			onSample(FromRaw(frames[i]))
			i++
		}
	}
}

// Stop halts playback and waits for the playback goroutine to exit.
func (s *ReplaySource) Stop() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}
