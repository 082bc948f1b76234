package tracking

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-handflow/internal/log"
	"github.com/teslashibe/go-handflow/pkg/landmark"
)

// Scroller displaces the viewport by a signed pixel delta.
type Scroller interface {
	ScrollBy(dy float64)
}

// ScrollerFunc adapts a function to Scroller.
type ScrollerFunc func(dy float64)

// ScrollBy calls f(dy).
func (f ScrollerFunc) ScrollBy(dy float64) { f(dy) }

// Frame is the read-only snapshot published once per render tick.
type Frame struct {
	Seq       uint64        `json:"seq"`
	Elapsed   time.Duration `json:"elapsed"`
	Hand      HandState     `json:"hand"`
	Rotation  Rotation      `json:"rotation"`
	Proximity float64       `json:"proximity"`
	Pulse     float64       `json:"pulse"`
	Scroll    Velocity      `json:"scroll"`
}

// Tracker wires the normalizer, smoother and scroll controller around one
// HandState store and runs the render and scroll loops.
//
// Detector callbacks write through HandleSample. Each loop iteration loads
// the hand snapshot once, so everything computed in a tick sees the same
// state.
type Tracker struct {
	config Config
	mu     sync.RWMutex

	store      *Store
	normalizer *Normalizer
	smoother   *Smoother
	scroll     *ScrollController
	scroller   Scroller
	publish    func(Frame)

	latest atomic.Pointer[Frame]
	frames atomic.Uint64
	logger *slog.Logger
}

// New creates a tracker. scroller and publish may be nil.
func New(config Config, scroller Scroller, publish func(Frame)) *Tracker {
	store := NewStore()
	t := &Tracker{
		config:     config,
		store:      store,
		normalizer: NewNormalizer(store),
		smoother:   NewSmoother(config),
		scroll:     NewScrollController(config),
		scroller:   scroller,
		publish:    publish,
		logger:     log.Component("tracking"),
	}
	initial := Frame{Hand: store.Load(), Pulse: config.PulseBase}
	t.latest.Store(&initial)
	return t
}

// WithLogger replaces the tracker's logger.
func (t *Tracker) WithLogger(logger *slog.Logger) *Tracker {
	t.logger = logger
	return t
}

// Config returns the active configuration.
func (t *Tracker) Config() Config {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.config
}

// HandleSample is the detector callback.
func (t *Tracker) HandleSample(sample landmark.Sample) {
	prev := t.store.Load()
	hs := t.normalizer.Apply(sample)
	if hs.Detected != prev.Detected {
		if hs.Detected {
			t.logger.Debug("hand acquired", "x", hs.X, "y", hs.Y, "z", hs.Z)
		} else {
			t.logger.Debug("hand lost", "seq", hs.Seq)
		}
	}
}

// Hand returns the current hand snapshot.
func (t *Tracker) Hand() HandState {
	return t.store.Load()
}

// Frame returns the most recently published frame.
func (t *Tracker) Frame() Frame {
	return *t.latest.Load()
}

// Velocity returns the scroll controller state.
func (t *Tracker) Velocity() Velocity {
	return t.scroll.Velocity()
}

// RenderTick advances the smoother one render frame and publishes the result.
func (t *Tracker) RenderTick(elapsed time.Duration) Frame {
	hs := t.store.Load()

	t.mu.RLock()
	pulseBase := t.config.PulseBase
	t.mu.RUnlock()

	frame := Frame{
		Seq:       t.frames.Add(1),
		Elapsed:   elapsed,
		Hand:      hs,
		Rotation:  t.smoother.Update(hs, elapsed),
		Proximity: Proximity(hs),
		Pulse:     Pulse(hs, pulseBase),
		Scroll:    t.scroll.Velocity(),
	}
	t.latest.Store(&frame)
	if t.publish != nil {
		t.publish(frame)
	}
	return frame
}

// ScrollTick runs one scroll integration step and applies the displacement.
func (t *Tracker) ScrollTick() (float64, bool) {
	dy, apply := t.scroll.Step(t.store.Load())
	if apply && t.scroller != nil {
		t.scrollBy(dy)
	}
	return dy, apply
}

// scrollBy isolates the pipeline from a failing scroll consumer.
func (t *Tracker) scrollBy(dy float64) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("scroller panicked", "panic", r)
		}
	}()
	t.scroller.ScrollBy(dy)
}

// RunRender ticks the smoother at RenderInterval until ctx is done.
func (t *Tracker) RunRender(ctx context.Context) error {
	t.mu.RLock()
	interval := t.config.RenderInterval
	t.mu.RUnlock()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			t.RenderTick(now.Sub(start))
		}
	}
}

// RunScroll integrates scroll velocity at ScrollInterval until ctx is done.
// Cancellation is checked before every step.
func (t *Tracker) RunScroll(ctx context.Context) error {
	t.mu.RLock()
	interval := t.config.ScrollInterval
	t.mu.RUnlock()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if ctx.Err() != nil {
				return nil
			}
			t.ScrollTick()
		}
	}
}

// Halt zeroes the scroll velocity and publishes a final frame reflecting it.
// Call only after both loops have returned.
func (t *Tracker) Halt() {
	t.scroll.Reset()
	frame := t.Frame()
	frame.Scroll = Velocity{}
	t.latest.Store(&frame)
	if t.publish != nil {
		t.publish(frame)
	}
}
