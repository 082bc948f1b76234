package tracking

import (
	"math"
	"sync"
	"time"
)

// Rotation is an object orientation in radians. Y accumulates without bound
// so idle spin is continuous.
type Rotation struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Smoother low-pass filters a target rotation derived from the hand.
//
// Each tick moves the current rotation a fixed fraction alpha of the way to
// the target. This is an exponential moving average, not a spring: with a
// constant target the error shrinks by (1-alpha) per tick and never
// overshoots.
type Smoother struct {
	mu sync.Mutex

	alpha        float64
	gainX, gainY float64
	bobFreq      float64
	bobAmp       float64
	spinRate     float64

	current Rotation
	target  Rotation
}

// NewSmoother creates a smoother at rest.
func NewSmoother(cfg Config) *Smoother {
	s := &Smoother{}
	s.configure(cfg)
	return s
}

func (s *Smoother) configure(cfg Config) {
	s.alpha = cfg.RotationSmoothing
	s.gainX = cfg.RotationGainX
	s.gainY = cfg.RotationGainY
	s.bobFreq = cfg.IdleBobFrequency
	s.bobAmp = cfg.IdleBobAmplitude
	s.spinRate = cfg.IdleSpinRate
}

// SetConfig applies new gains and smoothing without resetting the rotation.
func (s *Smoother) SetConfig(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configure(cfg)
}

// Target returns the rotation the smoother is heading for.
// With a hand it follows the palm; without one it bobs and spins with time.
func (s *Smoother) Target(hs HandState, elapsed time.Duration) Rotation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.targetLocked(hs, elapsed)
}

func (s *Smoother) targetLocked(hs HandState, elapsed time.Duration) Rotation {
	if hs.Detected {
		return Rotation{
			X: (hs.Y - 0.5) * s.gainX,
			Y: (hs.X - 0.5) * s.gainY,
		}
	}
	t := elapsed.Seconds()
	return Rotation{
		X: math.Sin(t*s.bobFreq) * s.bobAmp,
		Y: t * s.spinRate,
	}
}

// Update advances one render tick and returns the new rotation.
func (s *Smoother) Update(hs HandState, elapsed time.Duration) Rotation {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.target = s.targetLocked(hs, elapsed)
	s.current = Rotation{
		X: Lerp(s.current.X, s.target.X, s.alpha),
		Y: Lerp(s.current.Y, s.target.Y, s.alpha),
	}
	return s.current
}

// Current returns the last computed rotation.
func (s *Smoother) Current() Rotation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Lerp moves current toward target by the fraction alpha.
func Lerp(current, target, alpha float64) float64 {
	return current + (target-current)*alpha
}

// Proximity is 1-|z| for a tracked hand and 0 otherwise. It is not smoothed.
func Proximity(hs HandState) float64 {
	if !hs.Detected {
		return 0
	}
	return 1 - math.Abs(hs.Z)
}

// Pulse maps proximity into a shader pulse intensity in [base, 1].
func Pulse(hs HandState, base float64) float64 {
	return base + Proximity(hs)*(1-base)
}
