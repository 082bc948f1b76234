package tracking

import (
	"math"
	"sync"
)

// deadzoneEpsilon absorbs float error so a palm exactly on the deadzone
// boundary stays inside it.
const deadzoneEpsilon = 1e-9

// Velocity is the scroll controller state in pixels per tick.
type Velocity struct {
	Target  float64 `json:"target"`
	Current float64 `json:"current"`
}

// ScrollController maps palm height to a scroll velocity.
//
// Palm distance from the neutral point beyond the deadzone sets a target
// velocity; the current velocity approaches it geometrically and is applied
// only above the noise floor. Losing the hand sets the target to zero, so
// the velocity decays rather than stopping dead. Reset stops it dead.
type ScrollController struct {
	mu sync.Mutex

	neutral    float64
	deadzone   float64
	gain       float64
	smoothing  float64
	noiseFloor float64

	v Velocity
}

// NewScrollController creates a controller at rest.
func NewScrollController(cfg Config) *ScrollController {
	c := &ScrollController{}
	c.configure(cfg)
	return c
}

func (c *ScrollController) configure(cfg Config) {
	c.neutral = cfg.NeutralPoint
	c.deadzone = cfg.Deadzone
	c.gain = cfg.ScrollGain
	c.smoothing = cfg.VelocitySmoothing
	c.noiseFloor = cfg.NoiseFloor
}

// SetConfig applies a new calibration without touching the velocity.
func (c *ScrollController) SetConfig(cfg Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.configure(cfg)
}

// TargetVelocity returns the velocity a palm height asks for.
func (c *ScrollController) TargetVelocity(palmY float64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.targetLocked(palmY)
}

func (c *ScrollController) targetLocked(palmY float64) float64 {
	distance := palmY - c.neutral
	if math.Abs(distance) <= c.deadzone+deadzoneEpsilon {
		return 0
	}
	return distance * c.gain
}

// Step runs one integration step against a hand snapshot. It returns the
// displacement to apply and whether it exceeds the noise floor.
func (c *ScrollController) Step(hs HandState) (dy float64, apply bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if hs.Detected {
		c.v.Target = c.targetLocked(hs.PalmY)
	} else {
		c.v.Target = 0
	}
	c.v.Current = Lerp(c.v.Current, c.v.Target, c.smoothing)

	if math.Abs(c.v.Current) > c.noiseFloor {
		return c.v.Current, true
	}
	return 0, false
}

// Reset zeroes both velocities immediately.
func (c *ScrollController) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.v = Velocity{}
}

// Velocity returns the current controller state.
func (c *ScrollController) Velocity() Velocity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.v
}
