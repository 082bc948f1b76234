package tracking

import (
	"sync"
	"time"

	"github.com/teslashibe/go-handflow/pkg/landmark"
	"gonum.org/v1/gonum/spatial/r3"
)

// Normalizer converts landmark samples into HandState and is the single
// writer of a Store.
//
// The mapping is fixed: x is mirrored so the subject's right hand moves
// right on screen, and PalmY is inverted so a raised palm is larger.
// Consumers rely on both conventions.
type Normalizer struct {
	store *Store
	now   func() time.Time
	mu    sync.Mutex // Serializes writers
}

// NewNormalizer creates a normalizer writing into store.
func NewNormalizer(store *Store) *Normalizer {
	return &Normalizer{store: store, now: time.Now}
}

// PalmAnchor returns the midpoint of the wrist and the middle finger base.
func PalmAnchor(wrist, middleBase r3.Vec) r3.Vec {
	return r3.Scale(0.5, r3.Add(wrist, middleBase))
}

// Apply normalizes one sample and publishes the result.
// A sample with no hand only clears Detected.
func (n *Normalizer) Apply(sample landmark.Sample) HandState {
	n.mu.Lock()
	defer n.mu.Unlock()

	next := n.store.Load()
	next.Seq++
	next.Updated = n.now()

	wrist, okWrist := sample.Landmark(landmark.Wrist)
	middle, okMiddle := sample.Landmark(landmark.MiddleFingerMCP)
	if !okWrist || !okMiddle {
		next.Detected = false
		n.store.publish(next)
		return next
	}

	palm := PalmAnchor(wrist, middle)
	next.X = clamp(1-palm.X, 0, 1)
	next.Y = clamp(palm.Y, 0, 1)
	next.Z = clamp(palm.Z, -1, 1)
	next.PalmY = clamp(1-palm.Y, 0, 1)
	next.Detected = true

	n.store.publish(next)
	return next
}

// clamp limits a value to a range
func clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
