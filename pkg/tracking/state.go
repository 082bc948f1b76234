// Package tracking turns hand landmark samples into motion control signals:
// a smoothed rotation with proximity and pulse for renderers, and a
// velocity-integrating scroll controller.
package tracking

import (
	"sync/atomic"
	"time"
)

// HandState is the canonical hand signal shared by every consumer.
//
// When Detected is false the numeric fields hold the last detected values.
// They are stale, and consumers gate on Detected before treating them as new.
type HandState struct {
	X        float64   `json:"x"`      // Mirrored palm x in [0,1]
	Y        float64   `json:"y"`      // Palm y in [0,1], 0 = top of frame
	Z        float64   `json:"z"`      // Proximity in [-1,1], negative = closer
	PalmY    float64   `json:"palm_y"` // 1-Y: raised palm is larger
	Detected bool      `json:"detected"`
	Seq      uint64    `json:"seq"` // Incremented on every detector callback
	Updated  time.Time `json:"updated"`
}

// InitialHandState is the state before any sample arrives.
func InitialHandState() HandState {
	return HandState{X: 0.5, Y: 0.5, Z: 0, PalmY: 0.5}
}

// Store publishes HandState as immutable snapshots. One writer replaces the
// snapshot; readers load it without locking and never see a partial update.
type Store struct {
	p atomic.Pointer[HandState]
}

// NewStore creates a store holding InitialHandState.
func NewStore() *Store {
	s := &Store{}
	initial := InitialHandState()
	s.p.Store(&initial)
	return s
}

// Load returns the current snapshot.
func (s *Store) Load() HandState {
	return *s.p.Load()
}

// publish replaces the snapshot. Callers must be the single writer.
func (s *Store) publish(hs HandState) {
	s.p.Store(&hs)
}
