// Package lifecycle owns activation and teardown of hand tracking.
//
// A Manager moves through Idle, Initializing, Active, Stopping and Error.
// Activate returns a Session that owns the landmark source and both control
// loops; closing the session is the single teardown point.
package lifecycle

import (
	"errors"
	"fmt"
	"time"
)

// State is the tracking lifecycle state.
type State int32

const (
	Idle State = iota
	Initializing
	Active
	Error
	Stopping
)

var stateNames = map[State]string{
	Idle:         "idle",
	Initializing: "initializing",
	Active:       "active",
	Error:        "error",
	Stopping:     "stopping",
}

// String returns the lowercase state name.
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ErrBusy is returned when an activation is already in progress.
var ErrBusy = errors.New("lifecycle: activation in progress")

// Status is a point-in-time view of the manager for display.
type Status struct {
	State     State     `json:"state"`
	Error     string    `json:"error,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	Since     time.Time `json:"since"`
}
