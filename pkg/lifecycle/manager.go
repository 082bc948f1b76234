package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-handflow/internal/log"
	"github.com/teslashibe/go-handflow/pkg/fanout"
	"github.com/teslashibe/go-handflow/pkg/landmark"
	"github.com/teslashibe/go-handflow/pkg/tracking"
)

// Options configures a Manager.
type Options struct {
	Config   tracking.Config
	Scroller tracking.Scroller           // Optional scroll primitive
	Frames   *fanout.Bus[tracking.Frame] // Optional frame fan-out

	// OnStateChange is called after every transition, outside any lock.
	OnStateChange func(Status)
}

// Manager owns the tracking lifecycle. At most one session is active.
type Manager struct {
	source landmark.Source
	opts   Options
	logger *slog.Logger

	op sync.Mutex // Serializes Activate and Deactivate

	mu      sync.RWMutex
	state   State
	lastErr error
	session *Session
	config  tracking.Config
	since   time.Time
}

// NewManager creates an idle manager around a landmark source.
func NewManager(source landmark.Source, opts Options) *Manager {
	return &Manager{
		source: source,
		opts:   opts,
		logger: log.Component("lifecycle"),
		state:  Idle,
		config: opts.Config,
		since:  time.Now(),
	}
}

// Activate acquires the source and starts tracking.
//
// If a session is already active it is returned unchanged. If another
// activation is in progress Activate fails with ErrBusy. Acquisition failures
// leave the manager in Error with the cause available from LastError; a later
// Activate retries.
func (m *Manager) Activate(ctx context.Context) (*Session, error) {
	m.mu.RLock()
	busy := m.state == Initializing
	m.mu.RUnlock()
	if busy {
		return nil, ErrBusy
	}

	m.op.Lock()
	defer m.op.Unlock()

	if s := m.Session(); s != nil {
		return s, nil
	}

	m.transition(Initializing, nil, nil)

	cfg := m.Config()
	session, err := startSession(ctx, m.source, cfg, m.opts.Scroller, m.publish, m.logger)
	if err != nil {
		m.logger.Warn("activation failed", "error", err)
		m.transition(Error, err, nil)
		return nil, err
	}

	m.logger.Info("tracking active",
		"session", session.ID.String(),
		"neutral", cfg.NeutralPoint,
		"deadzone", cfg.Deadzone,
		"gain", cfg.ScrollGain)
	m.transition(Active, nil, session)
	return session, nil
}

// Deactivate stops the active session and returns to Idle. It returns only
// after both loops have stopped, the source is released and the scroll
// velocity is zero. Calling it with nothing active has no effect.
func (m *Manager) Deactivate() error {
	m.op.Lock()
	defer m.op.Unlock()

	session := m.Session()
	if session == nil {
		return nil
	}

	m.transition(Stopping, nil, session)
	err := session.Close()
	if err != nil {
		m.logger.Warn("session teardown reported errors", "error", err)
	}
	m.transition(Idle, nil, nil)
	return err
}

// Toggle activates when inactive and deactivates when active.
func (m *Manager) Toggle(ctx context.Context) (Status, error) {
	if m.Session() != nil {
		err := m.Deactivate()
		return m.Status(), err
	}
	_, err := m.Activate(ctx)
	return m.Status(), err
}

// Session returns the active session or nil.
func (m *Manager) Session() *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state != Active {
		return nil
	}
	return m.session
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// LastError returns the error from the last failed activation, if any.
func (m *Manager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

// Status returns a display snapshot.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.statusLocked()
}

func (m *Manager) statusLocked() Status {
	st := Status{State: m.state, Since: m.since}
	if m.lastErr != nil {
		st.Error = m.lastErr.Error()
	}
	if m.session != nil {
		st.SessionID = m.session.ID.String()
	}
	return st
}

// Config returns the configuration used for new sessions.
func (m *Manager) Config() tracking.Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// SetTuning validates params and applies them to future sessions and to the
// active one, if any.
func (m *Manager) SetTuning(params tracking.TuningParams) error {
	m.mu.Lock()
	cfg := m.config.WithTuning(params)
	if err := cfg.Validate(); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("invalid tuning: %w", err)
	}
	m.config = cfg
	session := m.session
	m.mu.Unlock()

	if session != nil {
		return session.Tracker().SetTuningParams(params)
	}
	return nil
}

func (m *Manager) transition(state State, err error, session *Session) {
	m.mu.Lock()
	prev := m.state
	m.state = state
	m.session = session
	if state == Initializing || state == Active {
		m.lastErr = nil
	}
	if err != nil {
		m.lastErr = err
	}
	m.since = time.Now()
	st := m.statusLocked()
	m.mu.Unlock()

	m.logger.Debug("state change", "from", prev, "to", state)
	if m.opts.OnStateChange != nil {
		m.opts.OnStateChange(st)
	}
}

func (m *Manager) publish(frame tracking.Frame) {
	if m.opts.Frames != nil {
		m.opts.Frames.Publish(frame)
	}
}

// Close deactivates any active session.
func (m *Manager) Close() error {
	return m.Deactivate()
}
