package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/teslashibe/go-handflow/pkg/landmark"
	"github.com/teslashibe/go-handflow/pkg/tracking"
	"golang.org/x/sync/errgroup"
)

// Session is one activation of hand tracking. It owns the landmark source,
// the tracker and both control loops.
type Session struct {
	ID      uuid.UUID
	Started time.Time

	tracker *tracking.Tracker
	source  landmark.Source
	cancel  context.CancelFunc
	group   *errgroup.Group
	logger  *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// startSession acquires the source and starts the loops. On any failure
// everything acquired so far is released before returning.
func startSession(ctx context.Context, source landmark.Source, cfg tracking.Config, scroller tracking.Scroller, publish func(tracking.Frame), logger *slog.Logger) (s *Session, err error) {
	id := uuid.New()
	logger = logger.With("session", id.String())
	tracker := tracking.New(cfg, scroller, publish).WithLogger(logger)

	defer func() {
		if r := recover(); r != nil {
			err = &landmark.AcquisitionError{Reason: "detector failed to start", Err: panicError{r}}
		}
		if err != nil {
			if stopErr := source.Stop(); stopErr != nil {
				logger.Warn("source stop after failed start", "error", stopErr)
			}
			s = nil
		}
	}()

	if err := source.Start(ctx, tracker.HandleSample); err != nil {
		return nil, landmark.Acquire("camera access denied or not available", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	group, groupCtx := errgroup.WithContext(runCtx)
	group.Go(func() error { return tracker.RunRender(groupCtx) })
	group.Go(func() error { return tracker.RunScroll(groupCtx) })

	return &Session{
		ID:      id,
		Started: time.Now(),
		tracker: tracker,
		source:  source,
		cancel:  cancel,
		group:   group,
		logger:  logger,
	}, nil
}

// Tracker returns the session's tracker.
func (s *Session) Tracker() *tracking.Tracker {
	return s.tracker
}

// Frame returns the latest published frame.
func (s *Session) Frame() tracking.Frame {
	return s.tracker.Frame()
}

// Hand returns the current hand snapshot.
func (s *Session) Hand() tracking.HandState {
	return s.tracker.Hand()
}

// Close stops both loops, releases the source and zeroes the scroll
// velocity. When it returns nothing owned by the session is running.
// Safe to call more than once; later calls return the first result.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		loopErr := s.group.Wait()
		stopErr := s.source.Stop()
		s.tracker.Halt()
		s.closeErr = errors.Join(loopErr, stopErr)

		s.logger.Info("session closed",
			"duration", time.Since(s.Started).Round(time.Millisecond),
			"frames", s.tracker.Frame().Seq)
	})
	return s.closeErr
}

type panicError struct{ value any }

func (p panicError) Error() string {
	return fmt.Sprintf("panic: %v", p.value)
}
