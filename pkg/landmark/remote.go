package landmark

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// RemoteSource receives detector results produced elsewhere, typically a
// browser running MediaPipe Hands that streams results over a websocket.
//
// Producers Attach when they connect and Ingest results while attached.
// Start waits up to AttachTimeout for a producer; with no producer the start
// fails with ErrCameraUnavailable. When the last producer detaches from a
// running source a None sample is delivered, so a vanished detector reads as
// no hand.
type RemoteSource struct {
	// AttachTimeout bounds how long Start waits for a producer.
	// Zero means Start does not require a producer.
	AttachTimeout time.Duration

	mu        sync.Mutex
	onSample  SampleFunc
	running   bool
	producers int
	changed   chan struct{}
	waiting   int
	failure   error

	received atomic.Uint64
	dropped  atomic.Uint64
}

// NewRemoteSource creates a remote source.
func NewRemoteSource(attachTimeout time.Duration) *RemoteSource {
	return &RemoteSource{
		AttachTimeout: attachTimeout,
		changed:       make(chan struct{}),
	}
}

// Start begins forwarding ingested results to onSample.
func (s *RemoteSource) Start(ctx context.Context, onSample SampleFunc) error {
	if onSample == nil {
		return errors.New("landmark: nil sample callback")
	}

	if err := s.awaitProducer(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrAlreadyStarted
	}
	s.onSample = onSample
	s.running = true
	return nil
}

func (s *RemoteSource) awaitProducer(ctx context.Context) error {
	if s.AttachTimeout <= 0 {
		return nil
	}

	timer := time.NewTimer(s.AttachTimeout)
	defer timer.Stop()

	s.mu.Lock()
	s.waiting++
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.waiting--
		if s.waiting == 0 {
			s.failure = nil
		}
		s.mu.Unlock()
	}()

	for {
		s.mu.Lock()
		if s.failure != nil {
			err := s.failure
			s.failure = nil
			s.mu.Unlock()
			return Acquire("detector reported failure", err)
		}
		if s.producers > 0 {
			s.mu.Unlock()
			return nil
		}
		changed := s.changed
		s.mu.Unlock()

		select {
		case <-changed:
		case <-timer.C:
			return &AcquisitionError{Reason: "no detector connected", Err: ErrCameraUnavailable}
		case <-ctx.Done():
			return Acquire("start canceled", ctx.Err())
		}
	}
}

// Stop stops forwarding. Safe to call repeatedly.
func (s *RemoteSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.onSample = nil
	return nil
}

// Attach registers a producer. The returned func detaches it.
func (s *RemoteSource) Attach() (detach func()) {
	s.mu.Lock()
	s.producers++
	s.notifyLocked()
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.producers--
			s.notifyLocked()
			if s.producers == 0 && s.running && s.onSample != nil {
				s.onSample(None())
			}
		})
	}
}

// Report records a failure from a producer, such as a browser that was
// refused camera access. A pending Start fails with it. A running source
// treats it as no hand. Otherwise the report is discarded.
func (s *RemoteSource) Report(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running && s.onSample != nil {
		s.onSample(None())
	}
	if s.waiting == 0 {
		return
	}
	s.failure = err
	s.notifyLocked()
}

func (s *RemoteSource) notifyLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}

// Ingest delivers one raw result. It returns false when the source is not
// running and the result was dropped.
//
// The callback runs under the source lock so no sample is delivered after
// Stop returns.
func (s *RemoteSource) Ingest(raw RawResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || s.onSample == nil {
		s.dropped.Add(1)
		return false
	}
	s.received.Add(1)
	s.onSample(FromRaw(raw))
	return true
}

// Producers returns the number of attached producers.
func (s *RemoteSource) Producers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.producers
}

// Stats returns how many results were delivered and dropped.
func (s *RemoteSource) Stats() (received, dropped uint64) {
	return s.received.Load(), s.dropped.Load()
}
