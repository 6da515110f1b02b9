package scan

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Session is one scan: a username, a fixed mode and the state it accumulates.
// Generation grows by one for every session a Tracker issues, so an event
// can be matched to the session that produced it.
type Session struct {
	ID         uuid.UUID
	Generation uint64
	Username   string
	Mode       Mode

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	state State
}

// NewSession creates a session outside of a Tracker.
func NewSession(ctx context.Context, generation uint64, username string, mode Mode) (*Session, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrEmptyUsername
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Session{
		ID:         uuid.New(),
		Generation: generation,
		Username:   username,
		Mode:       mode,
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

func (s *Session) Context() context.Context { return s.ctx }

// Cancel stops the session. Probes not yet started are never issued.
func (s *Session) Cancel() { s.cancel() }

func (s *Session) Canceled() bool { return s.ctx.Err() != nil }

// State returns a snapshot of the session's progress.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// Results returns a copy of the qualifying records so far.
func (s *Session) Results() []Record {
	return s.State().Results
}

func (s *Session) start(total int) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = State{Total: total}
	return s.snapshot()
}

func (s *Session) advance(rec *Record) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Scanned++
	if rec != nil {
		s.state.Results = append(s.state.Results, *rec)
	}
	return s.snapshot()
}

func (s *Session) snapshot() State {
	st := s.state
	st.Results = append([]Record(nil), s.state.Results...)
	return st
}

// Tracker hands out sessions and remembers which one is current. Starting a
// session or resetting cancels the previous one.
type Tracker struct {
	mu      sync.Mutex
	gen     uint64
	current *Session
}

func NewTracker() *Tracker { return &Tracker{} }

// Begin starts a new current session.
func (t *Tracker) Begin(ctx context.Context, username string, mode Mode) (*Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	sess, err := NewSession(ctx, t.gen+1, username, mode)
	if err != nil {
		return nil, err
	}
	if t.current != nil {
		t.current.Cancel()
	}
	t.gen++
	t.current = sess
	return sess, nil
}

// Reset cancels the current session and invalidates its events. Used when
// the mode changes.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current != nil {
		t.current.Cancel()
		t.current = nil
	}
	t.gen++
}

// Current returns the current session, or nil after a Reset.
func (t *Tracker) Current() *Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

func (t *Tracker) IsCurrent(generation uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current != nil && t.current.Generation == generation
}

// Guard wraps sink so that events from stale sessions are dropped.
func (t *Tracker) Guard(sink Sink) Sink {
	return SinkFunc(func(ev Event) {
		if t.IsCurrent(ev.Generation) {
			sink.Publish(ev)
		}
	})
}
