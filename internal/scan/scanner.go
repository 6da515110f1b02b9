package scan

import (
	"context"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tdh8316/findme/internal/catalog"
)

type EventKind int

const (
	EventStarted EventKind = iota
	EventProbing
	EventScanned
	EventCompleted
)

func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventProbing:
		return "probing"
	case EventScanned:
		return "scanned"
	case EventCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Event is a progress update published while a session runs.
//
// Started carries the total. Probing names the platform about to be probed.
// Scanned carries the probe and, when the platform qualifies, its Record.
// Completed is the last event of a scan that ran to the end.
type Event struct {
	Kind       EventKind
	Generation uint64
	Username   string
	Mode       Mode
	Platform   string
	Probe      *Probe
	Record     *Record
	State      State
}

type Sink interface {
	Publish(Event)
}

type SinkFunc func(Event)

func (f SinkFunc) Publish(ev Event) { f(ev) }

// Sinks fans out to several sinks in order.
type Sinks []Sink

func (s Sinks) Publish(ev Event) {
	for _, sink := range s {
		if sink != nil {
			sink.Publish(ev)
		}
	}
}

// Scanner probes catalog platforms one at a time, in catalog order, with a
// fixed pause between probes.
type Scanner struct {
	prober Prober
	delay  time.Duration
	log    logrus.FieldLogger
}

func NewScanner(prober Prober, delay time.Duration, log logrus.FieldLogger) *Scanner {
	if delay < 0 {
		delay = 0
	}
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Scanner{prober: prober, delay: delay, log: log}
}

func (s *Scanner) Delay() time.Duration { return s.delay }

// Scan runs sess against cat and returns the qualifying records. If the
// session is canceled, Scan stops before the next probe, drops the result
// of the probe in flight, and returns the context error with the records
// gathered so far. The session's context is released when Scan returns.
func (s *Scanner) Scan(sess *Session, cat *catalog.Catalog, sink Sink) ([]Record, error) {
	defer sess.Cancel()
	if sink == nil {
		sink = SinkFunc(func(Event) {})
	}
	ctx := sess.Context()
	log := s.log.WithFields(logrus.Fields{
		"session":    sess.ID,
		"generation": sess.Generation,
		"mode":       sess.Mode,
	})

	total := cat.Len()
	st := sess.start(total)
	sink.Publish(s.event(sess, EventStarted, st))
	log.WithField("platforms", total).Debug("scan started")

	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			log.WithField("scanned", sess.State().Scanned).Debug("scan canceled")
			return sess.Results(), err
		}

		p := cat.Platforms[i]
		ev := s.event(sess, EventProbing, sess.State())
		ev.Platform = p.Name
		sink.Publish(ev)

		probe := s.prober.Probe(ctx, p, sess.Username)
		if err := ctx.Err(); err != nil {
			log.WithField("platform", p.Name).Debug("discarding probe of canceled scan")
			return sess.Results(), err
		}

		var rec *Record
		if status, ok := Classify(probe.Outcome, sess.Mode); ok {
			rec = &Record{Name: p.Name, URL: probe.ProfileURL, Status: status}
		}
		st = sess.advance(rec)

		ev = s.event(sess, EventScanned, st)
		ev.Platform = p.Name
		ev.Probe = &probe
		ev.Record = rec
		sink.Publish(ev)

		if i < total-1 {
			if err := s.pause(ctx); err != nil {
				return sess.Results(), err
			}
		}
	}

	st = sess.State()
	sink.Publish(s.event(sess, EventCompleted, st))
	log.WithField("matched", len(st.Results)).Debug("scan completed")
	return st.Results, nil
}

func (s *Scanner) event(sess *Session, kind EventKind, st State) Event {
	return Event{
		Kind:       kind,
		Generation: sess.Generation,
		Username:   sess.Username,
		Mode:       sess.Mode,
		State:      st,
	}
}

// pause waits out the inter-probe delay, or until ctx is done.
func (s *Scanner) pause(ctx context.Context) error {
	if s.delay == 0 {
		return ctx.Err()
	}
	t := time.NewTimer(s.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
