package fsm

import (
	"context"
	"sync"
	"time"

	"github.com/fla/fsmforge/pkg/fsmerr"
	"go.uber.org/zap"
)

// Session is the façade a caller drives (spec C8): submit events onto a
// bounded input queue, await completion, or cooperatively stop a run in
// progress. One Session owns one Engine and runs its loop on a single
// goroutine, the way the teacher's EventStreamer ran one processEvents
// goroutine per registered machine.
type Session struct {
	id     string
	engine *Engine
	log    *zap.Logger

	input  chan Event
	done   chan Outcome
	cancel chan struct{}

	once  sync.Once
	Stats *RunStats
}

// SessionConfig configures a session's queueing behavior (spec §5).
type SessionConfig struct {
	InputQueueSize int
	CancelGrace    time.Duration
}

// StartFSM begins a new run: it starts the session's loop goroutine and
// returns immediately. The caller must Submit the initial event (typically
// the {start -> first-state} transition) before anything happens.
func StartFSM(id string, engine *Engine, cfg SessionConfig, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.InputQueueSize <= 0 {
		cfg.InputQueueSize = 64
	}
	s := &Session{
		id:     id,
		engine: engine,
		log:    log.With(zap.String("session", id)),
		input:  make(chan Event, cfg.InputQueueSize),
		done:   make(chan Outcome, 1),
		cancel: make(chan struct{}),
		Stats:  NewRunStats(),
	}
	go s.run(cfg)
	return s
}

// ID returns the session's id.
func (s *Session) ID() string { return s.id }

// Submit enqueues event for processing. Events submitted to the same
// session are processed strictly in submission order (spec §4.5
// "Ordering guarantees"). Submit blocks if the input queue is full, and
// fails once Stop has been called.
func (s *Session) Submit(event Event) error {
	select {
	case <-s.cancel:
		return fsmerr.New(fsmerr.Cancelled, errAlreadyCancelled)
	default:
	}
	select {
	case s.input <- event:
		return nil
	case <-s.cancel:
		return fsmerr.New(fsmerr.Cancelled, errAlreadyCancelled)
	}
}

// Await blocks until the session completes, is cancelled, or timeout
// elapses (0 means wait forever). A timed-out Await does not stop the
// underlying loop — callers that want hard termination call Stop (spec
// §4.5 "Timeouts").
func (s *Session) Await(timeout time.Duration) (Outcome, error) {
	if timeout <= 0 {
		return <-s.done, nil
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case outcome := <-s.done:
		return outcome, nil
	case <-timer.C:
		return Outcome{}, fsmerr.New(fsmerr.Timeout, errAwaitTimedOut)
	}
}

// Stop cooperatively cancels the session: it sets the cancel token, which
// the loop observes at its next suspension point (spec §5). Calling Stop
// more than once is a no-op after the first call.
func (s *Session) Stop() {
	s.once.Do(func() { close(s.cancel) })
}

func (s *Session) run(cfg SessionConfig) {
	// CtxKeySession lets an action (e.g. bridgeaction's notification
	// watcher) reach back into this session from a goroutine of its own,
	// to Submit an event outside the normal continuation chain.
	ctx := NewContext().With(CtxKeySession, s)
	trail := &Trail{}

	// Nothing is seeded: callers submit their first domain event
	// directly, so the loop simply waits on input.
	event, ok := s.nextEvent()
	if !ok {
		trail.AppendCancelled(ctx)
		s.done <- Outcome{FinalContext: ctx, Cancelled: true, Trail: trail.Entries()}
		return
	}

	for {
		select {
		case <-s.cancel:
			trail.AppendCancelled(ctx)
			s.done <- Outcome{FinalContext: ctx, Trail: trail.Entries(), Cancelled: true}
			return
		default:
		}

		xid, xidErr := event.ID()

		result, err := s.engine.RunStep(ctx, event, trail)
		if xidErr == nil {
			s.Stats.RecordTransition(xid, err == nil, time.Now())
		}
		if err != nil {
			s.log.Warn("session step failed", zap.Error(err), zap.Bool("fatal", !fsmerr.Is(err, fsmerr.Validation)))
			if !fsmerr.Is(err, fsmerr.Validation) {
				s.done <- Outcome{FinalContext: ctx, Trail: trail.Entries(), Err: err}
				return
			}
			// Validation failures surface but don't kill the session
			// (spec §4.5 step 4); the owning LLM state's retry loop is
			// expected to have already handled this before calling the
			// continuation, so reaching here with one means the caller
			// submitted a bad event directly. Wait for the next one.
			next, ok := s.nextEvent()
			if !ok {
				trail.AppendCancelled(ctx)
				s.done <- Outcome{FinalContext: ctx, Trail: trail.Entries(), Cancelled: true}
				return
			}
			event = next
			continue
		}

		if result.done {
			s.done <- result.completed
			return
		}

		// Spec §4.5 step 8: the continuation's event is pushed onto the
		// input queue, not consumed directly — so it takes its place in
		// FIFO order alongside anything a caller concurrently submitted.
		ctx = result.nextCtx
		if err := s.Submit(result.nextEvent); err != nil {
			trail.AppendCancelled(ctx)
			s.done <- Outcome{FinalContext: ctx, Trail: trail.Entries(), Cancelled: true}
			return
		}
		next, ok := s.nextEvent()
		if !ok {
			trail.AppendCancelled(ctx)
			s.done <- Outcome{FinalContext: ctx, Trail: trail.Entries(), Cancelled: true}
			return
		}
		event = next
	}
}

func (s *Session) nextEvent() (Event, bool) {
	select {
	case e := <-s.input:
		return e, true
	case <-s.cancel:
		return nil, false
	}
}

var (
	errAlreadyCancelled = sessionError("session already cancelled")
	errAwaitTimedOut    = sessionError("await timed out")
)

type sessionError string

func (e sessionError) Error() string { return string(e) }

// withDeadline derives a context.Context from parent that is also
// cancelled when cancel is closed. Nothing in this package or the action
// packages calls it; the built-in actions pass context.Background() to
// their bridge and LLM calls.
func withDeadline(parent context.Context, cancel <-chan struct{}) (context.Context, context.CancelFunc) {
	ctx, cancelFn := context.WithCancel(parent)
	go func() {
		select {
		case <-cancel:
			cancelFn()
		case <-ctx.Done():
		}
	}()
	return ctx, cancelFn
}
