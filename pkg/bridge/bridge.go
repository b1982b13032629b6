// Package bridge implements the subprocess bridge (spec §4.3): a supervised
// child process speaking line-delimited JSON-RPC over stdio, with
// request/response correlation by id and a notifications channel for
// incoming `notifications/...` messages.
package bridge

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fla/fsmforge/pkg/fsmerr"
	"go.uber.org/zap"
)

// Config configures Spawn: the command to run, its arguments, and any
// environment overrides (spec §4.3).
type Config struct {
	Command string
	Args    []string
	Env     []string
}

// process is the minimal surface Bridge needs from a child process; the
// default implementation wraps exec.Cmd, and tests substitute a fake one
// built directly over in-memory pipes so the bridge's framing and
// correlation logic can be exercised without spawning a real binary.
type process interface {
	Kill() error
	Wait() error
}

type cmdProcess struct{ cmd *exec.Cmd }

func (p *cmdProcess) Kill() error { return p.cmd.Process.Kill() }
func (p *cmdProcess) Wait() error { return p.cmd.Wait() }

// future is the one-shot result of a single request. It is completed at
// most once, from the reader loop (on a matching response) or from a
// failure path (write error, EOF, or Stop). An Await that times out does
// not complete it: the future stays pending and its entry stays in the
// pending table until a response, EOF, or Stop arrives.
type future struct {
	done chan struct{}
	once sync.Once
	resp Response
	err  error
}

func newFuture() *future { return &future{done: make(chan struct{})} }

func (f *future) complete(resp Response, err error) {
	f.once.Do(func() {
		f.resp, f.err = resp, err
		close(f.done)
	})
}

// Future is the handle returned by Send; Await blocks on it.
type Future struct{ f *future }

// Bridge owns a spawned child process, its stdin writer, a reader goroutine
// decoding line-delimited JSON-RPC frames from its stdout, the pending
// request table keyed by id, and a channel of incoming notifications.
type Bridge struct {
	log    *zap.Logger
	proc   process
	stdin  io.WriteCloser
	nextID int64

	mu      sync.Mutex // guards pending and closed; never held across I/O
	pending map[string]*future
	closed  bool
	closeErr error

	Notifications chan Notification

	stopGrace time.Duration
	readerDone chan struct{}
}

// Spawn starts config.Command as a child process and begins reading its
// stdout. It fails with a Resource/spawn-error if the process cannot start.
func Spawn(cfg Config, log *zap.Logger, stopGrace time.Duration) (*Bridge, error) {
	if log == nil {
		log = zap.NewNop()
	}
	cmd := exec.Command(cfg.Command, cfg.Args...)
	if len(cfg.Env) > 0 {
		cmd.Env = cfg.Env
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fsmerr.Coded(fsmerr.Resource, fsmerr.CodeSpawnError, "bridge: stdin pipe: %v", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fsmerr.Coded(fsmerr.Resource, fsmerr.CodeSpawnError, "bridge: stdout pipe: %v", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fsmerr.Coded(fsmerr.Resource, fsmerr.CodeSpawnError, "bridge: spawn %q: %v", cfg.Command, err)
	}

	b := newBridge(&cmdProcess{cmd: cmd}, stdin, stdout, log, stopGrace)
	return b, nil
}

func newBridge(proc process, stdin io.WriteCloser, stdout io.Reader, log *zap.Logger, stopGrace time.Duration) *Bridge {
	b := &Bridge{
		log:           log,
		proc:          proc,
		stdin:         stdin,
		pending:       make(map[string]*future),
		Notifications: make(chan Notification, 64),
		stopGrace:     stopGrace,
		readerDone:    make(chan struct{}),
	}
	go b.readLoop(stdout)
	return b
}

func idKey(id interface{}) string {
	b, _ := json.Marshal(id)
	return string(b)
}

// Send writes one encoded request line. If req.ID is non-nil, it records a
// pending future keyed by id and returns it; a notification (nil ID)
// returns an already-resolved no-op future.
func (b *Bridge) Send(req Request) (*Future, error) {
	req.JSONRPC = "2.0"

	var fut *future
	if req.ID != nil {
		fut = newFuture()
		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			return nil, fsmerr.Coded(fsmerr.Protocol, fsmerr.CodeBridgeClosed, "bridge: send after close")
		}
		b.pending[idKey(req.ID)] = fut
		b.mu.Unlock()
	} else {
		fut = newFuture()
		fut.complete(Response{}, nil)
	}

	line, err := json.Marshal(req)
	if err != nil {
		if req.ID != nil {
			b.failOne(idKey(req.ID), fsmerr.Coded(fsmerr.Protocol, fsmerr.CodeBridgeWriteError, "bridge: encode request: %v", err))
		}
		return nil, err
	}
	line = append(line, '\n')

	if _, err := b.stdin.Write(line); err != nil {
		wrapped := fsmerr.Coded(fsmerr.Protocol, fsmerr.CodeBridgeWriteError, "bridge: write: %v", err)
		if req.ID != nil {
			b.failOne(idKey(req.ID), wrapped)
		}
		return nil, wrapped
	}

	return &Future{f: fut}, nil
}

// NextID returns a fresh request id, unique for this bridge's lifetime
// (spec §4.3: "A request id is never reused within a bridge's lifetime").
func (b *Bridge) NextID() int64 {
	return atomic.AddInt64(&b.nextID, 1)
}

// Await blocks on fut until it resolves or timeout elapses, returning
// Response{} and a Timeout-category error if the deadline passes first,
// or a Cancelled-category error if ctx is done first.
func (b *Bridge) Await(ctx context.Context, fut *Future, timeout time.Duration) (Response, error) {
	if fut == nil {
		return Response{}, fsmerr.New(fsmerr.Protocol, errTimeoutSentinel)
	}
	var timer *time.Timer
	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer = time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}
	select {
	case <-fut.f.done:
		return fut.f.resp, fut.f.err
	case <-timeoutCh:
		return Response{}, fsmerr.New(fsmerr.Timeout, errTimeoutSentinel)
	case <-ctx.Done():
		return Response{}, fsmerr.New(fsmerr.Cancelled, ctx.Err())
	}
}

var errTimeoutSentinel = errTimeout{}

type errTimeout struct{}

func (errTimeout) Error() string { return "timeout" }

// readLoop is the single cooperatively-scheduled reader: it dispatches each
// incoming line to either a pending future (by id) or the notifications
// channel.
func (b *Bridge) readLoop(stdout io.Reader) {
	defer close(b.readerDone)
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var frame Frame
		if err := json.Unmarshal(line, &frame); err != nil {
			b.log.Warn("bridge: malformed frame", zap.Error(err))
			continue
		}
		if frame.IsNotification() {
			b.Notifications <- Notification{JSONRPC: frame.JSONRPC, Method: frame.Method, Params: frame.Params}
			continue
		}
		var id interface{}
		_ = json.Unmarshal(frame.ID, &id)
		resp := Response{JSONRPC: frame.JSONRPC, ID: id, Result: frame.Result, Error: frame.Error}
		b.completeOne(string(frame.ID), resp, nil)
	}
	// Stdout EOF: fail every still-pending future with bridge-closed, then
	// close Notifications so any watcher ranging over it (e.g.
	// bridgeaction's list_changed watcher) terminates cleanly.
	b.failAll(fsmerr.Coded(fsmerr.Protocol, fsmerr.CodeBridgeClosed, "bridge: stdout closed"))
	close(b.Notifications)
}

func (b *Bridge) completeOne(key string, resp Response, err error) {
	b.mu.Lock()
	fut, ok := b.pending[key]
	if ok {
		delete(b.pending, key)
	}
	b.mu.Unlock()
	if ok {
		fut.complete(resp, err)
	}
}

func (b *Bridge) failOne(key string, err error) {
	b.mu.Lock()
	fut, ok := b.pending[key]
	if ok {
		delete(b.pending, key)
	}
	b.mu.Unlock()
	if ok {
		fut.complete(Response{}, err)
	}
}

func (b *Bridge) failAll(err error) {
	b.mu.Lock()
	pending := b.pending
	b.pending = make(map[string]*future)
	b.closed = true
	b.closeErr = err
	b.mu.Unlock()
	for _, fut := range pending {
		fut.complete(Response{}, err)
	}
}

// Stop closes stdin, drains stdout briefly, then kills the process if it
// has not exited within the configured grace window (spec §4.3).
func (b *Bridge) Stop() error {
	_ = b.stdin.Close()

	done := make(chan error, 1)
	go func() { done <- b.proc.Wait() }()

	select {
	case err := <-done:
		b.failAll(fsmerr.Coded(fsmerr.Protocol, fsmerr.CodeBridgeClosed, "bridge: stopped"))
		<-b.readerDone
		return err
	case <-time.After(b.stopGrace):
		_ = b.proc.Kill()
		b.failAll(fsmerr.Coded(fsmerr.Protocol, fsmerr.CodeBridgeClosed, "bridge: killed after grace window"))
		<-b.readerDone
		return <-done
	}
}
