package bridge

import (
	"bufio"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeProcess stands in for exec.Cmd in tests: Wait blocks until the
// bridge's stdin pipe is closed (mimicking a child that exits once its
// input is drained), then closes its own stdout pipe so the bridge's
// reader loop observes EOF exactly as it would against a real process.
type fakeProcess struct {
	stdin  io.Reader
	stdout *io.PipeWriter
}

func (p *fakeProcess) Wait() error {
	io.Copy(io.Discard, p.stdin)
	return p.stdout.Close()
}

func (p *fakeProcess) Kill() error {
	return p.stdout.Close()
}

// newTestBridge wires a Bridge up to in-memory pipes instead of a real
// subprocess: stdinR is the fake child's view of the bridge's stdin
// (used to assert on what Send wrote), stdoutW is the fake child's stdout
// (used to script responses the bridge's reader loop will see).
func newTestBridge(t *testing.T, stopGrace time.Duration) (*Bridge, *bufio.Reader, *io.PipeWriter) {
	t.Helper()
	stdinR, stdinW := io.Pipe()
	stdoutR, stdoutW := io.Pipe()
	proc := &fakeProcess{stdin: stdinR, stdout: stdoutW}
	b := newBridge(proc, stdinW, stdoutR, zap.NewNop(), stopGrace)
	t.Cleanup(func() { _ = b.Stop() })
	return b, bufio.NewReader(stdinR), stdoutW
}

func TestSendAwaitRoundTrip(t *testing.T) {
	b, childStdin, childStdout := newTestBridge(t, time.Second)

	// The in-memory stdin pipe blocks Send's write until it is read, so the
	// fake child starts reading before Send is called.
	type readResult struct {
		line string
		err  error
	}
	read := make(chan readResult, 1)
	go func() {
		line, err := childStdin.ReadString('\n')
		read <- readResult{line, err}
	}()

	fut, err := b.Send(Request{ID: int64(1), Method: "initialize", Params: map[string]interface{}{}})
	require.NoError(t, err)

	r := <-read
	line, err := r.line, r.err
	require.NoError(t, err)
	assert.Contains(t, line, `"method":"initialize"`)
	assert.Contains(t, line, `"id":1`)

	_, err = childStdout.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"ok":true}}` + "\n"))
	require.NoError(t, err)

	resp, err := b.Await(context.Background(), fut, time.Second)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(resp.Result))
}

func TestAwaitTimesOutWithoutResponse(t *testing.T) {
	b, childStdin, _ := newTestBridge(t, time.Second)
	go func() { _, _ = io.Copy(io.Discard, childStdin) }()

	fut, err := b.Send(Request{ID: int64(1), Method: "tools/list"})
	require.NoError(t, err)

	_, err = b.Await(context.Background(), fut, 20*time.Millisecond)
	require.Error(t, err)
}

func TestNotificationsRouteToChannel(t *testing.T) {
	b, _, childStdout := newTestBridge(t, time.Second)

	_, err := childStdout.Write([]byte(`{"jsonrpc":"2.0","method":"notifications/tools/list_changed"}` + "\n"))
	require.NoError(t, err)

	select {
	case n := <-b.Notifications:
		assert.Equal(t, "notifications/tools/list_changed", n.Method)
	case <-time.After(time.Second):
		t.Fatal("notification was never delivered")
	}
}

func TestStopDrainsReaderAndFailsPending(t *testing.T) {
	stdinR, stdinW := io.Pipe()
	stdoutR, stdoutW := io.Pipe()
	proc := &fakeProcess{stdin: stdinR, stdout: stdoutW}
	b := newBridge(proc, stdinW, stdoutR, zap.NewNop(), time.Second)

	go func() { io.Copy(io.Discard, stdinR) }()

	fut, err := b.Send(Request{ID: int64(1), Method: "tools/list"})
	require.NoError(t, err)

	require.NoError(t, b.Stop())

	_, err = b.Await(context.Background(), fut, time.Second)
	assert.Error(t, err, "a pending request must fail once the bridge is stopped")
}
