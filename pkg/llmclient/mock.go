package llmclient

import "context"

// Mock is a scripted Client for tests and the demo: each call to Invoke
// pops the next reply (or error) off a queue, so a test can script an LLM
// that, e.g., returns malformed JSON once and then a valid call on retry —
// exercising the LLM action's retry loop (spec §4.6) without any network
// dependency.
type Mock struct {
	replies   []scriptedReply
	calls     []Message
	pos       int
	callCount int
}

type scriptedReply struct {
	reply Reply
	err   error
}

// NewMock returns a Mock with no scripted replies; use Script to add them.
func NewMock() *Mock { return &Mock{} }

// Script appends one more scripted response, consumed in FIFO order.
func (m *Mock) Script(text string, err error) *Mock {
	m.replies = append(m.replies, scriptedReply{reply: Reply{Text: text}, err: err})
	return m
}

// Invoke implements Client by returning the next scripted reply. If the
// script is exhausted, it repeats the last scripted reply (or, with no
// script at all, returns an empty reply).
func (m *Mock) Invoke(_ context.Context, messages []Message, _ string) (Reply, error) {
	m.calls = append(m.calls, messages...)
	m.callCount++
	if len(m.replies) == 0 {
		return Reply{}, nil
	}
	idx := m.pos
	if idx >= len(m.replies) {
		idx = len(m.replies) - 1
	} else {
		m.pos++
	}
	sr := m.replies[idx]
	return sr.reply, sr.err
}

// CallCount reports how many times Invoke has been called.
func (m *Mock) CallCount() int { return m.callCount }
