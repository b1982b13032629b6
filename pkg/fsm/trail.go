package fsm

import (
	"github.com/oklog/ulid/v2"
)

// TrailEnvelope is one accepted event recorded in a run's trail (spec §3):
// the event itself, the context as of acceptance, and a monotonic SeqID
// establishing processing order even when two envelopes share a
// wall-clock timestamp.
type TrailEnvelope struct {
	SeqID   string
	Xition  XitionID
	Event   Event
	Context Context
}

// Trail is the ordered history of accepted events for one run. Trail
// order is processing order (spec's testable property: "trail order
// equals the order transitions were processed in, even under
// concurrency") — entries are only ever appended by the engine's single
// per-session goroutine, never written concurrently.
type Trail struct {
	entries []TrailEnvelope
}

// Append records env, assigning it a fresh monotonic SeqID via ULID (time
// component plus random payload, lexically sortable — adopted from the
// teacher's executionID convention in state_machine.go, replacing its
// crypto/rand hex id with an ordered one so SeqID doubles as a sort key).
func (t *Trail) Append(xition XitionID, event Event, ctx Context) TrailEnvelope {
	env := TrailEnvelope{
		SeqID:   ulid.Make().String(),
		Xition:  xition,
		Event:   event,
		Context: ctx,
	}
	t.entries = append(t.entries, env)
	return env
}

// Entries returns the trail's envelopes in processing order.
func (t *Trail) Entries() []TrailEnvelope {
	out := make([]TrailEnvelope, len(t.entries))
	copy(out, t.entries)
	return out
}

// AppendCancelled records the synthetic {cancelled} record a cancelled
// run's trail ends with (spec §5: "A cancelled session's final trail is
// the trail at the point of cancellation plus a synthetic {cancelled}
// record").
func (t *Trail) AppendCancelled(ctx Context) TrailEnvelope {
	return t.Append(XitionID{From: Cancelled, To: Cancelled}, Event{"id": []interface{}{string(Cancelled), string(Cancelled)}, "cancelled": true}, ctx)
}

// Len reports how many envelopes the trail holds.
func (t *Trail) Len() int { return len(t.entries) }

// Last returns the most recently appended envelope, if any.
func (t *Trail) Last() (TrailEnvelope, bool) {
	if len(t.entries) == 0 {
		return TrailEnvelope{}, false
	}
	return t.entries[len(t.entries)-1], true
}
