package fsm

// Context is the immutable, copy-on-write key/value store threaded through
// a run: every action receives the Context current when it was invoked,
// and returns the Context (possibly unchanged) the continuation should see
// next. Since values are never mutated in place, a Context captured in a
// trail envelope stays a faithful snapshot even after later steps call
// With.
type Context struct {
	values map[string]interface{}
}

// NewContext returns an empty Context.
func NewContext() Context {
	return Context{values: map[string]interface{}{}}
}

// Get retrieves a value by key.
func (c Context) Get(key string) (interface{}, bool) {
	v, ok := c.values[key]
	return v, ok
}

// With returns a new Context equal to c with key set to value, leaving c
// itself untouched.
func (c Context) With(key string, value interface{}) Context {
	next := make(map[string]interface{}, len(c.values)+1)
	for k, v := range c.values {
		next[k] = v
	}
	next[key] = value
	return Context{values: next}
}

// WithAll returns a new Context equal to c with every key/value in updates
// applied, as a single copy.
func (c Context) WithAll(updates map[string]interface{}) Context {
	next := make(map[string]interface{}, len(c.values)+len(updates))
	for k, v := range c.values {
		next[k] = v
	}
	for k, v := range updates {
		next[k] = v
	}
	return Context{values: next}
}

// Snapshot returns a shallow copy of the context's values, safe for a
// caller to range over without holding any lock (Context itself is never
// mutated, so no lock is needed even without this, but callers that want
// an independent map — e.g. for JSON marshaling in the trail — use this).
func (c Context) Snapshot() map[string]interface{} {
	out := make(map[string]interface{}, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}
