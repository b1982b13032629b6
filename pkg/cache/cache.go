// Package cache implements the per-FSM-instance capability cache (spec
// §4.4): a record of what tools/prompts/resources a bridge currently
// offers, invalidated by `list_changed` notifications and refreshed by a
// `{capability}/list` request/response round trip driven by the FSM's
// `cache` state.
package cache

// Capability names the cache tracks, corresponding 1:1 to the MCP list
// methods (spec §4.4, §6).
type Capability string

const (
	Tools     Capability = "tools"
	Prompts   Capability = "prompts"
	Resources Capability = "resources"
)

// ToolEntry describes one tool the bridge offers.
type ToolEntry struct {
	Name        string
	Description string
	InputSchema map[string]interface{}
}

// ResourceEntry describes one resource the bridge offers.
type ResourceEntry struct {
	URI      string
	Name     string
	MimeType string
}

// PromptArgument is one named, possibly-required argument a prompt accepts.
type PromptArgument struct {
	Name     string
	Required bool
}

// PromptEntry describes one prompt the bridge offers.
type PromptEntry struct {
	Name      string
	Arguments []PromptArgument
}

// Entries is the heterogeneous payload of one capability's list; exactly
// one of the three slices is populated, matching whichever Capability this
// entry belongs to.
type Entries struct {
	Tools     []ToolEntry
	Resources []ResourceEntry
	Prompts   []PromptEntry
}

// Cache holds the per-bridge, per-capability state. A nil *Entries for a
// capability means "known to exist, not yet populated"; the capability is
// simply absent from the map if the server never advertised it in
// `initialize`. Cache is not safe for concurrent use by itself — the FSM
// engine only ever touches one session's cache from its single-threaded
// loop, per spec §5.
type Cache struct {
	entries map[Capability]*Entries
}

// New returns an empty cache with no capabilities introduced yet.
func New() *Cache {
	return &Cache{entries: map[Capability]*Entries{}}
}

// Introduce records that the bridge claims to support cap (with
// listChanged or subscribe, per spec §4.4), starting it out nil (not yet
// populated).
func (c *Cache) Introduce(cap Capability) {
	if _, ok := c.entries[cap]; !ok {
		c.entries[cap] = nil
	}
}

// Introduced reports whether cap was ever introduced (regardless of
// whether it's currently populated).
func (c *Cache) Introduced(cap Capability) bool {
	_, ok := c.entries[cap]
	return ok
}

// Introduced capabilities, in a stable order, for iteration by the cache
// loop ("walks the cache").
func (c *Cache) Capabilities() []Capability {
	// Stable order over the fixed small capability set, not map iteration
	// order, so the cache loop's "any capability is nil" walk is
	// deterministic for tests.
	var out []Capability
	for _, cap := range []Capability{Tools, Prompts, Resources} {
		if c.Introduced(cap) {
			out = append(out, cap)
		}
	}
	return out
}

// Get returns the current entries for cap (nil if not yet populated or not
// introduced).
func (c *Cache) Get(cap Capability) *Entries {
	return c.entries[cap]
}

// Set replaces cap's entries after a successful list reply (spec §4.4: "a
// non-nil capability is only assigned from a successful list reply").
func (c *Cache) Set(cap Capability, entries Entries) {
	e := entries
	c.entries[cap] = &e
}

// Invalidate sets cap back to nil, as a `notifications/{cap}/list_changed`
// message requires (spec §3, §4.4).
func (c *Cache) Invalidate(cap Capability) {
	if c.Introduced(cap) {
		c.entries[cap] = nil
	}
}

// NextToRefresh returns the first introduced-but-nil capability in stable
// order, or "" if every introduced capability is populated — the condition
// the cache state's loop checks each time it re-runs.
func (c *Cache) NextToRefresh() (Capability, bool) {
	for _, cap := range c.Capabilities() {
		if c.Get(cap) == nil {
			return cap, true
		}
	}
	return "", false
}

// Clone returns a deep-enough copy for the context-ownership discipline
// (spec §3: "actions ... return a new context when they mutate").
func (c *Cache) Clone() *Cache {
	cp := New()
	for cap, entries := range c.entries {
		if entries == nil {
			cp.entries[cap] = nil
		} else {
			e := *entries
			cp.entries[cap] = &e
		}
	}
	return cp
}
