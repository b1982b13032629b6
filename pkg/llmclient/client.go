// Package llmclient defines the interface the FSM engine's LLM action
// consumes (spec §1: "the core sees an invoke(prompts, schema, callback)
// operation and a registry keyed by service name"). Concrete HTTP clients
// for specific LLM providers are explicitly out of scope for the core; this
// package only hosts the contract plus an in-memory mock used by the
// demo. Message/tool-call shapes are grounded on the LLM port
// interfaces observed in the example corpus (own naming, not copied).
package llmclient

import "context"

// Message is one turn of the conversation the LLM action sends (spec
// §4.6): a system message holding the joined prompt stack (FSM-level
// prompts, transition prompts, state prompts, trail view), then one user
// message per retry carrying the previous attempt's error. The schema
// description travels separately as Invoke's schemaDescription argument.
type Message struct {
	Role    string // "system", "user", or "assistant"
	Content string
}

// Reply is what a Client hands back: the raw text the model produced,
// before the LLM action strips Markdown fencing and attempts to parse it
// as structured data against the output schema.
type Reply struct {
	Text string
}

// Client is the operation the core consumes from a concrete LLM HTTP
// client: invoke the model with a prompt stack and a target schema
// (serialized for the model's benefit, not enforced by the client itself —
// the LLM action validates the parsed reply against the schema on this
// side), returning the raw reply or an error.
type Client interface {
	Invoke(ctx context.Context, messages []Message, schemaDescription string) (Reply, error)
}

// Registry is the "registry keyed by service name" spec §1 names: distinct
// named services (e.g. one per model/provider pairing) resolved at action
// configuration time.
type Registry struct {
	clients map[string]Client
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry { return &Registry{clients: map[string]Client{}} }

// Register associates name with client, overwriting any prior registration.
func (r *Registry) Register(name string, client Client) {
	r.clients[name] = client
}

// Lookup resolves a client by service name.
func (r *Registry) Lookup(name string) (Client, bool) {
	c, ok := r.clients[name]
	return c, ok
}
