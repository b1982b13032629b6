package fsm

// Well-known context keys shared by the built-in actions (pkg/action/...)
// so independently-compiled action packages agree on where to find the
// bridge, cache, and LLM client registry without importing each other —
// only pkg/fsm, which none of them import back.
const (
	CtxKeyBridge      = "bridge"       // *bridge.Bridge
	CtxKeyCache       = "cache"        // *cache.Cache
	CtxKeyLLMRegistry = "llm_registry" // *llmclient.Registry
	CtxKeySchemas     = "schemas"      // *schema.Registry (layered per-FSM)
	CtxKeySession     = "session"      // *Session, for actions that must submit events asynchronously (e.g. bridge notification watchers)
)
