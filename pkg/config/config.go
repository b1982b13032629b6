// Package config loads the ambient engine configuration — retry caps,
// timeouts, and grace windows that spec.md leaves to "implementation
// defined" — from the process environment via envconfig, so a deployment
// can tune them without a code change. None of this is part of the FSM
// definition itself (that stays data, loaded by pkg/fsm's config loader);
// this is the engine's own operating parameters.
package config

import "github.com/kelseyhightower/envconfig"

// Engine holds the tunables the FSM engine, LLM action, and bridge consult
// when spec.md says "implementation-defined" or names a default.
type Engine struct {
	// LLMMaxRetries caps the LLM action's retry loop (spec §4.6, default 3).
	LLMMaxRetries int `envconfig:"FSMFORGE_LLM_MAX_RETRIES" default:"3"`
	// LLMRetryDelayMS is the linear backoff between LLM retries.
	LLMRetryDelayMS int `envconfig:"FSMFORGE_LLM_RETRY_DELAY_MS" default:"250"`
	// BridgeRequestTimeoutMS bounds how long bridge.Await waits for a
	// response before returning timeout (spec §4.3).
	BridgeRequestTimeoutMS int `envconfig:"FSMFORGE_BRIDGE_TIMEOUT_MS" default:"15000"`
	// BridgeStopGraceMS is the short grace window bridge.Stop gives the
	// child process to exit after stdin is closed before it is killed.
	BridgeStopGraceMS int `envconfig:"FSMFORGE_BRIDGE_STOP_GRACE_MS" default:"2000"`
	// SessionInputQueueSize bounds the session's input event channel —
	// all channels are bounded per spec §9, so backpressure propagates to
	// submit() callers instead of growing without limit.
	SessionInputQueueSize int `envconfig:"FSMFORGE_SESSION_QUEUE_SIZE" default:"64"`
	// CancelGraceMS is carried into fsm.SessionConfig.CancelGrace. The
	// session loop does not read that field: Stop returns at once without
	// waiting for the loop to acknowledge cancellation, and Await is bounded
	// only by its own timeout argument.
	CancelGraceMS int `envconfig:"FSMFORGE_CANCEL_GRACE_MS" default:"5000"`
}

// Load reads Engine from the environment, filling in the defaults above for
// anything unset.
func Load() (Engine, error) {
	var e Engine
	if err := envconfig.Process("", &e); err != nil {
		return Engine{}, err
	}
	return e, nil
}

// Default returns the zero-environment configuration (all defaults), for
// callers (tests, the demo) that don't want to touch the environment.
func Default() Engine {
	e, _ := Load()
	return e
}
