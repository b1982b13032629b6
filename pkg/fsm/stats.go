package fsm

import (
	"sync"
	"time"
)

// StateStats holds run-time metrics for one state, adapted from the
// teacher's StateMetrics (pkg/ml/assistant.go) with the
// prediction/learning fields dropped — nothing in this module's spec
// calls for adaptive next-event prediction, only observability over a
// run's trail (a SPEC_FULL.md supplement: "trail/run statistics").
type StateStats struct {
	State           State
	VisitCount      int
	TotalResidence  time.Duration
	SuccessfulExits int
	FailedExits     int
	LastVisit       time.Time
}

// AverageResidence returns the mean time spent per visit to this state.
func (s StateStats) AverageResidence() time.Duration {
	if s.VisitCount == 0 {
		return 0
	}
	return s.TotalResidence / time.Duration(s.VisitCount)
}

// RunStats aggregates StateStats across one session's trail, plus
// transition-level counts, for callers that want observability (logging,
// a demo dashboard) without re-walking the raw Trail themselves.
type RunStats struct {
	mu          sync.Mutex
	states      map[State]*StateStats
	transitions map[XitionID]int
	enteredAt   map[State]time.Time
}

// NewRunStats returns an empty RunStats.
func NewRunStats() *RunStats {
	return &RunStats{
		states:      map[State]*StateStats{},
		transitions: map[XitionID]int{},
		enteredAt:   map[State]time.Time{},
	}
}

// RecordTransition updates stats for one processed transition step,
// whether or not it succeeded (success says which): residence time and a
// successful or failed exit for the source state, a visit to the
// destination state, and the transition's own occurrence count. The
// destination visit is recorded in both cases.
func (r *RunStats) RecordTransition(xid XitionID, success bool, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.transitions[xid]++

	if enteredAt, ok := r.enteredAt[xid.From]; ok {
		from := r.stateFor(xid.From)
		from.TotalResidence += now.Sub(enteredAt)
		if success {
			from.SuccessfulExits++
		} else {
			from.FailedExits++
		}
	}

	to := r.stateFor(xid.To)
	to.VisitCount++
	to.LastVisit = now
	r.enteredAt[xid.To] = now
}

func (r *RunStats) stateFor(s State) *StateStats {
	st, ok := r.states[s]
	if !ok {
		st = &StateStats{State: s}
		r.states[s] = st
	}
	return st
}

// Snapshot returns a point-in-time copy of every state's stats.
func (r *RunStats) Snapshot() map[State]StateStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[State]StateStats, len(r.states))
	for k, v := range r.states {
		out[k] = *v
	}
	return out
}

// TransitionCounts returns a point-in-time copy of per-transition
// occurrence counts.
func (r *RunStats) TransitionCounts() map[XitionID]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[XitionID]int, len(r.transitions))
	for k, v := range r.transitions {
		out[k] = v
	}
	return out
}
