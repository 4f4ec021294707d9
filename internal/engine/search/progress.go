package search

import (
	"time"

	"github.com/paulmach/orb"

	"github.com/contato-rede/leads/internal/model"
)

// State is the run state machine: IDLE → RUNNING → one terminal state.
type State string

const (
	StateIdle          State = "IDLE"
	StateRunning       State = "RUNNING"
	StateGoalReached   State = "GOAL_REACHED"
	StateExhausted     State = "EXHAUSTED"
	StateBudgetStopped State = "BUDGET_STOPPED"
	StateAborted       State = "ABORTED"
	StateFatalError    State = "FATAL_ERROR"
)

func (s State) Terminal() bool {
	switch s {
	case StateGoalReached, StateExhausted, StateBudgetStopped, StateAborted, StateFatalError:
		return true
	}
	return false
}

// EventKind tags a progress message so callers can render it.
type EventKind string

const (
	EventInfo      EventKind = "info"
	EventBatch     EventKind = "batch"
	EventQuota     EventKind = "quota"
	EventTransient EventKind = "transient"
	EventToken     EventKind = "token"
	EventFatal     EventKind = "fatal"
	EventDone      EventKind = "done"
)

// Progress is a snapshot of a running search, sent after every step.
type Progress struct {
	State   State
	Kind    EventKind
	Message string

	Location      string
	LocationIndex int // 1-based
	LocationCount int
	Anchor        string
	AnchorIndex   int // 1-based
	AnchorCount   int
	Page          int // pages fetched for the current anchor
	// AnchorAt is nil when the current target has no position.
	AnchorAt *orb.Point
	// HitPoints holds the positions of the page's hits, on batch events only.
	HitPoints []orb.Point

	BatchNew        int
	BatchDuplicates int
	Found           int
	Goal            int
	Spend           float64 // includes prior spend
	Budget          float64
	Cooldown        time.Duration
}

// Result is the outcome of one run.
type Result struct {
	State  State
	Reason string
	Err    error // set for FATAL_ERROR

	Leads       []model.Lead // persisted by this run, in order
	Pages       int
	SearchCalls int
	DetailCalls int
	Spend       float64 // spend of this run only

	StartedAt  time.Time
	FinishedAt time.Time
}

// Found is the number of new leads the run persisted.
func (r Result) Found() int {
	return len(r.Leads)
}
