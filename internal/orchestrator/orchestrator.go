// Package orchestrator turns a set of MOS message sources into one merged
// running order. A Collection classifies every source, checks that they form
// a single programme, orders them by messageID and drives the merge engine
// under a strict or non-strict policy.
package orchestrator

import (
	"errors"

	"github.com/dusk-indust/mosromgr/internal/mos"
)

// ErrInvalidCollection is returned when a set of sources does not describe
// exactly one programme (no or several roCreates, mixed running order ids,
// missing or repeated roDelete). It is fatal.
var ErrInvalidCollection = errors.New("invalid MOS collection")

// ErrAborted is returned by a strict merge that met a recoverable
// condition. The error also wraps the mos.Diagnostic that caused it.
var ErrAborted = errors.New("merge aborted")

// Phase identifies which pass over the sources an event belongs to.
type Phase int

const (
	PhaseScan  Phase = 0
	PhaseMerge Phase = 1
)

func (p Phase) String() string {
	names := [...]string{"scan", "merge"}
	if int(p) < len(names) {
		return names[p]
	}
	return "unknown"
}

// State is the lifecycle of a Collection:
// Unvalidated -> Validated -> Merging -> Merged or Failed, or
// Unvalidated -> Invalid. Merged and Failed collections may be merged again.
type State int

const (
	StateUnvalidated State = iota
	StateValidated
	StateMerging
	StateMerged
	StateInvalid
	// StateFailed is a valid collection whose last merge returned an error.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnvalidated:
		return "unvalidated"
	case StateValidated:
		return "validated"
	case StateMerging:
		return "merging"
	case StateMerged:
		return "merged"
	case StateInvalid:
		return "invalid"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ProgressEvent is emitted for every source as it is scanned and merged.
type ProgressEvent struct {
	RunID     string
	Phase     Phase
	Source    string
	MessageID int
	Kind      mos.Kind
	Status    ProgressStatus
	Message   string
}

// ProgressStatus is the outcome of one source within a phase.
type ProgressStatus string

const (
	ProgressPending    ProgressStatus = "pending"
	ProgressClassified ProgressStatus = "classified"
	ProgressIgnored    ProgressStatus = "ignored"
	ProgressApplied    ProgressStatus = "applied"
	ProgressSkipped    ProgressStatus = "skipped"
	ProgressFailed     ProgressStatus = "failed"
)

// Result is the outcome of Collection.Merge.
type Result struct {
	RunID        string
	RunningOrder *mos.RunningOrder

	// Diagnostics holds every recoverable condition met while scanning and
	// merging, in the order they occurred.
	Diagnostics []mos.Diagnostic

	Applied int
	Skipped int
}
