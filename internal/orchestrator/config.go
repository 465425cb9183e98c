package orchestrator

import (
	"fmt"
	"log/slog"
	"strings"
)

// Policy decides what a merge does with recoverable conditions.
type Policy int

const (
	// Strict aborts the merge on the first recoverable condition.
	Strict Policy = iota

	// NonStrict records the condition, skips the offending message and
	// carries on.
	NonStrict
)

func (p Policy) String() string {
	switch p {
	case Strict:
		return "strict"
	case NonStrict:
		return "non-strict"
	default:
		return "unknown"
	}
}

// ParsePolicy accepts "strict" and "non-strict" (or "nonstrict"). An empty
// string is Strict.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "strict":
		return Strict, nil
	case "non-strict", "nonstrict":
		return NonStrict, nil
	default:
		return Strict, fmt.Errorf("orchestrator: unknown merge policy %q", s)
	}
}

const (
	defaultWorkers   = 8
	defaultReadAhead = 4
)

// Options holds runtime configuration for a Collection.
type Options struct {
	// AllowIncomplete accepts a collection without a roDelete.
	AllowIncomplete bool

	// Policy is Strict unless set.
	Policy Policy

	// Workers bounds concurrent fetches while scanning. Zero means 8.
	Workers int

	// ReadAhead bounds how many messages are fetched ahead of the merge
	// cursor. Zero means 4.
	ReadAhead int

	// OnProgress is called for every scan and merge event. It may be called
	// from several goroutines at once during the scan.
	OnProgress func(ProgressEvent)

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

func (o Options) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return defaultWorkers
}

func (o Options) readAhead() int {
	if o.ReadAhead > 0 {
		return o.ReadAhead
	}
	return defaultReadAhead
}

func (o Options) logger() *slog.Logger {
	l := o.Logger
	if l == nil {
		l = slog.Default()
	}
	return l.With("component", "collection")
}
