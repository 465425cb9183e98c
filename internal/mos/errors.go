package mos

import (
	"errors"
	"fmt"
)

// Fatal conditions. Returned as errors and never downgraded.
var (
	ErrInvalidXML     = errors.New("mos: invalid XML")
	ErrWrongProgramme = errors.New("mos: running order id mismatch")
	ErrCompleted      = errors.New("mos: running order already completed")
)

// Recoverable conditions. Reported as Diagnostics; a strict caller escalates
// them, a non-strict caller skips the offending message.
var (
	ErrUnknownType  = errors.New("mos: unknown MOS message type")
	ErrIgnoredType  = errors.New("mos: ignored MOS message type")
	ErrNotFound     = errors.New("mos: target not found")
	ErrDuplicate    = errors.New("mos: duplicate identifier")
	ErrInvalidDelta = errors.New("mos: invalid delta payload")
)

// IsFatal reports whether err is a condition that must abort the current
// operation regardless of strictness.
func IsFatal(err error) bool {
	return errors.Is(err, ErrInvalidXML) ||
		errors.Is(err, ErrWrongProgramme) ||
		errors.Is(err, ErrCompleted)
}

// Diagnostic records one recoverable condition met while merging a message.
type Diagnostic struct {
	// Err is the recoverable sentinel (ErrNotFound, ErrDuplicate, ...).
	Err error

	MessageID int
	Kind      Kind
	Source    string
	Detail    string
}

func (d Diagnostic) Error() string {
	prefix := fmt.Sprintf("%s %d", d.Kind, d.MessageID)
	if d.Source != "" {
		prefix += " (" + d.Source + ")"
	}
	if d.Detail == "" {
		return fmt.Sprintf("%s: %v", prefix, d.Err)
	}
	return fmt.Sprintf("%s: %v: %s", prefix, d.Err, d.Detail)
}

func (d Diagnostic) Unwrap() error { return d.Err }

// Code is a short stable name for the condition, used in logs and metrics.
func (d Diagnostic) Code() string {
	switch {
	case errors.Is(d.Err, ErrNotFound):
		return "not_found"
	case errors.Is(d.Err, ErrDuplicate):
		return "duplicate"
	case errors.Is(d.Err, ErrInvalidDelta):
		return "invalid_delta"
	case errors.Is(d.Err, ErrUnknownType):
		return "unknown_type"
	case errors.Is(d.Err, ErrIgnoredType):
		return "ignored_type"
	default:
		return "other"
	}
}

// MergeError is a fatal merge failure with enough context to diagnose it
// without re-reading the message.
type MergeError struct {
	MessageID int
	ROID      string
	Kind      Kind
	Err       error
	Detail    string
}

func (e *MergeError) Error() string {
	msg := fmt.Sprintf("merge %s %d into %q: %v", e.Kind, e.MessageID, e.ROID, e.Err)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *MergeError) Unwrap() error { return e.Err }
