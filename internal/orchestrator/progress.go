package orchestrator

import "fmt"

// ProgressReporter emits progress events through a buffered channel.
type ProgressReporter struct {
	ch chan ProgressEvent
}

// NewProgressReporter creates a ProgressReporter with a buffered channel of size 64.
func NewProgressReporter() *ProgressReporter {
	return &ProgressReporter{
		ch: make(chan ProgressEvent, 64),
	}
}

// Emit sends a progress event in a non-blocking fashion.
// If the channel is full, the event is silently dropped.
func (pr *ProgressReporter) Emit(event ProgressEvent) {
	select {
	case pr.ch <- event:
	default:
	}
}

// Subscribe returns a read-only channel for consuming progress events.
func (pr *ProgressReporter) Subscribe() <-chan ProgressEvent {
	return pr.ch
}

// Close closes the progress event channel.
func (pr *ProgressReporter) Close() {
	close(pr.ch)
}

// Tee returns a callback that calls every non-nil fn in turn.
func Tee(fns ...func(ProgressEvent)) func(ProgressEvent) {
	return func(ev ProgressEvent) {
		for _, fn := range fns {
			if fn != nil {
				fn(ev)
			}
		}
	}
}

// FormatProgress formats a ProgressEvent as a human-readable status line.
func FormatProgress(event ProgressEvent) string {
	label := event.Source
	if event.MessageID != 0 {
		label = fmt.Sprintf("%s #%d", event.Kind, event.MessageID)
	}
	switch event.Status {
	case ProgressPending:
		return fmt.Sprintf("  ○ %s (pending)", label)
	case ProgressClassified:
		return fmt.Sprintf("  ● %s", label)
	case ProgressIgnored:
		return fmt.Sprintf("  - %s ignored: %s", label, event.Message)
	case ProgressApplied:
		return fmt.Sprintf("  ✓ %s merged", label)
	case ProgressSkipped:
		return fmt.Sprintf("  ! %s skipped: %s", label, event.Message)
	case ProgressFailed:
		return fmt.Sprintf("  ✗ %s failed: %s", label, event.Message)
	default:
		return fmt.Sprintf("  ? %s (unknown status)", label)
	}
}

// FormatPhaseHeader formats a phase header for display.
// Returns: "[{roID}] {phase}: {n} messages"
func FormatPhaseHeader(roID string, phase Phase, n int) string {
	return fmt.Sprintf("[%s] %s: %d messages", roID, phase, n)
}
