package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/dusk-indust/mosromgr/internal/mcptools"
	"github.com/dusk-indust/mosromgr/internal/orchestrator"
)

// sseWriter writes Server-Sent Events to an http.ResponseWriter.
// Call init once before writing any events to set the required headers.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// newSSEWriter wraps w. Without http.Flusher, writes still succeed but may
// be buffered.
func newSSEWriter(w http.ResponseWriter) *sseWriter {
	f, _ := w.(http.Flusher)
	return &sseWriter{w: w, flusher: f}
}

func (sw *sseWriter) init() {
	h := sw.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	sw.w.WriteHeader(http.StatusOK)
	if sw.flusher != nil {
		sw.flusher.Flush()
	}
}

// event writes v as JSON in one frame:
//
//	event: name
//	data: {json}
func (sw *sseWriter) event(name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("sse: marshal %s: %w", name, err)
	}
	if _, err := fmt.Fprintf(sw.w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return fmt.Errorf("sse: write %s: %w", name, err)
	}
	if sw.flusher != nil {
		sw.flusher.Flush()
	}
	return nil
}

// progressJSON is the wire form of an orchestrator.ProgressEvent.
type progressJSON struct {
	RunID     string `json:"runId,omitempty"`
	Phase     string `json:"phase"`
	Source    string `json:"source"`
	MessageID int    `json:"messageId,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
}

func toProgressJSON(ev orchestrator.ProgressEvent) progressJSON {
	p := progressJSON{
		RunID:     ev.RunID,
		Phase:     ev.Phase.String(),
		Source:    ev.Source,
		MessageID: ev.MessageID,
		Status:    string(ev.Status),
		Message:   ev.Message,
	}
	if ev.MessageID != 0 {
		p.Kind = ev.Kind.String()
	}
	return p
}

// handleMergeStream merges a JSON collection and streams a "progress" event
// per message, then one "result" or "error" event. Progress events are
// dropped rather than stalling the merge when the client reads slowly.
func (s *Server) handleMergeStream(w http.ResponseWriter, r *http.Request) {
	var in mcptools.MergeMessagesInput
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	reporter := orchestrator.NewProgressReporter()
	var (
		out mcptools.MergeMessagesOutput
		err error
	)
	go func() {
		out, err = s.svc.MergeWithProgress(r.Context(), in, reporter.Emit)
		reporter.Close()
	}()

	sw := newSSEWriter(w)
	sw.init()
	// The channel is drained even after a failed write so the merge can
	// finish.
	for ev := range reporter.Subscribe() {
		_ = sw.event("progress", toProgressJSON(ev))
	}

	if err != nil {
		payload := map[string]any{"error": err.Error(), "status": statusFor(err)}
		if out.ROID != "" {
			payload["result"] = out
		}
		_ = sw.event("error", payload)
		return
	}
	_ = sw.event("result", out)
}
