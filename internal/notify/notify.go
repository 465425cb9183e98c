// Package notify publishes operational alerts about MOS processing: invalid
// or unclassifiable files, skipped deltas and failed merges. Alerts go to
// NATS when a server is configured and to the log otherwise.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/dusk-indust/mosromgr/internal/orchestrator"
)

// Level is the severity of an Event.
type Level string

const (
	LevelInformation Level = "INFORMATION"
	LevelWarning     Level = "WARNING"
	LevelError       Level = "ERROR"
)

// DefaultSubjectPrefix is prepended to the lower-cased level to form the
// NATS subject, e.g. "mosromgr.warning".
const DefaultSubjectPrefix = "mosromgr"

// Event is one alert.
type Event struct {
	ID        string    `json:"id"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	Source    string    `json:"source,omitempty"`
	ROID      string    `json:"ro_id,omitempty"`
	RunID     string    `json:"run_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent returns an Event with a fresh id and the current time.
func NewEvent(level Level, format string, args ...any) Event {
	return Event{
		ID:        uuid.NewString(),
		Level:     level,
		Message:   fmt.Sprintf(format, args...),
		Timestamp: time.Now().UTC(),
	}
}

// Notifier delivers events.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
	Close() error
}

// Publisher is the part of *nats.Conn used to send alerts.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSNotifier publishes events as JSON to "<prefix>.<level>".
type NATSNotifier struct {
	pub    Publisher
	conn   *nats.Conn
	prefix string
}

var (
	_ Notifier = (*NATSNotifier)(nil)
	_ Notifier = LogNotifier{}
	_ Notifier = Nop{}
)

// Connect dials url and returns a notifier that publishes under prefix
// (DefaultSubjectPrefix when empty). The connection reconnects forever.
func Connect(url, prefix string) (*NATSNotifier, error) {
	nc, err := nats.Connect(url,
		nats.Name("mosromgr"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			slog.Info("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	n := NewNATSNotifier(nc, prefix)
	n.conn = nc
	return n, nil
}

// NewNATSNotifier publishes through an existing publisher.
func NewNATSNotifier(pub Publisher, prefix string) *NATSNotifier {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &NATSNotifier{pub: pub, prefix: prefix}
}

// Subject returns the subject events of level are published to.
func (n *NATSNotifier) Subject(level Level) string {
	return n.prefix + "." + strings.ToLower(string(level))
}

func (n *NATSNotifier) Notify(_ context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("notify: encode event: %w", err)
	}
	if err := n.pub.Publish(n.Subject(ev.Level), data); err != nil {
		return fmt.Errorf("notify: publish: %w", err)
	}
	return nil
}

// Close drains the connection when the notifier owns one.
func (n *NATSNotifier) Close() error {
	if n.conn == nil {
		return nil
	}
	return n.conn.Drain()
}

// LogNotifier writes events to a logger.
type LogNotifier struct {
	Logger *slog.Logger
}

func (l LogNotifier) Notify(ctx context.Context, ev Event) error {
	log := l.Logger
	if log == nil {
		log = slog.Default()
	}
	level := slog.LevelInfo
	switch ev.Level {
	case LevelWarning:
		level = slog.LevelWarn
	case LevelError:
		level = slog.LevelError
	}
	log.Log(ctx, level, ev.Message, "component", "notify", "id", ev.ID, "source", ev.Source, "ro", ev.ROID, "run", ev.RunID)
	return nil
}

func (LogNotifier) Close() error { return nil }

// Nop drops every event.
type Nop struct{}

func (Nop) Notify(context.Context, Event) error { return nil }
func (Nop) Close() error                        { return nil }

// FromProgress returns a progress callback that raises a warning for every
// skipped message and an error for every failed one. Delivery failures are
// logged and otherwise ignored.
func FromProgress(ctx context.Context, n Notifier) func(orchestrator.ProgressEvent) {
	return func(pe orchestrator.ProgressEvent) {
		var level Level
		switch pe.Status {
		case orchestrator.ProgressSkipped:
			level = LevelWarning
		case orchestrator.ProgressFailed:
			level = LevelError
		default:
			return
		}
		ev := NewEvent(level, "%s %s: %s", pe.Phase, pe.Source, pe.Message)
		ev.Source = pe.Source
		ev.RunID = pe.RunID
		if err := n.Notify(ctx, ev); err != nil {
			slog.Warn("failed to publish notification", "component", "notify", "error", err)
		}
	}
}

// Merged reports the outcome of one merge: an error event when err is set,
// otherwise an information event naming the running order.
func Merged(ctx context.Context, n Notifier, res *orchestrator.Result, err error) {
	var ev Event
	switch {
	case err != nil:
		ev = NewEvent(LevelError, "merge failed: %v", err)
	case res == nil || res.RunningOrder == nil:
		return
	default:
		ro := res.RunningOrder
		ev = NewEvent(LevelInformation, "merged %s: %d applied, %d skipped", ro.Slug(), res.Applied, res.Skipped)
		ev.ROID = ro.ROID()
	}
	if res != nil {
		ev.RunID = res.RunID
	}
	if nerr := n.Notify(ctx, ev); nerr != nil {
		slog.Warn("failed to publish notification", "component", "notify", "error", nerr)
	}
}
