package sim

import (
	"context"
	"fmt"
	"time"

	"plantmon-sim/internal/logging"
	"plantmon-sim/internal/telemetry"
)

// StatusKind classifies a status event.
type StatusKind string

const (
	StatusConnected    StatusKind = "connected"
	StatusDisconnected StatusKind = "disconnected"
	StatusSuppressed   StatusKind = "suppressed"
	StatusPublished    StatusKind = "published"
	StatusReceived     StatusKind = "received"
	StatusDecodeError  StatusKind = "decode_error"
	StatusFailure      StatusKind = "failure"
)

// StatusEvent is a fire-and-forget notification about the pipeline.
type StatusEvent struct {
	Kind      StatusKind `json:"kind"`
	ID        int64      `json:"id,omitempty"`
	Summary   string     `json:"summary,omitempty"`
	Reason    string     `json:"reason,omitempty"`
	Wild      bool       `json:"wild,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

func recordEvent(kind StatusKind, rec telemetry.Record) StatusEvent {
	return StatusEvent{Kind: kind, ID: rec.ID, Summary: rec.Summary()}
}

// String renders the event as a single human-readable line.
func (e StatusEvent) String() string {
	switch e.Kind {
	case StatusConnected:
		return "Connected to broker"
	case StatusDisconnected:
		if e.Reason != "" {
			return "Disconnected from broker: " + e.Reason
		}
		return "Disconnected from broker"
	case StatusSuppressed:
		return fmt.Sprintf("Transmission missed (ID: %d)", e.ID)
	case StatusPublished:
		if e.Wild {
			return fmt.Sprintf("Published wild data (ID: %d): %s", e.ID, e.Summary)
		}
		return fmt.Sprintf("Published (ID: %d): %s", e.ID, e.Summary)
	case StatusReceived:
		return fmt.Sprintf("Received (ID: %d): %s", e.ID, e.Summary)
	case StatusDecodeError:
		return "Discarded message: " + e.Reason
	case StatusFailure:
		return "Failure: " + e.Reason
	}
	return string(e.Kind)
}

// StatusWriter receives status events.
type StatusWriter interface {
	WriteStatus(StatusEvent) error
}

// LogStatusWriter turns status events into structured log lines.
type LogStatusWriter struct {
	ctx context.Context
}

// NewLogStatusWriter logs through the logger stored in ctx.
func NewLogStatusWriter(ctx context.Context) *LogStatusWriter {
	return &LogStatusWriter{ctx: ctx}
}

// WriteStatus implements StatusWriter.
func (w *LogStatusWriter) WriteStatus(e StatusEvent) error {
	log := logging.FromContext(w.ctx)
	args := []any{"kind", e.Kind}
	if e.ID != 0 {
		args = append(args, "id", e.ID)
	}
	if e.Wild {
		args = append(args, "wild", true)
	}
	switch e.Kind {
	case StatusFailure, StatusDecodeError:
		log.Warn(e.String(), args...)
	case StatusDisconnected:
		if e.Reason != "" {
			log.Warn(e.String(), args...)
			return nil
		}
		log.Info(e.String(), args...)
	default:
		log.Info(e.String(), args...)
	}
	return nil
}
