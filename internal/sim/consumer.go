package sim

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"plantmon-sim/internal/history"
	"plantmon-sim/internal/logging"
	"plantmon-sim/internal/telemetry"
	"plantmon-sim/internal/transport"
)

// Subscriber delivers raw payloads from the broker.
type Subscriber interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context, handler func(data []byte)) error
	Close() error
}

// ConsumerStats counts what the consumer has seen.
type ConsumerStats struct {
	Received     uint64 `json:"received"`
	DecodeErrors uint64 `json:"decode_errors"`
	HistoryLen   int    `json:"history_len"`
	HistoryCap   int    `json:"history_cap"`
	Evicted      uint64 `json:"evicted"`
}

// Consumer decodes incoming messages, keeps the most recent ones and hands
// each record to a sink.
type Consumer struct {
	sub     Subscriber
	history *history.Buffer[telemetry.Record]
	writer  RecordWriter
	status  StatusWriter
	now     func() time.Time

	lifecycle sync.Mutex

	mu      sync.Mutex
	running bool
	runCtx  context.Context

	received     atomic.Uint64
	decodeErrors atomic.Uint64
}

// NewConsumer creates a stopped consumer keeping historySize records.
// writer and status may be nil.
func NewConsumer(sub Subscriber, historySize int, writer RecordWriter, status StatusWriter) *Consumer {
	return &Consumer{
		sub:     sub,
		history: history.New[telemetry.Record](historySize),
		writer:  writer,
		status:  status,
		now:     time.Now,
	}
}

// Start connects and subscribes. Calling Start on a running consumer does nothing.
func (c *Consumer) Start(ctx context.Context) error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()
	if c.Running() {
		return nil
	}

	runCtx := context.WithoutCancel(ctx)
	if err := c.sub.Connect(ctx); err != nil {
		c.emit(runCtx, StatusEvent{Kind: StatusFailure, Reason: err.Error()})
		return fmt.Errorf("start consumer: %w", err)
	}
	c.emit(runCtx, StatusEvent{Kind: StatusConnected})

	c.mu.Lock()
	c.running = true
	c.runCtx = runCtx
	c.mu.Unlock()

	if err := c.sub.Subscribe(ctx, func(data []byte) { c.HandleMessage(runCtx, data) }); err != nil {
		c.emit(runCtx, StatusEvent{Kind: StatusFailure, Reason: err.Error()})
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
		_ = c.sub.Close()
		return fmt.Errorf("start consumer: %w", err)
	}
	logging.FromContext(runCtx).Info("consumer subscribed", "history_size", c.history.Cap())
	return nil
}

// Stop ends the receive loop and closes the connection.
func (c *Consumer) Stop() {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	ctx := c.runCtx
	c.running = false
	c.mu.Unlock()

	if err := c.sub.Close(); err != nil {
		logging.FromContext(ctx).Error("close subscriber", "err", err)
	}
	logging.FromContext(ctx).Info("stopping consumer")
	c.emit(ctx, StatusEvent{Kind: StatusDisconnected})
}

// Running reports whether the consumer is subscribed.
func (c *Consumer) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// ConnectionLost reports a broker connection that dropped while subscribed.
func (c *Consumer) ConnectionLost(err error) {
	c.mu.Lock()
	ctx := c.runCtx
	c.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	c.emit(ctx, StatusEvent{Kind: StatusDisconnected, Reason: err.Error()})
}

// HandleMessage decodes one payload. A bad payload is reported and dropped;
// a good one is appended to the history and then passed to the sink.
// It must not be called concurrently.
func (c *Consumer) HandleMessage(ctx context.Context, data []byte) {
	rec, err := transport.Decode(data)
	if err != nil {
		c.decodeErrors.Add(1)
		logging.FromContext(ctx).Debug("discarding message", "err", err)
		c.emit(ctx, StatusEvent{Kind: StatusDecodeError, Reason: err.Error()})
		return
	}

	c.history.Push(rec)
	c.received.Add(1)
	if c.writer != nil {
		if err := c.writer.Write(rec); err != nil {
			logging.FromContext(ctx).Error("record write failed", "id", rec.ID, "err", err)
		}
	}
	c.emit(ctx, recordEvent(StatusReceived, rec))
}

// History returns the retained records, oldest first.
func (c *Consumer) History() []telemetry.Record {
	return c.history.Snapshot()
}

// Stats returns the counters.
func (c *Consumer) Stats() ConsumerStats {
	return ConsumerStats{
		Received:     c.received.Load(),
		DecodeErrors: c.decodeErrors.Load(),
		HistoryLen:   c.history.Len(),
		HistoryCap:   c.history.Cap(),
		Evicted:      c.history.Evicted(),
	}
}

func (c *Consumer) emit(ctx context.Context, ev StatusEvent) {
	if c.status == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = c.now().UTC()
	}
	if err := c.status.WriteStatus(ev); err != nil {
		logging.FromContext(ctx).Error("status write failed", "kind", ev.Kind, "err", err)
	}
}
