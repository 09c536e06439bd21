package sim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"plantmon-sim/internal/telemetry"
	"plantmon-sim/internal/transport"
)

// batchWriter is implemented by sinks that take several records at once.
type batchWriter interface {
	WriteBatch([]telemetry.Record) error
}

// replayBatchSize bounds how many records an unpaced replay hands to a
// batchWriter at once.
const replayBatchSize = 100

// ReplayLog feeds records from a JSONL log in r to writer. Each line is
// checked with the wire decoder. A speed >0 keeps the recorded spacing,
// divided by speed; otherwise records are written back to back, in batches
// when writer supports WriteBatch.
func ReplayLog(ctx context.Context, r io.Reader, writer RecordWriter, speed float64) (int, error) {
	dec := json.NewDecoder(r)
	bw, batching := writer.(batchWriter)
	batching = batching && speed <= 0
	var (
		prev    time.Time
		pending []telemetry.Record
	)
	n := 0
	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		if err := bw.WriteBatch(pending); err != nil {
			return err
		}
		n += len(pending)
		pending = nil
		return nil
	}
	// records read before a bad line are still delivered
	stopAt := func(line int, err error) error {
		if batching {
			if ferr := flush(); ferr != nil {
				return ferr
			}
		}
		return fmt.Errorf("line %d: %w", line, err)
	}
	for line := 1; ; line++ {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				if batching {
					err = flush()
					return n, err
				}
				return n, nil
			}
			err = stopAt(line, err)
			return n, err
		}
		rec, err := transport.Decode(raw)
		if err != nil {
			err = stopAt(line, err)
			return n, err
		}
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if batching {
			pending = append(pending, rec)
			if len(pending) == replayBatchSize {
				if err := flush(); err != nil {
					return n, err
				}
			}
			continue
		}
		ts := rec.Timestamp.Time
		if !prev.IsZero() && speed > 0 {
			diff := time.Duration(float64(ts.Sub(prev)) / speed)
			if diff > 0 {
				select {
				case <-ctx.Done():
					return n, ctx.Err()
				case <-time.After(diff):
				}
			}
		}
		if err := writer.Write(rec); err != nil {
			return n, err
		}
		n++
		prev = ts
	}
}

// ReplayLogFile opens a file and replays its records.
func ReplayLogFile(ctx context.Context, path string, writer RecordWriter, speed float64) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return ReplayLog(ctx, f, writer, speed)
}

// PublishWriter adapts a Publisher to RecordWriter so recorded logs can be
// sent back to the broker.
type PublishWriter struct {
	ctx context.Context
	pub Publisher
}

// NewPublishWriter returns a RecordWriter publishing with ctx.
func NewPublishWriter(ctx context.Context, pub Publisher) *PublishWriter {
	return &PublishWriter{ctx: ctx, pub: pub}
}

// Write publishes rec.
func (w *PublishWriter) Write(rec telemetry.Record) error {
	return w.pub.Publish(w.ctx, rec)
}
