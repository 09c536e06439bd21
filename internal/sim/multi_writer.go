package sim

import "plantmon-sim/internal/telemetry"

// RecordWriter is the consumer sink. Write is called once per decoded record,
// in arrival order.
type RecordWriter interface {
	Write(telemetry.Record) error
}

// MultiWriter fan-outs records and status events to multiple writers.
type MultiWriter struct {
	recordWriters []RecordWriter
	statusWriters []StatusWriter
}

// NewMultiWriter creates a new MultiWriter.
func NewMultiWriter(rws []RecordWriter, sws []StatusWriter) *MultiWriter {
	return &MultiWriter{recordWriters: rws, statusWriters: sws}
}

// Write sends a record to all record writers.
func (mw *MultiWriter) Write(rec telemetry.Record) error {
	for _, w := range mw.recordWriters {
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	return nil
}

// WriteStatus sends a status event to all status writers.
func (mw *MultiWriter) WriteStatus(e StatusEvent) error {
	for _, w := range mw.statusWriters {
		if err := w.WriteStatus(e); err != nil {
			return err
		}
	}
	return nil
}
