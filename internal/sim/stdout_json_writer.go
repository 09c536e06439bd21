package sim

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"plantmon-sim/internal/telemetry"
)

// JSONStdoutWriter prints records and status events as JSON lines to STDOUT.
type JSONStdoutWriter struct {
	mu  sync.Mutex
	out io.Writer
}

// NewJSONStdoutWriter creates a JSONStdoutWriter writing to os.Stdout.
func NewJSONStdoutWriter() *JSONStdoutWriter {
	return &JSONStdoutWriter{out: os.Stdout}
}

func (w *JSONStdoutWriter) emit(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err = fmt.Fprintln(w.out, string(data))
	return err
}

// Write outputs a record in its wire format.
func (w *JSONStdoutWriter) Write(rec telemetry.Record) error {
	return w.emit(rec)
}

// WriteBatch outputs multiple records.
func (w *JSONStdoutWriter) WriteBatch(recs []telemetry.Record) error {
	for _, r := range recs {
		if err := w.Write(r); err != nil {
			return err
		}
	}
	return nil
}

// WriteStatus outputs a status event wrapped so it can be told apart from records.
func (w *JSONStdoutWriter) WriteStatus(e StatusEvent) error {
	return w.emit(struct {
		Status StatusEvent `json:"status"`
	}{e})
}
