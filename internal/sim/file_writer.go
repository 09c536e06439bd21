package sim

import (
	"encoding/json"
	"os"
	"sync"

	"plantmon-sim/internal/telemetry"
)

// FileWriter appends records and status events to JSONL files.
type FileWriter struct {
	mu         sync.Mutex
	recFile    *os.File
	statusFile *os.File
	recEnc     *json.Encoder
	statusEnc  *json.Encoder
}

// NewFileWriter creates a FileWriter. statusPath may be empty to skip the
// status log.
func NewFileWriter(recordPath, statusPath string) (*FileWriter, error) {
	rf, err := os.Create(recordPath)
	if err != nil {
		return nil, err
	}
	fw := &FileWriter{recFile: rf, recEnc: json.NewEncoder(rf)}
	if statusPath != "" {
		sf, err := os.Create(statusPath)
		if err != nil {
			rf.Close()
			return nil, err
		}
		fw.statusFile = sf
		fw.statusEnc = json.NewEncoder(sf)
	}
	return fw, nil
}

// Write logs a single record.
func (f *FileWriter) Write(rec telemetry.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recEnc.Encode(rec)
}

// WriteStatus logs a status event, if enabled.
func (f *FileWriter) WriteStatus(e StatusEvent) error {
	if f.statusEnc == nil {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusEnc.Encode(e)
}

// Close closes any underlying files.
func (f *FileWriter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var err error
	if f.recFile != nil {
		if e := f.recFile.Close(); e != nil && err == nil {
			err = e
		}
	}
	if f.statusFile != nil {
		if e := f.statusFile.Close(); e != nil && err == nil {
			err = e
		}
	}
	return err
}
