package main

import (
	"context"
	"io"
	"os"

	"golang.org/x/term"

	"plantmon-sim/internal/logging"
	"plantmon-sim/internal/sim"
	"plantmon-sim/internal/telemetry"
)

// sinks is where a command sends records and status events.
type sinks struct {
	records sim.RecordWriter
	status  sim.StatusWriter
	close   func() error
}

// useTUI reports whether the subscriber should draw the terminal UI on out.
func useTUI(jsonOut bool, out *os.File) bool {
	return !jsonOut && term.IsTerminal(int(out.Fd()))
}

// newSubscriberSinks renders to the TUI or, without one, writes records as
// JSON lines and status events to the log. A non-empty logFile also records
// both to JSONL files.
func newSubscriberSinks(ctx context.Context, tui bool, logFile string, snapshot func() []telemetry.Record) (sinks, error) {
	var (
		rws     []sim.RecordWriter
		sws     []sim.StatusWriter
		closers []func() error
	)
	if tui {
		tw := sim.NewTUIWriter("Plant Monitoring Subscriber", snapshot)
		rws = append(rws, tw)
		sws = append(sws, tw)
		closers = append(closers, tw.Close)
	} else {
		rws = append(rws, sim.NewJSONStdoutWriter())
		sws = append(sws, sim.NewLogStatusWriter(ctx))
	}
	if logFile != "" {
		fw, err := sim.NewFileWriter(logFile, logFile+".status")
		if err != nil {
			for _, c := range closers {
				_ = c()
			}
			return sinks{}, err
		}
		rws = append(rws, fw)
		sws = append(sws, fw)
		closers = append(closers, fw.Close)
	}
	mw := sim.NewMultiWriter(rws, sws)
	return sinks{records: mw, status: mw, close: func() error {
		var err error
		for _, c := range closers {
			if e := c(); e != nil && err == nil {
				err = e
			}
		}
		return err
	}}, nil
}

// newPublisherStatus logs status events and, with jsonOut, also prints them
// as JSON lines.
func newPublisherStatus(ctx context.Context, jsonOut bool) sim.StatusWriter {
	sws := []sim.StatusWriter{sim.NewLogStatusWriter(ctx)}
	if jsonOut {
		sws = append(sws, sim.NewJSONStdoutWriter())
	}
	return sim.NewMultiWriter(nil, sws)
}

// tuiQuietContext keeps log lines from drawing over the terminal UI.
func tuiQuietContext(ctx context.Context) context.Context {
	logger, _ := logging.NewWithOptions(io.Discard, "error", "text")
	return logging.NewContext(ctx, logger)
}
