package sim

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"plantmon-sim/internal/telemetry"
)

type fakeProgram struct{ msgs []tea.Msg }

func (f *fakeProgram) Send(msg tea.Msg) { f.msgs = append(f.msgs, msg) }

func TestTUIWriterMessages(t *testing.T) {
	p := &fakeProgram{}
	w := &TUIWriter{program: p}
	if err := w.Write(telemetry.Record{ID: 1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, ok := p.msgs[0].(recordMsg); !ok {
		t.Fatalf("expected recordMsg, got %T", p.msgs[0])
	}
	if err := w.WriteStatus(StatusEvent{Kind: StatusConnected, Timestamp: time.Unix(0, 0).UTC()}); err != nil {
		t.Fatalf("status: %v", err)
	}
	if c, ok := p.msgs[1].(connMsg); !ok || !c.connected {
		t.Fatalf("expected connMsg, got %#v", p.msgs[1])
	}
	line, ok := p.msgs[2].(logMsg)
	if !ok {
		t.Fatalf("expected logMsg, got %T", p.msgs[2])
	}
	if !strings.Contains(line.line, "1970-01-01 00:00:00") || !strings.Contains(line.line, "Connected to broker") {
		t.Fatalf("unexpected line %q", line.line)
	}
	_ = w.WriteStatus(StatusEvent{Kind: StatusReceived, ID: 3})
	if len(p.msgs) != 4 {
		t.Fatalf("expected only a log line for received status, got %d msgs", len(p.msgs))
	}
}

func TestTUIModelTracksHistory(t *testing.T) {
	var hist []telemetry.Record
	m := newTUIModel("test", func() []telemetry.Record { return hist })
	for i := 0; i < 15; i++ {
		r := reading(20, 60, 85)
		r.ID = int64(100 + i)
		if i == 14 {
			r.EnvironmentalConditions.HumidityPct = 150
		}
		hist = append(hist, r)
		mi, _ := m.Update(recordMsg{r})
		m = mi.(tuiModel)
	}
	rows := m.records.Rows()
	if len(rows) != maxRecordRows {
		t.Fatalf("expected %d rows, got %d", maxRecordRows, len(rows))
	}
	if rows[0][0] != "105" || rows[len(rows)-1][0] != "114" {
		t.Fatalf("unexpected window %v..%v", rows[0][0], rows[len(rows)-1][0])
	}
	if rows[len(rows)-1][7] != "!" || rows[0][7] != "" {
		t.Fatalf("out of range flag not set correctly")
	}
	stats := m.stats.Rows()
	if stats[0][1] != "15" || stats[0][3] != "15" || stats[3][1] != "1" {
		t.Fatalf("unexpected stats rows %v", stats)
	}
}

func TestTUIModelConnectionIndicator(t *testing.T) {
	m := newTUIModel("test", nil)
	mi, _ := m.Update(connMsg{connected: true})
	m = mi.(tuiModel)
	if !m.connected {
		t.Fatalf("connection state not tracked")
	}
	mi, _ = m.Update(connMsg{connected: false})
	m = mi.(tuiModel)
	if m.connected {
		t.Fatalf("disconnect not tracked")
	}
}

func TestWrapToggle(t *testing.T) {
	m := newTUIModel("test", nil)
	mi, _ := m.Update(tea.WindowSizeMsg{Width: 20, Height: 60})
	m = mi.(tuiModel)
	long := "one two three four five six"
	mi, _ = m.Update(logMsg{line: long})
	m = mi.(tuiModel)
	lines := strings.Split(m.vp.View(), "\n")
	if len(lines) < 2 || strings.TrimSpace(lines[1]) != "" {
		t.Fatalf("expected single line before wrap")
	}
	mi, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'w'}})
	m = mi.(tuiModel)
	if !m.wrap {
		t.Fatalf("wrap not toggled")
	}
	lines = strings.Split(m.vp.View(), "\n")
	if strings.TrimSpace(lines[1]) == "" {
		t.Fatalf("expected wrapped content on second line")
	}
}

func TestScrollToggle(t *testing.T) {
	m := newTUIModel("test", nil)
	m.vp.Height = 1
	m.vp.Width = 20
	mi, _ := m.Update(logMsg{line: "l1"})
	m = mi.(tuiModel)
	mi, _ = m.Update(logMsg{line: "l2"})
	m = mi.(tuiModel)
	if m.vp.YOffset != 1 {
		t.Fatalf("expected YOffset 1, got %d", m.vp.YOffset)
	}
	mi, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'s'}})
	m = mi.(tuiModel)
	if m.autoscroll {
		t.Fatalf("autoscroll should be off")
	}
	mi, _ = m.Update(logMsg{line: "l3"})
	m = mi.(tuiModel)
	if m.vp.YOffset != 1 {
		t.Fatalf("expected YOffset unchanged, got %d", m.vp.YOffset)
	}
	mi, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	m = mi.(tuiModel)
	if m.vp.YOffset != 0 {
		t.Fatalf("expected YOffset 0 after scrolling up, got %d", m.vp.YOffset)
	}
	mi, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'s'}})
	m = mi.(tuiModel)
	if !m.autoscroll {
		t.Fatalf("autoscroll should be on")
	}
	expected := len(m.logs) - m.vp.Height
	if m.vp.YOffset != expected {
		t.Fatalf("expected YOffset %d, got %d", expected, m.vp.YOffset)
	}
}

func TestHelpView(t *testing.T) {
	m := newTUIModel("test", nil)
	mi, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'?'}})
	m = mi.(tuiModel)
	if !strings.Contains(m.View(), "Key Bindings:") {
		t.Fatalf("help not shown")
	}
	mi, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = mi.(tuiModel)
	if strings.Contains(m.View(), "Key Bindings:") {
		t.Fatalf("help not closed")
	}
}
