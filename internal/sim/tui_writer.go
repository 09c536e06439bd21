package sim

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"plantmon-sim/internal/telemetry"
)

const (
	colorReset   = "\x1b[0m"
	colorRed     = "\x1b[31m"
	colorGreen   = "\x1b[32m"
	colorYellow  = "\x1b[33m"
	colorBlue    = "\x1b[34m"
	colorMagenta = "\x1b[35m"
	colorCyan    = "\x1b[36m"
	colorGray    = "\x1b[90m"
	colorWhite   = "\x1b[97m"
)

const (
	maxLogLines   = 1000
	maxRecordRows = 10
	// summary table, two dividers, records title and footer
	chromeLines = 4
)

// teaProgram abstracts bubbletea.Program for testing.
type teaProgram interface {
	Send(tea.Msg)
}

// logMsg carries a status line for the viewport.
type logMsg struct{ line string }

// recordMsg announces that a record reached the history.
type recordMsg struct{ telemetry.Record }

// connMsg reports the broker connection state.
type connMsg struct{ connected bool }

// TUIWriter renders the consumer side using a bubbletea TUI.
type TUIWriter struct {
	program    teaProgram
	done       chan struct{}
	sendSignal atomic.Bool
}

// NewTUIWriter starts a bubbletea program and returns a TUIWriter. snapshot
// is called from the UI goroutine to read the record history.
func NewTUIWriter(title string, snapshot func() []telemetry.Record) *TUIWriter {
	w := &TUIWriter{done: make(chan struct{})}
	w.sendSignal.Store(true)
	m := newTUIModel(title, snapshot)
	p := tea.NewProgram(m, tea.WithAltScreen())
	w.program = p
	go func() {
		_, _ = p.Run()
		close(w.done)
		// quitting the UI ends the process like ctrl+c would
		if w.sendSignal.Load() {
			if proc, err := os.FindProcess(os.Getpid()); err == nil {
				_ = proc.Signal(os.Interrupt)
			}
		}
	}()
	return w
}

// Write implements RecordWriter.
func (w *TUIWriter) Write(rec telemetry.Record) error {
	w.program.Send(recordMsg{rec})
	return nil
}

// WriteStatus implements StatusWriter.
func (w *TUIWriter) WriteStatus(e StatusEvent) error {
	switch e.Kind {
	case StatusConnected:
		w.program.Send(connMsg{connected: true})
	case StatusDisconnected:
		w.program.Send(connMsg{connected: false})
	}
	w.program.Send(logMsg{line: statusLine(e)})
	return nil
}

// Close shuts down the TUI program and waits for cleanup.
func (w *TUIWriter) Close() error {
	w.sendSignal.Store(false)
	if w.program != nil {
		w.program.Send(tea.Quit())
	}
	if w.done != nil {
		<-w.done
	}
	return nil
}

func statusLine(e StatusEvent) string {
	color := colorWhite
	switch e.Kind {
	case StatusConnected:
		color = colorGreen
	case StatusDisconnected:
		color = colorYellow
	case StatusSuppressed:
		color = colorYellow
	case StatusPublished:
		color = colorGreen
		if e.Wild {
			color = colorMagenta
		}
	case StatusReceived:
		color = colorCyan
	case StatusDecodeError, StatusFailure:
		color = colorRed
	}
	return fmt.Sprintf("%s[%s]%s %s%s%s",
		colorGray, e.Timestamp.Format(telemetry.TimestampLayout), colorReset,
		color, e.String(), colorReset)
}

type tuiModel struct {
	title      string
	snapshot   func() []telemetry.Record
	envelope   telemetry.Envelope
	stats      table.Model
	records    table.Model
	vp         viewport.Model
	logs       []string
	connected  bool
	received   int
	wrap       bool
	autoscroll bool
	help       bool
	height     int
}

func newTUIModel(title string, snapshot func() []telemetry.Record) tuiModel {
	statCols := []table.Column{
		{Title: "History", Width: 18},
		{Title: "Value", Width: 10},
		{Title: "History", Width: 18},
		{Title: "Value", Width: 10},
	}
	stats := table.New(table.WithColumns(statCols), table.WithHeight(5))
	recCols := []table.Column{
		{Title: "ID", Width: 6},
		{Title: "Time", Width: 19},
		{Title: "Plant", Width: 9},
		{Title: "Stage", Width: 10},
		{Title: "Temp °C", Width: 8},
		{Title: "Hum %", Width: 7},
		{Title: "Health", Width: 6},
		{Title: "", Width: 2},
	}
	records := table.New(table.WithColumns(recCols), table.WithHeight(maxRecordRows+1))
	m := tuiModel{
		title:      title,
		snapshot:   snapshot,
		envelope:   telemetry.DefaultEnvelope,
		stats:      stats,
		records:    records,
		vp:         viewport.New(0, 0),
		autoscroll: true,
	}
	m.refreshTables()
	return m
}

func (m tuiModel) Init() tea.Cmd { return nil }

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.stats.SetWidth(msg.Width)
		m.records.SetWidth(msg.Width)
		m.vp.Width = msg.Width
		m.height = msg.Height
		m.updateViewportHeight()
		m.refreshViewport()
	case tea.KeyMsg:
		if m.help {
			switch msg.String() {
			case "?", "h", "esc":
				m.help = false
			}
			return m, nil
		}
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "w":
			m.wrap = !m.wrap
			m.refreshViewport()
			return m, nil
		case "s":
			m.autoscroll = !m.autoscroll
			if m.autoscroll {
				m.vp.GotoBottom()
			}
			return m, nil
		case "h", "?":
			m.help = true
			return m, nil
		}
		if !m.autoscroll {
			switch msg.String() {
			case "j", "down":
				m.vp.LineDown(1)
			case "k", "up":
				m.vp.LineUp(1)
			case "pgdown", "ctrl+n":
				m.vp.LineDown(10)
			case "pgup", "ctrl+p":
				m.vp.LineUp(10)
			default:
				var cmd tea.Cmd
				m.vp, cmd = m.vp.Update(msg)
				return m, cmd
			}
		}
		return m, nil
	case logMsg:
		m.logs = append(m.logs, msg.line)
		if len(m.logs) > maxLogLines {
			m.logs = m.logs[len(m.logs)-maxLogLines:]
		}
		m.refreshViewport()
	case recordMsg:
		m.received++
		m.refreshTables()
	case connMsg:
		m.connected = msg.connected
	}
	return m, nil
}

func (m *tuiModel) refreshTables() {
	var recs []telemetry.Record
	if m.snapshot != nil {
		recs = m.snapshot()
	}
	s := Summarize(recs, m.envelope)
	temps := "-"
	if s.Count > 0 {
		temps = fmt.Sprintf("%.1f / %.1f", s.MinTemperatureC, s.MaxTemperatureC)
	}
	m.stats.SetRows([]table.Row{
		{"Records", fmt.Sprintf("%d", s.Count), "Received", fmt.Sprintf("%d", m.received)},
		{"Mean temp °C", fmt.Sprintf("%.1f", s.MeanTemperatureC), "Min / max °C", temps},
		{"Mean humidity %", fmt.Sprintf("%.1f", s.MeanHumidityPct), "Mean health", fmt.Sprintf("%.1f", s.MeanHealthScore)},
		{"Out of range", fmt.Sprintf("%d", s.OutOfEnvelope), "", ""},
	})

	start := len(recs) - maxRecordRows
	if start < 0 {
		start = 0
	}
	rows := make([]table.Row, 0, len(recs)-start)
	for _, r := range recs[start:] {
		flag := ""
		if !m.envelope.Contains(r) {
			flag = "!"
		}
		env := r.EnvironmentalConditions
		rows = append(rows, table.Row{
			fmt.Sprintf("%d", r.ID),
			r.Timestamp.String(),
			r.PlantType,
			r.GrowthStage,
			fmt.Sprintf("%.1f", env.TemperatureC),
			fmt.Sprintf("%.0f", env.HumidityPct),
			fmt.Sprintf("%d", r.HealthScore),
			flag,
		})
	}
	m.records.SetRows(rows)
	if len(rows) > 0 {
		m.records.SetCursor(len(rows) - 1)
	}
}

func (m *tuiModel) updateViewportHeight() {
	h := m.height - lipgloss.Height(m.stats.View()) - lipgloss.Height(m.records.View()) - chromeLines - 1
	if h < 0 {
		h = 0
	}
	m.vp.Height = h
	if m.autoscroll {
		m.vp.GotoBottom()
	}
}

func (m *tuiModel) refreshViewport() {
	lines := m.logs
	if m.wrap && m.vp.Width > 0 {
		lines = make([]string, len(m.logs))
		for i, l := range m.logs {
			lines[i] = wordwrap.String(l, m.vp.Width)
		}
	}
	m.vp.SetContent(strings.Join(lines, "\n"))
	if m.autoscroll {
		m.vp.GotoBottom()
	}
}

func (m tuiModel) View() string {
	if m.help {
		return m.renderHelp()
	}
	divider := strings.Repeat("─", m.vp.Width)
	sections := []string{
		m.stats.View(),
		divider,
		fmt.Sprintf("Latest records (%s):", m.title),
		m.records.View(),
		divider,
		m.vp.View(),
		m.renderBottom(),
	}
	return strings.Join(sections, "\n")
}

func indicator(on bool) string {
	c := lipgloss.Color("9")
	if on {
		c = lipgloss.Color("10")
	}
	return lipgloss.NewStyle().Foreground(c).Render("●")
}

func (m tuiModel) renderBottom() string {
	return fmt.Sprintf("%sBROKER%s %s | Wrap %s | Scroll %s | Help %s",
		colorBlue, colorReset, indicator(m.connected), indicator(m.wrap), indicator(m.autoscroll), indicator(m.help))
}

func (m tuiModel) renderHelp() string {
	lines := []string{
		"Key Bindings:",
		" q  quit",
		" w  toggle wrap for the status log",
		" s  toggle auto-scroll",
		" h/? toggle this help view",
		"",
		"When auto-scroll is disabled:",
		" j/k or up/down    scroll one line",
		" pgdown/pgup       scroll a page",
		"",
		fmt.Sprintf("Rows marked ! are outside %.0f-%.0f °C or %.0f-%.0f %% humidity.",
			m.envelope.MinTemperatureC, m.envelope.MaxTemperatureC, m.envelope.MinHumidityPct, m.envelope.MaxHumidityPct),
	}
	return strings.Join(lines, "\n")
}
