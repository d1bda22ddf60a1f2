package monitor

import (
	"sort"
	"time"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rileyhilliard/sensord/internal/pipeline"
	"github.com/rileyhilliard/sensord/internal/stream"
	"github.com/rileyhilliard/sensord/internal/ui"
)

// DefaultAnomalyLog is how many anomalies the dashboard keeps on screen.
const DefaultAnomalyLog = 8

// Width breakpoints for the card grid.
const (
	BreakpointCompact = 80
	defaultCardWidth  = 38
)

// Model is the Bubble Tea model for the sensor dashboard.
type Model struct {
	source     UpdateSource
	control    SensorController
	sensors    []string // sorted ids
	views      map[string]stream.View
	anomalies  []stream.Anomaly // oldest first
	maxLog     int
	link       ui.ConnectionIndicator
	status     string
	selected   int
	viewMode   ViewMode
	width      int
	height     int
	lastUpdate time.Time
	keys       keyMap
	help       help.Model
	showHelp   bool
	quitting   bool
	sourceDone bool
	now        func() time.Time
}

// Option configures a Model.
type Option func(*Model)

// WithController enables the clear keys against the given controller.
func WithController(c SensorController) Option {
	return func(m *Model) { m.control = c }
}

// WithAnomalyLog sets how many anomalies are kept on screen.
func WithAnomalyLog(n int) Option {
	return func(m *Model) {
		if n > 0 {
			m.maxLog = n
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Model) { m.now = now }
}

// NewModel creates a dashboard reading from source. target is the socket
// path shown in the header.
func NewModel(source UpdateSource, target string, opts ...Option) Model {
	m := Model{
		source: source,
		views:  make(map[string]stream.View),
		maxLog: DefaultAnomalyLog,
		link:   ui.NewConnectionIndicator(target),
		keys:   defaultKeyMap(),
		help:   help.New(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&m)
	}
	if m.control == nil {
		m.keys.Clear.SetEnabled(false)
		m.keys.ClearAll.SetEnabled(false)
	}
	return m
}

// Init starts the link animation and waits for the first update.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.link.Init(), m.waitForUpdate())
}

// Update handles messages and updates the model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if handled, cmd := m.HandleKeyMsg(msg); handled {
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case updateMsg:
		cmd := m.apply(pipeline.Update(msg))
		return m, tea.Batch(cmd, m.waitForUpdate())

	case sourceDoneMsg:
		m.sourceDone = true
		m.link.Stop(m.now())

	default:
		var cmd tea.Cmd
		m.link, cmd = m.link.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the dashboard.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.showHelp {
		return m.renderHelpOverlay()
	}
	if m.viewMode == ViewDetail {
		if id := m.SelectedSensor(); id != "" {
			return m.renderDetail(id)
		}
	}
	return m.renderDashboard()
}

// waitForUpdate blocks for the next pipeline notification.
func (m Model) waitForUpdate() tea.Cmd {
	if m.source == nil {
		return nil
	}
	updates, done := m.source.Updates(), m.source.Done()
	return func() tea.Msg {
		select {
		case u := <-updates:
			return updateMsg(u)
		case <-done:
			return sourceDoneMsg{}
		}
	}
}

func (m *Model) apply(u pipeline.Update) tea.Cmd {
	now := m.now()
	switch u.Kind {
	case pipeline.UpdateBatch:
		m.lastUpdate = now
		added := false
		for id, v := range u.Views {
			if _, ok := m.views[id]; !ok {
				m.sensors = append(m.sensors, id)
				added = true
			}
			m.views[id] = v
		}
		if added {
			m.sortSensors()
		}
	case pipeline.UpdateConnection:
		return m.link.SetConnected(u.Connected, now)
	case pipeline.UpdateStatus:
		m.status = u.Status
	case pipeline.UpdateAnomalies:
		m.anomalies = append(m.anomalies, u.Anomalies...)
		if over := len(m.anomalies) - m.maxLog; over > 0 {
			m.anomalies = append([]stream.Anomaly(nil), m.anomalies[over:]...)
		}
	}
	return nil
}

// sortSensors keeps ids ordered while preserving the selected sensor.
func (m *Model) sortSensors() {
	selected := m.SelectedSensor()
	sort.Strings(m.sensors)
	if selected == "" {
		return
	}
	for i, id := range m.sensors {
		if id == selected {
			m.selected = i
			return
		}
	}
}

func (m *Model) clearSelected() {
	id := m.SelectedSensor()
	if id == "" || m.control == nil {
		return
	}
	m.control.Clear(id)
	delete(m.views, id)
	m.sensors = append(m.sensors[:m.selected:m.selected], m.sensors[m.selected+1:]...)
	m.dropAnomalies(func(a stream.Anomaly) bool { return a.SensorID == id })
	if m.selected >= len(m.sensors) && m.selected > 0 {
		m.selected--
	}
	if len(m.sensors) == 0 {
		m.viewMode = ViewGrid
	}
}

func (m *Model) clearAll() {
	if m.control == nil {
		return
	}
	m.control.ClearAll()
	m.views = make(map[string]stream.View)
	m.sensors = nil
	m.anomalies = nil
	m.selected = 0
	m.viewMode = ViewGrid
}

func (m *Model) dropAnomalies(match func(stream.Anomaly) bool) {
	kept := m.anomalies[:0]
	for _, a := range m.anomalies {
		if !match(a) {
			kept = append(kept, a)
		}
	}
	m.anomalies = kept
}

// SelectedSensor returns the id of the selected sensor, or "".
func (m Model) SelectedSensor() string {
	if m.selected >= 0 && m.selected < len(m.sensors) {
		return m.sensors[m.selected]
	}
	return ""
}

// Sensors returns the ids on screen, sorted.
func (m Model) Sensors() []string {
	return append([]string(nil), m.sensors...)
}

// Anomalies returns the anomaly log, oldest first.
func (m Model) Anomalies() []stream.Anomaly {
	return append([]stream.Anomaly(nil), m.anomalies...)
}

// Link returns the connection state shown in the header.
func (m Model) Link() ui.LinkState { return m.link.State }

// SecondsSinceUpdate returns how many seconds have passed since the last batch.
func (m Model) SecondsSinceUpdate() int {
	if m.lastUpdate.IsZero() {
		return 0
	}
	return int(m.now().Sub(m.lastUpdate).Seconds())
}

// sensorAnomalies returns the logged anomalies for one sensor, newest first.
func (m Model) sensorAnomalies(id string) []stream.Anomaly {
	var out []stream.Anomaly
	for i := len(m.anomalies) - 1; i >= 0; i-- {
		if m.anomalies[i].SensorID == id {
			out = append(out, m.anomalies[i])
		}
	}
	return out
}
