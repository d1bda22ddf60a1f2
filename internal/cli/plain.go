package cli

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/rileyhilliard/sensord/internal/stream"
	"github.com/rileyhilliard/sensord/internal/ui"
)

// linePrinter is the non-interactive watch consumer: one line per reading,
// connection change, status message and anomaly.
type linePrinter struct {
	mu     sync.Mutex
	w      io.Writer
	target string
}

func newLinePrinter(w io.Writer, target string) *linePrinter {
	return &linePrinter{w: w, target: target}
}

func (p *linePrinter) printf(format string, args ...interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, format, args...)
}

func (p *linePrinter) OnBatch(views map[string]stream.View) {
	ids := make([]string, 0, len(views))
	for id := range views {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		v := views[id]
		r := v.Reading
		s := v.Statistics
		trend := ""
		if s.HasTrend {
			trend = " " + ui.TrendSymbol(s.Temperature.Trend) + ui.TrendSymbol(s.Humidity.Trend)
		}
		state := ""
		if !r.Active {
			state = " " + ui.WarningStyle().Render(ui.SymbolInactive+" inactive")
		}
		p.printf("%s %-10s %s  %s  %s%s%s\n",
			ui.MutedStyle().Render(r.Time.Format("15:04:05")),
			r.Name,
			ui.MutedStyle().Render(id),
			fmt.Sprintf("temp %6.2f°C", r.Temperature),
			fmt.Sprintf("hum %6.2f%%", r.Humidity),
			ui.MutedStyle().Render(fmt.Sprintf("  n=%d", s.Count)+trend),
			state,
		)
	}
}

func (p *linePrinter) OnConnection(connected bool) {
	if connected {
		p.printf("%s connected to %s\n", ui.SuccessStyle().Render(ui.SymbolConnected), p.target)
		return
	}
	p.printf("%s disconnected from %s\n", ui.ErrorStyle().Render(ui.SymbolDisconnected), p.target)
}

func (p *linePrinter) OnStatus(status string) {
	p.printf("%s backend status: %s\n", ui.InfoStyle().Render("i"), status)
}

func (p *linePrinter) OnAnomalies(anomalies []stream.Anomaly) {
	for _, a := range anomalies {
		p.printf("%s %s anomaly on %s (%s): %s=%.2f mean=%.2f std=%.2f\n",
			ui.SeverityStyle(string(a.Severity)).Render(ui.SymbolWarning),
			a.Severity, a.SensorName, a.SensorID, a.Metric, a.Value, a.Mean, a.Std)
	}
}
