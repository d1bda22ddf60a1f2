// Package stream keeps bounded per-sensor history, recomputes statistics on
// every update and flags readings that deviate from them.
package stream

import (
	"sort"
	"sync"
	"time"

	"github.com/rileyhilliard/sensord/internal/export"
	"github.com/rileyhilliard/sensord/internal/logger"
	"github.com/rileyhilliard/sensord/internal/wire"
)

// Window defaults.
const (
	DefaultHistorySize = 1000
	DefaultLiveSize    = 100
)

// Anomaly thresholds in standard deviations.
const (
	DefaultThreshold     = 3.0
	DefaultHighThreshold = 5.0
)

// Metric names the measured quantity an anomaly refers to.
type Metric string

const (
	MetricTemperature Metric = "temperature"
	MetricHumidity    Metric = "humidity"
)

// Severity grades how far a reading is from its baseline.
type Severity string

const (
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Anomaly is a reading that deviates from its sensor's baseline.
type Anomaly struct {
	SensorID   string
	SensorName string
	Metric     Metric
	Value      float64
	Mean       float64
	Std        float64
	Severity   Severity
	Time       time.Time
}

// Baseline selects which samples anomaly detection compares against.
type Baseline struct {
	recent int
}

// BaselineWindow compares against statistics over the whole long-term window.
func BaselineWindow() Baseline { return Baseline{} }

// BaselineRecent compares against the newest n samples of the window only.
func BaselineRecent(n int) Baseline {
	if n < 1 {
		return Baseline{}
	}
	return Baseline{recent: n}
}

// Recent returns the sample count for a recent baseline, or 0 for the
// whole window.
func (b Baseline) Recent() int { return b.recent }

func (b Baseline) String() string {
	if b.recent == 0 {
		return "window"
	}
	return "recent"
}

// View is the processed result for one sensor after an ingest.
type View struct {
	Reading    wire.Reading
	History    History // long-term window
	Live       History // live-display window
	Statistics Statistics
}

// Summary pairs a sensor's name with its current statistics.
type Summary struct {
	Name       string
	Statistics Statistics
}

type sensorState struct {
	name       string
	long       *window
	live       *window
	stats      Statistics
	statsReady bool
}

// Option configures a Processor.
type Option func(*Processor)

// WithHistorySize sets the long-term window capacity.
func WithHistorySize(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.historySize = n
		}
	}
}

// WithLiveSize sets the live-display window capacity.
func WithLiveSize(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.liveSize = n
		}
	}
}

// WithBaseline sets the anomaly baseline policy.
func WithBaseline(b Baseline) Option {
	return func(p *Processor) { p.baseline = b }
}

// WithThresholds sets the medium and high deviation multipliers. Invalid
// pairs are ignored.
func WithThresholds(medium, high float64) Option {
	return func(p *Processor) {
		if medium > 0 && high >= medium {
			p.threshold = medium
			p.highThreshold = high
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Processor) { p.log = l }
}

// WithMetrics attaches prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(p *Processor) { p.metrics = m }
}

// WithClock sets the time source used for readings without a capture time.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) { p.now = now }
}

// Processor owns all history and statistics. Every method takes the same
// lock, so an ingest is never interleaved with detection, export or clear.
type Processor struct {
	historySize   int
	liveSize      int
	baseline      Baseline
	threshold     float64
	highThreshold float64
	log           logger.Logger
	metrics       *Metrics
	now           func() time.Time

	mu      sync.Mutex
	sensors map[string]*sensorState
}

// New creates a Processor with default windows and thresholds.
func New(opts ...Option) *Processor {
	p := &Processor{
		historySize:   DefaultHistorySize,
		liveSize:      DefaultLiveSize,
		threshold:     DefaultThreshold,
		highThreshold: DefaultHighThreshold,
		now:           time.Now,
		sensors:       make(map[string]*sensorState),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.log == nil {
		p.log = logger.NewEnvLogger("[stream]")
	}
	return p
}

// Ingest appends each reading to its sensor's windows, recomputes that
// sensor's statistics over the full long-term window and returns a view per
// sensor in the batch. When a batch holds several readings for one sensor
// the view reflects the last.
func (p *Processor) Ingest(readings []wire.Reading) map[string]View {
	p.mu.Lock()
	defer p.mu.Unlock()

	views := make(map[string]View, len(readings))
	for _, r := range readings {
		st := p.stateLocked(r.ID)
		if r.Name != "" {
			st.name = r.Name
		}

		at := r.Time
		if at.IsZero() {
			at = p.now()
		}
		temp, hum := float64(r.Temperature), float64(r.Humidity)
		st.long.push(at, temp, hum)
		st.live.push(at, temp, hum)

		history := st.long.snapshot()
		st.stats, st.statsReady = ComputeStatistics(history)

		views[r.ID] = View{
			Reading:    r,
			History:    history,
			Live:       st.live.snapshot(),
			Statistics: st.stats,
		}
	}

	p.metrics.ingested(len(readings), len(p.sensors))
	p.log.Debug("ingested %d readings across %d sensors", len(readings), len(views))
	return views
}

func (p *Processor) stateLocked(id string) *sensorState {
	st, ok := p.sensors[id]
	if !ok {
		st = &sensorState{
			long: newWindow(p.historySize),
			live: newWindow(p.liveSize),
		}
		p.sensors[id] = st
	}
	return st
}

// DetectAnomalies checks each reading against its sensor's baseline without
// modifying any state. Sensors with no history never produce anomalies.
func (p *Processor) DetectAnomalies(readings []wire.Reading) []Anomaly {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []Anomaly
	for _, r := range readings {
		st, ok := p.sensors[r.ID]
		if !ok || !st.statsReady {
			continue
		}

		base := st.stats
		if n := p.baseline.Recent(); n > 0 {
			base, _ = ComputeStatistics(st.long.last(n))
		}

		name := r.Name
		if name == "" {
			name = st.name
		}
		at := r.Time
		if at.IsZero() {
			at = p.now()
		}

		checks := []struct {
			metric Metric
			value  float64
			ref    MetricStats
		}{
			{MetricTemperature, float64(r.Temperature), base.Temperature},
			{MetricHumidity, float64(r.Humidity), base.Humidity},
		}
		for _, c := range checks {
			sev, flagged := p.classify(c.value, c.ref)
			if !flagged {
				continue
			}
			a := Anomaly{
				SensorID:   r.ID,
				SensorName: name,
				Metric:     c.metric,
				Value:      c.value,
				Mean:       c.ref.Mean,
				Std:        c.ref.Std,
				Severity:   sev,
				Time:       at,
			}
			p.metrics.anomaly(a)
			p.log.Debug("anomaly %s %s=%.2f mean=%.2f std=%.2f (%s)",
				r.ID, c.metric, c.value, c.ref.Mean, c.ref.Std, sev)
			out = append(out, a)
		}
	}
	return out
}

// classify applies the thresholds. With zero deviation every value that
// differs from the mean is flagged high; an identical value never is.
func (p *Processor) classify(value float64, ref MetricStats) (Severity, bool) {
	dev := value - ref.Mean
	if dev < 0 {
		dev = -dev
	}
	if !(dev > p.threshold*ref.Std) {
		return "", false
	}
	if dev > p.highThreshold*ref.Std {
		return SeverityHigh, true
	}
	return SeverityMedium, true
}

// Clear drops one sensor's history and statistics. Unknown ids are a no-op.
func (p *Processor) Clear(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.sensors, id)
	p.metrics.tracked(len(p.sensors))
}

// ClearAll drops every sensor's state.
func (p *Processor) ClearAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sensors = make(map[string]*sensorState)
	p.metrics.tracked(0)
}

// Sensors returns the ids with retained history, sorted.
func (p *Processor) Sensors() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, 0, len(p.sensors))
	for id := range p.sensors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// History returns a copy of the long-term window for id.
func (p *Processor) History(id string) (History, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok := p.sensors[id]
	if !ok {
		return History{}, false
	}
	return st.long.snapshot(), true
}

// LiveHistory returns a copy of the live-display window for id.
func (p *Processor) LiveHistory(id string) (History, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok := p.sensors[id]
	if !ok {
		return History{}, false
	}
	return st.live.snapshot(), true
}

// Statistics returns the latest statistics for id.
func (p *Processor) Statistics(id string) (Statistics, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok := p.sensors[id]
	if !ok || !st.statsReady {
		return Statistics{}, false
	}
	return st.stats, true
}

// CalculateStatistics returns every tracked sensor's name and statistics.
func (p *Processor) CalculateStatistics() map[string]Summary {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]Summary, len(p.sensors))
	for id, st := range p.sensors {
		if !st.statsReady {
			continue
		}
		out[id] = Summary{Name: st.name, Statistics: st.stats}
	}
	return out
}

// Summaries returns every sensor's statistics in export form, sorted by id.
func (p *Processor) Summaries() []export.SensorSummary {
	stats := p.CalculateStatistics()
	out := make([]export.SensorSummary, 0, len(stats))
	for id, s := range stats {
		out = append(out, export.SensorSummary{SensorID: id, Name: s.Name, Statistics: ExportStatistics(s.Statistics)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SensorID < out[j].SensorID })
	return out
}

// Export renders id's long-term window. It returns false when the sensor
// has no history or the format is not supported.
func (p *Processor) Export(id string, format export.Format) (string, bool) {
	p.mu.Lock()
	st, ok := p.sensors[id]
	if !ok || st.long.len() == 0 {
		p.mu.Unlock()
		return "", false
	}
	h := st.long.snapshot()
	stats := st.stats
	p.mu.Unlock()

	return export.Render(export.Snapshot{
		SensorID:     id,
		Timestamps:   h.Timestamps,
		Temperatures: h.Temperatures,
		Humidities:   h.Humidities,
		Statistics:   ExportStatistics(stats),
	}, format)
}

// ExportStatistics flattens s into the export statistics block.
func ExportStatistics(s Statistics) export.Statistics {
	out := export.Statistics{
		TempMean:    export.Value(s.Temperature.Mean),
		TempStd:     export.Value(s.Temperature.Std),
		TempMin:     export.Value(s.Temperature.Min),
		TempMax:     export.Value(s.Temperature.Max),
		HumMean:     export.Value(s.Humidity.Mean),
		HumStd:      export.Value(s.Humidity.Std),
		HumMin:      export.Value(s.Humidity.Min),
		HumMax:      export.Value(s.Humidity.Max),
		SampleCount: s.Count,
	}
	if s.HasTrend {
		tt := export.Value(s.Temperature.Trend)
		ht := export.Value(s.Humidity.Trend)
		out.TempTrend = &tt
		out.HumTrend = &ht
	}
	return out
}
