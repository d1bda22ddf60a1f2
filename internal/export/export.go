// Package export renders a sensor's retained history as text.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Format selects the output encoding.
type Format string

const (
	// FormatJSON is the structured form.
	FormatJSON Format = "json"
	// FormatCSV is the delimited form.
	FormatCSV Format = "csv"
	// FormatYAML is the structured form as YAML.
	FormatYAML Format = "yaml"
)

// CSVHeader is the first row of every delimited export.
const CSVHeader = "timestamp,temperature,humidity"

// CSVTimeLayout formats delimited timestamps as wall-clock time.
const CSVTimeLayout = "15:04:05"

// Formats lists the supported formats.
func Formats() []Format {
	return []Format{FormatJSON, FormatCSV, FormatYAML}
}

// ParseFormat maps a format name to a Format. "structured" and "delimited"
// are accepted as aliases for json and csv. Matching is case-insensitive.
func ParseFormat(name string) (Format, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "json", "structured":
		return FormatJSON, true
	case "csv", "delimited":
		return FormatCSV, true
	case "yaml", "yml":
		return FormatYAML, true
	default:
		return "", false
	}
}

// Value is a float that encodes NaN and infinities as JSON null instead of
// failing the whole document.
type Value float64

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	f := float64(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, f, 'g', -1, 64), nil
}

// Statistics is the flat statistics block of a structured export. Trend
// fields are omitted when fewer than two samples exist.
type Statistics struct {
	TempMean    Value  `json:"temp_mean" yaml:"temp_mean"`
	TempStd     Value  `json:"temp_std" yaml:"temp_std"`
	TempMin     Value  `json:"temp_min" yaml:"temp_min"`
	TempMax     Value  `json:"temp_max" yaml:"temp_max"`
	HumMean     Value  `json:"hum_mean" yaml:"hum_mean"`
	HumStd      Value  `json:"hum_std" yaml:"hum_std"`
	HumMin      Value  `json:"hum_min" yaml:"hum_min"`
	HumMax      Value  `json:"hum_max" yaml:"hum_max"`
	SampleCount int    `json:"sample_count" yaml:"sample_count"`
	TempTrend   *Value `json:"temp_trend,omitempty" yaml:"temp_trend,omitempty"`
	HumTrend    *Value `json:"hum_trend,omitempty" yaml:"hum_trend,omitempty"`
}

// Snapshot is everything an export needs about one sensor.
type Snapshot struct {
	SensorID     string
	Timestamps   []time.Time
	Temperatures []float64
	Humidities   []float64
	Statistics   Statistics
}

type document struct {
	SensorID     string     `json:"sensor_id" yaml:"sensor_id"`
	Timestamps   []string   `json:"timestamps" yaml:"timestamps"`
	Temperatures []Value    `json:"temperatures" yaml:"temperatures"`
	Humidities   []Value    `json:"humidities" yaml:"humidities"`
	Statistics   Statistics `json:"statistics" yaml:"statistics"`
}

// Render encodes s in format f. It returns false for an unknown format or an
// encoder failure; an empty history still renders.
func Render(s Snapshot, f Format) (string, bool) {
	switch f {
	case FormatJSON:
		b, err := json.MarshalIndent(newDocument(s), "", "  ")
		if err != nil {
			return "", false
		}
		return string(b), true
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(newDocument(s)); err != nil {
			return "", false
		}
		_ = enc.Close()
		return buf.String(), true
	case FormatCSV:
		out, err := renderCSV(s)
		if err != nil {
			return "", false
		}
		return out, true
	default:
		return "", false
	}
}

func newDocument(s Snapshot) document {
	doc := document{
		SensorID:     s.SensorID,
		Timestamps:   make([]string, len(s.Timestamps)),
		Temperatures: make([]Value, len(s.Temperatures)),
		Humidities:   make([]Value, len(s.Humidities)),
		Statistics:   s.Statistics,
	}
	for i, ts := range s.Timestamps {
		doc.Timestamps[i] = ts.Format(time.RFC3339Nano)
	}
	for i, v := range s.Temperatures {
		doc.Temperatures[i] = Value(v)
	}
	for i, v := range s.Humidities {
		doc.Humidities[i] = Value(v)
	}
	return doc
}

// renderCSV writes the header and one row per sample. Rows are joined with
// newlines and the output has no trailing newline.
func renderCSV(s Snapshot) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(strings.Split(CSVHeader, ",")); err != nil {
		return "", fmt.Errorf("write header: %w", err)
	}
	n := min(len(s.Timestamps), len(s.Temperatures), len(s.Humidities))
	for i := 0; i < n; i++ {
		rec := []string{
			s.Timestamps[i].Format(CSVTimeLayout),
			strconv.FormatFloat(s.Temperatures[i], 'f', 2, 64),
			strconv.FormatFloat(s.Humidities[i], 'f', 2, 64),
		}
		if err := w.Write(rec); err != nil {
			return "", fmt.Errorf("write record: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}
