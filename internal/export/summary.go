package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// SummaryCSVHeader is the header row of a delimited sensor summary.
const SummaryCSVHeader = "sensor_id,name,sample_count,temp_mean,temp_std,temp_min,temp_max,hum_mean,hum_std,hum_min,hum_max"

// SensorSummary is one sensor's statistics without its history.
type SensorSummary struct {
	SensorID   string     `json:"sensor_id" yaml:"sensor_id"`
	Name       string     `json:"name" yaml:"name"`
	Statistics Statistics `json:"statistics" yaml:"statistics"`
}

// RenderSummaries encodes a list of sensor summaries in format f, in the
// order given. It returns false for an unknown format.
func RenderSummaries(rows []SensorSummary, f Format) (string, bool) {
	if rows == nil {
		rows = []SensorSummary{}
	}
	switch f {
	case FormatJSON:
		b, err := json.MarshalIndent(rows, "", "  ")
		if err != nil {
			return "", false
		}
		return string(b), true
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(rows); err != nil {
			return "", false
		}
		_ = enc.Close()
		return buf.String(), true
	case FormatCSV:
		var buf bytes.Buffer
		w := csv.NewWriter(&buf)
		_ = w.Write(strings.Split(SummaryCSVHeader, ","))
		for _, r := range rows {
			s := r.Statistics
			_ = w.Write([]string{
				r.SensorID,
				r.Name,
				strconv.Itoa(s.SampleCount),
				formatValue(s.TempMean), formatValue(s.TempStd), formatValue(s.TempMin), formatValue(s.TempMax),
				formatValue(s.HumMean), formatValue(s.HumStd), formatValue(s.HumMin), formatValue(s.HumMax),
			})
		}
		w.Flush()
		if w.Error() != nil {
			return "", false
		}
		return strings.TrimRight(buf.String(), "\n"), true
	default:
		return "", false
	}
}

func formatValue(v Value) string {
	return strconv.FormatFloat(float64(v), 'f', 2, 64)
}
