package export

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSummaries() []SensorSummary {
	return []SensorSummary{
		{SensorID: "sensor_40", Name: "Sensor_40", Statistics: Statistics{
			TempMean: 22.5, TempStd: 0.5, TempMin: 22, TempMax: 23,
			HumMean: 45, HumStd: 1, HumMin: 44, HumMax: 46, SampleCount: 2,
		}},
		{SensorID: "sensor_41", Name: "Sensor_41", Statistics: Statistics{TempMean: 20, HumMean: 50, SampleCount: 1}},
	}
}

func TestRenderSummaries_CSV(t *testing.T) {
	out, ok := RenderSummaries(sampleSummaries(), FormatCSV)
	require.True(t, ok)
	assert.Equal(t, SummaryCSVHeader+"\n"+
		"sensor_40,Sensor_40,2,22.50,0.50,22.00,23.00,45.00,1.00,44.00,46.00\n"+
		"sensor_41,Sensor_41,1,20.00,0.00,0.00,0.00,50.00,0.00,0.00,0.00", out)
}

func TestRenderSummaries_JSON(t *testing.T) {
	out, ok := RenderSummaries(sampleSummaries(), FormatJSON)
	require.True(t, ok)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, "sensor_40", decoded[0]["sensor_id"])
	stats := decoded[0]["statistics"].(map[string]any)
	assert.Equal(t, 22.5, stats["temp_mean"])
	assert.NotContains(t, stats, "temp_trend")
}

func TestRenderSummaries_EmptyAndUnknown(t *testing.T) {
	out, ok := RenderSummaries(nil, FormatJSON)
	require.True(t, ok)
	assert.Equal(t, "[]", out)

	out, ok = RenderSummaries(nil, FormatYAML)
	require.True(t, ok)
	assert.Equal(t, "[]\n", out)

	_, ok = RenderSummaries(sampleSummaries(), Format("xml"))
	assert.False(t, ok)
}
