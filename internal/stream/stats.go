package stream

import (
	"github.com/montanaflynn/stats"
)

// MetricStats summarises one metric over a window.
type MetricStats struct {
	Mean  float64
	Std   float64 // population standard deviation
	Min   float64
	Max   float64
	Trend float64 // least-squares slope per sample; zero unless HasTrend
}

// Statistics is recomputed from the whole window on every update.
type Statistics struct {
	Count       int
	HasTrend    bool // Count > 1
	Temperature MetricStats
	Humidity    MetricStats
}

// ComputeStatistics derives Statistics from a history snapshot. It returns
// false for an empty history.
func ComputeStatistics(h History) (Statistics, bool) {
	n := h.Len()
	if n == 0 {
		return Statistics{}, false
	}

	s := Statistics{
		Count:       n,
		HasTrend:    n > 1,
		Temperature: summarise(h.Temperatures),
		Humidity:    summarise(h.Humidities),
	}
	if s.HasTrend {
		s.Temperature.Trend = slope(h.Temperatures)
		s.Humidity.Trend = slope(h.Humidities)
	}
	return s, true
}

// summarise computes mean, std, min and max. The stats functions only fail
// on empty input, which callers rule out.
func summarise(values []float64) MetricStats {
	mean, _ := stats.Mean(values)
	std, _ := stats.StandardDeviationPopulation(values)
	lo, _ := stats.Min(values)
	hi, _ := stats.Max(values)
	return MetricStats{Mean: mean, Std: std, Min: lo, Max: hi}
}

// slope fits value = a*index + b by least squares and returns a.
func slope(values []float64) float64 {
	index := make(stats.Float64Data, len(values))
	for i := range index {
		index[i] = float64(i)
	}

	cov, err := stats.CovariancePopulation(index, values)
	if err != nil {
		return 0
	}
	variance, err := stats.PopulationVariance(index)
	if err != nil || variance == 0 {
		return 0
	}
	return cov / variance
}
