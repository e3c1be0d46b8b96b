package bot

import (
	"fmt"
	"sort"
	"time"

	"trading-pipeline/indicators"
	"trading-pipeline/marketdata"
)

// Operation names a timed pipeline stage.
type Operation string

const (
	OpDataLoad         Operation = "data_load"
	OpSignalGeneration Operation = "signal_generation"
	OpOrderPlacement   Operation = "order_placement"
)

// maxLatencySamples bounds the samples kept per operation.
const maxLatencySamples = 1000

// LatencyStats summarizes the recent samples of one operation, in milliseconds.
type LatencyStats struct {
	Min        float64 `json:"min_ms"`
	Max        float64 `json:"max_ms"`
	Average    float64 `json:"average_ms"`
	P50        float64 `json:"p50_ms"`
	P95        float64 `json:"p95_ms"`
	SampleSize int64   `json:"sample_size"`
}

type LatencyMetrics struct {
	DataLoad         LatencyStats `json:"data_load"`
	SignalGeneration LatencyStats `json:"signal_generation"`
	OrderPlacement   LatencyStats `json:"order_placement"`
}

func newLatencyWindows() map[Operation]*indicators.RollingWindow {
	return map[Operation]*indicators.RollingWindow{
		OpDataLoad:         indicators.NewRollingWindow(maxLatencySamples),
		OpSignalGeneration: indicators.NewRollingWindow(maxLatencySamples),
		OpOrderPlacement:   indicators.NewRollingWindow(maxLatencySamples),
	}
}

// LoadData runs load and records how long it took.
func (b *TradingBot) LoadData(load func() (marketdata.Series, error)) (marketdata.Series, error) {
	defer b.recordLatency(OpDataLoad, time.Now())
	return load()
}

// Latency returns timing statistics for each pipeline stage.
func (b *TradingBot) Latency() LatencyMetrics {
	return LatencyMetrics{
		DataLoad:         b.calculateLatencyStats(OpDataLoad),
		SignalGeneration: b.calculateLatencyStats(OpSignalGeneration),
		OrderPlacement:   b.calculateLatencyStats(OpOrderPlacement),
	}
}

// recordLatency is meant to be deferred with the operation's start time.
// The window map is fixed at construction, so only the windows lock.
func (b *TradingBot) recordLatency(op Operation, startTime time.Time) {
	window, ok := b.latencies[op]
	if !ok {
		return
	}
	window.Add(float64(time.Since(startTime).Nanoseconds()) / 1e6)
}

func (b *TradingBot) calculateLatencyStats(op Operation) LatencyStats {
	window, ok := b.latencies[op]
	if !ok {
		return LatencyStats{}
	}
	sorted := window.GetValues()
	if len(sorted) == 0 {
		return LatencyStats{}
	}
	sort.Float64s(sorted)

	var sum float64
	for _, latency := range sorted {
		sum += latency
	}

	return LatencyStats{
		Min:        sorted[0],
		Max:        sorted[len(sorted)-1],
		Average:    sum / float64(len(sorted)),
		P50:        sorted[int(float64(len(sorted))*0.5)],
		P95:        sorted[int(float64(len(sorted))*0.95)],
		SampleSize: int64(len(sorted)),
	}
}

func (s LatencyStats) String() string {
	if s.SampleSize == 0 {
		return "no samples"
	}
	return fmt.Sprintf("avg %.3f | p50 %.3f | p95 %.3f | max %.3f (n=%d)",
		s.Average, s.P50, s.P95, s.Max, s.SampleSize)
}
