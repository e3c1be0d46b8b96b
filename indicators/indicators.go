// Package indicators holds the window math used by strategies and the bot's
// latency tracking.
package indicators

import (
	"errors"
	"sync"
)

var (
	ErrInvalidPeriod    = errors.New("period must be positive")
	ErrInsufficientData = errors.New("insufficient data for moving average")
)

// MovingAverage returns the simple moving average of the last period prices.
// It returns 0.0 when fewer than period prices exist or period is not positive;
// use SimpleMovingAverage when that case must be told apart from a real zero.
func MovingAverage(prices []float64, period int) float64 {
	avg, err := SimpleMovingAverage(prices, period)
	if err != nil {
		return 0.0
	}
	return avg
}

// SimpleMovingAverage is the boundary-checked form of MovingAverage.
func SimpleMovingAverage(prices []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, ErrInvalidPeriod
	}
	if len(prices) < period {
		return 0, ErrInsufficientData
	}

	sum := 0.0
	for _, p := range prices[len(prices)-period:] {
		sum += p
	}
	return sum / float64(period), nil
}

// RollingWindow keeps the most recent size values.
type RollingWindow struct {
	values   []float64
	position int
	size     int
	full     bool
	mu       sync.RWMutex
}

// NewRollingWindow allocates a window of size values. A non-positive size holds one value.
func NewRollingWindow(size int) *RollingWindow {
	if size <= 0 {
		size = 1
	}
	return &RollingWindow{
		values: make([]float64, size),
		size:   size,
	}
}

func (rw *RollingWindow) Add(value float64) {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	rw.values[rw.position] = value
	rw.position = (rw.position + 1) % rw.size

	if !rw.full && rw.position == 0 {
		rw.full = true
	}
}

// GetValues returns a copy of the window contents, oldest first.
func (rw *RollingWindow) GetValues() []float64 {
	rw.mu.RLock()
	defer rw.mu.RUnlock()

	if rw.full {
		values := make([]float64, 0, rw.size)
		for i := 0; i < rw.size; i++ {
			values = append(values, rw.values[(rw.position+i)%rw.size])
		}
		return values
	}
	values := make([]float64, rw.position)
	copy(values, rw.values[:rw.position])
	return values
}
