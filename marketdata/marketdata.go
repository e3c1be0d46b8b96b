// Package marketdata provides the price observations consumed by the trading pipeline.
package marketdata

import (
	"sync"
	"time"
)

// PricePoint is a single observation read from a feed. It is never mutated after it is read.
type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Volume    int       `json:"volume"`
}

// Series is a materialized, ordered sequence of observations. Feed order is
// treated as chronological; nothing is sorted or deduplicated.
type Series []PricePoint

// Prices returns the prices observed for symbol, in feed order.
func (s Series) Prices(symbol string) []float64 {
	prices := make([]float64, 0, len(s))
	for _, p := range s {
		if p.Symbol == symbol {
			prices = append(prices, p.Price)
		}
	}
	return prices
}

// Filter returns the subsequence for symbol.
func (s Series) Filter(symbol string) Series {
	out := make(Series, 0, len(s))
	for _, p := range s {
		if p.Symbol == symbol {
			out = append(out, p)
		}
	}
	return out
}

// Symbols returns the distinct symbols in order of first appearance.
func (s Series) Symbols() []string {
	seen := make(map[string]bool)
	symbols := make([]string, 0)
	for _, p := range s {
		if seen[p.Symbol] {
			continue
		}
		seen[p.Symbol] = true
		symbols = append(symbols, p.Symbol)
	}
	return symbols
}

// LatestPrices scans the series and keeps the last price seen for each symbol.
func (s Series) LatestPrices() map[string]float64 {
	latest := make(map[string]float64)
	for _, p := range s {
		latest[p.Symbol] = p.Price
	}
	return latest
}

// PriceCache stores the latest observation per symbol with thread safety.
type PriceCache struct {
	mu     sync.RWMutex
	prices map[string]PricePoint
}

// NewPriceCache creates an empty cache.
func NewPriceCache() *PriceCache {
	return &PriceCache{prices: make(map[string]PricePoint)}
}

// Update records p if it is the first or a newer-or-equal observation for its symbol.
// Points without a timestamp always replace the cached value.
func (c *PriceCache) Update(p PricePoint) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if prev, ok := c.prices[p.Symbol]; ok && !p.Timestamp.IsZero() && p.Timestamp.Before(prev.Timestamp) {
		return
	}
	c.prices[p.Symbol] = p
}

// Latest returns the cached observation for symbol.
func (c *PriceCache) Latest(symbol string) (PricePoint, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.prices[symbol]
	return p, ok
}

// Snapshot returns the cached observations as a series, one point per symbol.
func (c *PriceCache) Snapshot() Series {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(Series, 0, len(c.prices))
	for _, p := range c.prices {
		out = append(out, p)
	}
	return out
}
