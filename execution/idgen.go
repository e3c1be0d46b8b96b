package execution

import "sync/atomic"

// IDGenerator hands out order ids starting at 1.
type IDGenerator struct {
	id int64
}

func NewIDGenerator() *IDGenerator {
	return &IDGenerator{}
}

func (g *IDGenerator) Next() OrderID {
	return OrderID(atomic.AddInt64(&g.id, 1))
}
