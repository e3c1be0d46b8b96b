package execution

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrDuplicateOrder    = errors.New("order already exists")
	ErrInvalidTransition = errors.New("invalid order state transition")
	ErrInvalidOrder      = errors.New("invalid order")
)

// OrderManager owns order identity and lifecycle. Orders are kept in placement
// order and never removed. It does not touch positions; see risk.Manager.
type OrderManager struct {
	ids    *IDGenerator
	logger *zap.Logger
	now    func() time.Time

	mu     sync.RWMutex
	orders []*Order
	index  map[OrderID]int
}

func NewOrderManager(logger *zap.Logger) *OrderManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderManager{
		ids:    NewIDGenerator(),
		logger: logger.Named("orders"),
		now:    time.Now,
		orders: make([]*Order, 0),
		index:  make(map[OrderID]int),
	}
}

// NewOrder builds a pending order with the next id without tracking it. Every
// call consumes an id, including orders built only for a risk check.
func (om *OrderManager) NewOrder(symbol string, side Side, quantity int, price float64) *Order {
	return &Order{
		ID:        om.ids.Next(),
		Symbol:    symbol,
		Side:      side,
		Quantity:  quantity,
		Price:     price,
		Status:    StatusPending,
		CreatedAt: om.now(),
	}
}

// PlaceOrder creates a pending order and tracks it.
func (om *OrderManager) PlaceOrder(symbol string, side Side, quantity int, price float64) (Order, error) {
	order := om.NewOrder(symbol, side, quantity, price)
	if err := om.Add(order); err != nil {
		return Order{}, err
	}
	return *order, nil
}

// Add tracks a copy of an order built by NewOrder, typically once it has passed risk checks.
func (om *OrderManager) Add(order *Order) error {
	if err := validate(order); err != nil {
		return err
	}

	om.mu.Lock()
	defer om.mu.Unlock()

	if _, exists := om.index[order.ID]; exists {
		return fmt.Errorf("%w: #%d", ErrDuplicateOrder, order.ID)
	}
	tracked := *order
	om.index[order.ID] = len(om.orders)
	om.orders = append(om.orders, &tracked)

	om.logger.Info("Order placed",
		zap.Int64("id", int64(order.ID)),
		zap.String("symbol", order.Symbol),
		zap.Stringer("side", order.Side),
		zap.Int("quantity", order.Quantity),
		zap.Float64("price", order.Price))
	return nil
}

// CancelOrder moves a pending order to cancelled.
func (om *OrderManager) CancelOrder(id OrderID) error {
	return om.transition(id, StatusCancelled)
}

// MarkFilled moves a pending order to filled. Fills are always complete.
func (om *OrderManager) MarkFilled(id OrderID) error {
	return om.transition(id, StatusFilled)
}

func (om *OrderManager) transition(id OrderID, next OrderStatus) error {
	om.mu.Lock()
	defer om.mu.Unlock()

	i, ok := om.index[id]
	if !ok {
		om.logger.Warn("Order not found", zap.Int64("id", int64(id)))
		return fmt.Errorf("%w: #%d", ErrOrderNotFound, id)
	}

	order := om.orders[i]
	if order.Status != StatusPending {
		om.logger.Warn("Order already processed",
			zap.Int64("id", int64(id)),
			zap.Stringer("status", order.Status))
		return fmt.Errorf("%w: #%d %s -> %s", ErrInvalidTransition, id, order.Status, next)
	}

	order.Status = next
	om.logger.Info("Order updated",
		zap.Int64("id", int64(id)),
		zap.Stringer("status", next))
	return nil
}

// Order returns a copy of the tracked order with id.
func (om *OrderManager) Order(id OrderID) (Order, bool) {
	om.mu.RLock()
	defer om.mu.RUnlock()

	i, ok := om.index[id]
	if !ok {
		return Order{}, false
	}
	return *om.orders[i], true
}

// Orders returns copies of all tracked orders in placement order.
func (om *OrderManager) Orders() []Order {
	return om.filter(func(*Order) bool { return true })
}

// OrdersForSymbol returns copies of the tracked orders for symbol.
func (om *OrderManager) OrdersForSymbol(symbol string) []Order {
	return om.filter(func(o *Order) bool { return o.Symbol == symbol })
}

// PendingOrders returns copies of the orders that have not reached a terminal state.
func (om *OrderManager) PendingOrders() []Order {
	return om.filter(func(o *Order) bool { return o.Status == StatusPending })
}

func (om *OrderManager) filter(keep func(*Order) bool) []Order {
	om.mu.RLock()
	defer om.mu.RUnlock()

	out := make([]Order, 0, len(om.orders))
	for _, o := range om.orders {
		if keep(o) {
			out = append(out, *o)
		}
	}
	return out
}

func validate(order *Order) error {
	switch {
	case order == nil:
		return fmt.Errorf("%w: nil", ErrInvalidOrder)
	case order.ID <= 0:
		return fmt.Errorf("%w: missing id", ErrInvalidOrder)
	case order.Symbol == "":
		return fmt.Errorf("%w: missing symbol", ErrInvalidOrder)
	case !order.Side.IsAvailable():
		return fmt.Errorf("%w: unknown side", ErrInvalidOrder)
	case order.Quantity <= 0:
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidOrder)
	case order.Price < 0:
		return fmt.Errorf("%w: price must not be negative", ErrInvalidOrder)
	case order.Status != StatusPending:
		return fmt.Errorf("%w: new orders must be pending", ErrInvalidOrder)
	}
	return nil
}
