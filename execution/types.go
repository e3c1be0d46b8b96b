package execution

import (
	"fmt"
	"time"
)

// OrderID identifies an Order. It is unrelated to any venue order id.
type OrderID int64

// Side is the direction of an order.
type Side uint8

const (
	_side_beg Side = iota
	SideBuy
	SideSell
	_side_end
)

func (s Side) IsAvailable() bool {
	return s > _side_beg && s < _side_end
}

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "BUY"
	case SideSell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// Sign returns +1 for buys and -1 for sells.
func (s Side) Sign() int {
	switch s {
	case SideBuy:
		return 1
	case SideSell:
		return -1
	default:
		return 0
	}
}

// OrderStatus is the lifecycle state of an order. Filled and Cancelled are terminal.
type OrderStatus uint8

const (
	_order_status_beg OrderStatus = iota
	StatusPending
	StatusFilled
	StatusCancelled
	_order_status_end
)

func (s OrderStatus) IsAvailable() bool {
	return s > _order_status_beg && s < _order_status_end
}

func (s OrderStatus) IsTerminal() bool {
	return s == StatusFilled || s == StatusCancelled
}

func (s OrderStatus) String() string {
	switch s {
	case StatusPending:
		return "PENDING"
	case StatusFilled:
		return "FILLED"
	case StatusCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// Order is a local order. Only its Status changes after creation.
type Order struct {
	ID        OrderID
	Symbol    string
	Side      Side
	Quantity  int
	Price     float64
	Status    OrderStatus
	CreatedAt time.Time
}

// Notional is quantity times the order's own price.
func (o Order) Notional() float64 {
	return float64(o.Quantity) * o.Price
}

func (o Order) String() string {
	return fmt.Sprintf("Order #%d | %s | %s | Qty: %d | Price: $%.2f | Status: %s",
		o.ID, o.Symbol, o.Side, o.Quantity, o.Price, o.Status)
}
