// Package exchange holds the venue capability, its simulated implementation
// and the connectivity-gated manager in front of it.
package exchange

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"trading-pipeline/execution"
)

var (
	ErrNotConnected        = errors.New("not connected to exchange")
	ErrUnknownSymbol       = errors.New("symbol not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrOrderNotFound       = errors.New("order not found or already processed")
	ErrMissingAPIKey       = errors.New("API key is required")
	ErrInvalidSigningKey   = errors.New("invalid signing key")
	ErrInvalidOrder        = errors.New("invalid venue order")
)

// Credentials authenticate against a venue. SigningKey is an optional hex
// secp256k1 private key used to sign every order.
type Credentials struct {
	APIKey     string
	Secret     string
	Passphrase string
	SigningKey string
	Sandbox    bool
}

// VenueOrderID is scoped to one venue and unrelated to execution.OrderID.
type VenueOrderID string

type VenueOrderStatus uint8

const (
	_venue_order_status_beg VenueOrderStatus = iota
	VenueOrderOpen
	VenueOrderFilled
	VenueOrderCancelled
	_venue_order_status_end
)

func (s VenueOrderStatus) IsAvailable() bool {
	return s > _venue_order_status_beg && s < _venue_order_status_end
}

func (s VenueOrderStatus) String() string {
	switch s {
	case VenueOrderOpen:
		return "open"
	case VenueOrderFilled:
		return "filled"
	case VenueOrderCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// VenueOrder is the venue's record of an order.
type VenueOrder struct {
	ID        VenueOrderID
	Symbol    string
	Side      execution.Side
	Quantity  int
	Price     float64
	Status    VenueOrderStatus
	Timestamp time.Time
	Signature string
}

func (o VenueOrder) String() string {
	return fmt.Sprintf("Order %s | %s %d %s @ $%.2f | Status: %s",
		o.ID, sideName(o.Side), o.Quantity, o.Symbol, o.Price, o.Status)
}

// Venue is the capability set every exchange implementation provides.
// Failures also set LastError.
type Venue interface {
	Authenticate(creds Credentials) error
	MarketPrice(symbol string) (float64, error)
	SubscribeToMarketData(symbol string) error
	PlaceOrder(symbol string, side execution.Side, quantity int, price float64) (VenueOrderID, error)
	CancelOrder(id VenueOrderID) error
	OpenOrders() []VenueOrder
	AccountBalance() (map[string]float64, error)
	IsConnected() bool
	LastError() string
}

// sideName renders a side the way venues spell it on the wire.
func sideName(side execution.Side) string {
	return strings.ToLower(side.String())
}
