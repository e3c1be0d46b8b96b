package exchange

import (
	"testing"

	"trading-pipeline/execution"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// countingVenue records forwarded calls.
type countingVenue struct {
	*SimulatedExchange
	calls int
}

func (v *countingVenue) MarketPrice(symbol string) (float64, error) {
	v.calls++
	return v.SimulatedExchange.MarketPrice(symbol)
}

func (v *countingVenue) PlaceOrder(symbol string, side execution.Side, quantity int, price float64) (VenueOrderID, error) {
	v.calls++
	return v.SimulatedExchange.PlaceOrder(symbol, side, quantity, price)
}

func (v *countingVenue) AccountBalance() (map[string]float64, error) {
	v.calls++
	return v.SimulatedExchange.AccountBalance()
}

func TestManagerFailsFastWhenDisconnected(t *testing.T) {
	venue := &countingVenue{SimulatedExchange: NewSimulatedExchange(DefaultConfig(), nil)}
	m := NewManager(venue, zaptest.NewLogger(t))

	_, err := m.LivePrice("AAPL")
	require.ErrorIs(t, err, ErrNotConnected)
	_, err = m.ExecuteLiveOrder("AAPL", execution.SideBuy, 1, 150)
	require.ErrorIs(t, err, ErrNotConnected)
	_, err = m.AccountBalance()
	require.ErrorIs(t, err, ErrNotConnected)
	_, err = m.LiveOrders()
	require.ErrorIs(t, err, ErrNotConnected)
	require.ErrorIs(t, m.Subscribe("AAPL"), ErrNotConnected)
	require.ErrorIs(t, m.CancelLiveOrder("SIM_1"), ErrNotConnected)

	assert.Zero(t, venue.calls)
	assert.Equal(t, "Disconnected from Exchange", m.Status())
}

func TestManagerConnectAndDisconnect(t *testing.T) {
	venue := &countingVenue{SimulatedExchange: NewSimulatedExchange(DefaultConfig(), nil)}
	m := NewManager(venue, nil)

	err := m.Connect(Credentials{})
	require.ErrorIs(t, err, ErrMissingAPIKey)
	assert.False(t, m.IsConnected())
	assert.Equal(t, "API key is required", m.LastError())

	require.NoError(t, m.Connect(Credentials{APIKey: "key"}))
	assert.True(t, m.IsConnected())
	assert.Equal(t, "Connected to Exchange (Live Trading Mode)", m.Status())

	m.Disconnect()
	assert.False(t, m.IsConnected())
	assert.True(t, venue.IsConnected())

	_, err = m.LivePrice("AAPL")
	require.ErrorIs(t, err, ErrNotConnected)
	assert.Zero(t, venue.calls)
}

func TestManagerForwardsWhenConnected(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Seed = 3
	m := NewManager(NewSimulatedExchange(cfg, nil), nil)
	require.NoError(t, m.Connect(Credentials{APIKey: "key"}))

	price, err := m.LivePrice("AAPL")
	require.NoError(t, err)
	assert.InDelta(t, 150.25, price, 0.5+1e-9)

	id, err := m.ExecuteLiveOrder("AAPL", execution.SideBuy, 10, 100)
	require.NoError(t, err)
	assert.Equal(t, VenueOrderID("SIM_1"), id)

	_, err = m.ExecuteLiveOrder("AAPL", execution.SideBuy, 1000, 100)
	require.ErrorIs(t, err, ErrInsufficientBalance)

	orders, err := m.LiveOrders()
	require.NoError(t, err)
	assert.Empty(t, orders)

	require.NoError(t, m.Subscribe("AAPL"))
}

func TestManagerAccountBalanceHidesDust(t *testing.T) {
	m := NewManager(NewSimulatedExchange(DefaultConfig(), nil), nil)
	require.NoError(t, m.Connect(Credentials{APIKey: "key"}))

	balances, err := m.AccountBalance()
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"USD": 10000}, balances)

	_, err = m.ExecuteLiveOrder("AAPL", execution.SideBuy, 2, 150)
	require.NoError(t, err)

	balances, err = m.AccountBalance()
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"USD": 9700, "AAPL": 2}, balances)
}
