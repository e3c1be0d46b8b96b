package bot

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"trading-pipeline/execution"
	"trading-pipeline/marketdata"
	"trading-pipeline/risk"

	"github.com/shopspring/decimal"
)

// Report is a snapshot of the session.
type Report struct {
	Strategy      string
	Runtime       time.Duration
	Stats         Stats
	Latency       LatencyMetrics
	RiskLimits    risk.Config
	LastPrices    marketdata.Series
	Orders        []execution.Order
	Positions     []risk.Position
	Exposure      decimal.Decimal
	UnrealizedPnL decimal.Decimal
	Balances      map[string]decimal.Decimal
	VenueStatus   string
}

// Report collects the session state. Balances are omitted when the venue is
// unreachable.
func (b *TradingBot) Report() Report {
	r := Report{
		Strategy:      b.strategy.Name(),
		Runtime:       time.Since(b.startTime),
		Stats:         b.Stats(),
		Latency:       b.Latency(),
		RiskLimits:    b.risk.Config(),
		LastPrices:    b.prices.Snapshot(),
		Orders:        b.orders.Orders(),
		Positions:     b.risk.Positions(),
		Exposure:      decimal.NewFromFloat(b.risk.TotalExposure()),
		UnrealizedPnL: decimal.NewFromFloat(b.risk.TotalUnrealizedPnL()),
		Balances:      make(map[string]decimal.Decimal),
		VenueStatus:   b.exchange.Status(),
	}
	sort.Slice(r.LastPrices, func(i, j int) bool {
		return r.LastPrices[i].Symbol < r.LastPrices[j].Symbol
	})
	if balances, err := b.exchange.AccountBalance(); err == nil {
		for symbol, amount := range balances {
			r.Balances[symbol] = decimal.NewFromFloat(amount)
		}
	}
	return r
}

// SuccessRate is executed orders over attempted orders.
func (r Report) SuccessRate() decimal.Decimal {
	attempted := r.Stats.OrdersExecuted + r.Stats.RiskRejections + r.Stats.VenueRejections
	if attempted == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(r.Stats.OrdersExecuted).
		Div(decimal.NewFromInt(attempted)).
		Mul(decimal.NewFromInt(100))
}

func (r Report) String() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "\nFINAL TRADING REPORT\n")
	fmt.Fprintf(&sb, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
	fmt.Fprintf(&sb, "Strategy: %s\n", r.Strategy)
	fmt.Fprintf(&sb, "Runtime: %v\n", r.Runtime.Truncate(time.Millisecond))
	fmt.Fprintf(&sb, "Exchange: %s\n\n", r.VenueStatus)

	fmt.Fprintf(&sb, "Pipeline:\n")
	fmt.Fprintf(&sb, "├─ Ticks: %d\n", r.Stats.Ticks)
	fmt.Fprintf(&sb, "├─ Signals: %d\n", r.Stats.Signals)
	fmt.Fprintf(&sb, "├─ Orders Executed: %d\n", r.Stats.OrdersExecuted)
	fmt.Fprintf(&sb, "├─ Rejected by Risk: %d\n", r.Stats.RiskRejections)
	fmt.Fprintf(&sb, "├─ Rejected by Venue: %d\n", r.Stats.VenueRejections)
	fmt.Fprintf(&sb, "├─ Skipped Sells: %d\n", r.Stats.SkippedSells)
	fmt.Fprintf(&sb, "└─ Success Rate: %s%%\n\n", r.SuccessRate().StringFixed(1))

	fmt.Fprintf(&sb, "Latency (ms):\n")
	fmt.Fprintf(&sb, "├─ Data Load: %s\n", r.Latency.DataLoad)
	fmt.Fprintf(&sb, "├─ Signal Generation: %s\n", r.Latency.SignalGeneration)
	fmt.Fprintf(&sb, "└─ Order Placement: %s\n\n", r.Latency.OrderPlacement)

	fmt.Fprintf(&sb, "Risk Limits: position $%.2f | exposure $%.2f\n",
		r.RiskLimits.MaxPositionSize, r.RiskLimits.MaxTotalExposure)
	if len(r.LastPrices) > 0 {
		fmt.Fprintf(&sb, "Last Prices:\n")
		for i, p := range r.LastPrices {
			fmt.Fprintf(&sb, "%s %s: $%.2f\n", branch(i, len(r.LastPrices)), p.Symbol, p.Price)
		}
	}
	fmt.Fprintf(&sb, "\n")

	fmt.Fprintf(&sb, "Positions:\n")
	if len(r.Positions) == 0 {
		fmt.Fprintf(&sb, "└─ No open positions\n")
	}
	for i, pos := range r.Positions {
		fmt.Fprintf(&sb, "%s %s\n", branch(i, len(r.Positions)), pos)
	}
	fmt.Fprintf(&sb, "Total Exposure: $%s\n", r.Exposure.StringFixed(2))
	fmt.Fprintf(&sb, "Unrealized P&L: $%s\n\n", r.UnrealizedPnL.StringFixed(2))

	if len(r.Balances) > 0 {
		symbols := make([]string, 0, len(r.Balances))
		for symbol := range r.Balances {
			symbols = append(symbols, symbol)
		}
		sort.Strings(symbols)

		fmt.Fprintf(&sb, "Account Balance:\n")
		for i, symbol := range symbols {
			fmt.Fprintf(&sb, "%s %s: %s\n", branch(i, len(symbols)), symbol, r.Balances[symbol].StringFixed(4))
		}
		fmt.Fprintf(&sb, "\n")
	}

	fmt.Fprintf(&sb, "Orders:\n")
	if len(r.Orders) == 0 {
		fmt.Fprintf(&sb, "└─ No orders placed\n")
	}
	for i, o := range r.Orders {
		fmt.Fprintf(&sb, "%s %s\n", branch(i, len(r.Orders)), o)
	}
	fmt.Fprintf(&sb, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	return sb.String()
}

func branch(i, n int) string {
	if i == n-1 {
		return "└─"
	}
	return "├─"
}
