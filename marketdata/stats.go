package marketdata

// Summary aggregates the observations of one symbol.
type Summary struct {
	Symbol       string
	Count        int
	AveragePrice float64
	HighestPrice float64
	LowestPrice  float64
	TotalVolume  int
}

// Stats summarizes the observations for symbol. All fields are zero when the symbol is absent.
func Stats(series Series, symbol string) Summary {
	sum := Summary{Symbol: symbol}
	var total float64

	for _, p := range series.Filter(symbol) {
		if sum.Count == 0 || p.Price > sum.HighestPrice {
			sum.HighestPrice = p.Price
		}
		if sum.Count == 0 || p.Price < sum.LowestPrice {
			sum.LowestPrice = p.Price
		}
		total += p.Price
		sum.TotalVolume += p.Volume
		sum.Count++
	}

	if sum.Count > 0 {
		sum.AveragePrice = total / float64(sum.Count)
	}
	return sum
}
