// Package portfolio turns holdings into weights and weighted return series.
package portfolio

import (
	"github.com/shopspring/decimal"

	"github.com/quantfold/analytics/internal/timeseries"
	"github.com/quantfold/analytics/pkg/errs"
)

// Position is a single holding. Quantity and Price stay in decimal until
// the final weight division so valuations do not accumulate float error.
type Position struct {
	Symbol   string          `json:"symbol"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// Value returns quantity times price.
func (p Position) Value() decimal.Decimal {
	return p.Quantity.Mul(p.Price)
}

// Weights values each position and normalises by total portfolio value.
// Short positions are allowed; the total must be nonzero.
func Weights(positions []Position) (map[string]float64, error) {
	if len(positions) == 0 {
		return nil, errs.InvalidInput("portfolio: no positions supplied")
	}

	total := decimal.Zero
	values := make(map[string]decimal.Decimal, len(positions))
	for _, p := range positions {
		if p.Symbol == "" {
			return nil, errs.InvalidInput("portfolio: position with empty symbol")
		}
		if _, dup := values[p.Symbol]; dup {
			return nil, errs.InvalidInput("portfolio: duplicate symbol %q", p.Symbol)
		}
		v := p.Value()
		values[p.Symbol] = v
		total = total.Add(v)
	}
	if total.IsZero() {
		return nil, errs.InvalidInput("portfolio: total value is zero, cannot derive weights")
	}

	weights := make(map[string]float64, len(values))
	for symbol, v := range values {
		w, _ := v.Div(total).Float64()
		weights[symbol] = w
	}
	return weights, nil
}

// WeightedReturns combines per-asset return series into a single portfolio
// return series under the given weights. All series must share the same
// timestamp index; symbols without a series are an error.
func WeightedReturns(weights map[string]float64, assetReturns map[string]*timeseries.TimeSeries) (*timeseries.TimeSeries, error) {
	if len(weights) == 0 {
		return nil, errs.InvalidInput("portfolio: no weights supplied")
	}

	var base *timeseries.TimeSeries
	for symbol := range weights {
		s, ok := assetReturns[symbol]
		if !ok || s == nil {
			return nil, errs.InvalidInput("portfolio: no return series for symbol %q", symbol)
		}
		if base == nil {
			base = s
			continue
		}
		if s.Len() != base.Len() {
			return nil, errs.InvalidInput("portfolio: return series lengths differ (%q has %d, %q has %d)",
				base.Name(), base.Len(), symbol, s.Len())
		}
	}
	if base.Empty() {
		return nil, errs.InsufficientData("portfolio: return series are empty")
	}

	out := make([]float64, base.Len())
	for symbol, w := range weights {
		vals := assetReturns[symbol].Values()
		for i, r := range vals {
			out[i] += w * r
		}
	}
	return timeseries.New("portfolio", base.Times(), out)
}
