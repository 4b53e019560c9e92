// Package rebalance computes the trades needed to pull a portfolio back to
// its target weights.
package rebalance

import (
	"github.com/fundpilot/trading-backend/internal/strategy"
	"github.com/fundpilot/trading-backend/pkg/types"
	"github.com/shopspring/decimal"
)

// Order is one leg of a rebalance plan.
type Order struct {
	FundCode string          `json:"fundCode"`
	Type     types.TradeType `json:"type"`
	Amount   decimal.Decimal `json:"amount"`
}

// ComputeOrders compares current weights against the targets and emits one
// order per fund whose absolute deviation reaches the threshold. A target
// fund missing from the portfolio counts as weight zero, so it produces a
// buy for its full target slice. Deviations inside the threshold band emit
// nothing, which keeps rebalancing from churning on noise.
func ComputeOrders(current map[string]decimal.Decimal, targets []strategy.TargetAllocation, totalValue, threshold decimal.Decimal) []Order {
	if !totalValue.IsPositive() {
		return nil
	}

	var orders []Order
	for _, target := range targets {
		weight := current[target.FundCode]
		deviation := weight.Sub(target.TargetWeight)
		if deviation.Abs().LessThan(threshold) {
			continue
		}

		amount := deviation.Abs().Mul(totalValue)
		order := Order{FundCode: target.FundCode, Amount: amount}
		if deviation.IsPositive() {
			order.Type = types.TradeTypeSell
		} else {
			order.Type = types.TradeTypeBuy
		}
		orders = append(orders, order)
	}
	return orders
}

// CurrentWeights derives per-fund weights from market values. It returns the
// weight map and the portfolio total; an empty or zero-value portfolio
// yields a nil map.
func CurrentWeights(positions []*types.Position) (map[string]decimal.Decimal, decimal.Decimal) {
	total := decimal.Zero
	for _, pos := range positions {
		total = total.Add(pos.MarketValue)
	}
	if !total.IsPositive() {
		return nil, decimal.Zero
	}

	weights := make(map[string]decimal.Decimal, len(positions))
	for _, pos := range positions {
		weights[pos.FundCode] = pos.MarketValue.Div(total)
	}
	return weights, total
}
