// Package position maintains fund positions: applying confirmed trades to
// the weighted-average cost basis and refreshing valuations against the
// latest NAV.
package position

import (
	"errors"
	"time"

	"github.com/fundpilot/trading-backend/pkg/types"
	"github.com/shopspring/decimal"
)

// ErrPositionNotFound is returned when a confirmed sell references a fund
// the owner holds no position in. That means the books are inconsistent,
// so callers must not swallow it.
var ErrPositionNotFound = errors.New("position not found")

// shareEpsilon absorbs decimal dust after a full liquidation.
var shareEpsilon = decimal.New(1, -6)

// ApplyBuy folds a confirmed buy into the position at weighted-average cost.
func ApplyBuy(pos *types.Position, shares, price decimal.Decimal, at time.Time) {
	cost := shares.Mul(price)
	pos.Shares = pos.Shares.Add(shares)
	pos.CostBasis = pos.CostBasis.Add(cost)
	if pos.Shares.IsPositive() {
		pos.AvgPrice = pos.CostBasis.Div(pos.Shares)
	}
	pos.UpdatedAt = at
}

// ApplySell removes shares from the position, taking cost out at the average
// price so the remaining average is unchanged. Residual dust below the share
// epsilon is clamped to an exact zero.
func ApplySell(pos *types.Position, shares decimal.Decimal, at time.Time) {
	cost := shares.Mul(pos.AvgPrice)
	pos.Shares = pos.Shares.Sub(shares)
	pos.CostBasis = pos.CostBasis.Sub(cost)
	if pos.Shares.Abs().LessThan(shareEpsilon) {
		pos.Shares = decimal.Zero
		pos.CostBasis = decimal.Zero
	}
	pos.UpdatedAt = at
}

// Refresh revalues the position at the given NAV. The profit rate is zero
// when there is no cost basis, and the max profit rate only ever ratchets
// upward.
func Refresh(pos *types.Position, nav decimal.Decimal, at time.Time) {
	pos.MarketValue = pos.Shares.Mul(nav)
	pos.Profit = pos.MarketValue.Sub(pos.CostBasis)
	if pos.CostBasis.IsPositive() {
		pos.ProfitRate = pos.Profit.Div(pos.CostBasis)
	} else {
		pos.ProfitRate = decimal.Zero
	}
	if pos.ProfitRate.GreaterThan(pos.MaxProfitRate) {
		pos.MaxProfitRate = pos.ProfitRate
	}
	pos.UpdatedAt = at
}
