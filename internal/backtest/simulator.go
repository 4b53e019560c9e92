// Package backtest replays the signal evaluator over historical NAV data
// against an in-memory ledger and reports return/risk metrics.
package backtest

import (
	"errors"

	"github.com/fundpilot/trading-backend/internal/strategy"
	"github.com/fundpilot/trading-backend/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrNoHistoricalData is returned when the NAV series is empty.
var ErrNoHistoricalData = errors.New("no historical nav data")

// shareEpsilon is the residue below which a position is treated as fully
// closed: shares and cost are forced to exactly zero.
var shareEpsilon = decimal.New(1, -6)

// Simulator runs a strategy against a single fund's NAV history.
type Simulator struct {
	logger *zap.Logger
}

// NewSimulator creates a backtest simulator.
func NewSimulator(logger *zap.Logger) *Simulator {
	return &Simulator{logger: logger.Named("backtest")}
}

// Run replays the strategy day by day over the NAV series.
//
// The series must be strictly ascending by date with one point per day;
// this is a documented precondition, not checked, to keep the loop
// allocation-free. Results for an unsorted series are undefined.
func (s *Simulator) Run(series []types.NavPoint, cfg strategy.Config, initialCapital decimal.Decimal) (*types.BacktestResult, error) {
	if len(series) == 0 {
		return nil, ErrNoHistoricalData
	}

	cash := initialCapital
	shares := decimal.Zero
	totalCost := decimal.Zero
	maxProfitRate := decimal.Zero
	var gridLevel *int

	values := make([]decimal.Decimal, 0, len(series))
	var trades []types.Trade

	for _, pt := range series {
		nav := pt.Nav
		values = append(values, cash.Add(shares.Mul(nav)))

		profitRate := decimal.Zero
		if totalCost.IsPositive() {
			profitRate = shares.Mul(nav).Sub(totalCost).Div(totalCost)
		}
		if profitRate.GreaterThan(maxProfitRate) {
			maxProfitRate = profitRate
		}

		ev := strategy.Evaluate(cfg, strategy.MarketPoint{Date: pt.Date, Nav: nav}, strategy.PositionState{
			Cash:          cash,
			Shares:        shares,
			ProfitRate:    profitRate,
			MaxProfitRate: maxProfitRate,
			GridLevel:     gridLevel,
		})
		gridLevel = ev.GridLevel

		switch sig := ev.Signal; sig.Action {
		case strategy.ActionBuy:
			if !sig.Amount.IsPositive() || cash.LessThan(sig.Amount) || !nav.IsPositive() {
				continue
			}
			bought := sig.Amount.Div(nav)
			shares = shares.Add(bought)
			cash = cash.Sub(sig.Amount)
			totalCost = totalCost.Add(sig.Amount)
			trades = append(trades, types.Trade{
				Date: pt.Date, Type: types.TradeTypeBuy,
				Amount: sig.Amount, Shares: bought, Price: nav,
			})

		case strategy.ActionSell:
			if !shares.IsPositive() {
				continue
			}
			ratio := sig.SellRatio
			if !ratio.IsPositive() && sig.SellShares.IsPositive() {
				ratio = sig.SellShares.Div(shares)
			}
			if !ratio.IsPositive() {
				continue
			}
			if ratio.GreaterThan(decimal.NewFromInt(1)) {
				ratio = decimal.NewFromInt(1)
			}
			sellShares := shares.Mul(ratio)
			proceeds := sellShares.Mul(nav)
			shares = shares.Sub(sellShares)
			cash = cash.Add(proceeds)
			// Cost comes out proportionally to shares sold; selling never
			// changes the average cost of what remains.
			totalCost = totalCost.Sub(totalCost.Mul(ratio))
			if shares.LessThan(shareEpsilon) {
				shares = decimal.Zero
				totalCost = decimal.Zero
			}
			trades = append(trades, types.Trade{
				Date: pt.Date, Type: types.TradeTypeSell,
				Amount: proceeds, Shares: sellShares, Price: nav,
			})
		}
	}

	lastNav := series[len(series)-1].Nav
	finalValue := cash.Add(shares.Mul(lastNav))

	totalReturn := decimal.Zero
	if initialCapital.IsPositive() {
		totalReturn = finalValue.Sub(initialCapital).Div(initialCapital)
	}
	elapsedDays := series[len(series)-1].Date.Sub(series[0].Date).Hours() / 24

	result := &types.BacktestResult{
		InitialCapital: initialCapital,
		FinalValue:     finalValue,
		TotalReturn:    totalReturn,
		AnnualReturn:   AnnualizedReturn(totalReturn, elapsedDays),
		MaxDrawdown:    MaxDrawdown(values),
		SharpeRatio:    SharpeRatio(values),
		Trades:         trades,
		TradesCount:    len(trades),
	}

	s.logger.Info("backtest completed",
		zap.String("strategy", string(cfg.Kind())),
		zap.Int("points", len(series)),
		zap.Int("trades", len(trades)),
		zap.String("totalReturn", totalReturn.String()),
	)

	return result, nil
}
