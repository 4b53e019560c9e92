package strategy

import (
	"time"

	"github.com/shopspring/decimal"
)

// Action is the decision emitted by the evaluator.
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
	ActionHold Action = "hold"
)

// MarketPoint is the market state the evaluator sees: the fund's NAV on one
// date. The caller injects the date (the live path passes the real clock
// reading, the backtest the simulated date), which keeps the evaluator
// deterministic without any time mocking.
type MarketPoint struct {
	Date time.Time
	Nav  decimal.Decimal
}

// PositionState is the position-side input to an evaluation.
type PositionState struct {
	Cash          decimal.Decimal
	Shares        decimal.Decimal
	ProfitRate    decimal.Decimal
	MaxProfitRate decimal.Decimal
	GridLevel     *int // last observed grid level, nil before the first observation
}

// Signal is a single trading decision. A buy carries an Amount; a sell
// carries either a ratio of held shares or an absolute share count (grid
// sells size in shares).
type Signal struct {
	Action     Action
	Amount     decimal.Decimal
	SellRatio  decimal.Decimal
	SellShares decimal.Decimal
	Reason     string
}

// Evaluation is the evaluator's full output: the signal plus the next grid
// level. The caller must persist the level; it is state, not configuration.
type Evaluation struct {
	Signal    Signal
	GridLevel *int
}

func hold(reason string) Signal {
	return Signal{Action: ActionHold, Reason: reason}
}

// Evaluate turns a validated strategy config plus current market and
// position state into a buy/sell/hold decision. It is pure: no I/O, no
// clock access beyond the date carried on the market point, and it never
// fails, since malformed configs are rejected by Validate before they get
// here.
func Evaluate(cfg Config, point MarketPoint, state PositionState) Evaluation {
	switch c := cfg.(type) {
	case AutoInvest:
		return Evaluation{Signal: evaluateAutoInvest(c, point, state), GridLevel: state.GridLevel}
	case TakeProfitStopLoss:
		return Evaluation{Signal: evaluateTakeProfitStopLoss(c, state), GridLevel: state.GridLevel}
	case GridTrading:
		return evaluateGrid(c, point, state)
	case Rebalance:
		// Multi-asset: evaluated over a position set by the rebalance
		// package, not per NAV point.
		return Evaluation{Signal: hold("rebalance runs as a batch"), GridLevel: state.GridLevel}
	}
	// Unreachable: Config is sealed.
	return Evaluation{Signal: hold("unknown strategy"), GridLevel: state.GridLevel}
}

func evaluateAutoInvest(c AutoInvest, point MarketPoint, state PositionState) Signal {
	day := point.Date
	if day.Before(c.StartDate) {
		return hold("before schedule start")
	}
	if c.EndDate != nil && day.After(*c.EndDate) {
		return hold("after schedule end")
	}

	due := false
	switch c.Frequency {
	case FrequencyDaily:
		due = true
	case FrequencyWeekly:
		due = ISOWeekday(day) == c.DayOfWeek
	case FrequencyMonthly:
		due = day.Day() == c.DayOfMonth
	}
	if !due {
		return hold("not an invest day")
	}
	if state.Cash.LessThan(c.Amount) {
		return hold("insufficient cash")
	}
	return Signal{Action: ActionBuy, Amount: c.Amount, Reason: "scheduled invest"}
}

func evaluateTakeProfitStopLoss(c TakeProfitStopLoss, state PositionState) Signal {
	if !state.Shares.IsPositive() {
		return hold("no shares held")
	}

	if state.ProfitRate.GreaterThanOrEqual(c.TargetRate) {
		return Signal{Action: ActionSell, SellRatio: c.SellRatio, Reason: "take profit target reached"}
	}
	if c.TrailingStopRate != nil {
		drawdown := state.MaxProfitRate.Sub(state.ProfitRate)
		if drawdown.GreaterThanOrEqual(*c.TrailingStopRate) {
			return Signal{Action: ActionSell, SellRatio: c.SellRatio, Reason: "trailing stop triggered"}
		}
	}
	if state.ProfitRate.LessThanOrEqual(c.StopLossRate) {
		return Signal{Action: ActionSell, SellRatio: c.SellRatio, Reason: "stop loss triggered"}
	}
	return hold("within profit band")
}

func evaluateGrid(c GridTrading, point MarketPoint, state PositionState) Evaluation {
	nav := point.Nav
	if nav.LessThan(c.PriceLow) || nav.GreaterThan(c.PriceHigh) {
		// Outside the grid: hold and keep the last level untouched.
		return Evaluation{Signal: hold("nav outside grid range"), GridLevel: state.GridLevel}
	}

	level := GridLevelAt(c, nav)

	if state.GridLevel == nil {
		// First observation seeds the position.
		return Evaluation{
			Signal:    Signal{Action: ActionBuy, Amount: c.AmountPerGrid, Reason: "grid seed buy"},
			GridLevel: &level,
		}
	}

	last := *state.GridLevel
	switch {
	case level < last:
		return Evaluation{
			Signal:    Signal{Action: ActionBuy, Amount: c.AmountPerGrid, Reason: "grid level down"},
			GridLevel: &level,
		}
	case level > last:
		return Evaluation{
			Signal: Signal{
				Action:     ActionSell,
				SellShares: c.AmountPerGrid.Div(nav),
				Reason:     "grid level up",
			},
			GridLevel: &level,
		}
	default:
		return Evaluation{Signal: hold("grid level unchanged"), GridLevel: &level}
	}
}

// GridLevelAt returns the index of the highest grid boundary at or below
// nav. The grid has GridCount+1 boundaries evenly spaced over
// [PriceLow, PriceHigh]; the result is clamped to [0, GridCount].
func GridLevelAt(c GridTrading, nav decimal.Decimal) int {
	if nav.LessThanOrEqual(c.PriceLow) {
		return 0
	}
	if nav.GreaterThanOrEqual(c.PriceHigh) {
		return c.GridCount
	}
	width := c.PriceHigh.Sub(c.PriceLow).Div(decimal.NewFromInt(int64(c.GridCount)))
	level := nav.Sub(c.PriceLow).Div(width).IntPart()
	if level < 0 {
		return 0
	}
	if level > int64(c.GridCount) {
		return c.GridCount
	}
	return int(level)
}

// ISOWeekday maps Go's Sunday-based weekday to the 1=Monday..7=Sunday
// convention used by strategy configs. Keeping the conversion in one named
// function avoids the off-by-one that inline arithmetic invites.
func ISOWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}
