// Package strategy provides the pure signal evaluation core: strategy
// configurations, the evaluator, and per-strategy runtime state.
package strategy

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidConfig is returned by Validate for out-of-domain configuration.
// Validation happens at the configuration boundary (API layer); the
// evaluator itself assumes a validated config.
var ErrInvalidConfig = errors.New("invalid strategy config")

// Kind identifies a strategy variant.
type Kind string

const (
	KindAutoInvest         Kind = "auto_invest"
	KindTakeProfitStopLoss Kind = "take_profit_stop_loss"
	KindGridTrading        Kind = "grid_trading"
	KindRebalance          Kind = "rebalance"
)

// Frequency represents how often a periodic strategy fires.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// Config is the closed sum of the four strategy variants. The unexported
// marker keeps the set sealed so the evaluator's type switch is exhaustive.
type Config interface {
	Kind() Kind
	Validate() error
	isConfig()
}

// AutoInvest buys a fixed amount on a fixed calendar schedule.
type AutoInvest struct {
	Amount     decimal.Decimal `json:"amount"`
	Frequency  Frequency       `json:"frequency"`
	DayOfWeek  int             `json:"dayOfWeek,omitempty"`  // 1=Mon..7=Sun, weekly only
	DayOfMonth int             `json:"dayOfMonth,omitempty"` // monthly only
	StartDate  time.Time       `json:"startDate"`
	EndDate    *time.Time      `json:"endDate,omitempty"`
}

func (AutoInvest) Kind() Kind { return KindAutoInvest }
func (AutoInvest) isConfig()  {}

func (c AutoInvest) Validate() error {
	if !c.Amount.IsPositive() {
		return fmt.Errorf("%w: invest amount must be positive", ErrInvalidConfig)
	}
	switch c.Frequency {
	case FrequencyDaily:
	case FrequencyWeekly:
		if c.DayOfWeek < 1 || c.DayOfWeek > 7 {
			return fmt.Errorf("%w: day of week must be 1..7 (1=Monday)", ErrInvalidConfig)
		}
	case FrequencyMonthly:
		if c.DayOfMonth < 1 || c.DayOfMonth > 31 {
			return fmt.Errorf("%w: day of month must be 1..31", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown frequency %q", ErrInvalidConfig, c.Frequency)
	}
	if c.StartDate.IsZero() {
		return fmt.Errorf("%w: start date is required", ErrInvalidConfig)
	}
	if c.EndDate != nil && c.EndDate.Before(c.StartDate) {
		return fmt.Errorf("%w: end date before start date", ErrInvalidConfig)
	}
	return nil
}

// TakeProfitStopLoss sells a fixed fraction of a position when its profit
// rate crosses a target, a stop-loss floor, or falls far enough below its
// historical peak (trailing stop).
type TakeProfitStopLoss struct {
	TargetRate       decimal.Decimal  `json:"targetRate"`
	StopLossRate     decimal.Decimal  `json:"stopLossRate"`
	SellRatio        decimal.Decimal  `json:"sellRatio"`
	TrailingStopRate *decimal.Decimal `json:"trailingStopRate,omitempty"`
}

func (TakeProfitStopLoss) Kind() Kind { return KindTakeProfitStopLoss }
func (TakeProfitStopLoss) isConfig()  {}

func (c TakeProfitStopLoss) Validate() error {
	if !c.SellRatio.IsPositive() || c.SellRatio.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: sell ratio must be in (0, 1]", ErrInvalidConfig)
	}
	if c.StopLossRate.GreaterThanOrEqual(c.TargetRate) {
		return fmt.Errorf("%w: stop loss rate must be below target rate", ErrInvalidConfig)
	}
	if c.TrailingStopRate != nil && !c.TrailingStopRate.IsPositive() {
		return fmt.Errorf("%w: trailing stop rate must be positive", ErrInvalidConfig)
	}
	return nil
}

// GridTrading buys and sells a fixed amount each time the NAV crosses one of
// several evenly spaced price levels between PriceLow and PriceHigh.
//
// The last observed grid level is runtime state, not configuration; it lives
// on Instance and travels through PositionState/Evaluation.
type GridTrading struct {
	PriceLow      decimal.Decimal `json:"priceLow"`
	PriceHigh     decimal.Decimal `json:"priceHigh"`
	GridCount     int             `json:"gridCount"`
	AmountPerGrid decimal.Decimal `json:"amountPerGrid"`
}

func (GridTrading) Kind() Kind { return KindGridTrading }
func (GridTrading) isConfig()  {}

func (c GridTrading) Validate() error {
	if !c.PriceLow.IsPositive() {
		return fmt.Errorf("%w: price low must be positive", ErrInvalidConfig)
	}
	if c.PriceHigh.LessThanOrEqual(c.PriceLow) {
		return fmt.Errorf("%w: price high must exceed price low", ErrInvalidConfig)
	}
	if c.GridCount < 2 {
		return fmt.Errorf("%w: grid count must be at least 2", ErrInvalidConfig)
	}
	if c.AmountPerGrid.IsNegative() {
		return fmt.Errorf("%w: amount per grid must not be negative", ErrInvalidConfig)
	}
	return nil
}

// TargetAllocation is one fund's target weight inside a Rebalance config.
type TargetAllocation struct {
	FundCode     string          `json:"fundCode"`
	TargetWeight decimal.Decimal `json:"targetWeight"`
}

// Rebalance restores a multi-asset position set to target weights once a
// fund drifts past the threshold. It is evaluated over a set of positions
// (see the rebalance package), never per NAV point.
type Rebalance struct {
	Targets   []TargetAllocation `json:"targets"`
	Threshold decimal.Decimal    `json:"threshold"`
	Frequency Frequency          `json:"frequency"`
}

func (Rebalance) Kind() Kind { return KindRebalance }
func (Rebalance) isConfig()  {}

// weightSumTolerance bounds how far target weights may drift from 1.0.
var weightSumTolerance = decimal.NewFromFloat(0.001)

func (c Rebalance) Validate() error {
	if len(c.Targets) == 0 {
		return fmt.Errorf("%w: target allocations must not be empty", ErrInvalidConfig)
	}
	seen := make(map[string]bool, len(c.Targets))
	sum := decimal.Zero
	for _, t := range c.Targets {
		if t.FundCode == "" {
			return fmt.Errorf("%w: target fund code must not be empty", ErrInvalidConfig)
		}
		if seen[t.FundCode] {
			return fmt.Errorf("%w: duplicate target fund %s", ErrInvalidConfig, t.FundCode)
		}
		seen[t.FundCode] = true
		if !t.TargetWeight.IsPositive() {
			return fmt.Errorf("%w: target weight for %s must be positive", ErrInvalidConfig, t.FundCode)
		}
		sum = sum.Add(t.TargetWeight)
	}
	if sum.Sub(decimal.NewFromInt(1)).Abs().GreaterThan(weightSumTolerance) {
		return fmt.Errorf("%w: target weights sum to %s, want 1.0", ErrInvalidConfig, sum)
	}
	if !c.Threshold.IsPositive() || c.Threshold.GreaterThan(decimal.NewFromFloat(0.5)) {
		return fmt.Errorf("%w: rebalance threshold must be in (0, 0.5]", ErrInvalidConfig)
	}
	return nil
}
