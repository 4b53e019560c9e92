// Package types provides shared type definitions for the fund trading backend.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeType represents buy or sell.
type TradeType string

const (
	TradeTypeBuy  TradeType = "buy"
	TradeTypeSell TradeType = "sell"
)

// TransactionStatus represents the lifecycle state of a submitted trade.
// PENDING is the only non-terminal state: a transaction moves exactly once,
// to CONFIRMED or FAILED.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusConfirmed TransactionStatus = "confirmed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

// NavPoint is one fund's valuation on one calendar date. Points are
// append-only and unique per (fund code, date).
type NavPoint struct {
	FundCode       string          `json:"fundCode"`
	Date           time.Time       `json:"date"`
	Nav            decimal.Decimal `json:"nav"`
	AccumulatedNav decimal.Decimal `json:"accumulatedNav"`
	GrowthRate     decimal.Decimal `json:"growthRate"`
}

// Position is a single owner's holding in a single fund.
//
// Invariants: AvgPrice = CostBasis / Shares while Shares > 0, else zero;
// MaxProfitRate never decreases across refreshes.
type Position struct {
	ID            string          `json:"id"`
	Owner         string          `json:"owner"`
	FundCode      string          `json:"fundCode"`
	Shares        decimal.Decimal `json:"shares"`
	CostBasis     decimal.Decimal `json:"costBasis"`
	AvgPrice      decimal.Decimal `json:"avgPrice"`
	MarketValue   decimal.Decimal `json:"marketValue"`
	Profit        decimal.Decimal `json:"profit"`
	ProfitRate    decimal.Decimal `json:"profitRate"`
	MaxProfitRate decimal.Decimal `json:"maxProfitRate"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// Transaction is one submitted trade. Shares/price are unknown at submission
// (T+1 settlement) and are filled in only on the CONFIRMED transition. For a
// sell, Amount holds a provisional estimate at the position's average price
// until confirmation overwrites it.
type Transaction struct {
	ID              string            `json:"id"`
	Owner           string            `json:"owner"`
	FundCode        string            `json:"fundCode"`
	Type            TradeType         `json:"type"`
	Amount          decimal.Decimal   `json:"amount"`
	Shares          decimal.Decimal   `json:"shares,omitempty"`
	Status          TransactionStatus `json:"status"`
	BrokerOrderID   string            `json:"brokerOrderId"`
	ConfirmedShares decimal.Decimal   `json:"confirmedShares,omitempty"`
	ConfirmedPrice  decimal.Decimal   `json:"confirmedPrice,omitempty"`
	FailReason      string            `json:"failReason,omitempty"`
	StrategyID      string            `json:"strategyId,omitempty"`
	SubmittedAt     time.Time         `json:"submittedAt"`
	ConfirmedAt     *time.Time        `json:"confirmedAt,omitempty"`
}

// Trade is a single executed trade inside a backtest.
type Trade struct {
	Date   time.Time       `json:"date"`
	Type   TradeType       `json:"type"`
	Amount decimal.Decimal `json:"amount"`
	Shares decimal.Decimal `json:"shares"`
	Price  decimal.Decimal `json:"price"`
}

// BacktestResult is the pure output of a historical simulation.
type BacktestResult struct {
	InitialCapital decimal.Decimal `json:"initialCapital"`
	FinalValue     decimal.Decimal `json:"finalValue"`
	TotalReturn    decimal.Decimal `json:"totalReturn"`
	AnnualReturn   decimal.Decimal `json:"annualReturn"`
	MaxDrawdown    decimal.Decimal `json:"maxDrawdown"`
	SharpeRatio    decimal.Decimal `json:"sharpeRatio"`
	Trades         []Trade         `json:"trades"`
	TradesCount    int             `json:"tradesCount"`
}
