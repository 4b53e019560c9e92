// Package broker defines the order-submission port and a paper
// implementation that settles against recorded NAVs.
package broker

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrOrderNotFound is returned by OrderStatus for an unknown order id.
var ErrOrderNotFound = errors.New("broker order not found")

// OrderStatus is the broker-side state of a submitted order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusFailed    OrderStatus = "failed"
)

// OrderResult is the acknowledgement for a submitted order.
type OrderResult struct {
	OrderID string
}

// StatusResult is the settlement state of an order. Shares and Price are
// only meaningful once Status is confirmed; Reason is set when it failed.
type StatusResult struct {
	Status OrderStatus
	Shares decimal.Decimal
	Price  decimal.Decimal
	Reason string
}

// Port submits fund orders to a broker. Fund orders settle asynchronously,
// typically on the next trading day, so submission only returns an order id
// and OrderStatus is polled until the order leaves the pending state.
type Port interface {
	// Buy submits a buy order for the given cash amount.
	Buy(ctx context.Context, fundCode string, amount decimal.Decimal) (*OrderResult, error)
	// Sell submits a sell order for the given number of shares.
	Sell(ctx context.Context, fundCode string, shares decimal.Decimal) (*OrderResult, error)
	// OrderStatus reports the current settlement state of an order.
	OrderStatus(ctx context.Context, orderID string) (*StatusResult, error)
}
