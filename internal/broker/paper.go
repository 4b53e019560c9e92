package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fundpilot/trading-backend/internal/market"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type paperOrder struct {
	fundCode    string
	isBuy       bool
	amount      decimal.Decimal // buy orders
	shares      decimal.Decimal // sell orders
	submittedAt time.Time
}

// PaperBroker simulates a fund broker. Orders stay pending for a
// configurable settle delay and then confirm at the fund's latest recorded
// NAV, mirroring next-day settlement without a real counterparty.
type PaperBroker struct {
	logger      *zap.Logger
	market      market.DataPort
	settleDelay time.Duration
	now         func() time.Time

	mu     sync.Mutex
	orders map[string]*paperOrder
}

// NewPaperBroker creates a paper broker settling against the given NAV
// source after settleDelay.
func NewPaperBroker(logger *zap.Logger, data market.DataPort, settleDelay time.Duration) *PaperBroker {
	return &PaperBroker{
		logger:      logger.Named("paper-broker"),
		market:      data,
		settleDelay: settleDelay,
		now:         time.Now,
		orders:      make(map[string]*paperOrder),
	}
}

// Buy implements Port.
func (b *PaperBroker) Buy(ctx context.Context, fundCode string, amount decimal.Decimal) (*OrderResult, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("buy %s: amount must be positive, got %s", fundCode, amount)
	}
	return b.submit(&paperOrder{fundCode: fundCode, isBuy: true, amount: amount}), nil
}

// Sell implements Port.
func (b *PaperBroker) Sell(ctx context.Context, fundCode string, shares decimal.Decimal) (*OrderResult, error) {
	if !shares.IsPositive() {
		return nil, fmt.Errorf("sell %s: shares must be positive, got %s", fundCode, shares)
	}
	return b.submit(&paperOrder{fundCode: fundCode, shares: shares}), nil
}

func (b *PaperBroker) submit(order *paperOrder) *OrderResult {
	order.submittedAt = b.now()
	id := uuid.New().String()

	b.mu.Lock()
	b.orders[id] = order
	b.mu.Unlock()

	b.logger.Info("paper order accepted",
		zap.String("orderId", id),
		zap.String("fund", order.fundCode),
		zap.Bool("buy", order.isBuy))
	return &OrderResult{OrderID: id}
}

// OrderStatus implements Port. Before the settle delay elapses the order is
// pending; after that it confirms at the latest NAV, or fails if the fund
// has no NAV to settle against.
func (b *PaperBroker) OrderStatus(ctx context.Context, orderID string) (*StatusResult, error) {
	b.mu.Lock()
	order, ok := b.orders[orderID]
	b.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("order %s: %w", orderID, ErrOrderNotFound)
	}

	if b.now().Sub(order.submittedAt) < b.settleDelay {
		return &StatusResult{Status: OrderStatusPending}, nil
	}

	nav, err := b.market.LatestNav(ctx, order.fundCode)
	if errors.Is(err, market.ErrNavNotFound) {
		return &StatusResult{
			Status: OrderStatusFailed,
			Reason: fmt.Sprintf("no nav available for %s", order.fundCode),
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("settle order %s: %w", orderID, err)
	}

	res := &StatusResult{Status: OrderStatusConfirmed, Price: nav.Nav}
	if order.isBuy {
		res.Shares = order.amount.Div(nav.Nav)
	} else {
		res.Shares = order.shares
	}
	return res, nil
}
