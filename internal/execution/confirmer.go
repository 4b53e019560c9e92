package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fundpilot/trading-backend/internal/broker"
	"github.com/fundpilot/trading-backend/internal/metrics"
	"github.com/fundpilot/trading-backend/internal/notifier"
	"github.com/fundpilot/trading-backend/internal/position"
	"github.com/fundpilot/trading-backend/internal/storage"
	"github.com/fundpilot/trading-backend/pkg/types"
	"go.uber.org/zap"
)

// Confirmer settles pending transactions against the broker's order status
// and reconciles confirmed fills into positions.
type Confirmer struct {
	logger       *zap.Logger
	broker       broker.Port
	transactions storage.TransactionRepo
	positions    *position.Service
	notifier     notifier.Notifier
	now          func() time.Time
}

// NewConfirmer creates a confirmer.
func NewConfirmer(
	logger *zap.Logger,
	brokerPort broker.Port,
	transactions storage.TransactionRepo,
	positions *position.Service,
	notify notifier.Notifier,
) *Confirmer {
	return &Confirmer{
		logger:       logger.Named("confirmer"),
		broker:       brokerPort,
		transactions: transactions,
		positions:    positions,
		notifier:     notify,
		now:          time.Now,
	}
}

// ConfirmPending polls the broker for one pending transaction. Orders still
// pending at the broker are left untouched; confirmed and failed orders move
// to their terminal state, and confirmed fills are applied to the position.
func (c *Confirmer) ConfirmPending(ctx context.Context, tx *types.Transaction) error {
	if tx.Status != types.TransactionStatusPending {
		return fmt.Errorf("transaction %s is %s, not pending", tx.ID, tx.Status)
	}

	status, err := c.broker.OrderStatus(ctx, tx.BrokerOrderID)
	if err != nil {
		return fmt.Errorf("order status for %s: %w", tx.BrokerOrderID, err)
	}

	switch status.Status {
	case broker.OrderStatusPending:
		return nil
	case broker.OrderStatusFailed:
		return c.markFailed(ctx, tx, status.Reason)
	case broker.OrderStatusConfirmed:
		return c.markConfirmed(ctx, tx, status)
	default:
		return fmt.Errorf("order %s: unexpected broker status %q", tx.BrokerOrderID, status.Status)
	}
}

func (c *Confirmer) markFailed(ctx context.Context, tx *types.Transaction, reason string) error {
	now := c.now()
	tx.Status = types.TransactionStatusFailed
	tx.FailReason = reason
	tx.ConfirmedAt = &now
	if err := c.transactions.Save(ctx, tx); err != nil {
		return fmt.Errorf("save failed transaction %s: %w", tx.ID, err)
	}
	metrics.OrdersConfirmed.WithLabelValues(string(types.TransactionStatusFailed)).Inc()

	c.logger.Warn("order failed",
		zap.String("transaction", tx.ID),
		zap.String("fund", tx.FundCode),
		zap.String("reason", reason))
	c.notify(ctx,
		fmt.Sprintf("%s order failed for %s", tx.Type, tx.FundCode),
		fmt.Sprintf("order %s: %s", tx.BrokerOrderID, reason))
	return nil
}

func (c *Confirmer) markConfirmed(ctx context.Context, tx *types.Transaction, status *broker.StatusResult) error {
	now := c.now()
	tx.Status = types.TransactionStatusConfirmed
	tx.ConfirmedShares = status.Shares
	tx.ConfirmedPrice = status.Price
	tx.ConfirmedAt = &now
	if tx.Type == types.TradeTypeSell {
		// Replace the provisional at-cost value with the settled proceeds.
		tx.Amount = status.Shares.Mul(status.Price)
	}
	if err := c.transactions.Save(ctx, tx); err != nil {
		return fmt.Errorf("save confirmed transaction %s: %w", tx.ID, err)
	}
	metrics.OrdersConfirmed.WithLabelValues(string(types.TransactionStatusConfirmed)).Inc()

	switch tx.Type {
	case types.TradeTypeBuy:
		if _, err := c.positions.ApplyConfirmedBuy(ctx, tx.Owner, tx.FundCode, status.Shares, status.Price, now); err != nil {
			return fmt.Errorf("reconcile buy %s: %w", tx.ID, err)
		}
	case types.TradeTypeSell:
		if _, err := c.positions.ApplyConfirmedSell(ctx, tx.Owner, tx.FundCode, status.Shares, status.Price, now); err != nil {
			return fmt.Errorf("reconcile sell %s: %w", tx.ID, err)
		}
	}

	c.logger.Info("order confirmed",
		zap.String("transaction", tx.ID),
		zap.String("fund", tx.FundCode),
		zap.String("shares", status.Shares.String()),
		zap.String("price", status.Price.String()))
	c.notify(ctx,
		fmt.Sprintf("%s order confirmed for %s", tx.Type, tx.FundCode),
		fmt.Sprintf("%s shares at %s", status.Shares.StringFixed(4), status.Price.String()))
	return nil
}

func (c *Confirmer) notify(ctx context.Context, subject, body string) {
	if err := c.notifier.Notify(ctx, subject, body); err != nil {
		c.logger.Warn("notification failed", zap.Error(err))
	}
}

// ConfirmAll polls every pending transaction, isolating per-item failures so
// one bad order does not block the batch.
func (c *Confirmer) ConfirmAll(ctx context.Context) error {
	pending, err := c.transactions.ListPending(ctx)
	if err != nil {
		return fmt.Errorf("list pending transactions: %w", err)
	}

	var errs []error
	for _, tx := range pending {
		if err := c.ConfirmPending(ctx, tx); err != nil {
			c.logger.Error("confirmation failed",
				zap.String("transaction", tx.ID), zap.Error(err))
			errs = append(errs, fmt.Errorf("transaction %s: %w", tx.ID, err))
		}
	}
	return errors.Join(errs...)
}
