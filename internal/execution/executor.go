// Package execution drives live strategies: evaluating them against the
// latest NAV, submitting orders to the broker, and settling pending
// transactions once the broker confirms.
package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fundpilot/trading-backend/internal/broker"
	"github.com/fundpilot/trading-backend/internal/market"
	"github.com/fundpilot/trading-backend/internal/metrics"
	"github.com/fundpilot/trading-backend/internal/notifier"
	"github.com/fundpilot/trading-backend/internal/storage"
	"github.com/fundpilot/trading-backend/internal/strategy"
	"github.com/fundpilot/trading-backend/pkg/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNoSharesToSell is returned when a sell signal fires against an empty
// position.
var ErrNoSharesToSell = errors.New("no shares to sell")

// Executor evaluates strategy instances and turns their signals into
// broker orders and pending transactions.
type Executor struct {
	logger       *zap.Logger
	broker       broker.Port
	market       market.DataPort
	strategies   storage.StrategyRepo
	transactions storage.TransactionRepo
	positions    storage.PositionRepo
	notifier     notifier.Notifier
}

// NewExecutor creates an executor.
func NewExecutor(
	logger *zap.Logger,
	brokerPort broker.Port,
	data market.DataPort,
	strategies storage.StrategyRepo,
	transactions storage.TransactionRepo,
	positions storage.PositionRepo,
	notify notifier.Notifier,
) *Executor {
	return &Executor{
		logger:       logger.Named("executor"),
		broker:       brokerPort,
		market:       data,
		strategies:   strategies,
		transactions: transactions,
		positions:    positions,
		notifier:     notify,
	}
}

// shouldSkip applies the same-day dedup checks: a disabled instance, one
// that already executed today, or one with an open transaction for today
// must not trade again.
func (e *Executor) shouldSkip(ctx context.Context, inst *strategy.Instance, now time.Time) (bool, error) {
	if !inst.Enabled {
		return true, nil
	}
	if inst.ExecutedOn(now) {
		return true, nil
	}
	open, err := e.transactions.ExistsOpenForStrategyOn(ctx, inst.ID, now)
	if err != nil {
		return false, fmt.Errorf("dedup check for %s: %w", inst.ID, err)
	}
	if open {
		e.logger.Debug("open transaction exists today, skipping", zap.String("strategy", inst.ID))
	}
	return open, nil
}

func (e *Executor) evaluate(ctx context.Context, inst *strategy.Instance, now time.Time) (strategy.Evaluation, *types.Position, error) {
	nav, err := e.market.LatestNav(ctx, inst.FundCode)
	if err != nil {
		return strategy.Evaluation{}, nil, fmt.Errorf("latest nav for %s: %w", inst.FundCode, err)
	}
	state, pos, err := e.positionState(ctx, inst)
	if err != nil {
		return strategy.Evaluation{}, nil, err
	}
	return strategy.Evaluate(inst.Config, strategy.MarketPoint{Date: now, Nav: nav.Nav}, state), pos, nil
}

// ShouldExecute reports whether running the instance now would submit an
// order. It performs no writes, so callers can use it to preview a cycle.
func (e *Executor) ShouldExecute(ctx context.Context, inst *strategy.Instance, now time.Time) (bool, error) {
	skip, err := e.shouldSkip(ctx, inst, now)
	if err != nil || skip {
		return false, err
	}
	eval, _, err := e.evaluate(ctx, inst, now)
	if err != nil {
		return false, err
	}
	return eval.Signal.Action != strategy.ActionHold, nil
}

// Execute evaluates one strategy instance at the given time and submits the
// resulting order, if any. It returns the created pending transaction, or
// (nil, nil) when the evaluation holds or the instance already traded today.
func (e *Executor) Execute(ctx context.Context, inst *strategy.Instance, now time.Time) (*types.Transaction, error) {
	skip, err := e.shouldSkip(ctx, inst, now)
	if err != nil || skip {
		return nil, err
	}

	eval, pos, err := e.evaluate(ctx, inst, now)
	if err != nil {
		return nil, err
	}
	sig := eval.Signal
	e.logger.Info("strategy evaluated",
		zap.String("strategy", inst.ID),
		zap.String("fund", inst.FundCode),
		zap.String("action", string(sig.Action)),
		zap.String("reason", sig.Reason))

	var tx *types.Transaction
	switch sig.Action {
	case strategy.ActionBuy:
		tx, err = e.submitBuy(ctx, inst, sig, now)
	case strategy.ActionSell:
		tx, err = e.submitSell(ctx, inst, sig, pos, now)
	default:
		// Persist a moved grid level even when the signal holds.
		return nil, e.saveRuntimeState(ctx, inst, eval.GridLevel, nil)
	}
	if err != nil {
		return nil, err
	}

	if err := e.saveRuntimeState(ctx, inst, eval.GridLevel, &now); err != nil {
		return nil, err
	}

	subject := fmt.Sprintf("%s order submitted for %s", tx.Type, tx.FundCode)
	body := fmt.Sprintf("strategy %s: %s (order %s)", inst.ID, sig.Reason, tx.BrokerOrderID)
	if nerr := e.notifier.Notify(ctx, subject, body); nerr != nil {
		// The order is already placed; a lost notice is not a failed trade.
		e.logger.Warn("notification failed", zap.Error(nerr))
	}
	return tx, nil
}

// positionState assembles the evaluator input from the stored position. For
// scheduled investing the available cash is the configured amount, since the
// broker port exposes no account balance.
func (e *Executor) positionState(ctx context.Context, inst *strategy.Instance) (strategy.PositionState, *types.Position, error) {
	state := strategy.PositionState{GridLevel: inst.GridLevel}
	switch c := inst.Config.(type) {
	case strategy.AutoInvest:
		state.Cash = c.Amount
	case strategy.GridTrading:
		state.Cash = c.AmountPerGrid
	}

	pos, err := e.positions.Get(ctx, inst.Owner, inst.FundCode)
	if errors.Is(err, storage.ErrNotFound) {
		return state, nil, nil
	}
	if err != nil {
		return state, nil, fmt.Errorf("load position %s/%s: %w", inst.Owner, inst.FundCode, err)
	}
	state.Shares = pos.Shares
	state.ProfitRate = pos.ProfitRate
	state.MaxProfitRate = pos.MaxProfitRate
	return state, pos, nil
}

func (e *Executor) submitBuy(ctx context.Context, inst *strategy.Instance, sig strategy.Signal, now time.Time) (*types.Transaction, error) {
	res, err := e.broker.Buy(ctx, inst.FundCode, sig.Amount)
	if err != nil {
		return nil, fmt.Errorf("submit buy for %s: %w", inst.FundCode, err)
	}

	tx := &types.Transaction{
		ID:            uuid.New().String(),
		Owner:         inst.Owner,
		FundCode:      inst.FundCode,
		Type:          types.TradeTypeBuy,
		Amount:        sig.Amount,
		Status:        types.TransactionStatusPending,
		BrokerOrderID: res.OrderID,
		StrategyID:    inst.ID,
		SubmittedAt:   now,
	}
	if err := e.transactions.Save(ctx, tx); err != nil {
		return nil, fmt.Errorf("save transaction: %w", err)
	}
	metrics.OrdersSubmitted.WithLabelValues(string(types.TradeTypeBuy)).Inc()
	return tx, nil
}

func (e *Executor) submitSell(ctx context.Context, inst *strategy.Instance, sig strategy.Signal, pos *types.Position, now time.Time) (*types.Transaction, error) {
	if pos == nil || !pos.Shares.IsPositive() {
		return nil, fmt.Errorf("sell for %s/%s: %w", inst.Owner, inst.FundCode, ErrNoSharesToSell)
	}

	shares := sig.SellShares
	if shares.IsZero() {
		shares = pos.Shares.Mul(sig.SellRatio)
	}
	if shares.GreaterThan(pos.Shares) {
		shares = pos.Shares
	}

	res, err := e.broker.Sell(ctx, inst.FundCode, shares)
	if err != nil {
		return nil, fmt.Errorf("submit sell for %s: %w", inst.FundCode, err)
	}

	tx := &types.Transaction{
		ID:            uuid.New().String(),
		Owner:         inst.Owner,
		FundCode:      inst.FundCode,
		Type:          types.TradeTypeSell,
		// Provisional value at average cost; the confirmed price overwrites it.
		Amount:        shares.Mul(pos.AvgPrice),
		Shares:        shares,
		Status:        types.TransactionStatusPending,
		BrokerOrderID: res.OrderID,
		StrategyID:    inst.ID,
		SubmittedAt:   now,
	}
	if err := e.transactions.Save(ctx, tx); err != nil {
		return nil, fmt.Errorf("save transaction: %w", err)
	}
	metrics.OrdersSubmitted.WithLabelValues(string(types.TradeTypeSell)).Inc()
	return tx, nil
}

func (e *Executor) saveRuntimeState(ctx context.Context, inst *strategy.Instance, gridLevel *int, executedAt *time.Time) error {
	changed := false
	if !gridLevelEqual(inst.GridLevel, gridLevel) {
		inst.GridLevel = gridLevel
		changed = true
	}
	if executedAt != nil {
		inst.LastExecutedAt = executedAt
		changed = true
	}
	if !changed {
		return nil
	}
	if err := e.strategies.Save(ctx, inst); err != nil {
		return fmt.Errorf("save strategy state %s: %w", inst.ID, err)
	}
	return nil
}

func gridLevelEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// ExecuteAll runs every enabled strategy, isolating per-instance failures.
func (e *Executor) ExecuteAll(ctx context.Context, now time.Time) error {
	instances, err := e.strategies.ListEnabled(ctx)
	if err != nil {
		return fmt.Errorf("list enabled strategies: %w", err)
	}

	var errs []error
	for _, inst := range instances {
		if _, err := e.Execute(ctx, inst, now); err != nil {
			e.logger.Error("strategy execution failed",
				zap.String("strategy", inst.ID), zap.Error(err))
			errs = append(errs, fmt.Errorf("strategy %s: %w", inst.ID, err))
		}
	}
	return errors.Join(errs...)
}
