package rebalance

import (
	"context"
	"errors"
	"fmt"

	"github.com/fundpilot/trading-backend/internal/market"
	"github.com/fundpilot/trading-backend/internal/storage"
	"github.com/fundpilot/trading-backend/internal/strategy"
	"go.uber.org/zap"
)

// Planner previews rebalance plans from live positions. It revalues each
// position at the latest NAV before weighing, so a stale stored valuation
// does not skew the plan.
type Planner struct {
	logger    *zap.Logger
	positions storage.PositionRepo
	market    market.DataPort
}

// NewPlanner creates a planner.
func NewPlanner(logger *zap.Logger, positions storage.PositionRepo, data market.DataPort) *Planner {
	return &Planner{
		logger:    logger.Named("rebalance"),
		positions: positions,
		market:    data,
	}
}

// Plan computes the orders that would bring the owner's portfolio back to
// the configured targets. It is a preview: nothing is submitted.
func (p *Planner) Plan(ctx context.Context, owner string, cfg strategy.Rebalance) ([]Order, error) {
	positions, err := p.positions.ListByOwner(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("list positions for %s: %w", owner, err)
	}

	for _, pos := range positions {
		nav, err := p.market.LatestNav(ctx, pos.FundCode)
		if errors.Is(err, market.ErrNavNotFound) {
			p.logger.Warn("no nav for fund, using stored valuation", zap.String("fund", pos.FundCode))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("nav for %s: %w", pos.FundCode, err)
		}
		pos.MarketValue = pos.Shares.Mul(nav.Nav)
	}

	weights, total := CurrentWeights(positions)
	if total.IsZero() {
		return nil, nil
	}

	orders := ComputeOrders(weights, cfg.Targets, total, cfg.Threshold)
	p.logger.Info("rebalance plan computed",
		zap.String("owner", owner),
		zap.Int("orders", len(orders)),
		zap.String("totalValue", total.String()))
	return orders, nil
}
