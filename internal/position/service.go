package position

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fundpilot/trading-backend/internal/market"
	"github.com/fundpilot/trading-backend/internal/storage"
	"github.com/fundpilot/trading-backend/pkg/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Service reconciles confirmed trades into positions and keeps valuations
// current.
type Service struct {
	logger    *zap.Logger
	positions storage.PositionRepo
	market    market.DataPort
}

// NewService creates a position service.
func NewService(logger *zap.Logger, positions storage.PositionRepo, data market.DataPort) *Service {
	return &Service{
		logger:    logger.Named("position"),
		positions: positions,
		market:    data,
	}
}

// ApplyConfirmedBuy folds a confirmed buy into the owner's position for the
// fund, creating the position on first purchase.
func (s *Service) ApplyConfirmedBuy(ctx context.Context, owner, fundCode string, shares, price decimal.Decimal, at time.Time) (*types.Position, error) {
	pos, err := s.positions.Get(ctx, owner, fundCode)
	if errors.Is(err, storage.ErrNotFound) {
		pos = &types.Position{
			ID:       uuid.New().String(),
			Owner:    owner,
			FundCode: fundCode,
		}
	} else if err != nil {
		return nil, fmt.Errorf("load position %s/%s: %w", owner, fundCode, err)
	}

	ApplyBuy(pos, shares, price, at)
	Refresh(pos, price, at)
	if err := s.positions.Save(ctx, pos); err != nil {
		return nil, fmt.Errorf("save position %s/%s: %w", owner, fundCode, err)
	}
	s.logger.Info("buy applied",
		zap.String("owner", owner),
		zap.String("fund", fundCode),
		zap.String("shares", shares.String()),
		zap.String("price", price.String()))
	return pos, nil
}

// ApplyConfirmedSell removes confirmed-sold shares from the owner's position.
// A sell against a fund with no position returns ErrPositionNotFound.
func (s *Service) ApplyConfirmedSell(ctx context.Context, owner, fundCode string, shares, price decimal.Decimal, at time.Time) (*types.Position, error) {
	pos, err := s.positions.Get(ctx, owner, fundCode)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("sell %s for %s: %w", fundCode, owner, ErrPositionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load position %s/%s: %w", owner, fundCode, err)
	}

	ApplySell(pos, shares, at)
	Refresh(pos, price, at)
	if err := s.positions.Save(ctx, pos); err != nil {
		return nil, fmt.Errorf("save position %s/%s: %w", owner, fundCode, err)
	}
	s.logger.Info("sell applied",
		zap.String("owner", owner),
		zap.String("fund", fundCode),
		zap.String("shares", shares.String()),
		zap.String("price", price.String()))
	return pos, nil
}

// RefreshAll revalues every position against the latest NAV. Funds with no
// published NAV yet are skipped; other failures are collected so one bad
// position does not stall the rest.
func (s *Service) RefreshAll(ctx context.Context, now time.Time) error {
	all, err := s.positions.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list positions: %w", err)
	}

	var errs []error
	refreshed := 0
	for _, pos := range all {
		nav, err := s.market.LatestNav(ctx, pos.FundCode)
		if errors.Is(err, market.ErrNavNotFound) {
			s.logger.Warn("no nav for fund, skipping refresh", zap.String("fund", pos.FundCode))
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("nav for %s: %w", pos.FundCode, err))
			continue
		}

		Refresh(pos, nav.Nav, now)
		if err := s.positions.Save(ctx, pos); err != nil {
			errs = append(errs, fmt.Errorf("save position %s/%s: %w", pos.Owner, pos.FundCode, err))
			continue
		}
		refreshed++
	}

	s.logger.Info("positions refreshed", zap.Int("count", refreshed), zap.Int("errors", len(errs)))
	return errors.Join(errs...)
}
