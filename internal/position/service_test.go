package position

import (
	"context"
	"errors"
	"testing"

	"github.com/fundpilot/trading-backend/internal/market"
	"github.com/fundpilot/trading-backend/internal/storage"
	"github.com/fundpilot/trading-backend/pkg/types"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) (*Service, *storage.MemoryPositionRepo, *market.MemoryStore) {
	t.Helper()
	positions := storage.NewMemoryPositionRepo()
	navs := market.NewMemoryStore()
	return NewService(zap.NewNop(), positions, navs), positions, navs
}

func TestApplyConfirmedBuyCreatesPosition(t *testing.T) {
	svc, positions, _ := newTestService(t)
	ctx := context.Background()

	pos, err := svc.ApplyConfirmedBuy(ctx, "alice", "000001", dec("500"), dec("2.0"), now)
	if err != nil {
		t.Fatalf("apply buy: %v", err)
	}
	if pos.ID == "" {
		t.Error("expected a generated position id")
	}
	if !pos.Shares.Equal(dec("500")) {
		t.Errorf("shares: got %s, want 500", pos.Shares)
	}

	stored, err := positions.Get(ctx, "alice", "000001")
	if err != nil {
		t.Fatalf("stored position: %v", err)
	}
	if !stored.CostBasis.Equal(dec("1000")) {
		t.Errorf("cost basis: got %s, want 1000", stored.CostBasis)
	}
}

func TestApplyConfirmedBuyAccumulates(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.ApplyConfirmedBuy(ctx, "alice", "000001", dec("100"), dec("1.0"), now); err != nil {
		t.Fatalf("first buy: %v", err)
	}
	pos, err := svc.ApplyConfirmedBuy(ctx, "alice", "000001", dec("100"), dec("2.0"), now)
	if err != nil {
		t.Fatalf("second buy: %v", err)
	}
	if !pos.AvgPrice.Equal(dec("1.5")) {
		t.Errorf("avg price: got %s, want 1.5", pos.AvgPrice)
	}
}

func TestApplyConfirmedSellMissingPosition(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.ApplyConfirmedSell(context.Background(), "alice", "000001", dec("10"), dec("1.5"), now)
	if !errors.Is(err, ErrPositionNotFound) {
		t.Fatalf("got %v, want ErrPositionNotFound", err)
	}
}

func TestRefreshAllSkipsFundsWithoutNav(t *testing.T) {
	svc, positions, navs := newTestService(t)
	ctx := context.Background()

	if _, err := svc.ApplyConfirmedBuy(ctx, "alice", "000001", dec("100"), dec("1.0"), now); err != nil {
		t.Fatalf("seed buy: %v", err)
	}
	if _, err := svc.ApplyConfirmedBuy(ctx, "alice", "000002", dec("100"), dec("1.0"), now); err != nil {
		t.Fatalf("seed buy: %v", err)
	}

	// Only one fund has a published nav.
	navs.Add(types.NavPoint{FundCode: "000001", Date: now, Nav: dec("1.2")})

	if err := svc.RefreshAll(ctx, now); err != nil {
		t.Fatalf("refresh all: %v", err)
	}

	refreshed, _ := positions.Get(ctx, "alice", "000001")
	if !refreshed.MarketValue.Equal(dec("120")) {
		t.Errorf("refreshed value: got %s, want 120", refreshed.MarketValue)
	}

	// The fund without a nav keeps its last valuation.
	stale, _ := positions.Get(ctx, "alice", "000002")
	if !stale.MarketValue.Equal(dec("100")) {
		t.Errorf("stale value: got %s, want 100", stale.MarketValue)
	}
}
