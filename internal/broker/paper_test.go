package broker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fundpilot/trading-backend/internal/market"
	"github.com/fundpilot/trading-backend/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newTestBroker(t *testing.T, settleDelay time.Duration) (*PaperBroker, *market.MemoryStore) {
	t.Helper()
	store := market.NewMemoryStore()
	b := NewPaperBroker(zap.NewNop(), store, settleDelay)
	return b, store
}

func TestBuyPendingUntilSettleDelay(t *testing.T) {
	b, store := newTestBroker(t, 24*time.Hour)
	store.Add(types.NavPoint{
		FundCode: "000001",
		Date:     time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		Nav:      dec("1.5"),
	})

	submitted := time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)
	clock := submitted
	b.now = func() time.Time { return clock }

	res, err := b.Buy(context.Background(), "000001", dec("1000"))
	if err != nil {
		t.Fatalf("buy: %v", err)
	}

	status, err := b.OrderStatus(context.Background(), res.OrderID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Status != OrderStatusPending {
		t.Fatalf("before delay: got %s, want pending", status.Status)
	}

	// Next day the order settles at the latest nav.
	clock = submitted.Add(25 * time.Hour)
	status, err = b.OrderStatus(context.Background(), res.OrderID)
	if err != nil {
		t.Fatalf("status after delay: %v", err)
	}
	if status.Status != OrderStatusConfirmed {
		t.Fatalf("after delay: got %s, want confirmed", status.Status)
	}
	if !status.Price.Equal(dec("1.5")) {
		t.Errorf("price: got %s, want 1.5", status.Price)
	}
	wantShares := dec("1000").Div(dec("1.5"))
	if !status.Shares.Equal(wantShares) {
		t.Errorf("shares: got %s, want %s", status.Shares, wantShares)
	}
}

func TestSellConfirmsRequestedShares(t *testing.T) {
	b, store := newTestBroker(t, 0)
	store.Add(types.NavPoint{
		FundCode: "000001",
		Date:     time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		Nav:      dec("2.0"),
	})

	res, err := b.Sell(context.Background(), "000001", dec("250"))
	if err != nil {
		t.Fatalf("sell: %v", err)
	}

	status, err := b.OrderStatus(context.Background(), res.OrderID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Status != OrderStatusConfirmed {
		t.Fatalf("got %s, want confirmed", status.Status)
	}
	if !status.Shares.Equal(dec("250")) {
		t.Errorf("shares: got %s, want 250", status.Shares)
	}
	if !status.Price.Equal(dec("2.0")) {
		t.Errorf("price: got %s, want 2.0", status.Price)
	}
}

func TestOrderFailsWithoutNav(t *testing.T) {
	b, _ := newTestBroker(t, 0)

	res, err := b.Buy(context.Background(), "999999", dec("1000"))
	if err != nil {
		t.Fatalf("buy: %v", err)
	}

	status, err := b.OrderStatus(context.Background(), res.OrderID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Status != OrderStatusFailed {
		t.Fatalf("got %s, want failed", status.Status)
	}
	if status.Reason == "" {
		t.Error("expected a failure reason")
	}
}

func TestInvalidSubmissions(t *testing.T) {
	b, _ := newTestBroker(t, 0)

	if _, err := b.Buy(context.Background(), "000001", dec("0")); err == nil {
		t.Error("zero-amount buy must be rejected")
	}
	if _, err := b.Sell(context.Background(), "000001", dec("-5")); err == nil {
		t.Error("negative-share sell must be rejected")
	}
}

func TestOrderStatusUnknownID(t *testing.T) {
	b, _ := newTestBroker(t, 0)
	_, err := b.OrderStatus(context.Background(), "nope")
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("got %v, want ErrOrderNotFound", err)
	}
}
