package market

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/fundpilot/trading-backend/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	_ "modernc.org/sqlite"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func point(fund string, date time.Time, nav string) types.NavPoint {
	return types.NavPoint{FundCode: fund, Date: date, Nav: dec(nav)}
}

func TestMemoryStoreLatestNav(t *testing.T) {
	store := NewMemoryStore()
	store.Add(
		point("000001", day(2024, 1, 3), "1.3"),
		point("000001", day(2024, 1, 1), "1.1"),
		point("000001", day(2024, 1, 2), "1.2"),
	)

	latest, err := store.LatestNav(context.Background(), "000001")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if !latest.Nav.Equal(dec("1.3")) {
		t.Errorf("latest nav: got %s, want 1.3", latest.Nav)
	}

	_, err = store.LatestNav(context.Background(), "999999")
	if !errors.Is(err, ErrNavNotFound) {
		t.Errorf("unknown fund: got %v, want ErrNavNotFound", err)
	}
}

func TestMemoryStoreReplacesSameDay(t *testing.T) {
	store := NewMemoryStore()
	store.Add(point("000001", day(2024, 1, 1), "1.1"))
	store.Add(point("000001", day(2024, 1, 1), "1.15"))

	series, err := store.HistoricalNav(context.Background(), "000001", day(2024, 1, 1), day(2024, 1, 31))
	if err != nil {
		t.Fatalf("historical: %v", err)
	}
	if len(series) != 1 {
		t.Fatalf("points: got %d, want 1", len(series))
	}
	if !series[0].Nav.Equal(dec("1.15")) {
		t.Errorf("nav: got %s, want the replacement 1.15", series[0].Nav)
	}
}

func TestMemoryStoreHistoricalRange(t *testing.T) {
	store := NewMemoryStore()
	for i := 1; i <= 10; i++ {
		store.Add(point("000001", day(2024, 1, i), "1"))
	}

	series, err := store.HistoricalNav(context.Background(), "000001", day(2024, 1, 3), day(2024, 1, 7))
	if err != nil {
		t.Fatalf("historical: %v", err)
	}
	if len(series) != 5 {
		t.Errorf("points: got %d, want 5", len(series))
	}
}

func openNavTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "nav.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store, err := NewSQLiteStore(zap.NewNop(), db)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	store := openNavTestStore(t)
	ctx := context.Background()

	err := store.Upsert(ctx,
		types.NavPoint{
			FundCode:       "000001",
			Date:           day(2024, 1, 2),
			Nav:            dec("1.2345"),
			AccumulatedNav: dec("3.4567"),
			GrowthRate:     dec("0.0123"),
		},
		point("000001", day(2024, 1, 1), "1.2"),
	)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	latest, err := store.LatestNav(ctx, "000001")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if !latest.Nav.Equal(dec("1.2345")) {
		t.Errorf("latest nav: got %s, want 1.2345", latest.Nav)
	}
	if !latest.AccumulatedNav.Equal(dec("3.4567")) {
		t.Errorf("accumulated nav: got %s, want 3.4567", latest.AccumulatedNav)
	}

	series, err := store.HistoricalNav(ctx, "000001", day(2024, 1, 1), day(2024, 1, 31))
	if err != nil {
		t.Fatalf("historical: %v", err)
	}
	if len(series) != 2 {
		t.Fatalf("points: got %d, want 2", len(series))
	}
	if !series[0].Date.Equal(day(2024, 1, 1)) {
		t.Errorf("series order: first point at %s, want 2024-01-01", series[0].Date)
	}
}

func TestSQLiteStoreUpsertReplaces(t *testing.T) {
	store := openNavTestStore(t)
	ctx := context.Background()

	if err := store.Upsert(ctx, point("000001", day(2024, 1, 1), "1.1")); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := store.Upsert(ctx, point("000001", day(2024, 1, 1), "1.12")); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	latest, err := store.LatestNav(ctx, "000001")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if !latest.Nav.Equal(dec("1.12")) {
		t.Errorf("nav: got %s, want the corrected 1.12", latest.Nav)
	}
}

func TestSQLiteStoreUnknownFund(t *testing.T) {
	store := openNavTestStore(t)
	_, err := store.LatestNav(context.Background(), "999999")
	if !errors.Is(err, ErrNavNotFound) {
		t.Fatalf("got %v, want ErrNavNotFound", err)
	}
}
