package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/fundpilot/trading-backend/internal/strategy"
	"github.com/fundpilot/trading-backend/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(zap.NewNop(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestStrategyRepoRoundTrip(t *testing.T) {
	repo := NewSQLiteStrategyRepo(openTestDB(t))
	ctx := context.Background()

	executed := time.Date(2024, 3, 4, 15, 0, 0, 0, time.UTC)
	level := 3
	inst := &strategy.Instance{
		ID:       "strat-1",
		Owner:    "alice",
		FundCode: "000001",
		Config: strategy.GridTrading{
			PriceLow:      dec("1.0"),
			PriceHigh:     dec("2.0"),
			GridCount:     5,
			AmountPerGrid: dec("100"),
		},
		Enabled:        true,
		LastExecutedAt: &executed,
		GridLevel:      &level,
	}
	require.NoError(t, repo.Save(ctx, inst))

	got, err := repo.Get(ctx, "strat-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Owner)
	assert.True(t, got.Enabled)
	require.NotNil(t, got.GridLevel)
	assert.Equal(t, 3, *got.GridLevel)
	require.NotNil(t, got.LastExecutedAt)
	assert.True(t, got.LastExecutedAt.Equal(executed))

	cfg, ok := got.Config.(strategy.GridTrading)
	require.True(t, ok, "config type: got %T", got.Config)
	assert.True(t, cfg.PriceHigh.Equal(dec("2.0")))
	assert.Equal(t, 5, cfg.GridCount)
}

func TestStrategyRepoListEnabled(t *testing.T) {
	repo := NewSQLiteStrategyRepo(openTestDB(t))
	ctx := context.Background()

	cfg := strategy.AutoInvest{
		Amount:    dec("1000"),
		Frequency: strategy.FrequencyDaily,
		StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.Save(ctx, &strategy.Instance{ID: "on", Owner: "a", FundCode: "1", Config: cfg, Enabled: true}))
	require.NoError(t, repo.Save(ctx, &strategy.Instance{ID: "off", Owner: "a", FundCode: "1", Config: cfg}))

	enabled, err := repo.ListEnabled(ctx)
	require.NoError(t, err)
	require.Len(t, enabled, 1)
	assert.Equal(t, "on", enabled[0].ID)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestStrategyRepoGetMissing(t *testing.T) {
	repo := NewSQLiteStrategyRepo(openTestDB(t))
	_, err := repo.Get(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPositionRepoRoundTrip(t *testing.T) {
	repo := NewSQLitePositionRepo(openTestDB(t))
	ctx := context.Background()

	pos := &types.Position{
		ID:            "pos-1",
		Owner:         "alice",
		FundCode:      "000001",
		Shares:        dec("123.456789"),
		CostBasis:     dec("185.19"),
		AvgPrice:      dec("1.5"),
		MarketValue:   dec("200"),
		Profit:        dec("14.81"),
		ProfitRate:    dec("0.08"),
		MaxProfitRate: dec("0.12"),
		UpdatedAt:     time.Date(2024, 3, 4, 15, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.Save(ctx, pos))

	got, err := repo.Get(ctx, "alice", "000001")
	require.NoError(t, err)
	assert.True(t, got.Shares.Equal(dec("123.456789")), "shares survive exactly: got %s", got.Shares)
	assert.True(t, got.MaxProfitRate.Equal(dec("0.12")))

	// Save again with the same (owner, fund): upsert, not duplicate.
	pos.Shares = dec("200")
	require.NoError(t, repo.Save(ctx, pos))
	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].Shares.Equal(dec("200")))
}

func TestPositionRepoListByOwner(t *testing.T) {
	repo := NewSQLitePositionRepo(openTestDB(t))
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, repo.Save(ctx, &types.Position{ID: "p1", Owner: "alice", FundCode: "000002", UpdatedAt: now}))
	require.NoError(t, repo.Save(ctx, &types.Position{ID: "p2", Owner: "alice", FundCode: "000001", UpdatedAt: now}))
	require.NoError(t, repo.Save(ctx, &types.Position{ID: "p3", Owner: "bob", FundCode: "000001", UpdatedAt: now}))

	got, err := repo.ListByOwner(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "000001", got[0].FundCode, "sorted by fund code")
}

func TestTransactionRepoRoundTrip(t *testing.T) {
	repo := NewSQLiteTransactionRepo(openTestDB(t))
	ctx := context.Background()

	submitted := time.Date(2024, 3, 4, 15, 0, 0, 0, time.UTC)
	tx := &types.Transaction{
		ID:            "tx-1",
		Owner:         "alice",
		FundCode:      "000001",
		Type:          types.TradeTypeBuy,
		Amount:        dec("1000"),
		Status:        types.TransactionStatusPending,
		BrokerOrderID: "order-1",
		StrategyID:    "strat-1",
		SubmittedAt:   submitted,
	}
	require.NoError(t, repo.Save(ctx, tx))

	got, err := repo.Get(ctx, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, types.TransactionStatusPending, got.Status)
	assert.Nil(t, got.ConfirmedAt)

	// Settle and save again.
	confirmed := submitted.Add(24 * time.Hour)
	tx.Status = types.TransactionStatusConfirmed
	tx.ConfirmedShares = dec("666.67")
	tx.ConfirmedPrice = dec("1.5")
	tx.ConfirmedAt = &confirmed
	require.NoError(t, repo.Save(ctx, tx))

	got, err = repo.Get(ctx, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, types.TransactionStatusConfirmed, got.Status)
	require.NotNil(t, got.ConfirmedAt)
	assert.True(t, got.ConfirmedAt.Equal(confirmed))
	assert.True(t, got.ConfirmedShares.Equal(dec("666.67")))
}

func TestTransactionRepoListPending(t *testing.T) {
	repo := NewSQLiteTransactionRepo(openTestDB(t))
	ctx := context.Background()

	base := time.Date(2024, 3, 4, 15, 0, 0, 0, time.UTC)
	for _, tc := range []struct {
		id     string
		status types.TransactionStatus
	}{
		{"tx-a", types.TransactionStatusPending},
		{"tx-b", types.TransactionStatusConfirmed},
		{"tx-c", types.TransactionStatusPending},
	} {
		require.NoError(t, repo.Save(ctx, &types.Transaction{
			ID: tc.id, Owner: "alice", FundCode: "000001",
			Type: types.TradeTypeBuy, Amount: dec("100"),
			Status: tc.status, BrokerOrderID: tc.id, SubmittedAt: base,
		}))
	}

	pending, err := repo.ListPending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestExistsOpenForStrategyOn(t *testing.T) {
	repo := NewSQLiteTransactionRepo(openTestDB(t))
	ctx := context.Background()

	day := time.Date(2024, 3, 4, 15, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Save(ctx, &types.Transaction{
		ID: "tx-1", Owner: "alice", FundCode: "000001",
		Type: types.TradeTypeBuy, Amount: dec("100"),
		Status: types.TransactionStatusPending, BrokerOrderID: "o1",
		StrategyID: "strat-1", SubmittedAt: day,
	}))

	open, err := repo.ExistsOpenForStrategyOn(ctx, "strat-1", day.Add(3*time.Hour))
	require.NoError(t, err)
	assert.True(t, open, "pending transaction on the same day counts")

	open, err = repo.ExistsOpenForStrategyOn(ctx, "strat-1", day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.False(t, open, "next day does not count")

	open, err = repo.ExistsOpenForStrategyOn(ctx, "strat-2", day)
	require.NoError(t, err)
	assert.False(t, open, "other strategies do not count")
}

func TestExistsOpenIgnoresFailed(t *testing.T) {
	repo := NewSQLiteTransactionRepo(openTestDB(t))
	ctx := context.Background()

	day := time.Date(2024, 3, 4, 15, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Save(ctx, &types.Transaction{
		ID: "tx-1", Owner: "alice", FundCode: "000001",
		Type: types.TradeTypeBuy, Amount: dec("100"),
		Status: types.TransactionStatusFailed, BrokerOrderID: "o1",
		FailReason: "rejected", StrategyID: "strat-1", SubmittedAt: day,
	}))

	// A failed attempt leaves the day open for a retry.
	open, err := repo.ExistsOpenForStrategyOn(ctx, "strat-1", day)
	require.NoError(t, err)
	assert.False(t, open)
}
