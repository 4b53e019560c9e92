package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fundpilot/trading-backend/internal/strategy"
	"github.com/fundpilot/trading-backend/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	_ "modernc.org/sqlite"
)

// Open opens (or creates) the SQLite database and runs migrations. WAL mode
// keeps reads cheap while the scheduler writes.
func Open(logger *zap.Logger, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	logger.Info("sqlite storage opened", zap.String("path", path))
	return db, nil
}

func migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS strategies (
			id               TEXT PRIMARY KEY,
			owner            TEXT NOT NULL,
			fund_code        TEXT NOT NULL,
			config           TEXT NOT NULL,
			enabled          INTEGER NOT NULL,
			last_executed_at TEXT,
			grid_level       INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS positions (
			id              TEXT PRIMARY KEY,
			owner           TEXT NOT NULL,
			fund_code       TEXT NOT NULL,
			shares          TEXT NOT NULL,
			cost_basis      TEXT NOT NULL,
			avg_price       TEXT NOT NULL,
			market_value    TEXT NOT NULL,
			profit          TEXT NOT NULL,
			profit_rate     TEXT NOT NULL,
			max_profit_rate TEXT NOT NULL,
			updated_at      TEXT NOT NULL,
			UNIQUE (owner, fund_code)
		)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id               TEXT PRIMARY KEY,
			owner            TEXT NOT NULL,
			fund_code        TEXT NOT NULL,
			type             TEXT NOT NULL,
			amount           TEXT NOT NULL,
			shares           TEXT NOT NULL,
			status           TEXT NOT NULL,
			broker_order_id  TEXT NOT NULL,
			confirmed_shares TEXT NOT NULL,
			confirmed_price  TEXT NOT NULL,
			fail_reason      TEXT NOT NULL,
			strategy_id      TEXT NOT NULL,
			submitted_at     TEXT NOT NULL,
			confirmed_at     TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tx_status ON transactions(status)`,
		`CREATE INDEX IF NOT EXISTS idx_tx_strategy ON transactions(strategy_id, submitted_at)`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

// SQLiteStrategyRepo is the SQLite StrategyRepo. The config is stored as a
// tagged JSON envelope; the grid runtime counter lives in its own column.
type SQLiteStrategyRepo struct {
	db *sql.DB
}

// NewSQLiteStrategyRepo creates a strategy repository over db.
func NewSQLiteStrategyRepo(db *sql.DB) *SQLiteStrategyRepo {
	return &SQLiteStrategyRepo{db: db}
}

func (r *SQLiteStrategyRepo) Save(ctx context.Context, inst *strategy.Instance) error {
	cfg, err := strategy.MarshalConfig(inst.Config)
	if err != nil {
		return err
	}
	var lastExec any
	if inst.LastExecutedAt != nil {
		lastExec = inst.LastExecutedAt.Format(time.RFC3339)
	}
	var gridLevel any
	if inst.GridLevel != nil {
		gridLevel = *inst.GridLevel
	}
	_, err = r.db.ExecContext(ctx, `INSERT OR REPLACE INTO strategies
		(id, owner, fund_code, config, enabled, last_executed_at, grid_level)
		VALUES (?,?,?,?,?,?,?)`,
		inst.ID, inst.Owner, inst.FundCode, string(cfg), boolToInt(inst.Enabled), lastExec, gridLevel)
	if err != nil {
		return fmt.Errorf("save strategy %s: %w", inst.ID, err)
	}
	return nil
}

func (r *SQLiteStrategyRepo) Get(ctx context.Context, id string) (*strategy.Instance, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, owner, fund_code, config, enabled, last_executed_at, grid_level
		FROM strategies WHERE id = ?`, id)
	inst, err := scanStrategy(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get strategy %s: %w", id, err)
	}
	return inst, nil
}

func (r *SQLiteStrategyRepo) List(ctx context.Context) ([]*strategy.Instance, error) {
	return r.list(ctx, `SELECT id, owner, fund_code, config, enabled, last_executed_at, grid_level
		FROM strategies ORDER BY id`)
}

func (r *SQLiteStrategyRepo) ListEnabled(ctx context.Context) ([]*strategy.Instance, error) {
	return r.list(ctx, `SELECT id, owner, fund_code, config, enabled, last_executed_at, grid_level
		FROM strategies WHERE enabled = 1 ORDER BY id`)
}

func (r *SQLiteStrategyRepo) list(ctx context.Context, query string) ([]*strategy.Instance, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list strategies: %w", err)
	}
	defer rows.Close()

	var out []*strategy.Instance
	for rows.Next() {
		inst, err := scanStrategy(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan strategy: %w", err)
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

func scanStrategy(scan func(dest ...any) error) (*strategy.Instance, error) {
	var inst strategy.Instance
	var cfg string
	var enabled int
	var lastExec sql.NullString
	var gridLevel sql.NullInt64
	if err := scan(&inst.ID, &inst.Owner, &inst.FundCode, &cfg, &enabled, &lastExec, &gridLevel); err != nil {
		return nil, err
	}

	config, err := strategy.UnmarshalConfig([]byte(cfg))
	if err != nil {
		return nil, err
	}
	inst.Config = config
	inst.Enabled = enabled != 0
	if lastExec.Valid {
		t, err := time.Parse(time.RFC3339, lastExec.String)
		if err != nil {
			return nil, err
		}
		inst.LastExecutedAt = &t
	}
	if gridLevel.Valid {
		lvl := int(gridLevel.Int64)
		inst.GridLevel = &lvl
	}
	return &inst, nil
}

// SQLitePositionRepo is the SQLite PositionRepo.
type SQLitePositionRepo struct {
	db *sql.DB
}

// NewSQLitePositionRepo creates a position repository over db.
func NewSQLitePositionRepo(db *sql.DB) *SQLitePositionRepo {
	return &SQLitePositionRepo{db: db}
}

func (r *SQLitePositionRepo) Save(ctx context.Context, pos *types.Position) error {
	_, err := r.db.ExecContext(ctx, `INSERT OR REPLACE INTO positions
		(id, owner, fund_code, shares, cost_basis, avg_price, market_value, profit, profit_rate, max_profit_rate, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		pos.ID, pos.Owner, pos.FundCode,
		pos.Shares.String(), pos.CostBasis.String(), pos.AvgPrice.String(),
		pos.MarketValue.String(), pos.Profit.String(),
		pos.ProfitRate.String(), pos.MaxProfitRate.String(),
		pos.UpdatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("save position %s/%s: %w", pos.Owner, pos.FundCode, err)
	}
	return nil
}

func (r *SQLitePositionRepo) Get(ctx context.Context, owner, fundCode string) (*types.Position, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, owner, fund_code, shares, cost_basis, avg_price,
		market_value, profit, profit_rate, max_profit_rate, updated_at
		FROM positions WHERE owner = ? AND fund_code = ?`, owner, fundCode)
	pos, err := scanPosition(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get position %s/%s: %w", owner, fundCode, err)
	}
	return pos, nil
}

func (r *SQLitePositionRepo) ListByOwner(ctx context.Context, owner string) ([]*types.Position, error) {
	return r.list(ctx, `SELECT id, owner, fund_code, shares, cost_basis, avg_price,
		market_value, profit, profit_rate, max_profit_rate, updated_at
		FROM positions WHERE owner = ? ORDER BY fund_code`, owner)
}

func (r *SQLitePositionRepo) ListAll(ctx context.Context) ([]*types.Position, error) {
	return r.list(ctx, `SELECT id, owner, fund_code, shares, cost_basis, avg_price,
		market_value, profit, profit_rate, max_profit_rate, updated_at
		FROM positions ORDER BY id`)
}

func (r *SQLitePositionRepo) list(ctx context.Context, query string, args ...any) ([]*types.Position, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	defer rows.Close()

	var out []*types.Position
	for rows.Next() {
		pos, err := scanPosition(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		out = append(out, pos)
	}
	return out, rows.Err()
}

func scanPosition(scan func(dest ...any) error) (*types.Position, error) {
	var pos types.Position
	var shares, cost, avg, mv, profit, rate, maxRate, updated string
	if err := scan(&pos.ID, &pos.Owner, &pos.FundCode, &shares, &cost, &avg,
		&mv, &profit, &rate, &maxRate, &updated); err != nil {
		return nil, err
	}

	fields := []struct {
		dst *decimal.Decimal
		src string
	}{
		{&pos.Shares, shares}, {&pos.CostBasis, cost}, {&pos.AvgPrice, avg},
		{&pos.MarketValue, mv}, {&pos.Profit, profit},
		{&pos.ProfitRate, rate}, {&pos.MaxProfitRate, maxRate},
	}
	for _, f := range fields {
		d, err := decimal.NewFromString(f.src)
		if err != nil {
			return nil, err
		}
		*f.dst = d
	}

	t, err := time.Parse(time.RFC3339, updated)
	if err != nil {
		return nil, err
	}
	pos.UpdatedAt = t
	return &pos, nil
}

// SQLiteTransactionRepo is the SQLite TransactionRepo.
type SQLiteTransactionRepo struct {
	db *sql.DB
}

// NewSQLiteTransactionRepo creates a transaction repository over db.
func NewSQLiteTransactionRepo(db *sql.DB) *SQLiteTransactionRepo {
	return &SQLiteTransactionRepo{db: db}
}

func (r *SQLiteTransactionRepo) Save(ctx context.Context, tx *types.Transaction) error {
	var confirmedAt any
	if tx.ConfirmedAt != nil {
		confirmedAt = tx.ConfirmedAt.Format(time.RFC3339)
	}
	_, err := r.db.ExecContext(ctx, `INSERT OR REPLACE INTO transactions
		(id, owner, fund_code, type, amount, shares, status, broker_order_id,
		 confirmed_shares, confirmed_price, fail_reason, strategy_id, submitted_at, confirmed_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		tx.ID, tx.Owner, tx.FundCode, string(tx.Type),
		tx.Amount.String(), tx.Shares.String(), string(tx.Status), tx.BrokerOrderID,
		tx.ConfirmedShares.String(), tx.ConfirmedPrice.String(),
		tx.FailReason, tx.StrategyID,
		tx.SubmittedAt.Format(time.RFC3339), confirmedAt)
	if err != nil {
		return fmt.Errorf("save transaction %s: %w", tx.ID, err)
	}
	return nil
}

func (r *SQLiteTransactionRepo) Get(ctx context.Context, id string) (*types.Transaction, error) {
	row := r.db.QueryRowContext(ctx, txSelect+` WHERE id = ?`, id)
	tx, err := scanTransaction(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction %s: %w", id, err)
	}
	return tx, nil
}

func (r *SQLiteTransactionRepo) List(ctx context.Context) ([]*types.Transaction, error) {
	return r.list(ctx, txSelect+` ORDER BY submitted_at`)
}

func (r *SQLiteTransactionRepo) ListPending(ctx context.Context) ([]*types.Transaction, error) {
	return r.list(ctx, txSelect+` WHERE status = ? ORDER BY submitted_at`, string(types.TransactionStatusPending))
}

func (r *SQLiteTransactionRepo) ExistsOpenForStrategyOn(ctx context.Context, strategyID string, day time.Time) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM transactions
		WHERE strategy_id = ? AND status != ? AND substr(submitted_at, 1, 10) = ?`,
		strategyID, string(types.TransactionStatusFailed), day.Format("2006-01-02")).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check open transactions for %s: %w", strategyID, err)
	}
	return n > 0, nil
}

const txSelect = `SELECT id, owner, fund_code, type, amount, shares, status, broker_order_id,
	confirmed_shares, confirmed_price, fail_reason, strategy_id, submitted_at, confirmed_at
	FROM transactions`

func (r *SQLiteTransactionRepo) list(ctx context.Context, query string, args ...any) ([]*types.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []*types.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func scanTransaction(scan func(dest ...any) error) (*types.Transaction, error) {
	var tx types.Transaction
	var txType, status string
	var amount, shares, confShares, confPrice, submitted string
	var confirmedAt sql.NullString
	if err := scan(&tx.ID, &tx.Owner, &tx.FundCode, &txType, &amount, &shares, &status,
		&tx.BrokerOrderID, &confShares, &confPrice, &tx.FailReason, &tx.StrategyID,
		&submitted, &confirmedAt); err != nil {
		return nil, err
	}

	tx.Type = types.TradeType(txType)
	tx.Status = types.TransactionStatus(status)

	fields := []struct {
		dst *decimal.Decimal
		src string
	}{
		{&tx.Amount, amount}, {&tx.Shares, shares},
		{&tx.ConfirmedShares, confShares}, {&tx.ConfirmedPrice, confPrice},
	}
	for _, f := range fields {
		d, err := decimal.NewFromString(f.src)
		if err != nil {
			return nil, err
		}
		*f.dst = d
	}

	t, err := time.Parse(time.RFC3339, submitted)
	if err != nil {
		return nil, err
	}
	tx.SubmittedAt = t
	if confirmedAt.Valid {
		ct, err := time.Parse(time.RFC3339, confirmedAt.String)
		if err != nil {
			return nil, err
		}
		tx.ConfirmedAt = &ct
	}
	return &tx, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
