package market

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fundpilot/trading-backend/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// SQLiteStore persists NAV points in SQLite. Decimals are stored as TEXT so
// values round-trip exactly.
type SQLiteStore struct {
	logger *zap.Logger
	db     *sql.DB
}

// NewSQLiteStore creates the nav_points table if needed and returns a store
// over the given database handle.
func NewSQLiteStore(logger *zap.Logger, db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{logger: logger.Named("nav-store"), db: db}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS nav_points (
		fund_code       TEXT NOT NULL,
		date            TEXT NOT NULL,
		nav             TEXT NOT NULL,
		accumulated_nav TEXT NOT NULL,
		growth_rate     TEXT NOT NULL,
		PRIMARY KEY (fund_code, date)
	)`); err != nil {
		return nil, fmt.Errorf("migrate nav_points: %w", err)
	}
	return s, nil
}

// Upsert inserts or replaces NAV points, one per (fund, date).
func (s *SQLiteStore) Upsert(ctx context.Context, points ...types.NavPoint) error {
	for _, pt := range points {
		_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO nav_points
			(fund_code, date, nav, accumulated_nav, growth_rate)
			VALUES (?,?,?,?,?)`,
			pt.FundCode, pt.Date.Format(dateLayout),
			pt.Nav.String(), pt.AccumulatedNav.String(), pt.GrowthRate.String(),
		)
		if err != nil {
			return fmt.Errorf("upsert nav %s %s: %w", pt.FundCode, pt.Date.Format(dateLayout), err)
		}
	}
	return nil
}

// LatestNav implements DataPort.
func (s *SQLiteStore) LatestNav(ctx context.Context, fundCode string) (*types.NavPoint, error) {
	row := s.db.QueryRowContext(ctx, `SELECT fund_code, date, nav, accumulated_nav, growth_rate
		FROM nav_points WHERE fund_code = ? ORDER BY date DESC LIMIT 1`, fundCode)

	pt, err := scanNavPoint(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNavNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query latest nav for %s: %w", fundCode, err)
	}
	return pt, nil
}

// HistoricalNav implements DataPort.
func (s *SQLiteStore) HistoricalNav(ctx context.Context, fundCode string, start, end time.Time) ([]types.NavPoint, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT fund_code, date, nav, accumulated_nav, growth_rate
		FROM nav_points WHERE fund_code = ? AND date >= ? AND date <= ? ORDER BY date ASC`,
		fundCode, start.Format(dateLayout), end.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("query historical nav for %s: %w", fundCode, err)
	}
	defer rows.Close()

	var out []types.NavPoint
	for rows.Next() {
		pt, err := scanNavPoint(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan nav row: %w", err)
		}
		out = append(out, *pt)
	}
	return out, rows.Err()
}

func scanNavPoint(scan func(dest ...any) error) (*types.NavPoint, error) {
	var pt types.NavPoint
	var date, nav, accNav, growth string
	if err := scan(&pt.FundCode, &date, &nav, &accNav, &growth); err != nil {
		return nil, err
	}

	var err error
	if pt.Date, err = time.Parse(dateLayout, date); err != nil {
		return nil, err
	}
	if pt.Nav, err = decimal.NewFromString(nav); err != nil {
		return nil, err
	}
	if pt.AccumulatedNav, err = decimal.NewFromString(accNav); err != nil {
		return nil, err
	}
	if pt.GrowthRate, err = decimal.NewFromString(growth); err != nil {
		return nil, err
	}
	return &pt, nil
}
