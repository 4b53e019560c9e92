// Package market provides access to fund NAV data: the port the engine
// consumes plus in-memory and SQLite-backed implementations.
package market

import (
	"context"
	"errors"
	"time"

	"github.com/fundpilot/trading-backend/pkg/types"
)

// ErrNavNotFound is returned when a fund has no NAV data available.
var ErrNavNotFound = errors.New("nav not found")

// DataPort is the market data interface the engine consumes. NAV points are
// produced by an external data-sync collaborator; this port only reads them.
type DataPort interface {
	// LatestNav returns the most recent NAV point for a fund, or
	// ErrNavNotFound when none exists.
	LatestNav(ctx context.Context, fundCode string) (*types.NavPoint, error)
	// HistoricalNav returns NAV points in [start, end], ascending by date.
	// The result may be empty.
	HistoricalNav(ctx context.Context, fundCode string, start, end time.Time) ([]types.NavPoint, error)
}
