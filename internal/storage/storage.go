// Package storage provides the persisted-entity repositories: strategy
// instances, positions and transactions, with in-memory and SQLite
// implementations.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/fundpilot/trading-backend/internal/strategy"
	"github.com/fundpilot/trading-backend/pkg/types"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// StrategyRepo persists strategy instances, including the mutable runtime
// state (last execution, grid level) kept separate from the config.
type StrategyRepo interface {
	Save(ctx context.Context, inst *strategy.Instance) error
	Get(ctx context.Context, id string) (*strategy.Instance, error)
	List(ctx context.Context) ([]*strategy.Instance, error)
	ListEnabled(ctx context.Context) ([]*strategy.Instance, error)
}

// PositionRepo persists positions, one per (owner, fund).
type PositionRepo interface {
	Save(ctx context.Context, pos *types.Position) error
	Get(ctx context.Context, owner, fundCode string) (*types.Position, error)
	ListByOwner(ctx context.Context, owner string) ([]*types.Position, error)
	ListAll(ctx context.Context) ([]*types.Position, error)
}

// TransactionRepo persists submitted trades.
type TransactionRepo interface {
	Save(ctx context.Context, tx *types.Transaction) error
	Get(ctx context.Context, id string) (*types.Transaction, error)
	List(ctx context.Context) ([]*types.Transaction, error)
	ListPending(ctx context.Context) ([]*types.Transaction, error)
	// ExistsOpenForStrategyOn reports whether a PENDING or CONFIRMED
	// transaction exists for the strategy on the given calendar day. The
	// execution path uses it to keep periodic strategies idempotent per day.
	ExistsOpenForStrategyOn(ctx context.Context, strategyID string, day time.Time) (bool, error)
}
