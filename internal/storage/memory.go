package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fundpilot/trading-backend/internal/strategy"
	"github.com/fundpilot/trading-backend/pkg/types"
)

// MemoryStrategyRepo is an in-memory StrategyRepo.
type MemoryStrategyRepo struct {
	mu        sync.RWMutex
	instances map[string]*strategy.Instance
}

// NewMemoryStrategyRepo creates an empty in-memory strategy repository.
func NewMemoryStrategyRepo() *MemoryStrategyRepo {
	return &MemoryStrategyRepo{instances: make(map[string]*strategy.Instance)}
}

func (r *MemoryStrategyRepo) Save(ctx context.Context, inst *strategy.Instance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *inst
	r.instances[inst.ID] = &cp
	return nil
}

func (r *MemoryStrategyRepo) Get(ctx context.Context, id string) (*strategy.Instance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.instances[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *inst
	return &cp, nil
}

func (r *MemoryStrategyRepo) List(ctx context.Context) ([]*strategy.Instance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*strategy.Instance, 0, len(r.instances))
	for _, inst := range r.instances {
		cp := *inst
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryStrategyRepo) ListEnabled(ctx context.Context) ([]*strategy.Instance, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, inst := range all {
		if inst.Enabled {
			out = append(out, inst)
		}
	}
	return out, nil
}

// MemoryPositionRepo is an in-memory PositionRepo keyed by (owner, fund).
type MemoryPositionRepo struct {
	mu        sync.RWMutex
	positions map[string]*types.Position
}

// NewMemoryPositionRepo creates an empty in-memory position repository.
func NewMemoryPositionRepo() *MemoryPositionRepo {
	return &MemoryPositionRepo{positions: make(map[string]*types.Position)}
}

func positionKey(owner, fundCode string) string { return owner + "/" + fundCode }

func (r *MemoryPositionRepo) Save(ctx context.Context, pos *types.Position) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *pos
	r.positions[positionKey(pos.Owner, pos.FundCode)] = &cp
	return nil
}

func (r *MemoryPositionRepo) Get(ctx context.Context, owner, fundCode string) (*types.Position, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pos, ok := r.positions[positionKey(owner, fundCode)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *pos
	return &cp, nil
}

func (r *MemoryPositionRepo) ListByOwner(ctx context.Context, owner string) ([]*types.Position, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*types.Position
	for _, pos := range r.positions {
		if pos.Owner == owner {
			cp := *pos
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FundCode < out[j].FundCode })
	return out, nil
}

func (r *MemoryPositionRepo) ListAll(ctx context.Context) ([]*types.Position, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*types.Position, 0, len(r.positions))
	for _, pos := range r.positions {
		cp := *pos
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// MemoryTransactionRepo is an in-memory TransactionRepo.
type MemoryTransactionRepo struct {
	mu           sync.RWMutex
	transactions map[string]*types.Transaction
}

// NewMemoryTransactionRepo creates an empty in-memory transaction repository.
func NewMemoryTransactionRepo() *MemoryTransactionRepo {
	return &MemoryTransactionRepo{transactions: make(map[string]*types.Transaction)}
}

func (r *MemoryTransactionRepo) Save(ctx context.Context, tx *types.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *tx
	r.transactions[tx.ID] = &cp
	return nil
}

func (r *MemoryTransactionRepo) Get(ctx context.Context, id string) (*types.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tx, ok := r.transactions[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *tx
	return &cp, nil
}

func (r *MemoryTransactionRepo) List(ctx context.Context) ([]*types.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*types.Transaction, 0, len(r.transactions))
	for _, tx := range r.transactions {
		cp := *tx
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	return out, nil
}

func (r *MemoryTransactionRepo) ListPending(ctx context.Context) ([]*types.Transaction, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, tx := range all {
		if tx.Status == types.TransactionStatusPending {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (r *MemoryTransactionRepo) ExistsOpenForStrategyOn(ctx context.Context, strategyID string, day time.Time) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	y, m, d := day.Date()
	for _, tx := range r.transactions {
		if tx.StrategyID != strategyID || tx.Status == types.TransactionStatusFailed {
			continue
		}
		ty, tm, td := tx.SubmittedAt.Date()
		if ty == y && tm == m && td == d {
			return true, nil
		}
	}
	return false, nil
}
