package market

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fundpilot/trading-backend/pkg/types"
)

// MemoryStore is an in-memory DataPort, used in tests and when no database
// is configured.
type MemoryStore struct {
	mu     sync.RWMutex
	points map[string][]types.NavPoint // ascending by date
}

// NewMemoryStore creates an empty in-memory NAV store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{points: make(map[string][]types.NavPoint)}
}

// Add inserts or replaces the point for its (fund, date), keeping the
// per-fund series sorted.
func (s *MemoryStore) Add(points ...types.NavPoint) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, pt := range points {
		series := s.points[pt.FundCode]
		replaced := false
		for i := range series {
			if sameDay(series[i].Date, pt.Date) {
				series[i] = pt
				replaced = true
				break
			}
		}
		if !replaced {
			series = append(series, pt)
			sort.Slice(series, func(i, j int) bool {
				return series[i].Date.Before(series[j].Date)
			})
		}
		s.points[pt.FundCode] = series
	}
}

// Upsert implements the same ingestion surface as the SQLite store.
func (s *MemoryStore) Upsert(ctx context.Context, points ...types.NavPoint) error {
	s.Add(points...)
	return nil
}

// LatestNav implements DataPort.
func (s *MemoryStore) LatestNav(ctx context.Context, fundCode string) (*types.NavPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	series := s.points[fundCode]
	if len(series) == 0 {
		return nil, ErrNavNotFound
	}
	pt := series[len(series)-1]
	return &pt, nil
}

// HistoricalNav implements DataPort.
func (s *MemoryStore) HistoricalNav(ctx context.Context, fundCode string, start, end time.Time) ([]types.NavPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []types.NavPoint
	for _, pt := range s.points[fundCode] {
		if pt.Date.Before(start) || pt.Date.After(end) {
			continue
		}
		out = append(out, pt)
	}
	return out, nil
}

func sameDay(a, b time.Time) bool {
	y1, m1, d1 := a.Date()
	y2, m2, d2 := b.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
