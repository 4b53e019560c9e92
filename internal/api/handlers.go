package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fundpilot/trading-backend/internal/backtest"
	"github.com/fundpilot/trading-backend/internal/metrics"
	"github.com/fundpilot/trading-backend/internal/storage"
	"github.com/fundpilot/trading-backend/internal/strategy"
	"github.com/fundpilot/trading-backend/pkg/types"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// strategyPayload is the wire form of a strategy instance. The config
// travels as a tagged envelope so each variant keeps its own JSON shape.
type strategyPayload struct {
	ID             string          `json:"id,omitempty"`
	Owner          string          `json:"owner"`
	FundCode       string          `json:"fundCode"`
	Enabled        bool            `json:"enabled"`
	LastExecutedAt *time.Time      `json:"lastExecutedAt,omitempty"`
	GridLevel      *int            `json:"gridLevel,omitempty"`
	Strategy       json.RawMessage `json:"strategy"`
}

func strategyToPayload(inst *strategy.Instance) (*strategyPayload, error) {
	env, err := strategy.MarshalConfig(inst.Config)
	if err != nil {
		return nil, err
	}
	return &strategyPayload{
		ID:             inst.ID,
		Owner:          inst.Owner,
		FundCode:       inst.FundCode,
		Enabled:        inst.Enabled,
		LastExecutedAt: inst.LastExecutedAt,
		GridLevel:      inst.GridLevel,
		Strategy:       env,
	}, nil
}

func (s *Server) handleCreateStrategy(w http.ResponseWriter, r *http.Request) {
	var payload strategyPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if payload.Owner == "" || payload.FundCode == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("owner and fundCode are required"))
		return
	}

	cfg, err := strategy.UnmarshalConfig(payload.Strategy)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := cfg.Validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	inst := &strategy.Instance{
		ID:       uuid.New().String(),
		Owner:    payload.Owner,
		FundCode: payload.FundCode,
		Config:   cfg,
		Enabled:  payload.Enabled,
	}
	if err := s.strategies.Save(r.Context(), inst); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	out, err := strategyToPayload(inst)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleListStrategies(w http.ResponseWriter, r *http.Request) {
	instances, err := s.strategies.List(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	payloads := make([]*strategyPayload, 0, len(instances))
	for _, inst := range instances {
		p, err := strategyToPayload(inst)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err)
			return
		}
		payloads = append(payloads, p)
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"strategies": payloads,
		"count":      len(payloads),
	})
}

func (s *Server) handleGetStrategy(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	inst, err := s.strategies.Get(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("strategy %s not found", id))
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	out, err := strategyToPayload(inst)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSetEnabled(enabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		inst, err := s.strategies.Get(r.Context(), id)
		if errors.Is(err, storage.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, fmt.Errorf("strategy %s not found", id))
			return
		}
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err)
			return
		}

		inst.Enabled = enabled
		if err := s.strategies.Save(r.Context(), inst); err != nil {
			s.writeError(w, http.StatusInternalServerError, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]any{"id": id, "enabled": enabled})
	}
}

func (s *Server) handleUpsertNav(w http.ResponseWriter, r *http.Request) {
	var points []types.NavPoint
	if err := json.NewDecoder(r.Body).Decode(&points); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	for _, pt := range points {
		if pt.FundCode == "" || pt.Date.IsZero() || !pt.Nav.IsPositive() {
			s.writeError(w, http.StatusBadRequest,
				errors.New("each point needs fundCode, date and a positive nav"))
			return
		}
	}

	if err := s.navRecorder.Upsert(r.Context(), points...); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"ingested": len(points)})
}

func (s *Server) handleGetNavHistory(w http.ResponseWriter, r *http.Request) {
	fundCode := mux.Vars(r)["fundCode"]

	start := time.Now().AddDate(-1, 0, 0)
	end := time.Now()
	if v := r.URL.Query().Get("start"); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid start date: %w", err))
			return
		}
		start = t
	}
	if v := r.URL.Query().Get("end"); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid end date: %w", err))
			return
		}
		end = t
	}

	points, err := s.market.HistoricalNav(r.Context(), fundCode, start, end)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"fundCode": fundCode,
		"points":   points,
		"count":    len(points),
	})
}

func (s *Server) handleListPositions(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")

	var (
		positions []*types.Position
		err       error
	)
	if owner != "" {
		positions, err = s.positions.ListByOwner(r.Context(), owner)
	} else {
		positions, err = s.positions.ListAll(r.Context())
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"positions": positions,
		"count":     len(positions),
	})
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	transactions, err := s.transactions.List(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"transactions": transactions,
		"count":        len(transactions),
	})
}

type backtestRequest struct {
	FundCode       string          `json:"fundCode"`
	StartDate      string          `json:"startDate"`
	EndDate        string          `json:"endDate"`
	InitialCapital decimal.Decimal `json:"initialCapital"`
	Strategy       json.RawMessage `json:"strategy"`
}

func (s *Server) handleRunBacktest(w http.ResponseWriter, r *http.Request) {
	var req backtestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	start, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid start date: %w", err))
		return
	}
	end, err := time.Parse(dateLayout, req.EndDate)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid end date: %w", err))
		return
	}
	if !req.InitialCapital.IsPositive() {
		s.writeError(w, http.StatusBadRequest, errors.New("initial capital must be positive"))
		return
	}

	cfg, err := strategy.UnmarshalConfig(req.Strategy)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := cfg.Validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	series, err := s.market.HistoricalNav(r.Context(), req.FundCode, start, end)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	result, err := s.simulator.Run(series, cfg, req.InitialCapital)
	if errors.Is(err, backtest.ErrNoHistoricalData) {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	metrics.BacktestsRun.Inc()
	s.writeJSON(w, http.StatusOK, result)
}

type rebalancePreviewRequest struct {
	Owner     string             `json:"owner"`
	Rebalance strategy.Rebalance `json:"rebalance"`
}

func (s *Server) handleRebalancePreview(w http.ResponseWriter, r *http.Request) {
	var req rebalancePreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if req.Owner == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("owner is required"))
		return
	}
	if err := req.Rebalance.Validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	orders, err := s.planner.Plan(r.Context(), req.Owner, req.Rebalance)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"orders": orders,
		"count":  len(orders),
	})
}
