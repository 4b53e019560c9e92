package strategy

import (
	"encoding/json"
	"fmt"
	"time"
)

// Instance is one owner's configured strategy for one fund. Config is
// immutable after creation; GridLevel and LastExecutedAt are the mutable
// runtime state, persisted as separate fields so the config stays a plain
// value.
type Instance struct {
	ID             string     `json:"id"`
	Owner          string     `json:"owner"`
	FundCode       string     `json:"fundCode"`
	Config         Config     `json:"-"`
	Enabled        bool       `json:"enabled"`
	LastExecutedAt *time.Time `json:"lastExecutedAt,omitempty"`
	GridLevel      *int       `json:"gridLevel,omitempty"`
}

// ExecutedOn reports whether the instance already executed on the given
// calendar day. The scheduler uses this as its cheap same-day dedup check.
func (i *Instance) ExecutedOn(day time.Time) bool {
	if i.LastExecutedAt == nil {
		return false
	}
	y1, m1, d1 := i.LastExecutedAt.Date()
	y2, m2, d2 := day.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

type configEnvelope struct {
	Kind   Kind            `json:"kind"`
	Config json.RawMessage `json:"config"`
}

// MarshalConfig encodes a strategy config into a tagged JSON envelope for
// persistence and transport.
func MarshalConfig(cfg Config) ([]byte, error) {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal %s config: %w", cfg.Kind(), err)
	}
	return json.Marshal(configEnvelope{Kind: cfg.Kind(), Config: raw})
}

// UnmarshalConfig decodes a tagged JSON envelope back into a config value.
func UnmarshalConfig(data []byte) (Config, error) {
	var env configEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode config envelope: %w", err)
	}

	var cfg Config
	var err error
	switch env.Kind {
	case KindAutoInvest:
		var c AutoInvest
		err = json.Unmarshal(env.Config, &c)
		cfg = c
	case KindTakeProfitStopLoss:
		var c TakeProfitStopLoss
		err = json.Unmarshal(env.Config, &c)
		cfg = c
	case KindGridTrading:
		var c GridTrading
		err = json.Unmarshal(env.Config, &c)
		cfg = c
	case KindRebalance:
		var c Rebalance
		err = json.Unmarshal(env.Config, &c)
		cfg = c
	default:
		return nil, fmt.Errorf("%w: unknown strategy kind %q", ErrInvalidConfig, env.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s config: %w", env.Kind, err)
	}
	return cfg, nil
}
