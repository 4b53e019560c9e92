package backtest

import (
	"errors"
	"testing"
	"time"

	"github.com/fundpilot/trading-backend/internal/strategy"
	"github.com/fundpilot/trading-backend/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func navSeries(fund string, start time.Time, navs ...string) []types.NavPoint {
	points := make([]types.NavPoint, 0, len(navs))
	for i, n := range navs {
		points = append(points, types.NavPoint{
			FundCode: fund,
			Date:     start.AddDate(0, 0, i),
			Nav:      dec(n),
		})
	}
	return points
}

func TestRunEmptySeries(t *testing.T) {
	sim := NewSimulator(zap.NewNop())
	_, err := sim.Run(nil, strategy.AutoInvest{
		Amount:    dec("1000"),
		Frequency: strategy.FrequencyDaily,
		StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}, dec("10000"))
	if !errors.Is(err, ErrNoHistoricalData) {
		t.Fatalf("got %v, want ErrNoHistoricalData", err)
	}
}

func TestRunDailyAutoInvest(t *testing.T) {
	sim := NewSimulator(zap.NewNop())
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	series := navSeries("000001", start, "1", "2", "3")

	cfg := strategy.AutoInvest{
		Amount:    dec("1000"),
		Frequency: strategy.FrequencyDaily,
		StartDate: start,
	}
	result, err := sim.Run(series, cfg, dec("3000"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	// Buys of 1000 at navs 1, 2 and 3: 1000 + 500 + 333.33.. shares.
	if result.TradesCount != 3 {
		t.Fatalf("trades: got %d, want 3", result.TradesCount)
	}
	wantShares := dec("1000").Add(dec("500")).Add(dec("1000").Div(dec("3")))
	wantFinal := wantShares.Mul(dec("3"))
	if !result.FinalValue.Sub(wantFinal).Abs().LessThan(dec("0.01")) {
		t.Errorf("final value: got %s, want ~%s", result.FinalValue, wantFinal)
	}

	wantReturn := wantFinal.Sub(dec("3000")).Div(dec("3000"))
	if !result.TotalReturn.Sub(wantReturn).Abs().LessThan(dec("0.0001")) {
		t.Errorf("total return: got %s, want ~%s", result.TotalReturn, wantReturn)
	}
}

func TestRunSkipsUnaffordableBuys(t *testing.T) {
	sim := NewSimulator(zap.NewNop())
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	series := navSeries("000001", start, "1", "1", "1")

	cfg := strategy.AutoInvest{
		Amount:    dec("1000"),
		Frequency: strategy.FrequencyDaily,
		StartDate: start,
	}
	// Capital covers only one buy; the evaluator holds once cash runs out.
	result, err := sim.Run(series, cfg, dec("1000"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.TradesCount != 1 {
		t.Errorf("trades: got %d, want 1", result.TradesCount)
	}
}

func TestRunTakeProfitRoundTrip(t *testing.T) {
	sim := NewSimulator(zap.NewNop())
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	// Invest at 1.0, then the nav runs up 30% and the full position is sold.
	series := navSeries("000001", start, "1", "1.1", "1.3")

	invest := strategy.AutoInvest{
		Amount:    dec("1000"),
		Frequency: strategy.FrequencyDaily,
		StartDate: start,
	}
	result, err := sim.Run(series, invest, dec("1000"))
	if err != nil {
		t.Fatalf("invest run: %v", err)
	}
	if !result.FinalValue.Equal(dec("1300")) {
		t.Errorf("final value: got %s, want 1300", result.FinalValue)
	}

	tp := strategy.TakeProfitStopLoss{
		TargetRate:   dec("0.2"),
		StopLossRate: dec("-0.5"),
		SellRatio:    dec("1"),
	}
	// With no position and no buys the evaluator never fires.
	result, err = sim.Run(series, tp, dec("1000"))
	if err != nil {
		t.Fatalf("tp run: %v", err)
	}
	if result.TradesCount != 0 {
		t.Errorf("tp trades: got %d, want 0", result.TradesCount)
	}
	if !result.TotalReturn.IsZero() {
		t.Errorf("tp total return: got %s, want 0", result.TotalReturn)
	}
}

func TestRunGridFullCycle(t *testing.T) {
	sim := NewSimulator(zap.NewNop())
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	// Seed at level 2, drop to level 0 (two buys), recover to level 2 (two
	// sells).
	series := navSeries("000001", start, "1.5", "1.3", "1.1", "1.3", "1.5")

	cfg := strategy.GridTrading{
		PriceLow:      dec("1.0"),
		PriceHigh:     dec("2.0"),
		GridCount:     5,
		AmountPerGrid: dec("100"),
	}
	result, err := sim.Run(series, cfg, dec("1000"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	buys, sells := 0, 0
	for _, trade := range result.Trades {
		switch trade.Type {
		case types.TradeTypeBuy:
			buys++
		case types.TradeTypeSell:
			sells++
		}
	}
	if buys != 3 || sells != 2 {
		t.Errorf("trades: got %d buys / %d sells, want 3 / 2", buys, sells)
	}

	// Buying low and selling high inside the grid must not lose money.
	if result.TotalReturn.IsNegative() {
		t.Errorf("total return: got %s, want >= 0", result.TotalReturn)
	}
}

func TestRunSellClampsResidualShares(t *testing.T) {
	sim := NewSimulator(zap.NewNop())
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	// One buy at 3 (odd shares), then a full take-profit sell.
	series := navSeries("000001", start, "3", "4")

	cfg := strategy.AutoInvest{
		Amount:     dec("1000"),
		Frequency:  strategy.FrequencyMonthly,
		DayOfMonth: 1,
		StartDate:  start,
	}
	result, err := sim.Run(series, cfg, dec("1000"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.TradesCount != 1 {
		t.Fatalf("trades: got %d, want 1", result.TradesCount)
	}
	// 333.33.. shares at nav 4.
	want := dec("1000").Div(dec("3")).Mul(dec("4"))
	if !result.FinalValue.Sub(want).Abs().LessThan(dec("0.01")) {
		t.Errorf("final value: got %s, want ~%s", result.FinalValue, want)
	}
}
