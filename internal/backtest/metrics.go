package backtest

import (
	"math"

	"github.com/shopspring/decimal"
)

// tradingDaysPerYear annualizes the daily Sharpe ratio.
const tradingDaysPerYear = 252

// MaxDrawdown returns the largest peak-to-trough decline over the value
// series, as a fraction of the running peak. Zero when the series never
// dips below its peak.
func MaxDrawdown(values []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}

	maxDD := decimal.Zero
	peak := values[0]
	for _, v := range values {
		if v.GreaterThan(peak) {
			peak = v
		}
		if peak.IsPositive() {
			dd := peak.Sub(v).Div(peak)
			if dd.GreaterThan(maxDD) {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// SharpeRatio computes the annualized Sharpe ratio of the daily returns of
// the value series, assuming a zero risk-free rate. Zero for fewer than two
// points or zero volatility.
func SharpeRatio(values []decimal.Decimal) decimal.Decimal {
	returns := dailyReturns(values)
	if len(returns) < 2 {
		return decimal.Zero
	}

	avg := mean(returns)
	sd := stdDev(returns)
	if sd == 0 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(avg / sd * math.Sqrt(tradingDaysPerYear))
}

// AnnualizedReturn converts a total return over elapsedDays into a
// compounded annual rate. Returns zero when the period is empty.
func AnnualizedReturn(totalReturn decimal.Decimal, elapsedDays float64) decimal.Decimal {
	if elapsedDays <= 0 {
		return decimal.Zero
	}
	tr, _ := totalReturn.Float64()
	if 1+tr <= 0 {
		return decimal.NewFromInt(-1)
	}
	annual := math.Pow(1+tr, 365/elapsedDays) - 1
	if math.IsNaN(annual) || math.IsInf(annual, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(annual)
}

func dailyReturns(values []decimal.Decimal) []float64 {
	if len(values) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		prev := values[i-1]
		if prev.IsZero() {
			continue
		}
		r, _ := values[i].Sub(prev).Div(prev).Float64()
		returns = append(returns, r)
	}
	return returns
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	var sumSquares float64
	for _, v := range values {
		diff := v - m
		sumSquares += diff * diff
	}
	return math.Sqrt(sumSquares / float64(len(values)-1))
}
