package rebalance

import (
	"testing"

	"github.com/fundpilot/trading-backend/internal/strategy"
	"github.com/fundpilot/trading-backend/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestComputeOrdersWithinThreshold(t *testing.T) {
	current := map[string]decimal.Decimal{
		"000001": dec("0.62"),
		"000002": dec("0.38"),
	}
	targets := []strategy.TargetAllocation{
		{FundCode: "000001", TargetWeight: dec("0.6")},
		{FundCode: "000002", TargetWeight: dec("0.4")},
	}

	orders := ComputeOrders(current, targets, dec("10000"), dec("0.05"))
	assert.Empty(t, orders, "deviations inside the threshold must not trade")
}

func TestComputeOrdersOverweightSellsUnderweightBuys(t *testing.T) {
	current := map[string]decimal.Decimal{
		"000001": dec("0.75"),
		"000002": dec("0.25"),
	}
	targets := []strategy.TargetAllocation{
		{FundCode: "000001", TargetWeight: dec("0.6")},
		{FundCode: "000002", TargetWeight: dec("0.4")},
	}

	orders := ComputeOrders(current, targets, dec("10000"), dec("0.05"))
	require.Len(t, orders, 2)

	assert.Equal(t, "000001", orders[0].FundCode)
	assert.Equal(t, types.TradeTypeSell, orders[0].Type)
	assert.True(t, orders[0].Amount.Equal(dec("1500")), "sell amount: got %s", orders[0].Amount)

	assert.Equal(t, "000002", orders[1].FundCode)
	assert.Equal(t, types.TradeTypeBuy, orders[1].Type)
	assert.True(t, orders[1].Amount.Equal(dec("1500")), "buy amount: got %s", orders[1].Amount)
}

func TestComputeOrdersMissingFundIsZeroWeight(t *testing.T) {
	current := map[string]decimal.Decimal{
		"000001": dec("1"),
	}
	targets := []strategy.TargetAllocation{
		{FundCode: "000001", TargetWeight: dec("0.7")},
		{FundCode: "000002", TargetWeight: dec("0.3")},
	}

	orders := ComputeOrders(current, targets, dec("10000"), dec("0.05"))
	require.Len(t, orders, 2)
	assert.Equal(t, types.TradeTypeBuy, orders[1].Type)
	assert.True(t, orders[1].Amount.Equal(dec("3000")), "full target slice: got %s", orders[1].Amount)
}

func TestComputeOrdersZeroValuePortfolio(t *testing.T) {
	targets := []strategy.TargetAllocation{
		{FundCode: "000001", TargetWeight: dec("1")},
	}
	orders := ComputeOrders(nil, targets, decimal.Zero, dec("0.05"))
	assert.Nil(t, orders)
}

func TestCurrentWeights(t *testing.T) {
	positions := []*types.Position{
		{FundCode: "000001", MarketValue: dec("6000")},
		{FundCode: "000002", MarketValue: dec("4000")},
	}

	weights, total := CurrentWeights(positions)
	require.True(t, total.Equal(dec("10000")))
	assert.True(t, weights["000001"].Equal(dec("0.6")))
	assert.True(t, weights["000002"].Equal(dec("0.4")))
}

func TestCurrentWeightsEmpty(t *testing.T) {
	weights, total := CurrentWeights(nil)
	assert.Nil(t, weights)
	assert.True(t, total.IsZero())
}
