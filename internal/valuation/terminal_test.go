package valuation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ── Projection ──

func TestProjectClampsShortTermGrowth(t *testing.T) {
	res := Project(ProjectionInput{FinalFCF: 100, Growth: 0.10, Discount: 0.09, Horizon: 10}, DefaultTables())

	assert.InDelta(t, 0.07, res.ShortTermGrowth, 1e-12)
	require.Len(t, res.ProjectedFCFs, 10)
	assert.InDelta(t, 107.0, res.ProjectedFCFs[0], 1e-9)
	assert.Less(t, res.TerminalGrowthRate, 0.07)
}

func TestProjectInvalidInputsUseDefaults(t *testing.T) {
	res := Project(ProjectionInput{FinalFCF: 100, Growth: math.NaN(), Discount: -1, Horizon: 10}, DefaultTables())

	assert.Equal(t, defaultDiscountRate, res.DiscountRate)
	assert.Equal(t, defaultShortGrowth, res.ShortTermGrowth)
	assert.False(t, math.IsNaN(res.TotalDCFValue))
}

func TestProjectIsIdempotent(t *testing.T) {
	in := ProjectionInput{
		FinalFCF: 2.5e9,
		Growth:   0.08,
		Discount: 0.095,
		Horizon:  10,
		Context:  CompanyContext{MarketCap: 3e11, Sector: "Technology"},
	}
	a := Project(in, DefaultTables())
	b := Project(in, DefaultTables())
	assert.Equal(t, a, b)
}

func TestProjectTotalDecreasesWithDiscountRate(t *testing.T) {
	prev := math.Inf(1)
	for _, d := range []float64{0.08, 0.09, 0.10, 0.11, 0.12, 0.15, 0.20} {
		res := Project(ProjectionInput{FinalFCF: 100, Growth: 0.05, Discount: d, Horizon: 10}, DefaultTables())
		assert.Less(t, res.TotalDCFValue, prev, "discount %.2f", d)
		prev = res.TotalDCFValue
	}
}

func TestProjectTerminalDominanceClamp(t *testing.T) {
	res := Project(ProjectionInput{FinalFCF: 100, Growth: 0.02, Discount: 0.04, Horizon: 10}, DefaultTables())

	assert.LessOrEqual(t, res.TerminalValuePercentage, 0.75+1e-9)
	assert.InDelta(t, 0.75, res.TerminalValuePercentage, 1e-9)

	var sum float64
	for _, pv := range res.PVFCFs {
		sum += pv
	}
	assert.InDelta(t, sum+res.PVTerminalValue, res.TotalDCFValue, 1e-6)
}

func TestProjectNegativeCashFlow(t *testing.T) {
	res := Project(ProjectionInput{FinalFCF: -100, Growth: 0.05, Discount: 0.10, Horizon: 10}, DefaultTables())
	assert.False(t, math.IsNaN(res.TotalDCFValue))
	assert.Equal(t, 0.0, res.TerminalValuePercentage)
}

func TestProjectUsesEngineHorizon(t *testing.T) {
	e := NewEngine(Sources{}, WithHorizon(5))
	res := e.Project(ProjectionInput{FinalFCF: 100, Growth: 0.05, Discount: 0.1})
	assert.Len(t, res.GrowthRates, 5)
}

// ── Terminal growth ──

func TestTerminalGrowthBelowDiscountRate(t *testing.T) {
	tables := DefaultTables()
	contexts := []CompanyContext{
		{},
		{MarketCap: 3e12, Sector: "Technology"},
		{MarketCap: 5e8, Industry: "Utilities—Regulated Electric"},
		{MarketCap: 4e10, Sector: "Industrials"},
	}
	for _, cc := range contexts {
		for _, w := range []float64{0.03, 0.05, 0.06, 0.09, 0.2} {
			g := TerminalGrowth(cc, w, tables)
			assert.LessOrEqual(t, g, w-0.02+1e-12, "ctx %+v wacc %.2f", cc, w)
		}
	}
}

func TestTerminalGrowthAdjustments(t *testing.T) {
	tables := DefaultTables()
	cases := []struct {
		name string
		cc   CompanyContext
		want float64
	}{
		{"no context", CompanyContext{}, 0.0275},
		{"mega tech", CompanyContext{MarketCap: 2e12, Sector: "Technology"}, 0.018},
		{"large defensive", CompanyContext{MarketCap: 2e11, Sector: "Utilities"}, 0.017},
		{"mid cyclical", CompanyContext{MarketCap: 5e9, Sector: "Industrials"}, 0.025},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, TerminalGrowth(tc.cc, 0.10, tables), 1e-12)
		})
	}
}

// ── Schedule ──

func TestGrowthScheduleTransitions(t *testing.T) {
	rates := GrowthSchedule(0.07, 0.02, 10)
	require.Len(t, rates, 10)
	for i := 0; i < 3; i++ {
		assert.Equal(t, 0.07, rates[i])
	}
	for i := 3; i < 10; i++ {
		assert.LessOrEqual(t, rates[i], rates[i-1])
		assert.Greater(t, rates[i], 0.02-1e-12)
	}
	assert.InDelta(t, 0.02, rates[9], 0.001)
}

func TestGrowthScheduleShortHorizon(t *testing.T) {
	rates := GrowthSchedule(0.05, 0.02, 3)
	assert.Equal(t, []float64{0.05, 0.05, 0.05}, rates)
}
