package valuation

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/dcfvalue/pkg/models"
)

func baseCase() *models.ValuationResult {
	rec := testRecord()
	return &models.ValuationResult{
		Ticker:         rec.Ticker,
		Record:         *rec,
		Wacc:           models.WaccResult{WACC: 0.10},
		Growth:         models.GrowthResult{ShortTermGrowth: 0.05},
		Profile:        testProfile(),
		IntrinsicValue: 120,
	}
}

func TestSimulateReproducibleWithSeed(t *testing.T) {
	e := newTestEngine(Sources{})
	opts := SimulationOptions{Iterations: 200, Seed: 42, Workers: 4}

	a, err := e.Simulate(context.Background(), baseCase(), opts)
	require.NoError(t, err)
	b, err := e.Simulate(context.Background(), baseCase(), opts)
	require.NoError(t, err)

	assert.Equal(t, a.Values, b.Values)
	assert.Equal(t, a.Percentiles, b.Percentiles)
	assert.Equal(t, 120.0, a.BaseCase)
}

func TestSimulateDistribution(t *testing.T) {
	e := newTestEngine(Sources{})
	res, err := e.Simulate(context.Background(), baseCase(), SimulationOptions{Iterations: 500, Seed: 7, Workers: 3})
	require.NoError(t, err)

	require.Len(t, res.Values, 500)
	assert.True(t, sortedAscending(res.Values))
	for _, v := range res.Values {
		assert.False(t, math.IsNaN(v))
	}

	prev := math.Inf(-1)
	for _, p := range Percentiles {
		assert.GreaterOrEqual(t, res.Percentiles[p], prev, "p%d", p)
		prev = res.Percentiles[p]
	}
	assert.Equal(t, res.Percentiles[50], res.Median)
	assert.GreaterOrEqual(t, res.ProbabilityUndervalued, 0.0)
	assert.LessOrEqual(t, res.ProbabilityUndervalued, 100.0)
	assert.Greater(t, res.StdDev, 0.0)
}

func TestSimulateDefaultsIterations(t *testing.T) {
	e := newTestEngine(Sources{})
	res, err := e.Simulate(context.Background(), baseCase(), SimulationOptions{Seed: 1})
	require.NoError(t, err)
	assert.Len(t, res.Values, DefaultIterations)
}

func TestSimulateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := newTestEngine(Sources{})
	_, err := e.Simulate(ctx, baseCase(), SimulationOptions{Iterations: 100, Seed: 1, Workers: 2})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSimulateRejectsInvalidBase(t *testing.T) {
	e := newTestEngine(Sources{})
	_, err := e.Simulate(context.Background(), nil, SimulationOptions{})
	assert.Error(t, err)

	bad := baseCase()
	bad.Record.SharesOutstanding = 0
	_, err = e.Simulate(context.Background(), bad, SimulationOptions{})
	var invalid *models.ErrInvalidRecord
	assert.ErrorAs(t, err, &invalid)
}

func TestMonteCarloRunsBaseValuation(t *testing.T) {
	e := newTestEngine(Sources{
		Company: &fakeCompany{profile: testProfile()},
		Yields:  []YieldSource{fakeYield{name: "fred", v: 0.045}},
	})
	base, mc, err := e.MonteCarlo(context.Background(), testRecord(), "", SimulationOptions{Iterations: 50, Seed: 3})
	require.NoError(t, err)
	assert.Equal(t, base.IntrinsicValue, mc.BaseCase)
	assert.Len(t, mc.Values, 50)
}

func TestSummarize(t *testing.T) {
	res := Summarize([]float64{5, 3, math.NaN(), 1, 4, 2}, 2.5)

	assert.Equal(t, []float64{1, 2, 3, 4, 5}, res.Values)
	assert.InDelta(t, 3.0, res.Mean, 1e-12)
	assert.InDelta(t, math.Sqrt2, res.StdDev, 1e-12)
	assert.InDelta(t, 60.0, res.ProbabilityUndervalued, 1e-12)
	assert.Equal(t, 2.5, res.CurrentPrice)
	assert.InDelta(t, 3.0, res.Median, 1e-12)
	assert.InDelta(t, 1.2, res.Percentiles[5], 1e-12)
	assert.InDelta(t, 4.8, res.Percentiles[95], 1e-12)
}

func TestSummarizeEvenCount(t *testing.T) {
	res := Summarize([]float64{4, 1, 3, 2}, 0)
	assert.InDelta(t, 2.5, res.Median, 1e-12)
	assert.InDelta(t, 2.5, res.Percentiles[50], 1e-12)

	var ten []float64
	for i := 10; i >= 1; i-- {
		ten = append(ten, float64(i))
	}
	res = Summarize(ten, 0)
	assert.InDelta(t, 5.5, res.Median, 1e-12)
	assert.InDelta(t, 1.45, res.Percentiles[5], 1e-12)
	assert.InDelta(t, 3.25, res.Percentiles[25], 1e-12)
	assert.InDelta(t, 7.75, res.Percentiles[75], 1e-12)
	assert.InDelta(t, 9.55, res.Percentiles[95], 1e-12)
}

func TestSummarizeEmpty(t *testing.T) {
	res := Summarize(nil, 10)
	assert.Empty(t, res.Values)
	assert.Zero(t, res.Mean)
	assert.Zero(t, res.ProbabilityUndervalued)
}

func sortedAscending(xs []float64) bool {
	for i := 1; i < len(xs); i++ {
		if xs[i] < xs[i-1] {
			return false
		}
	}
	return true
}
