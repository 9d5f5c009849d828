package valuation

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sort"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/seenimoa/dcfvalue/pkg/models"
)

// DefaultIterations is the default Monte Carlo sample count.
const DefaultIterations = 1000

const (
	fcfVariation      = 0.10
	discountVariation = 0.02
	growthVariation   = 0.02
	minSimDiscount    = 0.04
	minSimGrowth      = 0.01
)

// Percentiles reported by a simulation.
var Percentiles = []int{5, 25, 50, 75, 95}

// SimulationOptions controls a Monte Carlo run. A zero Seed seeds from the
// clock. Runs with the same Seed and Workers produce identical values.
type SimulationOptions struct {
	Iterations int
	Seed       int64
	Workers    int
}

// MonteCarlo values rec once and then simulates around the base case.
func (e *Engine) MonteCarlo(ctx context.Context, rec *models.FinancialRecord, cik string, opts SimulationOptions) (*models.ValuationResult, *models.MonteCarloResult, error) {
	base, err := e.Value(ctx, rec, cik)
	if err != nil {
		return nil, nil, err
	}
	mc, err := e.Simulate(ctx, base, opts)
	if err != nil {
		return base, nil, err
	}
	return base, mc, nil
}

// Simulate perturbs free cash flow, discount rate and growth independently
// and re-runs only the projector. The WACC and growth estimates stay at
// their base-case values.
func (e *Engine) Simulate(ctx context.Context, base *models.ValuationResult, opts SimulationOptions) (*models.MonteCarloResult, error) {
	if base == nil {
		return nil, errors.New("simulate: nil base case")
	}
	rec := base.Record
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	n := opts.Iterations
	if n <= 0 {
		n = DefaultIterations
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	workers = min(workers, n)
	seed := opts.Seed
	if seed == 0 {
		seed = e.now().UnixNano()
	}

	in := ProjectionInput{
		FinalFCF: rec.FreeCashFlow,
		Growth:   base.Growth.ShortTermGrowth,
		Discount: base.Wacc.WACC,
		Ticker:   rec.Ticker,
		Horizon:  e.horizon,
		Context:  companyContext(base.Profile, &rec),
	}

	shards := make([][]float64, workers)
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		count := n / workers
		if w < n%workers {
			count++
		}
		g.Go(func() error {
			rng := rand.New(rand.NewSource(seed + int64(w)))
			out := make([]float64, 0, count)
			for i := 0; i < count; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				out = append(out, e.simulateOnce(rng, in, rec.SharesOutstanding))
			}
			shards[w] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	values := make([]float64, 0, n)
	for _, s := range shards {
		values = append(values, s...)
	}

	res := Summarize(values, rec.CurrentPrice)
	res.BaseCase = base.IntrinsicValue
	e.log.Info().
		Str("ticker", rec.Ticker).
		Int("iterations", n).
		Int("workers", workers).
		Float64("mean", res.Mean).
		Float64("probability_undervalued", res.ProbabilityUndervalued).
		Msg("monte carlo complete")
	return res, nil
}

func (e *Engine) simulateOnce(rng *rand.Rand, in ProjectionInput, shares float64) float64 {
	in.FinalFCF *= 1 + uniform(rng, fcfVariation)
	in.Discount = math.Max(minSimDiscount, in.Discount+uniform(rng, discountVariation))
	in.Growth = math.Max(minSimGrowth, in.Growth+uniform(rng, growthVariation))
	return e.Project(in).TotalDCFValue / shares
}

// uniform draws from U(-width, +width).
func uniform(rng *rand.Rand, width float64) float64 {
	return (rng.Float64()*2 - 1) * width
}

// percentile interpolates linearly between the order statistics around
// rank (n-1)p of an ascending sample. gonum's stat.Quantile only offers
// empirical-CDF modes, which disagree on even-sized samples.
func percentile(sorted []float64, p float64) float64 {
	h := float64(len(sorted)-1) * p
	lo := int(math.Floor(h))
	hi := int(math.Ceil(h))
	return sorted[lo] + (h-float64(lo))*(sorted[hi]-sorted[lo])
}

// Summarize computes distribution statistics over simulated per-share
// values. The returned Values are sorted ascending.
func Summarize(values []float64, price float64) *models.MonteCarloResult {
	sorted := make([]float64, 0, len(values))
	for _, v := range values {
		if isFinite(v) {
			sorted = append(sorted, v)
		}
	}
	sort.Float64s(sorted)

	res := &models.MonteCarloResult{
		CurrentPrice: price,
		Percentiles:  make(map[int]float64, len(Percentiles)),
		Values:       sorted,
	}
	if len(sorted) == 0 {
		return res
	}
	res.Mean = stat.Mean(sorted, nil)
	res.StdDev = stat.PopStdDev(sorted, nil)
	for _, p := range Percentiles {
		res.Percentiles[p] = percentile(sorted, float64(p)/100)
	}
	res.Median = median(sorted)

	var above int
	for _, v := range sorted {
		if v > price {
			above++
		}
	}
	res.ProbabilityUndervalued = float64(above) / float64(len(sorted)) * 100
	return res
}
