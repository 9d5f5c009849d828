package valuation

import (
	"context"
	"math"
	"slices"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/seenimoa/dcfvalue/pkg/models"
)

const (
	// accepted range for any single year-over-year rate
	minYoY = -0.5
	maxYoY = 1.0

	fallbackAnalystGrowth = 0.07
	analystHighMark       = 0.3
	analystCeiling        = 0.5
	analystHighDiscount   = 0.8

	poorFitR2      = 0.3
	poorFitDamping = 0.7

	megaCapThreshold = 5e11
	// share of the excess over the cap kept for mega caps
	megaCapExcessKept = 0.3
	// extension allowed above the cap with strong evidence
	capExtension = 1.2

	// size of the bump applied to a negative final growth rate
	negativeGrowthBump = 0.03
	minGrowth          = 0.01

	unknownSize = "Unknown"
	unknownCap  = 0.15
)

// Evidence is one growth signal offered to the combiner.
type Evidence struct {
	Kind        string
	Value       float64
	Weight      float64
	Reliability string
	Points      int // number of rates behind Value
}

// EstimateGrowth estimates the short-term growth rate for ticker. The cik
// is accepted for parity with the data collaborators and is not used here.
func (e *Engine) EstimateGrowth(ctx context.Context, ticker, cik string, rec *models.FinancialRecord) models.GrowthResult {
	return e.estimateGrowth(ctx, ticker, cik, rec, e.snapshot(ctx, ticker))
}

func (e *Engine) estimateGrowth(ctx context.Context, ticker, _ string, rec *models.FinancialRecord, snap *snapshot) models.GrowthResult {
	log := e.log.With().Str("ticker", ticker).Str("estimator", "growth").Logger()

	fcf := fcfSeries(rec, snap.stmts())
	revenue := revenueSeries(rec, snap.stmts())
	if len(fcf) < 2 || len(revenue) < 2 {
		log.Warn().Int("fcf_points", len(fcf)).Int("revenue_points", len(revenue)).
			Msg("insufficient history, using default growth")
		return e.defaultGrowth(ctx, ticker, snap)
	}

	t := e.tables
	fcfRates := yoyRates(fcf)
	revRates := yoyRates(revenue)
	histGrowth, histOK := dampen(fcfRates)
	revGrowth, revOK := dampen(revRates)
	analyst := e.analystGrowth(snap, rec, log)
	regression, regOK := RegressionGrowth(fcf)

	mcap := e.terminalContext(snap, rec).MarketCap
	category := t.Category(snap.industry(), snap.sector())
	size, maxCap := e.sizeAndCap(snap, mcap, category, revenue, log)

	var evidence []Evidence
	if histOK {
		evidence = append(evidence, Evidence{Kind: models.GrowthHistoricalFCF, Value: histGrowth, Points: len(fcfRates)})
	}
	if revOK {
		evidence = append(evidence, Evidence{Kind: models.GrowthRevenue, Value: revGrowth, Points: len(revRates)})
	}
	evidence = append(evidence, Evidence{Kind: models.GrowthAnalyst, Value: analyst, Reliability: models.ReliabilityMedium})
	if regOK {
		evidence = append(evidence, Evidence{Kind: models.GrowthRegression, Value: regression, Reliability: models.ReliabilityMedium})
	}
	valid := t.weighEvidence(evidence, category)

	res := models.GrowthResult{
		CompanySize:      size.Name,
		IndustryCategory: category.Name,
		MaxGrowthCap:     maxCap,
		GrowthComponents: make(map[string]models.GrowthComponent, len(valid)),
		AnalystEstimate:  models.Float(analyst),
	}
	if histOK {
		res.HistoricalFCFGrowth = models.Float(histGrowth)
	}
	if revOK {
		res.RevenueGrowth = models.Float(revGrowth)
	}
	if regOK {
		res.RegressionGrowth = models.Float(regression)
	}
	for _, ev := range valid {
		res.GrowthComponents[ev.Kind] = models.GrowthComponent{Value: ev.Value, Weight: ev.Weight, Reliability: ev.Reliability}
	}

	var g float64
	if len(valid) == 0 {
		g = size.Growth + category.DefaultGrowth
		log.Info().Float64("growth", g).Msg("no valid growth estimates, using conservative default")
	} else {
		g = weightedMean(valid)
		g = capGrowth(g, maxCap, mcap, valid)
	}
	if g < 0 {
		g = math.Max(minGrowth, g+negativeGrowthBump)
	}
	if category.Name == "high_growth" {
		if band, ok := t.ExpectedRanges.Lookup(ticker, e.now(), t.MaxOverrideAge); ok {
			g = math.Min(band.Clamp(g), maxCap*capExtension)
		}
	}

	res.ShortTermGrowth = g
	log.Debug().Float64("growth", g).Float64("cap", maxCap).Str("size", size.Name).
		Str("category", category.Name).Int("estimates", len(valid)).Msg("growth estimated")
	return res
}

// --- Inputs ---

// fcfSeries returns free cash flow, most recent first. The record's history
// wins; otherwise annual then quarterly cash-flow statements.
func fcfSeries(rec *models.FinancialRecord, st *models.Statements) []float64 {
	if rec != nil && len(rec.HistoricalFCF) >= 2 {
		return rec.HistoricalFCF
	}
	for _, cf := range []*models.Statement{st.CashFlow, st.QuarterlyCashFlow} {
		if s := statementFCF(cf); len(s) >= 2 {
			return s
		}
	}
	return nil
}

// statementFCF reads the free-cash-flow row, else operating cash flow less
// the absolute capital expenditure.
func statementFCF(cf *models.Statement) []float64 {
	if s := finiteSeries(cf.Series(models.ItemFreeCashFlow)); len(s) > 0 {
		return s
	}
	ocf := cf.Series(models.ItemOperatingCashFlow)
	capex := cf.Series(models.ItemCapitalExpenditure)
	n := min(len(ocf), len(capex))
	out := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		v := ocf[i] - math.Abs(capex[i])
		if !isFinite(v) {
			break
		}
		out = append(out, v)
	}
	return out
}

func revenueSeries(rec *models.FinancialRecord, st *models.Statements) []float64 {
	if rec != nil && len(rec.HistoricalRevenue) >= 2 {
		return rec.HistoricalRevenue
	}
	for _, inc := range []*models.Statement{st.Income, st.QuarterlyIncome} {
		if s := finiteSeries(inc.Series(models.ItemTotalRevenue)); len(s) >= 2 {
			return s
		}
	}
	return nil
}

// finiteSeries truncates s at its first missing value.
func finiteSeries(s []float64) []float64 {
	for i, v := range s {
		if !isFinite(v) {
			return s[:i]
		}
	}
	return s
}

// --- Historical rates ---

// yoyRates computes year-over-year rates over a most-recent-first series,
// skipping non-positive bases and rates outside [-50%, +100%].
func yoyRates(series []float64) []float64 {
	var rates []float64
	for i := 1; i < len(series); i++ {
		prev := series[i]
		if prev <= 0 {
			continue
		}
		r := series[i-1]/prev - 1
		if r >= minYoY && r <= maxYoY {
			rates = append(rates, r)
		}
	}
	return rates
}

// median returns the median of xs without modifying it.
func median(xs []float64) float64 {
	s := slices.Clone(xs)
	slices.Sort(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

// dampen takes the median of rates and compresses extremes: medians over
// 30% shrink non-linearly, and medians under -20% become -10%.
func dampen(rates []float64) (float64, bool) {
	if len(rates) == 0 {
		return 0, false
	}
	g := median(rates)
	switch {
	case g > 0.3:
		g = 0.3 - 0.1*(g-0.3)/0.2
	case g < -0.2:
		g = -0.1
	}
	return g, true
}

// --- Analyst blend ---

type signal struct {
	value, weight float64
}

func (e *Engine) analystGrowth(snap *snapshot, rec *models.FinancialRecord, log zerolog.Logger) float64 {
	var signals []signal
	add := func(v, w float64, b Band) {
		if b.Contains(v) {
			signals = append(signals, signal{v, w})
		}
	}
	field := func(get func(p *models.CompanyProfile) *float64) (float64, bool) { return snap.profileValue(get) }

	if v, ok := field(func(p *models.CompanyProfile) *float64 { return p.EarningsGrowth }); ok {
		add(v, 0.4, Band{0, 1})
	}
	if target, ok := field(func(p *models.CompanyProfile) *float64 { return p.TargetMeanPrice }); ok && target > 0 {
		price, ok := field(func(p *models.CompanyProfile) *float64 { return p.CurrentPrice })
		if (!ok || price <= 0) && rec != nil {
			price, ok = rec.CurrentPrice, true
		}
		if ok && price > 0 {
			add(target/price-1, 0.2, Band{0, 0.5})
		}
	}
	trailing, tok := field(func(p *models.CompanyProfile) *float64 { return p.TrailingPE })
	forward, fok := field(func(p *models.CompanyProfile) *float64 { return p.ForwardPE })
	if tok && fok && trailing > 0 && forward > 0 {
		add(trailing/forward-1, 0.2, Band{0, 0.5})
	}
	if v, ok := field(func(p *models.CompanyProfile) *float64 { return p.EarningsQuarterlyGrowth }); ok {
		add(v, 0.2, Band{-0.5, 1})
	}
	if snap.industry() != "" || snap.sector() != "" {
		rate, _ := e.tables.IndustryGrowthRate(snap.industry(), snap.sector())
		signals = append(signals, signal{rate, 0.1})
	}

	if len(signals) == 0 {
		log.Debug().Msg("no analyst signals, using market average")
		return fallbackAnalystGrowth
	}
	var sum, weights float64
	for _, s := range signals {
		sum += s.value * s.weight
		weights += s.weight
	}
	g := sum / weights
	if g > analystHighMark {
		g = math.Min(g, analystCeiling) * analystHighDiscount
	}
	return g
}

// --- Regression ---

// RegressionGrowth fits ln(FCF) against the year index (oldest first) and
// returns e^slope - 1, damped on a poor fit and clamped to [-20%, +30%].
// series is most recent first and needs at least three points.
func RegressionGrowth(series []float64) (float64, bool) {
	if len(series) < 3 {
		return 0, false
	}
	minPositive := math.Inf(1)
	for _, v := range series {
		if v > 0 && v < minPositive {
			minPositive = v
		}
	}
	if math.IsInf(minPositive, 1) {
		minPositive = 1
	}
	small := minPositive * 0.1

	n := len(series)
	years := make([]float64, n)
	logs := make([]float64, n)
	for i := 0; i < n; i++ {
		v := series[n-1-i]
		if !(v > 0) {
			v = small
		}
		years[i] = float64(i)
		logs[i] = math.Log(v)
	}

	alpha, slope := stat.LinearRegression(years, logs, nil, false)
	g := math.Exp(slope) - 1
	if !isFinite(g) {
		return yoyFallback(series, small)
	}
	if r2 := stat.RSquared(years, logs, nil, alpha, slope); !(r2 >= poorFitR2) {
		g *= poorFitDamping
	}
	return Band{-0.2, 0.3}.Clamp(g), true
}

// yoyFallback is the median year-over-year rate with values floored at small.
func yoyFallback(series []float64, small float64) (float64, bool) {
	var rates []float64
	for i := 1; i < len(series); i++ {
		r := math.Max(series[i-1], small)/math.Max(series[i], small) - 1
		if r >= minYoY && r <= maxYoY {
			rates = append(rates, r)
		}
	}
	if len(rates) == 0 {
		return 0, false
	}
	return median(rates), true
}

// --- Size and cap ---

// sizeAndCap classifies the company and derives its growth cap.
func (e *Engine) sizeAndCap(snap *snapshot, mcap float64, category Category, revenue []float64, log zerolog.Logger) (SizeTier, float64) {
	t := e.tables
	if snap.profile == nil && mcap <= 0 {
		return SizeTier{Name: unknownSize, Cap: unknownCap, Growth: 0.05}, unknownCap
	}
	tier := t.SizeTier(mcap)
	maxCap := tier.Cap + category.CapAdjustment

	if mcap > megaCapThreshold && category.Name == "high_growth" && len(revenue) >= 3 {
		newest, oldest := revenue[0], revenue[len(revenue)-1]
		if oldest > 0 && newest > 0 {
			cagr := math.Pow(newest/oldest, 1/float64(len(revenue)-1)) - 1
			if cagr > maxCap {
				raised := math.Max(maxCap, math.Min(cagr*0.9, maxCap+0.05))
				log.Debug().Float64("cagr", cagr).Float64("cap", raised).Msg("growth cap raised on revenue history")
				maxCap = raised
			}
		}
	}
	return tier, t.CapBand.Clamp(maxCap)
}

// --- Combination ---

// weighEvidence assigns weights to the estimates that pass their bounds.
func (t Tables) weighEvidence(evidence []Evidence, category Category) []Evidence {
	valid := make([]Evidence, 0, len(evidence))
	for _, ev := range evidence {
		bounds, ok := t.EstimateBounds[ev.Kind]
		if !ok || !bounds.Contains(ev.Value) {
			continue
		}
		w := t.BaseWeights[ev.Kind] + category.WeightDelta[ev.Kind]
		if ev.Reliability == "" {
			ev.Reliability = reliability(ev.Points)
			switch ev.Reliability {
			case models.ReliabilityHigh:
				w += 0.05
			case models.ReliabilityLow:
				w -= 0.1
			}
		}
		ev.Weight = t.WeightBand.Clamp(w)
		valid = append(valid, ev)
	}
	return valid
}

func reliability(points int) string {
	switch {
	case points >= 4:
		return models.ReliabilityHigh
	case points >= 2:
		return models.ReliabilityMedium
	default:
		return models.ReliabilityLow
	}
}

func weightedMean(evidence []Evidence) float64 {
	values := make([]float64, len(evidence))
	weights := make([]float64, len(evidence))
	for i, ev := range evidence {
		values[i], weights[i] = ev.Value, ev.Weight
	}
	return stat.Mean(values, weights)
}

// capGrowth applies the size cap. Mega caps keep part of the excess;
// smaller companies may exceed the cap only with strong evidence. The
// result never exceeds capExtension × maxCap.
func capGrowth(g, maxCap, mcap float64, valid []Evidence) float64 {
	if g <= maxCap {
		return g
	}
	ceiling := maxCap * capExtension
	if mcap > megaCapThreshold {
		return math.Min(maxCap+(g-maxCap)*megaCapExcessKept, ceiling)
	}
	var analyst, hist *Evidence
	for i := range valid {
		switch valid[i].Kind {
		case models.GrowthAnalyst:
			analyst = &valid[i]
		case models.GrowthHistoricalFCF:
			hist = &valid[i]
		}
	}
	if analyst != nil && hist != nil && analyst.Value > maxCap && hist.Value > maxCap*0.8 {
		return math.Min(g, ceiling)
	}
	return maxCap
}
