package valuation

import (
	"context"
	"math"
	"slices"
	"strings"

	"github.com/seenimoa/dcfvalue/pkg/models"
)

const (
	conservativeGrowth = 0.03
	momentumWeight     = 0.15
	minMomentumPoints  = 20
	// blend weight of the preset rate for known high-growth tickers
	presetBlend = 0.7
)

// DefaultGrowth builds the growth result used when history is too thin to
// estimate from. It starts from the industry rate, or a size-based rate,
// and adjusts it for sector, valuation metrics and price momentum.
func (e *Engine) DefaultGrowth(ctx context.Context, ticker string) models.GrowthResult {
	return e.defaultGrowth(ctx, ticker, e.snapshot(ctx, ticker))
}

func (e *Engine) defaultGrowth(ctx context.Context, ticker string, snap *snapshot) models.GrowthResult {
	t := e.tables
	log := e.log.With().Str("ticker", ticker).Str("estimator", "default_growth").Logger()

	if snap.profile == nil {
		log.Warn().Msg("no company profile, using conservative default growth")
		return defaultGrowthResult(conservativeGrowth, 0, models.ReliabilityLow, t)
	}
	p := snap.profile
	mcap, _ := models.Value(p.MarketCap)

	g := conservativeGrowth
	if rate, ok := t.IndustryGrowthRate(p.Industry, p.Sector); ok {
		g = rate
	} else if mcap > 0 {
		g = lookupAtLeast(t.DefaultSizeGrowth, math.Log10(mcap), g)
	}

	g += sectorTilt(t, p, mcap)

	if preset, ok := t.HighGrowthTech.Lookup(ticker, e.now(), t.MaxOverrideAge); ok {
		g = g*(1-presetBlend) + preset*presetBlend
	}

	if adj, n := metricAdjustments(p); n > 0 {
		g += adj / float64(n) * math.Min(0.4, 0.1*float64(n))
	}

	if e.src.Prices != nil {
		returns, err := e.src.Prices.DailyReturns(ctx, ticker, "1y")
		switch {
		case err != nil:
			log.Debug().Err(err).Msg("price momentum unavailable")
		case len(returns) > minMomentumPoints:
			g += momentumAdjustment(compound(returns)) * momentumWeight
		}
	}

	maxCap := defaultGrowthCap(t, mcap)
	limit := maxCap
	if slices.Contains(t.HyperGrowthTickers, strings.ToUpper(ticker)) {
		limit = maxCap * capExtension
	}
	g = math.Max(math.Min(g, limit), minGrowth)

	log.Info().Float64("growth", g).Float64("cap", maxCap).Msg("default growth applied")
	return defaultGrowthResult(g, mcap, models.ReliabilityMedium, t)
}

func defaultGrowthResult(g, mcap float64, reliability string, t Tables) models.GrowthResult {
	return models.GrowthResult{
		ShortTermGrowth:     g,
		HistoricalFCFGrowth: models.Float(g * 0.9),
		RevenueGrowth:       models.Float(g * 1.1),
		AnalystEstimate:     models.Float(g * 1.2),
		RegressionGrowth:    models.Float(g * 0.85),
		CompanySize:         sizeLabel(mcap),
		MaxGrowthCap:        defaultGrowthCap(t, mcap),
		GrowthComponents: map[string]models.GrowthComponent{
			models.GrowthDefault: {Value: g, Weight: 1, Reliability: reliability},
		},
		Defaulted: true,
	}
}

// sectorTilt nudges growth toward the sector's character. Smaller
// companies get a larger share of the nudge.
func sectorTilt(t Tables, p *models.CompanyProfile, mcap float64) float64 {
	weight := 0.2
	if mcap > 0 {
		weight = math.Min(0.3, 15/math.Pow(mcap, 0.1))
	}
	text := strings.ToLower(p.Sector + " " + p.Industry)
	switch {
	case containsAny(t.GrowthSectorTerms, text):
		return 0.02 * weight
	case containsAny(t.StableSectorTerms, text):
		return -0.01 * weight
	case containsAny(t.CyclicalTerms, text):
		return 0.01 * weight
	}
	return 0
}

// metricAdjustments sums the valuation-metric adjustments and reports how
// many metrics contributed.
func metricAdjustments(p *models.CompanyProfile) (float64, int) {
	var adj float64
	var n int

	pe, peOK := models.Value(p.TrailingPE)
	if peOK && pe > 0 {
		adj += Band{-0.02, 0.02}.Clamp(0.01 * (math.Log10(pe) - math.Log10(20)))
		n++
	}
	if fpe, ok := models.Value(p.ForwardPE); ok && fpe > 0 && peOK && pe > 0 {
		switch ratio := pe / fpe; {
		case ratio > 1.1:
			adj += math.Min((ratio-1)*0.05, 0.015)
		case ratio < 0.9:
			adj -= math.Min((1-ratio)*0.05, 0.015)
		}
		n++
	}
	if dy, ok := models.Value(p.DividendYield); ok && dy > 0 {
		switch {
		case dy > 0.07:
			adj -= 0.025
		case dy > 0.04:
			adj -= 0.015
		case dy > 0.02:
			adj -= 0.01
		}
		n++
	}
	if pm, ok := models.Value(p.ProfitMargins); ok && pm != 0 && pm > -1 {
		switch {
		case pm > 0.25:
			adj += 0.015
		case pm > 0.15:
			adj += 0.01
		case pm > 0.08:
			adj += 0.005
		case pm < 0:
			adj -= 0.01
		}
		n++
	}
	if roe, ok := models.Value(p.ReturnOnEquity); ok && roe != 0 && roe > -1 {
		switch {
		case roe > 0.25:
			adj += 0.01
		case roe > 0.15:
			adj += 0.005
		case roe < 0:
			adj -= 0.01
		}
		n++
	}
	if beta, ok := models.Value(p.Beta); ok && beta > 0 {
		adj += Band{-0.01, 0.015}.Clamp((beta - 1) * 0.01)
		n++
	}
	return adj, n
}

func momentumAdjustment(yearly float64) float64 {
	switch {
	case yearly > 0.5:
		return 0.015
	case yearly > 0.2:
		return 0.01
	case yearly < -0.3:
		return -0.015
	case yearly < -0.1:
		return -0.01
	}
	return 0
}

// compound turns daily returns into a period return.
func compound(returns []float64) float64 {
	total := 1.0
	for _, r := range returns {
		if isFinite(r) {
			total *= 1 + r
		}
	}
	return total - 1
}

func defaultGrowthCap(t Tables, mcap float64) float64 {
	if mcap <= 0 {
		return 0.05
	}
	return lookupAtLeast(t.DefaultGrowthCaps, math.Log10(mcap), 0.25)
}

// sizeLabel names the size bucket on a log10 market-cap scale.
func sizeLabel(mcap float64) string {
	if !(mcap > 0) {
		return unknownSize
	}
	switch l := math.Log10(mcap); {
	case l >= 12:
		return "Mega-Cap"
	case l >= 11:
		return "Large-Cap (Tier 1)"
	case l >= 10:
		return "Large-Cap (Tier 2)"
	case l >= 9:
		return "Mid-Cap"
	case l >= 8:
		return "Small-Cap"
	case l >= 6:
		return "Micro-Cap"
	default:
		return "Nano-Cap"
	}
}

// lookupAtLeast returns the value of the first threshold v reaches.
func lookupAtLeast(ts []Threshold, v, fallback float64) float64 {
	for _, th := range ts {
		if v >= th.Above {
			return th.Value
		}
	}
	return fallback
}
