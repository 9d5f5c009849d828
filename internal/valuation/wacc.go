package valuation

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/seenimoa/dcfvalue/pkg/models"
)

const (
	// minimum paired daily observations for a regression beta
	minBetaObservations = 30
	betaPeriod          = "2y"
	fallbackBeta        = 1.0
	// floor premium of the leverage heuristic over the risk-free rate
	minDebtPremium = 0.01
	// premium used when no cost-of-debt source resolves
	fallbackDebtPremium = 0.02
	// sensitivity of the sector-baseline WACC to beta
	waccBetaSlope = 0.01
)

var (
	interestItems = []models.LineItem{
		models.ItemInterestExpense, models.ItemInterestExpenseNet,
		models.ItemInterestPaid, models.ItemNetInterestExpense,
	}
	ebitItems = []models.LineItem{
		models.ItemEBIT, models.ItemOperatingIncome, models.ItemPretaxIncome,
	}
	debtComponents = []models.LineItem{
		models.ItemLongTermDebt, models.ItemShortLongTermDebt, models.ItemCurrentDebt,
		models.ItemShortTermDebt, models.ItemCurrentLongTermDebt,
	}
)

// EstimateWacc estimates the discount rate for ticker. rec may be nil.
// It never fails: unresolvable inputs degrade to the next source and a
// missing market cap returns DefaultWacc.
func (e *Engine) EstimateWacc(ctx context.Context, ticker string, rec *models.FinancialRecord) models.WaccResult {
	return e.estimateWacc(ctx, ticker, rec, e.snapshot(ctx, ticker))
}

// waccRun holds the inputs shared by the WACC resolution steps.
type waccRun struct {
	e        *Engine
	ticker   string
	rec      *models.FinancialRecord
	snap     *snapshot
	industry IndustryProfile
	log      zerolog.Logger
}

func (e *Engine) estimateWacc(ctx context.Context, ticker string, rec *models.FinancialRecord, snap *snapshot) models.WaccResult {
	r := &waccRun{
		e:        e,
		ticker:   ticker,
		rec:      rec,
		snap:     snap,
		industry: e.tables.Industry(snap.industry(), snap.sector()),
		log:      e.log.With().Str("ticker", ticker).Str("estimator", "wacc").Logger(),
	}

	rf, rfSource := r.riskFreeRate(ctx)
	debt := r.totalDebt(ctx)
	mcap, ok := r.marketCap(ctx)
	if !ok {
		r.log.Warn().Msg("market cap unavailable, using default WACC")
		return DefaultWacc(e.tables, r.industry)
	}

	wd, we := capitalWeights(debt, mcap)
	cod, codSource := r.costOfDebt(ctx, rf, debt, mcap)
	tax, taxSource := r.taxRate(ctx)
	beta, betaSource := r.beta(ctx)

	atcod := cod * (1 - tax)
	coe := rf + beta*r.industry.MarketRiskPremium
	wacc := wd*atcod + we*coe

	res := models.WaccResult{
		WACC:               wacc,
		CostOfEquity:       coe,
		AfterTaxCostOfDebt: atcod,
		WeightDebt:         wd,
		WeightEquity:       we,
		Beta:               beta,
		TaxRate:            tax,
		TotalDebt:          debt,
		MarketCap:          mcap,
		RiskFreeRate:       rf,
		CostOfDebt:         cod,
		RiskFreeSource:     rfSource,
		CostOfDebtSource:   codSource,
		BetaSource:         betaSource,
		TaxSource:          taxSource,
	}
	if !e.tables.WaccBand.Contains(wacc) {
		res.WACC = r.sectorWacc(beta)
		res.Adjusted = true
		r.log.Info().Float64("computed", wacc).Float64("adjusted", res.WACC).Msg("WACC outside plausible range, using sector baseline")
	}
	return res
}

// DefaultWacc is the fixed result used when no market cap can be found.
// A matched industry profile supplies beta and the equity risk premium.
func DefaultWacc(t Tables, industry IndustryProfile) models.WaccResult {
	res := models.WaccResult{
		WACC:               0.09,
		CostOfEquity:       0.10,
		AfterTaxCostOfDebt: 0.04,
		WeightDebt:         0.3,
		WeightEquity:       0.7,
		Beta:               fallbackBeta,
		TaxRate:            t.StatutoryTax,
		RiskFreeRate:       t.FallbackRiskFree,
		RiskFreeSource:     "default",
		CostOfDebtSource:   "default",
		BetaSource:         "default",
		TaxSource:          "default",
		Defaulted:          true,
	}
	if industry.Matched() {
		res.Beta = industry.Beta
		res.BetaSource = "industry"
		res.CostOfEquity = t.FallbackRiskFree + industry.Beta*industry.MarketRiskPremium
	}
	return res
}

// capitalWeights returns the debt and equity weights of total capital.
func capitalWeights(debt, mcap float64) (float64, float64) {
	total := debt + mcap
	if !(total > 0) {
		return 0, 1
	}
	wd, we := debt/total, mcap/total
	if sum := wd + we; math.Abs(sum-1) > 0.01 {
		if sum > 0 {
			return wd / sum, we / sum
		}
		return 0, 1
	}
	return wd, we
}

// --- Risk-free rate ---

func (r *waccRun) riskFreeRate(ctx context.Context) (float64, string) {
	t := r.e.tables
	resolvers := make([]Resolver[float64], 0, len(r.e.src.Yields)+1)
	for _, ys := range r.e.src.Yields {
		ys := ys
		resolvers = append(resolvers, resolverFunc(ys.Name(), accept(t.RiskFreeBand, func(ctx context.Context) (float64, bool) {
			y, err := ys.TenYearYield(ctx)
			if err != nil {
				r.log.Debug().Err(err).Str("source", ys.Name()).Msg("yield source failed")
				return 0, false
			}
			return y, true
		})))
	}
	resolvers = append(resolvers, resolverFunc("monthly_table", func(context.Context) (float64, bool) {
		v := t.MonthlyRiskFree[r.e.now().Month()-1]
		return v, v > 0
	}))
	return ChainOr(ctx, r.log, "risk_free_rate", t.FallbackRiskFree, resolvers...)
}

// --- Capital structure ---

// totalDebt takes the first populated source and never sums across sources.
func (r *waccRun) totalDebt(ctx context.Context) float64 {
	st := r.snap.stmts()
	positive := func(v float64, ok bool) (float64, bool) { return v, ok && v > 0 }

	debt, _ := ChainOr(ctx, r.log, "total_debt", 0,
		resolverFunc("balance_total_debt", func(context.Context) (float64, bool) {
			return positive(st.Balance.Latest(models.ItemTotalDebt))
		}),
		resolverFunc("balance_components", func(context.Context) (float64, bool) {
			var sum float64
			for _, item := range debtComponents {
				if v, ok := st.Balance.Latest(item); ok {
					sum += v
				}
			}
			return sum, sum > 0
		}),
		resolverFunc("profile_total_debt", func(context.Context) (float64, bool) {
			return positive(r.snap.profileValue(func(p *models.CompanyProfile) *float64 { return p.TotalDebt }))
		}),
		resolverFunc("profile_debt_fields", func(context.Context) (float64, bool) {
			lt, _ := r.snap.profileValue(func(p *models.CompanyProfile) *float64 { return p.LongTermDebt })
			stDebt, _ := r.snap.profileValue(func(p *models.CompanyProfile) *float64 { return p.ShortTermDebt })
			sum := lt + stDebt
			return sum, sum > 0
		}),
		resolverFunc("alternative", func(ctx context.Context) (float64, bool) {
			if r.e.src.Alt == nil {
				return 0, false
			}
			v, err := r.e.src.Alt.TotalDebt(ctx, r.ticker)
			if err != nil {
				r.log.Debug().Err(err).Msg("alternative debt lookup failed")
				return 0, false
			}
			return v, isFinite(v) && v > 0
		}),
	)
	return debt
}

// price is the issuer-reported price, else the record's.
func (r *waccRun) price() (float64, bool) {
	if p, ok := r.snap.profileValue(func(p *models.CompanyProfile) *float64 { return p.CurrentPrice }); ok && p > 0 {
		return p, true
	}
	if r.rec != nil && r.rec.CurrentPrice > 0 && isFinite(r.rec.CurrentPrice) {
		return r.rec.CurrentPrice, true
	}
	return 0, false
}

func (r *waccRun) marketCap(ctx context.Context) (float64, bool) {
	positive := func(v float64, ok bool) (float64, bool) { return v, ok && v > 0 }
	field := func(get func(p *models.CompanyProfile) *float64) func(context.Context) (float64, bool) {
		return func(context.Context) (float64, bool) { return positive(r.snap.profileValue(get)) }
	}

	mcap, _, ok := Chain(ctx, r.log, "market_cap",
		resolverFunc("profile_market_cap", field(func(p *models.CompanyProfile) *float64 { return p.MarketCap })),
		resolverFunc("profile_enterprise_value", field(func(p *models.CompanyProfile) *float64 { return p.EnterpriseValue })),
		resolverFunc("shares_times_price", func(context.Context) (float64, bool) {
			shares, ok := r.snap.profileValue(func(p *models.CompanyProfile) *float64 { return p.SharesOutstanding })
			if !ok || shares <= 0 {
				if r.rec == nil {
					return 0, false
				}
				shares = r.rec.SharesOutstanding
			}
			price, ok := r.price()
			if !ok {
				return 0, false
			}
			return positive(shares*price, isFinite(shares*price))
		}),
		resolverFunc("balance_shares", func(context.Context) (float64, bool) {
			bs := r.snap.stmts().Balance
			shares, ok := bs.Latest(models.ItemSharesOutstanding)
			if !ok || shares <= 0 {
				// common stock is a dollar amount; only a last resort as a share count
				shares, ok = bs.Latest(models.ItemCommonStock)
			}
			if !ok || shares <= 0 {
				return 0, false
			}
			price, ok := r.price()
			if !ok {
				return 0, false
			}
			return shares * price, true
		}),
		resolverFunc("alternative", func(ctx context.Context) (float64, bool) {
			if r.e.src.Alt == nil {
				return 0, false
			}
			v, err := r.e.src.Alt.MarketCap(ctx, r.ticker)
			if err != nil {
				r.log.Debug().Err(err).Msg("alternative market cap lookup failed")
				return 0, false
			}
			return v, isFinite(v) && v > 0
		}),
	)
	return mcap, ok
}

// --- Cost of debt ---

func (r *waccRun) costOfDebt(ctx context.Context, rf, debt, mcap float64) (float64, string) {
	t := r.e.tables
	st := r.snap.stmts()

	return ChainOr(ctx, r.log, "cost_of_debt", rf+fallbackDebtPremium,
		resolverFunc("bond_yield", accept(t.BondYieldAccept, func(ctx context.Context) (float64, bool) {
			if r.e.src.Bonds == nil {
				return 0, false
			}
			y, err := r.e.src.Bonds.EstimateBondYield(ctx, r.ticker, r.snap.profile)
			if err != nil {
				r.log.Debug().Err(err).Msg("bond yield estimate failed")
				return 0, false
			}
			return y, true
		})),
		resolverFunc("interest_over_debt", func(context.Context) (float64, bool) {
			if debt <= 0 {
				return 0, false
			}
			interest, ok := firstPositive(st.Financials, interestItems, math.Abs)
			if !ok {
				return 0, false
			}
			cod := interest / debt
			for _, sb := range t.InterestRateBands {
				if mcap > sb.Above {
					return cod, sb.Band.Contains(cod)
				}
			}
			return 0, false
		}),
		resolverFunc("interest_coverage", func(context.Context) (float64, bool) {
			ebit, ok := firstPositive(st.Income, ebitItems, nil)
			if !ok {
				return 0, false
			}
			interest, ok := firstPositive(st.Income, interestItems, math.Abs)
			if !ok {
				interest, ok = firstPositive(st.Financials, interestItems, math.Abs)
			}
			if !ok {
				return 0, false
			}
			return rf + lookupThreshold(t.CoverageSpreads, ebit/interest, t.CoverageFloor), true
		}),
		resolverFunc("leverage_heuristic", func(context.Context) (float64, bool) {
			var leverage float64
			if total := debt + mcap; total > 0 {
				leverage = debt / total
			}
			cod := rf +
				lookupThreshold(t.DebtSizePremium, mcap, 0) +
				lookupThreshold(t.LeveragePremium, leverage, 0) +
				r.industry.DefaultSpread
			if cod < rf {
				cod = rf + minDebtPremium
			}
			return cod, isFinite(cod)
		}),
		resolverFunc("industry_average", func(context.Context) (float64, bool) {
			return r.industry.AvgCostOfDebt, r.industry.AvgCostOfDebt > 0
		}),
	)
}

// firstPositive returns the latest value of the first item that is
// populated and positive after transform.
func firstPositive(s *models.Statement, items []models.LineItem, transform func(float64) float64) (float64, bool) {
	for _, item := range items {
		v, ok := s.Latest(item)
		if !ok {
			continue
		}
		if transform != nil {
			v = transform(v)
		}
		if v > 0 {
			return v, true
		}
	}
	return 0, false
}

// HeuristicBondYield estimates a bond yield from the issuer's credit
// rating, or from its industry and size when no rating is reported.
type HeuristicBondYield struct {
	Tables Tables
}

// EstimateBondYield implements BondYieldEstimator.
func (h *HeuristicBondYield) EstimateBondYield(_ context.Context, _ string, profile *models.CompanyProfile) (float64, error) {
	t := h.Tables
	var (
		rating, industry string
		mcap             float64
	)
	if profile != nil {
		rating = strings.ToUpper(strings.TrimSpace(profile.CreditRating))
		industry = strings.ToLower(profile.Industry)
		mcap, _ = models.Value(profile.MarketCap)
	}
	if y, ok := t.CreditRatingYields[rating]; ok {
		return y, nil
	}

	y := t.BondBaseYield
	for _, kr := range t.BondIndustryRisk {
		if industry != "" && strings.Contains(industry, kr.Key) {
			y += kr.Rate
			break
		}
	}
	y += lookupThreshold(t.BondSizeAdjustment, mcap, 0)
	return t.BondYieldClamp.Clamp(y), nil
}

// --- Tax ---

func (r *waccRun) taxRate(ctx context.Context) (float64, string) {
	t := r.e.tables
	st := r.snap.stmts()

	return ChainOr(ctx, r.log, "tax_rate", t.StatutoryTax,
		resolverFunc("income_statement", accept(t.TaxBand, func(context.Context) (float64, bool) {
			return effectiveTax(st.Income, 0)
		})),
		resolverFunc("financials", accept(t.TaxBand, func(context.Context) (float64, bool) {
			return effectiveTax(st.Financials, 0)
		})),
		resolverFunc("profile", accept(t.TaxBand, func(context.Context) (float64, bool) {
			return r.snap.profileValue(func(p *models.CompanyProfile) *float64 { return p.EffectiveTaxRate })
		})),
		resolverFunc("historical_average", func(context.Context) (float64, bool) {
			rates := historicalTaxRates(st.Income, t.TaxBand)
			if len(rates) == 0 {
				rates = historicalTaxRates(st.Financials, t.TaxBand)
			}
			if len(rates) == 0 {
				return 0, false
			}
			return stat.Mean(rates, nil), true
		}),
		resolverFunc("country", func(context.Context) (float64, bool) {
			if r.snap.profile == nil {
				return 0, false
			}
			v, ok := t.CountryTax[strings.ToLower(strings.TrimSpace(r.snap.profile.Country))]
			return v, ok
		}),
	)
}

// effectiveTax is tax expense over pretax income for period i; both must be positive.
func effectiveTax(s *models.Statement, i int) (float64, bool) {
	pretax, ok := s.At(models.ItemPretaxIncome, i)
	if !ok || pretax <= 0 {
		return 0, false
	}
	tax, ok := s.At(models.ItemIncomeTaxExpense, i)
	if !ok || tax <= 0 {
		return 0, false
	}
	return tax / pretax, true
}

func historicalTaxRates(s *models.Statement, band Band) []float64 {
	var rates []float64
	for i := 0; i < s.Len(); i++ {
		pretax, ok := s.At(models.ItemPretaxIncome, i)
		if !ok || pretax <= 0 {
			continue
		}
		tax, ok := s.At(models.ItemIncomeTaxExpense, i)
		if !ok {
			continue
		}
		if rate := tax / pretax; band.Contains(rate) {
			rates = append(rates, rate)
		}
	}
	return rates
}

// --- Beta ---

func (r *waccRun) beta(ctx context.Context) (float64, string) {
	t := r.e.tables
	return ChainOr(ctx, r.log, "beta", fallbackBeta,
		resolverFunc("profile", accept(t.BetaBand, func(context.Context) (float64, bool) {
			return r.snap.profileValue(func(p *models.CompanyProfile) *float64 { return p.Beta })
		})),
		resolverFunc("industry", accept(t.BetaBand, func(context.Context) (float64, bool) {
			return r.industry.Beta, r.industry.Matched()
		})),
		resolverFunc("sector", func(context.Context) (float64, bool) {
			sector := r.snap.sector()
			if sector == "" {
				sector = t.IndustryToSector[r.snap.industry()]
			}
			b, ok := t.SectorBetas[sector]
			return b, ok
		}),
		resolverFunc("regression", accept(t.BetaBand, func(ctx context.Context) (float64, bool) {
			b, err := r.regressionBeta(ctx)
			if err != nil {
				r.log.Debug().Err(err).Msg("regression beta unavailable")
				return 0, false
			}
			return b, true
		})),
	)
}

var errInsufficientReturns = errors.New("insufficient paired return observations")

// regressionBeta is cov(stock, market) / var(market) over the trailing
// overlap of two years of daily returns.
func (r *waccRun) regressionBeta(ctx context.Context) (float64, error) {
	if r.e.src.Prices == nil {
		return 0, errInsufficientReturns
	}
	stock, err := r.e.src.Prices.DailyReturns(ctx, r.ticker, betaPeriod)
	if err != nil {
		return 0, err
	}
	market, err := r.e.src.Prices.DailyReturns(ctx, r.e.market, betaPeriod)
	if err != nil {
		return 0, err
	}
	return Beta(stock, market)
}

// Beta computes the regression beta of stock against market returns,
// aligned on their most recent observations.
func Beta(stock, market []float64) (float64, error) {
	n := min(len(stock), len(market))
	if n < minBetaObservations {
		return 0, errInsufficientReturns
	}
	s := stock[len(stock)-n:]
	m := market[len(market)-n:]
	variance := stat.Variance(m, nil)
	if !(variance > 0) {
		return 0, errors.New("market returns have no variance")
	}
	return stat.Covariance(s, m, nil) / variance, nil
}

// --- Override ---

func (r *waccRun) sectorWacc(beta float64) float64 {
	t := r.e.tables
	sector := r.snap.sector()
	if sector == "" {
		return t.WaccBand.Clamp(t.DefaultBaseWacc)
	}
	base, ok := t.SectorBaseWacc[sector]
	if !ok {
		base = t.DefaultBaseWacc
	}
	if isFinite(beta) {
		base += (beta - 1) * waccBetaSlope
	}
	return t.WaccBand.Clamp(base)
}
