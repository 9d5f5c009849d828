// Package valuation is the DCF estimation engine: the discount-rate (WACC)
// estimator, the growth estimator, the terminal-value projector and the
// Monte Carlo and sensitivity layers built on top of them.
//
// Every estimator resolves its inputs through ordered fallback chains and
// always returns a complete result. Only Engine.Value fails outward, and
// only when the financial record itself cannot support a valuation.
package valuation

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/seenimoa/dcfvalue/pkg/models"
)

// CompanyData supplies issuer profile and statement data.
type CompanyData interface {
	Profile(ctx context.Context, ticker string) (*models.CompanyProfile, error)
	Statements(ctx context.Context, ticker string) (*models.Statements, error)
}

// PriceHistory supplies daily fractional returns, oldest first.
// period uses the "1y"/"2y" form.
type PriceHistory interface {
	DailyReturns(ctx context.Context, symbol, period string) ([]float64, error)
}

// YieldSource supplies the current 10-year risk-free yield as a fraction.
type YieldSource interface {
	Name() string
	TenYearYield(ctx context.Context) (float64, error)
}

// AltEstimator is the secondary source consulted after the primary data
// for debt and market capitalization.
type AltEstimator interface {
	TotalDebt(ctx context.Context, ticker string) (float64, error)
	MarketCap(ctx context.Context, ticker string) (float64, error)
}

// BondYieldEstimator estimates an issuer's pre-tax cost of debt from
// bond-market information.
type BondYieldEstimator interface {
	EstimateBondYield(ctx context.Context, ticker string, profile *models.CompanyProfile) (float64, error)
}

// Sources wires the engine to its collaborators. Any field may be nil;
// the estimators fall through to the next link of each chain.
type Sources struct {
	Company CompanyData
	Prices  PriceHistory
	Yields  []YieldSource
	Alt     AltEstimator
	Bonds   BondYieldEstimator
}

// Engine runs valuations. It holds no per-run state and is safe for
// concurrent use.
type Engine struct {
	src     Sources
	tables  Tables
	log     zerolog.Logger
	now     func() time.Time
	horizon int
	market  string
}

// Option configures an Engine.
type Option func(*Engine)

// WithTables replaces the reference tables.
func WithTables(t Tables) Option { return func(e *Engine) { e.tables = t } }

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option { return func(e *Engine) { e.log = l } }

// WithClock sets the clock used for seasonal and override lookups.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// WithHorizon sets the explicit projection horizon in years.
func WithHorizon(years int) Option {
	return func(e *Engine) {
		if years > 0 {
			e.horizon = years
		}
	}
}

// WithMarketIndex sets the index symbol used for regression beta.
func WithMarketIndex(symbol string) Option { return func(e *Engine) { e.market = symbol } }

// DefaultHorizon is the default number of explicitly projected years.
const DefaultHorizon = 10

// NewEngine creates an engine over the given sources.
func NewEngine(src Sources, opts ...Option) *Engine {
	e := &Engine{
		src:     src,
		tables:  DefaultTables(),
		log:     zerolog.Nop(),
		now:     time.Now,
		horizon: DefaultHorizon,
		market:  "^GSPC",
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.src.Bonds == nil {
		e.src.Bonds = &HeuristicBondYield{Tables: e.tables}
	}
	return e
}

// Tables returns the engine's reference tables.
func (e *Engine) Tables() Tables { return e.tables }

// snapshot is the company data fetched once per valuation pass.
type snapshot struct {
	profile    *models.CompanyProfile
	statements *models.Statements
}

func (s *snapshot) sector() string {
	if s == nil || s.profile == nil {
		return ""
	}
	return s.profile.Sector
}

func (s *snapshot) industry() string {
	if s == nil || s.profile == nil {
		return ""
	}
	return s.profile.Industry
}

func (s *snapshot) profileValue(get func(p *models.CompanyProfile) *float64) (float64, bool) {
	if s == nil || s.profile == nil {
		return 0, false
	}
	return models.Value(get(s.profile))
}

func (s *snapshot) stmts() *models.Statements {
	if s == nil || s.statements == nil {
		return &models.Statements{}
	}
	return s.statements
}

func (e *Engine) snapshot(ctx context.Context, ticker string) *snapshot {
	snap := &snapshot{}
	if e.src.Company == nil {
		return snap
	}
	log := e.log.With().Str("ticker", ticker).Logger()
	if p, err := e.src.Company.Profile(ctx, ticker); err != nil {
		log.Debug().Err(err).Msg("profile unavailable")
	} else {
		snap.profile = p
	}
	if st, err := e.src.Company.Statements(ctx, ticker); err != nil {
		log.Debug().Err(err).Msg("statements unavailable")
	} else {
		snap.statements = st
	}
	return snap
}

// Value runs the full valuation pass for one record.
func (e *Engine) Value(ctx context.Context, rec *models.FinancialRecord, cik string) (*models.ValuationResult, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	ticker := rec.Ticker
	snap := e.snapshot(ctx, ticker)

	wacc := e.estimateWacc(ctx, ticker, rec, snap)
	growth := e.estimateGrowth(ctx, ticker, cik, rec, snap)
	projection := e.Project(ProjectionInput{
		FinalFCF: rec.FreeCashFlow,
		Growth:   growth.ShortTermGrowth,
		Discount: wacc.WACC,
		Ticker:   ticker,
		Horizon:  e.horizon,
		Context:  e.terminalContext(snap, rec),
	})

	res := &models.ValuationResult{
		Ticker:     ticker,
		Record:     *rec,
		Wacc:       wacc,
		Growth:     growth,
		Projection: projection,
		Profile:    snap.profile,
	}
	res.IntrinsicValue, res.ValuationGap, res.IsUndervalued = verdict(projection.TotalDCFValue, rec.SharesOutstanding, rec.CurrentPrice)

	e.log.Info().
		Str("ticker", ticker).
		Float64("wacc", wacc.WACC).
		Float64("growth", growth.ShortTermGrowth).
		Float64("intrinsic_value", res.IntrinsicValue).
		Float64("price", rec.CurrentPrice).
		Msg("valuation complete")
	return res, nil
}

// verdict derives the per-share figures. The gap is NaN and the verdict
// nil when either side is not a usable number.
func verdict(total, shares, price float64) (float64, float64, *bool) {
	iv := total / shares
	if !isFinite(iv) || !isFinite(price) || price <= 0 {
		return iv, math.NaN(), nil
	}
	under := iv > price
	return iv, (iv/price - 1) * 100, &under
}

// terminalContext gathers the company facts the projector adjusts for.
func (e *Engine) terminalContext(snap *snapshot, rec *models.FinancialRecord) CompanyContext {
	return companyContext(snap.profile, rec)
}

// companyContext uses the reported market cap, else shares × price.
func companyContext(p *models.CompanyProfile, rec *models.FinancialRecord) CompanyContext {
	var cc CompanyContext
	if p != nil {
		cc.Sector, cc.Industry = p.Sector, p.Industry
		if mc, ok := models.Value(p.MarketCap); ok && mc > 0 {
			cc.MarketCap = mc
			return cc
		}
	}
	if rec != nil && rec.SharesOutstanding > 0 && rec.CurrentPrice > 0 {
		cc.MarketCap = rec.SharesOutstanding * rec.CurrentPrice
	}
	return cc
}
