package datasource

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/seenimoa/dcfvalue/internal/provider"
	"github.com/seenimoa/dcfvalue/pkg/models"
)

// Acquirer builds standardized financial records, trying each source in
// order until one yields a complete record.
type Acquirer struct {
	reg *provider.Registry
	opt options
}

// NewAcquirer creates an acquirer over reg. A nil registry means the
// global one.
func NewAcquirer(reg *provider.Registry, opts ...Option) *Acquirer {
	if reg == nil {
		reg = provider.Global()
	}
	return &Acquirer{reg: reg, opt: buildOptions(opts)}
}

var errIncomplete = errors.New("incomplete record")

// Fetch returns the first complete record for ticker. cik skips the SEC
// ticker lookup when given.
func (a *Acquirer) Fetch(ctx context.Context, ticker, cik string) (*models.FinancialRecord, error) {
	symbol := NormalizeTicker(ticker)
	log := a.opt.log.With().Str("component", "acquirer").Str("ticker", symbol).Logger()

	var attempts []error
	for _, name := range a.opt.order {
		if err := ctx.Err(); err != nil {
			attempts = append(attempts, err)
			break
		}
		if _, err := a.reg.Get(name); err != nil {
			log.Debug().Str("source", name).Msg("source not registered, skipping")
			continue
		}

		rec, err := a.fetchFrom(ctx, name, symbol, cik)
		if err == nil {
			err = rec.Validate()
		}
		if err != nil {
			log.Debug().Err(err).Str("source", name).Msg("source failed, trying next")
			attempts = append(attempts, fmt.Errorf("%s: %w", name, err))
			continue
		}
		log.Info().Str("source", rec.DataSource).Int("fcf_years", len(rec.HistoricalFCF)).Msg("financial record acquired")
		return rec, nil
	}
	return nil, &ErrNoData{Ticker: symbol, Attempts: attempts}
}

func (a *Acquirer) fetchFrom(ctx context.Context, name, symbol, cik string) (*models.FinancialRecord, error) {
	switch name {
	case SourceSEC:
		return a.fromSEC(ctx, symbol, cik)
	case SourceFMP:
		return a.fromFMP(ctx, symbol)
	case SourceAlphaVantage:
		return a.fromAlphaVantage(ctx, symbol)
	case SourceYahoo:
		return a.fromYahoo(ctx, symbol)
	default:
		return nil, fmt.Errorf("no record builder for source %q", name)
	}
}

// --- SEC EDGAR ---

func (a *Acquirer) fromSEC(ctx context.Context, symbol, cik string) (*models.FinancialRecord, error) {
	if cik == "" {
		res, err := a.reg.FetchFrom(ctx, SourceSEC, provider.ModelCikMap, provider.QueryParams{provider.ParamSymbol: symbol})
		if err != nil {
			return nil, fmt.Errorf("cik lookup: %w", err)
		}
		if cik, err = provider.Typed[string](res); err != nil {
			return nil, err
		}
	}

	res, err := a.reg.FetchFrom(ctx, SourceSEC, provider.ModelCompanyFacts, provider.QueryParams{
		provider.ParamCIK:   cik,
		provider.ParamLimit: strconv.Itoa(a.opt.years),
	})
	if err != nil {
		return nil, err
	}
	facts, err := provider.Typed[*models.Statement](res)
	if err != nil {
		return nil, err
	}

	fcf, ok := freeCashFlows(facts, a.opt.years)
	if !ok {
		return nil, fmt.Errorf("latest free cash flow: %w", errIncomplete)
	}
	shares, ok := facts.Latest(models.ItemSharesOutstanding)
	if !ok || shares <= 0 {
		return nil, fmt.Errorf("shares outstanding: %w", errIncomplete)
	}
	// EDGAR has no prices.
	price, err := a.currentPrice(ctx, symbol)
	if err != nil {
		return nil, err
	}

	return &models.FinancialRecord{
		Ticker:            symbol,
		FreeCashFlow:      fcf[0],
		SharesOutstanding: shares,
		CurrentPrice:      price,
		HistoricalFCF:     fcf,
		HistoricalRevenue: finiteSeries(facts, models.ItemTotalRevenue, a.opt.years),
		DataSource:        "SEC EDGAR",
	}, nil
}

// --- Financial Modeling Prep ---

func (a *Acquirer) fromFMP(ctx context.Context, symbol string) (*models.FinancialRecord, error) {
	only := []string{SourceFMP}
	cf, err := fetchStatement(ctx, a.reg, only, provider.ModelCashFlowStatement, symbol, "annual")
	if err != nil {
		return nil, err
	}
	fcf, ok := freeCashFlows(cf, a.opt.years)
	if !ok {
		return nil, fmt.Errorf("latest free cash flow: %w", errIncomplete)
	}

	prof, err := fetchProfile(ctx, a.reg, only, symbol)
	if err != nil {
		return nil, err
	}
	price, okP := positive(prof.CurrentPrice)
	mcap, okM := positive(prof.MarketCap)
	if !okP || !okM {
		return nil, fmt.Errorf("profile market cap and price: %w", errIncomplete)
	}

	var revenue []float64
	if income, err := fetchStatement(ctx, a.reg, only, provider.ModelIncomeStatement, symbol, "annual"); err == nil {
		revenue = finiteSeries(income, models.ItemTotalRevenue, a.opt.years)
	}

	return &models.FinancialRecord{
		Ticker:            symbol,
		FreeCashFlow:      fcf[0],
		SharesOutstanding: mcap / price,
		CurrentPrice:      price,
		HistoricalFCF:     fcf,
		HistoricalRevenue: revenue,
		DataSource:        "Financial Modeling Prep",
	}, nil
}

// --- Alpha Vantage ---

func (a *Acquirer) fromAlphaVantage(ctx context.Context, symbol string) (*models.FinancialRecord, error) {
	only := []string{SourceAlphaVantage}
	cf, err := fetchStatement(ctx, a.reg, only, provider.ModelCashFlowStatement, symbol, "annual")
	if err != nil {
		return nil, err
	}
	fcf, ok := freeCashFlows(cf, a.opt.years)
	if !ok {
		return nil, fmt.Errorf("latest free cash flow: %w", errIncomplete)
	}

	prof, err := fetchProfile(ctx, a.reg, only, symbol)
	if err != nil {
		return nil, err
	}
	price, ok := positive(prof.CurrentPrice)
	if !ok {
		if price, err = a.lastClose(ctx, symbol); err != nil {
			return nil, err
		}
	}
	shares, ok := positive(prof.SharesOutstanding)
	if !ok {
		mcap, okM := positive(prof.MarketCap)
		if !okM {
			return nil, fmt.Errorf("shares outstanding: %w", errIncomplete)
		}
		shares = mcap / price
	}

	var revenue []float64
	if income, err := fetchStatement(ctx, a.reg, only, provider.ModelIncomeStatement, symbol, "annual"); err == nil {
		revenue = finiteSeries(income, models.ItemTotalRevenue, a.opt.years)
	}

	return &models.FinancialRecord{
		Ticker:            symbol,
		FreeCashFlow:      fcf[0],
		SharesOutstanding: shares,
		CurrentPrice:      price,
		HistoricalFCF:     fcf,
		HistoricalRevenue: revenue,
		DataSource:        "Alpha Vantage",
	}, nil
}

// --- Yahoo Finance ---

func (a *Acquirer) fromYahoo(ctx context.Context, symbol string) (*models.FinancialRecord, error) {
	only := []string{SourceYahoo}

	var fcf []float64
	cf, err := fetchStatement(ctx, a.reg, only, provider.ModelCashFlowStatement, symbol, "annual")
	if err == nil {
		fcf, _ = freeCashFlows(cf, a.opt.years)
	}
	if len(fcf) == 0 {
		// Annualize the four latest quarters.
		q, qerr := fetchStatement(ctx, a.reg, only, provider.ModelCashFlowStatement, symbol, "quarterly")
		if qerr != nil {
			return nil, fmt.Errorf("cash flow: %w", errors.Join(err, qerr))
		}
		ttm, ok := trailingFreeCashFlow(q)
		if !ok {
			return nil, fmt.Errorf("free cash flow: %w", errIncomplete)
		}
		fcf = []float64{ttm}
	}

	var revenue []float64
	if income, err := fetchStatement(ctx, a.reg, only, provider.ModelIncomeStatement, symbol, "annual"); err == nil {
		revenue = finiteSeries(income, models.ItemTotalRevenue, a.opt.years)
	}

	prof, err := fetchProfile(ctx, a.reg, only, symbol)
	if err != nil {
		return nil, err
	}
	price, ok := positive(prof.CurrentPrice)
	if !ok {
		if price, err = a.lastClose(ctx, symbol); err != nil {
			return nil, err
		}
	}
	shares, ok := positive(prof.SharesOutstanding)
	if !ok {
		shares, ok = a.balanceSheetShares(ctx, symbol)
	}
	if !ok {
		if mcap, okM := positive(prof.MarketCap); okM {
			shares, ok = mcap/price, true
		}
	}
	if !ok {
		return nil, fmt.Errorf("shares outstanding: %w", errIncomplete)
	}

	return &models.FinancialRecord{
		Ticker:            symbol,
		FreeCashFlow:      fcf[0],
		SharesOutstanding: shares,
		CurrentPrice:      price,
		HistoricalFCF:     fcf,
		HistoricalRevenue: revenue,
		DataSource:        "Yahoo Finance",
	}, nil
}

// trailingFreeCashFlow sums the four most recent quarters.
func trailingFreeCashFlow(q *models.Statement) (float64, bool) {
	var sum float64
	for i := 0; i < 4; i++ {
		v, ok := freeCashFlowAt(q, i)
		if !ok {
			return 0, false
		}
		sum += v
	}
	return sum, true
}

func (a *Acquirer) balanceSheetShares(ctx context.Context, symbol string) (float64, bool) {
	bs, err := fetchStatement(ctx, a.reg, []string{SourceYahoo}, provider.ModelBalanceSheet, symbol, "annual")
	if err != nil {
		return 0, false
	}
	v, ok := bs.Latest(models.ItemSharesOutstanding)
	return v, ok && v > 0
}

// currentPrice reads the Yahoo profile price, then the last daily close.
func (a *Acquirer) currentPrice(ctx context.Context, symbol string) (float64, error) {
	if prof, err := fetchProfile(ctx, a.reg, []string{SourceYahoo}, symbol); err == nil {
		if p, ok := positive(prof.CurrentPrice); ok {
			return p, nil
		}
	}
	return a.lastClose(ctx, symbol)
}

func (a *Acquirer) lastClose(ctx context.Context, symbol string) (float64, error) {
	params := provider.QueryParams{provider.ParamSymbol: symbol, provider.ParamPeriod: "5d"}
	res, err := a.reg.FetchInOrder(ctx, provider.ModelEquityHistorical, params, []string{SourceYahoo})
	if err != nil {
		return 0, fmt.Errorf("current price: %w", err)
	}
	bars, err := provider.Typed[[]models.PriceBar](res)
	if err != nil {
		return 0, err
	}
	for i := len(bars) - 1; i >= 0; i-- {
		if bars[i].Close > 0 {
			return bars[i].Close, nil
		}
	}
	return 0, fmt.Errorf("current price: %w", errIncomplete)
}
