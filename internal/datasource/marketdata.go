package datasource

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/dcfvalue/internal/infra"
	"github.com/seenimoa/dcfvalue/internal/provider"
	"github.com/seenimoa/dcfvalue/internal/valuation"
	"github.com/seenimoa/dcfvalue/pkg/models"
)

// MarketData serves the valuation engine's company, price and secondary
// lookups from a provider registry. Profiles and statements are cached
// per ticker.
type MarketData struct {
	reg        *provider.Registry
	opt        options
	profiles   *infra.Cache[*models.CompanyProfile]
	statements *infra.Cache[*models.Statements]
}

var (
	_ valuation.CompanyData  = (*MarketData)(nil)
	_ valuation.PriceHistory = (*MarketData)(nil)
	_ valuation.AltEstimator = (*MarketData)(nil)
)

// NewMarketData creates an adapter over reg. A nil registry means the
// global one.
func NewMarketData(reg *provider.Registry, opts ...Option) *MarketData {
	if reg == nil {
		reg = provider.Global()
	}
	o := buildOptions(opts)
	return &MarketData{
		reg:        reg,
		opt:        o,
		profiles:   infra.NewCache[*models.CompanyProfile](o.cacheTTL),
		statements: infra.NewCache[*models.Statements](o.cacheTTL),
	}
}

// Sources bundles the adapter into the engine's collaborator set.
func (m *MarketData) Sources() valuation.Sources {
	return valuation.Sources{
		Company: m,
		Prices:  m,
		Yields:  m.YieldSources(),
		Alt:     m,
	}
}

// Profile returns the first profile available in profile order.
func (m *MarketData) Profile(ctx context.Context, ticker string) (*models.CompanyProfile, error) {
	symbol := NormalizeTicker(ticker)
	return m.profiles.GetOrLoad(ctx, symbol, func(ctx context.Context) (*models.CompanyProfile, error) {
		return fetchProfile(ctx, m.reg, m.opt.profileOrder, symbol)
	})
}

// Statements fetches every statement set concurrently. Individual
// failures leave that set nil; only a total failure is an error.
func (m *MarketData) Statements(ctx context.Context, ticker string) (*models.Statements, error) {
	symbol := NormalizeTicker(ticker)
	return m.statements.GetOrLoad(ctx, symbol, func(ctx context.Context) (*models.Statements, error) {
		return m.loadStatements(ctx, symbol)
	})
}

func (m *MarketData) loadStatements(ctx context.Context, symbol string) (*models.Statements, error) {
	log := m.opt.log.With().Str("component", "marketdata").Str("ticker", symbol).Logger()
	st := &models.Statements{}

	var mu sync.Mutex
	var errs []error

	jobs := []struct {
		name   string
		model  provider.ModelType
		period string
		order  []string
		dst    **models.Statement
	}{
		{"balance", provider.ModelBalanceSheet, "annual", m.opt.profileOrder, &st.Balance},
		{"income", provider.ModelIncomeStatement, "annual", m.opt.profileOrder, &st.Income},
		// Second, independently sourced income statement.
		{"financials", provider.ModelIncomeStatement, "annual", reversed(m.opt.profileOrder), &st.Financials},
		{"cash flow", provider.ModelCashFlowStatement, "annual", m.opt.profileOrder, &st.CashFlow},
		{"quarterly income", provider.ModelIncomeStatement, "quarterly", m.opt.profileOrder, &st.QuarterlyIncome},
		{"quarterly cash flow", provider.ModelCashFlowStatement, "quarterly", m.opt.profileOrder, &st.QuarterlyCashFlow},
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, job := range jobs {
		g.Go(func() error {
			s, err := fetchStatement(gctx, m.reg, job.order, job.model, symbol, job.period)
			if err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", job.name, err))
				mu.Unlock()
				log.Debug().Err(err).Str("statement", job.name).Msg("statement unavailable")
				return nil // non-fatal
			}
			*job.dst = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(errs) == len(jobs) {
		return nil, fmt.Errorf("all statements failed for %s: %w", symbol, errors.Join(errs...))
	}
	return st, nil
}

// DailyReturns converts the daily close history over period into
// fractional returns, oldest first.
func (m *MarketData) DailyReturns(ctx context.Context, symbol, period string) ([]float64, error) {
	params := provider.QueryParams{
		provider.ParamSymbol: NormalizeTicker(symbol),
		provider.ParamPeriod: period,
	}
	res, err := m.reg.FetchInOrder(ctx, provider.ModelEquityHistorical, params, m.opt.profileOrder)
	if err != nil {
		return nil, err
	}
	bars, err := provider.Typed[[]models.PriceBar](res)
	if err != nil {
		return nil, err
	}
	returns := models.DailyReturns(bars)
	if len(returns) == 0 {
		return nil, fmt.Errorf("no price history for %s over %s", symbol, period)
	}
	return returns, nil
}

// TotalDebt looks for debt in every profile source, then in each
// balance sheet: total, long-term, short/long-term, then current debt.
func (m *MarketData) TotalDebt(ctx context.Context, ticker string) (float64, error) {
	symbol := NormalizeTicker(ticker)
	for _, name := range m.servingOrder(provider.ModelEquityInfo) {
		prof, err := fetchProfile(ctx, m.reg, []string{name}, symbol)
		if err != nil {
			continue
		}
		for _, p := range []*float64{prof.TotalDebt, prof.LongTermDebt} {
			if v, ok := positive(p); ok {
				return v, nil
			}
		}
	}
	for _, name := range m.servingOrder(provider.ModelBalanceSheet) {
		bs, err := fetchStatement(ctx, m.reg, []string{name}, provider.ModelBalanceSheet, symbol, "annual")
		if err != nil {
			continue
		}
		for _, item := range []models.LineItem{
			models.ItemTotalDebt,
			models.ItemLongTermDebt,
			models.ItemShortLongTermDebt,
			models.ItemCurrentDebt,
		} {
			if v, ok := bs.Latest(item); ok && v > 0 {
				return v, nil
			}
		}
	}
	return 0, fmt.Errorf("no debt figure for %s", symbol)
}

// MarketCap tries market cap, enterprise value, then shares × price in
// every profile source.
func (m *MarketData) MarketCap(ctx context.Context, ticker string) (float64, error) {
	symbol := NormalizeTicker(ticker)
	for _, name := range m.servingOrder(provider.ModelEquityInfo) {
		prof, err := fetchProfile(ctx, m.reg, []string{name}, symbol)
		if err != nil {
			continue
		}
		if v, ok := positive(prof.MarketCap); ok {
			return v, nil
		}
		if v, ok := positive(prof.EnterpriseValue); ok {
			return v, nil
		}
		shares, okS := positive(prof.SharesOutstanding)
		price, okP := positive(prof.CurrentPrice)
		if okS && okP {
			return shares * price, nil
		}
	}
	return 0, fmt.Errorf("no market cap for %s", symbol)
}

// servingOrder lists the providers that serve model, profile order first.
func (m *MarketData) servingOrder(model provider.ModelType) []string {
	serving := m.reg.ProvidersFor(model)
	out := make([]string, 0, len(serving))
	seen := make(map[string]bool, len(serving))
	for _, name := range append(append([]string{}, m.opt.profileOrder...), serving...) {
		if seen[name] {
			continue
		}
		seen[name] = true
		if p, err := m.reg.Get(name); err == nil && p.Fetcher(model) != nil {
			out = append(out, name)
		}
	}
	return out
}

func reversed(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[len(names)-1-i] = n
	}
	return out
}
