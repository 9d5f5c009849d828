package alphavantage

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/seenimoa/dcfvalue/internal/infra"
	"github.com/seenimoa/dcfvalue/internal/provider"
	"github.com/seenimoa/dcfvalue/pkg/models"
)

// --- EquityInfo fetcher ---

type equityInfoFetcher struct {
	provider.BaseFetcher
	baseURL string
}

func newEquityInfoFetcher(baseURL string, limiter *infra.RateLimiter) *equityInfoFetcher {
	return &equityInfoFetcher{
		BaseFetcher: provider.NewBaseFetcher(
			provider.ModelEquityInfo,
			"Company overview and latest quote from Alpha Vantage",
			[]string{provider.ParamSymbol},
			nil,
			provider.WithCacheTTL(time.Hour),
			provider.WithLimiter(limiter),
		),
		baseURL: baseURL,
	}
}

var errNoProfile = errors.New("no overview")

func (f *equityInfoFetcher) Fetch(ctx context.Context, params provider.QueryParams) (*provider.FetchResult, error) {
	if err := provider.ValidateParams(params, f.RequiredParams()); err != nil {
		return nil, err
	}
	symbol := params[provider.ParamSymbol]
	apiKey := params[paramAPIKey]

	return f.Cached(ctx, params, func(ctx context.Context) (any, error) {
		var ov avOverview
		if err := fetchAVJSON(ctx, f.baseURL, "OVERVIEW", symbol, apiKey, &ov); err != nil {
			return nil, fmt.Errorf("alphavantage overview %s: %w", symbol, err)
		}
		// Unknown symbols return an empty object.
		if ov.Symbol == "" {
			return nil, fmt.Errorf("alphavantage overview %s: %w", symbol, errNoProfile)
		}

		prof := &models.CompanyProfile{
			Ticker:                  symbol,
			Name:                    ov.Name,
			Sector:                  ov.Sector,
			Industry:                ov.Industry,
			Country:                 ov.Country,
			MarketCap:               ov.MarketCapitalization.positive(),
			SharesOutstanding:       ov.SharesOutstanding.positive(),
			Beta:                    ov.Beta.ptr(),
			TrailingPE:              ov.PERatio.positive(),
			ForwardPE:               ov.ForwardPE.positive(),
			ProfitMargins:           ov.ProfitMargin.ptr(),
			ReturnOnEquity:          ov.ReturnOnEquityTTM.ptr(),
			DividendYield:           ov.DividendYield.ptr(),
			TargetMeanPrice:         ov.AnalystTargetPrice.positive(),
			EarningsQuarterlyGrowth: ov.QuarterlyEarningsGrowthYOY.ptr(),
		}

		// The overview carries no price; a failed quote leaves it unset.
		var quote avQuoteResponse
		if err := fetchAVJSON(ctx, f.baseURL, "GLOBAL_QUOTE", symbol, apiKey, &quote); err == nil {
			prof.CurrentPrice = quote.Quote.Price.positive()
			prof.PreviousClose = quote.Quote.PreviousClose.positive()
		}
		return prof, nil
	})
}

// --- Statement fetchers ---

var statementFunctions = map[provider.ModelType]struct {
	function string
	kind     models.StatementKind
}{
	provider.ModelIncomeStatement:   {"INCOME_STATEMENT", models.KindIncomeStatement},
	provider.ModelBalanceSheet:      {"BALANCE_SHEET", models.KindBalanceSheet},
	provider.ModelCashFlowStatement: {"CASH_FLOW", models.KindCashFlow},
}

type statementFetcher struct {
	provider.BaseFetcher
	baseURL  string
	function string
	kind     models.StatementKind
}

func newStatementFetcher(baseURL string, limiter *infra.RateLimiter, model provider.ModelType) *statementFetcher {
	sf := statementFunctions[model]
	return &statementFetcher{
		BaseFetcher: provider.NewBaseFetcher(
			model,
			fmt.Sprintf("%s from Alpha Vantage", model),
			[]string{provider.ParamSymbol},
			[]string{provider.ParamPeriod, provider.ParamLimit},
			provider.WithCacheTTL(time.Hour),
			provider.WithLimiter(limiter),
		),
		baseURL:  baseURL,
		function: sf.function,
		kind:     sf.kind,
	}
}

func (f *statementFetcher) Fetch(ctx context.Context, params provider.QueryParams) (*provider.FetchResult, error) {
	if err := provider.ValidateParams(params, f.RequiredParams()); err != nil {
		return nil, err
	}
	symbol := params[provider.ParamSymbol]

	return f.Cached(ctx, params, func(ctx context.Context) (any, error) {
		var resp avReports
		if err := fetchAVJSON(ctx, f.baseURL, f.function, symbol, params[paramAPIKey], &resp); err != nil {
			return nil, fmt.Errorf("alphavantage %s %s: %w", f.ModelType(), symbol, err)
		}

		reports, periodType := resp.AnnualReports, "annual"
		if params[provider.ParamPeriod] == "quarterly" {
			reports, periodType = resp.QuarterlyReports, "quarterly"
		}
		if n, err := strconv.Atoi(params[provider.ParamLimit]); err == nil && n > 0 && n < len(reports) {
			reports = reports[:n]
		}
		if len(reports) == 0 {
			return nil, fmt.Errorf("no %s data for %s", f.ModelType(), symbol)
		}
		return parseReports(f.kind, periodType, reports), nil
	})
}

// parseReports converts Alpha Vantage reports (newest first) into a typed
// Statement. Fields that never parse as numbers are metadata and dropped.
func parseReports(kind models.StatementKind, periodType string, reports []map[string]string) *models.Statement {
	periods := make([]string, len(reports))
	seen := map[string]bool{}
	for i, r := range reports {
		periods[i] = r["fiscalDateEnding"]
		for k, v := range r {
			if _, ok := avNumber(v).float(); ok {
				seen[k] = true
			}
		}
	}
	labels := make([]string, 0, len(seen))
	for k := range seen {
		labels = append(labels, k)
	}
	sort.Strings(labels)

	rows := make(map[string][]float64, len(labels))
	for _, label := range labels {
		series := make([]float64, len(reports))
		for i, r := range reports {
			series[i] = math.NaN()
			if v, ok := avNumber(r[label]).float(); ok {
				series[i] = v
			}
		}
		rows[label] = series
	}
	return models.NewStatement(kind, periodType, periods, labels, rows)
}
