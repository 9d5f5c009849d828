package fmp

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"sort"
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
			"Company profile from Financial Modeling Prep",
			[]string{provider.ParamSymbol},
			nil,
			provider.WithCacheTTL(time.Hour),
			provider.WithLimiter(limiter),
		),
		baseURL: baseURL,
	}
}

var errNoProfile = errors.New("no profile")

func (f *equityInfoFetcher) Fetch(ctx context.Context, params provider.QueryParams) (*provider.FetchResult, error) {
	if err := provider.ValidateParams(params, f.RequiredParams()); err != nil {
		return nil, err
	}
	symbol := params[provider.ParamSymbol]

	return f.Cached(ctx, params, func(ctx context.Context) (any, error) {
		var results []fmpProfile
		if err := fetchFMPJSON(ctx, f.baseURL, "/profile/"+url.PathEscape(symbol), params[paramAPIKey], &results); err != nil {
			return nil, fmt.Errorf("fmp profile %s: %w", symbol, err)
		}
		if len(results) == 0 {
			return nil, fmt.Errorf("fmp profile %s: %w", symbol, errNoProfile)
		}
		r := results[0]
		return &models.CompanyProfile{
			Ticker:       symbol,
			Name:         r.CompanyName,
			Sector:       r.Sector,
			Industry:     r.Industry,
			Country:      r.Country,
			MarketCap:    positive(r.MktCap),
			CurrentPrice: positive(r.Price),
			Beta:         r.Beta,
		}, nil
	})
}

// positive drops zero and negative values, which FMP reports for
// unknown market data.
func positive(v *float64) *float64 {
	if v == nil || !(*v > 0) {
		return nil
	}
	return v
}

// --- Statement fetchers ---

var statementPaths = map[provider.ModelType]struct {
	path string
	kind models.StatementKind
}{
	provider.ModelIncomeStatement:   {"/income-statement/", models.KindIncomeStatement},
	provider.ModelBalanceSheet:      {"/balance-sheet-statement/", models.KindBalanceSheet},
	provider.ModelCashFlowStatement: {"/cash-flow-statement/", models.KindCashFlow},
}

type statementFetcher struct {
	provider.BaseFetcher
	baseURL string
	path    string
	kind    models.StatementKind
}

func newStatementFetcher(baseURL string, limiter *infra.RateLimiter, model provider.ModelType) *statementFetcher {
	sp := statementPaths[model]
	return &statementFetcher{
		BaseFetcher: provider.NewBaseFetcher(
			model,
			fmt.Sprintf("%s from Financial Modeling Prep", model),
			[]string{provider.ParamSymbol},
			[]string{provider.ParamPeriod, provider.ParamLimit},
			provider.WithCacheTTL(time.Hour),
			provider.WithLimiter(limiter),
		),
		baseURL: baseURL,
		path:    sp.path,
		kind:    sp.kind,
	}
}

func (f *statementFetcher) Fetch(ctx context.Context, params provider.QueryParams) (*provider.FetchResult, error) {
	if err := provider.ValidateParams(params, f.RequiredParams()); err != nil {
		return nil, err
	}
	symbol := params[provider.ParamSymbol]

	return f.Cached(ctx, params, func(ctx context.Context) (any, error) {
		period := params[provider.ParamPeriod]
		path := f.path + url.PathEscape(symbol) + "?"
		periodType := "annual"
		if period == "quarterly" {
			path += "period=quarter&"
			periodType = "quarterly"
		}
		if limit := params[provider.ParamLimit]; limit != "" {
			path += "limit=" + url.QueryEscape(limit)
		} else {
			path += "limit=10"
		}

		var results []fmpStatement
		if err := fetchFMPJSON(ctx, f.baseURL, path, params[paramAPIKey], &results); err != nil {
			return nil, fmt.Errorf("fmp %s %s: %w", f.ModelType(), symbol, err)
		}
		if len(results) == 0 {
			return nil, fmt.Errorf("no %s data for %s", f.ModelType(), symbol)
		}
		return parseStatement(f.kind, periodType, results), nil
	})
}

// parseStatement converts FMP periods (newest first) into a typed
// Statement. Non-numeric fields are ignored; absent cells become NaN.
func parseStatement(kind models.StatementKind, periodType string, results []fmpStatement) *models.Statement {
	periods := make([]string, len(results))
	seen := map[string]bool{}
	for i, r := range results {
		if d, ok := r["date"].(string); ok {
			periods[i] = d
		}
		for k, v := range r {
			if _, ok := v.(float64); ok {
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
		series := make([]float64, len(results))
		for i, r := range results {
			series[i] = math.NaN()
			if v, ok := r[label].(float64); ok {
				series[i] = v
			}
		}
		rows[label] = series
	}
	return models.NewStatement(kind, periodType, periods, labels, rows)
}
