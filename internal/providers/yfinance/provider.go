// Package yfinance implements the Yahoo Finance data provider.
// It wraps Yahoo Finance's public v8 chart and v10 quoteSummary APIs into
// the standard provider/fetcher framework.
//
// Yahoo Finance is a free, no-API-key provider. It is the broadest source
// here: profile, statements, price history and the ^TNX yield index.
package yfinance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/seenimoa/dcfvalue/internal/infra"
	"github.com/seenimoa/dcfvalue/internal/provider"
)

const (
	providerName   = "yfinance"
	defaultBaseURL = "https://query1.finance.yahoo.com"
)

// Provider implements provider.Provider for Yahoo Finance.
type Provider struct {
	provider.BaseProvider
	baseURL string
}

// Option configures a Provider.
type Option func(*Provider)

// WithBaseURL points the provider at another API root.
func WithBaseURL(u string) Option {
	return func(p *Provider) { p.baseURL = strings.TrimRight(u, "/") }
}

// New creates a new YFinance provider and registers all fetchers.
func New(opts ...Option) *Provider {
	p := &Provider{
		BaseProvider: provider.NewBaseProvider(
			providerName,
			"Yahoo Finance - free global financial data",
			"https://finance.yahoo.com",
			nil, // no credentials required
		),
		baseURL: defaultBaseURL,
	}
	for _, opt := range opts {
		opt(p)
	}

	limiter := infra.NewRateLimiter(5, 5)

	// --- Equity / Price ---
	p.RegisterFetcher(newEquityInfoFetcher(p.baseURL, limiter))
	p.RegisterFetcher(newEquityHistoricalFetcher(p.baseURL, limiter))

	// --- Equity / Fundamentals ---
	p.RegisterFetcher(newStatementFetcher(p.baseURL, limiter, balanceSheet))
	p.RegisterFetcher(newStatementFetcher(p.baseURL, limiter, incomeStatement))
	p.RegisterFetcher(newStatementFetcher(p.baseURL, limiter, cashFlowStatement))

	// --- Fixed income ---
	p.RegisterFetcher(newTreasuryRatesFetcher(p.baseURL, limiter))

	return p
}

// Ping checks connectivity to Yahoo Finance.
func (p *Provider) Ping(ctx context.Context) error {
	body, _, err := infra.DoGet(ctx, p.baseURL+"/v8/finance/chart/AAPL?range=1d&interval=1d", jsonHeaders())
	if err != nil {
		return fmt.Errorf("yfinance ping: %w", err)
	}
	body.Close()
	return nil
}

// --- Shared helpers ---

func jsonHeaders() map[string]string {
	return map[string]string{"Accept": "application/json"}
}

// fetchJSON performs a GET request and decodes the response into dest.
func fetchJSON(ctx context.Context, url string, dest any) error {
	body, _, err := infra.DoGet(ctx, url, jsonHeaders())
	if err != nil {
		return err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("parse JSON: %w", err)
	}
	return nil
}

// toYFTicker converts a symbol to Yahoo Finance format. Share classes use
// a dash on Yahoo (BRK-B), a dot elsewhere (BRK.B). Index symbols are left
// alone.
func toYFTicker(symbol string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if strings.HasPrefix(symbol, "^") {
		return symbol
	}
	return strings.ReplaceAll(symbol, ".", "-")
}

// coalesce returns the first non-empty string.
func coalesce(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// quoteSummary fetches the given modules for a ticker.
func quoteSummary(ctx context.Context, baseURL, yfTicker, modules string) (*yfQuoteSummaryResult, error) {
	u := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?modules=%s", baseURL, url.PathEscape(yfTicker), modules)

	var resp yfQuoteSummaryResponse
	if err := fetchJSON(ctx, u, &resp); err != nil {
		return nil, err
	}
	if resp.QuoteSummary.Error != nil {
		return nil, fmt.Errorf("yfinance API error: %s", resp.QuoteSummary.Error.Description)
	}
	if len(resp.QuoteSummary.Result) == 0 {
		return nil, fmt.Errorf("no quoteSummary data for %s", yfTicker)
	}
	return &resp.QuoteSummary.Result[0], nil
}
