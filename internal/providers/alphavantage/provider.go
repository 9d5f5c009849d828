// Package alphavantage implements the Alpha Vantage data provider.
// Alpha Vantage serves company overviews, quotes and annual/quarterly
// financial statements through a single query endpoint selected by a
// "function" parameter.
//
// Free tier: 25 requests/day.
// Docs: https://www.alphavantage.co/documentation/
package alphavantage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/seenimoa/dcfvalue/internal/infra"
	"github.com/seenimoa/dcfvalue/internal/provider"
)

const (
	providerName   = "alphavantage"
	defaultBaseURL = "https://www.alphavantage.co/query"
	credAPIKey     = "api_key"
	paramAPIKey    = "_av_api_key"
)

// Provider implements provider.Provider for Alpha Vantage.
type Provider struct {
	provider.BaseProvider
	apiKey  string
	baseURL string
}

// Option configures a Provider.
type Option func(*Provider)

// WithBaseURL points the provider at another query endpoint.
func WithBaseURL(u string) Option {
	return func(p *Provider) { p.baseURL = strings.TrimRight(u, "/") }
}

// New creates a new Alpha Vantage provider and registers all fetchers.
func New(opts ...Option) *Provider {
	p := &Provider{
		BaseProvider: provider.NewBaseProvider(
			providerName,
			"Alpha Vantage - company overviews, quotes and financial statements",
			"https://www.alphavantage.co",
			[]provider.ProviderCredential{
				{
					Name:        credAPIKey,
					Description: "Alpha Vantage API key from alphavantage.co",
					Required:    true,
					EnvVar:      "DCFVALUE_PROVIDERS_ALPHA_VANTAGE_API_KEY",
				},
			},
		),
		baseURL: defaultBaseURL,
	}
	for _, opt := range opts {
		opt(p)
	}

	// The free tier allows 5 calls per minute.
	limiter := infra.NewRateLimiter(5.0/60, 5)

	p.RegisterFetcher(newEquityInfoFetcher(p.baseURL, limiter))
	p.RegisterFetcher(newStatementFetcher(p.baseURL, limiter, provider.ModelIncomeStatement))
	p.RegisterFetcher(newStatementFetcher(p.baseURL, limiter, provider.ModelBalanceSheet))
	p.RegisterFetcher(newStatementFetcher(p.baseURL, limiter, provider.ModelCashFlowStatement))

	return p
}

// Init stores the API key.
func (p *Provider) Init(credentials map[string]string) error {
	if err := p.BaseProvider.Init(credentials); err != nil {
		return err
	}
	p.apiKey = credentials[credAPIKey]
	return nil
}

// Ping checks connectivity to Alpha Vantage.
func (p *Provider) Ping(ctx context.Context) error {
	var quote avQuoteResponse
	if err := fetchAVJSON(ctx, p.baseURL, "GLOBAL_QUOTE", "IBM", p.apiKey, &quote); err != nil {
		return fmt.Errorf("alphavantage ping: %w", err)
	}
	return nil
}

// Fetcher wraps the registered fetcher so the API key reaches it through
// the query params.
func (p *Provider) Fetcher(model provider.ModelType) provider.Fetcher {
	inner := p.BaseProvider.Fetcher(model)
	if inner == nil {
		return nil
	}
	return &apiKeyInjector{inner: inner, apiKey: &p.apiKey}
}

type apiKeyInjector struct {
	inner  provider.Fetcher
	apiKey *string
}

func (w *apiKeyInjector) ModelType() provider.ModelType { return w.inner.ModelType() }
func (w *apiKeyInjector) Description() string           { return w.inner.Description() }
func (w *apiKeyInjector) RequiredParams() []string      { return w.inner.RequiredParams() }
func (w *apiKeyInjector) OptionalParams() []string      { return w.inner.OptionalParams() }

func (w *apiKeyInjector) Fetch(ctx context.Context, params provider.QueryParams) (*provider.FetchResult, error) {
	enriched := make(provider.QueryParams, len(params)+1)
	for k, v := range params {
		enriched[k] = v
	}
	enriched[paramAPIKey] = *w.apiKey
	return w.inner.Fetch(ctx, enriched)
}

// --- Shared helpers ---

// ErrAPI reports an error or throttling notice that Alpha Vantage
// returned with a 200 status.
var ErrAPI = errors.New("alphavantage api error")

func queryURL(base, function, symbol, apiKey string) string {
	q := url.Values{}
	q.Set("function", function)
	q.Set("symbol", symbol)
	q.Set("apikey", apiKey)
	return base + "?" + q.Encode()
}

// fetchAVJSON runs one query function and decodes the response into dest.
func fetchAVJSON(ctx context.Context, base, function, symbol, apiKey string, dest any) error {
	body, _, err := infra.DoGet(ctx, queryURL(base, function, symbol, apiKey), map[string]string{"Accept": "application/json"})
	if err != nil {
		return err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var env avEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("parse Alpha Vantage JSON: %w", err)
	}
	if msg := env.message(); msg != "" {
		return fmt.Errorf("%w: %s", ErrAPI, msg)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("parse Alpha Vantage JSON: %w", err)
	}
	return nil
}
