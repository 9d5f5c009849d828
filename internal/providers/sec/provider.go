// Package sec implements the SEC EDGAR data provider.
// It serves the ticker to CIK mapping and annual XBRL facts (operating
// cash flow, capital expenditure, shares outstanding, revenue) read from
// the companyconcept API.
//
// No API key required. Must include a User-Agent header per SEC policy.
// Docs: https://www.sec.gov/edgar/sec-api-documentation
// Rate limit: 10 requests/second per user-agent.
package sec

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/seenimoa/dcfvalue/internal/infra"
	"github.com/seenimoa/dcfvalue/internal/provider"
)

const (
	providerName = "sec"

	// SEC EDGAR endpoints.
	edgarDataURL = "https://data.sec.gov" // JSON data API
	edgarWWWURL  = "https://www.sec.gov"  // static files (company_tickers.json)

	credUserAgent = "user_agent"

	// SEC requires a User-Agent with a name and contact address.
	defaultUserAgent = "dcfvalue/1.0 (dcfvalue@users.noreply.github.com)"
)

// Provider implements provider.Provider for SEC EDGAR.
type Provider struct {
	provider.BaseProvider
	api *edgarClient
}

// edgarClient holds what every fetcher needs to reach EDGAR.
type edgarClient struct {
	dataURL   string
	wwwURL    string
	userAgent string
}

// Option configures a Provider.
type Option func(*Provider)

// WithBaseURL points both EDGAR hosts at one root.
func WithBaseURL(u string) Option {
	return func(p *Provider) {
		u = strings.TrimRight(u, "/")
		p.api.dataURL, p.api.wwwURL = u, u
	}
}

// New creates a new SEC provider and registers all fetchers.
func New(opts ...Option) *Provider {
	p := &Provider{
		BaseProvider: provider.NewBaseProvider(
			providerName,
			"SEC EDGAR - US issuer XBRL facts and CIK mappings",
			"https://www.sec.gov/edgar",
			[]provider.ProviderCredential{
				{
					Name:        credUserAgent,
					Description: "User-Agent with contact address sent to EDGAR",
					Required:    false,
					EnvVar:      "DCFVALUE_PROVIDERS_SEC_USER_AGENT",
				},
			},
		),
		api: &edgarClient{dataURL: edgarDataURL, wwwURL: edgarWWWURL, userAgent: defaultUserAgent},
	}
	for _, opt := range opts {
		opt(p)
	}

	limiter := infra.NewRateLimiter(10, 10)

	// --- Mappings ---
	p.RegisterFetcher(newCikMapFetcher(p.api, limiter))

	// --- Facts ---
	p.RegisterFetcher(newCompanyFactsFetcher(p.api, limiter))

	return p
}

// Init stores the User-Agent, if given.
func (p *Provider) Init(credentials map[string]string) error {
	if err := p.BaseProvider.Init(credentials); err != nil {
		return err
	}
	if ua := strings.TrimSpace(credentials[credUserAgent]); ua != "" {
		p.api.userAgent = ua
	}
	return nil
}

// Ping checks connectivity to SEC EDGAR.
func (p *Provider) Ping(ctx context.Context) error {
	url := p.api.dataURL + "/submissions/CIK0000320193.json" // Apple
	body, _, err := infra.DoGet(ctx, url, p.api.headers())
	if err != nil {
		return fmt.Errorf("sec ping: %w", err)
	}
	body.Close()
	return nil
}

// UserAgent returns the User-Agent sent to EDGAR.
func (p *Provider) UserAgent() string {
	return p.api.userAgent
}

// --- Shared helpers ---

func (c *edgarClient) headers() map[string]string {
	return map[string]string{
		"User-Agent": c.userAgent,
		"Accept":     "application/json",
	}
}

// fetchJSON performs a GET request to EDGAR and decodes JSON.
func (c *edgarClient) fetchJSON(ctx context.Context, url string, dest any) error {
	body, _, err := infra.DoGet(ctx, url, c.headers())
	if err != nil {
		return err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("read SEC response: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("parse SEC JSON: %w", err)
	}
	return nil
}

// padCIK strips and re-pads a CIK number to 10 digits with leading zeros.
func padCIK(cik string) string {
	cik = strings.TrimLeft(strings.TrimSpace(cik), "0")
	for len(cik) < 10 {
		cik = "0" + cik
	}
	return cik
}
