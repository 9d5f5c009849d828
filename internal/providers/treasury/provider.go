// Package treasury implements a U.S. Department of the Treasury provider.
// It scrapes the Daily Treasury Par Yield Curve Rates page for the 10-year
// yield. No API key required.
package treasury

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/seenimoa/dcfvalue/internal/infra"
	"github.com/seenimoa/dcfvalue/internal/provider"
)

const (
	providerName   = "treasury"
	defaultBaseURL = "https://home.treasury.gov"
	yieldCurvePath = "/resource-center/data-chart-center/interest-rates/TextView"
)

// Provider is the Treasury yield curve provider.
type Provider struct {
	provider.BaseProvider
	baseURL string
}

// Option configures a Provider.
type Option func(*Provider)

// WithBaseURL points the provider at another host.
func WithBaseURL(u string) Option {
	return func(p *Provider) { p.baseURL = strings.TrimRight(u, "/") }
}

// New creates a new Treasury provider and registers its fetcher.
func New(opts ...Option) *Provider {
	p := &Provider{
		BaseProvider: provider.NewBaseProvider(
			providerName,
			"U.S. Treasury daily par yield curve rates (free, no API key)",
			"https://home.treasury.gov/resource-center/data-chart-center/interest-rates",
			nil,
		),
		baseURL: defaultBaseURL,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.RegisterFetcher(newTreasuryRatesFetcher(p.baseURL))
	return p
}

// Ping checks the yield curve page is reachable.
func (p *Provider) Ping(ctx context.Context) error {
	body, _, err := infra.DoGet(ctx, p.baseURL+yieldCurvePath+"?type=daily_treasury_yield_curve", htmlHeaders())
	if err != nil {
		return fmt.Errorf("treasury ping: %w", err)
	}
	body.Close()
	return nil
}

func htmlHeaders() map[string]string {
	return map[string]string{"Accept": "text/html"}
}

// fetchPage downloads and parses an HTML page.
func fetchPage(ctx context.Context, url string) (*goquery.Document, error) {
	body, _, err := infra.DoGet(ctx, url, htmlHeaders())
	if err != nil {
		return nil, err
	}
	defer body.Close()

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("parse treasury HTML: %w", err)
	}
	return doc, nil
}
