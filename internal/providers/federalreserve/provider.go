// Package federalreserve implements a Federal Reserve data provider.
// It reads the 10-year Treasury constant maturity yield from the Fed
// Board's H.15 Selected Interest Rates RSS data feed. No API key required.
package federalreserve

import (
	"context"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/seenimoa/dcfvalue/internal/infra"
	"github.com/seenimoa/dcfvalue/internal/provider"
)

const (
	providerName = "federal_reserve"

	// Fed Board data feeds.
	baseFedBoard = "https://www.federalreserve.gov"

	// H.15 10-year Treasury constant maturity, business day.
	h15TenYearFeed = "/feeds/Data/H15_H15_RIFLGFCY10_N.B.XML"
)

// Provider is the Federal Reserve data provider.
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

// New creates a new Federal Reserve provider and registers all fetchers.
func New(opts ...Option) *Provider {
	p := &Provider{
		BaseProvider: provider.NewBaseProvider(
			providerName,
			"Federal Reserve Board H.15 selected interest rates (free, no API key)",
			"https://www.federalreserve.gov/releases/h15/",
			nil, // no credentials required
		),
		baseURL: baseFedBoard,
	}
	for _, opt := range opts {
		opt(p)
	}

	p.RegisterFetcher(newTreasuryRatesFetcher(p.baseURL))
	return p
}

// Ping verifies the H.15 feed is reachable.
func (p *Provider) Ping(ctx context.Context) error {
	if _, err := fetchFeed(ctx, gofeed.NewParser(), p.baseURL+h15TenYearFeed); err != nil {
		return fmt.Errorf("federal reserve ping: %w", err)
	}
	return nil
}

// fetchFeed downloads a feed through the shared HTTP client and parses it.
func fetchFeed(ctx context.Context, parser *gofeed.Parser, url string) (*gofeed.Feed, error) {
	body, _, err := infra.DoGet(ctx, url, map[string]string{"Accept": "application/rss+xml, application/xml"})
	if err != nil {
		return nil, err
	}
	defer body.Close()

	feed, err := parser.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return feed, nil
}
