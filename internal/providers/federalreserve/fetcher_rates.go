package federalreserve

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/seenimoa/dcfvalue/internal/provider"
	"github.com/seenimoa/dcfvalue/pkg/models"
)

// ---------------------------------------------------------------------------
// TreasuryRates: H.15 10-year constant maturity yield.
// URL: https://www.federalreserve.gov/feeds/Data/H15_H15_RIFLGFCY10_N.B.XML
// Items are titled "US: 10-year Treasury 4.36 2025-06-12 ...", in percent.
// ---------------------------------------------------------------------------

type treasuryRatesFetcher struct {
	provider.BaseFetcher
	url string

	mu     sync.Mutex // gofeed.Parser is not safe for concurrent use
	parser *gofeed.Parser
}

func newTreasuryRatesFetcher(baseURL string) *treasuryRatesFetcher {
	return &treasuryRatesFetcher{
		BaseFetcher: provider.NewBaseFetcher(
			provider.ModelTreasuryRates,
			"10-year Treasury constant maturity yield from the Fed H.15 feed",
			nil,
			nil,
			provider.WithCacheTTL(time.Hour),
			provider.WithRateLimit(1, 2),
		),
		url:    baseURL + h15TenYearFeed,
		parser: gofeed.NewParser(),
	}
}

var errNoRate = errors.New("no rate in H.15 feed")

func (f *treasuryRatesFetcher) Fetch(ctx context.Context, params provider.QueryParams) (*provider.FetchResult, error) {
	return f.Cached(ctx, params, func(ctx context.Context) (any, error) {
		f.mu.Lock()
		feed, err := fetchFeed(ctx, f.parser, f.url)
		f.mu.Unlock()
		if err != nil {
			return nil, fmt.Errorf("fed h15: %w", err)
		}
		quote, ok := latestRate(feed)
		if !ok {
			return nil, fmt.Errorf("fed h15: %w", errNoRate)
		}
		return quote, nil
	})
}

var (
	rateRe = regexp.MustCompile(`(?:^|\s)(-?\d+\.\d+)(?:\s|$)`)
	dateRe = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
)

// latestRate returns the newest item carrying a rate. The date comes from
// the title when present, else the item's publish time.
func latestRate(feed *gofeed.Feed) (models.YieldQuote, bool) {
	var (
		best  models.YieldQuote
		found bool
	)
	for _, item := range feed.Items {
		m := rateRe.FindStringSubmatch(item.Title)
		if m == nil {
			continue
		}
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		var asOf time.Time
		if d := dateRe.FindString(item.Title); d != "" {
			asOf, _ = time.Parse("2006-01-02", d)
		} else if item.PublishedParsed != nil {
			asOf = *item.PublishedParsed
		}
		if !found || asOf.After(best.AsOf) {
			best = models.YieldQuote{Source: "Fed H.15", Value: v / 100, AsOf: asOf}
			found = true
		}
	}
	return best, found
}
