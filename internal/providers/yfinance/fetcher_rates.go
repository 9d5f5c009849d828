package yfinance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/seenimoa/dcfvalue/internal/infra"
	"github.com/seenimoa/dcfvalue/internal/provider"
	"github.com/seenimoa/dcfvalue/pkg/models"
)

// tenYearIndex is the CBOE 10-year Treasury yield index, quoted in percent.
const tenYearIndex = "^TNX"

// --- TreasuryRates fetcher ---

type treasuryRatesFetcher struct {
	provider.BaseFetcher
	baseURL string
}

func newTreasuryRatesFetcher(baseURL string, limiter *infra.RateLimiter) *treasuryRatesFetcher {
	return &treasuryRatesFetcher{
		BaseFetcher: provider.NewBaseFetcher(
			provider.ModelTreasuryRates,
			"10-year Treasury yield from the ^TNX previous close",
			nil, nil,
			provider.WithCacheTTL(time.Hour),
			provider.WithLimiter(limiter),
		),
		baseURL: baseURL,
	}
}

func (f *treasuryRatesFetcher) Fetch(ctx context.Context, params provider.QueryParams) (*provider.FetchResult, error) {
	return f.Cached(ctx, params, func(ctx context.Context) (any, error) {
		r, err := quoteSummary(ctx, f.baseURL, tenYearIndex, "summaryDetail")
		if err != nil {
			return nil, fmt.Errorf("yfinance %s: %w", tenYearIndex, err)
		}
		if r.SummaryDetail == nil || r.SummaryDetail.PreviousClose.ptr() == nil {
			return nil, fmt.Errorf("yfinance %s: %w", tenYearIndex, errors.New("no previous close"))
		}
		return models.YieldQuote{
			Source: "Yahoo " + tenYearIndex,
			Value:  *r.SummaryDetail.PreviousClose.ptr() / 100,
			AsOf:   time.Now(),
		}, nil
	})
}
