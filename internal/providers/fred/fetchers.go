package fred

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"time"

	"github.com/seenimoa/dcfvalue/internal/infra"
	"github.com/seenimoa/dcfvalue/internal/provider"
	"github.com/seenimoa/dcfvalue/pkg/models"
)

// tenYearSeries is the 10-year Treasury constant maturity rate, in percent.
const tenYearSeries = "DGS10"

// ---- FredSeries fetcher ----

type seriesFetcher struct {
	provider.BaseFetcher
	baseURL string
}

func newSeriesFetcher(baseURL string, limiter *infra.RateLimiter) *seriesFetcher {
	return &seriesFetcher{
		BaseFetcher: provider.NewBaseFetcher(
			provider.ModelFredSeries,
			"FRED series observations, oldest first",
			[]string{provider.ParamSeries},
			[]string{provider.ParamLimit},
			provider.WithCacheTTL(time.Hour),
			provider.WithLimiter(limiter),
		),
		baseURL: baseURL,
	}
}

func (f *seriesFetcher) Fetch(ctx context.Context, params provider.QueryParams) (*provider.FetchResult, error) {
	if err := provider.ValidateParams(params, f.RequiredParams()); err != nil {
		return nil, err
	}
	return f.Cached(ctx, params, func(ctx context.Context) (any, error) {
		obs, err := fetchObservations(ctx, f.baseURL, params[provider.ParamSeries], params[paramAPIKey], params[provider.ParamLimit])
		if err != nil {
			return nil, fmt.Errorf("fred series %s: %w", params[provider.ParamSeries], err)
		}
		return obs, nil
	})
}

// fetchObservations returns the valid observations of a series, oldest
// first. With a limit, only the most recent limit observations are
// requested.
func fetchObservations(ctx context.Context, base, seriesID, apiKey, limit string) ([]models.Observation, error) {
	endpoint := "series/observations?series_id=" + url.QueryEscape(seriesID)
	if limit != "" {
		endpoint += "&sort_order=desc&limit=" + url.QueryEscape(limit)
	}

	var resp fredObservationsResponse
	if err := fetchFredJSON(ctx, base, endpoint, apiKey, &resp); err != nil {
		return nil, err
	}

	out := make([]models.Observation, 0, len(resp.Observations))
	for _, o := range resp.Observations {
		v, ok := parseValue(o.Value)
		if !ok {
			continue
		}
		out = append(out, models.Observation{Date: parseFredDate(o.Date), Value: v})
	}
	if limit != "" {
		slices.Reverse(out)
	}
	return out, nil
}

// ---- TreasuryRates fetcher ----

type treasuryRatesFetcher struct {
	provider.BaseFetcher
	baseURL string
}

func newTreasuryRatesFetcher(baseURL string, limiter *infra.RateLimiter) *treasuryRatesFetcher {
	return &treasuryRatesFetcher{
		BaseFetcher: provider.NewBaseFetcher(
			provider.ModelTreasuryRates,
			"10-year Treasury constant maturity yield (DGS10)",
			nil, nil,
			provider.WithCacheTTL(time.Hour),
			provider.WithLimiter(limiter),
		),
		baseURL: baseURL,
	}
}

var errNoObservation = errors.New("no valid observation")

func (f *treasuryRatesFetcher) Fetch(ctx context.Context, params provider.QueryParams) (*provider.FetchResult, error) {
	return f.Cached(ctx, params, func(ctx context.Context) (any, error) {
		// A week of daily observations covers holidays.
		obs, err := fetchObservations(ctx, f.baseURL, tenYearSeries, params[paramAPIKey], "10")
		if err != nil {
			return nil, fmt.Errorf("fred %s: %w", tenYearSeries, err)
		}
		if len(obs) == 0 {
			return nil, fmt.Errorf("fred %s: %w", tenYearSeries, errNoObservation)
		}
		last := obs[len(obs)-1]
		return models.YieldQuote{Source: "FRED " + tenYearSeries, Value: last.Value / 100, AsOf: last.Date}, nil
	})
}
