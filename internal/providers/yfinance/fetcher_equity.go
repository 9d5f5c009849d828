package yfinance

import (
	"context"
	"fmt"
	"net/url"
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
			"Company profile, market and analyst fields from Yahoo Finance",
			[]string{provider.ParamSymbol},
			nil,
			provider.WithCacheTTL(15*time.Minute),
			provider.WithLimiter(limiter),
		),
		baseURL: baseURL,
	}
}

const profileModules = "assetProfile,financialData,summaryDetail,defaultKeyStatistics,price"

func (f *equityInfoFetcher) Fetch(ctx context.Context, params provider.QueryParams) (*provider.FetchResult, error) {
	if err := provider.ValidateParams(params, f.RequiredParams()); err != nil {
		return nil, err
	}
	symbol := params[provider.ParamSymbol]
	yfTicker := toYFTicker(symbol)

	return f.Cached(ctx, params, func(ctx context.Context) (any, error) {
		r, err := quoteSummary(ctx, f.baseURL, yfTicker, profileModules)
		if err != nil {
			return nil, fmt.Errorf("yfinance info %s: %w", yfTicker, err)
		}
		return buildProfile(symbol, r), nil
	})
}

// buildProfile maps quoteSummary modules onto a CompanyProfile. Fields
// Yahoo does not report stay nil.
func buildProfile(symbol string, r *yfQuoteSummaryResult) *models.CompanyProfile {
	var (
		ap yfAssetProfile
		ks yfDefaultKeyStatistics
		sd yfSummaryDetail
		fd yfFinancialData
		pr yfPrice
	)
	if r.AssetProfile != nil {
		ap = *r.AssetProfile
	}
	if r.DefaultKeyStatistics != nil {
		ks = *r.DefaultKeyStatistics
	}
	if r.SummaryDetail != nil {
		sd = *r.SummaryDetail
	}
	if r.FinancialData != nil {
		fd = *r.FinancialData
	}
	if r.Price != nil {
		pr = *r.Price
	}

	return &models.CompanyProfile{
		Ticker:   symbol,
		Name:     coalesce(pr.LongName, pr.ShortName),
		Sector:   ap.Sector,
		Industry: ap.Industry,
		Country:  ap.Country,

		MarketCap:         firstOf(sd.MarketCap, pr.MarketCap),
		EnterpriseValue:   ks.EnterpriseValue.ptr(),
		SharesOutstanding: ks.SharesOutstanding.ptr(),
		CurrentPrice:      firstOf(fd.CurrentPrice, pr.RegularMarketPrice),
		PreviousClose:     sd.PreviousClose.ptr(),
		Beta:              firstOf(sd.Beta, ks.Beta),

		TotalDebt: fd.TotalDebt.ptr(),

		EarningsGrowth:          fd.EarningsGrowth.ptr(),
		EarningsQuarterlyGrowth: ks.EarningsQuarterlyGrowth.ptr(),
		TargetMeanPrice:         fd.TargetMeanPrice.ptr(),
		TrailingPE:              sd.TrailingPE.ptr(),
		ForwardPE:               firstOf(ks.ForwardPE, sd.ForwardPE),
		DividendYield:           sd.DividendYield.ptr(),
		ProfitMargins:           fd.ProfitMargins.ptr(),
		ReturnOnEquity:          fd.ReturnOnEquity.ptr(),
	}
}

// firstOf returns the first present value.
func firstOf(vals ...yfFinVal) *float64 {
	for _, v := range vals {
		if p := v.ptr(); p != nil {
			return p
		}
	}
	return nil
}

// --- EquityHistorical fetcher ---

type equityHistoricalFetcher struct {
	provider.BaseFetcher
	baseURL string
}

func newEquityHistoricalFetcher(baseURL string, limiter *infra.RateLimiter) *equityHistoricalFetcher {
	return &equityHistoricalFetcher{
		BaseFetcher: provider.NewBaseFetcher(
			provider.ModelEquityHistorical,
			"Daily closes from Yahoo Finance, oldest first",
			[]string{provider.ParamSymbol},
			[]string{provider.ParamPeriod},
			provider.WithCacheTTL(15*time.Minute),
			provider.WithLimiter(limiter),
		),
		baseURL: baseURL,
	}
}

func (f *equityHistoricalFetcher) Fetch(ctx context.Context, params provider.QueryParams) (*provider.FetchResult, error) {
	if err := provider.ValidateParams(params, f.RequiredParams()); err != nil {
		return nil, err
	}
	yfTicker := toYFTicker(params[provider.ParamSymbol])
	period := params[provider.ParamPeriod]
	if period == "" {
		period = "1y"
	}

	return f.Cached(ctx, params, func(ctx context.Context) (any, error) {
		u := fmt.Sprintf("%s/v8/finance/chart/%s?range=%s&interval=1d", f.baseURL, url.PathEscape(yfTicker), url.QueryEscape(period))

		var resp yfChartResponse
		if err := fetchJSON(ctx, u, &resp); err != nil {
			return nil, fmt.Errorf("yfinance chart %s: %w", yfTicker, err)
		}
		if resp.Chart.Error != nil {
			return nil, fmt.Errorf("yfinance chart error: %s", resp.Chart.Error.Description)
		}
		if len(resp.Chart.Result) == 0 {
			return nil, fmt.Errorf("no chart data for %s", yfTicker)
		}
		return parseBars(resp.Chart.Result[0]), nil
	})
}

// parseBars converts chart data to daily closes, preferring adjusted
// closes. Sessions without a close are skipped.
func parseBars(result yfChartResult) []models.PriceBar {
	var closes []*float64
	if len(result.Indicators.AdjClose) > 0 && len(result.Indicators.AdjClose[0].AdjClose) == len(result.Timestamp) {
		closes = result.Indicators.AdjClose[0].AdjClose
	} else if len(result.Indicators.Quote) > 0 {
		closes = result.Indicators.Quote[0].Close
	}

	bars := make([]models.PriceBar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue
		}
		bars = append(bars, models.PriceBar{Date: time.Unix(ts, 0).UTC(), Close: *closes[i]})
	}
	return bars
}
