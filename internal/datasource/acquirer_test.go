package datasource

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/dcfvalue/internal/provider"
	"github.com/seenimoa/dcfvalue/pkg/models"
)

func secStub(facts *models.Statement) (*stubProvider, *stubFetcher) {
	sec := newStub(SourceSEC)
	cikMap := sec.serve(provider.ModelCikMap, value("0000320193"))
	sec.serve(provider.ModelCompanyFacts, func(p provider.QueryParams) (any, error) {
		if p[provider.ParamCIK] == "" {
			return nil, errors.New("missing cik")
		}
		return facts, nil
	})
	return sec, cikMap
}

func yahooStub(profile *models.CompanyProfile, annualCF, quarterlyCF *models.Statement) *stubProvider {
	yf := newStub(SourceYahoo)
	yf.serve(provider.ModelEquityInfo, value(profile))
	yf.serve(provider.ModelCashFlowStatement, byPeriod(annualCF, quarterlyCF))
	yf.serve(provider.ModelIncomeStatement, value(statement(models.KindIncomeStatement, "annual", map[models.LineItem][]float64{
		models.ItemTotalRevenue: {400, 380, nan, 350},
	})))
	yf.serve(provider.ModelEquityHistorical, value([]models.PriceBar{{Close: 99}, {Close: 101}}))
	return yf
}

func TestAcquirerPrefersSEC(t *testing.T) {
	facts := statement(models.KindCompanyFacts, "annual", map[models.LineItem][]float64{
		models.ItemFreeCashFlow:      {110, 100, 90},
		models.ItemSharesOutstanding: {15, 16, 17},
		models.ItemTotalRevenue:      {500, 450, 400},
	})
	sec, cikMap := secStub(facts)
	yf := yahooStub(&models.CompanyProfile{CurrentPrice: models.Float(187.5)}, nil, nil)

	a := NewAcquirer(registry(t, sec, yf))
	rec, err := a.Fetch(context.Background(), " aapl ", "")
	require.NoError(t, err)

	assert.Equal(t, "AAPL", rec.Ticker)
	assert.Equal(t, "SEC EDGAR", rec.DataSource)
	assert.Equal(t, 110.0, rec.FreeCashFlow)
	assert.Equal(t, 15.0, rec.SharesOutstanding)
	assert.Equal(t, 187.5, rec.CurrentPrice)
	assert.Equal(t, []float64{110, 100, 90}, rec.HistoricalFCF)
	assert.Equal(t, []float64{500, 450, 400}, rec.HistoricalRevenue)
	assert.EqualValues(t, 1, cikMap.calls.Load())
}

func TestAcquirerSECUsesGivenCIK(t *testing.T) {
	facts := statement(models.KindCompanyFacts, "annual", map[models.LineItem][]float64{
		models.ItemOperatingCashFlow:  {120},
		models.ItemCapitalExpenditure: {-20},
		models.ItemSharesOutstanding:  {10},
	})
	sec, cikMap := secStub(facts)
	yf := yahooStub(&models.CompanyProfile{}, nil, nil)

	rec, err := NewAcquirer(registry(t, sec, yf)).Fetch(context.Background(), "MSFT", "789019")
	require.NoError(t, err)

	assert.Equal(t, 100.0, rec.FreeCashFlow)
	// No profile price, so the last close is used.
	assert.Equal(t, 101.0, rec.CurrentPrice)
	assert.Zero(t, cikMap.calls.Load())
}

func TestAcquirerFallsBackToFMP(t *testing.T) {
	sec := newStub(SourceSEC)
	sec.serve(provider.ModelCikMap, down)
	sec.serve(provider.ModelCompanyFacts, down)

	fmp := newStub(SourceFMP)
	fmp.serve(provider.ModelCashFlowStatement, value(statement(models.KindCashFlow, "annual", map[models.LineItem][]float64{
		models.ItemOperatingCashFlow:  {300, 280},
		models.ItemCapitalExpenditure: {50, -40},
	})))
	fmp.serve(provider.ModelEquityInfo, value(&models.CompanyProfile{
		MarketCap:    models.Float(2000),
		CurrentPrice: models.Float(20),
	}))
	fmp.serve(provider.ModelIncomeStatement, down)

	rec, err := NewAcquirer(registry(t, sec, fmp)).Fetch(context.Background(), "XYZ", "")
	require.NoError(t, err)

	assert.Equal(t, "Financial Modeling Prep", rec.DataSource)
	// Capex sign is normalized before subtracting.
	assert.Equal(t, []float64{250, 240}, rec.HistoricalFCF)
	assert.Equal(t, 100.0, rec.SharesOutstanding)
	assert.Empty(t, rec.HistoricalRevenue)
}

func TestAcquirerFallsBackToAlphaVantage(t *testing.T) {
	fmp := newStub(SourceFMP)
	fmp.serve(provider.ModelCashFlowStatement, down)

	av := newStub(SourceAlphaVantage)
	av.serve(provider.ModelCashFlowStatement, value(statement(models.KindCashFlow, "annual", map[models.LineItem][]float64{
		models.ItemOperatingCashFlow:  {500, 450, 400},
		models.ItemCapitalExpenditure: {100, 90, nan},
	})))
	av.serve(provider.ModelEquityInfo, value(&models.CompanyProfile{
		MarketCap: models.Float(8000),
	}))
	av.serve(provider.ModelIncomeStatement, value(statement(models.KindIncomeStatement, "annual", map[models.LineItem][]float64{
		models.ItemTotalRevenue: {2000, 1900},
	})))
	// No quote from Alpha Vantage, so the Yahoo close prices the record.
	yf := yahooStub(&models.CompanyProfile{}, nil, nil)

	rec, err := NewAcquirer(registry(t, fmp, av, yf)).Fetch(context.Background(), "IBM", "")
	require.NoError(t, err)

	assert.Equal(t, "Alpha Vantage", rec.DataSource)
	assert.Equal(t, []float64{400, 360}, rec.HistoricalFCF)
	assert.Equal(t, 101.0, rec.CurrentPrice)
	assert.InDelta(t, 8000/101.0, rec.SharesOutstanding, 1e-9)
	assert.Equal(t, []float64{2000, 1900}, rec.HistoricalRevenue)
}

func TestAcquirerYahooQuarterlyFallback(t *testing.T) {
	quarterly := statement(models.KindCashFlow, "quarterly", map[models.LineItem][]float64{
		models.ItemFreeCashFlow: {10, 20, 30, 40, 50},
	})
	profile := &models.CompanyProfile{
		CurrentPrice: models.Float(50),
		MarketCap:    models.Float(5000),
	}
	yf := yahooStub(profile, nil, quarterly)
	yf.serve(provider.ModelBalanceSheet, down)

	a := NewAcquirer(registry(t, yf), WithOrder(SourceYahoo))
	rec, err := a.Fetch(context.Background(), "QQQ", "")
	require.NoError(t, err)

	assert.Equal(t, "Yahoo Finance", rec.DataSource)
	assert.Equal(t, 100.0, rec.FreeCashFlow)
	assert.Equal(t, []float64{100}, rec.HistoricalFCF)
	assert.Equal(t, 100.0, rec.SharesOutstanding)
	assert.Equal(t, []float64{400, 380, 350}, rec.HistoricalRevenue)
}

func TestAcquirerYahooSharesFromBalanceSheet(t *testing.T) {
	annual := statement(models.KindCashFlow, "annual", map[models.LineItem][]float64{
		models.ItemFreeCashFlow: {70, nan, 50},
	})
	yf := yahooStub(&models.CompanyProfile{CurrentPrice: models.Float(10)}, annual, nil)
	yf.serve(provider.ModelBalanceSheet, value(statement(models.KindBalanceSheet, "annual", map[models.LineItem][]float64{
		models.ItemSharesOutstanding: {7},
	})))

	rec, err := NewAcquirer(registry(t, yf)).Fetch(context.Background(), "ABC", "")
	require.NoError(t, err)

	assert.Equal(t, []float64{70, 50}, rec.HistoricalFCF)
	assert.Equal(t, 7.0, rec.SharesOutstanding)
}

func TestAcquirerNoData(t *testing.T) {
	yf := newStub(SourceYahoo)
	yf.serve(provider.ModelCashFlowStatement, down)

	_, err := NewAcquirer(registry(t, yf)).Fetch(context.Background(), "NONE", "")
	require.Error(t, err)

	var noData *ErrNoData
	require.ErrorAs(t, err, &noData)
	assert.Equal(t, "NONE", noData.Ticker)
	// SEC and FMP are not registered, so only Yahoo was attempted.
	assert.Len(t, noData.Attempts, 1)
	assert.ErrorIs(t, err, errDown)
}

func TestAcquirerRejectsNonPositiveShares(t *testing.T) {
	annual := statement(models.KindCashFlow, "annual", map[models.LineItem][]float64{
		models.ItemFreeCashFlow: {70},
	})
	profile := &models.CompanyProfile{CurrentPrice: models.Float(10), SharesOutstanding: models.Float(-5)}
	yf := yahooStub(profile, annual, nil)
	yf.serve(provider.ModelBalanceSheet, down)

	_, err := NewAcquirer(registry(t, yf)).Fetch(context.Background(), "BAD", "")

	var noData *ErrNoData
	require.ErrorAs(t, err, &noData)
}

func TestAcquirerHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	yf := yahooStub(&models.CompanyProfile{}, nil, nil)
	_, err := NewAcquirer(registry(t, yf)).Fetch(ctx, "ABC", "")
	assert.ErrorIs(t, err, context.Canceled)
}
