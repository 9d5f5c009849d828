package valuation

import (
	"context"
	"errors"
	"time"

	"github.com/seenimoa/dcfvalue/pkg/models"
)

var errUnavailable = errors.New("unavailable")

type fakeCompany struct {
	profile    *models.CompanyProfile
	statements *models.Statements
}

func (f *fakeCompany) Profile(context.Context, string) (*models.CompanyProfile, error) {
	if f.profile == nil {
		return nil, errUnavailable
	}
	return f.profile, nil
}

func (f *fakeCompany) Statements(context.Context, string) (*models.Statements, error) {
	if f.statements == nil {
		return nil, errUnavailable
	}
	return f.statements, nil
}

type fakePrices map[string][]float64

func (f fakePrices) DailyReturns(_ context.Context, symbol, _ string) ([]float64, error) {
	r, ok := f[symbol]
	if !ok {
		return nil, errUnavailable
	}
	return r, nil
}

type fakeYield struct {
	name string
	v    float64
	err  error
}

func (f fakeYield) Name() string { return f.name }

func (f fakeYield) TenYearYield(context.Context) (float64, error) { return f.v, f.err }

type failingBonds struct{}

func (failingBonds) EstimateBondYield(context.Context, string, *models.CompanyProfile) (float64, error) {
	return 0, errUnavailable
}

type fakeAlt struct {
	debt, mcap float64
}

func (f fakeAlt) TotalDebt(context.Context, string) (float64, error) {
	if f.debt == 0 {
		return 0, errUnavailable
	}
	return f.debt, nil
}

func (f fakeAlt) MarketCap(context.Context, string) (float64, error) {
	if f.mcap == 0 {
		return 0, errUnavailable
	}
	return f.mcap, nil
}

// fixedClock pins seasonal and override lookups.
func fixedClock() time.Time { return time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC) }

func testRecord() *models.FinancialRecord {
	return &models.FinancialRecord{
		Ticker:            "TEST",
		FreeCashFlow:      100e6,
		SharesOutstanding: 10e6,
		CurrentPrice:      150,
		HistoricalFCF:     []float64{100e6, 92e6, 85e6, 80e6, 74e6},
		HistoricalRevenue: []float64{1000e6, 940e6, 880e6, 830e6, 780e6},
		DataSource:        "test",
	}
}

func testProfile() *models.CompanyProfile {
	return &models.CompanyProfile{
		Ticker:        "TEST",
		Sector:        "Industrials",
		Industry:      "Specialty Industrial Machinery",
		Country:       "United States",
		MarketCap:     models.Float(1.5e9),
		CurrentPrice:  models.Float(150),
		Beta:          models.Float(1.1),
		TotalDebt:     models.Float(300e6),
		CreditRating:  "BBB",
		TrailingPE:    models.Float(18),
		ForwardPE:     models.Float(16),
		ProfitMargins: models.Float(0.12),
	}
}
