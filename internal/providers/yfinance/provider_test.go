package yfinance

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/seenimoa/dcfvalue/internal/provider"
	"github.com/seenimoa/dcfvalue/pkg/models"
)

const profileJSON = `{"quoteSummary":{"result":[{
  "assetProfile":{"sector":"Technology","industry":"Consumer Electronics","country":"United States"},
  "financialData":{"currentPrice":{"raw":190.5,"fmt":"190.50"},"totalDebt":{"raw":1.1e11},"earningsGrowth":{},"targetMeanPrice":{"raw":210}},
  "summaryDetail":{"marketCap":{"raw":2.9e12},"beta":{"raw":1.25},"previousClose":{"raw":189.0},"trailingPE":{"raw":30.1}},
  "defaultKeyStatistics":{"sharesOutstanding":{"raw":1.55e10},"forwardPE":{"raw":27.2}},
  "price":{"longName":"Apple Inc.","shortName":"Apple"}
}],"error":null}}`

const cashFlowJSON = `{"quoteSummary":{"result":[{
  "cashflowStatementHistory":{"cashflowStatements":[
    {"endDate":{"raw":1727654400,"fmt":"2024-09-30"},"totalCashFromOperatingActivities":{"raw":118e9},"capitalExpenditures":{"raw":-9e9}},
    {"endDate":{"raw":1696032000,"fmt":"2023-09-30"},"totalCashFromOperatingActivities":{"raw":110e9},"capitalExpenditures":{}}
  ]}
}],"error":null}}`

const incomeJSON = `{"quoteSummary":{"result":[{
  "incomeStatementHistory":{"incomeStatementHistory":[
    {"endDate":{"fmt":"2024-09-30"},"totalRevenue":{"raw":391e9},"incomeBeforeTax":{"raw":123e9},"incomeTaxExpense":{"raw":29e9}},
    {"endDate":{"fmt":"2023-09-30"},"totalRevenue":{"raw":383e9},"incomeBeforeTax":{"raw":114e9},"incomeTaxExpense":{"raw":17e9}}
  ]}
}],"error":null}}`

const chartJSON = `{"chart":{"result":[{
  "meta":{"symbol":"AAPL","currency":"USD"},
  "timestamp":[1700000000,1700086400,1700172800],
  "indicators":{"quote":[{"close":[100,null,110]}],"adjclose":[{"adjclose":[99,null,109]}]}
}],"error":null}}`

const tnxJSON = `{"quoteSummary":{"result":[{"summaryDetail":{"previousClose":{"raw":4.31}}}],"error":null}}`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		modules := r.URL.Query().Get("modules")
		switch {
		case r.URL.Path == "/v10/finance/quoteSummary/^TNX":
			_, _ = w.Write([]byte(tnxJSON))
		case strings.HasPrefix(r.URL.Path, "/v8/finance/chart/"):
			_, _ = w.Write([]byte(chartJSON))
		case modules == profileModules:
			_, _ = w.Write([]byte(profileJSON))
		case modules == "cashflowStatementHistory":
			_, _ = w.Write([]byte(cashFlowJSON))
		case modules == "incomeStatementHistory":
			_, _ = w.Write([]byte(incomeJSON))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestProviderInfo(t *testing.T) {
	p := New()
	info := p.Info()
	if info.Name != "yfinance" {
		t.Errorf("expected name yfinance, got %s", info.Name)
	}
	if len(info.Credentials) != 0 {
		t.Errorf("yfinance should have no credentials, got %d", len(info.Credentials))
	}
	for _, m := range []provider.ModelType{
		provider.ModelEquityInfo,
		provider.ModelEquityHistorical,
		provider.ModelBalanceSheet,
		provider.ModelIncomeStatement,
		provider.ModelCashFlowStatement,
		provider.ModelTreasuryRates,
	} {
		if p.Fetcher(m) == nil {
			t.Errorf("missing fetcher for %s", m)
		}
	}
}

func TestEquityInfo(t *testing.T) {
	p := New(WithBaseURL(newTestServer(t).URL))
	res, err := p.Fetcher(provider.ModelEquityInfo).Fetch(context.Background(), provider.QueryParams{provider.ParamSymbol: "AAPL"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	prof, err := provider.Typed[*models.CompanyProfile](res)
	if err != nil {
		t.Fatal(err)
	}
	if prof.Name != "Apple Inc." || prof.Sector != "Technology" || prof.Industry != "Consumer Electronics" {
		t.Errorf("unexpected descriptive fields: %+v", prof)
	}
	checks := map[string]struct {
		got  *float64
		want float64
	}{
		"market cap": {prof.MarketCap, 2.9e12},
		"price":      {prof.CurrentPrice, 190.5},
		"beta":       {prof.Beta, 1.25},
		"shares":     {prof.SharesOutstanding, 1.55e10},
		"debt":       {prof.TotalDebt, 1.1e11},
		"forward pe": {prof.ForwardPE, 27.2},
	}
	for name, c := range checks {
		if c.got == nil || *c.got != c.want {
			t.Errorf("%s: expected %v, got %v", name, c.want, c.got)
		}
	}
	if prof.EarningsGrowth != nil {
		t.Errorf("empty Yahoo value should stay nil, got %v", *prof.EarningsGrowth)
	}
}

func TestEquityInfoRequiresSymbol(t *testing.T) {
	p := New()
	if _, err := p.Fetcher(provider.ModelEquityInfo).Fetch(context.Background(), provider.QueryParams{}); err == nil {
		t.Error("expected missing symbol error")
	}
}

func TestCashFlowDerivesFreeCashFlow(t *testing.T) {
	p := New(WithBaseURL(newTestServer(t).URL))
	res, err := p.Fetcher(provider.ModelCashFlowStatement).Fetch(context.Background(), provider.QueryParams{provider.ParamSymbol: "AAPL"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	st, err := provider.Typed[*models.Statement](res)
	if err != nil {
		t.Fatal(err)
	}
	if len(st.Periods) != 2 || st.Periods[0] != "2024-09-30" {
		t.Errorf("unexpected periods %v", st.Periods)
	}
	fcf, ok := st.Latest(models.ItemFreeCashFlow)
	if !ok || fcf != 109e9 {
		t.Errorf("expected FCF 109e9, got %v (%v)", fcf, ok)
	}
	if _, ok := st.At(models.ItemFreeCashFlow, 1); ok {
		t.Error("FCF should be missing when capex is missing")
	}
}

func TestIncomeStatement(t *testing.T) {
	p := New(WithBaseURL(newTestServer(t).URL))
	res, err := p.Fetcher(provider.ModelIncomeStatement).Fetch(context.Background(), provider.QueryParams{provider.ParamSymbol: "AAPL"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	st, _ := provider.Typed[*models.Statement](res)
	rev := st.Series(models.ItemTotalRevenue)
	if len(rev) != 2 || rev[0] != 391e9 || rev[1] != 383e9 {
		t.Errorf("unexpected revenue %v", rev)
	}
	if tax, ok := st.At(models.ItemIncomeTaxExpense, 1); !ok || tax != 17e9 {
		t.Errorf("unexpected tax %v", tax)
	}
}

func TestEquityHistorical(t *testing.T) {
	p := New(WithBaseURL(newTestServer(t).URL))
	res, err := p.Fetcher(provider.ModelEquityHistorical).Fetch(context.Background(), provider.QueryParams{provider.ParamSymbol: "AAPL", provider.ParamPeriod: "2y"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	bars, _ := provider.Typed[[]models.PriceBar](res)
	if len(bars) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(bars))
	}
	if bars[0].Close != 99 || bars[1].Close != 109 {
		t.Errorf("expected adjusted closes, got %+v", bars)
	}
	if !bars[0].Date.Before(bars[1].Date) {
		t.Error("bars should be oldest first")
	}
}

func TestTreasuryRates(t *testing.T) {
	p := New(WithBaseURL(newTestServer(t).URL))
	res, err := p.Fetcher(provider.ModelTreasuryRates).Fetch(context.Background(), nil)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	q, _ := provider.Typed[models.YieldQuote](res)
	if math.Abs(q.Value-0.0431) > 1e-12 {
		t.Errorf("expected 0.0431, got %v", q.Value)
	}
}

func TestToYFTicker(t *testing.T) {
	tests := map[string]string{
		"aapl":  "AAPL",
		"BRK.B": "BRK-B",
		"^GSPC": "^GSPC",
		" msft": "MSFT",
	}
	for in, want := range tests {
		if got := toYFTicker(in); got != want {
			t.Errorf("toYFTicker(%q) = %q, want %q", in, got, want)
		}
	}
}
