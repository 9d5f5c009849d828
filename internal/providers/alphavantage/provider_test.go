package alphavantage

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/seenimoa/dcfvalue/internal/provider"
	"github.com/seenimoa/dcfvalue/pkg/models"
)

func newTestServer(t *testing.T, gotKey *atomic.Value) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/query", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gotKey.Store(q.Get("apikey"))
		switch q.Get("function") + " " + q.Get("symbol") {
		case "OVERVIEW IBM":
			_, _ = w.Write([]byte(`{"Symbol":"IBM","Name":"International Business Machines","Country":"USA","Sector":"TECHNOLOGY","Industry":"COMPUTER & OFFICE EQUIPMENT","MarketCapitalization":"212000000000","SharesOutstanding":"927000000","Beta":"0.71","PERatio":"33.2","ForwardPE":"21.1","ProfitMargin":"0.096","DividendYield":"None"}`))
		case "GLOBAL_QUOTE IBM":
			_, _ = w.Write([]byte(`{"Global Quote":{"01. symbol":"IBM","05. price":"228.7500","08. previous close":"226.1000"}}`))
		case "OVERVIEW NONE":
			_, _ = w.Write([]byte(`{}`))
		case "CASH_FLOW IBM":
			_, _ = w.Write([]byte(`{"symbol":"IBM","annualReports":[
				{"fiscalDateEnding":"2024-12-31","reportedCurrency":"USD","operatingCashflow":"13445000000","capitalExpenditures":"1685000000"},
				{"fiscalDateEnding":"2023-12-31","reportedCurrency":"USD","operatingCashflow":"13931000000","capitalExpenditures":"None"}
			],"quarterlyReports":[]}`))
		case "INCOME_STATEMENT IBM":
			_, _ = w.Write([]byte(`{"symbol":"IBM","annualReports":[
				{"fiscalDateEnding":"2024-12-31","totalRevenue":"62753000000","incomeTaxExpense":"-218000000","incomeBeforeTax":"5797000000"},
				{"fiscalDateEnding":"2023-12-31","totalRevenue":"61860000000"},
				{"fiscalDateEnding":"2022-12-31","totalRevenue":"60530000000"}
			],"quarterlyReports":[
				{"fiscalDateEnding":"2024-12-31","totalRevenue":"17553000000"}
			]}`))
		case "BALANCE_SHEET LIMIT":
			_, _ = w.Write([]byte(`{"Note":"Thank you for using Alpha Vantage! Our standard API call frequency is 5 calls per minute."}`))
		default:
			_, _ = w.Write([]byte(`{"Error Message":"Invalid API call."}`))
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func initProvider(t *testing.T, base string) *Provider {
	t.Helper()
	p := New(WithBaseURL(base + "/query"))
	if err := p.Init(map[string]string{"api_key": "secret"}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return p
}

func TestProviderInfo(t *testing.T) {
	p := New()
	info := p.Info()
	if info.Name != "alphavantage" {
		t.Errorf("expected name alphavantage, got %s", info.Name)
	}
	if len(info.Credentials) != 1 || !info.Credentials[0].Required {
		t.Errorf("expected one required credential, got %+v", info.Credentials)
	}
	if err := p.Init(nil); err == nil {
		t.Error("expected error for missing api_key")
	}
	if len(p.SupportedModels()) != 4 {
		t.Errorf("expected 4 models, got %v", p.SupportedModels())
	}
}

func TestEquityInfo(t *testing.T) {
	var key atomic.Value
	p := initProvider(t, newTestServer(t, &key).URL)

	res, err := p.Fetcher(provider.ModelEquityInfo).Fetch(context.Background(), provider.QueryParams{provider.ParamSymbol: "IBM"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got := key.Load(); got != "secret" {
		t.Errorf("expected injected api key, got %v", got)
	}
	prof, err := provider.Typed[*models.CompanyProfile](res)
	if err != nil {
		t.Fatal(err)
	}
	if prof.Sector != "TECHNOLOGY" || prof.Country != "USA" {
		t.Errorf("unexpected profile %+v", prof)
	}
	if sh, ok := models.Value(prof.SharesOutstanding); !ok || sh != 927000000 {
		t.Errorf("expected shares 927000000, got %v", sh)
	}
	if px, ok := models.Value(prof.CurrentPrice); !ok || px != 228.75 {
		t.Errorf("expected price 228.75, got %v", px)
	}
	if prof.DividendYield != nil {
		t.Errorf("None should leave the field unset, got %v", *prof.DividendYield)
	}
}

func TestEquityInfoUnknownSymbol(t *testing.T) {
	var key atomic.Value
	p := initProvider(t, newTestServer(t, &key).URL)
	_, err := p.Fetcher(provider.ModelEquityInfo).Fetch(context.Background(), provider.QueryParams{provider.ParamSymbol: "NONE"})
	if !errors.Is(err, errNoProfile) {
		t.Errorf("expected errNoProfile, got %v", err)
	}
}

func TestCashFlowStatement(t *testing.T) {
	var key atomic.Value
	p := initProvider(t, newTestServer(t, &key).URL)

	res, err := p.Fetcher(provider.ModelCashFlowStatement).Fetch(context.Background(), provider.QueryParams{provider.ParamSymbol: "IBM"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	st, err := provider.Typed[*models.Statement](res)
	if err != nil {
		t.Fatal(err)
	}
	ocf := st.Series(models.ItemOperatingCashFlow)
	if len(ocf) != 2 || ocf[0] != 13445000000 || ocf[1] != 13931000000 {
		t.Errorf("unexpected operating cash flow %v", ocf)
	}
	capex := st.Series(models.ItemCapitalExpenditure)
	if len(capex) != 2 || capex[0] != 1685000000 || !math.IsNaN(capex[1]) {
		t.Errorf("unexpected capex %v", capex)
	}
	if st.Periods[0] != "2024-12-31" || st.PeriodType != "annual" {
		t.Errorf("unexpected periods %v (%s)", st.Periods, st.PeriodType)
	}
}

func TestIncomeStatementPeriodAndLimit(t *testing.T) {
	var key atomic.Value
	p := initProvider(t, newTestServer(t, &key).URL)
	f := p.Fetcher(provider.ModelIncomeStatement)

	res, err := f.Fetch(context.Background(), provider.QueryParams{provider.ParamSymbol: "IBM", provider.ParamLimit: "2"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	st, _ := provider.Typed[*models.Statement](res)
	if rev := st.Series(models.ItemTotalRevenue); len(rev) != 2 || rev[1] != 61860000000 {
		t.Errorf("unexpected annual revenue %v", rev)
	}

	res, err = f.Fetch(context.Background(), provider.QueryParams{provider.ParamSymbol: "IBM", provider.ParamPeriod: "quarterly"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	st, _ = provider.Typed[*models.Statement](res)
	if st.PeriodType != "quarterly" {
		t.Errorf("expected quarterly, got %s", st.PeriodType)
	}
	if rev, ok := st.Latest(models.ItemTotalRevenue); !ok || rev != 17553000000 {
		t.Errorf("unexpected quarterly revenue %v", rev)
	}
}

func TestThrottleNoticeIsAnError(t *testing.T) {
	var key atomic.Value
	p := initProvider(t, newTestServer(t, &key).URL)
	_, err := p.Fetcher(provider.ModelBalanceSheet).Fetch(context.Background(), provider.QueryParams{provider.ParamSymbol: "LIMIT"})
	if !errors.Is(err, ErrAPI) {
		t.Errorf("expected ErrAPI, got %v", err)
	}
}

func TestAvNumber(t *testing.T) {
	tests := []struct {
		in   avNumber
		want float64
		ok   bool
	}{
		{"12.5", 12.5, true},
		{"-3", -3, true},
		{"4.2%", 4.2, true},
		{"None", 0, false},
		{"-", 0, false},
		{"", 0, false},
	}
	for _, tc := range tests {
		got, ok := tc.in.float()
		if ok != tc.ok || got != tc.want {
			t.Errorf("avNumber(%q).float() = %v, %v; want %v, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
	if avNumber("0").positive() != nil {
		t.Error("zero should not be positive")
	}
}
