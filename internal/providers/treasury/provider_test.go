package treasury

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/seenimoa/dcfvalue/internal/provider"
	"github.com/seenimoa/dcfvalue/pkg/models"
)

const yieldPage = `<html><body>
<table class="usa-table">
  <thead><tr><th>Date</th><th>1 Mo</th><th>2 Yr</th><th>10 Yr</th><th>30 Yr</th></tr></thead>
  <tbody>
    <tr><td>06/11/2025</td><td>4.35</td><td>3.95</td><td>4.41</td><td>4.91</td></tr>
    <tr><td>06/12/2025</td><td>4.34</td><td>3.90</td><td>4.36</td><td>4.87</td></tr>
    <tr><td>06/13/2025</td><td>4.33</td><td>3.93</td><td>N/A</td><td>4.90</td></tr>
  </tbody>
</table>
</body></html>`

func TestProviderInfo(t *testing.T) {
	p := New()
	if p.Info().Name != "treasury" {
		t.Errorf("expected name treasury, got %s", p.Info().Name)
	}
	if p.Fetcher(provider.ModelTreasuryRates) == nil {
		t.Error("expected TreasuryRates fetcher")
	}
}

func TestTreasuryRatesFromTable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != yieldCurvePath || r.URL.Query().Get("field_tdr_date_value_month") != "202506" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(yieldPage))
	}))
	defer srv.Close()

	p := New(WithBaseURL(srv.URL))
	f := p.Fetcher(provider.ModelTreasuryRates).(*treasuryRatesFetcher)
	f.now = func() time.Time { return time.Date(2025, time.June, 14, 0, 0, 0, 0, time.UTC) }

	res, err := f.Fetch(context.Background(), nil)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	q, err := provider.Typed[models.YieldQuote](res)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(q.Value-0.0436) > 1e-12 {
		t.Errorf("expected last reported 10 Yr 0.0436, got %v", q.Value)
	}
	if q.AsOf.Format("2006-01-02") != "2025-06-12" {
		t.Errorf("expected as-of 2025-06-12, got %s", q.AsOf)
	}
}

func TestParseYieldTextFallback(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`<p>Yields: 5 Year 4.01 10 Year 4.29 30 Year 4.80</p>`))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := parseYieldTable(doc); ok {
		t.Error("no table should be found")
	}
	q, ok := parseYieldText(doc.Text())
	if !ok || math.Abs(q.Value-0.0429) > 1e-12 {
		t.Errorf("expected 0.0429, got %v (%v)", q.Value, ok)
	}
}
