package sec

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/seenimoa/dcfvalue/internal/infra"
	"github.com/seenimoa/dcfvalue/internal/provider"
	"github.com/seenimoa/dcfvalue/pkg/models"
)

// ---- CikMap fetcher ----
// Resolves a ticker to its zero-padded CIK.

type cikMapFetcher struct {
	provider.BaseFetcher
	api *edgarClient
}

func newCikMapFetcher(api *edgarClient, limiter *infra.RateLimiter) *cikMapFetcher {
	return &cikMapFetcher{
		BaseFetcher: provider.NewBaseFetcher(
			provider.ModelCikMap,
			"SEC ticker to CIK mapping",
			[]string{provider.ParamSymbol},
			nil,
			provider.WithCacheTTL(24*time.Hour),
			provider.WithLimiter(limiter),
		),
		api: api,
	}
}

// ErrUnknownTicker is returned when EDGAR has no CIK for a ticker.
var ErrUnknownTicker = errors.New("ticker not in EDGAR company list")

func (f *cikMapFetcher) Fetch(ctx context.Context, params provider.QueryParams) (*provider.FetchResult, error) {
	if err := provider.ValidateParams(params, f.RequiredParams()); err != nil {
		return nil, err
	}
	symbol := strings.ToUpper(strings.TrimSpace(params[provider.ParamSymbol]))

	return f.Cached(ctx, params, func(ctx context.Context) (any, error) {
		var tickers map[string]edgarTickerEntry
		if err := f.api.fetchJSON(ctx, f.api.wwwURL+"/files/company_tickers.json", &tickers); err != nil {
			return nil, fmt.Errorf("sec cik map: %w", err)
		}
		// EDGAR lists share classes with a dash (BRK-B).
		want := strings.ReplaceAll(symbol, ".", "-")
		for _, entry := range tickers {
			if strings.EqualFold(entry.Ticker, want) {
				return padCIK(strconv.Itoa(entry.CIKStr)), nil
			}
		}
		return nil, fmt.Errorf("sec cik map %s: %w", symbol, ErrUnknownTicker)
	})
}

// ---- CompanyFacts fetcher ----
// Builds an annual Statement from individual us-gaap concepts.

// factConcept lists the us-gaap tags tried, in order, for one line item.
type factConcept struct {
	item     models.LineItem
	unit     string
	tags     []string
	required bool
}

var factConcepts = []factConcept{
	{
		item:     models.ItemOperatingCashFlow,
		unit:     "USD",
		tags:     []string{"NetCashProvidedByUsedInOperatingActivities", "NetCashProvidedByUsedInOperatingActivitiesContinuingOperations"},
		required: true,
	},
	{
		item:     models.ItemCapitalExpenditure,
		unit:     "USD",
		tags:     []string{"PaymentsToAcquirePropertyPlantAndEquipment", "PaymentsToAcquireProductiveAssets"},
		required: true,
	},
	{
		item:     models.ItemSharesOutstanding,
		unit:     "shares",
		tags:     []string{"CommonStockSharesOutstanding", "WeightedAverageNumberOfSharesOutstandingBasic"},
		required: true,
	},
	{
		item: models.ItemTotalRevenue,
		unit: "USD",
		tags: []string{"Revenues", "RevenueFromContractWithCustomerExcludingAssessedTax", "SalesRevenueNet"},
	},
}

const defaultFactYears = 5

type companyFactsFetcher struct {
	provider.BaseFetcher
	api *edgarClient
}

func newCompanyFactsFetcher(api *edgarClient, limiter *infra.RateLimiter) *companyFactsFetcher {
	return &companyFactsFetcher{
		BaseFetcher: provider.NewBaseFetcher(
			provider.ModelCompanyFacts,
			"Annual 10-K XBRL facts: operating cash flow, capex, shares and revenue",
			[]string{provider.ParamCIK},
			[]string{provider.ParamLimit},
			provider.WithCacheTTL(6*time.Hour),
			provider.WithLimiter(limiter),
		),
		api: api,
	}
}

// ErrMissingFact is returned when no tag of a required concept is reported.
type ErrMissingFact struct {
	CIK  string
	Item models.LineItem
}

func (e *ErrMissingFact) Error() string {
	return fmt.Sprintf("sec facts CIK%s: no annual %s", e.CIK, e.Item)
}

func (f *companyFactsFetcher) Fetch(ctx context.Context, params provider.QueryParams) (*provider.FetchResult, error) {
	if err := provider.ValidateParams(params, f.RequiredParams()); err != nil {
		return nil, err
	}
	cik := padCIK(params[provider.ParamCIK])
	years := defaultFactYears
	if n, err := strconv.Atoi(params[provider.ParamLimit]); err == nil && n > 0 {
		years = n
	}

	return f.Cached(ctx, params, func(ctx context.Context) (any, error) {
		series := make(map[models.LineItem][]annualFact, len(factConcepts))
		for _, c := range factConcepts {
			facts, err := f.concept(ctx, cik, c)
			if err != nil {
				return nil, err
			}
			if len(facts) == 0 {
				if c.required {
					return nil, &ErrMissingFact{CIK: cik, Item: c.item}
				}
				continue
			}
			if len(facts) > years {
				facts = facts[:years]
			}
			series[c.item] = facts
		}
		return buildFactStatement(series), nil
	})
}

// concept returns the annual values of the first tag of c that EDGAR
// reports for the filer. A tag the filer never used is a 404.
func (f *companyFactsFetcher) concept(ctx context.Context, cik string, c factConcept) ([]annualFact, error) {
	for _, tag := range c.tags {
		url := fmt.Sprintf("%s/api/xbrl/companyconcept/CIK%s/us-gaap/%s.json", f.api.dataURL, cik, tag)
		var resp edgarConceptResponse
		if err := f.api.fetchJSON(ctx, url, &resp); err != nil {
			if infra.IsNotFound(err) {
				continue
			}
			return nil, fmt.Errorf("sec concept %s: %w", tag, err)
		}
		if facts := annualFacts(resp.Units[c.unit]); len(facts) > 0 {
			return facts, nil
		}
	}
	return nil, nil
}

type annualFact struct {
	end string
	val float64
}

// annualFacts keeps 10-K values (all values when there are none), one per
// period end, preferring the most recent filing, newest period first.
func annualFacts(units []edgarFactUnit) []annualFact {
	annual := make([]edgarFactUnit, 0, len(units))
	for _, u := range units {
		if u.Form == "10-K" {
			annual = append(annual, u)
		}
	}
	if len(annual) == 0 {
		annual = units
	}

	byEnd := make(map[string]edgarFactUnit, len(annual))
	for _, u := range annual {
		if u.End == "" {
			continue
		}
		if prev, ok := byEnd[u.End]; !ok || u.Filed > prev.Filed {
			byEnd[u.End] = u
		}
	}
	out := make([]annualFact, 0, len(byEnd))
	for end, u := range byEnd {
		out = append(out, annualFact{end: end, val: u.Val})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].end > out[j].end })
	return out
}

// buildFactStatement aligns every series on the operating cash flow
// period ends. Capex is stored negative and FCF = OCF + capex. A series
// reported on other dates than the cash flow (such as a weighted share
// count) falls back to positional order.
func buildFactStatement(series map[models.LineItem][]annualFact) *models.Statement {
	ocf := series[models.ItemOperatingCashFlow]
	periods := make([]string, len(ocf))
	for i, fact := range ocf {
		periods[i] = fact.end
	}
	st := &models.Statement{
		Kind:       models.KindCompanyFacts,
		PeriodType: "annual",
		Periods:    periods,
		Items:      make(map[models.LineItem][]float64),
	}

	for item, facts := range series {
		st.Set(item, alignFacts(periods, facts))
	}

	capex := st.Series(models.ItemCapitalExpenditure)
	for i, v := range capex {
		capex[i] = -math.Abs(v)
	}

	fcf := make([]float64, len(periods))
	for i := range periods {
		fcf[i] = math.NaN()
		o, ok1 := st.At(models.ItemOperatingCashFlow, i)
		c, ok2 := st.At(models.ItemCapitalExpenditure, i)
		if ok1 && ok2 {
			fcf[i] = o + c
		}
	}
	st.Set(models.ItemFreeCashFlow, fcf)
	return st
}

func alignFacts(periods []string, facts []annualFact) []float64 {
	byEnd := make(map[string]float64, len(facts))
	for _, f := range facts {
		byEnd[f.end] = f.val
	}
	out := make([]float64, len(periods))
	matched := false
	for i, p := range periods {
		out[i] = math.NaN()
		if v, ok := byEnd[p]; ok {
			out[i] = v
			matched = true
		}
	}
	if matched {
		return out
	}
	for i := range out {
		if i < len(facts) {
			out[i] = facts[i].val
		}
	}
	return out
}
