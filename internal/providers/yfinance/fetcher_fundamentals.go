package yfinance

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/seenimoa/dcfvalue/internal/infra"
	"github.com/seenimoa/dcfvalue/internal/provider"
	"github.com/seenimoa/dcfvalue/pkg/models"
)

// statementSpec ties a statement model to its quoteSummary modules.
type statementSpec struct {
	model       provider.ModelType
	kind        models.StatementKind
	description string
	annual      string
	quarterly   string
	pick        func(r *yfQuoteSummaryResult, quarterly bool) *yfStatementContainer
}

var (
	balanceSheet = statementSpec{
		model:       provider.ModelBalanceSheet,
		kind:        models.KindBalanceSheet,
		description: "Balance sheet data from Yahoo Finance",
		annual:      "balanceSheetHistory",
		quarterly:   "balanceSheetHistoryQuarterly",
		pick: func(r *yfQuoteSummaryResult, q bool) *yfStatementContainer {
			if q {
				return r.BalanceSheetHistoryQuarterly
			}
			return r.BalanceSheetHistory
		},
	}
	incomeStatement = statementSpec{
		model:       provider.ModelIncomeStatement,
		kind:        models.KindIncomeStatement,
		description: "Income statement data from Yahoo Finance",
		annual:      "incomeStatementHistory",
		quarterly:   "incomeStatementHistoryQuarterly",
		pick: func(r *yfQuoteSummaryResult, q bool) *yfStatementContainer {
			if q {
				return r.IncomeStatementHistoryQuarterly
			}
			return r.IncomeStatementHistory
		},
	}
	cashFlowStatement = statementSpec{
		model:       provider.ModelCashFlowStatement,
		kind:        models.KindCashFlow,
		description: "Cash flow statement data from Yahoo Finance",
		annual:      "cashflowStatementHistory",
		quarterly:   "cashflowStatementHistoryQuarterly",
		pick: func(r *yfQuoteSummaryResult, q bool) *yfStatementContainer {
			if q {
				return r.CashflowStatementHistoryQuarterly
			}
			return r.CashflowStatementHistory
		},
	}
)

// --- Statement fetcher ---

type statementFetcher struct {
	provider.BaseFetcher
	baseURL string
	spec    statementSpec
}

func newStatementFetcher(baseURL string, limiter *infra.RateLimiter, spec statementSpec) *statementFetcher {
	return &statementFetcher{
		BaseFetcher: provider.NewBaseFetcher(
			spec.model,
			spec.description,
			[]string{provider.ParamSymbol},
			[]string{provider.ParamPeriod},
			provider.WithCacheTTL(time.Hour),
			provider.WithLimiter(limiter),
		),
		baseURL: baseURL,
		spec:    spec,
	}
}

func (f *statementFetcher) Fetch(ctx context.Context, params provider.QueryParams) (*provider.FetchResult, error) {
	if err := provider.ValidateParams(params, f.RequiredParams()); err != nil {
		return nil, err
	}
	yfTicker := toYFTicker(params[provider.ParamSymbol])
	quarterly := params[provider.ParamPeriod] == "quarterly"

	return f.Cached(ctx, params, func(ctx context.Context) (any, error) {
		module, periodType := f.spec.annual, "annual"
		if quarterly {
			module, periodType = f.spec.quarterly, "quarterly"
		}
		r, err := quoteSummary(ctx, f.baseURL, yfTicker, module)
		if err != nil {
			return nil, fmt.Errorf("yfinance %s %s: %w", module, yfTicker, err)
		}
		rows := f.spec.pick(r, quarterly).statements()
		if len(rows) == 0 {
			return nil, fmt.Errorf("no %s data for %s", module, yfTicker)
		}
		st := parseStatement(f.spec.kind, periodType, rows)
		if f.spec.kind == models.KindCashFlow && !st.Has(models.ItemFreeCashFlow) {
			deriveFreeCashFlow(st)
		}
		return st, nil
	})
}

// parseStatement turns Yahoo statement maps (newest first) into a typed
// Statement. Missing cells become NaN.
func parseStatement(kind models.StatementKind, periodType string, stmts []map[string]yfFinVal) *models.Statement {
	periods := make([]string, len(stmts))
	seen := map[string]bool{}
	for i, stmt := range stmts {
		periods[i] = extractDate(stmt)
		for k := range stmt {
			seen[k] = true
		}
	}
	labels := make([]string, 0, len(seen))
	for k := range seen {
		labels = append(labels, k)
	}
	sort.Strings(labels)

	rows := make(map[string][]float64, len(labels))
	for _, label := range labels {
		series := make([]float64, len(stmts))
		for i, stmt := range stmts {
			series[i] = math.NaN()
			if v := stmt[label].ptr(); v != nil {
				series[i] = *v
			}
		}
		rows[label] = series
	}
	return models.NewStatement(kind, periodType, periods, labels, rows)
}

// deriveFreeCashFlow sets FCF = operating cash flow + capital expenditure
// (reported negative) for each period where both exist.
func deriveFreeCashFlow(st *models.Statement) {
	n := st.Len()
	fcf := make([]float64, n)
	found := false
	for i := 0; i < n; i++ {
		fcf[i] = math.NaN()
		ocf, ok1 := st.At(models.ItemOperatingCashFlow, i)
		capex, ok2 := st.At(models.ItemCapitalExpenditure, i)
		if ok1 && ok2 {
			fcf[i] = ocf - math.Abs(capex)
			found = true
		}
	}
	if found {
		st.Set(models.ItemFreeCashFlow, fcf)
	}
}

// extractDate tries to extract a date string from a YF statement map.
func extractDate(stmt map[string]yfFinVal) string {
	if v, ok := stmt["endDate"]; ok {
		if v.Fmt != "" {
			return v.Fmt
		}
		if v.Raw != nil && *v.Raw > 0 {
			return time.Unix(int64(*v.Raw), 0).UTC().Format("2006-01-02")
		}
	}
	return ""
}
