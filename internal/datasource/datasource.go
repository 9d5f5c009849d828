// Package datasource turns provider registry results into valuation
// inputs: standardized financial records, and the collaborators the
// valuation engine consults for profiles, statements, prices and yields.
package datasource

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/seenimoa/dcfvalue/internal/provider"
	"github.com/seenimoa/dcfvalue/pkg/models"
)

// Registered provider names.
const (
	SourceSEC          = "sec"
	SourceFMP          = "fmp"
	SourceAlphaVantage = "alphavantage"
	SourceYahoo        = "yfinance"
	SourceTreasury     = "treasury"
	SourceFed          = "federal_reserve"
	SourceFred         = "fred"
)

var (
	// DefaultOrder is the record acquisition order, most authoritative first.
	DefaultOrder = []string{SourceSEC, SourceFMP, SourceAlphaVantage, SourceYahoo}
	// DefaultYieldOrder is the risk-free yield lookup order.
	DefaultYieldOrder = []string{SourceTreasury, SourceFed, SourceFred, SourceYahoo}
	// DefaultProfileOrder is used for profiles, statements and price history.
	DefaultProfileOrder = []string{SourceYahoo, SourceFMP}
)

// DefaultHistoryYears is how many annual periods a record carries.
const DefaultHistoryYears = 5

// ErrNoData is returned when no source produced a complete record.
type ErrNoData struct {
	Ticker   string
	Attempts []error
}

func (e *ErrNoData) Error() string {
	if len(e.Attempts) == 0 {
		return fmt.Sprintf("no financial data for %s: no source available", e.Ticker)
	}
	return fmt.Sprintf("no financial data for %s: %v", e.Ticker, errors.Join(e.Attempts...))
}

func (e *ErrNoData) Unwrap() []error { return e.Attempts }

// NormalizeTicker trims and uppercases a ticker symbol.
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// Option configures an Acquirer or MarketData.
type Option func(*options)

type options struct {
	order        []string
	yieldOrder   []string
	profileOrder []string
	years        int
	cacheTTL     time.Duration
	log          zerolog.Logger
}

func defaultOptions() options {
	return options{
		order:        DefaultOrder,
		yieldOrder:   DefaultYieldOrder,
		profileOrder: DefaultProfileOrder,
		years:        DefaultHistoryYears,
		cacheTTL:     15 * time.Minute,
		log:          zerolog.Nop(),
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithOrder sets the record acquisition order. Empty names are ignored.
func WithOrder(names ...string) Option {
	return func(o *options) {
		if cleaned := cleanNames(names); len(cleaned) > 0 {
			o.order = cleaned
		}
	}
}

// WithYieldOrder sets the risk-free yield lookup order.
func WithYieldOrder(names ...string) Option {
	return func(o *options) {
		if cleaned := cleanNames(names); len(cleaned) > 0 {
			o.yieldOrder = cleaned
		}
	}
}

// WithProfileOrder sets the order for profiles, statements and history.
func WithProfileOrder(names ...string) Option {
	return func(o *options) {
		if cleaned := cleanNames(names); len(cleaned) > 0 {
			o.profileOrder = cleaned
		}
	}
}

// WithHistoryYears sets how many annual periods records carry.
func WithHistoryYears(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.years = n
		}
	}
}

// WithCacheTTL sets how long MarketData keeps profiles and statements.
func WithCacheTTL(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.cacheTTL = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.log = l }
}

func cleanNames(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.ToLower(strings.TrimSpace(n)); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// --- registry helpers ---

func fetchProfile(ctx context.Context, reg *provider.Registry, order []string, symbol string) (*models.CompanyProfile, error) {
	res, err := reg.FetchInOrder(ctx, provider.ModelEquityInfo, provider.QueryParams{provider.ParamSymbol: symbol}, order)
	if err != nil {
		return nil, err
	}
	return provider.Typed[*models.CompanyProfile](res)
}

func fetchStatement(ctx context.Context, reg *provider.Registry, order []string, model provider.ModelType, symbol, period string) (*models.Statement, error) {
	params := provider.QueryParams{
		provider.ParamSymbol: symbol,
		provider.ParamPeriod: period,
	}
	res, err := reg.FetchInOrder(ctx, model, params, order)
	if err != nil {
		return nil, err
	}
	return provider.Typed[*models.Statement](res)
}

// freeCashFlowAt reads FCF for period i, deriving it as OCF - |capex|
// when the statement has no FCF row.
func freeCashFlowAt(st *models.Statement, i int) (float64, bool) {
	if v, ok := st.At(models.ItemFreeCashFlow, i); ok {
		return v, true
	}
	ocf, okO := st.At(models.ItemOperatingCashFlow, i)
	capex, okC := st.At(models.ItemCapitalExpenditure, i)
	if !okO || !okC {
		return 0, false
	}
	return ocf - math.Abs(capex), true
}

// freeCashFlows returns up to n finite FCF values, most recent first.
// ok is false when the most recent period has none.
func freeCashFlows(st *models.Statement, n int) (series []float64, ok bool) {
	if _, ok := freeCashFlowAt(st, 0); !ok {
		return nil, false
	}
	for i := 0; i < st.Len() && len(series) < n; i++ {
		if v, ok := freeCashFlowAt(st, i); ok {
			series = append(series, v)
		}
	}
	return series, true
}

// finiteSeries returns up to n finite values of item, most recent first.
func finiteSeries(st *models.Statement, item models.LineItem, n int) []float64 {
	var out []float64
	for i := 0; i < st.Len() && len(out) < n; i++ {
		if v, ok := st.At(item, i); ok {
			out = append(out, v)
		}
	}
	return out
}

func positive(p *float64) (float64, bool) {
	v, ok := models.Value(p)
	return v, ok && v > 0
}
