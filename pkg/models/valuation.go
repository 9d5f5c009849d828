package models

import (
	"fmt"
	"math"
)

// FinancialRecord is the standardized record produced by data acquisition.
type FinancialRecord struct {
	Ticker            string    `json:"ticker"`
	FreeCashFlow      float64   `json:"free_cash_flow"`
	SharesOutstanding float64   `json:"shares_outstanding"`
	CurrentPrice      float64   `json:"current_price"`
	HistoricalFCF     []float64 `json:"historical_fcf"`     // most recent first
	HistoricalRevenue []float64 `json:"historical_revenue"` // most recent first
	DataSource        string    `json:"data_source"`
}

// ErrInvalidRecord is returned when a record cannot support a valuation.
type ErrInvalidRecord struct {
	Ticker string
	Reason string
}

func (e *ErrInvalidRecord) Error() string {
	return fmt.Sprintf("invalid financial record for %s: %s", e.Ticker, e.Reason)
}

// Validate checks the preconditions every downstream valuation needs.
func (r *FinancialRecord) Validate() error {
	if r == nil {
		return &ErrInvalidRecord{Reason: "nil record"}
	}
	if !(r.SharesOutstanding > 0) || math.IsInf(r.SharesOutstanding, 0) {
		return &ErrInvalidRecord{Ticker: r.Ticker, Reason: "shares outstanding must be positive"}
	}
	if !(r.CurrentPrice > 0) || math.IsInf(r.CurrentPrice, 0) {
		return &ErrInvalidRecord{Ticker: r.Ticker, Reason: "current price must be positive"}
	}
	if math.IsNaN(r.FreeCashFlow) || math.IsInf(r.FreeCashFlow, 0) {
		return &ErrInvalidRecord{Ticker: r.Ticker, Reason: "free cash flow is not finite"}
	}
	return nil
}

// CompanyProfile carries issuer-reported descriptive and market fields.
// Numeric fields are nil when the source did not report them.
type CompanyProfile struct {
	Ticker   string `json:"ticker"`
	Name     string `json:"name,omitempty"`
	Sector   string `json:"sector,omitempty"`
	Industry string `json:"industry,omitempty"`
	Country  string `json:"country,omitempty"`

	MarketCap         *float64 `json:"market_cap,omitempty"`
	EnterpriseValue   *float64 `json:"enterprise_value,omitempty"`
	SharesOutstanding *float64 `json:"shares_outstanding,omitempty"`
	CurrentPrice      *float64 `json:"current_price,omitempty"`
	PreviousClose     *float64 `json:"previous_close,omitempty"`
	Beta              *float64 `json:"beta,omitempty"`

	TotalDebt        *float64 `json:"total_debt,omitempty"`
	LongTermDebt     *float64 `json:"long_term_debt,omitempty"`
	ShortTermDebt    *float64 `json:"short_term_debt,omitempty"`
	EffectiveTaxRate *float64 `json:"effective_tax_rate,omitempty"`
	CreditRating     string   `json:"credit_rating,omitempty"`

	EarningsGrowth          *float64 `json:"earnings_growth,omitempty"`
	EarningsQuarterlyGrowth *float64 `json:"earnings_quarterly_growth,omitempty"`
	TargetMeanPrice         *float64 `json:"target_mean_price,omitempty"`
	TrailingPE              *float64 `json:"trailing_pe,omitempty"`
	ForwardPE               *float64 `json:"forward_pe,omitempty"`
	DividendYield           *float64 `json:"dividend_yield,omitempty"`
	ProfitMargins           *float64 `json:"profit_margins,omitempty"`
	ReturnOnEquity          *float64 `json:"return_on_equity,omitempty"`
}

// Float returns a pointer to v, for populating optional profile fields.
func Float(v float64) *float64 { return &v }

// Value dereferences an optional field, reporting whether it holds a finite number.
func Value(p *float64) (float64, bool) {
	if p == nil || math.IsNaN(*p) || math.IsInf(*p, 0) {
		return 0, false
	}
	return *p, true
}

// WaccResult is the output of the discount-rate estimator.
type WaccResult struct {
	WACC               float64 `json:"wacc"`
	CostOfEquity       float64 `json:"cost_of_equity"`
	AfterTaxCostOfDebt float64 `json:"after_tax_cost_of_debt"`
	WeightDebt         float64 `json:"weight_debt"`
	WeightEquity       float64 `json:"weight_equity"`
	Beta               float64 `json:"beta"`
	TaxRate            float64 `json:"tax_rate"`
	TotalDebt          float64 `json:"total_debt"`
	MarketCap          float64 `json:"market_cap"`

	RiskFreeRate     float64 `json:"risk_free_rate"`
	CostOfDebt       float64 `json:"cost_of_debt"`
	RiskFreeSource   string  `json:"risk_free_source,omitempty"`
	CostOfDebtSource string  `json:"cost_of_debt_source,omitempty"`
	BetaSource       string  `json:"beta_source,omitempty"`
	TaxSource        string  `json:"tax_source,omitempty"`
	Adjusted         bool    `json:"adjusted"`  // sector-baseline override applied
	Defaulted        bool    `json:"defaulted"` // default values returned
}

// Growth evidence kinds, also the keys of GrowthResult.GrowthComponents.
const (
	GrowthHistoricalFCF = "historical_fcf"
	GrowthRevenue       = "revenue_growth"
	GrowthAnalyst       = "analyst_estimate"
	GrowthRegression    = "regression"
	GrowthDefault       = "default"
)

// Reliability grades.
const (
	ReliabilityHigh   = "High"
	ReliabilityMedium = "Medium"
	ReliabilityLow    = "Low"
)

// GrowthComponent is one weighted piece of evidence behind the growth rate.
type GrowthComponent struct {
	Value       float64 `json:"value"`
	Weight      float64 `json:"weight"`
	Reliability string  `json:"reliability"`
}

// GrowthResult is the output of the growth estimator.
type GrowthResult struct {
	ShortTermGrowth     float64                    `json:"short_term_growth"`
	HistoricalFCFGrowth *float64                   `json:"historical_fcf_growth,omitempty"`
	RevenueGrowth       *float64                   `json:"revenue_growth,omitempty"`
	AnalystEstimate     *float64                   `json:"analyst_estimate,omitempty"`
	RegressionGrowth    *float64                   `json:"regression_growth,omitempty"`
	CompanySize         string                     `json:"company_size"`
	IndustryCategory    string                     `json:"industry_category,omitempty"`
	MaxGrowthCap        float64                    `json:"max_growth_cap"`
	GrowthComponents    map[string]GrowthComponent `json:"growth_components"`
	Defaulted           bool                       `json:"defaulted"`
}

// ProjectionResult is the output of the terminal-value/DCF projector.
type ProjectionResult struct {
	ProjectedFCFs           []float64 `json:"projected_fcfs"`
	PVFCFs                  []float64 `json:"pv_fcfs"`
	TerminalValue           float64   `json:"terminal_value"`
	PVTerminalValue         float64   `json:"pv_terminal_value"`
	GrowthRates             []float64 `json:"growth_rates"`
	TerminalGrowthRate      float64   `json:"terminal_growth_rate"`
	TerminalValuePercentage float64   `json:"terminal_value_percentage"`
	TotalDCFValue           float64   `json:"total_dcf_value"`
	DiscountRate            float64   `json:"discount_rate"`
	ShortTermGrowth         float64   `json:"short_term_growth"`
}

// ValuationResult composes the estimator outputs into a per-share verdict.
type ValuationResult struct {
	Ticker         string           `json:"ticker"`
	Record         FinancialRecord  `json:"record"`
	Wacc           WaccResult       `json:"wacc"`
	Growth         GrowthResult     `json:"growth"`
	Projection     ProjectionResult `json:"projection"`
	IntrinsicValue float64          `json:"intrinsic_value"`
	ValuationGap   float64          `json:"valuation_gap"` // percent vs market price
	IsUndervalued  *bool            `json:"is_undervalued,omitempty"`
	Profile        *CompanyProfile  `json:"profile,omitempty"`
}

// MonteCarloResult summarizes a distribution of simulated per-share values.
type MonteCarloResult struct {
	BaseCase               float64         `json:"base_case"`
	Mean                   float64         `json:"mean"`
	Median                 float64         `json:"median"`
	StdDev                 float64         `json:"std_dev"`
	Percentiles            map[int]float64 `json:"percentiles"`
	CurrentPrice           float64         `json:"current_price"`
	ProbabilityUndervalued float64         `json:"probability_undervalued"` // percent
	Values                 []float64       `json:"all_values"`
}

// SensitivityTable holds per-share values over a discount-rate × growth grid.
// Values[i][j] pairs DiscountRates[i] with GrowthRates[j].
type SensitivityTable struct {
	DiscountRates []float64   `json:"discount_rates"`
	GrowthRates   []float64   `json:"growth_rates"`
	Values        [][]float64 `json:"values"`
}
