package yfinance

import "math"

// --- Yahoo Finance API response types ---

// yfChartResponse wraps the v8 chart API response.
type yfChartResponse struct {
	Chart struct {
		Result []yfChartResult `json:"result"`
		Error  *yfError        `json:"error"`
	} `json:"chart"`
}

type yfChartResult struct {
	Meta       yfChartMeta  `json:"meta"`
	Timestamp  []int64      `json:"timestamp"`
	Indicators yfIndicators `json:"indicators"`
}

type yfChartMeta struct {
	Symbol             string  `json:"symbol"`
	Currency           string  `json:"currency"`
	RegularMarketPrice float64 `json:"regularMarketPrice"`
	ChartPreviousClose float64 `json:"chartPreviousClose"`
}

type yfIndicators struct {
	Quote    []yfOHLCV    `json:"quote"`
	AdjClose []yfAdjClose `json:"adjclose"`
}

type yfOHLCV struct {
	Close []*float64 `json:"close"`
}

type yfAdjClose struct {
	AdjClose []*float64 `json:"adjclose"`
}

// yfQuoteSummaryResponse wraps the v10 quoteSummary API response.
type yfQuoteSummaryResponse struct {
	QuoteSummary struct {
		Result []yfQuoteSummaryResult `json:"result"`
		Error  *yfError               `json:"error"`
	} `json:"quoteSummary"`
}

type yfQuoteSummaryResult struct {
	// Financials modules
	IncomeStatementHistory            *yfStatementContainer `json:"incomeStatementHistory"`
	IncomeStatementHistoryQuarterly   *yfStatementContainer `json:"incomeStatementHistoryQuarterly"`
	BalanceSheetHistory               *yfStatementContainer `json:"balanceSheetHistory"`
	BalanceSheetHistoryQuarterly      *yfStatementContainer `json:"balanceSheetHistoryQuarterly"`
	CashflowStatementHistory          *yfStatementContainer `json:"cashflowStatementHistory"`
	CashflowStatementHistoryQuarterly *yfStatementContainer `json:"cashflowStatementHistoryQuarterly"`

	AssetProfile         *yfAssetProfile         `json:"assetProfile"`
	DefaultKeyStatistics *yfDefaultKeyStatistics `json:"defaultKeyStatistics"`
	SummaryDetail        *yfSummaryDetail        `json:"summaryDetail"`
	FinancialData        *yfFinancialData        `json:"financialData"`
	Price                *yfPrice                `json:"price"`
}

// yfStatementContainer holds one statement history. Yahoo names the inner
// list differently per statement.
type yfStatementContainer struct {
	Income   []map[string]yfFinVal `json:"incomeStatementHistory,omitempty"`
	Balance  []map[string]yfFinVal `json:"balanceSheetStatements,omitempty"`
	CashFlow []map[string]yfFinVal `json:"cashflowStatements,omitempty"`
}

func (c *yfStatementContainer) statements() []map[string]yfFinVal {
	if c == nil {
		return nil
	}
	switch {
	case len(c.Income) > 0:
		return c.Income
	case len(c.Balance) > 0:
		return c.Balance
	default:
		return c.CashFlow
	}
}

// yfFinVal is Yahoo's {raw, fmt} number. Missing values arrive as {}.
type yfFinVal struct {
	Raw *float64 `json:"raw"`
	Fmt string   `json:"fmt"`
}

// ptr returns the raw value, or nil when absent or not finite.
func (v yfFinVal) ptr() *float64 {
	if v.Raw == nil || math.IsNaN(*v.Raw) || math.IsInf(*v.Raw, 0) {
		return nil
	}
	x := *v.Raw
	return &x
}

type yfAssetProfile struct {
	Industry string `json:"industry"`
	Sector   string `json:"sector"`
	Country  string `json:"country"`
}

type yfDefaultKeyStatistics struct {
	EnterpriseValue         yfFinVal `json:"enterpriseValue"`
	ForwardPE               yfFinVal `json:"forwardPE"`
	SharesOutstanding       yfFinVal `json:"sharesOutstanding"`
	Beta                    yfFinVal `json:"beta"`
	EarningsQuarterlyGrowth yfFinVal `json:"earningsQuarterlyGrowth"`
}

type yfSummaryDetail struct {
	PreviousClose yfFinVal `json:"previousClose"`
	MarketCap     yfFinVal `json:"marketCap"`
	DividendYield yfFinVal `json:"dividendYield"`
	Beta          yfFinVal `json:"beta"`
	TrailingPE    yfFinVal `json:"trailingPE"`
	ForwardPE     yfFinVal `json:"forwardPE"`
}

type yfFinancialData struct {
	CurrentPrice    yfFinVal `json:"currentPrice"`
	TargetMeanPrice yfFinVal `json:"targetMeanPrice"`
	TotalDebt       yfFinVal `json:"totalDebt"`
	ProfitMargins   yfFinVal `json:"profitMargins"`
	ReturnOnEquity  yfFinVal `json:"returnOnEquity"`
	EarningsGrowth  yfFinVal `json:"earningsGrowth"`
}

type yfPrice struct {
	LongName           string   `json:"longName"`
	ShortName          string   `json:"shortName"`
	RegularMarketPrice yfFinVal `json:"regularMarketPrice"`
	MarketCap          yfFinVal `json:"marketCap"`
}

type yfError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}
