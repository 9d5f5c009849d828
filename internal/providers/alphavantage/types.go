package alphavantage

import (
	"math"
	"strconv"
	"strings"
)

// --- Alpha Vantage API response types ---

// avEnvelope holds the keys Alpha Vantage uses for errors and throttling
// notices, which arrive with a 200 status.
type avEnvelope struct {
	ErrorMessage string `json:"Error Message"`
	Note         string `json:"Note"`
	Information  string `json:"Information"`
}

func (e avEnvelope) message() string {
	switch {
	case e.ErrorMessage != "":
		return e.ErrorMessage
	case e.Note != "":
		return e.Note
	default:
		return e.Information
	}
}

// avNumber is a numeric field encoded as a string. Missing values come
// through as "None", "-" or "".
type avNumber string

func (n avNumber) float() (float64, bool) {
	s := strings.TrimSpace(string(n))
	s = strings.TrimSuffix(s, "%")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// ptr returns the value as an optional field.
func (n avNumber) ptr() *float64 {
	v, ok := n.float()
	if !ok {
		return nil
	}
	return &v
}

// positive drops zero and negative values, which the overview reports
// for unknown market data.
func (n avNumber) positive() *float64 {
	v, ok := n.float()
	if !ok || v <= 0 {
		return nil
	}
	return &v
}

type avOverview struct {
	Symbol                     string   `json:"Symbol"`
	Name                       string   `json:"Name"`
	Country                    string   `json:"Country"`
	Sector                     string   `json:"Sector"`
	Industry                   string   `json:"Industry"`
	MarketCapitalization       avNumber `json:"MarketCapitalization"`
	SharesOutstanding          avNumber `json:"SharesOutstanding"`
	Beta                       avNumber `json:"Beta"`
	PERatio                    avNumber `json:"PERatio"`
	ForwardPE                  avNumber `json:"ForwardPE"`
	ProfitMargin               avNumber `json:"ProfitMargin"`
	ReturnOnEquityTTM          avNumber `json:"ReturnOnEquityTTM"`
	DividendYield              avNumber `json:"DividendYield"`
	AnalystTargetPrice         avNumber `json:"AnalystTargetPrice"`
	QuarterlyEarningsGrowthYOY avNumber `json:"QuarterlyEarningsGrowthYOY"`
}

type avQuoteResponse struct {
	Quote struct {
		Symbol        string   `json:"01. symbol"`
		Price         avNumber `json:"05. price"`
		PreviousClose avNumber `json:"08. previous close"`
	} `json:"Global Quote"`
}

// avReports is the shape shared by the INCOME_STATEMENT, BALANCE_SHEET
// and CASH_FLOW functions. Each report maps camelCase line items to
// string-encoded numbers, newest period first.
type avReports struct {
	Symbol           string              `json:"symbol"`
	AnnualReports    []map[string]string `json:"annualReports"`
	QuarterlyReports []map[string]string `json:"quarterlyReports"`
}
