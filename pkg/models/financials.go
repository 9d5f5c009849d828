package models

import (
	"encoding/json"
	"math"
	"strings"
	"unicode"
)

// StatementKind identifies which financial statement a Statement holds.
type StatementKind string

const (
	KindBalanceSheet    StatementKind = "balance_sheet"
	KindIncomeStatement StatementKind = "income_statement"
	KindCashFlow        StatementKind = "cash_flow"
	// KindCompanyFacts mixes cash flow, share count and revenue facts
	// from XBRL filings.
	KindCompanyFacts    StatementKind = "company_facts"
)

// LineItem is a canonical financial statement row. Provider adapters map
// their raw labels onto these names; estimators only ever see LineItems.
type LineItem string

// --- Balance sheet ---
const (
	ItemTotalDebt           LineItem = "total_debt"
	ItemLongTermDebt        LineItem = "long_term_debt"
	ItemShortLongTermDebt   LineItem = "short_long_term_debt"
	ItemCurrentDebt         LineItem = "current_debt"
	ItemShortTermDebt       LineItem = "short_term_debt"
	ItemCurrentLongTermDebt LineItem = "current_long_term_debt"
	ItemCommonStock         LineItem = "common_stock"
	ItemSharesOutstanding   LineItem = "shares_outstanding"
	ItemStockholdersEquity  LineItem = "stockholders_equity"
)

// --- Income statement ---
const (
	ItemTotalRevenue       LineItem = "total_revenue"
	ItemEBIT               LineItem = "ebit"
	ItemOperatingIncome    LineItem = "operating_income"
	ItemPretaxIncome       LineItem = "pretax_income"
	ItemIncomeTaxExpense   LineItem = "income_tax_expense"
	ItemInterestExpense    LineItem = "interest_expense"
	ItemInterestExpenseNet LineItem = "interest_expense_net"
	ItemInterestPaid       LineItem = "interest_paid"
	ItemNetInterestExpense LineItem = "net_interest_expense"
)

// --- Cash flow ---
const (
	ItemFreeCashFlow       LineItem = "free_cash_flow"
	ItemOperatingCashFlow  LineItem = "operating_cash_flow"
	ItemCapitalExpenditure LineItem = "capital_expenditure"
)

// labelAliases maps normalized raw labels (see NormalizeLabel) to canonical
// line items. Yahoo display names, Yahoo/FMP camelCase keys and SEC
// concept names all land here.
var labelAliases = map[string]LineItem{
	// debt
	"totaldebt":                    ItemTotalDebt,
	"shortlongtermdebttotal":       ItemTotalDebt,
	"longtermdebt":                 ItemLongTermDebt,
	"longtermdebtnoncurrent":       ItemLongTermDebt,
	"shortlongtermdebt":            ItemShortLongTermDebt,
	"currentdebt":                  ItemCurrentDebt,
	"shorttermdebt":                ItemShortTermDebt,
	"shorttermborrowings":          ItemShortTermDebt,
	"currentlongtermdebt":          ItemCurrentLongTermDebt,
	"longtermdebtcurrent":          ItemCurrentLongTermDebt,
	"commonstock":                  ItemCommonStock,
	"ordinarysharesnumber":         ItemSharesOutstanding,
	"shareissued":                  ItemSharesOutstanding,
	"commonstocksharesoutstanding": ItemSharesOutstanding,
	"totalstockholderequity":       ItemStockholdersEquity,
	"stockholdersequity":           ItemStockholdersEquity,
	"totalstockholdersequity":      ItemStockholdersEquity,
	"totalshareholderequity":       ItemStockholdersEquity,

	// income
	"totalrevenue":                 ItemTotalRevenue,
	"revenue":                      ItemTotalRevenue,
	"revenues":                     ItemTotalRevenue,
	"sales":                        ItemTotalRevenue,
	"ebit":                         ItemEBIT,
	"earningsbeforeinterestandtax": ItemEBIT,
	"operatingincome":              ItemOperatingIncome,
	"incomebeforetax":              ItemPretaxIncome,
	"pretaxincome":                 ItemPretaxIncome,
	"incometaxexpense":             ItemIncomeTaxExpense,
	"taxprovision":                 ItemIncomeTaxExpense,
	"interestexpense":              ItemInterestExpense,
	"interestexpensenet":           ItemInterestExpenseNet,
	"interestpaid":                 ItemInterestPaid,
	"netinterestexpense":           ItemNetInterestExpense,

	"revenuefromcontractwithcustomerexcludingassessedtax": ItemTotalRevenue,

	// cash flow
	"freecashflow":                               ItemFreeCashFlow,
	"freecashflowtofirm":                         ItemFreeCashFlow,
	"fcf":                                        ItemFreeCashFlow,
	"operatingcashflow":                          ItemOperatingCashFlow,
	"totalcashfromoperatingactivities":           ItemOperatingCashFlow,
	"cashflowfromoperations":                     ItemOperatingCashFlow,
	"cashflowfromoperatingactivities":            ItemOperatingCashFlow,
	"netcashprovidedbyoperatingactivities":       ItemOperatingCashFlow,
	"netcashprovidedbyusedinoperatingactivities": ItemOperatingCashFlow,
	"capitalexpenditure":                         ItemCapitalExpenditure,
	"capitalexpenditures":                        ItemCapitalExpenditure,
	"purchaseofpropertyandequipment":             ItemCapitalExpenditure,
	"paymentstoacquirepropertyplantandequipment": ItemCapitalExpenditure,
}

// NormalizeLabel lowercases a raw row label and strips everything that is
// not a letter or digit, so "Interest Expense, Net" and
// "interestExpenseNet" compare equal.
func NormalizeLabel(label string) string {
	var sb strings.Builder
	sb.Grow(len(label))
	for _, r := range strings.ToLower(label) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// CanonicalItem resolves a raw provider label to its LineItem.
func CanonicalItem(label string) (LineItem, bool) {
	item, ok := labelAliases[NormalizeLabel(label)]
	return item, ok
}

// Statement is a typed view over one financial statement: canonical line
// items mapped to per-period values, most recent period first. Missing
// cells are NaN.
type Statement struct {
	Kind       StatementKind          `json:"kind"`
	PeriodType string                 `json:"period_type"` // "annual" or "quarterly"
	Periods    []string               `json:"periods"`
	Items      map[LineItem][]float64 `json:"items"`
}

// NewStatement builds a Statement from raw labelled rows. Unknown labels are
// dropped. When two raw labels map to the same item, the first one seen in
// labelOrder wins.
func NewStatement(kind StatementKind, periodType string, periods []string, labelOrder []string, rows map[string][]float64) *Statement {
	st := &Statement{
		Kind:       kind,
		PeriodType: periodType,
		Periods:    periods,
		Items:      make(map[LineItem][]float64),
	}
	for _, label := range labelOrder {
		item, ok := CanonicalItem(label)
		if !ok {
			continue
		}
		if _, exists := st.Items[item]; exists {
			continue
		}
		st.Items[item] = rows[label]
	}
	return st
}

// Set stores a series directly under a canonical item.
func (s *Statement) Set(item LineItem, values []float64) {
	if s.Items == nil {
		s.Items = make(map[LineItem][]float64)
	}
	s.Items[item] = values
}

// Series returns the values for item, most recent first. Nil-safe.
func (s *Statement) Series(item LineItem) []float64 {
	if s == nil {
		return nil
	}
	return s.Items[item]
}

// Has reports whether item has at least one finite value.
func (s *Statement) Has(item LineItem) bool {
	_, ok := s.Latest(item)
	return ok
}

// Latest returns the most recent value of item when it is finite.
func (s *Statement) Latest(item LineItem) (float64, bool) {
	series := s.Series(item)
	if len(series) == 0 {
		return 0, false
	}
	v := series[0]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// At returns the value of item for period index i when it is finite.
func (s *Statement) At(item LineItem, i int) (float64, bool) {
	series := s.Series(item)
	if i < 0 || i >= len(series) {
		return 0, false
	}
	v := series[i]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Len returns the number of periods covered.
func (s *Statement) Len() int {
	if s == nil {
		return 0
	}
	n := len(s.Periods)
	for _, series := range s.Items {
		if len(series) > n {
			n = len(series)
		}
	}
	return n
}

// MarshalJSON writes missing cells as null.
func (s Statement) MarshalJSON() ([]byte, error) {
	items := make(map[LineItem][]*float64, len(s.Items))
	for item, series := range s.Items {
		cells := make([]*float64, len(series))
		for i, v := range series {
			if !math.IsNaN(v) && !math.IsInf(v, 0) {
				cells[i] = &series[i]
			}
		}
		items[item] = cells
	}
	return json.Marshal(struct {
		Kind       StatementKind           `json:"kind"`
		PeriodType string                  `json:"period_type"`
		Periods    []string                `json:"periods"`
		Items      map[LineItem][]*float64 `json:"items"`
	}{s.Kind, s.PeriodType, s.Periods, items})
}

// Statements groups the statement sets the estimators consume. Financials
// is a second, independently sourced income statement (the "alternate
// financial statement" in tax resolution).
type Statements struct {
	Balance    *Statement `json:"balance,omitempty"`
	Income     *Statement `json:"income,omitempty"`
	Financials *Statement `json:"financials,omitempty"`
	CashFlow   *Statement `json:"cash_flow,omitempty"`
	// Quarterly fallbacks, used when the annual series are too short.
	QuarterlyIncome   *Statement `json:"quarterly_income,omitempty"`
	QuarterlyCashFlow *Statement `json:"quarterly_cash_flow,omitempty"`
}
