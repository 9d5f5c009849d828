package provider

// ModelType names a standard data model. Each ModelType fixes the Go type
// a fetcher returns in FetchResult.Data.
type ModelType string

// --- Equity / Price ---
const (
	// ModelEquityInfo → *models.CompanyProfile
	ModelEquityInfo ModelType = "EquityInfo"
	// ModelEquityHistorical → []models.PriceBar, oldest first
	ModelEquityHistorical ModelType = "EquityHistorical"
)

// --- Equity / Fundamentals ---
const (
	// ModelBalanceSheet, ModelIncomeStatement and ModelCashFlowStatement
	// → *models.Statement with canonical line items, newest period first.
	ModelBalanceSheet      ModelType = "BalanceSheet"
	ModelIncomeStatement   ModelType = "IncomeStatement"
	ModelCashFlowStatement ModelType = "CashFlowStatement"
	// ModelCompanyFacts → *models.Statement built from XBRL annual facts.
	ModelCompanyFacts ModelType = "CompanyFacts"
	// ModelCikMap → string CIK, zero padded to ten digits.
	ModelCikMap ModelType = "CikMap"
)

// --- Fixed income ---
const (
	// ModelTreasuryRates → models.YieldQuote for the 10-year constant maturity.
	ModelTreasuryRates ModelType = "TreasuryRates"
	// ModelFredSeries → []models.Observation, oldest first.
	ModelFredSeries ModelType = "FredSeries"
)

// AllModels lists every model type in display order.
func AllModels() []ModelType {
	return []ModelType{
		ModelEquityInfo, ModelEquityHistorical,
		ModelBalanceSheet, ModelIncomeStatement, ModelCashFlowStatement,
		ModelCompanyFacts, ModelCikMap,
		ModelTreasuryRates, ModelFredSeries,
	}
}

// ModelCategory returns the display group of a model type.
func ModelCategory(m ModelType) string {
	switch m {
	case ModelEquityInfo, ModelEquityHistorical:
		return "Equity / Price"
	case ModelBalanceSheet, ModelIncomeStatement, ModelCashFlowStatement:
		return "Equity / Fundamentals"
	case ModelCompanyFacts, ModelCikMap:
		return "Regulators / SEC"
	case ModelTreasuryRates, ModelFredSeries:
		return "Fixed Income / Rates"
	default:
		return "Other"
	}
}
