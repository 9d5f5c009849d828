package fmp

// --- FMP API response types ---

type fmpProfile struct {
	Symbol      string   `json:"symbol"`
	Price       *float64 `json:"price"`
	Beta        *float64 `json:"beta"`
	MktCap      *float64 `json:"mktCap"`
	LastDiv     *float64 `json:"lastDiv"`
	CompanyName string   `json:"companyName"`
	Currency    string   `json:"currency"`
	CIK         string   `json:"cik"`
	Exchange    string   `json:"exchange"`
	Industry    string   `json:"industry"`
	Sector      string   `json:"sector"`
	Country     string   `json:"country"`
	IsETF       bool     `json:"isEtf"`
}

// fmpStatement is one period of any FMP statement endpoint. Line items are
// camelCase keys with numeric values; date and period metadata are strings.
type fmpStatement map[string]any
