package sec

// --- EDGAR Company Concept (XBRL) ---

// edgarConceptResponse is the response from the companyconcept endpoint:
// one us-gaap concept for one filer.
type edgarConceptResponse struct {
	CIK        int                        `json:"cik"`
	Taxonomy   string                     `json:"taxonomy"`
	Tag        string                     `json:"tag"`
	Label      string                     `json:"label"`
	EntityName string                     `json:"entityName"`
	Units      map[string][]edgarFactUnit `json:"units"` // unit type ("USD", "shares") -> values
}

type edgarFactUnit struct {
	Start string  `json:"start"`
	End   string  `json:"end"`
	Val   float64 `json:"val"`
	Accn  string  `json:"accn"`
	FY    int     `json:"fy"`
	FP    string  `json:"fp"` // "Q1", "Q2", "Q3", "FY"
	Form  string  `json:"form"`
	Filed string  `json:"filed"`
	Frame string  `json:"frame,omitempty"`
}

// --- CIK / Ticker Mapping ---

// edgarTickerEntry is a row from the CIK<->ticker mapping file.
// company_tickers.json is a map: {"0": {cik_str, ticker, title}, ...}
type edgarTickerEntry struct {
	CIKStr int    `json:"cik_str"`
	Ticker string `json:"ticker"`
	Title  string `json:"title"`
}
