package valuation

import (
	"math"
	"strings"
	"time"
)

// Band is a closed plausibility interval.
type Band struct {
	Min float64
	Max float64
}

// Contains reports whether v is finite and inside the band.
func (b Band) Contains(v float64) bool {
	return isFinite(v) && v >= b.Min && v <= b.Max
}

// Clamp limits v to the band.
func (b Band) Clamp(v float64) float64 {
	return math.Max(b.Min, math.Min(v, b.Max))
}

// KeyedRate pairs a lowercase keyword with a value. Slices of KeyedRate are
// matched in order, so earlier keys take precedence.
type KeyedRate struct {
	Key  string
	Rate float64
}

// Threshold maps "value above Above" to Value. Slices are ordered from the
// highest threshold down.
type Threshold struct {
	Above float64
	Value float64
}

// IndustryProfile is the reference data for one industry bucket.
type IndustryProfile struct {
	Key               string
	Beta              float64
	MarketRiskPremium float64
	DefaultSpread     float64
	AvgCostOfDebt     float64
}

// Matched reports whether the profile came from a keyword match rather
// than the default bucket.
func (p IndustryProfile) Matched() bool { return p.Key != "" && p.Key != defaultKey }

// SizeTier is a market-cap bucket with its base growth cap.
type SizeTier struct {
	Name   string
	Above  float64
	Cap    float64
	Growth float64 // conservative default growth for the tier
}

// SizeBand pairs a market-cap floor with a plausibility band.
type SizeBand struct {
	Above float64
	Band  Band
}

// Category is a growth category matched by industry/sector keywords.
type Category struct {
	Name          string
	Keywords      []string
	CapAdjustment float64
	WeightDelta   map[string]float64
	DefaultGrowth float64
}

// OverrideTable is a point-in-time table of per-ticker values. It stops
// applying once it is older than the engine's MaxOverrideAge.
type OverrideTable[T any] struct {
	AsOf    time.Time
	Entries map[string]T
}

// Lookup returns the entry for ticker while the table is fresh.
func (o OverrideTable[T]) Lookup(ticker string, now time.Time, maxAge time.Duration) (T, bool) {
	var zero T
	if o.Entries == nil {
		return zero, false
	}
	if maxAge > 0 && !o.AsOf.IsZero() && now.Sub(o.AsOf) > maxAge {
		return zero, false
	}
	v, ok := o.Entries[strings.ToUpper(ticker)]
	return v, ok
}

const defaultKey = "default"

// Tables holds every lookup table and hand-tuned constant the estimators
// use. DefaultTables returns the calibrated set; tests and callers may copy
// and modify it. Tables are never mutated by the engine.
type Tables struct {
	// Risk-free rate.
	RiskFreeBand     Band
	MonthlyRiskFree  [12]float64 // January first
	FallbackRiskFree float64

	// Industry reference data.
	Industries      []IndustryProfile
	DefaultIndustry IndustryProfile

	// Cost of debt.
	CreditRatingYields map[string]float64
	BondBaseYield      float64
	BondIndustryRisk   []KeyedRate
	BondSizeAdjustment []Threshold // keyed on market cap
	BondYieldClamp     Band
	BondYieldAccept    Band
	InterestRateBands  []SizeBand // ordered from the largest cap down
	CoverageSpreads    []Threshold
	CoverageFloor      float64
	DebtSizePremium    []Threshold
	LeveragePremium    []Threshold

	// Tax.
	TaxBand      Band
	CountryTax   map[string]float64
	StatutoryTax float64

	// Beta and WACC.
	BetaBand         Band
	SectorBetas      map[string]float64
	IndustryToSector map[string]string
	SectorBaseWacc   map[string]float64
	DefaultBaseWacc  float64
	WaccBand         Band

	// Growth.
	IndustryGrowth        []KeyedRate
	DefaultIndustryGrowth float64
	SizeTiers             []SizeTier
	Categories            []Category
	DefaultCategory       Category
	BaseWeights           map[string]float64
	EstimateBounds        map[string]Band
	WeightBand            Band
	CapBand               Band
	ExpectedRanges        OverrideTable[Band]
	HighGrowthTech        OverrideTable[float64]
	MaxOverrideAge        time.Duration

	// Default growth model. Size tables are keyed on log10 market cap.
	DefaultSizeGrowth  []Threshold
	DefaultGrowthCaps  []Threshold
	GrowthSectorTerms  []string
	StableSectorTerms  []string
	CyclicalTerms      []string
	HyperGrowthTickers []string

	// Terminal value.
	TerminalBase        float64
	TerminalSizeAdjust  []Threshold
	TerminalTechTerms   []string
	TerminalDefensive   []string
	TerminalCyclical    []string
	TerminalIndustryAdj float64
	TerminalBand        Band
	ExitMultiple        float64
	GordonWeight        float64
	TerminalShareCap    float64
}

// DefaultTables returns the calibrated reference tables.
func DefaultTables() Tables {
	overridesAsOf := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)

	return Tables{
		RiskFreeBand: Band{0.01, 0.10},
		MonthlyRiskFree: [12]float64{
			0.0425, 0.0435, 0.0445, 0.0455, 0.0465, 0.0475,
			0.0485, 0.0475, 0.0465, 0.0455, 0.0445, 0.0435,
		},
		FallbackRiskFree: 0.042,

		Industries: []IndustryProfile{
			{Key: "technology", Beta: 1.25, MarketRiskPremium: 0.05, DefaultSpread: 0.02, AvgCostOfDebt: 0.045},
			{Key: "financial services", Beta: 1.15, MarketRiskPremium: 0.048, DefaultSpread: 0.015, AvgCostOfDebt: 0.04},
			{Key: "healthcare", Beta: 0.85, MarketRiskPremium: 0.052, DefaultSpread: 0.025, AvgCostOfDebt: 0.05},
			{Key: "consumer cyclical", Beta: 1.35, MarketRiskPremium: 0.055, DefaultSpread: 0.03, AvgCostOfDebt: 0.055},
		},
		DefaultIndustry: IndustryProfile{Key: defaultKey, Beta: 1.0, MarketRiskPremium: 0.05, DefaultSpread: 0.025, AvgCostOfDebt: 0.045},

		CreditRatingYields: map[string]float64{
			"AAA": 0.04, "AA+": 0.045, "AA": 0.047, "AA-": 0.05,
			"A+": 0.055, "A": 0.06, "A-": 0.065,
			"BBB+": 0.07, "BBB": 0.075, "BBB-": 0.08,
			"BB+": 0.09, "BB": 0.10, "B+": 0.11, "B": 0.12, "CCC": 0.14,
		},
		BondBaseYield: 0.05,
		BondIndustryRisk: []KeyedRate{
			{"technology", 0.01},
			{"financial services", -0.005},
			{"healthcare", 0.005},
			{"consumer cyclical", 0.015},
			{"energy", 0.02},
			{"utilities", -0.01},
		},
		BondSizeAdjustment: []Threshold{
			{200e9, -0.01}, {2e9, 0}, {math.Inf(-1), 0.02},
		},
		BondYieldClamp:  Band{0.04, 0.15},
		BondYieldAccept: Band{0.01, 0.15},
		InterestRateBands: []SizeBand{
			{Above: 200e9, Band: Band{0.01, 0.06}},
			{Above: 10e9, Band: Band{0.02, 0.08}},
			{Above: math.Inf(-1), Band: Band{0.03, 0.12}},
		},
		CoverageSpreads: []Threshold{
			{15, 0.005}, {10, 0.01}, {7, 0.015}, {5, 0.02}, {4, 0.025},
			{3, 0.035}, {2.5, 0.045}, {2, 0.055}, {1.5, 0.07}, {1, 0.09},
		},
		CoverageFloor: 0.12,
		DebtSizePremium: []Threshold{
			{200e9, 0.005}, {10e9, 0.01}, {math.Inf(-1), 0.02},
		},
		LeveragePremium: []Threshold{
			{0.7, 0.04}, {0.5, 0.03}, {0.3, 0.02}, {0.1, 0.01}, {math.Inf(-1), 0.005},
		},

		TaxBand: Band{0.10, 0.40},
		CountryTax: map[string]float64{
			"united states": 0.21, "us": 0.21, "usa": 0.21,
			"united kingdom": 0.19, "uk": 0.19,
			"germany": 0.30, "france": 0.28, "japan": 0.30, "china": 0.25,
			"canada": 0.26, "ireland": 0.125, "singapore": 0.17,
		},
		StatutoryTax: 0.21,

		BetaBand: Band{0.2, 3.0},
		SectorBetas: map[string]float64{
			"Technology": 1.25, "Financial Services": 1.15, "Healthcare": 0.85,
			"Consumer Cyclical": 1.35, "Communication Services": 1.05, "Industrials": 1.10,
			"Consumer Defensive": 0.65, "Energy": 1.25, "Basic Materials": 1.15,
			"Real Estate": 0.85, "Utilities": 0.45,
		},
		IndustryToSector: map[string]string{
			"Internet Content": "Technology", "Software": "Technology",
			"Consumer Electronics": "Technology", "Computer Hardware": "Technology",
			"Semiconductors": "Technology", "Software—Application": "Technology",
			"Online Retail": "Consumer Cyclical", "Auto Manufacturers": "Consumer Cyclical",
			"Internet Retail": "Consumer Cyclical", "E-Commerce": "Consumer Cyclical",
			"Retail": "Consumer Cyclical", "Restaurants": "Consumer Cyclical",
			"Telecom Services": "Communication Services", "Telecom Equipment": "Communication Services",
			"Entertainment": "Communication Services",
			"Banking": "Financial Services", "Insurance": "Financial Services",
			"Asset Management": "Financial Services",
			"Biotechnology": "Healthcare", "Pharmaceutical": "Healthcare", "Medical Devices": "Healthcare",
			"Aerospace": "Industrials", "Defense": "Industrials", "Transportation": "Industrials",
			"Oil & Gas": "Energy", "Oil & Gas E&P": "Energy", "Oil & Gas Services": "Energy",
			"Utilities": "Utilities", "Electric Utilities": "Utilities",
			"Real Estate": "Real Estate", "REIT": "Real Estate",
		},
		SectorBaseWacc: map[string]float64{
			"Technology": 0.095, "Financial Services": 0.085, "Healthcare": 0.08,
			"Consumer Cyclical": 0.09, "Communication Services": 0.085, "Industrials": 0.09,
			"Consumer Defensive": 0.075, "Energy": 0.10, "Basic Materials": 0.09,
			"Real Estate": 0.08, "Utilities": 0.07,
		},
		DefaultBaseWacc: 0.09,
		WaccBand:        Band{0.05, 0.20},

		IndustryGrowth: []KeyedRate{
			{"software", 0.15}, {"semiconductor", 0.12}, {"internet", 0.18},
			{"information technology", 0.12}, {"technology", 0.12},
			{"biotechnology", 0.14}, {"pharmaceuticals", 0.08}, {"healthcare", 0.07},
			{"medical devices", 0.09},
			{"consumer discretionary", 0.06}, {"consumer staples", 0.04}, {"retail", 0.05},
			{"e-commerce", 0.15},
			{"communication services", 0.08}, {"media", 0.06}, {"telecommunications", 0.03},
			{"financial services", 0.06}, {"banks", 0.04}, {"insurance", 0.05}, {"financials", 0.05},
			{"industrials", 0.05}, {"manufacturing", 0.04}, {"aerospace", 0.06},
			{"energy", 0.03}, {"utilities", 0.02}, {"real estate", 0.04}, {"materials", 0.04},
		},
		DefaultIndustryGrowth: 0.06,
		SizeTiers: []SizeTier{
			{Name: "Mega Cap", Above: 1e12, Cap: 0.10, Growth: 0.04},
			{Name: "Large Cap", Above: 1e11, Cap: 0.12, Growth: 0.05},
			{Name: "Mid Cap", Above: 1e10, Cap: 0.15, Growth: 0.06},
			{Name: "Small Cap", Above: 1e9, Cap: 0.20, Growth: 0.08},
			{Name: "Micro Cap", Above: math.Inf(-1), Cap: 0.25, Growth: 0.10},
		},
		Categories: []Category{
			{
				Name:          "high_growth",
				Keywords:      []string{"tech", "software", "semiconductor", "internet", "artificial intelligence", "ai", "cloud"},
				CapAdjustment: 0.05,
				WeightDelta:   map[string]float64{"historical_fcf": -0.05, "revenue_growth": -0.05, "analyst_estimate": 0.10},
				DefaultGrowth: 0.04,
			},
			{
				Name:          "medium_growth",
				Keywords:      []string{"health", "biotech", "medical", "pharmaceutical", "comm", "media", "entertainment", "consumer discretionary"},
				CapAdjustment: 0.03,
				WeightDelta:   map[string]float64{"analyst_estimate": 0.05, "regression": -0.05},
				DefaultGrowth: 0.02,
			},
			{
				Name:          "cyclical",
				Keywords:      []string{"financial", "bank", "insurance", "industrial", "manufacturing", "material"},
				CapAdjustment: 0.01,
				WeightDelta:   map[string]float64{"historical_fcf": 0.05, "revenue_growth": 0.05, "analyst_estimate": -0.05, "regression": -0.05},
				DefaultGrowth: 0.01,
			},
			{
				Name:          "stable",
				Keywords:      []string{"utility", "energy", "telecom", "consumer staple", "food", "retail"},
				CapAdjustment: -0.02,
				WeightDelta:   map[string]float64{"historical_fcf": 0.10, "revenue_growth": 0.05, "analyst_estimate": -0.10, "regression": -0.05},
				DefaultGrowth: -0.01,
			},
		},
		DefaultCategory: Category{Name: "average"},
		BaseWeights: map[string]float64{
			"historical_fcf":   0.35,
			"revenue_growth":   0.25,
			"analyst_estimate": 0.25,
			"regression":       0.15,
		},
		EstimateBounds: map[string]Band{
			"historical_fcf":   {-0.2, 0.5},
			"revenue_growth":   {-0.2, 0.5},
			"analyst_estimate": {0, 0.5},
			"regression":       {-0.2, 0.3},
		},
		WeightBand: Band{0.1, 0.5},
		CapBand:    Band{0.05, 0.30},
		ExpectedRanges: OverrideTable[Band]{
			AsOf: overridesAsOf,
			Entries: map[string]Band{
				"AMZN":  {0.10, 0.18},
				"GOOGL": {0.08, 0.15},
				"AAPL":  {0.05, 0.12},
				"MSFT":  {0.08, 0.15},
				"META":  {0.08, 0.15},
				"TSLA":  {0.15, 0.25},
			},
		},
		HighGrowthTech: OverrideTable[float64]{
			AsOf: overridesAsOf,
			Entries: map[string]float64{
				"AMZN": 0.15, "AAPL": 0.08, "MSFT": 0.12, "GOOGL": 0.10,
				"GOOG": 0.10, "META": 0.12, "NFLX": 0.15, "TSLA": 0.20,
			},
		},
		MaxOverrideAge: 2 * 365 * 24 * time.Hour,

		DefaultSizeGrowth: []Threshold{
			{12, 0.04}, {11, 0.05}, {10, 0.06}, {9, 0.08}, {8, 0.10}, {math.Inf(-1), 0.12},
		},
		DefaultGrowthCaps: []Threshold{
			{12, 0.08}, {11, 0.10}, {10, 0.12}, {9, 0.15}, {8, 0.20}, {math.Inf(-1), 0.25},
		},
		GrowthSectorTerms: []string{
			"technology", "information technology", "communication services", "healthcare",
			"consumer discretionary", "software", "internet", "semiconductor",
		},
		StableSectorTerms:  []string{"utilities", "consumer staples", "energy", "real estate"},
		CyclicalTerms:      []string{"industrials", "materials", "financials"},
		HyperGrowthTickers: []string{"TSLA", "NVDA"},

		TerminalBase: 0.025,
		TerminalSizeAdjust: []Threshold{
			{1e12, -0.01}, {5e11, -0.0075}, {1e11, -0.005}, {1e10, -0.0025}, {2e9, 0}, {math.Inf(-1), 0.0025},
		},
		TerminalTechTerms:   []string{"technology", "information technology", "software", "semiconductors", "internet"},
		TerminalDefensive:   []string{"utilities", "consumer staples", "healthcare", "telecom"},
		TerminalCyclical:    []string{"consumer discretionary", "industrials", "materials"},
		TerminalIndustryAdj: 0.003,
		TerminalBand:        Band{0.01, 0.04},
		ExitMultiple:        10,
		GordonWeight:        0.7,
		TerminalShareCap:    0.75,
	}
}

// Industry resolves the reference profile for an issuer. Keys are matched
// in order as substrings of the lowercase industry or sector.
func (t Tables) Industry(industry, sector string) IndustryProfile {
	ind := strings.ToLower(industry)
	sec := strings.ToLower(sector)
	for _, p := range t.Industries {
		if (ind != "" && strings.Contains(ind, p.Key)) || (sec != "" && strings.Contains(sec, p.Key)) {
			return p
		}
	}
	return t.DefaultIndustry
}

// IndustryGrowthRate looks the industry up first, then the sector. The
// second return is false when the default rate was used.
func (t Tables) IndustryGrowthRate(industry, sector string) (float64, bool) {
	for _, s := range []string{industry, sector} {
		if s == "" {
			continue
		}
		lower := strings.ToLower(s)
		for _, kr := range t.IndustryGrowth {
			if strings.Contains(lower, kr.Key) {
				return kr.Rate, true
			}
		}
	}
	return t.DefaultIndustryGrowth, false
}

// SizeTier classifies a market cap.
func (t Tables) SizeTier(marketCap float64) SizeTier {
	for _, tier := range t.SizeTiers {
		if marketCap > tier.Above {
			return tier
		}
	}
	return t.SizeTiers[len(t.SizeTiers)-1]
}

// Category classifies an issuer into a growth category. Keywords of two
// characters or fewer must match a whole word, so "ai" does not fire on
// "retail".
func (t Tables) Category(industry, sector string) Category {
	ind := strings.ToLower(industry)
	sec := strings.ToLower(sector)
	for _, c := range t.Categories {
		for _, kw := range c.Keywords {
			if keywordMatch(ind, kw) || keywordMatch(sec, kw) {
				return c
			}
		}
	}
	return t.DefaultCategory
}

// CategoryByName returns the named category, or the default one.
func (t Tables) CategoryByName(name string) Category {
	for _, c := range t.Categories {
		if c.Name == name {
			return c
		}
	}
	return t.DefaultCategory
}

func keywordMatch(text, kw string) bool {
	if text == "" {
		return false
	}
	if len(kw) > 2 {
		return strings.Contains(text, kw)
	}
	for _, w := range strings.FieldsFunc(text, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}) {
		if w == kw {
			return true
		}
	}
	return false
}

// containsAny reports whether any term is a substring of any of texts.
func containsAny(terms []string, texts ...string) bool {
	for _, text := range texts {
		if text == "" {
			continue
		}
		for _, term := range terms {
			if strings.Contains(text, term) {
				return true
			}
		}
	}
	return false
}

// lookupThreshold returns the value of the first threshold v exceeds.
func lookupThreshold(ts []Threshold, v float64, fallback float64) float64 {
	for _, th := range ts {
		if v > th.Above {
			return th.Value
		}
	}
	return fallback
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
