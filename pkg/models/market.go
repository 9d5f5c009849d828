package models

import "time"

// PriceBar is one daily close.
type PriceBar struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// DailyReturns converts closes (oldest first) into fractional returns,
// skipping non-positive closes.
func DailyReturns(bars []PriceBar) []float64 {
	if len(bars) < 2 {
		return nil
	}
	out := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		prev, cur := bars[i-1].Close, bars[i].Close
		if prev <= 0 || cur <= 0 {
			continue
		}
		out = append(out, cur/prev-1)
	}
	return out
}

// YieldQuote is a yield observation as a fraction (0.045 = 4.5%).
type YieldQuote struct {
	Source string    `json:"source"`
	Value  float64   `json:"value"`
	AsOf   time.Time `json:"as_of,omitempty"`
}

// Observation is one dated value of an economic series.
type Observation struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}
