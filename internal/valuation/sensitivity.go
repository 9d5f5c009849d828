package valuation

import (
	"math"

	"github.com/seenimoa/dcfvalue/pkg/models"
)

// Sensitivity builds a 5×5 grid of per-share values around the base
// discount and growth rates of v.
func (e *Engine) Sensitivity(v *models.ValuationResult) models.SensitivityTable {
	d := v.Wacc.WACC
	g := v.Growth.ShortTermGrowth
	rec := v.Record

	table := models.SensitivityTable{
		DiscountRates: []float64{math.Max(0.04, d-0.02), math.Max(0.05, d-0.01), d, d + 0.01, d + 0.02},
		GrowthRates:   []float64{math.Max(0.01, g-0.015), math.Max(0.015, g-0.0075), g, g + 0.0075, g + 0.015},
	}
	cc := companyContext(v.Profile, &rec)
	table.Values = make([][]float64, len(table.DiscountRates))
	for i, dr := range table.DiscountRates {
		row := make([]float64, len(table.GrowthRates))
		for j, gr := range table.GrowthRates {
			p := e.Project(ProjectionInput{
				FinalFCF: rec.FreeCashFlow,
				Growth:   gr,
				Discount: dr,
				Ticker:   rec.Ticker,
				Horizon:  e.horizon,
				Context:  cc,
			})
			row[j] = p.TotalDCFValue / rec.SharesOutstanding
		}
		table.Values[i] = row
	}
	return table
}
