package valuation

import (
	"math"
	"strings"

	"github.com/seenimoa/dcfvalue/pkg/models"
)

const (
	defaultDiscountRate = 0.09
	defaultShortGrowth  = 0.03
	// minimum spread kept between the discount rate and any growth rate
	growthSpread = 0.02
	// years projected at the short-term rate before the transition starts
	highGrowthYears = 3
	// steepness of the logistic transition toward terminal growth
	transitionSteepness = 10.0
)

// CompanyContext is what the projector needs to know about the issuer.
type CompanyContext struct {
	MarketCap float64
	Sector    string
	Industry  string
}

// ProjectionInput is the full input of one projection.
type ProjectionInput struct {
	FinalFCF float64
	Growth   float64
	Discount float64
	Ticker   string
	Horizon  int
	Context  CompanyContext
}

// Project runs the explicit-period projection and terminal valuation.
// It performs no I/O, so identical inputs give identical results.
func (e *Engine) Project(in ProjectionInput) models.ProjectionResult {
	if in.Horizon <= 0 {
		in.Horizon = e.horizon
	}
	return Project(in, e.tables)
}

// Project is the table-driven projector behind Engine.Project.
func Project(in ProjectionInput, t Tables) models.ProjectionResult {
	horizon := in.Horizon
	if horizon <= 0 {
		horizon = DefaultHorizon
	}
	wacc := in.Discount
	if !isFinite(wacc) || wacc <= 0 {
		wacc = defaultDiscountRate
	}
	short := in.Growth
	if !isFinite(short) {
		short = defaultShortGrowth
	}
	if short > wacc-growthSpread {
		short = wacc - growthSpread
	}

	terminal := TerminalGrowth(in.Context, wacc, t)
	rates := GrowthSchedule(short, terminal, horizon)

	projected := make([]float64, horizon)
	pvs := make([]float64, horizon)
	fcf := in.FinalFCF
	var sumPV float64
	for i, r := range rates {
		fcf *= 1 + r
		projected[i] = fcf
		pvs[i] = fcf / math.Pow(1+wacc, float64(i+1))
		sumPV += pvs[i]
	}

	last := projected[horizon-1]
	gordon := last * (1 + terminal) / (wacc - terminal)
	exit := last * t.ExitMultiple
	tv := t.GordonWeight*gordon + (1-t.GordonWeight)*exit
	pvTV := tv / math.Pow(1+wacc, float64(horizon))

	total := sumPV + pvTV
	share := terminalShare(pvTV, total)
	if share > t.TerminalShareCap {
		if sumPV > 0 {
			// solve for exactly the cap share; the total differs from a literal pvTV*cap/share rescale
			pvTV = sumPV * t.TerminalShareCap / (1 - t.TerminalShareCap)
		} else {
			pvTV *= t.TerminalShareCap / share
		}
		total = sumPV + pvTV
		share = terminalShare(pvTV, total)
	}

	return models.ProjectionResult{
		ProjectedFCFs:           projected,
		PVFCFs:                  pvs,
		TerminalValue:           tv,
		PVTerminalValue:         pvTV,
		GrowthRates:             rates,
		TerminalGrowthRate:      terminal,
		TerminalValuePercentage: share,
		TotalDCFValue:           total,
		DiscountRate:            wacc,
		ShortTermGrowth:         short,
	}
}

func terminalShare(pvTV, total float64) float64 {
	if total > 0 {
		return pvTV / total
	}
	return 0
}

// TerminalGrowth derives the long-run growth rate for an issuer: a global
// baseline adjusted for size and industry, banded, and kept at least
// growthSpread below the discount rate.
func TerminalGrowth(cc CompanyContext, wacc float64, t Tables) float64 {
	g := t.TerminalBase + lookupThreshold(t.TerminalSizeAdjust, cc.MarketCap, 0)

	sector := strings.ToLower(cc.Sector)
	industry := strings.ToLower(cc.Industry)
	switch {
	case containsAny(t.TerminalTechTerms, sector, industry):
		g += t.TerminalIndustryAdj
	case containsAny(t.TerminalDefensive, sector, industry):
		g -= t.TerminalIndustryAdj
	case containsAny(t.TerminalCyclical, sector, industry):
		// no adjustment
	}

	g = t.TerminalBand.Clamp(g)
	if g > wacc-growthSpread {
		g = wacc - growthSpread
	}
	return g
}

// GrowthSchedule returns per-year growth rates: the short-term rate for the
// first years, then a logistic glide to the terminal rate centred on the
// midpoint of the remaining horizon.
func GrowthSchedule(short, terminal float64, horizon int) []float64 {
	rates := make([]float64, horizon)
	for y := 1; y <= horizon; y++ {
		if y <= highGrowthYears {
			rates[y-1] = short
			continue
		}
		pos := float64(y-highGrowthYears) / float64(horizon-highGrowthYears)
		tf := 1 / (1 + math.Exp(-transitionSteepness*(pos-0.5)))
		rates[y-1] = short - tf*(short-terminal)
	}
	return rates
}
