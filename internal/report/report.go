// Package report renders valuation results as plain text, HTML and SVG
// charts.
package report

import (
	"bytes"
	"fmt"
	"html/template"
	"math"
	"strings"
	"time"

	"github.com/seenimoa/dcfvalue/pkg/models"
	"github.com/seenimoa/dcfvalue/pkg/utils"
)

// ════════════════════════════════════════════════════════════════════
// Report data
// ════════════════════════════════════════════════════════════════════

// ReportData is the formatted view shared by the text and HTML renderers.
type ReportData struct {
	Title       string
	GeneratedAt string
	Ticker      string
	CompanyName string
	Sector      string
	Industry    string
	DataSource  string

	FreeCashFlow string
	Discount     string
	Growth       string
	Defaulted    []string

	WaccRows   []Row
	GrowthRows []Row
	Projection []ProjectionRow

	SummaryRows    []Row
	Verdict        string
	VerdictClass   string
	MonteCarloRows []Row

	SensitivityGrowth []string
	SensitivityRows   []SensitivityRow

	HistogramChart  template.HTML
	ProjectionChart template.HTML
}

// Row is a labelled value.
type Row struct {
	Label string
	Value string
}

// ProjectionRow is one projected year.
type ProjectionRow struct {
	Year   int
	FCF    string
	Growth string
	PV     string
}

// SensitivityRow is one discount rate across the growth grid.
type SensitivityRow struct {
	Discount string
	Values   []string
	Base     int // index of the base-growth cell on the base row, else -1
}

// Verdict describes the valuation gap in words.
func Verdict(v *models.ValuationResult) (text, class string) {
	switch {
	case v.IsUndervalued == nil:
		return fmt.Sprintf("%s: no verdict (invalid intrinsic value)", v.Ticker), "neutral"
	case *v.IsUndervalued:
		return fmt.Sprintf("%s is UNDERVALUED by %.2f%%", v.Ticker, v.ValuationGap), "bullish"
	default:
		return fmt.Sprintf("%s is OVERVALUED by %.2f%%", v.Ticker, math.Abs(v.ValuationGap)), "bearish"
	}
}

func buildReportData(v *models.ValuationResult, mc *models.MonteCarloResult, st *models.SensitivityTable) ReportData {
	w, g, p := v.Wacc, v.Growth, v.Projection
	d := ReportData{
		Title:        "DCF Valuation Results for " + v.Ticker,
		GeneratedAt:  ReportTimestamp(),
		Ticker:       v.Ticker,
		DataSource:   v.Record.DataSource,
		FreeCashFlow: utils.FormatUSD(v.Record.FreeCashFlow),
		Discount:     utils.FormatPct(w.WACC),
		Growth:       utils.FormatPct(g.ShortTermGrowth),
	}
	if d.DataSource == "" {
		d.DataSource = "Unknown"
	}
	if prof := v.Profile; prof != nil {
		d.CompanyName, d.Sector, d.Industry = prof.Name, prof.Sector, prof.Industry
	}
	if w.Defaulted {
		d.Defaulted = append(d.Defaulted, "WACC")
	}
	if g.Defaulted {
		d.Defaulted = append(d.Defaulted, "growth")
	}

	d.WaccRows = []Row{
		{"Cost of Equity", utils.FormatPct(w.CostOfEquity)},
		{"After-tax Cost of Debt", utils.FormatPct(w.AfterTaxCostOfDebt)},
		{"Debt Weight", utils.FormatPct(w.WeightDebt)},
		{"Equity Weight", utils.FormatPct(w.WeightEquity)},
		{"Beta", fmt.Sprintf("%.2f", w.Beta)},
	}
	if w.RiskFreeRate > 0 {
		d.WaccRows = append(d.WaccRows, Row{"Risk-free Rate", withSource(utils.FormatPct(w.RiskFreeRate), w.RiskFreeSource)})
	}
	if w.TaxRate > 0 {
		d.WaccRows = append(d.WaccRows, Row{"Tax Rate", withSource(utils.FormatPct(w.TaxRate), w.TaxSource)})
	}

	for _, c := range []struct {
		label string
		v     *float64
	}{
		{"Historical FCF Growth", g.HistoricalFCFGrowth},
		{"Historical Revenue Growth", g.RevenueGrowth},
		{"Analyst Growth Estimate", g.AnalystEstimate},
		{"Regression-based Growth", g.RegressionGrowth},
	} {
		if val, ok := models.Value(c.v); ok {
			d.GrowthRows = append(d.GrowthRows, Row{c.label, utils.FormatPct(val)})
		}
	}
	if g.CompanySize != "" {
		d.GrowthRows = append(d.GrowthRows, Row{"Company Size", g.CompanySize})
	}
	if g.MaxGrowthCap > 0 {
		d.GrowthRows = append(d.GrowthRows, Row{"Growth Cap", utils.FormatPct(g.MaxGrowthCap)})
	}

	bars := make([]BarItem, 0, len(p.ProjectedFCFs))
	for i := range p.ProjectedFCFs {
		row := ProjectionRow{Year: i + 1, FCF: utils.FormatUSD(p.ProjectedFCFs[i])}
		if i < len(p.GrowthRates) {
			row.Growth = utils.FormatPct(p.GrowthRates[i])
		}
		if i < len(p.PVFCFs) {
			row.PV = utils.FormatUSD(p.PVFCFs[i])
			bars = append(bars, BarItem{Label: fmt.Sprintf("Year %d", i+1), Value: p.PVFCFs[i]})
		}
		d.Projection = append(d.Projection, row)
	}

	var pvSum float64
	for _, pv := range p.PVFCFs {
		pvSum += pv
	}
	d.SummaryRows = []Row{
		{"Present Value of Future FCF", utils.FormatUSD(pvSum)},
		{"Terminal Value", utils.FormatUSD(p.TerminalValue)},
		{"Present Value of Terminal Value", utils.FormatUSD(p.PVTerminalValue)},
		{"Terminal Growth Rate", utils.FormatPct(p.TerminalGrowthRate)},
		{"Terminal Value Share", utils.FormatPct(p.TerminalValuePercentage)},
		{"Total DCF Value", utils.FormatUSD(p.TotalDCFValue)},
		{"Shares Outstanding", utils.FormatCount(v.Record.SharesOutstanding)},
		{"Intrinsic Value per Share", utils.FormatUSD(v.IntrinsicValue)},
		{"Current Market Price", utils.FormatUSD(v.Record.CurrentPrice)},
	}
	if v.IsUndervalued != nil {
		d.SummaryRows = append(d.SummaryRows, Row{"Valuation Gap", utils.FormatSignedPct(v.ValuationGap)})
	}
	d.Verdict, d.VerdictClass = Verdict(v)

	if mc != nil {
		d.MonteCarloRows = []Row{
			{"Median Intrinsic Value", utils.FormatUSD(mc.Median)},
			{"Mean Intrinsic Value", utils.FormatUSD(mc.Mean)},
			{"Standard Deviation", utils.FormatUSD(mc.StdDev)},
			{"5th Percentile", utils.FormatUSD(mc.Percentiles[5])},
			{"95th Percentile", utils.FormatUSD(mc.Percentiles[95])},
			{"Probability of Being Undervalued", fmt.Sprintf("%.1f%%", mc.ProbabilityUndervalued)},
		}
		cfg := DefaultChartConfig()
		cfg.Title = "Monte Carlo DCF Simulation for " + v.Ticker
		d.HistogramChart = template.HTML(HistogramSVG(mc.Values, mc.BaseCase, mc.CurrentPrice, cfg))
	}

	if st != nil {
		for _, gr := range st.GrowthRates {
			d.SensitivityGrowth = append(d.SensitivityGrowth, fmt.Sprintf("Growth %.1f%%", gr*100))
		}
		for i, dr := range st.DiscountRates {
			row := SensitivityRow{Discount: fmt.Sprintf("Discount %.1f%%", dr*100), Base: -1}
			if i == len(st.DiscountRates)/2 {
				row.Base = len(st.GrowthRates) / 2
			}
			if i < len(st.Values) {
				for _, val := range st.Values[i] {
					row.Values = append(row.Values, utils.FormatUSD(val))
				}
			}
			d.SensitivityRows = append(d.SensitivityRows, row)
		}
	}

	if len(bars) > 0 {
		cfg := DefaultChartConfig()
		cfg.Title = "Present Value of Projected FCF"
		d.ProjectionChart = template.HTML(HorizontalBarChart(bars, cfg))
	}
	return d
}

func withSource(value, source string) string {
	if source == "" {
		return value
	}
	return value + " (" + source + ")"
}

// ════════════════════════════════════════════════════════════════════
// Generate Report
// ════════════════════════════════════════════════════════════════════

// RenderText renders a plain-text valuation report. mc and st are
// optional.
func RenderText(v *models.ValuationResult, mc *models.MonteCarloResult, st *models.SensitivityTable) string {
	if v == nil {
		return "DCF analysis failed: no valuation result.\n"
	}
	return renderTextReport(buildReportData(v, mc, st))
}

// GenerateHTML renders a standalone HTML report with embedded SVG charts.
func GenerateHTML(v *models.ValuationResult, mc *models.MonteCarloResult, st *models.SensitivityTable) (string, error) {
	if v == nil {
		return "", fmt.Errorf("valuation result is nil")
	}

	tmpl, err := template.New("report").Parse(ReportTemplate)
	if err != nil {
		return "", fmt.Errorf("parsing template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, buildReportData(v, mc, st)); err != nil {
		return "", fmt.Errorf("executing template: %w", err)
	}
	return buf.String(), nil
}

// ════════════════════════════════════════════════════════════════════
// Plain-text renderer
// ════════════════════════════════════════════════════════════════════

func renderTextReport(d ReportData) string {
	var sb strings.Builder
	line := strings.Repeat("═", 60)
	thinLine := strings.Repeat("─", 60)

	sb.WriteString("\n" + line + "\n")
	sb.WriteString(fmt.Sprintf("  %s\n", d.Title))
	sb.WriteString(fmt.Sprintf("  Generated: %s\n", d.GeneratedAt))
	sb.WriteString(line + "\n")
	if d.CompanyName != "" {
		sb.WriteString(fmt.Sprintf("  %s (%s)\n", d.CompanyName, d.Ticker))
	}
	if d.Sector != "" {
		sb.WriteString(fmt.Sprintf("  Sector: %s | Industry: %s\n", d.Sector, d.Industry))
	}
	sb.WriteString(fmt.Sprintf("  Free Cash Flow (Latest): %s\n", d.FreeCashFlow))
	sb.WriteString(fmt.Sprintf("  WACC (Discount Rate): %s\n", d.Discount))
	sb.WriteString(fmt.Sprintf("  Projected Growth Rate: %s\n", d.Growth))
	sb.WriteString(fmt.Sprintf("  Data Source: %s\n", d.DataSource))
	if len(d.Defaulted) > 0 {
		sb.WriteString(fmt.Sprintf("  Defaults used for: %s\n", strings.Join(d.Defaulted, ", ")))
	}

	writeRows := func(title string, rows []Row) {
		if len(rows) == 0 {
			return
		}
		sb.WriteString(fmt.Sprintf("\n  ■ %s\n", title))
		for _, r := range rows {
			sb.WriteString(fmt.Sprintf("    %-34s %s\n", r.Label+":", r.Value))
		}
		sb.WriteString(thinLine + "\n")
	}

	writeRows("WACC COMPONENTS", d.WaccRows)
	writeRows("GROWTH RATE COMPONENTS", d.GrowthRows)

	if len(d.Projection) > 0 {
		sb.WriteString("\n  ■ FCF PROJECTIONS\n")
		for _, p := range d.Projection {
			sb.WriteString(fmt.Sprintf("    Year %2d: FCF %s (Growth: %s, PV: %s)\n", p.Year, p.FCF, p.Growth, p.PV))
		}
		sb.WriteString(thinLine + "\n")
	}

	writeRows("DCF VALUATION SUMMARY", d.SummaryRows)
	sb.WriteString(fmt.Sprintf("  %s\n", d.Verdict))
	sb.WriteString(thinLine + "\n")

	writeRows("MONTE CARLO SIMULATION", d.MonteCarloRows)

	if len(d.SensitivityRows) > 0 {
		sb.WriteString("\n  ■ SENSITIVITY ANALYSIS (intrinsic value per share)\n")
		sb.WriteString(fmt.Sprintf("    %-16s", ""))
		for _, h := range d.SensitivityGrowth {
			sb.WriteString(fmt.Sprintf(" %14s", h))
		}
		sb.WriteString("\n")
		for _, r := range d.SensitivityRows {
			sb.WriteString(fmt.Sprintf("    %-16s", r.Discount))
			for _, v := range r.Values {
				sb.WriteString(fmt.Sprintf(" %14s", v))
			}
			sb.WriteString("\n")
		}
		sb.WriteString(thinLine + "\n")
	}

	sb.WriteString("\n" + line + "\n")
	sb.WriteString("  Disclaimer: Model output for educational purposes. Not financial advice.\n")
	sb.WriteString(line + "\n")
	return sb.String()
}

// ════════════════════════════════════════════════════════════════════
// Utility: Timestamp
// ════════════════════════════════════════════════════════════════════

// ReportTimestamp returns the current UTC time formatted for report headers.
func ReportTimestamp() string {
	return time.Now().UTC().Format("02 Jan 2006, 15:04 UTC")
}

// FormatDuration formats a duration for display.
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%.1fm", d.Minutes())
	}
	return fmt.Sprintf("%.1fh", d.Hours())
}
