package report

// ReportTemplate is the HTML template for the valuation report.
const ReportTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Title}}</title>
<style>
  :root {
    --bg: #ffffff;
    --text: #1a1a2e;
    --muted: #6b7280;
    --border: #e5e7eb;
    --accent: #2563eb;
    --green: #16a34a;
    --red: #dc2626;
    --section-bg: #f8fafc;
  }
  * { margin: 0; padding: 0; box-sizing: border-box; }
  body {
    font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
    color: var(--text);
    background: var(--bg);
    line-height: 1.6;
    max-width: 900px;
    margin: 0 auto;
    padding: 20px;
  }
  h1 { font-size: 1.5rem; margin-bottom: 4px; color: var(--accent); }
  h2 { font-size: 1.2rem; margin: 24px 0 12px; padding-bottom: 6px; border-bottom: 2px solid var(--accent); }
  .muted { color: var(--muted); font-size: 0.85rem; }
  .header { border-bottom: 3px solid var(--accent); padding-bottom: 12px; margin-bottom: 16px; }
  .ticker-badge {
    display: inline-block;
    background: var(--accent);
    color: white;
    padding: 2px 12px;
    border-radius: 4px;
    font-weight: 700;
    margin-right: 8px;
  }
  .kv { display: grid; grid-template-columns: 1fr 1fr; gap: 4px 24px; }
  .kv .label { color: var(--muted); }
  .kv .value { text-align: right; font-variant-numeric: tabular-nums; }
  table { width: 100%; border-collapse: collapse; font-size: 0.9rem; }
  th, td { padding: 6px 8px; border-bottom: 1px solid var(--border); text-align: right; }
  th:first-child, td:first-child { text-align: left; }
  th { background: var(--section-bg); }
  td.base { font-weight: 700; background: #eff6ff; }
  .verdict { margin: 12px 0; padding: 10px 14px; border-radius: 6px; font-weight: 600; }
  .verdict.bullish { background: #dcfce7; color: var(--green); }
  .verdict.bearish { background: #fee2e2; color: var(--red); }
  .verdict.neutral { background: var(--section-bg); color: var(--muted); }
  .chart-container { margin: 12px 0; overflow-x: auto; }
  .disclaimer { margin-top: 32px; font-size: 0.8rem; color: var(--muted); }
</style>
</head>
<body>

<div class="header">
  <h1><span class="ticker-badge">{{.Ticker}}</span> {{.CompanyName}}</h1>
  {{if .Sector}}<p class="muted">{{.Sector}} · {{.Industry}}</p>{{end}}
  <p class="muted">{{.GeneratedAt}} · Data: {{.DataSource}}</p>
</div>

<div class="kv">
  <span class="label">Free Cash Flow (Latest)</span><span class="value">{{.FreeCashFlow}}</span>
  <span class="label">WACC (Discount Rate)</span><span class="value">{{.Discount}}</span>
  <span class="label">Projected Growth Rate</span><span class="value">{{.Growth}}</span>
</div>
{{if .Defaulted}}<p class="muted">Defaults used for: {{range $i, $d := .Defaulted}}{{if $i}}, {{end}}{{$d}}{{end}}</p>{{end}}

<h2>WACC Components</h2>
<div class="kv">
  {{range .WaccRows}}<span class="label">{{.Label}}</span><span class="value">{{.Value}}</span>
  {{end}}
</div>

{{if .GrowthRows}}
<h2>Growth Rate Components</h2>
<div class="kv">
  {{range .GrowthRows}}<span class="label">{{.Label}}</span><span class="value">{{.Value}}</span>
  {{end}}
</div>
{{end}}

<h2>FCF Projections</h2>
<table>
  <tr><th>Year</th><th>FCF</th><th>Growth</th><th>Present Value</th></tr>
  {{range .Projection}}<tr><td>{{.Year}}</td><td>{{.FCF}}</td><td>{{.Growth}}</td><td>{{.PV}}</td></tr>
  {{end}}
</table>
{{if .ProjectionChart}}<div class="chart-container">{{.ProjectionChart}}</div>{{end}}

<h2>DCF Valuation Summary</h2>
<div class="kv">
  {{range .SummaryRows}}<span class="label">{{.Label}}</span><span class="value">{{.Value}}</span>
  {{end}}
</div>
<div class="verdict {{.VerdictClass}}">{{.Verdict}}</div>

{{if .MonteCarloRows}}
<h2>Monte Carlo Simulation</h2>
<div class="kv">
  {{range .MonteCarloRows}}<span class="label">{{.Label}}</span><span class="value">{{.Value}}</span>
  {{end}}
</div>
{{if .HistogramChart}}<div class="chart-container">{{.HistogramChart}}</div>{{end}}
{{end}}

{{if .SensitivityRows}}
<h2>Sensitivity Analysis</h2>
<table>
  <tr><th></th>{{range .SensitivityGrowth}}<th>{{.}}</th>{{end}}</tr>
  {{range .SensitivityRows}}{{$base := .Base}}<tr><td>{{.Discount}}</td>{{range $j, $v := .Values}}<td{{if eq $j $base}} class="base"{{end}}>{{$v}}</td>{{end}}</tr>
  {{end}}
</table>
{{end}}

<p class="disclaimer">Model output for educational purposes. Not financial advice.</p>
</body>
</html>
`
