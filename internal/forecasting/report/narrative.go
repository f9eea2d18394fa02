package report

import (
	"fmt"
	"strings"
	"text/template"
)

var narrativeTemplate = template.Must(template.New("narrative").Funcs(template.FuncMap{
	"pct":    func(p float64) string { return fmt.Sprintf("%.1f%%", p*100) },
	"change": formatChange,
}).Parse(strings.TrimSpace(`
{{- if eq .Summary.Regions 0 -}}
No regions have both a current and a prior-year forecast.
{{- else -}}
Across {{.Summary.Regions}} regions the average surge probability is {{pct .Summary.AvgCurrent}} against {{pct .Summary.AvgPrior}} a year ago ({{change .Summary.AvgChangePct}}). {{.Summary.Increased}} increased, {{.Summary.Decreased}} decreased and {{.Summary.HighRiskNow}} are now high risk.
{{- if .TopIncreases}} Largest increases: {{range $i, $r := .TopIncreases}}{{if $i}}, {{end}}{{$r.RegionID}} ({{change $r.ChangePct}}){{end}}.{{end}}
{{- if .TopDecreases}} Largest decreases: {{range $i, $r := .TopDecreases}}{{if $i}}, {{end}}{{$r.RegionID}} ({{change $r.ChangePct}}){{end}}.{{end}}
{{- end}}`)))

func formatChange(c *float64) string {
	if c == nil {
		return "no baseline"
	}
	return fmt.Sprintf("%+.1f%%", *c)
}

func renderNarrative(rep ComparisonReport) string {
	var b strings.Builder
	if err := narrativeTemplate.Execute(&b, rep); err != nil {
		return ""
	}
	return b.String()
}
