// Package charts renders dashboard KPIs as an HTML page of echarts bar charts.
package charts

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"worklog-platform/internal/aggregate"
)

// DailySeriesName is the daily chart's series label for the given single unit.
// Without a single unit the series carries worker hours.
func DailySeriesName(singleUnit string) string {
	if singleUnit == "" {
		return "worker hours"
	}
	return fmt.Sprintf("output (%s)", singleUnit)
}

// RenderDashboard writes the daily series and per-site productivity charts for kpi as one HTML page
func RenderDashboard(w io.Writer, title string, kpi aggregate.KPISummary) error {
	daily := barChart(
		title,
		fmt.Sprintf("records=%d hours=%.1f output=%s", kpi.Count, kpi.WorkerHours, kpi.TotalOutputLabel),
		DailySeriesName(kpi.SingleUnit),
		kpi.DailySeries,
	)

	siteSubtitle := "productivity per hour"
	if kpi.SingleUnit != "" {
		siteSubtitle = fmt.Sprintf("%s per hour", kpi.SingleUnit)
	}
	sites := barChart("Site productivity", siteSubtitle, "productivity", kpi.SiteProductivitySeries)

	page := components.NewPage()
	page.PageTitle = title
	page.AddCharts(daily, sites)

	if err := page.Render(w); err != nil {
		return fmt.Errorf("failed to render dashboard: %w", err)
	}
	return nil
}

func barChart(title, subtitle, series string, points []aggregate.SeriesPoint) *charts.Bar {
	x := make([]string, len(points))
	y := make([]opts.BarData, len(points))
	for i, p := range points {
		x[i] = p.Label
		y[i] = opts.BarData{Value: p.Value}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).
		AddSeries(series, y,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)
	return bar
}
