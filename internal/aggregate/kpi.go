// Package aggregate computes productivity KPIs, the daily series and per-site
// rollups from a pre-filtered set of normalized work-log records.
//
// Nothing here keeps state between calls: every summary is rebuilt from the
// records it is given, and each grouping pass returns fresh slices.
package aggregate

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"worklog-platform/internal/models"
)

// Placeholder is rendered wherever a ratio or label is undefined
const Placeholder = "-"

// UnitOutput is the summed output for one unit
type UnitOutput struct {
	Unit  string  `json:"unit"`
	Value float64 `json:"value"`
}

// SeriesPoint is one bar of a chart series
type SeriesPoint struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// SiteSummary is the rollup of one site over the filtered records
type SiteSummary struct {
	Key               string       `json:"key"`
	Count             int          `json:"count"`
	Days              int          `json:"days"`
	WorkerHours       float64      `json:"worker_hours"`
	MachineHours      float64      `json:"machine_hours"`
	Outputs           []UnitOutput `json:"outputs"`
	OutputLabel       string       `json:"output_label"`
	Productivity      *float64     `json:"productivity"`
	ProductivityLabel string       `json:"productivity_label"`
	KYCount           int          `json:"ky_count"`
	KYRate            float64      `json:"ky_rate"`
	IncidentMinor     int          `json:"incident_minor_count"`
	IncidentSevere    int          `json:"incident_severe_count"`
}

// KPISummary is the full dashboard payload for a record set
type KPISummary struct {
	Count             int          `json:"count"`
	WorkerHours       float64      `json:"worker_hours"`
	MachineHours      float64      `json:"machine_hours"`
	MachineRatio      *float64     `json:"machine_ratio"`
	KYCount           int          `json:"ky_count"`
	KYRate            float64      `json:"ky_rate"`
	IncidentMinor     int          `json:"incident_minor_count"`
	IncidentSevere    int          `json:"incident_severe_count"`
	Outputs           []UnitOutput `json:"outputs"`
	SingleUnit        string       `json:"single_unit"`
	TotalOutputLabel  string       `json:"total_output_label"`
	Productivity      *float64     `json:"productivity"`
	ProductivityLabel string       `json:"productivity_label"`

	DailySeries            []SeriesPoint `json:"daily_series"`
	Sites                  []SiteSummary `json:"sites"`
	SiteProductivitySeries []SeriesPoint `json:"site_productivity_series"`

	WorkerCount int `json:"worker_count"`
	TeamCount   int `json:"team_count"`
	SiteCount   int `json:"site_count"`
}

// Compute builds the KPI summary for records. Empty input yields zero totals,
// placeholder labels and empty groupings.
func Compute(records []models.WorkLogRecord) KPISummary {
	outputs := OutputsByUnit(records)
	singleUnit := SingleUnit(outputs)
	workerHours := sumOf(records, models.WorkLogRecord.WorkerHours)
	machineHours := sumOf(records, models.WorkLogRecord.MachineHours)

	kyCount := countWhere(records, func(r models.WorkLogRecord) bool { return r.KYCheck })
	productivity, productivityLabel := productivityOf(outputs, singleUnit, workerHours)

	summary := KPISummary{
		Count:             len(records),
		WorkerHours:       workerHours,
		MachineHours:      machineHours,
		MachineRatio:      ratio(machineHours, workerHours),
		KYCount:           kyCount,
		KYRate:            rate(kyCount, len(records)),
		IncidentMinor:     countIncident(records, models.IncidentMinor),
		IncidentSevere:    countIncident(records, models.IncidentSevere),
		Outputs:           outputs,
		SingleUnit:        singleUnit,
		TotalOutputLabel:  OutputLabel(outputs),
		Productivity:      productivity,
		ProductivityLabel: productivityLabel,
		DailySeries:       DailySeries(records, singleUnit),
		Sites:             SiteSummaries(records, singleUnit),
		WorkerCount:       distinct(records, models.WorkLogRecord.WorkerKey),
		TeamCount:         distinct(records, func(r models.WorkLogRecord) string { return r.Team }),
		SiteCount:         distinct(records, func(r models.WorkLogRecord) string { return r.SiteID }),
	}
	summary.SiteProductivitySeries = SiteProductivitySeries(summary.Sites)

	return summary
}

// OutputsByUnit sums output_value per non-empty unit, in first-appearance order
func OutputsByUnit(records []models.WorkLogRecord) []UnitOutput {
	withUnit := filter(records, func(r models.WorkLogRecord) bool { return r.OutputUnit != "" })
	groups := groupBy(withUnit, func(r models.WorkLogRecord) string { return r.OutputUnit })

	outputs := make([]UnitOutput, 0, len(groups))
	for _, g := range groups {
		outputs = append(outputs, UnitOutput{
			Unit:  g.key,
			Value: sumOf(g.records, func(r models.WorkLogRecord) float64 { return r.OutputValue }),
		})
	}
	return outputs
}

// SingleUnit returns the only unit present, or "" when there are zero or several
func SingleUnit(outputs []UnitOutput) string {
	if len(outputs) != 1 {
		return ""
	}
	return outputs[0].Unit
}

// OutputLabel renders unit sums with one decimal, joined by " / "
func OutputLabel(outputs []UnitOutput) string {
	if len(outputs) == 0 {
		return Placeholder
	}
	parts := make([]string, 0, len(outputs))
	for _, o := range outputs {
		parts = append(parts, fmt.Sprintf("%.1f %s", o.Value, o.Unit))
	}
	return strings.Join(parts, " / ")
}

// OutputFor returns the summed output for unit, 0 if absent
func OutputFor(outputs []UnitOutput, unit string) float64 {
	for _, o := range outputs {
		if o.Unit == unit {
			return o.Value
		}
	}
	return 0
}

// DailySeries sums per work date: output of the single unit when there is one,
// worker hours otherwise. Records without a date are left out.
func DailySeries(records []models.WorkLogRecord, singleUnit string) []SeriesPoint {
	dated := filter(records, func(r models.WorkLogRecord) bool { return r.WorkDate != "" })
	groups := groupBy(dated, func(r models.WorkLogRecord) string { return r.WorkDate })

	series := make([]SeriesPoint, 0, len(groups))
	for _, g := range groups {
		var value float64
		if singleUnit != "" {
			value = sumOf(g.records, func(r models.WorkLogRecord) float64 {
				if r.OutputUnit == singleUnit {
					return r.OutputValue
				}
				return 0
			})
		} else {
			value = sumOf(g.records, models.WorkLogRecord.WorkerHours)
		}
		series = append(series, SeriesPoint{Label: g.key, Value: value})
	}

	// ISO day strings sort chronologically
	sort.SliceStable(series, func(i, j int) bool { return series[i].Label < series[j].Label })
	return series
}

// SiteSummaries rolls records up per site, in first-appearance order.
//
// Productivity is computed against the unit that is single across the whole
// record set, not each site's own unit mix, so that sites stay comparable.
// When the full set mixes units every site reports the placeholder.
func SiteSummaries(records []models.WorkLogRecord, singleUnit string) []SiteSummary {
	groups := groupBy(records, models.WorkLogRecord.SiteKey)

	sites := make([]SiteSummary, 0, len(groups))
	for _, g := range groups {
		outputs := OutputsByUnit(g.records)
		workerHours := sumOf(g.records, models.WorkLogRecord.WorkerHours)
		kyCount := countWhere(g.records, func(r models.WorkLogRecord) bool { return r.KYCheck })
		productivity, label := productivityOf(outputs, singleUnit, workerHours)

		sites = append(sites, SiteSummary{
			Key:               g.key,
			Count:             len(g.records),
			Days:              distinct(g.records, func(r models.WorkLogRecord) string { return r.WorkDate }),
			WorkerHours:       workerHours,
			MachineHours:      sumOf(g.records, models.WorkLogRecord.MachineHours),
			Outputs:           outputs,
			OutputLabel:       OutputLabel(outputs),
			Productivity:      productivity,
			ProductivityLabel: label,
			KYCount:           kyCount,
			KYRate:            rate(kyCount, len(g.records)),
			IncidentMinor:     countIncident(g.records, models.IncidentMinor),
			IncidentSevere:    countIncident(g.records, models.IncidentSevere),
		})
	}
	return sites
}

var leadingNumber = regexp.MustCompile(`^([\d.]+)`)

// SiteProductivitySeries reads the leading number out of each site's productivity label.
// Placeholder labels chart as 0.
func SiteProductivitySeries(sites []SiteSummary) []SeriesPoint {
	series := make([]SeriesPoint, 0, len(sites))
	for _, s := range sites {
		var value float64
		if m := leadingNumber.FindStringSubmatch(s.ProductivityLabel); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				value = v
			}
		}
		series = append(series, SeriesPoint{Label: s.Key, Value: value})
	}
	return series
}

// ProductivityLabel formats an output-per-worker-hour figure
func ProductivityLabel(value float64, unit string) string {
	return fmt.Sprintf("%.2f %s/hour", value, unit)
}

func productivityOf(outputs []UnitOutput, unit string, hours float64) (*float64, string) {
	if unit == "" || hours <= 0 {
		return nil, Placeholder
	}
	p := OutputFor(outputs, unit) / hours
	return &p, ProductivityLabel(p, unit)
}

func ratio(num, den float64) *float64 {
	if den <= 0 {
		return nil
	}
	r := num / den
	return &r
}

func rate(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}

func countIncident(records []models.WorkLogRecord, severity string) int {
	return countWhere(records, func(r models.WorkLogRecord) bool { return r.Incident == severity })
}
