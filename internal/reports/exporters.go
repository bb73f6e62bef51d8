// Package reports projects work-log records into the fixed billing, timesheet
// and site-daily-hours layouts and renders them as CSV or XLSX.
package reports

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"worklog-platform/internal/aggregate"
	"worklog-platform/internal/models"
	"worklog-platform/internal/normalize"
	"worklog-platform/internal/tabular"
)

// Kind names an export layout
type Kind string

const (
	KindBilling        Kind = "billing"
	KindTimesheet      Kind = "timesheet"
	KindSiteDailyHours Kind = "site-daily"
)

// Kinds lists every export layout
var Kinds = []Kind{KindBilling, KindTimesheet, KindSiteDailyHours}

// UnknownKindError is returned for an export name that is not one of Kinds
type UnknownKindError struct {
	Kind string
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("unknown report kind: %q", e.Kind)
}

// ParseKind validates an export name
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", &UnknownKindError{Kind: s}
}

// Table is a rendered report: a header and string cells.
// Numeric marks the columns written as numbers in spreadsheets.
type Table struct {
	Title   string
	Header  []string
	Rows    [][]string
	Numeric []bool
}

// CSV encodes the table with the work-log text codec
func (t Table) CSV() string {
	return tabular.EncodeTable(t.Header, t.Rows)
}

// Build renders the layout for kind over records that are already restricted to one month
func Build(kind Kind, records []models.WorkLogRecord, rates models.RateConfig) (Table, error) {
	switch kind {
	case KindBilling:
		return Billing(records, rates), nil
	case KindTimesheet:
		return Timesheet(records), nil
	case KindSiteDailyHours:
		return SiteDailyHours(records), nil
	}
	return Table{}, &UnknownKindError{Kind: string(kind)}
}

// Billing has one row per (site, unit): quantity, configured unit price and
// the rounded amount. Output recorded without a unit is not billable.
func Billing(records []models.WorkLogRecord, rates models.RateConfig) Table {
	t := Table{
		Title:   "billing",
		Header:  []string{"site_id", "unit", "quantity", "unit_price", "amount"},
		Numeric: []bool{false, false, true, true, true},
	}

	for _, site := range aggregate.SiteSummaries(records, "") {
		for _, out := range site.Outputs {
			price := rates.UnitPrice(out.Unit)
			amount := decimal.NewFromFloat(out.Value).Mul(decimal.NewFromFloat(price)).Round(0)
			t.Rows = append(t.Rows, []string{
				site.Key,
				out.Unit,
				fmt.Sprintf("%.1f", out.Value),
				normalize.FormatNumber(price),
				amount.String(),
			})
		}
	}
	return t
}

// Timesheet has one row per (worker, date) with the hours worked that day
func Timesheet(records []models.WorkLogRecord) Table {
	t := Table{
		Title:   "timesheet",
		Header:  []string{"worker", "worker_name", "work_date", "hours"},
		Numeric: []bool{false, false, false, true},
	}

	type key struct{ worker, date string }
	hours := make(map[key]float64)
	names := make(map[key]string)
	var keys []key

	for _, r := range records {
		if r.WorkDate == "" {
			continue
		}
		k := key{worker: WorkerKey(r), date: r.WorkDate}
		if _, ok := hours[k]; !ok {
			keys = append(keys, k)
		}
		hours[k] += r.WorkerHours()
		if names[k] == "" {
			names[k] = r.WorkerName
		}
	}

	sort.SliceStable(keys, func(i, j int) bool {
		if keys[i].worker != keys[j].worker {
			return keys[i].worker < keys[j].worker
		}
		return keys[i].date < keys[j].date
	})

	for _, k := range keys {
		t.Rows = append(t.Rows, []string{k.worker, names[k], k.date, fmt.Sprintf("%.2f", hours[k])})
	}
	return t
}

// SiteDailyHours has one row per (site, date) with summed worker hours
func SiteDailyHours(records []models.WorkLogRecord) Table {
	t := Table{
		Title:   "site_daily_hours",
		Header:  []string{"site_id", "work_date", "worker_hours"},
		Numeric: []bool{false, false, true},
	}

	type key struct{ site, date string }
	hours := make(map[key]float64)
	var keys []key

	for _, r := range records {
		if r.WorkDate == "" {
			continue
		}
		k := key{site: r.SiteKey(), date: r.WorkDate}
		if _, ok := hours[k]; !ok {
			keys = append(keys, k)
		}
		hours[k] += r.WorkerHours()
	}

	sort.SliceStable(keys, func(i, j int) bool {
		if keys[i].site != keys[j].site {
			return keys[i].site < keys[j].site
		}
		return keys[i].date < keys[j].date
	})

	for _, k := range keys {
		t.Rows = append(t.Rows, []string{k.site, k.date, fmt.Sprintf("%.2f", hours[k])})
	}
	return t
}

// WorkerKey falls back from worker_id to worker_name to models.UnknownWorker
func WorkerKey(r models.WorkLogRecord) string {
	if k := r.WorkerKey(); k != "" {
		return k
	}
	return models.UnknownWorker
}

// FileName is the download name for an export of month, e.g. billing_2025-08.csv
func FileName(kind Kind, month, ext string) string {
	base := string(kind)
	if kind == KindSiteDailyHours {
		base = "site_daily_hours"
	}
	return fmt.Sprintf("%s_%s.%s", base, month, ext)
}

// WorkLogFileName is the download name for a raw work-log export taken on day
func WorkLogFileName(day string) string {
	return fmt.Sprintf("worklog_%s.csv", day)
}
