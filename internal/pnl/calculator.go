// Package pnl joins per-site work-log aggregates with the rate configuration
// and the external cost ledger to produce monthly profit-and-loss rows.
package pnl

import (
	"sort"

	"worklog-platform/internal/aggregate"
	"worklog-platform/internal/models"
)

// Row is one site's P&L for a month. MarginRatio is nil when revenue is not positive.
type Row struct {
	SiteID       string   `json:"site_id"`
	Month        string   `json:"month"`
	WorkerHours  float64  `json:"worker_hours"`
	MachineHours float64  `json:"machine_hours"`
	Revenue      float64  `json:"revenue"`
	LaborCost    float64  `json:"labor_cost"`
	MachineCost  float64  `json:"machine_cost"`
	OtherCost    float64  `json:"other_cost"`
	Gross        float64  `json:"gross"`
	MarginRatio  *float64 `json:"margin_ratio"`
}

// TotalCost is labor + machine + other cost
func (r Row) TotalCost() float64 {
	return r.LaborCost + r.MachineCost + r.OtherCost
}

// Calculate builds one row per site summary. Sites must already be restricted to month.
// Ledger entries are matched on site key and the month of their date, so entries
// without a site_id join the UnsetSite row. Entries for sites that logged no work are never surfaced. Rows are ordered by gross descending.
func Calculate(sites []aggregate.SiteSummary, month string, rates models.RateConfig, ledger []models.CostLedgerEntry) []Row {
	otherCosts := otherCostBySite(ledger, month)

	rows := make([]Row, 0, len(sites))
	for _, site := range sites {
		row := Row{
			SiteID:       site.Key,
			Month:        month,
			WorkerHours:  site.WorkerHours,
			MachineHours: site.MachineHours,
			Revenue:      Revenue(site.Outputs, rates),
			LaborCost:    site.WorkerHours * rates.HourlyWage,
			MachineCost:  site.MachineHours * rates.MachineRate,
			OtherCost:    otherCosts[site.Key],
		}
		row.Gross = row.Revenue - row.TotalCost()
		row.MarginRatio = marginRatio(row.Gross, row.Revenue)
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Gross > rows[j].Gross })
	return rows
}

// Revenue prices each unit's output; units without a configured price contribute nothing
func Revenue(outputs []aggregate.UnitOutput, rates models.RateConfig) float64 {
	var revenue float64
	for _, o := range outputs {
		revenue += o.Value * rates.UnitPrice(o.Unit)
	}
	return revenue
}

// Totals sums every money and hour column across rows. The margin is recomputed from the sums.
func Totals(rows []Row) Row {
	var total Row
	for _, r := range rows {
		total.Month = r.Month
		total.WorkerHours += r.WorkerHours
		total.MachineHours += r.MachineHours
		total.Revenue += r.Revenue
		total.LaborCost += r.LaborCost
		total.MachineCost += r.MachineCost
		total.OtherCost += r.OtherCost
		total.Gross += r.Gross
	}
	total.MarginRatio = marginRatio(total.Gross, total.Revenue)
	return total
}

func otherCostBySite(ledger []models.CostLedgerEntry, month string) map[string]float64 {
	costs := make(map[string]float64)
	for _, e := range ledger {
		if e.Month() != month {
			continue
		}
		costs[e.SiteKey()] += e.Amount
	}
	return costs
}

func marginRatio(gross, revenue float64) *float64 {
	if revenue <= 0 {
		return nil
	}
	m := gross / revenue
	return &m
}
