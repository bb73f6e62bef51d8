package models

import "time"

// CostLedgerEntry is one dated, site-tagged expense from the external cost ledger.
// It is joined to work logs only through (site_id, month).
type CostLedgerEntry struct {
	ID      int64   `json:"id,omitempty" db:"id"`
	Date    string  `json:"date" db:"entry_date"`
	SiteID  string  `json:"site_id" db:"site_id"`
	Account string  `json:"account" db:"account"`
	Amount  float64 `json:"amount" db:"amount"`
	Note    string  `json:"note" db:"note"`
}

// Month returns the YYYY-MM prefix of the entry date
func (e CostLedgerEntry) Month() string {
	return MonthOf(e.Date)
}

// SiteKey groups the entry the way work logs are grouped, so an entry without a
// site_id is charged to the UnsetSite row
func (e CostLedgerEntry) SiteKey() string {
	if e.SiteID == "" {
		return UnsetSite
	}
	return e.SiteID
}

// LedgerColumns is the ledger import header. Matching is case-insensitive and order-insensitive.
var LedgerColumns = []string{"date", "site_id", "account", "amount", "note"}

// RequiredLedgerColumns must be present in a ledger import header
var RequiredLedgerColumns = []string{"date", "site_id", "amount"}

// RateConfig holds the prices used to turn hours and output into money.
// Supplied by the caller; computations treat it as read-only.
type RateConfig struct {
	HourlyWage  float64            `json:"hourly_wage" yaml:"hourly_wage"`
	MachineRate float64            `json:"machine_rate" yaml:"machine_rate"`
	UnitPrices  map[string]float64 `json:"unit_prices" yaml:"unit_prices"`
	UpdatedAt   time.Time          `json:"updated_at,omitempty" yaml:"-"`
}

// UnitPrice returns the configured price for a unit, 0 when none is set
func (c RateConfig) UnitPrice(unit string) float64 {
	if c.UnitPrices == nil {
		return 0
	}
	return c.UnitPrices[unit]
}

// Clone returns a deep copy so callers can mutate prices without affecting shared config
func (c RateConfig) Clone() RateConfig {
	out := c
	out.UnitPrices = make(map[string]float64, len(c.UnitPrices))
	for unit, price := range c.UnitPrices {
		out.UnitPrices[unit] = price
	}
	return out
}

// Validate rejects negative rates
func (c RateConfig) Validate() error {
	if c.HourlyWage < 0 {
		return &ValidationError{Field: "hourly_wage", Message: "hourly_wage must not be negative"}
	}
	if c.MachineRate < 0 {
		return &ValidationError{Field: "machine_rate", Message: "machine_rate must not be negative"}
	}
	for unit, price := range c.UnitPrices {
		if price < 0 {
			return &ValidationError{Field: "unit_prices", Value: unit, Message: "unit price must not be negative: " + unit}
		}
	}
	return nil
}
