package tabular

import (
	"strings"

	"github.com/shopspring/decimal"

	"worklog-platform/internal/models"
	"worklog-platform/internal/normalize"
)

// Encode renders records in the fixed work-log schema
func Encode(records []models.WorkLogRecord) string {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		values := r.Values()
		row := make([]string, len(values))
		for i, v := range values {
			row[i] = normalize.ToString(v)
		}
		rows = append(rows, row)
	}
	return EncodeTable(models.Columns, rows)
}

// DecodeWorkLogs parses a work-log export. The header must match models.Columns exactly,
// in order; otherwise a *models.SchemaMismatchError is returned and no record is produced.
// Body cells are coerced by the normalizer and never cause an error.
func DecodeWorkLogs(text string) ([]models.WorkLogRecord, error) {
	table := Decode(text)
	if len(table) == 0 {
		return nil, &models.SchemaMismatchError{Expected: models.Columns}
	}

	header := table[0]
	if !equalHeader(header, models.Columns) {
		return nil, &models.SchemaMismatchError{Expected: models.Columns, Got: header}
	}

	records := make([]models.WorkLogRecord, 0, len(table)-1)
	for _, row := range table[1:] {
		// Blank lines decode to a single empty cell
		if len(row) <= 1 {
			continue
		}
		records = append(records, normalize.FromRow(models.Columns, row))
	}
	return records, nil
}

func equalHeader(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range want {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

// DecodeLedger parses a cost-ledger export. Header names are matched case-insensitively
// and in any order; date, site_id and amount are required.
func DecodeLedger(text string) ([]models.CostLedgerEntry, error) {
	table := Decode(text)
	if len(table) == 0 {
		return nil, &models.SchemaMismatchError{Expected: models.LedgerColumns, Missing: models.RequiredLedgerColumns}
	}

	index := make(map[string]int, len(table[0]))
	for i, name := range table[0] {
		key := strings.ToLower(strings.TrimSpace(name))
		if _, seen := index[key]; !seen {
			index[key] = i
		}
	}

	var missing []string
	for _, col := range models.RequiredLedgerColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &models.SchemaMismatchError{Expected: models.LedgerColumns, Got: table[0], Missing: missing}
	}

	cell := func(row []string, col string) string {
		i, ok := index[col]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	entries := make([]models.CostLedgerEntry, 0, len(table)-1)
	for _, row := range table[1:] {
		if isBlankRow(row) {
			continue
		}
		entries = append(entries, models.CostLedgerEntry{
			Date:    normalize.ToDay(cell(row, "date")),
			SiteID:  strings.TrimSpace(cell(row, "site_id")),
			Account: strings.TrimSpace(cell(row, "account")),
			Amount:  ParseAmount(cell(row, "amount")),
			Note:    cell(row, "note"),
		})
	}
	return entries, nil
}

// ParseAmount reads a currency amount, ignoring thousands separators and surrounding space.
// Unparseable input yields 0.
func ParseAmount(s string) float64 {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer(",", "", "，", "", " ", "").Replace(s)
	if s == "" {
		return 0
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	return d.InexactFloat64()
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
