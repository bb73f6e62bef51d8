// Package tabular implements the byte-order-marked, comma-delimited text format
// used for work-log import/export, ledger import and the fixed report layouts.
package tabular

import (
	"strings"
)

// BOM is prepended to encoded output so spreadsheet applications detect UTF-8
const BOM = "\ufeff"

// Escape quotes a field when it contains a comma, a double quote, CR or LF.
// CR must be quoted because Decode drops it outside quotes.
func Escape(field string) string {
	if !strings.ContainsAny(field, ",\"\r\n") {
		return field
	}
	return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
}

// EncodeTable renders a header and rows, one line per row, with a leading BOM
func EncodeTable(header []string, rows [][]string) string {
	var b strings.Builder
	b.WriteString(BOM)
	writeRow(&b, header)
	for _, row := range rows {
		writeRow(&b, row)
	}
	return b.String()
}

func writeRow(b *strings.Builder, fields []string) {
	for i, field := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(Escape(field))
	}
	b.WriteByte('\n')
}

// Decode splits text into rows of fields. It never fails: an unterminated quote
// consumes the rest of the input, stray quotes toggle quoting, CR is dropped.
// A BOM on the very first cell is removed.
func Decode(text string) [][]string {
	var (
		rows     [][]string
		row      []string
		field    strings.Builder
		inQuotes bool
	)

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		if inQuotes {
			if c == '"' {
				if i+1 < len(runes) && runes[i+1] == '"' {
					field.WriteRune('"')
					i++
				} else {
					inQuotes = false
				}
			} else {
				field.WriteRune(c)
			}
			continue
		}

		switch c {
		case '"':
			inQuotes = true
		case ',':
			row = append(row, field.String())
			field.Reset()
		case '\n':
			row = append(row, field.String())
			field.Reset()
			rows = append(rows, row)
			row = nil
		case '\r':
			// dropped
		default:
			field.WriteRune(c)
		}
	}

	// Flush a trailing row that has no terminating newline
	if field.Len() > 0 || len(row) > 0 {
		row = append(row, field.String())
		rows = append(rows, row)
	}

	if len(rows) > 0 && len(rows[0]) > 0 {
		rows[0][0] = strings.TrimPrefix(rows[0][0], BOM)
	}

	return rows
}
