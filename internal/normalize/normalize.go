// Package normalize converts loosely typed work-log input (decoded CSV rows,
// remote-store documents) into models.WorkLogRecord.
//
// Every function here is total: bad input degrades to the zero value of the
// target type instead of returning an error, so one bad cell never stops a
// batch import.
package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"worklog-platform/internal/models"
)

// createdAtAliases are consulted in order when work_date is absent
var createdAtAliases = []string{"created_at", "createdAt", "timestamp"}

// affirmativeTokens are the case-insensitive strings ToBool treats as true
var affirmativeTokens = map[string]struct{}{
	"true": {}, "1": {}, "yes": {}, "y": {}, "on": {}, "はい": {},
}

// incidentAliases maps the labels used by the field app onto canonical severities
var incidentAliases = map[string]string{
	"無":  models.IncidentNone,
	"なし": models.IncidentNone,
	"軽微": models.IncidentMinor,
	"事故": models.IncidentSevere,
}

var isoDayPrefix = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)

// dateLayouts are tried in order for date strings that are not ISO-prefixed
var dateLayouts = []string{
	"2006/01/02",
	"2006/1/2",
	"2006-1-2",
	"2006.01.02",
	"2006/01/02 15:04:05",
	"2006/1/2 15:04",
	"20060102",
	time.RFC1123,
	time.RFC1123Z,
	time.RFC850,
	"Jan 2, 2006",
	"2 Jan 2006",
	"January 2, 2006",
}

const dayLayout = "2006-01-02"

// Normalize converts a batch of raw inputs, preserving order
func Normalize(raws []map[string]interface{}) []models.WorkLogRecord {
	out := make([]models.WorkLogRecord, 0, len(raws))
	for _, raw := range raws {
		out = append(out, FromRaw(raw))
	}
	return out
}

// FromRaw builds a canonical record from one raw input. Missing keys become zero values.
func FromRaw(raw map[string]interface{}) models.WorkLogRecord {
	return models.WorkLogRecord{
		WorkDate:       ResolveDate(raw),
		WorkerID:       ToString(raw["worker_id"]),
		WorkerName:     ToString(raw["worker_name"]),
		Team:           ToString(raw["team"]),
		SiteID:         ToString(raw["site_id"]),
		StandID:        ToString(raw["stand_id"]),
		TaskCode:       ToString(raw["task_code"]),
		WorkTimeMin:    ToNumber(raw["work_time_min"]),
		OutputValue:    ToNumber(raw["output_value"]),
		OutputUnit:     NormalizeUnit(raw["output_unit"]),
		MachineID:      ToString(raw["machine_id"]),
		MachineTimeMin: ToNumber(raw["machine_time_min"]),
		Weather:        ToString(raw["weather"]),
		KYCheck:        ToBool(raw["ky_check"]),
		Incident:       NormalizeIncident(raw["incident"]),
		Photo1:         ToString(raw["photo_1"]),
		Photo2:         ToString(raw["photo_2"]),
		Photo3:         ToString(raw["photo_3"]),
		Note:           ToString(raw["note"]),
	}
}

// FromRow maps a decoded row onto column names and normalizes it.
// Short rows leave the trailing columns empty.
func FromRow(columns []string, row []string) models.WorkLogRecord {
	raw := make(map[string]interface{}, len(columns))
	for i, col := range columns {
		if i < len(row) {
			raw[col] = row[i]
		}
	}
	return FromRaw(raw)
}

// ToNumber returns v as a finite float64, or 0 when v is not numeric
func ToNumber(v interface{}) float64 {
	switch n := v.(type) {
	case nil:
		return 0
	case float64:
		return finite(n)
	case float32:
		return finite(float64(n))
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case uint32:
		return float64(n)
	case uint64:
		return float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0
		}
		return finite(f)
	case bool:
		if n {
			return 1
		}
		return 0
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		return finite(f)
	default:
		return 0
	}
}

func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// ToBool returns booleans unchanged and matches everything else against the affirmative token set
func ToBool(v interface{}) bool {
	switch b := v.(type) {
	case nil:
		return false
	case bool:
		return b
	case string:
		_, ok := affirmativeTokens[strings.ToLower(strings.TrimSpace(b))]
		return ok
	default:
		_, ok := affirmativeTokens[strings.ToLower(ToString(v))]
		return ok
	}
}

// ToString renders scalar values as text; nil becomes ""
func ToString(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case bool:
		return strconv.FormatBool(s)
	case float64:
		return FormatNumber(s)
	case float32:
		return FormatNumber(float64(s))
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case json.Number:
		return s.String()
	default:
		return fmt.Sprint(v)
	}
}

// FormatNumber renders a number with the shortest representation that parses back exactly
func FormatNumber(f float64) string {
	return strconv.FormatFloat(finite(f), 'f', -1, 64)
}

// NormalizeUnit trims the unit label and maps the ASCII cubic-metre alias to m³
func NormalizeUnit(v interface{}) string {
	unit := strings.TrimSpace(ToString(v))
	if unit == "m3" {
		return "m³"
	}
	return unit
}

// NormalizeIncident returns none/minor/severe for known labels, none when absent,
// and any other value trimmed but otherwise untouched
func NormalizeIncident(v interface{}) string {
	s := strings.TrimSpace(ToString(v))
	if s == "" {
		return models.IncidentNone
	}
	if canonical, ok := incidentAliases[s]; ok {
		return canonical
	}
	switch lower := strings.ToLower(s); lower {
	case models.IncidentNone, models.IncidentMinor, models.IncidentSevere:
		return lower
	}
	return s
}

// ResolveDate picks the record's calendar day: work_date first, then the creation timestamp.
// Returns "" when nothing usable is present.
func ResolveDate(raw map[string]interface{}) string {
	if v, ok := raw["work_date"]; ok && !isBlank(v) {
		return ToDay(v)
	}
	for _, alias := range createdAtAliases {
		if v, ok := raw[alias]; ok && !isBlank(v) {
			return ToDay(v)
		}
	}
	return ""
}

// ToDay converts a date-like value into an ISO day (YYYY-MM-DD).
// Accepts ISO strings, {seconds: n} timestamp objects, time values, epoch milliseconds
// and a handful of common layouts. Unparseable input yields "".
func ToDay(v interface{}) string {
	switch d := v.(type) {
	case nil:
		return ""
	case string:
		return parseDayString(d)
	case time.Time:
		if d.IsZero() {
			return ""
		}
		return d.UTC().Format(dayLayout)
	case *time.Time:
		if d == nil {
			return ""
		}
		return ToDay(*d)
	case map[string]interface{}:
		return timestampDay(d)
	case bool:
		return ""
	default:
		ms := ToNumber(v)
		if ms == 0 && ToString(v) != "0" {
			return ""
		}
		return time.UnixMilli(int64(ms)).UTC().Format(dayLayout)
	}
}

// timestampDay handles the remote store's {seconds, nanoseconds} timestamp shape
func timestampDay(ts map[string]interface{}) string {
	secs, ok := ts["seconds"]
	if !ok {
		secs, ok = ts["_seconds"]
	}
	if !ok {
		return ""
	}
	return time.Unix(int64(ToNumber(secs)), 0).UTC().Format(dayLayout)
}

func parseDayString(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if isoDayPrefix.MatchString(s) {
		if _, err := time.Parse(dayLayout, s[:10]); err == nil {
			return s[:10]
		}
		return ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Format(dayLayout)
		}
	}
	return ""
}

func isBlank(v interface{}) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}
