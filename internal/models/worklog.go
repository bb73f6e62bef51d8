package models

// Incident severities recorded on a shift
const (
	IncidentNone   = "none"
	IncidentMinor  = "minor"
	IncidentSevere = "severe"
)

// UnsetSite is the grouping key used for records without a site_id
const UnsetSite = "(unset)"

// UnknownWorker is the grouping key used when neither worker_id nor worker_name is present
const UnknownWorker = "(unknown)"

// Columns is the fixed work-log schema, in export order
var Columns = []string{
	"work_date", "worker_id", "worker_name", "team", "site_id", "stand_id",
	"task_code", "work_time_min", "output_value", "output_unit",
	"machine_id", "machine_time_min", "weather", "ky_check", "incident",
	"photo_1", "photo_2", "photo_3", "note",
}

// WorkLogRecord is one normalized shift report (worker/day/site/task).
// Every field is always present; absent input is represented by its zero value.
type WorkLogRecord struct {
	WorkDate       string  `json:"work_date" db:"work_date"`
	WorkerID       string  `json:"worker_id" db:"worker_id"`
	WorkerName     string  `json:"worker_name" db:"worker_name"`
	Team           string  `json:"team" db:"team"`
	SiteID         string  `json:"site_id" db:"site_id"`
	StandID        string  `json:"stand_id" db:"stand_id"`
	TaskCode       string  `json:"task_code" db:"task_code"`
	WorkTimeMin    float64 `json:"work_time_min" db:"work_time_min"`
	OutputValue    float64 `json:"output_value" db:"output_value"`
	OutputUnit     string  `json:"output_unit" db:"output_unit"`
	MachineID      string  `json:"machine_id" db:"machine_id"`
	MachineTimeMin float64 `json:"machine_time_min" db:"machine_time_min"`
	Weather        string  `json:"weather" db:"weather"`
	KYCheck        bool    `json:"ky_check" db:"ky_check"`
	Incident       string  `json:"incident" db:"incident"`
	Photo1         string  `json:"photo_1" db:"photo_1"`
	Photo2         string  `json:"photo_2" db:"photo_2"`
	Photo3         string  `json:"photo_3" db:"photo_3"`
	Note           string  `json:"note" db:"note"`
}

// Values returns the record's fields in Columns order, keeping native types
func (r WorkLogRecord) Values() []interface{} {
	return []interface{}{
		r.WorkDate, r.WorkerID, r.WorkerName, r.Team, r.SiteID, r.StandID,
		r.TaskCode, r.WorkTimeMin, r.OutputValue, r.OutputUnit,
		r.MachineID, r.MachineTimeMin, r.Weather, r.KYCheck, r.Incident,
		r.Photo1, r.Photo2, r.Photo3, r.Note,
	}
}

// Raw returns the record as a loosely typed map keyed by column name.
// Feeding it back through the normalizer yields the same record.
func (r WorkLogRecord) Raw() map[string]interface{} {
	values := r.Values()
	raw := make(map[string]interface{}, len(Columns))
	for i, col := range Columns {
		raw[col] = values[i]
	}
	return raw
}

// WorkerKey identifies the worker for grouping: id, then name
func (r WorkLogRecord) WorkerKey() string {
	if r.WorkerID != "" {
		return r.WorkerID
	}
	return r.WorkerName
}

// SiteKey is the site grouping key, substituting UnsetSite for an empty site_id
func (r WorkLogRecord) SiteKey() string {
	if r.SiteID == "" {
		return UnsetSite
	}
	return r.SiteID
}

// Month returns the YYYY-MM prefix of the work date, or "" when the date is absent
func (r WorkLogRecord) Month() string {
	return MonthOf(r.WorkDate)
}

// WorkerHours converts work_time_min to hours
func (r WorkLogRecord) WorkerHours() float64 {
	return r.WorkTimeMin / 60
}

// MachineHours converts machine_time_min to hours
func (r WorkLogRecord) MachineHours() float64 {
	return r.MachineTimeMin / 60
}

// MonthOf returns the YYYY-MM prefix of an ISO day string
func MonthOf(day string) string {
	if len(day) < 7 {
		return ""
	}
	return day[:7]
}

// TaskOption is a known task code and the unit its output is usually measured in
type TaskOption struct {
	Code string `json:"code"`
	Unit string `json:"unit"`
}

// TaskOptions is the known task vocabulary. It is advisory: task_code is not validated against it.
var TaskOptions = []TaskOption{
	{Code: "下刈り", Unit: "ha"},
	{Code: "間伐", Unit: "本"},
	{Code: "主伐", Unit: "m³"},
	{Code: "造林", Unit: "本"},
	{Code: "路網整備", Unit: "m"},
	{Code: "集材", Unit: "m³"},
	{Code: "造材", Unit: "m³"},
	{Code: "搬出", Unit: "m³"},
	{Code: "調査", Unit: "ha"},
}

// DefaultUnit returns the usual output unit for a task code
func DefaultUnit(taskCode string) (string, bool) {
	for _, opt := range TaskOptions {
		if opt.Code == taskCode {
			return opt.Unit, true
		}
	}
	return "", false
}
