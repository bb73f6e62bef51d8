package aggregate

import (
	"gonum.org/v1/gonum/floats"

	"worklog-platform/internal/models"
)

// group is one key's records, in input order
type group struct {
	key     string
	records []models.WorkLogRecord
}

// groupBy partitions records by key, keeping groups in first-appearance order
func groupBy(records []models.WorkLogRecord, key func(models.WorkLogRecord) string) []group {
	index := make(map[string]int)
	var groups []group
	for _, r := range records {
		k := key(r)
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, group{key: k})
		}
		groups[i].records = append(groups[i].records, r)
	}
	return groups
}

func filter(records []models.WorkLogRecord, keep func(models.WorkLogRecord) bool) []models.WorkLogRecord {
	out := make([]models.WorkLogRecord, 0, len(records))
	for _, r := range records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

func sumOf(records []models.WorkLogRecord, value func(models.WorkLogRecord) float64) float64 {
	if len(records) == 0 {
		return 0
	}
	values := make([]float64, len(records))
	for i, r := range records {
		values[i] = value(r)
	}
	return floats.Sum(values)
}

func countWhere(records []models.WorkLogRecord, pred func(models.WorkLogRecord) bool) int {
	n := 0
	for _, r := range records {
		if pred(r) {
			n++
		}
	}
	return n
}

// distinct counts unique non-empty keys
func distinct(records []models.WorkLogRecord, key func(models.WorkLogRecord) string) int {
	seen := make(map[string]struct{})
	for _, r := range records {
		if k := key(r); k != "" {
			seen[k] = struct{}{}
		}
	}
	return len(seen)
}

// AllTasks selects every task code in Filter
const AllTasks = "all"

// Filter keeps records in month (YYYY-MM) with the given task code.
// An empty month keeps every record; an empty task or AllTasks keeps every task.
// Records without a work date never match a month.
func Filter(records []models.WorkLogRecord, month, task string) []models.WorkLogRecord {
	return filter(records, func(r models.WorkLogRecord) bool {
		if month != "" && (r.WorkDate == "" || r.Month() != month) {
			return false
		}
		if task != "" && task != AllTasks && r.TaskCode != task {
			return false
		}
		return true
	})
}
