package table

import (
	"sort"
	"strconv"
	"time"
)

// Row is one record keyed by flattened column name. Values are whatever
// encoding/json produced (string, float64, bool, nil, []any) plus time.Time
// for normalized timestamps.
type Row map[string]any

// Table is an ordered collection of rows with a dynamic column set.
// Stages that derive new columns work on a copy; a loaded table is never
// mutated in place by more than one stage.
type Table struct {
	Rows []Row
}

func New(rows []Row) *Table { return &Table{Rows: rows} }

func (t *Table) Len() int { return len(t.Rows) }

// Copy returns a new table with shallow-copied row maps, so callers can add
// columns without touching the original.
func (t *Table) Copy() *Table {
	rows := make([]Row, len(t.Rows))
	for i, r := range t.Rows {
		nr := make(Row, len(r)+8)
		for k, v := range r {
			nr[k] = v
		}
		rows[i] = nr
	}
	return &Table{Rows: rows}
}

// Columns returns the sorted union of column names across all rows.
func (t *Table) Columns() []string {
	seen := make(map[string]struct{})
	for _, r := range t.Rows {
		for k := range r {
			seen[k] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (t *Table) HasColumn(name string) bool {
	for _, r := range t.Rows {
		if _, ok := r[name]; ok {
			return true
		}
	}
	return false
}

// Filter returns a new table holding shallow copies of the rows keep accepts.
func (t *Table) Filter(keep func(Row) bool) *Table {
	var rows []Row
	for _, r := range t.Rows {
		if !keep(r) {
			continue
		}
		nr := make(Row, len(r))
		for k, v := range r {
			nr[k] = v
		}
		rows = append(rows, nr)
	}
	return &Table{Rows: rows}
}

// SortStable sorts rows in place, preserving the order of equal rows.
func (t *Table) SortStable(less func(a, b Row) bool) {
	sort.SliceStable(t.Rows, func(i, j int) bool { return less(t.Rows[i], t.Rows[j]) })
}

// String coerces the value in col to a string. Numeric values are rendered
// without an exponent so id-like numbers survive; the second return is false
// when the value is absent or null.
func (r Row) String(col string) (string, bool) {
	v, ok := r[col]
	if !ok || v == nil {
		return "", false
	}
	switch x := v.(type) {
	case string:
		return x, true
	case float64:
		if x == float64(int64(x)) {
			return strconv.FormatInt(int64(x), 10), true
		}
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(x), true
	}
	return "", false
}

// Int coerces the value in col to an int, defaulting to 0 on anything
// non-numeric.
func (r Row) Int(col string) int {
	v, ok := r[col]
	if !ok || v == nil {
		return 0
	}
	switch x := v.(type) {
	case float64:
		return int(x)
	case int:
		return x
	case string:
		if n, err := strconv.Atoi(x); err == nil {
			return n
		}
	}
	return 0
}

// Bool returns the value in col as a bool; the second return is false when
// the value is absent, null, or not boolean-like.
func (r Row) Bool(col string) (bool, bool) {
	v, ok := r[col]
	if !ok || v == nil {
		return false, false
	}
	switch x := v.(type) {
	case bool:
		return x, true
	case string:
		if b, err := strconv.ParseBool(x); err == nil {
			return b, true
		}
	}
	return false, false
}

// List returns the value in col as a slice, or nil when it is not one.
func (r Row) List(col string) []any {
	if v, ok := r[col]; ok {
		if l, ok := v.([]any); ok {
			return l
		}
	}
	return nil
}

// Time returns the time.Time stored in col, if any.
func (r Row) Time(col string) (time.Time, bool) {
	if v, ok := r[col]; ok {
		if tm, ok := v.(time.Time); ok {
			return tm, true
		}
	}
	return time.Time{}, false
}

// IsNull reports whether col is absent, nil, or an empty string.
func (r Row) IsNull(col string) bool {
	v, ok := r[col]
	if !ok || v == nil {
		return true
	}
	if s, ok := v.(string); ok && s == "" {
		return true
	}
	return false
}
