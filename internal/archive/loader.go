package archive

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"plumage/internal/table"
)

// FormatError reports an archive document that matches none of the
// supported shapes.
type FormatError struct {
	Shape string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("unsupported archive structure: %s", e.Shape)
}

// Load reads a Twitter archive JSON file into a row-oriented table.
// Supported shapes: JSON Lines (one record per line), a top-level array of
// records, a top-level object with a "tweets" array, and any of those with
// each record wrapped as {"tweet": {...}}. Nested objects are flattened to
// dotted column names so accessors can probe either form.
func Load(path string) (*table.Table, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

// Parse decodes an archive document already held in memory. An empty but
// valid document yields an empty table, not an error.
func Parse(b []byte) (*table.Table, error) {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 {
		return table.New(nil), nil
	}

	var top any
	if err := json.Unmarshal(trimmed, &top); err == nil {
		return fromValue(top)
	}

	// Not a single JSON document; try JSON Lines.
	return parseLines(trimmed)
}

func fromValue(top any) (*table.Table, error) {
	switch v := top.(type) {
	case []any:
		return fromList(v)
	case map[string]any:
		if tweets, ok := v["tweets"]; ok {
			list, ok := tweets.([]any)
			if !ok {
				return nil, &FormatError{Shape: `object "tweets" key is not an array`}
			}
			return fromList(list)
		}
		if len(v) == 0 {
			return table.New(nil), nil
		}
		// A single flat record object.
		row, err := recordRow(v)
		if err != nil {
			return nil, err
		}
		return table.New([]table.Row{row}), nil
	default:
		return nil, &FormatError{Shape: fmt.Sprintf("top-level %T", top)}
	}
}

func fromList(list []any) (*table.Table, error) {
	rows := make([]table.Row, 0, len(list))
	for i, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, &FormatError{Shape: fmt.Sprintf("array element %d is %T, not an object", i, item)}
		}
		row, err := recordRow(m)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return table.New(rows), nil
}

func parseLines(b []byte) (*table.Table, error) {
	var rows []table.Row
	sc := bufio.NewScanner(bytes.NewReader(b))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal(line, &m); err != nil {
			return nil, &FormatError{Shape: "not valid JSON, JSON Lines, or a supported archive object"}
		}
		row, err := recordRow(m)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return table.New(rows), nil
}

// recordRow unwraps a {"tweet": {...}} envelope when present and flattens
// nested objects into dotted column names. Lists are kept as values.
func recordRow(m map[string]any) (table.Row, error) {
	if inner, ok := m["tweet"].(map[string]any); ok {
		m = inner
	}
	row := make(table.Row, len(m))
	flatten("", m, row)
	return row, nil
}

func flatten(prefix string, m map[string]any, into table.Row) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok && len(nested) > 0 {
			flatten(key, nested, into)
			continue
		}
		into[key] = v
	}
}
