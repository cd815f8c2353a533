// Package csvcodec serializes flat rows into CSV text.
//
// The format is intentionally lenient: a string cell containing a comma is
// wrapped in one pair of double quotes and nothing else is escaped. Embedded
// quotes and newlines pass through untouched, so the output is meant for
// downstream consumption rather than round-trip parsing.
package csvcodec

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Field is one named cell of a row.
type Field struct {
	Key   string
	Value any
}

// Row is an ordered list of fields.
type Row []Field

// Keys returns the field names in order.
func (r Row) Keys() []string {
	keys := make([]string, len(r))
	for i, f := range r {
		keys[i] = f.Key
	}
	return keys
}

// Get returns the value stored under key.
func (r Row) Get(key string) (any, bool) {
	for _, f := range r {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Encode renders rows as CSV. The header is taken from the first row only;
// later rows are written positionally even if their keys differ. An empty
// input yields "".
func Encode(rows []Row) string {
	if len(rows) == 0 {
		return ""
	}

	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, strings.Join(rows[0].Keys(), ","))

	for _, row := range rows {
		cells := make([]string, len(row))
		for i, f := range row {
			cells[i] = Cell(f.Value)
		}
		lines = append(lines, strings.Join(cells, ","))
	}

	return strings.Join(lines, "\n")
}

// Cell renders a single value, quoting it when the rendered text contains a
// comma. Only text values are quoted; numbers and booleans never contain one.
func Cell(v any) string {
	s := Stringify(v)
	if strings.Contains(s, ",") {
		return `"` + s + `"`
	}
	return s
}

// Stringify is the generic value conversion used for cells.
func Stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int8, int16, int32, int64:
		return fmt.Sprintf("%d", val)
	case uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", val)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case time.Time:
		return val.Format(time.RFC3339)
	case fmt.Stringer:
		return val.String()
	}

	// Structured values are not flattened; compact JSON stands in for them.
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// Union realigns rows under the union of all their keys, in first-seen
// order. Missing cells become nil. Use it when rows may have different
// shapes and name-matched columns are wanted.
func Union(rows []Row) ([]string, []Row) {
	var header []string
	seen := make(map[string]bool)
	for _, row := range rows {
		for _, f := range row {
			if !seen[f.Key] {
				seen[f.Key] = true
				header = append(header, f.Key)
			}
		}
	}

	aligned := make([]Row, len(rows))
	for i, row := range rows {
		out := make(Row, len(header))
		for j, key := range header {
			v, _ := row.Get(key)
			out[j] = Field{Key: key, Value: v}
		}
		aligned[i] = out
	}
	return header, aligned
}
