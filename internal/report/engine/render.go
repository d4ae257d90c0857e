package engine

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// RenderCSV writes the result as RFC-4180 CSV using the grouping's declared
// column order, with nulls rendered as the empty string.
func (r *Result) RenderCSV() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	headers := make([]string, len(r.columns))
	fields := make([]string, len(r.columns))
	for i, c := range r.columns {
		headers[i] = c.Header
		fields[i] = c.Field
	}
	if err := w.Write(headers); err != nil {
		return nil, err
	}

	for _, row := range r.Data {
		record := make([]string, len(fields))
		for i, field := range fields {
			record[i] = stringify(row[field])
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func stringify(v interface{}) string {
	if v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}

// RenderJSON wraps the result with the filters that produced it, per §4.5.
func (r *Result) RenderJSON(filters Filters) ([]byte, error) {
	payload := map[string]interface{}{
		"group_by":      r.GroupBy,
		"location_type": r.LocationType,
		"filters":       filters,
		"count":         r.Count,
		"data":          r.Data,
	}
	return json.Marshal(payload)
}

// Filename builds the CSV download filename per §4.5: attendance-<group
// suffix>-report-<ISO timestamp, colons/dots replaced with dashes>.csv
func Filename(groupBy string, now time.Time) string {
	ts := strings.NewReplacer(":", "-", ".", "-").Replace(now.UTC().Format(time.RFC3339Nano))
	return fmt.Sprintf("attendance-%s-report-%s.csv", groupBy, ts)
}
