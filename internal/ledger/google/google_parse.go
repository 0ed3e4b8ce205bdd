package google

import (
	"fmt"
	"strconv"
	"strings"

	"finadvisor/internal/core"
	"finadvisor/internal/ledger"
)

func headerRow() []any {
	row := make([]any, len(ledger.Columns))
	for i, c := range ledger.Columns {
		row[i] = c
	}
	return row
}

// parseValues converts a values matrix (as returned by Sheets API) into a table.
// Trailing empty cells are dropped by the API, so rows may be short.
func parseValues(values [][]interface{}) (core.Table, error) {
	rows := make([][]string, len(values))
	for i, v := range values {
		rows[i] = toStrings(v)
	}
	return ledger.ParseRows(rows)
}

// tableValues renders the header and every record for a RAW update.
func tableValues(table core.Table) [][]any {
	out := make([][]any, 0, len(table)+1)
	out = append(out, headerRow())
	for _, r := range table {
		row := ledger.FormatRow(r)
		out = append(out, []any{row[0], row[1], row[2]})
	}
	return out
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		switch n := v.(type) {
		case float64:
			// UNFORMATTED_VALUE returns numbers as JSON floats
			out[i] = strconv.FormatFloat(n, 'f', -1, 64)
		default:
			out[i] = strings.TrimSpace(fmt.Sprint(v))
		}
	}
	return out
}
