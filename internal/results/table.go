package results

import (
	"strings"

	"github.com/kiranshivaraju/dnaspecies/pkg/models"
)

// Columns derives the table header: preferred keys present in the first row,
// then the first row's remaining keys in order, then any keys that only
// appear in later rows.
func Columns(rows []*models.Row) []string {
	if len(rows) == 0 {
		return []string{}
	}

	seen := make(map[string]bool)
	var cols []string
	add := func(k string) {
		if !seen[k] {
			seen[k] = true
			cols = append(cols, k)
		}
	}

	first := rows[0]
	for _, k := range models.PreferredColumns {
		if first.Has(k) {
			add(k)
		}
	}
	for _, r := range rows {
		for _, k := range r.Keys() {
			add(k)
		}
	}
	return cols
}

// CellString renders one table cell.
func CellString(column string, v any) string {
	switch column {
	case "top_probs":
		if s, ok := v.(string); ok {
			return s
		}
		return FormatTopProbs(v)
	case "confidence":
		if f, ok := number(v); ok {
			return Percent(f)
		}
	}

	switch t := v.(type) {
	case nil:
		return "-"
	case []any:
		parts := make([]string, len(t))
		for i, it := range t {
			parts[i] = Stringify(it)
		}
		return strings.Join(parts, "; ")
	default:
		return Stringify(t)
	}
}
