package results

import (
	"regexp"
	"strings"

	"github.com/kiranshivaraju/dnaspecies/pkg/models"
)

var reLineBreak = regexp.MustCompile(`\r?\n`)

// ParseCSV parses comma-delimited text into its header and data rows.
// A comma separates fields only when an even number of double quotes
// follows it on the line. One leading and one trailing quote are stripped
// from each field before trimming. Data rows shorter than the header are
// padded with empty strings; extra fields are dropped.
func ParseCSV(text string) ([]string, []*models.Row) {
	var lines []string
	for _, l := range reLineBreak.Split(text, -1) {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) == 0 {
		return nil, nil
	}

	headers := splitFields(lines[0])
	rows := make([]*models.Row, 0, len(lines)-1)
	for _, line := range lines[1:] {
		parts := splitFields(line)
		row := models.NewRow()
		for i, h := range headers {
			v := ""
			if i < len(parts) {
				v = parts[i]
			}
			row.Set(h, v)
		}
		rows = append(rows, row)
	}
	return headers, rows
}

func splitFields(line string) []string {
	// quotesAfter[i] holds the number of '"' in line[i+1:].
	quotesAfter := make([]int, len(line))
	n := 0
	for i := len(line) - 1; i >= 0; i-- {
		quotesAfter[i] = n
		if line[i] == '"' {
			n++
		}
	}

	var fields []string
	start := 0
	for i := 0; i < len(line); i++ {
		if line[i] == ',' && quotesAfter[i]%2 == 0 {
			fields = append(fields, cleanField(line[start:i]))
			start = i + 1
		}
	}
	return append(fields, cleanField(line[start:]))
}

func cleanField(f string) string {
	f = strings.TrimPrefix(f, `"`)
	f = strings.TrimSuffix(f, `"`)
	return strings.TrimSpace(f)
}
