package core

import (
	"encoding/csv"
	"fmt"
	"strings"
)

// GenerateTemplate renders the header row and example rows for kind.
// The output is identical on every call.
func GenerateTemplate(kind Kind) (string, error) {
	schema, err := GetSchema(kind)
	if err != nil {
		return "", err
	}

	rows := 0
	for _, col := range schema.Columns {
		if len(col.Example) > rows {
			rows = len(col.Example)
		}
	}

	var b strings.Builder
	w := csv.NewWriter(&b)
	w.Write(schema.ColumnNames())
	for i := 0; i < rows; i++ {
		row := make([]string, len(schema.Columns))
		for j, col := range schema.Columns {
			if i < len(col.Example) {
				row[j] = col.Example[i]
			}
		}
		w.Write(row)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}
	return b.String(), nil
}

// TemplateFilename returns the download name for kind's template.
func TemplateFilename(kind Kind) string {
	return fmt.Sprintf("%s_template.csv", kind)
}
