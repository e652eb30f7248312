package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
)

var templates = map[Kind][][]string{
	KindField: {
		{"Email", "Value"},
		{"foobar@example.com", "Example"},
	},
	KindVariable: {
		{"Condition", "Value"},
		{"Example", "Example Text"},
	},
}

// TemplateFilename is the download name offered for a template.
func TemplateFilename(k Kind) string {
	return string(k) + "_template.csv"
}

// WriteTemplate writes the header row and one example row for k.
func WriteTemplate(w io.Writer, k Kind) error {
	rows, ok := templates[k]
	if !ok {
		return fmt.Errorf("unknown template kind %q", k)
	}
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write %s template: %w", k, err)
	}
	return nil
}
