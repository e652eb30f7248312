package console

import (
	"html"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Table holds an editor's child records as displayed: both cells are HTML
// escaped. Keys are unique; inserting an existing key replaces that row's
// value in place. Field tables lowercase keys, variable tables keep them.
type Table struct {
	lowerKeys bool
	lower     cases.Caser
	rows      []Record
}

// NewTable returns an empty table for kind.
func NewTable(kind Kind) *Table {
	return &Table{
		lowerKeys: kind == Fields,
		lower:     cases.Lower(language.Und),
	}
}

// Insert escapes key and value and either replaces the row with an equal
// key or appends a new one. It returns the row's index and whether an
// existing row was replaced.
func (t *Table) Insert(key, value string) (index int, replaced bool) {
	row := Record{Key: html.EscapeString(key), Value: html.EscapeString(value)}
	if t.lowerKeys {
		row.Key = t.lower.String(row.Key)
	}
	for i, r := range t.rows {
		if r.Key == row.Key {
			t.rows[i] = row
			return i, true
		}
	}
	t.rows = append(t.rows, row)
	return len(t.rows) - 1, false
}

// RemoveAt deletes the row at position i.
func (t *Table) RemoveAt(i int) error {
	if i < 0 || i >= len(t.rows) {
		return ErrRowOutOfRange
	}
	t.rows = append(t.rows[:i], t.rows[i+1:]...)
	return nil
}

// Rows returns the escaped rows in display order.
func (t *Table) Rows() []Record {
	return append([]Record(nil), t.rows...)
}

// Records returns the rows unescaped, ready to be sent to the backend.
func (t *Table) Records() []Record {
	out := make([]Record, 0, len(t.rows))
	for _, r := range t.rows {
		out = append(out, Record{Key: html.UnescapeString(r.Key), Value: html.UnescapeString(r.Value)})
	}
	return out
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Clear removes every row.
func (t *Table) Clear() { t.rows = nil }
