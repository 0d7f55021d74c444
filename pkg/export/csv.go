// Package export serializes uniform records into CSV flashcard files.
package export

import (
	"bytes"
	"fmt"
	"io"
	"strings"
)

// ContentType is the MIME type of files produced by Encode.
const ContentType = "text/csv; charset=utf-8"

// Field is a single named value of a Record.
type Field struct {
	Name  string
	Value any
}

// Record is an ordered set of fields. Order matters: the first record of an
// export defines the header.
type Record []Field

// Get returns the value of the named field.
func (r Record) Get(name string) (any, bool) {
	for _, f := range r {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// File is a ready-to-download export.
type File struct {
	Name        string
	ContentType string
	Body        []byte
}

// Header returns the field names of the first record.
func Header(rows []Record) []string {
	if len(rows) == 0 {
		return nil
	}
	header := make([]string, len(rows[0]))
	for i, f := range rows[0] {
		header[i] = f.Name
	}
	return header
}

// WriteCSV writes the header line followed by one line per record.
// Lines are separated by '\n' and the last line has no terminator.
// Nothing is written for an empty row set.
func WriteCSV(w io.Writer, rows []Record) error {
	header := Header(rows)
	if header == nil {
		return nil
	}

	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, strings.Join(header, ","))
	for _, row := range rows {
		cells := make([]string, len(header))
		for i, name := range header {
			v, _ := row.Get(name)
			cells[i] = Sanitize(Stringify(v))
		}
		lines = append(lines, strings.Join(cells, ","))
	}

	if _, err := io.WriteString(w, strings.Join(lines, "\n")); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// Encode renders rows into a named CSV file. It reports false when there is
// nothing to export.
func Encode(rows []Record, filename string) (*File, bool) {
	if len(rows) == 0 {
		return nil, false
	}
	var buf bytes.Buffer
	// bytes.Buffer writes never fail.
	_ = WriteCSV(&buf, rows)
	return &File{
		Name:        filename,
		ContentType: ContentType,
		Body:        buf.Bytes(),
	}, true
}

// Stringify coerces a cell value to text. nil becomes the empty string.
func Stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case *string:
		if val == nil {
			return ""
		}
		return *val
	case []byte:
		return string(val)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// Sanitize quotes s when it contains a comma, a double quote or a newline,
// doubling embedded quotes. Other values are returned unchanged.
func Sanitize(s string) string {
	if !strings.ContainsAny(s, ",\"\n") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
