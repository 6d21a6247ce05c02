package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/JonMunkholm/artemis-web/internal/table"
)

// Format is a download format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// DefaultFormats are offered when a config names none.
var DefaultFormats = []Format{FormatCSV, FormatJSON}

// ParseFormat parses a format name case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatJSON:
		return FormatJSON, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatJSON:
		return "application/json"
	}
	return "application/octet-stream"
}

// Filename returns base with the format's extension.
func (f Format) Filename(base string) string {
	base = strings.TrimSpace(base)
	if base == "" {
		base = "export"
	}
	return base + "." + string(f)
}

// DefaultCSV lays rows out with one column per exported column: a header of
// labels, then the text of each field.
func DefaultCSV(columns []table.Column) func([]table.Row) ([][]string, error) {
	return func(rows []table.Row) ([][]string, error) {
		records := make([][]string, 0, len(rows)+1)

		header := make([]string, len(columns))
		for i, col := range columns {
			header[i] = col.Label
			if header[i] == "" {
				header[i] = col.Field
			}
		}
		records = append(records, header)

		for _, row := range rows {
			rec := make([]string, len(columns))
			for i, col := range columns {
				rec[i] = table.Text(row[col.Field])
			}
			records = append(records, rec)
		}
		return records, nil
	}
}

func encodeCSV(records [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(records); err != nil {
		return nil, fmt.Errorf("write csv: %w", err)
	}
	return buf.Bytes(), nil
}

func encodeJSON(rows []table.Row) ([]byte, error) {
	if rows == nil {
		rows = []table.Row{}
	}
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	return data, nil
}
