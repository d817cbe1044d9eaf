// Package csvwriter encodes a header and rows into CSV bytes.
package csvwriter

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// Writer is safe for concurrent use; it holds no state between calls.
type Writer struct {
	// BOM prefixes the output with a UTF-8 byte order mark so spreadsheet apps
	// detect the encoding.
	BOM bool
}

func New() *Writer { return &Writer{} }

func (w *Writer) Write(header []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	if w.BOM {
		buf.WriteString("\ufeff")
	}

	cw := csv.NewWriter(&buf)
	if err := cw.Write(header); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for i, row := range rows {
		if len(row) != len(header) {
			return nil, fmt.Errorf("csv row %d has %d fields, header has %d", i, len(row), len(header))
		}
		if err := cw.Write(row); err != nil {
			return nil, fmt.Errorf("write csv row %d: %w", i, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
