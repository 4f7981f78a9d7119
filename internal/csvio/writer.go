package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"slices"
)

// Row is anything that exposes named column values; *models.Account is one.
type Row interface {
	Attr(name string) string
}

// Write writes one line per row: the header columns first, then each extra
// column not already in header.
func Write[R Row](w io.Writer, header, extra []string, rows []R) error {
	cols := append([]string(nil), header...)
	for _, c := range extra {
		if !slices.Contains(cols, c) {
			cols = append(cols, c)
		}
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(cols); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	line := make([]string, len(cols))
	for _, r := range rows {
		for i, c := range cols {
			line[i] = r.Attr(c)
		}
		if err := cw.Write(line); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
