// Package csvio reads account batches and identifier history from CSV files
// and writes resolved accounts back out.
package csvio

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/gophid/internal/models"
)

// Warning is a non-fatal problem found on one row.
type Warning struct {
	Row     int
	Message string
}

// Table is a decoded CSV file. Rows are padded or truncated to the header
// width.
type Table struct {
	Header   []string
	Rows     [][]string
	Encoding string
	Warnings []Warning
}

// Parse decodes data and reads it as a header row followed by data rows.
func Parse(data []byte) (*Table, error) {
	decoded, enc, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("encoding detection failed: %w", err)
	}

	reader := csv.NewReader(bytes.NewReader(decoded))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty file: no header row found")
		}
		return nil, fmt.Errorf("failed to read header row: %w", err)
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(h)
	}

	t := &Table{Header: header, Encoding: enc}
	width := len(header)
	rowNum := 1
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		rowNum++
		if err != nil {
			t.Warnings = append(t.Warnings, Warning{Row: rowNum, Message: fmt.Sprintf("parse error: %v", err)})
			continue
		}

		switch {
		case len(row) < width:
			t.Warnings = append(t.Warnings, Warning{Row: rowNum,
				Message: fmt.Sprintf("row has %d columns, expected %d; padding with empty values", len(row), width)})
			padded := make([]string, width)
			copy(padded, row)
			row = padded
		case len(row) > width:
			t.Warnings = append(t.Warnings, Warning{Row: rowNum,
				Message: fmt.Sprintf("row has %d columns, expected %d; truncating extra columns", len(row), width)})
			row = row[:width]
		}
		t.Rows = append(t.Rows, row)
	}

	return t, nil
}

// Record returns row i as a column → value map.
func (t *Table) Record(i int) map[string]string {
	m := make(map[string]string, len(t.Header))
	for j, h := range t.Header {
		m[h] = t.Rows[i][j]
	}
	return m
}

// AccountOptions selects the columns used for the account's own fields.
// Empty column names fall back to the 1-based row number and "".
type AccountOptions struct {
	SourceID   string
	SourceName string
	IDColumn   string
	NameColumn string
}

// Accounts converts every row to an Account carrying all columns as
// attributes.
func (t *Table) Accounts(opts AccountOptions) []*models.Account {
	out := make([]*models.Account, 0, len(t.Rows))
	for i := range t.Rows {
		attrs := t.Record(i)
		id := attrs[opts.IDColumn]
		if id == "" {
			id = "row-" + strconv.Itoa(i+1)
		}
		a := models.NewAccount(id, attrs)
		a.SourceID = opts.SourceID
		a.SourceName = opts.SourceName
		a.NativeIdentity = id
		a.Name = attrs[opts.NameColumn]
		out = append(out, a)
	}
	return out
}

// ReadAccounts reads all of r and converts it with opts.
func ReadAccounts(r io.Reader, opts AccountOptions) ([]*models.Account, *Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read csv: %w", err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, nil, err
	}
	return t.Accounts(opts), t, nil
}
