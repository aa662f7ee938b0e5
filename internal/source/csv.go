// Package source loads row sets from files and databases.
package source

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"finrecon/internal/table"
)

var ErrUnsupportedFormat = errors.New("unsupported source format")

// Load picks a loader from the file extension. sheet applies to workbooks
// only; sqlite files read their first user table.
func Load(path, sheet string) (*table.RowSet, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return LoadCSV(path)
	case ".xlsx", ".xlsm":
		return LoadXLSX(path, sheet)
	case ".db", ".sqlite", ".sqlite3":
		return LoadSQLiteTable(path, "")
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// LoadCSV reads a CSV with a header row. Cells stay strings; short records
// are padded with empty cells.
func LoadCSV(path string) (*table.RowSet, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	b = bytes.TrimPrefix(b, []byte{0xEF, 0xBB, 0xBF})
	r := csv.NewReader(bytes.NewReader(b))
	r.FieldsPerRecord = -1
	headers, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return table.New(nil, nil), nil
		}
		return nil, fmt.Errorf("read header %s: %w", path, err)
	}
	var records [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		records = append(records, rec)
	}
	return fromRecords(headers, records), nil
}

func fromRecords(headers []string, records [][]string) *table.RowSet {
	cols := UniqueHeaders(headers)
	rows := make([]table.Row, 0, len(records))
	for _, rec := range records {
		row := make(table.Row, len(cols))
		for i, h := range cols {
			if i < len(rec) {
				row[h] = rec[i]
			} else {
				row[h] = ""
			}
		}
		rows = append(rows, row)
	}
	return table.New(cols, rows)
}

// UniqueHeaders trims header names, names blank headers by position and
// suffixes repeats with ".1", ".2", ...
func UniqueHeaders(headers []string) []string {
	out := make([]string, len(headers))
	used := make(map[string]bool, len(headers))
	for i, h := range headers {
		h = strings.TrimSpace(h)
		if h == "" {
			h = "Unnamed: " + strconv.Itoa(i)
		}
		name := h
		for n := 1; used[name]; n++ {
			name = h + "." + strconv.Itoa(n)
		}
		used[name] = true
		out[i] = name
	}
	return out
}
