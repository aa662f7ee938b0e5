package source

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"finrecon/internal/table"
)

// LoadXLSX reads one worksheet, the first one when sheet is empty. The first
// row is the header and fully blank rows are dropped.
func LoadXLSX(path, sheet string) (*table.RowSet, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook %s has no sheets", path)
		}
		sheet = sheets[0]
	}
	grid, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(grid) == 0 {
		return table.New(nil, nil), nil
	}
	var records [][]string
	for _, rec := range grid[1:] {
		if blank(rec) {
			continue
		}
		records = append(records, rec)
	}
	return fromRecords(grid[0], records), nil
}

// SheetNames lists the worksheets of a workbook in tab order.
func SheetNames(path string) ([]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()
	return f.GetSheetList(), nil
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
