package report

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const maxSheetNameLength = 31

// Sheet is one table of a workbook.
type Sheet struct {
	Name    string
	Columns []string
	Rows    []map[string]any
}

type ReportService interface {
	// ExportToExcel writes data to a single "Report" sheet. Columns default
	// to the sorted union of the row keys.
	ExportToExcel(ctx context.Context, data []map[string]any, columns []string, filename string) ([]byte, string, error)
	// ExportWorkbook writes one sheet per entry, in order.
	ExportWorkbook(ctx context.Context, sheets []Sheet, filename string) ([]byte, string, error)
}

type ReportServiceImpl struct {
	logger *zap.Logger
}

func NewReportService(logger *zap.Logger) ReportService {
	return &ReportServiceImpl{logger: logger}
}

func (s *ReportServiceImpl) ExportToExcel(ctx context.Context, data []map[string]any, columns []string, filename string) ([]byte, string, error) {
	return s.ExportWorkbook(ctx, []Sheet{{Name: "Report", Columns: columns, Rows: data}}, filename)
}

func (s *ReportServiceImpl) ExportWorkbook(ctx context.Context, sheets []Sheet, filename string) ([]byte, string, error) {
	if len(sheets) == 0 {
		return nil, "", fmt.Errorf("workbook has no sheets")
	}

	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})
	if err != nil {
		return nil, "", err
	}

	used := map[string]bool{}
	for i, sheet := range sheets {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}

		name := uniqueSheetName(sheet.Name, i, used)
		index, err := f.NewSheet(name)
		if err != nil {
			return nil, "", err
		}
		if i == 0 {
			f.SetActiveSheet(index)
		}
		if err := writeSheet(f, name, sheet, headerStyle); err != nil {
			return nil, "", err
		}
	}

	// NewFile starts with Sheet1; drop it unless one of ours took the name.
	if !used["sheet1"] {
		if err := f.DeleteSheet("Sheet1"); err != nil {
			return nil, "", err
		}
	}

	buffer, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", err
	}

	xlsxFilename := filename
	if !strings.HasSuffix(xlsxFilename, ".xlsx") {
		xlsxFilename += ".xlsx"
	}

	s.logger.Debug("Workbook exported", zap.String("filename", xlsxFilename), zap.Int("sheets", len(sheets)))
	return buffer.Bytes(), xlsxFilename, nil
}

func writeSheet(f *excelize.File, sheetName string, sheet Sheet, headerStyle int) error {
	columns := sheet.Columns
	if len(columns) == 0 {
		columns = columnUnion(sheet.Rows)
	}

	for i, col := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetName, cell, col); err != nil {
			return err
		}
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for rowIdx, record := range sheet.Rows {
		for colIdx, col := range columns {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err := f.SetCellValue(sheetName, cell, cellValue(record[col])); err != nil {
				return err
			}
		}
	}

	for i := range columns {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheetName, col, col, 15)
	}
	return nil
}

func cellValue(val any) any {
	switch v := val.(type) {
	case nil:
		return ""
	case time.Time:
		return v.Format("2006-01-02 15:04:05")
	case map[string]any:
		if name, ok := v["name"]; ok {
			return fmt.Sprintf("%v", name)
		}
		b, _ := json.Marshal(v)
		return string(b)
	case []any:
		b, _ := json.Marshal(v)
		return string(b)
	}
	return val
}

func columnUnion(rows []map[string]any) []string {
	seen := map[string]bool{}
	columns := []string{}
	for _, row := range rows {
		for k := range row {
			if !seen[k] {
				seen[k] = true
				columns = append(columns, k)
			}
		}
	}
	sort.Strings(columns)
	return columns
}

// uniqueSheetName strips the characters Excel rejects in sheet names,
// truncates to 31 characters and suffixes duplicates.
func uniqueSheetName(name string, index int, used map[string]bool) string {
	name = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`:\/?*[]`, r) {
			return '-'
		}
		return r
	}, strings.TrimSpace(name))
	if name == "" {
		name = fmt.Sprintf("Sheet %d", index+1)
	}

	candidate := truncate(name, maxSheetNameLength)
	for n := 2; used[strings.ToLower(candidate)]; n++ {
		suffix := fmt.Sprintf(" (%d)", n)
		candidate = truncate(name, maxSheetNameLength-len(suffix)) + suffix
	}
	used[strings.ToLower(candidate)] = true
	return candidate
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
