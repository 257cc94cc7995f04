package export

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"trust-console/internal/resource"

	"github.com/xuri/excelize/v2"
)

const defaultColumnWidth = 18

// Spreadsheet 生成 xlsx：一个工作表，表头 + 每条记录一行
func (e *Exporter) Spreadsheet(desc *resource.Descriptor, records []resource.Record) (*Artifact, error) {
	if len(records) == 0 {
		return nil, ErrNothingToExport
	}
	headers := columnsFor(desc)

	f := excelize.NewFile()
	// Note: Don't defer Close() here, because WriteTo needs the file to be open

	sheetName := sheetNameFor(desc)
	if _, err := f.NewSheet(sheetName); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	// 删除默认的 Sheet1
	if sheetName != "Sheet1" {
		if err := f.DeleteSheet("Sheet1"); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to delete default sheet: %w", err)
		}
	}
	if index, err := f.GetSheetIndex(sheetName); err == nil {
		f.SetActiveSheet(index)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#FCE9D4"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	// 表头与列宽
	for i, col := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, col.Label); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}

		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert column number: %w", err)
		}
		width := col.Width
		if width <= 0 {
			width = defaultColumnWidth
		}
		if err := f.SetColWidth(sheetName, name, name, width); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	// 数据从第 2 行开始
	for rowIdx, rec := range records {
		row := rowIdx + 2
		for colIdx, col := range headers {
			value := cellValue(desc, col, rec[col.Field])
			if value == nil || value == "" {
				continue
			}
			if err := setCellValue(f, sheetName, colIdx+1, row, value); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to set cell value at row %d, col %d: %w", row, colIdx+1, err)
			}
		}
	}

	if err := f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		Split:       false,
		XSplit:      0,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to freeze panes: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write to buffer: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}

	return &Artifact{
		Filename:    Filename(desc.Name, e.now(), FormatXLSX),
		ContentType: ContentTypeXLSX,
		Format:      FormatXLSX,
		Data:        buf.Bytes(),
		Rows:        len(records),
		Pages:       1,
	}, nil
}

// cellValue 数字字段写数字，其余写展示字符串
func cellValue(desc *resource.Descriptor, col resource.Column, v any) any {
	if v == nil {
		return nil
	}
	if f, ok := desc.Field(col.Field); ok && f.Kind == resource.KindNumber {
		switch x := v.(type) {
		case float64, int, int64:
			return x
		case string:
			if n, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
				return n
			}
		}
	}
	return resource.FormatValue(v)
}

func setCellValue(f *excelize.File, sheet string, col, row int, value any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellValue(sheet, cell, value)
}

// sheetNameFor 工作表名最长 31 字符，且不能包含 : \ / ? * [ ]
func sheetNameFor(desc *resource.Descriptor) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '-'
		}
		return r
	}, title(desc))
	if r := []rune(name); len(r) > 31 {
		name = string(r[:31])
	}
	if name == "" {
		name = "Sheet1"
	}
	return name
}
