package export

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"trust-console/internal/resource"

	"github.com/xuri/excelize/v2"
)

var ErrNoSheet = errors.New("excel file has no sheets")

// RowError 导入时某一行的问题（Row 为表格中的行号，从 1 开始，表头为第 1 行）
type RowError struct {
	Row     int               `json:"row"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Row 导入的一行及其在表格中的行号
type Row struct {
	Number int
	Record resource.Record
}

// Import 读取第一个工作表，按导出列的表头（或字段名）映射回字段。
// id 列被忽略，整行为空的行被跳过。
func (e *Exporter) Import(desc *resource.Descriptor, data []byte) ([]Row, []RowError, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse Excel file: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, nil, ErrNoSheet
	}
	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read rows: %w", err)
	}

	records := []Row{}
	rowErrors := []RowError{}
	if len(rows) < 2 {
		return records, rowErrors, nil
	}

	headerToField := headerMapping(desc)
	fieldAt := make(map[int]string, len(rows[0]))
	for i, h := range rows[0] {
		if name, ok := headerToField[strings.ToLower(strings.TrimSpace(h))]; ok {
			fieldAt[i] = name
		}
	}

	for rowIdx := 1; rowIdx < len(rows); rowIdx++ {
		row := rows[rowIdx]
		rec := resource.Record{}
		bad := map[string]string{}
		for colIdx, name := range fieldAt {
			if colIdx >= len(row) {
				continue
			}
			raw := strings.TrimSpace(row[colIdx])
			if raw == "" {
				continue
			}
			v, err := convert(desc, name, raw)
			if err != nil {
				bad[name] = err.Error()
				continue
			}
			rec[name] = v
		}
		if len(bad) > 0 {
			rowErrors = append(rowErrors, RowError{Row: rowIdx + 1, Message: "invalid values", Fields: bad})
			continue
		}
		if len(rec) > 0 {
			records = append(records, Row{Number: rowIdx + 1, Record: rec})
		}
	}
	return records, rowErrors, nil
}

// headerMapping 小写表头 -> 字段名。id 与关联显示列不可导入。
func headerMapping(desc *resource.Descriptor) map[string]string {
	out := map[string]string{}
	for _, f := range desc.Fields {
		out[strings.ToLower(f.Name)] = f.Name
		if f.Label != "" {
			out[strings.ToLower(f.Label)] = f.Name
		}
	}
	for _, c := range desc.Columns() {
		if _, ok := desc.Field(c.Field); ok && c.Label != "" {
			out[strings.ToLower(c.Label)] = c.Field
		}
	}
	delete(out, strings.ToLower(desc.IDKey()))
	return out
}

func convert(desc *resource.Descriptor, name, raw string) (any, error) {
	f, _ := desc.Field(name)
	switch f.Kind {
	case resource.KindNumber:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%s must be a number", desc.Label(name))
		}
		return n, nil
	case resource.KindBool:
		switch strings.ToLower(raw) {
		case "yes", "true", "1":
			return true, nil
		case "no", "false", "0":
			return false, nil
		}
		return nil, fmt.Errorf("%s must be Yes or No", desc.Label(name))
	}
	return raw, nil
}
