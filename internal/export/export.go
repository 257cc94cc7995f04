// Package export 把过滤后的记录导出为 xlsx / pdf，并支持 xlsx 导入
package export

import (
	"errors"
	"fmt"
	"time"

	"trust-console/internal/resource"
)

// ErrNothingToExport 没有可导出的记录（调用方作为提示处理）
var ErrNothingToExport = errors.New("nothing to export")

const (
	FormatXLSX = "xlsx"
	FormatPDF  = "pdf"

	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypePDF  = "application/pdf"
)

// Artifact 生成的文件
type Artifact struct {
	Filename    string
	ContentType string
	Format      string
	Data        []byte
	Rows        int
	Pages       int
}

// Exporter 导出器，时钟可注入
type Exporter struct {
	now func() time.Time
}

// New 使用系统时钟
func New() *Exporter {
	return &Exporter{now: time.Now}
}

// NewWithClock 测试用固定时钟
func NewWithClock(now func() time.Time) *Exporter {
	return &Exporter{now: now}
}

// Now 导出器当前时间
func (e *Exporter) Now() time.Time { return e.now() }

// Filename <resource>_<YYYYMMDD_HHMMSS>.<ext>
func Filename(resourceName string, at time.Time, ext string) string {
	return fmt.Sprintf("%s_%s.%s", resourceName, at.Format("20060102_150405"), ext)
}

// columnsFor 导出列；描述未声明时用 id + 全部字段
func columnsFor(desc *resource.Descriptor) []resource.Column {
	if cols := desc.Columns(); len(cols) > 0 {
		return cols
	}
	cols := make([]resource.Column, 0, len(desc.Fields)+1)
	cols = append(cols, resource.Column{Field: desc.IDKey(), Label: "ID"})
	for _, f := range desc.Fields {
		col := resource.Column{Field: f.Name, Label: f.Label}
		if col.Label == "" {
			col.Label = f.Name
		}
		if !resource.IsActionColumn(col) {
			cols = append(cols, col)
		}
	}
	return cols
}

func title(desc *resource.Descriptor) string {
	if desc.Title != "" {
		return desc.Title
	}
	return desc.Name
}
