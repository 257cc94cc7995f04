package export

import (
	"bytes"
	"fmt"

	"trust-console/internal/resource"

	"github.com/go-pdf/fpdf"
)

const (
	pdfMargin     = 10.0
	pdfRowHeight  = 7.0
	pdfFontSize   = 9.0
	pdfTitleSize  = 14.0
	pdfBreakSpace = 12.0
)

// Document 生成 A4 横向 PDF。每页带标题和生成日期，表头在每页重复，自动分页。
func (e *Exporter) Document(desc *resource.Descriptor, records []resource.Record) (*Artifact, error) {
	if len(records) == 0 {
		return nil, ErrNothingToExport
	}
	cols := columnsFor(desc)
	generated := e.now()

	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(true, pdfBreakSpace)
	pdf.SetTitle(title(desc), true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageWidth, _ := pdf.GetPageSize()
	widths := columnWidths(cols, pageWidth-2*pdfMargin)

	pdf.SetHeaderFunc(func() {
		pdf.SetFont("Helvetica", "B", pdfTitleSize)
		pdf.CellFormat(0, 8, tr(title(desc)), "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", pdfFontSize)
		pdf.CellFormat(0, 8, "Generated "+generated.Format("2006-01-02 15:04"), "", 1, "R", false, 0, "")
		pdf.Ln(2)

		pdf.SetFont("Helvetica", "B", pdfFontSize)
		pdf.SetFillColor(252, 233, 212)
		for i, col := range cols {
			pdf.CellFormat(widths[i], pdfRowHeight, fit(pdf, tr(col.Label), widths[i]), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", pdfFontSize)
	})
	pdf.SetFooterFunc(func() {
		pdf.SetY(-pdfMargin)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 5, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()
	for _, rec := range records {
		for i, col := range cols {
			text := tr(resource.FormatValue(rec[col.Field]))
			pdf.CellFormat(widths[i], pdfRowHeight, fit(pdf, text, widths[i]), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("failed to render pdf: %w", err)
	}
	pages := pdf.PageNo()

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to write pdf: %w", err)
	}

	return &Artifact{
		Filename:    Filename(desc.Name, generated, FormatPDF),
		ContentType: ContentTypePDF,
		Format:      FormatPDF,
		Data:        buf.Bytes(),
		Rows:        len(records),
		Pages:       pages,
	}, nil
}

// columnWidths 按列宽比例分配可用宽度
func columnWidths(cols []resource.Column, total float64) []float64 {
	weights := make([]float64, len(cols))
	sum := 0.0
	for i, c := range cols {
		w := c.Width
		if w <= 0 {
			w = defaultColumnWidth
		}
		weights[i] = w
		sum += w
	}
	out := make([]float64, len(cols))
	for i, w := range weights {
		out[i] = total * w / sum
	}
	return out
}

// fit 截断超出单元格宽度的文本。text 已转换为单字节编码，按字节截断。
func fit(pdf *fpdf.Fpdf, text string, width float64) string {
	limit := width - 2*pdf.GetCellMargin()
	if pdf.GetStringWidth(text) <= limit {
		return text
	}
	b := []byte(text)
	for len(b) > 0 && pdf.GetStringWidth(string(b)+"...") > limit {
		b = b[:len(b)-1]
	}
	return string(b) + "..."
}
