package export

import (
	"bytes"
	"encoding/csv"
	"html/template"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"github.com/pkg/errors"

	appfs "github.com/trezcool/classcue/fs"
)

var tableTmpl = template.Must(template.ParseFS(appfs.FS, "templates/export/table.gohtml"))

func (t table) html() ([]byte, error) {
	var buf bytes.Buffer
	if err := tableTmpl.Execute(&buf, t); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (t table) csv() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.UseCRLF = true

	if err := w.Write(t.Headers()); err != nil {
		return nil, err
	}
	for _, row := range t.Rows {
		rec := make([]string, len(row))
		for i, c := range row {
			if !c.Empty {
				rec[i] = c.Text
			}
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

const (
	pdfFont      = "Helvetica"
	pdfMargin    = 20.0
	pdfRowHeight = 7.0
)

var pdfStripeColor = [3]int{248, 250, 252}

func (t table) pdf() ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(true, pdfMargin)
	pdf.SetTitle(t.Title, true)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont(pdfFont, "B", 20)
	pdf.CellFormat(0, 10, tr(t.Title), "", 1, "L", false, 0, "")
	pdf.SetFont(pdfFont, "", 12)
	for _, l := range t.Lines {
		pdf.CellFormat(0, 7, tr(l), "", 1, "L", false, 0, "")
	}
	if len(t.Summary) > 0 {
		pdf.Ln(5)
		pdf.SetFont(pdfFont, "B", 14)
		pdf.CellFormat(0, 8, tr(t.SummaryTitle), "", 1, "L", false, 0, "")
		pdf.SetFont(pdfFont, "", 10)
		for _, l := range t.Summary {
			pdf.CellFormat(0, 7, tr(l), "", 1, "L", false, 0, "")
		}
	}
	pdf.Ln(5)

	pageW, _ := pdf.GetPageSize()
	tableW := pageW - 2*pdfMargin
	widths := make([]float64, len(t.Columns))
	for i, c := range t.Columns {
		widths[i] = c.Width * tableW
	}

	// header
	pdf.SetFont(pdfFont, "B", 8)
	pdf.SetDrawColor(209, 213, 219)
	setFill(pdf, t.HeaderColor)
	pdf.SetTextColor(255, 255, 255)
	for i, c := range t.Columns {
		pdf.CellFormat(widths[i], pdfRowHeight, tr(c.Header), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	for r, row := range t.Rows {
		for i, c := range row {
			fill := r%2 == 1
			pdf.SetFillColor(pdfStripeColor[0], pdfStripeColor[1], pdfStripeColor[2])
			pdf.SetTextColor(31, 41, 55)
			pdf.SetFont(pdfFont, "", 8)
			if c.Fill != "" {
				fill = true
				setFill(pdf, c.Fill)
				pdf.SetTextColor(255, 255, 255)
				pdf.SetFont(pdfFont, "B", 8)
			}
			txt := fitText(pdf, tr(c.Text), widths[i]-2)
			pdf.CellFormat(widths[i], pdfRowHeight, txt, "1", 0, pdfAlign(c.Align), fill, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, errors.Wrap(err, "writing pdf")
	}
	return buf.Bytes(), nil
}

func pdfAlign(align string) string {
	switch align {
	case "center":
		return "C"
	case "right":
		return "R"
	default:
		return "L"
	}
}

// fitText shortens `s` with an ellipsis until it fits in `w`.
func fitText(pdf *gofpdf.Fpdf, s string, w float64) string {
	if pdf.GetStringWidth(s) <= w {
		return s
	}
	for len(s) > 0 && pdf.GetStringWidth(s+"...") > w {
		s = s[:len(s)-1]
	}
	return s + "..."
}

func setFill(pdf *gofpdf.Fpdf, hex string) {
	r, g, b := hexRGB(hex)
	pdf.SetFillColor(r, g, b)
}

// hexRGB parses a "#rrggbb" colour, black when malformed.
func hexRGB(hex string) (r, g, b int) {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) != 6 {
		return 0, 0, 0
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, 0, 0
	}
	return int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff)
}
