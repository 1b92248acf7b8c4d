package export

import (
	"fmt"
	"path/filepath"

	"github.com/carteraops/cartera/internal/pipeline"
	"github.com/jung-kurt/gofpdf/v2"
)

const pdfName = "resumen_cartera.pdf"

// writePDF renders the one-page executive summary: headline KPIs, the
// current-versus-overdue split and the audit counters.
func (w *Writer) writePDF(res *pipeline.Result) error {
	pdf := gofpdf.New("P", "mm", "Letter", "")
	pdf.SetAutoPageBreak(true, 20)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Arial", "", 8)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 5, fmt.Sprintf("Pagina %d", pdf.PageNo()), "", 0, "L", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, "Resumen de Cartera", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	pdf.SetTextColor(100, 100, 100)
	pdf.CellFormat(0, 5, fmt.Sprintf("Generado: %s", res.RunAt.Format("2006-01-02 15:04")), "", 1, "C", false, 0, "")
	pdf.Ln(5)

	w.pdfSection(pdf, "Indicadores")
	for _, rec := range res.KPIs {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(90, 7, rec.KPI, "1", 0, "L", true, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(30, 7, fmt.Sprintf("%.1f %s", rec.Value, rec.Unit), "1", 1, "R", false, 0, "")
	}
	pdf.Ln(5)

	w.pdfSection(pdf, "Vigente vs Vencido")
	w.pdfTable(pdf, res.Tables(), pipeline.TableCurrentOverdue)
	pdf.Ln(5)

	w.pdfSection(pdf, "Auditoria")
	s := res.Audit.Summary
	rows := [][2]string{
		{"Registros procesados", fmt.Sprintf("%d", s.TotalRows)},
		{"Importes atipicos", fmt.Sprintf("%d", s.AtypicalAmounts)},
		{"Recaudos atipicos", fmt.Sprintf("%d", s.AtypicalCollection)},
		{"Moras atipicas", fmt.Sprintf("%d", s.AtypicalOverdue)},
		{"Sin tipo de cliente", fmt.Sprintf("%d", s.MissingClientType)},
		{"Sin vendedor", fmt.Sprintf("%d", s.MissingSalesperson)},
		{"Documentos cancelados", fmt.Sprintf("%d", s.Cancelled)},
		{"Total de hallazgos", fmt.Sprintf("%d", s.TotalFindings)},
	}
	for _, row := range rows {
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(90, 6, row[0], "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, row[1], "1", 1, "R", false, 0, "")
	}
	if s.DegradedLinkage {
		pdf.Ln(3)
		pdf.SetFont("Arial", "B", 10)
		pdf.SetTextColor(180, 0, 0)
		pdf.CellFormat(0, 6, "ADVERTENCIA: saldos calculados sin columna de vinculo cargo-abono", "", 1, "L", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
	}

	path := filepath.Join(w.dir, pdfName)
	return pdf.OutputFileAndClose(path)
}

func (w *Writer) pdfSection(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Arial", "B", 12)
	pdf.SetTextColor(0, 0, 0)
	pdf.SetFillColor(240, 240, 240)
	pdf.CellFormat(0, 8, title, "", 1, "L", false, 0, "")
	pdf.Ln(1)
}

func (w *Writer) pdfTable(pdf *gofpdf.Fpdf, tables []pipeline.Table, name string) {
	for _, table := range tables {
		if table.Name != name {
			continue
		}
		width := 180.0 / float64(len(table.Header))
		pdf.SetFont("Arial", "B", 8)
		for _, h := range table.Header {
			pdf.CellFormat(width, 6, h, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 8)
		for _, row := range table.Rows {
			for _, cell := range row {
				pdf.CellFormat(width, 6, cell, "1", 0, "R", false, 0, "")
			}
			pdf.Ln(-1)
		}
		return
	}
}
