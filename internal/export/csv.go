// Package export writes pipeline results to disk as CSV tables and a
// one-page PDF summary.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/carteraops/cartera/internal/pipeline"
	"go.uber.org/zap"
)

// Writer renders a result into the output directory. File names come
// from the table names, one CSV per table plus the PDF summary.
type Writer struct {
	dir string
	log *zap.Logger
}

func NewWriter(dir string, log *zap.Logger) *Writer {
	return &Writer{dir: dir, log: log.Named("export.writer")}
}

// WriteAll writes every table as CSV and the summary PDF.
func (w *Writer) WriteAll(res *pipeline.Result) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	for _, table := range res.Tables() {
		if err := w.writeCSV(table); err != nil {
			return err
		}
	}

	if err := w.writePDF(res); err != nil {
		return err
	}

	w.log.Info("exports written", zap.String("dir", w.dir))
	return nil
}

func (w *Writer) writeCSV(table pipeline.Table) error {
	path := filepath.Join(w.dir, table.Name+".csv")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(table.Header); err != nil {
		return err
	}
	for _, row := range table.Rows {
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return f.Close()
}
