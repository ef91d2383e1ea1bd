package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/fichas-scanner/constants"
	"github.com/joseph-ayodele/fichas-scanner/internal/repository"
)

// SheetName is the worksheet holding the scan history.
const SheetName = "Fichas"

// Service is a tiny façade over the scan repository that produces XLSX
// bytes for exports.
type Service struct {
	scans  repository.ScanRepository
	logger *slog.Logger
}

func NewService(scans repository.ScanRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{scans: scans, logger: logger}
}

// Headers returns the column titles of the export, in order.
func Headers() []string {
	h := []string{"Data/Hora", "Status", "Origem"}
	for _, k := range constants.FieldKeys {
		h = append(h, constants.FieldLabels[k])
	}
	return append(h, "Confiança", "Revisar", "Erro")
}

// ExportScansXLSX returns an XLSX workbook (as bytes) of the scans matching f.
// If only From is set the window ends now.
func (s *Service) ExportScansXLSX(ctx context.Context, f repository.ListFilter) ([]byte, error) {
	start := time.Now()
	if f.From != nil && f.To == nil {
		now := time.Now().UTC()
		f.To = &now
	}

	scans, err := s.scans.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("query scans: %w", err)
	}

	x := excelize.NewFile()
	defer func() { _ = x.Close() }()
	if index, _ := x.GetSheetIndex(SheetName); index == -1 {
		if _, err := x.NewSheet(SheetName); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := x.GetSheetIndex(SheetName)
	x.SetActiveSheet(activeIndex)
	_ = x.DeleteSheet("Sheet1")

	headers := Headers()
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = x.SetCellValue(SheetName, cell, h)
	}

	for i, sc := range scans {
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = x.SetCellValue(SheetName, cell, v)
		}

		write(1, sc.StartedAt.Format("2006-01-02 15:04:05"))
		write(2, string(sc.Status))
		write(3, sc.Source)
		for j, k := range constants.FieldKeys {
			write(4+j, sc.Fields[k])
		}
		col := 4 + len(constants.FieldKeys)
		if sc.Confidence != nil {
			write(col, fmt.Sprintf("%.2f", *sc.Confidence))
		}
		if sc.NeedsReview {
			write(col+1, "sim")
		} else {
			write(col+1, "não")
		}
		if sc.ErrorMessage != nil {
			write(col+2, truncate(*sc.ErrorMessage, 140))
		}
	}

	// Widen a few columns
	_ = x.SetColWidth(SheetName, "A", "A", 20) // timestamp
	_ = x.SetColWidth(SheetName, "B", "B", 10) // status
	_ = x.SetColWidth(SheetName, "C", "C", 28) // source
	_ = x.SetColWidth(SheetName, "D", "M", 22) // fields
	_ = x.SetColWidth(SheetName, "P", "P", 48) // error

	buf, err := x.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export xlsx ok",
		"rows", len(scans),
		"status", f.Status,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
