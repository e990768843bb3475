package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/invoice-ocr/internal/entity"
	"github.com/joseph-ayodele/invoice-ocr/internal/repository"
	"github.com/joseph-ayodele/invoice-ocr/internal/utils"
)

const (
	InvoicesSheet = "Invoices"
	SummarySheet  = "Summary"
)

var invoiceHeaders = []string{
	"Task ID",
	"Status",
	"Invoice Type",
	"Invoice Number",
	"Invoice Date",
	"Total Amount",
	"Confidence",
	"Error Code",
	"Error Message",
}

// Service produces XLSX workbooks for batch results.
type Service struct {
	batches repository.BatchRepository
	logger  *slog.Logger
}

// NewService accepts a nil repository when only in-memory results are exported.
func NewService(batches repository.BatchRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{batches: batches, logger: logger}
}

// ArchivedBatchXLSX loads an archived batch and renders it.
func (s *Service) ArchivedBatchXLSX(ctx context.Context, batchID string) ([]byte, error) {
	if s.batches == nil {
		return nil, fmt.Errorf("export: no batch repository configured")
	}
	res, err := s.batches.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	return s.BatchXLSX(res)
}

// BatchXLSX returns a workbook with one Invoices row per task (input order)
// and a Summary sheet of the batch statistics.
func (s *Service) BatchXLSX(res *entity.BatchResult) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", InvoicesSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return nil, err
	}
	activeIndex, _ := f.GetSheetIndex(InvoicesSheet)
	f.SetActiveSheet(activeIndex)

	for i, h := range invoiceHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(InvoicesSheet, cell, h)
	}

	rows := utils.InvoiceRows(res)
	for i, r := range rows {
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(InvoicesSheet, cell, v)
		}
		status := "ok"
		if !r.Success {
			status = "failed"
		}
		write(1, r.TaskID)
		write(2, status)
		write(3, deref(r.InvoiceType))
		write(4, deref(r.InvoiceNumber))
		write(5, deref(r.InvoiceDate))
		write(6, deref(r.TotalAmount))
		if r.Confidence != nil {
			write(7, *r.Confidence)
		}
		write(8, deref(r.ErrorCode))
		write(9, truncate(deref(r.ErrorMessage), 200))
	}

	_ = f.SetColWidth(InvoicesSheet, "A", "A", 18) // task id
	_ = f.SetColWidth(InvoicesSheet, "B", "B", 8)
	_ = f.SetColWidth(InvoicesSheet, "C", "C", 20)
	_ = f.SetColWidth(InvoicesSheet, "D", "F", 16)
	_ = f.SetColWidth(InvoicesSheet, "G", "H", 22)
	_ = f.SetColWidth(InvoicesSheet, "I", "I", 60) // message

	st := res.Statistics
	summary := [][2]any{
		{"Batch ID", res.BatchID},
		{"Created At", res.CreatedAt.UTC().Format(time.RFC3339)},
		{"Total", st.Total},
		{"Successful", st.Successful},
		{"Failed", st.Failed},
		{"Success Rate", st.SuccessRate},
		{"Total Time (s)", st.TotalTime},
		{"Avg Processing Time (s)", st.AvgProcessingTime},
		{"Max Processing Time (s)", st.MaxProcessingTime},
		{"Min Processing Time (s)", st.MinProcessingTime},
		{"Throughput (img/s)", st.Throughput},
	}
	for i, kv := range summary {
		_ = f.SetCellValue(SummarySheet, fmt.Sprintf("A%d", i+1), kv[0])
		_ = f.SetCellValue(SummarySheet, fmt.Sprintf("B%d", i+1), kv[1])
	}
	_ = f.SetColWidth(SummarySheet, "A", "A", 26)
	_ = f.SetColWidth(SummarySheet, "B", "B", 40)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"batch_id", res.BatchID,
		"rows", len(rows),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
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
