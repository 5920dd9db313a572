package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/invoice-po-matcher/internal/common"
	"github.com/joseph-ayodele/invoice-po-matcher/internal/repository"
)

const sheet = "History"

// HistoryLister is the read side of the history store.
type HistoryLister interface {
	List(ctx context.Context) ([]*repository.HistoryRecord, error)
}

// Service produces XLSX workbooks from comparison history.
type Service struct {
	history HistoryLister
	logger  *slog.Logger
}

func NewService(history HistoryLister, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{history: history, logger: logger}
}

var headers = []string{
	"ID",
	"Timestamp",
	"Invoice File",
	"PO File",
	"Invoice Number",
	"PO Number",
	"Overall Status",
	"Vendor Match",
	"Currency Match",
	"Total Match",
	"Items Match",
	"Invoice Total",
	"PO Total",
	"Converted PO Total",
	"Match After Conversion",
	"Summary",
}

// ExportHistoryXLSX returns a workbook with one row per history record, newest first.
func (s *Service) ExportHistoryXLSX(ctx context.Context) ([]byte, error) {
	start := time.Now()
	log := common.LoggerFromContext(ctx, s.logger)

	recs, err := s.history.List(ctx)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			log.Warn("export.xlsx.close_error", "error", err)
		}
	}()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, r := range recs {
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		res := r.Result
		write(1, r.ID)
		write(2, r.Timestamp)
		write(3, r.InvoiceFile)
		write(4, r.POFile)
		write(5, res.InvoiceNumber)
		write(6, res.PONumber)
		write(7, res.OverallStatus)
		write(8, res.VendorMatch.Match)
		write(9, res.CurrencyMatch.Match)
		write(10, res.TotalAmountMatch.Match)
		write(11, res.ItemsMatch.Match)
		write(12, res.TotalAmountMatch.InvoiceTotal)
		write(13, res.TotalAmountMatch.POTotal)
		if cc := res.CurrencyConversion; cc != nil {
			if cc.Message != "" {
				write(14, cc.Message)
			} else {
				write(14, cc.ConvertedPOTotal)
			}
			if cc.MatchAfterConversion != nil {
				write(15, *cc.MatchAfterConversion)
			}
		}
		write(16, truncate(res.Summary, 280))
	}

	_ = f.SetColWidth(sheet, "B", "B", 28) // timestamp
	_ = f.SetColWidth(sheet, "C", "D", 40) // files
	_ = f.SetColWidth(sheet, "E", "F", 16)
	_ = f.SetColWidth(sheet, "L", "N", 20) // totals
	_ = f.SetColWidth(sheet, "P", "P", 60) // summary
	_ = f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	log.Info("export.xlsx.ok",
		"rows", len(recs),
		"bytes", buf.Len(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
