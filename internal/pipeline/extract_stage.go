package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/invoice-po-matcher/internal/common"
	"github.com/joseph-ayodele/invoice-po-matcher/internal/ocr"
)

const emptyExtractionMessage = "Could not extract text from one or both documents. " +
	"The files might be empty, scanned images of poor quality, or corrupted."

type ExtractStage struct {
	Extractor TextExtractor
	Logger    *slog.Logger
}

func NewExtractStage(tx TextExtractor, logger *slog.Logger) *ExtractStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExtractStage{Extractor: tx, Logger: logger}
}

// CheckTypes rejects an unsupported file before any extraction starts.
func (s *ExtractStage) CheckTypes(req CompareRequest) error {
	for _, name := range []string{req.InvoiceName, req.POName} {
		if !ocr.Supported(name) {
			return ocr.UnsupportedTypeError(name)
		}
	}
	return nil
}

// Run extracts both documents concurrently and waits for both. When both
// fail the invoice error is returned. Blank text from either side is an
// empty-extraction error.
func (s *ExtractStage) Run(ctx context.Context, req CompareRequest) (invoice, po ocr.ExtractionResult, err error) {
	log := common.LoggerFromContext(ctx, s.Logger)

	var invErr, poErr error
	var g errgroup.Group
	g.Go(func() error {
		invoice, invErr = s.Extractor.Extract(ctx, req.InvoicePath, req.InvoiceName)
		return nil
	})
	g.Go(func() error {
		po, poErr = s.Extractor.Extract(ctx, req.POPath, req.POName)
		return nil
	})
	_ = g.Wait()

	if err = errors.Join(invErr, poErr); err != nil {
		log.Error("pipeline.extract.failed", "invoice", req.InvoiceName, "po", req.POName, "error", err)
		if invErr != nil {
			return invoice, po, invErr
		}
		return invoice, po, poErr
	}

	if strings.TrimSpace(invoice.Text) == "" || strings.TrimSpace(po.Text) == "" {
		log.Warn("pipeline.extract.empty",
			"invoice", req.InvoiceName, "invoice_len", len(invoice.Text),
			"po", req.POName, "po_len", len(po.Text),
		)
		return invoice, po, common.NewAppError(common.CodeEmptyExtraction, emptyExtractionMessage, common.ErrEmptyExtraction)
	}

	log.Info("pipeline.extract.ok",
		"invoice_method", invoice.Method, "invoice_pages", invoice.Pages,
		"po_method", po.Method, "po_pages", po.Pages,
	)
	return invoice, po, nil
}
