package pipeline

import (
	"context"

	"github.com/joseph-ayodele/invoice-po-matcher/internal/llm"
	"github.com/joseph-ayodele/invoice-po-matcher/internal/ocr"
	"github.com/joseph-ayodele/invoice-po-matcher/internal/repository"
)

// TextExtractor is stage 1: file -> text.
type TextExtractor interface {
	Extract(ctx context.Context, path, filename string) (ocr.ExtractionResult, error)
}

// DocumentComparator is stage 2: two texts -> verdict.
type DocumentComparator interface {
	Compare(ctx context.Context, invoiceText, poText string) (*llm.ComparisonResult, error)
}

// Reconciler is stage 3: amends a verdict whose currencies differ.
type Reconciler interface {
	Apply(ctx context.Context, res *llm.ComparisonResult) bool
}

// HistoryWriter is the part of the history store the processor uses.
type HistoryWriter interface {
	Append(ctx context.Context, invoiceFile, poFile string, result *llm.ComparisonResult) (*repository.HistoryRecord, error)
}

// CompareRequest names the two documents of one comparison.
type CompareRequest struct {
	InvoicePath string
	InvoiceName string // original filename; its extension selects the extraction path
	POPath      string
	POName      string

	// Names written to history. Empty falls back to InvoiceName / POName.
	InvoiceRecordName string
	PORecordName      string
}

func (r CompareRequest) recordNames() (string, string) {
	inv, po := r.InvoiceRecordName, r.PORecordName
	if inv == "" {
		inv = r.InvoiceName
	}
	if po == "" {
		po = r.POName
	}
	return inv, po
}
