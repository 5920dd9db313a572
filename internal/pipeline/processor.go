package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/invoice-po-matcher/internal/common"
	"github.com/joseph-ayodele/invoice-po-matcher/internal/llm"
)

// Processor runs one comparison: extract both texts, ask the model for a
// verdict, reconcile currencies, record history.
type Processor struct {
	Logger     *slog.Logger
	Extract    *ExtractStage
	Comparator DocumentComparator
	Reconciler Reconciler    // optional
	History    HistoryWriter // optional
}

func NewProcessor(logger *slog.Logger, tx TextExtractor, cmp DocumentComparator, rec Reconciler, history HistoryWriter) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		Logger:     logger,
		Extract:    NewExtractStage(tx, logger),
		Comparator: cmp,
		Reconciler: rec,
		History:    history,
	}
}

// Compare returns the verdict for one invoice/PO pair. A failed history
// write is logged and the verdict is still returned.
func (p *Processor) Compare(ctx context.Context, req CompareRequest) (*llm.ComparisonResult, error) {
	log := common.LoggerFromContext(ctx, p.Logger)
	start := time.Now()

	if err := p.Extract.CheckTypes(req); err != nil {
		log.Warn("processor.unsupported_type", "invoice", req.InvoiceName, "po", req.POName, "error", err)
		return nil, err
	}

	invoice, po, err := p.Extract.Run(ctx, req)
	if err != nil {
		return nil, err
	}

	result, err := p.Comparator.Compare(ctx, invoice.Text, po.Text)
	if err != nil {
		log.Error("processor.compare.failed", "error", err)
		return nil, err
	}

	converted := false
	if p.Reconciler != nil {
		converted = p.Reconciler.Apply(ctx, result)
	}

	if p.History != nil {
		invName, poName := req.recordNames()
		if _, err := p.History.Append(ctx, invName, poName, result); err != nil {
			log.Error("processor.history.write_failed", "code", common.CodeStorageWrite, "error", err)
		}
	}

	log.Info("processor.compare.ok",
		"overall_status", result.OverallStatus,
		"approved", result.Approved(),
		"currency_converted", converted,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}
