package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/invoice-po-matcher/internal/common"
)

const analyzeFailureMessage = "Failed to analyze documents with AI."

// Comparator turns two document texts into a ComparisonResult via a completion service.
type Comparator struct {
	svc         TextCompletionService
	schema      *jsonschema.Schema
	temperature float32
	logger      *slog.Logger
}

// NewComparator compiles the response schema once; it fails only on a broken schema.
func NewComparator(svc TextCompletionService, temperature float32, logger *slog.Logger) (*Comparator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	schema, err := CompileSchema(BuildComparisonJSONSchema())
	if err != nil {
		return nil, err
	}
	return &Comparator{svc: svc, schema: schema, temperature: temperature, logger: logger}, nil
}

// Compare asks the model for a verdict. It makes a single attempt.
func (c *Comparator) Compare(ctx context.Context, invoiceText, poText string) (*ComparisonResult, error) {
	log := common.LoggerFromContext(ctx, c.logger)
	start := time.Now()
	log.Info("llm.compare.start",
		"temp", c.temperature,
		"invoice_len", len(invoiceText),
		"po_len", len(poText),
	)

	content, err := c.svc.Complete(ctx, CompletionRequest{
		Messages: []Message{
			{Role: "system", Content: SystemPrompt},
			{Role: "user", Content: BuildComparisonPrompt(invoiceText, poText)},
		},
		Temperature: c.temperature,
		JSONMode:    true,
	})
	if err != nil {
		log.Error("llm.compare.invocation_failed", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, common.NewAppError(common.CodeModelInvocation, analyzeFailureMessage,
			fmt.Errorf("%w: %w", common.ErrModelInvocation, err))
	}

	raw := TrimToJSONObject(content)
	if err := ValidateJSON(c.schema, raw); err != nil {
		log.Error("llm.compare.schema_validation_failed",
			"error", err, "content", truncate(content, 2000),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, common.NewAppError(common.CodeMalformedResponse, analyzeFailureMessage,
			fmt.Errorf("%w: %w", common.ErrMalformedModelResponse, err))
	}

	var out ComparisonResult
	if err := json.Unmarshal(raw, &out); err != nil {
		log.Error("llm.compare.unmarshal_failed", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, common.NewAppError(common.CodeMalformedResponse, analyzeFailureMessage,
			fmt.Errorf("%w: %w", common.ErrMalformedModelResponse, err))
	}

	log.Info("llm.compare.ok",
		"invoice_number", out.InvoiceNumber,
		"po_number", out.PONumber,
		"overall_status", out.OverallStatus,
		"currency_match", out.CurrencyMatch.Match,
		"total_match", out.TotalAmountMatch.Match,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return &out, nil
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n] + "...(truncated)"
}
