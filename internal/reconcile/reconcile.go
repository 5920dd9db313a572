// Package reconcile re-checks totals the model could not compare because the
// two documents are in different currencies.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/invoice-po-matcher/constants"
	"github.com/joseph-ayodele/invoice-po-matcher/internal/common"
	"github.com/joseph-ayodele/invoice-po-matcher/internal/llm"
)

// RateLookupService converts an amount between two ISO 4217 codes. The error
// text is shown to users as-is.
type RateLookupService interface {
	Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error)
}

var tolerance = decimal.RequireFromString(constants.ReconcileTolerance)

// Reconciler attaches a currency_conversion block to mismatched-currency results.
type Reconciler struct {
	rates  RateLookupService
	logger *slog.Logger
}

func NewReconciler(rates RateLookupService, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{rates: rates, logger: logger}
}

// Apply amends res in place. It does nothing when the currencies already match
// and never revises total_amount_match.match. Conversion problems are recorded
// in the result, so Apply has no error return.
func (r *Reconciler) Apply(ctx context.Context, res *llm.ComparisonResult) bool {
	if res == nil || res.CurrencyMatch.Match {
		return false
	}
	log := common.LoggerFromContext(ctx, r.logger)

	invCur := strings.ToUpper(strings.TrimSpace(res.CurrencyMatch.InvoiceCurrency))
	poCur := strings.ToUpper(strings.TrimSpace(res.CurrencyMatch.POCurrency))
	invAmt, invOK := ParseAmount(res.TotalAmountMatch.InvoiceTotal)
	poAmt, poOK := ParseAmount(res.TotalAmountMatch.POTotal)

	if !invOK || !poOK || invCur == "" || poCur == "" {
		log.Warn("reconcile.unparsable",
			"invoice_total", res.TotalAmountMatch.InvoiceTotal,
			"po_total", res.TotalAmountMatch.POTotal,
			"invoice_currency", invCur,
			"po_currency", poCur,
		)
		res.CurrencyConversion = &llm.CurrencyConversion{Message: constants.UnparsableConversionMessage}
		return true
	}

	converted, err := r.rates.Convert(ctx, poAmt, poCur, invCur)
	if err != nil {
		log.Warn("reconcile.conversion_failed", "from", poCur, "to", invCur, "error", err)
		res.CurrencyConversion = &llm.CurrencyConversion{Message: err.Error()}
		return true
	}

	diff := invAmt.Sub(converted).Abs()
	match := diff.LessThan(tolerance)
	res.CurrencyConversion = &llm.CurrencyConversion{
		FromCurrency:     poCur,
		ToCurrency:       invCur,
		OriginalPOTotal:  formatAmount(poAmt, poCur),
		ConvertedPOTotal: formatAmount(converted, invCur),
		DifferenceAfterConversion: &llm.Difference{
			Value:    diff.StringFixed(2),
			Currency: invCur,
		},
		MatchAfterConversion: &match,
	}
	log.Info("reconcile.ok",
		"from", poCur, "to", invCur,
		"converted", converted.StringFixed(2),
		"difference", diff.String(),
		"match_after_conversion", match,
	)
	return true
}

func formatAmount(d decimal.Decimal, code string) string {
	return fmt.Sprintf("%s %s", d.StringFixed(2), code)
}
