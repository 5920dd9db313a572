package reconcile

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/invoice-po-matcher/constants"
	"github.com/joseph-ayodele/invoice-po-matcher/internal/llm"
)

type fixedRates struct {
	result decimal.Decimal
	err    error
	calls  int
	from   string
	to     string
	amount decimal.Decimal
}

func (f *fixedRates) Convert(_ context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	f.calls++
	f.amount, f.from, f.to = amount, from, to
	return f.result, f.err
}

func newReconciler(rates RateLookupService) *Reconciler {
	return NewReconciler(rates, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func mismatched(invTotal, poTotal string) *llm.ComparisonResult {
	return &llm.ComparisonResult{
		CurrencyMatch: llm.CurrencyMatch{Match: false, InvoiceCurrency: "USD", POCurrency: "INR"},
		TotalAmountMatch: llm.TotalAmountMatch{
			Match:        false,
			InvoiceTotal: invTotal,
			POTotal:      poTotal,
		},
		OverallStatus: string(constants.StatusNeedsReview),
	}
}

func TestApply_SkipsWhenCurrenciesMatch(t *testing.T) {
	rates := &fixedRates{result: decimal.NewFromInt(1)}
	res := mismatched("100", "100")
	res.CurrencyMatch.Match = true
	if newReconciler(rates).Apply(context.Background(), res) {
		t.Error("Apply reported work for matching currencies")
	}
	if rates.calls != 0 || res.CurrencyConversion != nil {
		t.Errorf("reconciliation ran: calls=%d block=%+v", rates.calls, res.CurrencyConversion)
	}
}

func TestApply_USDINRScenario(t *testing.T) {
	rates := &fixedRates{result: decimal.RequireFromString("100.00")}
	res := mismatched("$100.00", "₹9,200")
	newReconciler(rates).Apply(context.Background(), res)

	if rates.from != "INR" || rates.to != "USD" || !rates.amount.Equal(decimal.NewFromInt(9200)) {
		t.Errorf("Convert called with %s %s->%s", rates.amount, rates.from, rates.to)
	}
	cc := res.CurrencyConversion
	if cc == nil || cc.Message != "" {
		t.Fatalf("conversion block = %+v", cc)
	}
	if cc.OriginalPOTotal != "9200.00 INR" || cc.ConvertedPOTotal != "100.00 USD" {
		t.Errorf("totals = %q / %q", cc.OriginalPOTotal, cc.ConvertedPOTotal)
	}
	if cc.DifferenceAfterConversion == nil || cc.DifferenceAfterConversion.Value != "0.00" || cc.DifferenceAfterConversion.Currency != "USD" {
		t.Errorf("difference = %+v", cc.DifferenceAfterConversion)
	}
	if cc.MatchAfterConversion == nil || !*cc.MatchAfterConversion {
		t.Errorf("match_after_conversion = %v", cc.MatchAfterConversion)
	}
	if res.TotalAmountMatch.Match {
		t.Error("total_amount_match.match must not be revised")
	}
}

func TestApply_Tolerance(t *testing.T) {
	tests := []struct {
		invoice string
		want    bool
	}{
		{"100.009", true},
		{"99.991", true},
		{"100.01", false},
		{"99.99", false},
		{"100.5", false},
	}
	for _, tt := range tests {
		t.Run(tt.invoice, func(t *testing.T) {
			res := mismatched(tt.invoice, "9200")
			newReconciler(&fixedRates{result: decimal.RequireFromString("100.00")}).Apply(context.Background(), res)
			got := res.CurrencyConversion.MatchAfterConversion
			if got == nil || *got != tt.want {
				t.Errorf("match_after_conversion = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestApply_Unparsable(t *testing.T) {
	cases := map[string]*llm.ComparisonResult{
		"bad invoice total": mismatched("N/A", "9200"),
		"bad po total":      mismatched("100", "see attached"),
		"missing currency": func() *llm.ComparisonResult {
			r := mismatched("100", "9200")
			r.CurrencyMatch.POCurrency = " "
			return r
		}(),
	}
	for name, res := range cases {
		t.Run(name, func(t *testing.T) {
			rates := &fixedRates{}
			newReconciler(rates).Apply(context.Background(), res)
			if rates.calls != 0 {
				t.Error("Convert called for unparsable input")
			}
			if res.CurrencyConversion == nil || res.CurrencyConversion.Message != constants.UnparsableConversionMessage {
				t.Errorf("block = %+v", res.CurrencyConversion)
			}
		})
	}
}

func TestApply_ConversionErrorIsEmbedded(t *testing.T) {
	res := mismatched("100", "9200")
	rates := &fixedRates{err: errors.New("Error: XYZ is not a supported currency.")}
	if !newReconciler(rates).Apply(context.Background(), res) {
		t.Fatal("Apply returned false")
	}
	cc := res.CurrencyConversion
	if cc == nil || cc.Message != "Error: XYZ is not a supported currency." {
		t.Fatalf("block = %+v", cc)
	}
	if cc.MatchAfterConversion != nil || cc.DifferenceAfterConversion != nil {
		t.Errorf("failure block carries success fields: %+v", cc)
	}
}
