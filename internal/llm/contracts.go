package llm

import (
	"context"

	"github.com/joseph-ayodele/invoice-po-matcher/constants"
)

// ComparisonResult is the three-way match verdict. The JSON keys are the wire
// contract with the model and with stored history.
type ComparisonResult struct {
	InvoiceNumber      string              `json:"invoice_number"`
	PONumber           string              `json:"po_number"`
	VendorMatch        VendorMatch         `json:"vendor_match"`
	CurrencyMatch      CurrencyMatch       `json:"currency_match"`
	TotalAmountMatch   TotalAmountMatch    `json:"total_amount_match"`
	ItemsMatch         ItemsMatch          `json:"items_match"`
	OverallStatus      string              `json:"overall_status"`
	Summary            string              `json:"summary"`
	CurrencyConversion *CurrencyConversion `json:"currency_conversion,omitempty"`
}

type VendorMatch struct {
	Match         bool   `json:"match"`
	InvoiceVendor string `json:"invoice_vendor"`
	POVendor      string `json:"po_vendor"`
}

type CurrencyMatch struct {
	Match           bool   `json:"match"`
	InvoiceCurrency string `json:"invoice_currency"`
	POCurrency      string `json:"po_currency"`
}

type TotalAmountMatch struct {
	Match        bool        `json:"match"`
	InvoiceTotal string      `json:"invoice_total"`
	POTotal      string      `json:"po_total"`
	Difference   *Difference `json:"difference,omitempty"`
}

// Difference is a formatted amount with its currency code.
type Difference struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type ItemsMatch struct {
	Match   bool   `json:"match"`
	Details string `json:"details"`
}

// CurrencyConversion is attached after reconciliation. Either Message is set
// (conversion could not be done) or every other field is.
type CurrencyConversion struct {
	Message string `json:"message,omitempty"`

	FromCurrency              string      `json:"from_currency,omitempty"`
	ToCurrency                string      `json:"to_currency,omitempty"`
	OriginalPOTotal           string      `json:"original_po_total,omitempty"`
	ConvertedPOTotal          string      `json:"converted_po_total,omitempty"`
	DifferenceAfterConversion *Difference `json:"difference_after_conversion,omitempty"`
	MatchAfterConversion      *bool       `json:"match_after_conversion,omitempty"`
}

// Approved reports whether the model approved the match.
func (r *ComparisonResult) Approved() bool {
	return r.OverallStatus == string(constants.StatusApproved)
}

// Message is one chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is a single chat completion call.
type CompletionRequest struct {
	Messages    []Message
	Temperature float32
	JSONMode    bool
}

// TextCompletionService is the model capability the comparator depends on.
type TextCompletionService interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}
