package llm

import "strings"

// SystemPrompt is sent ahead of every comparison request.
const SystemPrompt = "You are a helpful assistant that provides responses in valid JSON format."

const comparisonInstructions = `**Instructions:**
1.  **Extract Key Information:** From both texts, identify and extract the following fields:
    * Invoice Number (from the invoice)
    * PO Number (from the purchase order)
    * Vendor Name
    * Currency (e.g., USD, INR; from both the invoice and the PO)
    * Total Amount (keep the currency symbol if one is printed)
    * The line items with their prices (with the currency of each item if stated).

2.  **Compare the Information:**
    * Does the Vendor Name match?
    * Do the Currencies of the two documents match?
    * Does the Total Amount match? Amounts in different currencies NEVER match, whatever their numeric value.
    * Do the line items (names, prices and currencies where given) match between the two documents?

3.  **Provide a JSON Output:** Your response MUST be a single valid JSON object with no text before or after it.
    Use exactly this structure:
    {
        "invoice_number": "...",
        "po_number": "...",
        "vendor_match": {
            "match": boolean,
            "invoice_vendor": "...",
            "po_vendor": "..."
        },
        "currency_match": {
            "match": boolean,
            "invoice_currency": "...",
            "po_currency": "..."
        },
        "total_amount_match": {
            "match": boolean,
            "invoice_total": "...",
            "po_total": "...",
            "difference": {
                "value": "Same currency: '0.00' when the totals match, otherwise the absolute difference (e.g. '5.50'). Different currencies: 'Cannot calculate due to currency mismatch'",
                "currency": "The currency of the difference, or an empty string when there is none"
            }
        },
        "items_match": {
            "match": boolean,
            "details": "One short explanation of the line item comparison (e.g. 'All items and prices match.', 'Price of item X differs.')"
        },
        "overall_status": "APPROVED" | "NEEDS REVIEW",
        "summary": "One concise sentence summarising the findings."
    }

Analyze the texts above and produce the JSON output.`

// BuildComparisonPrompt embeds both document texts verbatim ahead of the fixed instruction block.
func BuildComparisonPrompt(invoiceText, poText string) string {
	var b strings.Builder
	b.WriteString("You are an expert financial analyst AI. Perform a 3-way match between an invoice and a purchase order.\n")
	b.WriteString("Extract the key information from both documents, compare them and report a clear result.\n\n")
	b.WriteString("**Invoice Text:**\n---\n")
	b.WriteString(invoiceText)
	b.WriteString("\n---\n\n")
	b.WriteString("**Purchase Order Text:**\n---\n")
	b.WriteString(poText)
	b.WriteString("\n---\n\n")
	b.WriteString(comparisonInstructions)
	return b.String()
}
