package llm

import "github.com/joseph-ayodele/invoice-po-matcher/constants"

// BuildComparisonJSONSchema returns the JSON-Schema (draft 2020-12 subset) a model
// response must satisfy. Every block and member is required and text members
// must be strings; null is rejected. Extra keys are tolerated and dropped when
// decoding.
func BuildComparisonJSONSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"invoice_number": textProp(),
			"po_number":      textProp(),
			"vendor_match":   matchBlock("invoice_vendor", "po_vendor"),
			"currency_match": matchBlock("invoice_currency", "po_currency"),
			"total_amount_match": withRequired(
				matchBlock("invoice_total", "po_total"),
				"difference", map[string]any{
					"type": "object",
					"properties": map[string]any{
						"value":    textProp(),
						"currency": textProp(),
					},
					"required": []any{"value", "currency"},
				},
			),
			"items_match": matchBlock("details"),
			"overall_status": map[string]any{
				"type": "string",
				"enum": []any{string(constants.StatusApproved), string(constants.StatusNeedsReview)},
			},
			"summary": textProp(),
		},
		"required": []any{
			"invoice_number", "po_number",
			"vendor_match", "currency_match", "total_amount_match", "items_match",
			"overall_status", "summary",
		},
	}
}

// matchBlock is an object with a required boolean "match" plus the named text members.
func matchBlock(fields ...string) map[string]any {
	props := map[string]any{"match": map[string]any{"type": "boolean"}}
	required := []any{"match"}
	for _, f := range fields {
		props[f] = textProp()
		required = append(required, f)
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

func withRequired(block map[string]any, name string, prop map[string]any) map[string]any {
	block["properties"].(map[string]any)[name] = prop
	block["required"] = append(block["required"].([]any), name)
	return block
}

func textProp() map[string]any {
	return map[string]any{"type": "string"}
}
