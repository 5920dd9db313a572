package ocr

import (
	"regexp"
	"strings"
)

// docSignals are cues that OCR output is a readable invoice or PO, with their weight.
var docSignals = []struct {
	re     *regexp.Regexp
	weight float32
}{
	{regexp.MustCompile(`\b(invoice|inv|purchase order|p\.?o\.?)\s*(no\.?|number|#)`), 0.2},
	{regexp.MustCompile(`\b(usd|eur|gbp|cad|aud|inr|jpy|chf|cny)\b|[$£€₹¥]`), 0.15},
	{regexp.MustCompile(`\b\d{1,3}(,\d{3})*\.\d{2}\b|\b\d+\.\d{2}\b`), 0.15},
	{regexp.MustCompile(`\b(grand\s+)?total\b`), 0.1},
}

// heuristicConfidence scores text in 0.2..0.9 by how many document cues it carries.
func heuristicConfidence(txt string) float32 {
	lower := strings.ToLower(txt)
	score := float32(0.2)
	for _, sig := range docSignals {
		if sig.re.MatchString(lower) {
			score += sig.weight
		}
	}
	if len(txt) > 120 {
		score += 0.1
	}
	return min(score, 1)
}
