package llm

import (
	"bytes"
	"strings"
)

// TrimToJSONObject strips Markdown code fences and any prose around the
// outermost JSON object. Field values are never touched.
func TrimToJSONObject(content string) []byte {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```JSON")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	b := []byte(strings.TrimSpace(s))
	start := bytes.IndexByte(b, '{')
	end := bytes.LastIndexByte(b, '}')
	if start < 0 || end < start {
		return b
	}
	return b[start : end+1]
}
