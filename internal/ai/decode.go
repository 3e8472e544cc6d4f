package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/macrofit/macrofit-api/internal/models"
)

// decodeResponse extracts the JSON document from a model reply and decodes
// it into v. Models wrap JSON in markdown fences or prose often enough that
// a plain Unmarshal is not good enough, but a failed or partial parse is
// always an error, never a degraded success.
func decodeResponse(content string, v any) error {
	raw, err := extractJSON(content)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("%w: %v", models.ErrMalformedResponse, err)
	}
	return nil
}

// extractJSON returns the outermost JSON object or array in content.
func extractJSON(content string) (string, error) {
	s := strings.TrimSpace(content)

	// Strip a markdown code fence, with or without a language tag.
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return "", fmt.Errorf("%w: no JSON document in response", models.ErrMalformedResponse)
	}

	var end int
	if s[start] == '{' {
		end = strings.LastIndex(s, "}")
	} else {
		end = strings.LastIndex(s, "]")
	}
	if end <= start {
		return "", fmt.Errorf("%w: unterminated JSON document in response", models.ErrMalformedResponse)
	}

	return s[start : end+1], nil
}
