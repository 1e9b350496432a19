package evaluate

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/rekrytera/signals-cli/internal/model"
	"github.com/rekrytera/signals-cli/pkg/anthropic"
)

// parseEvaluation validates the model's JSON response. Malformed responses
// are rejected, never repaired: a missing required field, a wrong type or
// an out-of-range score all escalate to the next attempt.
func parseEvaluation(text string) (model.Evaluation, error) {
	text = cleanJSON(text)
	if text == "" {
		return model.Evaluation{}, eris.New("evaluate: empty response")
	}

	var result struct {
		IsValid          *bool    `json:"isValid"`
		Score            *float64 `json:"score"`
		Category         *string  `json:"category"`
		Experience       string   `json:"experience"`
		Reasoning        string   `json:"reasoning"`
		ApplicationEmail string   `json:"applicationEmail"`
		Duration         string   `json:"duration"`
	}
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return model.Evaluation{}, eris.Wrap(err, "evaluate: parse response")
	}

	if result.IsValid == nil {
		return model.Evaluation{}, eris.New("evaluate: response missing isValid")
	}
	if result.Score == nil {
		return model.Evaluation{}, eris.New("evaluate: response missing score")
	}
	score := *result.Score
	if score < 0 || score > 100 {
		return model.Evaluation{}, eris.Errorf("evaluate: score %v outside [0,100]", score)
	}
	if score != float64(int(score)) {
		return model.Evaluation{}, eris.Errorf("evaluate: non-integer score %v", score)
	}
	if result.Category == nil || *result.Category == "" {
		return model.Evaluation{}, eris.New("evaluate: response missing category")
	}

	return model.Evaluation{
		IsValid:          *result.IsValid,
		Score:            int(score),
		Category:         *result.Category,
		Experience:       result.Experience,
		Reasoning:        result.Reasoning,
		ApplicationEmail: result.ApplicationEmail,
		Duration:         result.Duration,
	}, nil
}

// extractText concatenates all text content blocks from a message response.
func extractText(resp *anthropic.MessageResponse) string {
	if resp == nil {
		return ""
	}
	var parts []string
	for _, block := range resp.Content {
		if block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// cleanJSON attempts to extract a JSON object from text that may contain
// markdown code fences or other wrapping.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	// Strip markdown code fences.
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	// Find first { and last }.
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}
