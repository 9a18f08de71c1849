package ai

import (
	"encoding/json"
	"strings"
)

// Evaluation is the structured verdict on a learner's answer.
type Evaluation struct {
	Score       int      `json:"score"`
	Feedback    string   `json:"feedback"`
	Suggestions []string `json:"suggestions"`
}

// extractJSON pulls a JSON object out of a model response that may be
// wrapped in markdown code fences or surrounded by commentary.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)

	if idx := strings.Index(s, "```json"); idx >= 0 {
		s = s[idx+len("```json"):]
	} else if idx := strings.Index(s, "```"); idx >= 0 {
		s = s[idx+3:]
	}
	if idx := strings.Index(s, "```"); idx >= 0 {
		s = s[:idx]
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return ""
	}
	return s[start : end+1]
}

// parseEvaluation validates the model's verdict strictly. A response that
// does not carry an integer score in [0,100] is malformed, not a default.
func parseEvaluation(raw string) (*Evaluation, error) {
	jsonStr := extractJSON(raw)
	if jsonStr == "" {
		return nil, &Error{Kind: KindMalformedResponse, Op: "evaluate",
			Msg: "response contains no JSON object"}
	}

	var payload struct {
		Score       *float64 `json:"score"`
		Feedback    string   `json:"feedback"`
		Suggestions []string `json:"suggestions"`
	}
	if err := json.Unmarshal([]byte(jsonStr), &payload); err != nil {
		return nil, &Error{Kind: KindMalformedResponse, Op: "evaluate",
			Msg: "response JSON does not match the evaluation schema"}
	}

	if payload.Score == nil {
		return nil, &Error{Kind: KindMalformedResponse, Op: "evaluate",
			Msg: "evaluation is missing a score"}
	}
	score := int(*payload.Score)
	if float64(score) != *payload.Score || score < 0 || score > 100 {
		return nil, &Error{Kind: KindMalformedResponse, Op: "evaluate",
			Msg: "evaluation score is outside 0-100"}
	}

	return &Evaluation{
		Score:       score,
		Feedback:    payload.Feedback,
		Suggestions: payload.Suggestions,
	}, nil
}
