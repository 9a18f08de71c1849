package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEvaluation(t *testing.T) {
	eval, err := parseEvaluation(`{"score": 85, "feedback": "Good answer.", "suggestions": ["add detail"]}`)
	require.NoError(t, err)
	assert.Equal(t, 85, eval.Score)
	assert.Equal(t, "Good answer.", eval.Feedback)
	assert.Equal(t, []string{"add detail"}, eval.Suggestions)
}

func TestParseEvaluationFencedJSON(t *testing.T) {
	raw := "Here is my evaluation:\n```json\n{\"score\": 70, \"feedback\": \"ok\", \"suggestions\": []}\n```\nHope that helps."
	eval, err := parseEvaluation(raw)
	require.NoError(t, err)
	assert.Equal(t, 70, eval.Score)
}

func TestParseEvaluationBareFence(t *testing.T) {
	raw := "```\n{\"score\": 55, \"feedback\": \"partial\", \"suggestions\": [\"review chapter 2\"]}\n```"
	eval, err := parseEvaluation(raw)
	require.NoError(t, err)
	assert.Equal(t, 55, eval.Score)
}

func TestParseEvaluationMalformed(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"no json", "I think the answer deserves a 70."},
		{"missing score", `{"feedback": "nice", "suggestions": []}`},
		{"score out of range", `{"score": 150, "feedback": "", "suggestions": []}`},
		{"negative score", `{"score": -5, "feedback": "", "suggestions": []}`},
		{"fractional score", `{"score": 85.5, "feedback": "", "suggestions": []}`},
		{"score wrong type", `{"score": "eighty", "feedback": "", "suggestions": []}`},
		{"truncated", `{"score": 80, "feedback": "cut of`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parseEvaluation(tc.raw)
			var aiErr *Error
			require.ErrorAs(t, err, &aiErr)
			assert.Equal(t, KindMalformedResponse, aiErr.Kind)
		})
	}
}

func TestExtractJSON(t *testing.T) {
	assert.Equal(t, `{"a":1}`, extractJSON(`{"a":1}`))
	assert.Equal(t, `{"a":1}`, extractJSON("prefix {\"a\":1} suffix"))
	assert.Equal(t, "", extractJSON("no braces here"))
}
