package ai

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		key      string
		expected string
	}{{
		name:     "fenced json block",
		input:    "Here is the grade:\n```json\n{\"score\": 88}\n```\nThanks.",
		key:      "score",
		expected: `{"score": 88}`,
	}, {
		name:     "fenced block without language",
		input:    "```\n{\"score\": 70}\n```",
		key:      "score",
		expected: `{"score": 70}`,
	}, {
		name:     "fence wins over bare object",
		input:    "{\"note\": 1}\n```json\n{\"score\": 55}\n```",
		key:      "score",
		expected: `{"score": 55}`,
	}, {
		name:     "object with required key preferred over earlier object",
		input:    `Context {"draft": true} then the answer {"score": 91, "grade": "A"} done`,
		key:      "score",
		expected: `{"score": 91, "grade": "A"}`,
	}, {
		name:     "braces inside strings are skipped",
		input:    `Result: {"score": 60, "summary": "uses {curly} braces"} end`,
		key:      "score",
		expected: `{"score": 60, "summary": "uses {curly} braces"}`,
	}, {
		name:     "balanced scan fallback when key missing",
		input:    `prefix {"grade": "B"} suffix`,
		key:      "score",
		expected: `{"grade": "B"}`,
	}, {
		name:     "nested object",
		input:    `{"score": 75, "breakdown": {"clarity": 20}}`,
		key:      "score",
		expected: `{"score": 75, "breakdown": {"clarity": 20}}`,
	}}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			actual, err := ExtractJSONObject(tc.input, tc.key)
			require.NoError(t, err)
			require.Equal(t, tc.expected, actual)
		})
	}
}

func TestExtractJSONObjectFailsWithoutObject(t *testing.T) {
	_, err := ExtractJSONObject("I cannot grade this submission {unbalanced", "score")
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrParse))
}

func TestExtractDecodesIntoType(t *testing.T) {
	type payload struct {
		Score float64 `json:"score"`
	}

	result, err := Extract[payload]("```json\n{\"score\": 113}\n```", "score")
	require.NoError(t, err)
	require.Equal(t, 113.0, result.Score)

	_, err = Extract[payload]("no json here", "score")
	require.True(t, errors.Is(err, ErrParse))
}
