package service

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/noah-isme/rubric-review-api/pkg/ai"
)

// ErrInvalidLLMResponse indicates the model returned JSON of the wrong shape.
var ErrInvalidLLMResponse = errors.New("llm response does not match schema")

var gradeReportSchema = jsonschema.MustCompileString("grade_report.json", `{
  "type": "object",
  "required": ["score"],
  "properties": {
    "score": {"type": "number"},
    "grade": {"type": "string"},
    "breakdown": {"type": "object", "additionalProperties": {"type": "number"}},
    "strengths": {"type": "array", "items": {"type": "string"}},
    "weaknesses": {"type": "array", "items": {"type": "string"}},
    "penalties": {"type": "array", "items": {"type": "string"}},
    "summary": {"type": "string"}
  }
}`)

var improvementsSchema = jsonschema.MustCompileString("improvements.json", `{
  "type": "object",
  "required": ["improvedPrompt", "improvedCriteria"],
  "properties": {
    "improvedPrompt": {"type": "string", "minLength": 1},
    "improvedCriteria": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["criterion", "isPositive"],
        "properties": {
          "criterion": {"type": "string", "minLength": 1},
          "isPositive": {"type": "boolean"},
          "rationale": {"type": "string"}
        }
      }
    },
    "rationale": {"type": "string"}
  }
}`)

var rubricItemsSchema = jsonschema.MustCompileString("rubric_items.json", `{
  "type": "object",
  "required": ["rubricItems"],
  "properties": {
    "rubricItems": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["criterion"],
        "properties": {
          "id": {"type": ["string", "number"]},
          "criterion": {"type": "string", "minLength": 1},
          "isPositive": {"type": "boolean"},
          "category": {"type": "string"},
          "type": {"type": "string"}
        }
      }
    }
  }
}`)

// decodeLLMObject extracts the first JSON object carrying requiredKey from the
// model text, validates it against schema and decodes it into T.
func decodeLLMObject[T any](schema *jsonschema.Schema, text, requiredKey string) (T, error) {
	var zero T
	raw, err := ai.ExtractJSONObject(text, requiredKey)
	if err != nil {
		return zero, err
	}

	var document interface{}
	if err := json.Unmarshal([]byte(raw), &document); err != nil {
		return zero, fmt.Errorf("%w: %v", ai.ErrParse, err)
	}
	if err := schema.Validate(document); err != nil {
		return zero, fmt.Errorf("%w: %v", ErrInvalidLLMResponse, err)
	}

	var out T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return zero, fmt.Errorf("%w: %v", ErrInvalidLLMResponse, err)
	}
	return out, nil
}
