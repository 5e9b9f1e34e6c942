package extract

import (
	"encoding/json"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"snapspend/internal/errs"
)

// candidateSchema is the structural contract for the generated JSON. It is
// deliberately lenient about amount types: revisions of the model emit both
// strings and numbers, and normalization happens downstream.
const candidateSchema = `{
	"type": "object",
	"required": ["date", "total", "items"],
	"properties": {
		"date": {"type": ["string", "number"]},
		"total": {"type": ["string", "number"]},
		"items": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"item": {"type": "string"},
					"quantity": {"type": ["string", "number"]},
					"price": {"type": ["string", "number"]},
					"category": {"type": "string"}
				}
			}
		},
		"insights": {"type": ["string", "array"]}
	}
}`

var schema = jsonschema.MustCompileString("candidate.json", candidateSchema)

// ParseCandidate scans the fully assembled generation output for its JSON
// payload and validates it into a CandidateInsight. The payload is taken as
// the first "{" through the last "}"; models occasionally wrap the JSON in
// prose or fences, and this strips both.
func ParseCandidate(text string) (*CandidateInsight, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return nil, &errs.ExtractionError{Reason: errs.ReasonNoJSON}
	}
	blob := []byte(text[start : end+1])

	var generic any
	if err := json.Unmarshal(blob, &generic); err != nil {
		return nil, &errs.ExtractionError{Reason: errs.ReasonMalformedJSON, Err: err}
	}
	if err := schema.Validate(generic); err != nil {
		return nil, &errs.ExtractionError{Reason: errs.ReasonBadStructure, Err: err}
	}

	var candidate CandidateInsight
	if err := json.Unmarshal(blob, &candidate); err != nil {
		return nil, &errs.ExtractionError{Reason: errs.ReasonBadStructure, Err: err}
	}

	for i := range candidate.Items {
		if strings.TrimSpace(string(candidate.Items[i].Quantity)) == "" {
			candidate.Items[i].Quantity = "1"
		}
	}

	return &candidate, nil
}
