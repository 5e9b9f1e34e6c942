package extract

import (
	"encoding/json"
	"fmt"
)

// Text is a field the generation service may emit as either a JSON string
// or a bare number. It always reads back as a string.
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*t = Text(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		*t = Text(n.String())
		return nil
	}
	return fmt.Errorf("expected string or number, got %s", b)
}

// Summary accepts the insight summary as either one string or a list of
// strings; revisions of the generation prompt have produced both.
type Summary []string

func (s *Summary) UnmarshalJSON(b []byte) error {
	var one string
	if err := json.Unmarshal(b, &one); err == nil {
		if one == "" {
			*s = nil
		} else {
			*s = Summary{one}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err == nil {
		*s = Summary(many)
		return nil
	}
	return fmt.Errorf("expected string or array of strings, got %s", b)
}

// CandidateInsight is the provisional receipt data parsed from the
// generated text. Amount fields stay free-text here; normalization happens
// in the processing job.
type CandidateInsight struct {
	Date     Text            `json:"date"`
	Total    Text            `json:"total"`
	Items    []CandidateItem `json:"items"`
	Insights Summary         `json:"insights"`
}

type CandidateItem struct {
	Name     string `json:"item"`
	Quantity Text   `json:"quantity"`
	Price    Text   `json:"price"`
	Category string `json:"category"`
}
