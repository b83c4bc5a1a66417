package model

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Estimate is the structured reply of the estimator
type Estimate struct {
	IsDoable        bool     `json:"is_doable"`
	ConfidenceScore string   `json:"confidence_score"` // "High", "Medium", "Low" (not enforced)
	EstimatedTime   string   `json:"estimated_time"`   // e.g. "Approx. 2-3 hours" or "N/A"
	SuggestedPrice  string   `json:"suggested_price"`  // e.g. "$40 - $60" or "N/A"
	Breakdown       []string `json:"breakdown"`
	FriendlyNote    string   `json:"friendly_note"`
}

// estimateSchema lists the required fields and their JSON kinds
var estimateSchema = []struct {
	field string
	kind  string
}{
	{"is_doable", "boolean"},
	{"confidence_score", "string"},
	{"estimated_time", "string"},
	{"suggested_price", "string"},
	{"breakdown", "array"},
	{"friendly_note", "string"},
}

// ParseEstimate decodes the generated text into an Estimate.
// The text must be a JSON object carrying all six fields with their listed types.
func ParseEstimate(text string) (*Estimate, error) {
	if !gjson.Valid(text) {
		return nil, fmt.Errorf("%w: not valid JSON", ErrMalformedResponse)
	}

	root := gjson.Parse(text)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrMalformedResponse)
	}

	for _, f := range estimateSchema {
		v := root.Get(f.field)
		if !v.Exists() {
			return nil, fmt.Errorf("%w: missing field %q", ErrMalformedResponse, f.field)
		}
		if !hasKind(v, f.kind) {
			return nil, fmt.Errorf("%w: %q must be a %s", ErrMalformedResponse, f.field, f.kind)
		}
	}
	for i, step := range root.Get("breakdown").Array() {
		if step.Type != gjson.String {
			return nil, fmt.Errorf("%w: breakdown[%d] must be a string", ErrMalformedResponse, i)
		}
	}

	var est Estimate
	if err := json.Unmarshal([]byte(text), &est); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if est.Breakdown == nil {
		est.Breakdown = []string{}
	}

	return &est, nil
}

func hasKind(v gjson.Result, kind string) bool {
	switch kind {
	case "boolean":
		return v.Type == gjson.True || v.Type == gjson.False
	case "array":
		return v.IsArray()
	default:
		return v.Type == gjson.String
	}
}

// ConfidenceTone maps the confidence score to the colour used on the page.
// The match ignores case, as the page script does for live updates.
func (e *Estimate) ConfidenceTone() string {
	switch strings.ToLower(e.ConfidenceScore) {
	case "high":
		return "high"
	case "medium":
		return "medium"
	default:
		return "low"
	}
}

// Clone returns a deep copy
func (e *Estimate) Clone() *Estimate {
	if e == nil {
		return nil
	}
	c := *e
	c.Breakdown = append([]string{}, e.Breakdown...)
	return &c
}
