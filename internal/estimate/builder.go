package estimate

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/gfearing/fearings-services/internal/model"
	"github.com/gfearing/fearings-services/internal/policy"
)

// Request is a built estimate request. It cannot be modified after Build.
type Request struct {
	prompt         string
	jobDescription string
}

// Prompt returns the full instruction sent to the generative API
func (r Request) Prompt() string {
	return r.prompt
}

// JobDescription returns the customer's text as it was embedded
func (r Request) JobDescription() string {
	return r.jobDescription
}

// Builder turns job descriptions into estimate requests for one policy
type Builder struct {
	policy *policy.Policy
	tmpl   *template.Template
}

// NewBuilder creates a builder for the given policy
func NewBuilder(p *policy.Policy) (*Builder, error) {
	tmpl, err := template.New("estimate").
		Funcs(template.FuncMap{
			"usd":  policy.FormatUSD,
			"join": strings.Join,
		}).
		Parse(promptTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse prompt template: %w", err)
	}
	return &Builder{policy: p, tmpl: tmpl}, nil
}

// Build validates the description and renders the prompt.
// Empty or whitespace-only descriptions return model.ErrEmptyDescription.
func (b *Builder) Build(jobDescription string) (Request, error) {
	if strings.TrimSpace(jobDescription) == "" {
		return Request{}, model.ErrEmptyDescription
	}

	var sb strings.Builder
	data := struct {
		Policy         *policy.Policy
		JobDescription string
	}{b.policy, jobDescription}

	if err := b.tmpl.Execute(&sb, data); err != nil {
		return Request{}, fmt.Errorf("render prompt: %w", err)
	}

	return Request{prompt: sb.String(), jobDescription: jobDescription}, nil
}

const promptTemplate = `You are an expert estimator for a {{if .Policy.Business.Age}}{{.Policy.Business.Age}}-year-old's {{end}}local service business{{with .Policy.Business.Location}} in {{.}}{{end}}. Your goal is to provide a helpful, non-binding estimate that is as accurate as possible based on the information provided.

--- MY BUSINESS PROFILE ---
1. **My Pricing Tiers:**
{{- range .Policy.HourlyRates}}
   * **{{.Name}}: {{usd .Rate}}/hour** (Use for: {{join .UseFor ", "}}).
{{- end}}
{{- if .Policy.FlatRates}}
   * **Flat-Rate Services:**
{{- range .Policy.FlatRates}}
     * {{.Name}}: {{usd .Price}}{{with .Note}} ({{.}}){{end}}.
{{- end}}
{{- end}}

2. **My Tools & Abilities:**
{{- range .Policy.Tools}}
   * **{{.Area}}:** {{.Detail}}
{{- end}}

3. **Job Boundaries (Very Important):**
   * **Decline if:**
{{- range .Policy.DeclineWhen}}
     * {{.}}
{{- end}}
{{- range .Policy.Guidelines}}
   * **Be specific:** {{.}}
{{- end}}

--- CUSTOMER'S JOB REQUEST ---
"{{.JobDescription}}"

--- YOUR TASK ---
Analyze the customer's request based on my detailed business profile. Provide your response as a JSON object with this exact structure. Be realistic.

{
  "is_doable": boolean,
  "confidence_score": "string (e.g., 'High', 'Medium', 'Low' - based on how clear the user's description is)",
  "estimated_time": "string (e.g., 'Approx. 2-3 hours' or 'N/A')",
  "suggested_price": "string (e.g., '$40 - $60' or 'N/A')",
  "breakdown": ["string", "string", "..."],
  "friendly_note": "string (A short, encouraging note. If declining, politely explain why based on my boundaries.)"
}
`
