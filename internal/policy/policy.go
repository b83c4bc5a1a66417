// Package policy holds the business profile and pricing that feed both the
// rendered services section and the estimator prompt.
package policy

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultPolicy []byte

// ErrInvalidPolicy indicates a policy document that cannot be used
var ErrInvalidPolicy = errors.New("invalid business policy")

// Business describes who offers the services
type Business struct {
	Name     string   `yaml:"name"`
	Owner    string   `yaml:"owner"`
	Age      int      `yaml:"age"`
	Location string   `yaml:"location"`
	School   string   `yaml:"school"`
	Tagline  string   `yaml:"tagline"`
	Summary  string   `yaml:"summary"`
	Phone    string   `yaml:"phone"`
	Email    string   `yaml:"email"`
	About    []string `yaml:"about"`
}

// HourlyRate is a pricing tier billed per hour
type HourlyRate struct {
	Name     string   `yaml:"name"`
	Title    string   `yaml:"title"`
	RawRate  string   `yaml:"rate"`
	UseFor   []string `yaml:"use_for"`
	Services []string `yaml:"services"`

	Rate decimal.Decimal `yaml:"-"`
}

// FlatRate is a fixed-price service
type FlatRate struct {
	Name     string `yaml:"name"`
	Label    string `yaml:"label"`
	RawPrice string `yaml:"price"`
	Note     string `yaml:"note"`

	Price decimal.Decimal `yaml:"-"`
}

// Tool describes equipment or ability for one kind of work
type Tool struct {
	Area   string `yaml:"area"`
	Detail string `yaml:"detail"`
}

// Policy is the full business policy
type Policy struct {
	Business    Business     `yaml:"business"`
	HourlyRates []HourlyRate `yaml:"hourly_rates"`
	FlatRates   []FlatRate   `yaml:"flat_rates"`
	Tools       []Tool       `yaml:"tools"`
	DeclineWhen []string     `yaml:"decline_when"`
	Guidelines  []string     `yaml:"guidelines"`
}

// Default returns the embedded policy
func Default() (*Policy, error) {
	return Parse(defaultPolicy)
}

// Load reads a policy file; an empty path means the embedded default
func Load(path string) (*Policy, error) {
	if path == "" {
		return Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML policy document
func Parse(data []byte) (*Policy, error) {
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPolicy, err)
	}
	if err := p.resolve(); err != nil {
		return nil, err
	}
	return &p, nil
}

// resolve parses money fields and checks required values
func (p *Policy) resolve() error {
	if p.Business.Name == "" {
		return fmt.Errorf("%w: business name is required", ErrInvalidPolicy)
	}

	for i := range p.HourlyRates {
		r := &p.HourlyRates[i]
		amount, err := parseAmount(r.RawRate)
		if err != nil {
			return fmt.Errorf("%w: hourly rate %q: %v", ErrInvalidPolicy, r.Name, err)
		}
		r.Rate = amount
		if r.Title == "" {
			r.Title = r.Name
		}
	}

	for i := range p.FlatRates {
		f := &p.FlatRates[i]
		amount, err := parseAmount(f.RawPrice)
		if err != nil {
			return fmt.Errorf("%w: flat rate %q: %v", ErrInvalidPolicy, f.Name, err)
		}
		f.Price = amount
		if f.Label == "" {
			f.Label = f.Name
		}
	}

	return nil
}

func parseAmount(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, errors.New("amount is required")
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() {
		return decimal.Zero, errors.New("amount must not be negative")
	}
	return d, nil
}

// FormatUSD renders $20 for whole amounts and $17.50 otherwise
func FormatUSD(d decimal.Decimal) string {
	if d.Equal(d.Truncate(0)) {
		return "$" + d.Truncate(0).String()
	}
	return "$" + d.StringFixed(2)
}
