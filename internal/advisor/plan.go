package advisor

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// ErrInvalidPlan is returned when an allocation plan cannot be used.
var ErrInvalidPlan = errors.New("invalid allocation plan")

// Bucket is one line of the fallback suggestion.
type Bucket struct {
	Name    string   `yaml:"name"`
	Percent int64    `yaml:"percent"`
	Hints   []string `yaml:"hints"`
}

// Share returns this bucket's part of savings.
func (b Bucket) Share(savings decimal.Decimal) decimal.Decimal {
	return savings.Mul(decimal.NewFromInt(b.Percent)).Div(decimal.NewFromInt(100))
}

// Plan is the ordered list of buckets used by the fallback text.
type Plan struct {
	Buckets []Bucket `yaml:"buckets"`
}

// DefaultPlan is the 40/30/20/10 split used when no plan file is configured.
func DefaultPlan() Plan {
	return Plan{Buckets: []Bucket{
		{Name: "Emergency Fund", Percent: 40, Hints: []string{"Keep this in a high-yield savings account"}},
		{Name: "Investment", Percent: 30, Hints: []string{"Consider low-cost index funds or ETFs"}},
		{Name: "Short-term Goals", Percent: 20, Hints: []string{"Travel fund", "Major purchases"}},
		{Name: "Education/Personal Development", Percent: 10, Hints: []string{"Online courses", "Skills development"}},
	}}
}

// Validate checks that the plan has named buckets with non-negative
// percentages summing to exactly 100.
func (p Plan) Validate() error {
	if len(p.Buckets) == 0 {
		return fmt.Errorf("%w: no buckets", ErrInvalidPlan)
	}
	var total int64
	for i, b := range p.Buckets {
		if strings.TrimSpace(b.Name) == "" {
			return fmt.Errorf("%w: bucket %d has no name", ErrInvalidPlan, i+1)
		}
		if b.Percent < 0 {
			return fmt.Errorf("%w: bucket %q has negative percent %d", ErrInvalidPlan, b.Name, b.Percent)
		}
		total += b.Percent
	}
	if total != 100 {
		return fmt.Errorf("%w: percentages sum to %d, want 100", ErrInvalidPlan, total)
	}
	return nil
}

// LoadPlan reads a YAML plan file:
//
//	buckets:
//	  - name: Emergency Fund
//	    percent: 50
//	    hints: [Keep this in a high-yield savings account]
func LoadPlan(path string) (Plan, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Plan{}, fmt.Errorf("read plan file: %w", err)
	}
	return ParsePlan(b)
}

// ParsePlan decodes and validates a YAML plan.
func ParsePlan(data []byte) (Plan, error) {
	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Plan{}, fmt.Errorf("%w: %v", ErrInvalidPlan, err)
	}
	if err := p.Validate(); err != nil {
		return Plan{}, err
	}
	return p, nil
}
