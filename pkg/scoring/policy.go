package scoring

import (
	_ "embed"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed policy.yaml
var defaultPolicyYAML []byte

// Policy holds every numeric constant the engine uses: prior tables, field
// weights, blend ratios, penalty rules, and grade bands. It is loaded once at
// startup and read-only afterwards, so evaluations can run concurrently
// without coordination.
type Policy struct {
	// MacroPriors is the [0,100] baseline per rate-environment bucket.
	MacroPriors map[RateBucket]float64 `yaml:"macroPriors"`
	// AssetPriors is the [0,100] baseline per asset class.
	AssetPriors map[AssetClass]float64 `yaml:"assetPriors"`
	// MacroShare is the macro weight in the prior blend; the asset-type
	// prior gets the remainder.
	MacroShare float64 `yaml:"macroShare"`
	// MaxEvidenceShare caps how far the blend can shift toward supplied
	// evidence. The effective share is MaxEvidenceShare * coverage, so a
	// request with no fields scores exactly the blended prior.
	MaxEvidenceShare float64 `yaml:"maxEvidenceShare"`
	// PenaltyCap bounds the aggregate deduction across all triggered rules.
	PenaltyCap float64 `yaml:"penaltyCap"`
	// ConfidenceFloor and ConfidenceCeiling bound the coverage-derived
	// confidence value.
	ConfidenceFloor   float64 `yaml:"confidenceFloor"`
	ConfidenceCeiling float64 `yaml:"confidenceCeiling"`
	// Weights is the declared base weight per field ID.
	Weights map[string]float64 `yaml:"weights"`
	// Penalties are evaluated in order; the order is the audit-trail order.
	Penalties []PenaltyRule `yaml:"penalties"`
	// Bands map score ranges to grades, ordered by descending Min. The last
	// band must have Min 0 so every score in [0,100] maps to exactly one.
	Bands []GradeBand `yaml:"bands"`
}

// PenaltyRule is one named risk flag. A rule triggers when the referenced
// field was supplied and its value falls below Below or above Above
// (whichever is set). The rent_regulation rule triggers on the boolean input.
type PenaltyRule struct {
	Name      string   `yaml:"name"`
	Field     string   `yaml:"field"`
	Below     *float64 `yaml:"below,omitempty"`
	Above     *float64 `yaml:"above,omitempty"`
	Deduction float64  `yaml:"deduction"`
}

// GradeBand maps a minimum score to a letter grade and recommendation.
type GradeBand struct {
	Min            float64 `yaml:"min"`
	Grade          string  `yaml:"grade"`
	Recommendation string  `yaml:"recommendation"`
}

// DefaultPolicy returns the embedded scoring policy.
func DefaultPolicy() (*Policy, error) {
	return parsePolicy(defaultPolicyYAML)
}

// LoadPolicy reads a policy override from a YAML file. An unreadable or
// invalid file is a ConfigurationError: the engine must not start without a
// coherent policy.
func LoadPolicy(path string) (*Policy, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("reading policy file %s: %v", path, err)}
	}
	return parsePolicy(b)
}

func parsePolicy(b []byte) (*Policy, error) {
	var p Policy
	if err := yaml.Unmarshal(b, &p); err != nil {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("parsing policy yaml: %v", err)}
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Policy) validate() error {
	for _, b := range RateBuckets {
		v, ok := p.MacroPriors[b]
		if !ok {
			return &ConfigurationError{Reason: fmt.Sprintf("missing macro prior for rate bucket %s", b)}
		}
		if v < 0 || v > 100 {
			return &ConfigurationError{Reason: fmt.Sprintf("macro prior for %s out of [0,100]: %v", b, v)}
		}
	}
	for _, c := range AssetClasses {
		v, ok := p.AssetPriors[c]
		if !ok {
			return &ConfigurationError{Reason: fmt.Sprintf("missing asset prior for %s", c)}
		}
		if v < 0 || v > 100 {
			return &ConfigurationError{Reason: fmt.Sprintf("asset prior for %s out of [0,100]: %v", c, v)}
		}
	}
	if p.MacroShare < 0 || p.MacroShare > 1 {
		return &ConfigurationError{Reason: fmt.Sprintf("macroShare out of [0,1]: %v", p.MacroShare)}
	}
	if p.MaxEvidenceShare <= 0 || p.MaxEvidenceShare > 1 {
		return &ConfigurationError{Reason: fmt.Sprintf("maxEvidenceShare out of (0,1]: %v", p.MaxEvidenceShare)}
	}
	if p.PenaltyCap < 0 {
		return &ConfigurationError{Reason: fmt.Sprintf("penaltyCap must be >= 0: %v", p.PenaltyCap)}
	}
	if p.ConfidenceFloor < 0 || p.ConfidenceCeiling > 1 || p.ConfidenceFloor > p.ConfidenceCeiling {
		return &ConfigurationError{Reason: "confidence floor/ceiling must satisfy 0 <= floor <= ceiling <= 1"}
	}

	total := 0.0
	for _, f := range fields {
		w, ok := p.Weights[f.ID]
		if !ok {
			return &ConfigurationError{Reason: fmt.Sprintf("missing weight for field %s", f.ID)}
		}
		if w <= 0 {
			return &ConfigurationError{Reason: fmt.Sprintf("weight for %s must be > 0: %v", f.ID, w)}
		}
		total += w
	}
	for id := range p.Weights {
		if _, ok := fieldByID(id); !ok {
			return &ConfigurationError{Reason: fmt.Sprintf("weight declared for unknown field %s", id)}
		}
	}
	if math.Abs(total-1.0) > 1e-9 {
		return &ConfigurationError{Reason: fmt.Sprintf("declared field weights must sum to 1.0, got %v", total)}
	}

	for _, r := range p.Penalties {
		if r.Name == "" {
			return &ConfigurationError{Reason: "penalty rule with empty name"}
		}
		if r.Deduction <= 0 {
			return &ConfigurationError{Reason: fmt.Sprintf("penalty %s deduction must be > 0", r.Name)}
		}
		if r.Field == FieldRentRegulation {
			continue
		}
		if r.Field != FieldStressDSCR {
			if _, ok := fieldByID(r.Field); !ok {
				return &ConfigurationError{Reason: fmt.Sprintf("penalty %s references unknown field %s", r.Name, r.Field)}
			}
		}
		if r.Below == nil && r.Above == nil {
			return &ConfigurationError{Reason: fmt.Sprintf("penalty %s needs a below or above threshold", r.Name)}
		}
	}

	if len(p.Bands) == 0 {
		return &ConfigurationError{Reason: "no grade bands declared"}
	}
	for i, b := range p.Bands {
		if b.Grade == "" || b.Recommendation == "" {
			return &ConfigurationError{Reason: fmt.Sprintf("band %d missing grade or recommendation", i)}
		}
		if i > 0 && b.Min >= p.Bands[i-1].Min {
			return &ConfigurationError{Reason: "grade bands must be ordered by descending min"}
		}
	}
	if p.Bands[len(p.Bands)-1].Min != 0 {
		return &ConfigurationError{Reason: "last grade band must start at 0 so every score maps to a grade"}
	}

	return nil
}
