package scoring

import (
	"fmt"
	"strings"
)

// AssetClass identifies the property type being underwritten.
type AssetClass string

const (
	Multifamily  AssetClass = "multifamily"
	SingleFamily AssetClass = "single_family"
	Office       AssetClass = "office"
	Retail       AssetClass = "retail"
	Industrial   AssetClass = "industrial"
	Land         AssetClass = "land"
)

// AssetClasses lists all valid asset classes in display order.
var AssetClasses = []AssetClass{
	Multifamily, SingleFamily, Office, Retail, Industrial, Land,
}

// ParseAssetClass resolves a user-supplied asset class name.
func ParseAssetClass(s string) (AssetClass, error) {
	n := AssetClass(strings.ToLower(strings.TrimSpace(s)))
	for _, c := range AssetClasses {
		if n == c {
			return c, nil
		}
	}
	return "", &ValidationError{Field: "asset_class", Constraint: fmt.Sprintf("unknown asset class: %s", s)}
}

// RateBucket is the macro rate-environment bucket the evaluation runs under.
type RateBucket string

const (
	RateHigh    RateBucket = "high"
	RateNeutral RateBucket = "neutral"
	RateLow     RateBucket = "low"
)

// RateBuckets lists all valid rate environments.
var RateBuckets = []RateBucket{RateHigh, RateNeutral, RateLow}

// ParseRateBucket resolves a rate bucket name, defaulting to neutral when empty.
func ParseRateBucket(s string) (RateBucket, error) {
	n := strings.ToLower(strings.TrimSpace(s))
	if n == "" {
		return RateNeutral, nil
	}
	for _, b := range RateBuckets {
		if RateBucket(n) == b {
			return b, nil
		}
	}
	return "", &ValidationError{Field: "rate_env", Constraint: fmt.Sprintf("unknown rate environment: %s", s)}
}

// Field IDs. Stable identifiers published to callers via Schema.
const (
	FieldOccupancy        = "occupancy"
	FieldCapRate          = "cap_rate"
	FieldRentGrowth       = "rent_growth"
	FieldDebtYield        = "debt_yield"
	FieldLocationScore    = "location_score"
	FieldReplacementRatio = "replacement_ratio"
	FieldDaysOnMarket     = "days_on_market"
	FieldExpenseRatio     = "expense_ratio"

	// FieldRentRegulation is a boolean risk input. It participates in
	// penalty rules only, never in the weighted evidence blend.
	FieldRentRegulation = "rent_regulation"

	// FieldStressDSCR is the rent-shocked debt service coverage ratio.
	// Derived from underwriting numbers rather than supplied directly,
	// it participates in penalty rules only.
	FieldStressDSCR = "dscr_stress"
)

// Field describes one scoring factor: its validity range and the curve
// that maps a raw value onto [0,1]. Base weights live in the Policy.
type Field struct {
	ID    string
	Label string
	Min   float64
	Max   float64
	// ExclusiveMin rejects values equal to Min (e.g. cap rate must be > 0).
	ExclusiveMin bool
	Curve        func(v float64) float64
}

// fields is the fixed factor schema, in declaration order.
var fields = []Field{
	{
		ID: FieldOccupancy, Label: "Occupancy", Min: 0, Max: 1,
		Curve: func(v float64) float64 { return ramp(v, 0.5, 1.0) },
	},
	{
		ID: FieldCapRate, Label: "Cap rate", Min: 0, Max: 0.5, ExclusiveMin: true,
		Curve: func(v float64) float64 { return ramp(v, 0, 0.10) },
	},
	{
		ID: FieldRentGrowth, Label: "Rent growth (annual)", Min: -0.5, Max: 0.5,
		Curve: func(v float64) float64 { return ramp(v, -0.02, 0.06) },
	},
	{
		ID: FieldDebtYield, Label: "Debt yield", Min: 0, Max: 1, ExclusiveMin: true,
		Curve: func(v float64) float64 { return ramp(v, 0, 0.12) },
	},
	{
		ID: FieldLocationScore, Label: "Location score", Min: 0, Max: 1,
		Curve: func(v float64) float64 { return ramp(v, 0, 1) },
	},
	{
		ID: FieldReplacementRatio, Label: "Replacement cost / price", Min: 0, Max: 10,
		Curve: func(v float64) float64 { return ramp(v, 0, 1.2) },
	},
	{
		ID: FieldDaysOnMarket, Label: "Days on market", Min: 0, Max: 3650,
		Curve: func(v float64) float64 { return 1 - ramp(v, 0, 180) },
	},
	{
		ID: FieldExpenseRatio, Label: "Expense ratio (of rent)", Min: 0, Max: 1,
		Curve: func(v float64) float64 { return 1 - ramp(v, 0.25, 0.65) },
	},
}

// ramp maps v linearly from [lo,hi] onto [0,1], clamped at both ends.
func ramp(v, lo, hi float64) float64 {
	if v <= lo {
		return 0
	}
	if v >= hi {
		return 1
	}
	return (v - lo) / (hi - lo)
}

// fieldByID returns the schema entry for a field ID.
func fieldByID(id string) (Field, bool) {
	for _, f := range fields {
		if f.ID == id {
			return f, true
		}
	}
	return Field{}, false
}

// Request is one evaluation: the asset class, the rate environment, and a
// sparse set of factor values keyed by field ID. Missing fields are expected
// and never an error; they just reduce coverage and confidence.
type Request struct {
	Asset          AssetClass         `json:"asset_class" yaml:"assetClass"`
	Rate           RateBucket         `json:"rate_env,omitempty" yaml:"rateEnv,omitempty"`
	Fields         map[string]float64 `json:"fields,omitempty" yaml:"fields,omitempty"`
	RentRegulation bool               `json:"rent_regulation,omitempty" yaml:"rentRegulation,omitempty"`
	StressDSCR     *float64           `json:"dscr_stress,omitempty" yaml:"dscrStress,omitempty"`
}

// Flag is one triggered penalty rule in the audit trail.
type Flag struct {
	Name      string  `json:"name" yaml:"name"`
	Detail    string  `json:"detail" yaml:"detail"`
	Deduction float64 `json:"deduction" yaml:"deduction"`
}

// Result is the full grading output for one Request.
type Result struct {
	Score          float64            `json:"score" yaml:"score"`
	Grade          string             `json:"grade" yaml:"grade"`
	Recommendation string             `json:"recommendation" yaml:"recommendation"`
	Confidence     float64            `json:"confidence" yaml:"confidence"`
	Coverage       float64            `json:"coverage" yaml:"coverage"`
	Prior          float64            `json:"prior" yaml:"prior"`
	Evidence       float64            `json:"evidence" yaml:"evidence"`
	Flags          []Flag             `json:"flags" yaml:"flags"`
	Weights        map[string]float64 `json:"weights,omitempty" yaml:"weights,omitempty"`
}

// FieldSpec is the published schema entry for one factor, so callers (form
// or API) can validate inputs before submitting a Request.
type FieldSpec struct {
	ID     string  `json:"id" yaml:"id"`
	Label  string  `json:"label" yaml:"label"`
	Weight float64 `json:"weight" yaml:"weight"`
	Min    float64 `json:"min" yaml:"min"`
	Max    float64 `json:"max" yaml:"max"`
}

// ValidationError reports a supplied value that fails its field constraint.
// The evaluation is aborted, no partial result is produced.
type ValidationError struct {
	Field      string
	Constraint string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid value for %s: %s", e.Field, e.Constraint)
}

// ConfigurationError reports a missing or malformed scoring policy at load
// time. It is fatal: the engine cannot be constructed.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid scoring policy: %s", e.Reason)
}
