package scoring

import (
	"fmt"
	"sort"
)

// Engine grades underwriting requests against an immutable Policy. It is a
// pure computation: no I/O, no mutable state, safe for concurrent use.
type Engine struct {
	policy *Policy
}

// NewEngine builds an engine from a validated policy.
func NewEngine(p *Policy) (*Engine, error) {
	if p == nil {
		return nil, &ConfigurationError{Reason: "nil policy"}
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &Engine{policy: p}, nil
}

// NewDefaultEngine builds an engine from the embedded default policy.
func NewDefaultEngine() (*Engine, error) {
	p, err := DefaultPolicy()
	if err != nil {
		return nil, err
	}
	return NewEngine(p)
}

// Policy exposes the active policy (read-only by convention).
func (e *Engine) Policy() *Policy {
	return e.policy
}

// Schema publishes the factor schema with the active weights, sorted by
// declaration order, so callers can validate before submitting a Request.
func (e *Engine) Schema() []FieldSpec {
	specs := make([]FieldSpec, 0, len(fields))
	for _, f := range fields {
		specs = append(specs, FieldSpec{
			ID:     f.ID,
			Label:  f.Label,
			Weight: e.policy.Weights[f.ID],
			Min:    f.Min,
			Max:    f.Max,
		})
	}
	return specs
}

// Evaluate grades one request. Missing fields are fine; invalid values abort
// with a ValidationError and no partial result. Identical requests always
// produce identical results.
func (e *Engine) Evaluate(req Request) (*Result, error) {
	if err := e.validateRequest(req); err != nil {
		return nil, err
	}

	rate := req.Rate
	if rate == "" {
		rate = RateNeutral
	}

	p := e.policy
	prior := p.MacroShare*p.MacroPriors[rate] + (1-p.MacroShare)*p.AssetPriors[req.Asset]

	// Two-pass weight re-normalization over the supplied subset: sum the
	// declared weights of present fields, then divide. Fields without
	// values contribute zero weight and are excluded from the denominator.
	// Both sums walk the schema in declaration order, never the request
	// map, so the float accumulation order (and the result bits) are
	// fixed for a given request.
	supplied := 0.0
	for _, f := range fields {
		if _, ok := req.Fields[f.ID]; ok {
			supplied += p.Weights[f.ID]
		}
	}
	coverage := supplied // declared weights sum to 1.0, so this is the fraction

	evidence := 0.0
	weights := make(map[string]float64, len(req.Fields))
	if supplied > 0 {
		for _, f := range fields {
			v, ok := req.Fields[f.ID]
			if !ok {
				continue
			}
			w := p.Weights[f.ID] / supplied
			weights[f.ID] = w
			evidence += f.Curve(v) * w
		}
		evidence *= 100
	}

	share := p.MaxEvidenceShare * coverage
	score := (1-share)*prior + share*evidence

	flags := e.runPenalties(req)
	deduction := 0.0
	for _, fl := range flags {
		deduction += fl.Deduction
	}
	if deduction > p.PenaltyCap {
		deduction = p.PenaltyCap
	}
	score -= deduction

	score = clamp(score, 0, 100)
	grade, rec := e.gradeFor(score)

	return &Result{
		Score:          score,
		Grade:          grade,
		Recommendation: rec,
		Confidence:     e.confidence(coverage),
		Coverage:       coverage,
		Prior:          prior,
		Evidence:       evidence,
		Flags:          flags,
		Weights:        weights,
	}, nil
}

func (e *Engine) validateRequest(req Request) error {
	if _, err := ParseAssetClass(string(req.Asset)); err != nil {
		return err
	}
	if req.Rate != "" {
		if _, err := ParseRateBucket(string(req.Rate)); err != nil {
			return err
		}
	}

	// Sorted iteration so the first reported violation is deterministic.
	ids := make([]string, 0, len(req.Fields))
	for id := range req.Fields {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		f, ok := fieldByID(id)
		if !ok {
			return &ValidationError{Field: id, Constraint: "unknown field"}
		}
		v := req.Fields[id]
		if v < f.Min || v > f.Max || (f.ExclusiveMin && v == f.Min) {
			lo := "["
			if f.ExclusiveMin {
				lo = "("
			}
			return &ValidationError{
				Field:      id,
				Constraint: fmt.Sprintf("%v must be within %s%v, %v]", v, lo, f.Min, f.Max),
			}
		}
	}
	return nil
}

// runPenalties evaluates every rule in policy order. Rules over fields the
// caller did not supply never trigger.
func (e *Engine) runPenalties(req Request) []Flag {
	flags := make([]Flag, 0)
	for _, r := range e.policy.Penalties {
		if r.Field == FieldRentRegulation {
			if req.RentRegulation {
				flags = append(flags, Flag{
					Name:      r.Name,
					Detail:    "rent regulation risk declared",
					Deduction: r.Deduction,
				})
			}
			continue
		}

		var v float64
		if r.Field == FieldStressDSCR {
			if req.StressDSCR == nil {
				continue
			}
			v = *req.StressDSCR
		} else {
			supplied, ok := req.Fields[r.Field]
			if !ok {
				continue
			}
			v = supplied
		}
		switch {
		case r.Below != nil && v < *r.Below:
			flags = append(flags, Flag{
				Name:      r.Name,
				Detail:    fmt.Sprintf("%s %v below %v", r.Field, v, *r.Below),
				Deduction: r.Deduction,
			})
		case r.Above != nil && v > *r.Above:
			flags = append(flags, Flag{
				Name:      r.Name,
				Detail:    fmt.Sprintf("%s %v above %v", r.Field, v, *r.Above),
				Deduction: r.Deduction,
			})
		}
	}
	return flags
}

func (e *Engine) gradeFor(score float64) (grade, recommendation string) {
	for _, b := range e.policy.Bands {
		if score >= b.Min {
			return b.Grade, b.Recommendation
		}
	}
	last := e.policy.Bands[len(e.policy.Bands)-1]
	return last.Grade, last.Recommendation
}

func (e *Engine) confidence(coverage float64) float64 {
	p := e.policy
	c := p.ConfidenceFloor + (p.ConfidenceCeiling-p.ConfidenceFloor)*coverage
	return clamp(c, p.ConfidenceFloor, p.ConfidenceCeiling)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
