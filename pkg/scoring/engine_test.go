package scoring

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewDefaultEngine()
	require.NoError(t, err)
	require.NotNil(t, e)
	return e
}

func TestEvaluateMultifamilyPartial(t *testing.T) {
	e := testEngine(t)

	res, err := e.Evaluate(Request{
		Asset: Multifamily,
		Rate:  RateNeutral,
		Fields: map[string]float64{
			FieldOccupancy: 0.95,
			FieldCapRate:   0.055,
		},
	})
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.InDelta(t, 59.2, res.Prior, 1e-9)
	assert.InDelta(t, 0.40, res.Coverage, 1e-9)
	assert.InDelta(t, 70.75, res.Evidence, 1e-9)
	assert.InDelta(t, 62.896, res.Score, 1e-9)
	assert.Equal(t, "D", res.Grade)
	assert.Equal(t, "SPECULATIVE", res.Recommendation)
	assert.Empty(t, res.Flags)
	assert.InDelta(t, 0.59, res.Confidence, 1e-9)

	assert.InDelta(t, 0.45, res.Weights[FieldOccupancy], 1e-9)
	assert.InDelta(t, 0.55, res.Weights[FieldCapRate], 1e-9)
}

func TestEvaluateOfficeLowOccupancy(t *testing.T) {
	e := testEngine(t)

	res, err := e.Evaluate(Request{
		Asset:  Office,
		Fields: map[string]float64{FieldOccupancy: 0.40},
	})
	require.NoError(t, err)

	assert.InDelta(t, 49.0, res.Prior, 1e-9)
	assert.InDelta(t, 0.0, res.Evidence, 1e-9)
	assert.InDelta(t, 29.944, res.Score, 1e-9)
	assert.Equal(t, "F", res.Grade)

	require.Len(t, res.Flags, 1)
	assert.Equal(t, "Low Occupancy", res.Flags[0].Name)
	assert.Equal(t, 12.0, res.Flags[0].Deduction)
}

func TestEvaluateNoFieldsFallsBackToPrior(t *testing.T) {
	e := testEngine(t)

	for _, a := range AssetClasses {
		for _, r := range []RateBucket{RateHigh, RateNeutral, RateLow} {
			res, err := e.Evaluate(Request{Asset: a, Rate: r})
			require.NoError(t, err)

			want := e.policy.MacroShare*e.policy.MacroPriors[r] +
				(1-e.policy.MacroShare)*e.policy.AssetPriors[a]
			assert.InDelta(t, want, res.Score, 1e-9, "%s/%s", a, r)
			assert.Equal(t, e.policy.ConfidenceFloor, res.Confidence)
			assert.Zero(t, res.Coverage)
		}
	}
}

func TestEvaluateEmptyRateDefaultsNeutral(t *testing.T) {
	e := testEngine(t)

	got, err := e.Evaluate(Request{Asset: Retail})
	require.NoError(t, err)
	want, err := e.Evaluate(Request{Asset: Retail, Rate: RateNeutral})
	require.NoError(t, err)

	assert.Equal(t, want.Score, got.Score)
}

func TestEvaluateDeterministic(t *testing.T) {
	e := testEngine(t)
	req := Request{
		Asset: Industrial,
		Rate:  RateHigh,
		Fields: map[string]float64{
			FieldOccupancy:    0.88,
			FieldCapRate:      0.062,
			FieldRentGrowth:   0.025,
			FieldDebtYield:    0.09,
			FieldExpenseRatio: 0.48,
		},
	}

	first, err := e.Evaluate(req)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := e.Evaluate(req)
		require.NoError(t, err)
		assert.Equal(t, first.Score, again.Score)
		assert.Equal(t, first.Grade, again.Grade)
		assert.Equal(t, first.Flags, again.Flags)
	}
}

// A sub-1.0 stressed DSCR flags the deal and deducts points; healthy
// coverage leaves the score untouched.
func TestEvaluateStressedCoverageFlag(t *testing.T) {
	e := testEngine(t)
	req := Request{
		Asset: Multifamily,
		Fields: map[string]float64{
			FieldOccupancy: 0.95,
			FieldCapRate:   0.06,
		},
	}

	clean, err := e.Evaluate(req)
	require.NoError(t, err)
	assert.Empty(t, clean.Flags)

	req.StressDSCR = ptr(0.82)
	stressed, err := e.Evaluate(req)
	require.NoError(t, err)
	require.Len(t, stressed.Flags, 1)
	assert.Equal(t, "Stressed Coverage", stressed.Flags[0].Name)
	assert.Equal(t, 15.0, stressed.Flags[0].Deduction)
	assert.Less(t, stressed.Score, clean.Score)

	req.StressDSCR = ptr(1.30)
	healthy, err := e.Evaluate(req)
	require.NoError(t, err)
	assert.Empty(t, healthy.Flags)
	assert.Equal(t, clean.Score, healthy.Score)
}

// Rebuilding the field map between calls randomizes Go's map iteration
// order. Scores must still match to the last bit.
func TestEvaluateBitIdenticalAcrossMapOrders(t *testing.T) {
	e := testEngine(t)

	values := map[string]float64{
		FieldOccupancy:        0.88,
		FieldCapRate:          0.062,
		FieldRentGrowth:       0.025,
		FieldDebtYield:        0.09,
		FieldExpenseRatio:     0.48,
		FieldDaysOnMarket:     45,
		FieldLocationScore:    0.71,
		FieldReplacementRatio: 1.05,
	}

	var want uint64
	for i := 0; i < 200; i++ {
		fresh := make(map[string]float64, len(values))
		for id, v := range values {
			fresh[id] = v
		}
		res, err := e.Evaluate(Request{Asset: Industrial, Rate: RateHigh, Fields: fresh})
		require.NoError(t, err)

		bits := math.Float64bits(res.Score)
		if i == 0 {
			want = bits
			continue
		}
		require.Equal(t, want, bits, "score bits drifted on trial %d", i)
	}
}

func TestEvaluateBestBeatsWorst(t *testing.T) {
	e := testEngine(t)

	best := map[string]float64{
		FieldOccupancy:        1.0,
		FieldCapRate:          0.10,
		FieldRentGrowth:       0.06,
		FieldDebtYield:        0.12,
		FieldLocationScore:    1.0,
		FieldReplacementRatio: 1.2,
		FieldDaysOnMarket:     0,
		FieldExpenseRatio:     0.25,
	}
	worst := map[string]float64{
		FieldOccupancy:        0.1,
		FieldCapRate:          0.001,
		FieldRentGrowth:       -0.2,
		FieldDebtYield:        0.01,
		FieldLocationScore:    0,
		FieldReplacementRatio: 0.1,
		FieldDaysOnMarket:     720,
		FieldExpenseRatio:     0.95,
	}

	for _, a := range AssetClasses {
		hi, err := e.Evaluate(Request{Asset: a, Fields: best})
		require.NoError(t, err)
		lo, err := e.Evaluate(Request{Asset: a, Fields: worst, RentRegulation: true})
		require.NoError(t, err)

		assert.Greater(t, hi.Score, lo.Score, a)
		assert.GreaterOrEqual(t, hi.Score, 0.0)
		assert.LessOrEqual(t, hi.Score, 100.0)
		assert.GreaterOrEqual(t, lo.Score, 0.0)
	}
}

func TestEvaluatePenaltyCap(t *testing.T) {
	e := testEngine(t)

	// trip every penalty rule at once
	res, err := e.Evaluate(Request{
		Asset: Multifamily,
		Fields: map[string]float64{
			FieldOccupancy:    0.4,
			FieldCapRate:      0.03,
			FieldDebtYield:    0.05,
			FieldRentGrowth:   -0.05,
			FieldDaysOnMarket: 365,
			FieldExpenseRatio: 0.7,
		},
		RentRegulation: true,
	})
	require.NoError(t, err)

	require.Len(t, res.Flags, 7)
	total := 0.0
	for _, f := range res.Flags {
		total += f.Deduction
	}
	assert.Greater(t, total, e.policy.PenaltyCap)

	// score reflects the capped aggregate, not the raw sum
	uncapped, err := e.Evaluate(Request{
		Asset: Multifamily,
		Fields: map[string]float64{
			FieldOccupancy:    0.4,
			FieldCapRate:      0.03,
			FieldDebtYield:    0.05,
			FieldRentGrowth:   -0.05,
			FieldDaysOnMarket: 365,
			FieldExpenseRatio: 0.7,
		},
	})
	require.NoError(t, err)
	// both runs exceed the cap, so the extra rent regulation flag changes nothing
	assert.InDelta(t, uncapped.Score, res.Score, 1e-9)
}

func TestEvaluateWeightsRenormalize(t *testing.T) {
	e := testEngine(t)

	res, err := e.Evaluate(Request{
		Asset: SingleFamily,
		Fields: map[string]float64{
			FieldOccupancy:     0.9,
			FieldLocationScore: 0.7,
			FieldDaysOnMarket:  30,
		},
	})
	require.NoError(t, err)

	sum := 0.0
	for _, w := range res.Weights {
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.InDelta(t, 0.18+0.12+0.05, res.Coverage, 1e-9)
}

func TestEvaluateValidation(t *testing.T) {
	e := testEngine(t)

	tests := []struct {
		name string
		req  Request
	}{
		{"unknown asset", Request{Asset: "hotel"}},
		{"unknown rate", Request{Asset: Land, Rate: "wild"}},
		{"unknown field", Request{Asset: Land, Fields: map[string]float64{"cap_rate_x": 1}}},
		{"occupancy above range", Request{Asset: Land, Fields: map[string]float64{FieldOccupancy: 1.5}}},
		{"occupancy below range", Request{Asset: Land, Fields: map[string]float64{FieldOccupancy: -0.2}}},
		{"zero cap rate", Request{Asset: Land, Fields: map[string]float64{FieldCapRate: 0}}},
		{"zero debt yield", Request{Asset: Land, Fields: map[string]float64{FieldDebtYield: 0}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, err := e.Evaluate(tc.req)
			assert.Error(t, err)
			assert.Nil(t, res)
		})
	}
}

func TestEvaluateValidationErrorIsDeterministic(t *testing.T) {
	e := testEngine(t)

	req := Request{
		Asset: Multifamily,
		Fields: map[string]float64{
			FieldOccupancy:  2.0,
			FieldRentGrowth: 5.0,
		},
	}
	_, err := e.Evaluate(req)
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, FieldOccupancy, verr.Field)

	for i := 0; i < 5; i++ {
		_, again := e.Evaluate(req)
		assert.Equal(t, err.Error(), again.Error())
	}
}

func TestGradeBandsExhaustive(t *testing.T) {
	e := testEngine(t)

	for s := 0.0; s <= 100.0; s += 0.5 {
		g, rec := e.gradeFor(s)
		assert.NotEmpty(t, g, "score %v", s)
		assert.NotEmpty(t, rec, "score %v", s)
	}

	gb := func(s float64) string { g, _ := e.gradeFor(s); return g }
	assert.Equal(t, "A", gb(90))
	assert.Equal(t, "B", gb(89.999))
	assert.Equal(t, "B", gb(80))
	assert.Equal(t, "C", gb(79.999))
	assert.Equal(t, "D", gb(60))
	assert.Equal(t, "F", gb(59.999))
	assert.Equal(t, "F", gb(0))
}

func TestSchemaPublishesWeights(t *testing.T) {
	e := testEngine(t)

	specs := e.Schema()
	require.Len(t, specs, len(fields))

	sum := 0.0
	for _, s := range specs {
		assert.NotEmpty(t, s.ID)
		assert.NotEmpty(t, s.Label)
		sum += s.Weight
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}
