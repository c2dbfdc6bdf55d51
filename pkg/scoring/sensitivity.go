package scoring

// Sensitivity is a score grid over rent and rate shocks. Rows follow
// RentShocks, columns follow RateShocks.
type Sensitivity struct {
	RentShocks []float64   `json:"rent_shocks" yaml:"rentShocks"`
	RateShocks []float64   `json:"rate_shocks" yaml:"rateShocks"`
	Scores     [][]float64 `json:"scores" yaml:"scores"`
	Grades     [][]string  `json:"grades" yaml:"grades"`
}

var (
	defaultRentShocks = []float64{-0.15, -0.10, -0.05, 0, 0.05, 0.10}
	defaultRateShocks = []float64{-1.0, -0.5, 0, 0.5, 1.0}
)

// Sensitivity re-scores the deal under combined rent and interest-rate
// shocks. Rent shocks are fractional, rate shocks are in percentage points
// on the financing rate. Deals without rent simply repeat the base score
// across each row.
func (e *Engine) Sensitivity(d Deal, rate RateBucket) (*Sensitivity, error) {
	s := &Sensitivity{
		RentShocks: defaultRentShocks,
		RateShocks: defaultRateShocks,
	}

	for _, rentShock := range s.RentShocks {
		row := make([]float64, 0, len(s.RateShocks))
		grades := make([]string, 0, len(s.RateShocks))
		for _, rateShock := range s.RateShocks {
			shocked := d
			if d.MonthlyRent != nil {
				shocked.MonthlyRent = ptr(*d.MonthlyRent * (1 + rentShock))
			}
			if d.InterestRatePct != nil {
				shocked.InterestRatePct = ptr(*d.InterestRatePct + rateShock)
			}
			res, err := e.Evaluate(shocked.Request(ComputeNumbers(shocked), rate))
			if err != nil {
				return nil, err
			}
			row = append(row, res.Score)
			grades = append(grades, res.Grade)
		}
		s.Scores = append(s.Scores, row)
		s.Grades = append(s.Grades, grades)
	}
	return s, nil
}
