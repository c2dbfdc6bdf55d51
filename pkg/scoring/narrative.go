package scoring

import (
	"fmt"
	"sort"
)

const (
	maxStrengths = 4
	maxRisks     = 5
)

// Narrative is a plain-language readout of a graded deal.
type Narrative struct {
	Headline  string   `json:"headline" yaml:"headline"`
	Strengths []string `json:"strengths" yaml:"strengths"`
	Risks     []string `json:"risks" yaml:"risks"`
}

// BuildNarrative turns a result and its numbers into short bullet lists.
// Strengths and risks are ordered by weight so the most material signals
// surface first, then truncated.
func BuildNarrative(req Request, res *Result, n Numbers) Narrative {
	nar := Narrative{
		Headline: fmt.Sprintf("Grade %s (%s), score %.1f with %.0f%% field coverage.",
			res.Grade, res.Recommendation, res.Score, res.Coverage*100),
	}

	for _, id := range fieldsByWeight(res.Weights) {
		v, ok := req.Fields[id]
		if !ok {
			continue
		}
		if line, strong := describeField(id, v); line != "" {
			if strong {
				nar.Strengths = append(nar.Strengths, line)
			} else {
				nar.Risks = append(nar.Risks, line)
			}
		}
	}

	if n.StressDSCR != nil && *n.StressDSCR < 1 {
		nar.Risks = append(nar.Risks, fmt.Sprintf("Stressed DSCR of %.2f means the deal goes cash-negative on a 20%% rent cut.", *n.StressDSCR))
	}
	for _, f := range res.Flags {
		nar.Risks = append(nar.Risks, fmt.Sprintf("%s: %s", f.Name, f.Detail))
	}
	if res.Coverage < 0.5 {
		nar.Risks = append(nar.Risks, fmt.Sprintf("Thin data: only %.0f%% of weighted fields supplied, score leans on priors.", res.Coverage*100))
	}

	if len(nar.Strengths) > maxStrengths {
		nar.Strengths = nar.Strengths[:maxStrengths]
	}
	if len(nar.Risks) > maxRisks {
		nar.Risks = nar.Risks[:maxRisks]
	}
	return nar
}

// describeField renders one field as a bullet. The boolean reports whether
// the field reads as a strength. Fields in their middling range return an
// empty line so the narrative stays short.
func describeField(id string, v float64) (string, bool) {
	switch id {
	case FieldOccupancy:
		if v >= 0.92 {
			return fmt.Sprintf("Occupancy at %.0f%% keeps income durable.", v*100), true
		}
		if v < 0.75 {
			return fmt.Sprintf("Occupancy at %.0f%% leaves meaningful vacancy drag.", v*100), false
		}
	case FieldCapRate:
		if v >= 0.065 {
			return fmt.Sprintf("Cap rate of %.2f%% offers real yield cushion.", v*100), true
		}
		if v < 0.045 {
			return fmt.Sprintf("Cap rate of %.2f%% is thin for the risk taken.", v*100), false
		}
	case FieldRentGrowth:
		if v >= 0.03 {
			return fmt.Sprintf("Rent growth of %.1f%% supports the upside case.", v*100), true
		}
		if v < 0 {
			return fmt.Sprintf("Rents shrinking %.1f%% annually.", -v*100), false
		}
	case FieldDebtYield:
		if v >= 0.10 {
			return fmt.Sprintf("Debt yield of %.1f%% gives the lender and buyer room.", v*100), true
		}
		if v < 0.08 {
			return fmt.Sprintf("Debt yield of %.1f%% is below a comfortable floor.", v*100), false
		}
	case FieldLocationScore:
		if v >= 0.75 {
			return "Location quality is a durable tailwind.", true
		}
		if v < 0.4 {
			return "Weak location limits exit options.", false
		}
	case FieldReplacementRatio:
		if v >= 1.0 {
			return "Priced below replacement cost.", true
		}
		if v < 0.6 {
			return "Paying well above replacement cost.", false
		}
	case FieldDaysOnMarket:
		if v > 120 {
			return fmt.Sprintf("%.0f days on market suggests the price has not cleared.", v), false
		}
		if v <= 21 && v > 0 {
			return "Fresh listing, little negotiation leverage but real demand.", true
		}
	case FieldExpenseRatio:
		if v > 0.55 {
			return fmt.Sprintf("Expenses eat %.0f%% of rent.", v*100), false
		}
		if v < 0.35 {
			return fmt.Sprintf("Lean expense load at %.0f%% of rent.", v*100), true
		}
	}
	return "", false
}

func fieldsByWeight(weights map[string]float64) []string {
	ids := make([]string, 0, len(weights))
	for id := range weights {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if weights[ids[i]] != weights[ids[j]] {
			return weights[ids[i]] > weights[ids[j]]
		}
		return ids[i] < ids[j]
	})
	return ids
}
