package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/plupoV2/aire/pkg/scoring"
)

// Document is a fully assembled analysis report, ready for text or CSV
// rendering. It carries no behavior beyond formatting; a PDF renderer can
// consume either output.
type Document struct {
	GeneratedAt time.Time            `json:"generated_at" yaml:"generatedAt"`
	Address     string               `json:"address,omitempty" yaml:"address,omitempty"`
	AssetClass  scoring.AssetClass   `json:"asset_class" yaml:"assetClass"`
	RateEnv     scoring.RateBucket   `json:"rate_env" yaml:"rateEnv"`
	Result      *scoring.Result      `json:"result" yaml:"result"`
	Numbers     scoring.Numbers      `json:"numbers" yaml:"numbers"`
	Narrative   scoring.Narrative    `json:"narrative" yaml:"narrative"`
	Sensitivity *scoring.Sensitivity `json:"sensitivity,omitempty" yaml:"sensitivity,omitempty"`
	Projection  *scoring.Projection  `json:"projection,omitempty" yaml:"projection,omitempty"`
}

const lineWidth = 64

// Text renders the report as a plain-text document.
func (d *Document) Text() string {
	var b strings.Builder
	rule := strings.Repeat("=", lineWidth)
	thin := strings.Repeat("-", lineWidth)

	fmt.Fprintf(&b, "%s\n", rule)
	fmt.Fprintf(&b, "AIRE DEAL REPORT\n")
	if d.Address != "" {
		fmt.Fprintf(&b, "%s\n", d.Address)
	}
	fmt.Fprintf(&b, "%s | %s rates | %s\n", d.AssetClass, d.RateEnv,
		d.GeneratedAt.Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "%s\n\n", rule)

	if r := d.Result; r != nil {
		fmt.Fprintf(&b, "GRADE %s  SCORE %.1f/100  CONFIDENCE %.2f  COVERAGE %.0f%%\n",
			r.Grade, r.Score, r.Confidence, r.Coverage*100)
		if r.Recommendation != "" {
			fmt.Fprintf(&b, "%s\n", r.Recommendation)
		}
		b.WriteString("\n")
	}

	if d.Narrative.Headline != "" {
		fmt.Fprintf(&b, "%s\n\n", d.Narrative.Headline)
	}
	if len(d.Narrative.Strengths) > 0 {
		fmt.Fprintf(&b, "Strengths\n%s\n", thin)
		for _, s := range d.Narrative.Strengths {
			fmt.Fprintf(&b, "  + %s\n", s)
		}
		b.WriteString("\n")
	}
	if len(d.Narrative.Risks) > 0 {
		fmt.Fprintf(&b, "Risks\n%s\n", thin)
		for _, s := range d.Narrative.Risks {
			fmt.Fprintf(&b, "  - %s\n", s)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Underwriting\n%s\n", thin)
	for _, m := range d.metrics() {
		fmt.Fprintf(&b, "  %-22s %s\n", m.label, m.value)
	}
	b.WriteString("\n")

	if d.Result != nil && len(d.Result.Flags) > 0 {
		fmt.Fprintf(&b, "Flags\n%s\n", thin)
		for _, f := range d.Result.Flags {
			fmt.Fprintf(&b, "  ! %s (-%.0f) %s\n", f.Name, f.Deduction, f.Detail)
		}
		b.WriteString("\n")
	}

	if s := d.Sensitivity; s != nil {
		fmt.Fprintf(&b, "Sensitivity (rent shock rows, rate shock columns)\n%s\n", thin)
		fmt.Fprintf(&b, "  %8s", "")
		for _, rs := range s.RateShocks {
			fmt.Fprintf(&b, " %+6.1fpp", rs)
		}
		b.WriteString("\n")
		for i, rent := range s.RentShocks {
			fmt.Fprintf(&b, "  %+7.0f%%", rent*100)
			for j := range s.RateShocks {
				fmt.Fprintf(&b, " %5.1f %s", s.Scores[i][j], s.Grades[i][j])
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if p := d.Projection; p != nil {
		fmt.Fprintf(&b, "Projection (%d year hold)\n%s\n", len(p.Years), thin)
		if p.IRR != nil {
			fmt.Fprintf(&b, "  %-22s %.1f%%\n", "IRR", *p.IRR*100)
		}
		fmt.Fprintf(&b, "  %-22s %s\n", "NPV", money(p.NPV))
		fmt.Fprintf(&b, "  %-22s %s\n", "Projected sale", money(p.SalePrice))
		fmt.Fprintf(&b, "  %-22s %s\n", "Cash invested", money(p.CashInvested))
	}

	return b.String()
}

// WriteCSV renders the report as section,metric,value rows.
func (d *Document) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)

	rows := [][]string{
		{"section", "metric", "value"},
		{"deal", "address", d.Address},
		{"deal", "asset_class", string(d.AssetClass)},
		{"deal", "rate_env", string(d.RateEnv)},
	}
	if r := d.Result; r != nil {
		rows = append(rows,
			[]string{"result", "score", f2(r.Score)},
			[]string{"result", "grade", r.Grade},
			[]string{"result", "confidence", f2(r.Confidence)},
			[]string{"result", "coverage", f2(r.Coverage)},
		)
		for _, f := range r.Flags {
			rows = append(rows, []string{"flag", f.Name, f.Detail})
		}
	}
	for _, m := range d.metrics() {
		rows = append(rows, []string{"numbers", m.key, m.value})
	}

	if err := cw.WriteAll(rows); err != nil {
		return errors.Wrap(err, "failed to write report csv")
	}
	return nil
}

// RankingCSV writes one row per scored deal, for screening exports.
func RankingCSV(w io.Writer, docs []*Document) error {
	cw := csv.NewWriter(w)

	rows := [][]string{{"address", "asset_class", "score", "grade", "confidence", "cap_rate", "cash_on_cash", "flags"}}
	for _, d := range docs {
		flags := make([]string, 0, 2)
		score, grade, conf := "", "", ""
		if d.Result != nil {
			score = f2(d.Result.Score)
			grade = d.Result.Grade
			conf = f2(d.Result.Confidence)
			for _, f := range d.Result.Flags {
				flags = append(flags, f.Name)
			}
		}
		rows = append(rows, []string{
			d.Address,
			string(d.AssetClass),
			score,
			grade,
			conf,
			optF4(d.Numbers.CapRate),
			optF4(d.Numbers.CashOnCash),
			strings.Join(flags, "|"),
		})
	}

	if err := cw.WriteAll(rows); err != nil {
		return errors.Wrap(err, "failed to write ranking csv")
	}
	return nil
}

type metric struct {
	key   string
	label string
	value string
}

func (d *Document) metrics() []metric {
	n := d.Numbers
	out := make([]metric, 0, 9)
	add := func(key, label, value string) {
		out = append(out, metric{key: key, label: label, value: value})
	}

	if n.NOIAnnual != nil {
		add("noi_annual", "NOI (annual)", money(*n.NOIAnnual))
	}
	if n.CapRate != nil {
		add("cap_rate", "Cap rate", pct(*n.CapRate))
	}
	if n.LoanPayment != nil {
		add("loan_payment", "Loan payment (mo)", money(*n.LoanPayment))
	}
	if n.CashFlowMonth != nil {
		add("cash_flow_month", "Cash flow (mo)", money(*n.CashFlowMonth))
	}
	if n.CashOnCash != nil {
		add("cash_on_cash", "Cash on cash", pct(*n.CashOnCash))
	}
	if n.StressDSCR != nil {
		add("stress_dscr", "Stress DSCR", f2(*n.StressDSCR))
	}
	if n.DebtYield != nil {
		add("debt_yield", "Debt yield", pct(*n.DebtYield))
	}
	if n.ExpenseRatio != nil {
		add("expense_ratio", "Expense ratio", pct(*n.ExpenseRatio))
	}
	if n.PriceChangePct != nil {
		add("price_change_pct", "Price vs last sale", pct(*n.PriceChangePct))
	}
	return out
}

func money(v float64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	s := strconv.FormatFloat(v, 'f', 0, 64)
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteByte('$')
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return b.String()
}

func pct(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}

func f2(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func optF4(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 4, 64)
}
