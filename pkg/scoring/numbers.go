package scoring

import "math"

// Deal carries the raw, sparse deal inputs a caller collected (manually or
// via enrichment). Pointers mark optional values; the grader intentionally
// accepts partial data.
type Deal struct {
	Asset           AssetClass `json:"asset_class" yaml:"assetClass"`
	Address         string     `json:"address,omitempty" yaml:"address,omitempty"`
	Price           *float64   `json:"price,omitempty" yaml:"price,omitempty"`
	ReplacementCost *float64   `json:"replacement_cost,omitempty" yaml:"replacementCost,omitempty"`
	MonthlyRent     *float64   `json:"monthly_rent,omitempty" yaml:"monthlyRent,omitempty"`
	MonthlyExpenses *float64   `json:"monthly_expenses,omitempty" yaml:"monthlyExpenses,omitempty"`
	VacancyRate     *float64   `json:"vacancy_rate,omitempty" yaml:"vacancyRate,omitempty"`
	DownPaymentPct  *float64   `json:"down_payment_pct,omitempty" yaml:"downPaymentPct,omitempty"`
	InterestRatePct *float64   `json:"interest_rate_pct,omitempty" yaml:"interestRatePct,omitempty"`
	TermYears       *int       `json:"term_years,omitempty" yaml:"termYears,omitempty"`
	DaysOnMarket    *int       `json:"days_on_market,omitempty" yaml:"daysOnMarket,omitempty"`
	LocationScore   *float64   `json:"location_score,omitempty" yaml:"locationScore,omitempty"`
	RentGrowth      *float64   `json:"rent_growth,omitempty" yaml:"rentGrowth,omitempty"`
	LastSalePrice   *float64   `json:"last_sale_price,omitempty" yaml:"lastSalePrice,omitempty"`
	LastSaleDate    string     `json:"last_sale_date,omitempty" yaml:"lastSaleDate,omitempty"`
	RentRegulation  bool       `json:"rent_regulation,omitempty" yaml:"rentRegulation,omitempty"`
}

// Numbers are the derived underwriting metrics computed from a Deal. Nil
// means the inputs required for that metric were not supplied.
type Numbers struct {
	NOIAnnual      *float64 `json:"noi_annual,omitempty" yaml:"noiAnnual,omitempty"`
	CapRate        *float64 `json:"cap_rate,omitempty" yaml:"capRate,omitempty"`
	LoanPayment    *float64 `json:"loan_payment,omitempty" yaml:"loanPayment,omitempty"`
	CashFlowMonth  *float64 `json:"cash_flow_month,omitempty" yaml:"cashFlowMonth,omitempty"`
	CashOnCash     *float64 `json:"coc_return,omitempty" yaml:"cocReturn,omitempty"`
	StressDSCR     *float64 `json:"dscr_stress,omitempty" yaml:"dscrStress,omitempty"`
	DebtYield      *float64 `json:"debt_yield,omitempty" yaml:"debtYield,omitempty"`
	ExpenseRatio   *float64 `json:"expense_ratio,omitempty" yaml:"expenseRatio,omitempty"`
	PriceChangePct *float64 `json:"price_change_pct,omitempty" yaml:"priceChangePct,omitempty"`
	PriceChangeAbs *float64 `json:"price_change_abs,omitempty" yaml:"priceChangeAbs,omitempty"`
}

const (
	// vacancyDefault is assumed when rent and expenses are present but no
	// vacancy rate was supplied.
	vacancyDefault = 0.08

	// stressRentHaircut is the rent shock applied for the stress DSCR.
	stressRentHaircut = 0.20
)

// MonthlyPayment computes the amortized monthly payment for a loan.
func MonthlyPayment(principal, annualRatePct float64, termYears int) float64 {
	r := (annualRatePct / 100) / 12
	n := float64(termYears * 12)
	if n < 1 {
		n = 1
	}
	if r <= 0 {
		return principal / n
	}
	f := math.Pow(1+r, n)
	return principal * (r * f) / (f - 1)
}

// ComputeNumbers derives every metric the supplied inputs allow. It never
// fails: missing inputs just leave the dependent metrics nil.
func ComputeNumbers(d Deal) Numbers {
	var n Numbers

	if d.MonthlyRent != nil && d.MonthlyExpenses != nil {
		vac := vacancyDefault
		if d.VacancyRate != nil {
			vac = *d.VacancyRate
		}
		effRent := *d.MonthlyRent * (1 - vac)
		noiMonth := effRent - *d.MonthlyExpenses
		n.NOIAnnual = ptr(noiMonth * 12)

		if *d.MonthlyRent > 0 {
			n.ExpenseRatio = ptr(*d.MonthlyExpenses / *d.MonthlyRent)
		}
		if d.Price != nil && *d.Price > 0 {
			n.CapRate = ptr(*n.NOIAnnual / *d.Price)
		}
	}

	if d.Price != nil && d.DownPaymentPct != nil && d.InterestRatePct != nil && d.TermYears != nil {
		loanAmount := *d.Price * (1 - *d.DownPaymentPct/100)
		pay := MonthlyPayment(loanAmount, *d.InterestRatePct, *d.TermYears)
		n.LoanPayment = ptr(pay)

		if n.NOIAnnual != nil {
			noiMonth := *n.NOIAnnual / 12
			n.CashFlowMonth = ptr(noiMonth - pay)
			cashInvested := *d.Price * (*d.DownPaymentPct / 100)
			if cashInvested > 0 {
				n.CashOnCash = ptr(*n.CashFlowMonth * 12 / cashInvested)
			}
			if loanAmount > 0 {
				n.DebtYield = ptr(*n.NOIAnnual / loanAmount)
			}
		}

		if d.MonthlyRent != nil && d.MonthlyExpenses != nil {
			vac := vacancyDefault
			if d.VacancyRate != nil {
				vac = *d.VacancyRate
			}
			stressedRent := *d.MonthlyRent * (1 - stressRentHaircut) * (1 - vac)
			stressedNOIMonth := stressedRent - *d.MonthlyExpenses
			n.StressDSCR = ptr(stressedNOIMonth / math.Max(pay, 1))
		}
	}

	if d.Price != nil && d.LastSalePrice != nil && *d.LastSalePrice > 0 {
		abs := *d.Price - *d.LastSalePrice
		n.PriceChangeAbs = ptr(abs)
		n.PriceChangePct = ptr(abs / *d.LastSalePrice)
	}

	return n
}

// Request assembles a scoring Request from the deal and its derived numbers,
// mapping whatever is available onto schema fields. The rate bucket is
// supplied by the caller (enrichment or config), never fetched here.
func (d Deal) Request(n Numbers, rate RateBucket) Request {
	f := make(map[string]float64)

	if d.VacancyRate != nil {
		f[FieldOccupancy] = 1 - *d.VacancyRate
	}
	if n.CapRate != nil && *n.CapRate > 0 {
		f[FieldCapRate] = math.Min(*n.CapRate, 0.5)
	}
	if d.RentGrowth != nil {
		f[FieldRentGrowth] = *d.RentGrowth
	}
	if n.DebtYield != nil && *n.DebtYield > 0 {
		f[FieldDebtYield] = clamp(*n.DebtYield, 0.001, 1)
	}
	if d.LocationScore != nil {
		f[FieldLocationScore] = *d.LocationScore
	}
	if d.ReplacementCost != nil && d.Price != nil && *d.Price > 0 {
		f[FieldReplacementRatio] = *d.ReplacementCost / *d.Price
	}
	if d.DaysOnMarket != nil {
		f[FieldDaysOnMarket] = float64(*d.DaysOnMarket)
	}
	if n.ExpenseRatio != nil {
		f[FieldExpenseRatio] = clamp(*n.ExpenseRatio, 0, 1)
	}

	return Request{
		Asset:          d.Asset,
		Rate:           rate,
		Fields:         f,
		RentRegulation: d.RentRegulation,
		StressDSCR:     n.StressDSCR,
	}
}

func ptr[T any](v T) *T {
	return &v
}
