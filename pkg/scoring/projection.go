package scoring

import "math"

// ProjectionInput parameterizes a levered hold-period projection. Zero
// values fall back to the defaults below.
type ProjectionInput struct {
	Years         int     `json:"years" yaml:"years"`
	RentGrowth    float64 `json:"rent_growth" yaml:"rentGrowth"`
	ExpenseGrowth float64 `json:"expense_growth" yaml:"expenseGrowth"`
	ExitCapRate   float64 `json:"exit_cap_rate" yaml:"exitCapRate"`
	SellingCosts  float64 `json:"selling_costs" yaml:"sellingCosts"`
	DiscountRate  float64 `json:"discount_rate" yaml:"discountRate"`
}

// YearCashFlow is one projected year.
type YearCashFlow struct {
	Year        int     `json:"year" yaml:"year"`
	NOI         float64 `json:"noi" yaml:"noi"`
	DebtService float64 `json:"debt_service" yaml:"debtService"`
	CashFlow    float64 `json:"cash_flow" yaml:"cashFlow"`
	LoanBalance float64 `json:"loan_balance" yaml:"loanBalance"`
}

// Projection is the hold-period result: yearly levered cashflows plus the
// sale proceeds and return metrics.
type Projection struct {
	Years        []YearCashFlow `json:"years" yaml:"years"`
	SalePrice    float64        `json:"sale_price" yaml:"salePrice"`
	SaleProceeds float64        `json:"sale_proceeds" yaml:"saleProceeds"`
	CashInvested float64        `json:"cash_invested" yaml:"cashInvested"`
	IRR          *float64       `json:"irr,omitempty" yaml:"irr,omitempty"`
	NPV          float64        `json:"npv" yaml:"npv"`
}

const (
	defaultHoldYears     = 5
	defaultExpenseGrowth = 0.03
	defaultSellingCosts  = 0.06
	defaultDiscountRate  = 0.08
)

// Project builds a levered hold-period projection for a deal. It requires
// price, rent, expenses, and financing terms; anything less returns nil.
func Project(d Deal, in ProjectionInput) *Projection {
	if d.Price == nil || d.MonthlyRent == nil || d.MonthlyExpenses == nil ||
		d.DownPaymentPct == nil || d.InterestRatePct == nil || d.TermYears == nil {
		return nil
	}

	if in.Years <= 0 {
		in.Years = defaultHoldYears
	}
	if in.RentGrowth == 0 && d.RentGrowth != nil {
		in.RentGrowth = *d.RentGrowth
	}
	if in.ExpenseGrowth == 0 {
		in.ExpenseGrowth = defaultExpenseGrowth
	}
	if in.SellingCosts == 0 {
		in.SellingCosts = defaultSellingCosts
	}
	if in.DiscountRate == 0 {
		in.DiscountRate = defaultDiscountRate
	}

	vac := vacancyDefault
	if d.VacancyRate != nil {
		vac = *d.VacancyRate
	}

	loanAmount := *d.Price * (1 - *d.DownPaymentPct/100)
	payment := MonthlyPayment(loanAmount, *d.InterestRatePct, *d.TermYears)
	monthlyRate := (*d.InterestRatePct / 100) / 12

	p := &Projection{
		CashInvested: *d.Price * (*d.DownPaymentPct / 100),
	}

	balance := loanAmount
	rent := *d.MonthlyRent
	expenses := *d.MonthlyExpenses
	cashflows := []float64{-p.CashInvested}
	noiFinal := 0.0

	for y := 1; y <= in.Years; y++ {
		noi := (rent*(1-vac) - expenses) * 12
		noiFinal = noi

		for m := 0; m < 12 && balance > 0; m++ {
			interest := balance * monthlyRate
			principal := payment - interest
			balance = math.Max(balance-principal, 0)
		}

		cf := noi - payment*12
		p.Years = append(p.Years, YearCashFlow{
			Year:        y,
			NOI:         noi,
			DebtService: payment * 12,
			CashFlow:    cf,
			LoanBalance: balance,
		})
		cashflows = append(cashflows, cf)

		rent *= 1 + in.RentGrowth
		expenses *= 1 + in.ExpenseGrowth
	}

	// exit value from the final year's NOI; fall back to entry price when
	// no usable exit cap exists
	if in.ExitCapRate > 0 && noiFinal > 0 {
		p.SalePrice = noiFinal / in.ExitCapRate
	} else {
		p.SalePrice = *d.Price
	}
	p.SaleProceeds = p.SalePrice*(1-in.SellingCosts) - balance
	cashflows[len(cashflows)-1] += p.SaleProceeds

	p.NPV = NPV(in.DiscountRate, cashflows)
	p.IRR = IRR(cashflows)
	return p
}

// NPV discounts annual cashflows at the given rate. The first element is
// year zero and is not discounted.
func NPV(rate float64, cashflows []float64) float64 {
	var total float64
	for i, cf := range cashflows {
		total += cf / math.Pow(1+rate, float64(i))
	}
	return total
}

// IRR solves for the internal rate of return by bisection over annual
// cashflows. Returns nil when no sign change exists in (-0.99, 10).
func IRR(cashflows []float64) *float64 {
	lo, hi := -0.99, 10.0
	flo, fhi := NPV(lo, cashflows), NPV(hi, cashflows)
	if flo*fhi > 0 {
		return nil
	}
	for i := 0; i < 200; i++ {
		mid := (lo + hi) / 2
		fm := NPV(mid, cashflows)
		if math.Abs(fm) < 1e-9 {
			return ptr(mid)
		}
		if flo*fm < 0 {
			hi = mid
		} else {
			lo, flo = mid, fm
		}
	}
	return ptr((lo + hi) / 2)
}
