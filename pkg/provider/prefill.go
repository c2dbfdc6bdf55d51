package provider

import (
	"context"
	"log/slog"

	"github.com/plupoV2/aire/pkg/scoring"
)

// Enricher fills gaps in a deal from external data. Every lookup is best
// effort: a provider outage degrades coverage, it never blocks a score.
type Enricher struct {
	rentcast *RentCast
	fred     *FRED
}

func NewEnricher(rentcast *RentCast, fred *FRED) *Enricher {
	return &Enricher{rentcast: rentcast, fred: fred}
}

// RateEnvironment resolves the macro bucket, falling back to neutral when
// FRED is unavailable.
func (e *Enricher) RateEnvironment(ctx context.Context) scoring.RateBucket {
	if e == nil || e.fred == nil {
		return scoring.RateNeutral
	}
	bucket, err := e.fred.RateEnvironment(ctx)
	if err != nil {
		slog.Warn("rate environment lookup failed, assuming neutral", "error", err)
		return scoring.RateNeutral
	}
	return bucket
}

// MarketStats exposes zip-level market data, for the dashboard.
func (e *Enricher) MarketStats(ctx context.Context, zipCode string) (*MarketStats, error) {
	if e == nil || e.rentcast == nil {
		return nil, ErrNoAPIKey
	}
	return e.rentcast.GetMarketStats(ctx, zipCode)
}

// Prefill fills nil deal fields from provider data. Supplied values always
// win over fetched ones.
func (e *Enricher) Prefill(ctx context.Context, d *scoring.Deal) {
	if e == nil || e.rentcast == nil || d == nil || d.Address == "" {
		return
	}

	rec, err := e.rentcast.GetProperty(ctx, d.Address)
	if err != nil {
		slog.Warn("property lookup failed", "address", d.Address, "error", err)
	}
	if rec != nil {
		if d.LastSalePrice == nil && rec.LastSalePrice > 0 {
			d.LastSalePrice = ptr(rec.LastSalePrice)
			d.LastSaleDate = rec.LastSaleDate
		}

		if rec.ZipCode != "" {
			e.prefillMarket(ctx, d, rec.ZipCode)
		}
	}

	if d.Price == nil {
		v, err := e.rentcast.GetValueEstimate(ctx, d.Address)
		if err != nil {
			slog.Warn("value estimate failed", "address", d.Address, "error", err)
		} else if v != nil && v.Price > 0 {
			d.Price = ptr(v.Price)
		}
	}

	if d.MonthlyRent == nil {
		r, err := e.rentcast.GetRentEstimate(ctx, d.Address)
		if err != nil {
			slog.Warn("rent estimate failed", "address", d.Address, "error", err)
		} else if r != nil && r.Rent > 0 {
			d.MonthlyRent = ptr(r.Rent)
		}
	}
}

func (e *Enricher) prefillMarket(ctx context.Context, d *scoring.Deal, zipCode string) {
	m, err := e.rentcast.GetMarketStats(ctx, zipCode)
	if err != nil {
		slog.Warn("market stats failed", "zip", zipCode, "error", err)
		return
	}
	if m == nil {
		return
	}

	if d.DaysOnMarket == nil && m.AverageDaysOnMarket > 0 {
		dom := int(m.AverageDaysOnMarket)
		d.DaysOnMarket = &dom
	}
	if d.RentGrowth == nil && m.RentGrowthYoY != 0 {
		d.RentGrowth = ptr(m.RentGrowthYoY)
	}
}

func ptr[T any](v T) *T { return &v }
