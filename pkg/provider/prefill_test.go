package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plupoV2/aire/pkg/scoring"
)

func fakeRentCast(t *testing.T) *RentCast {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/properties":
			w.Write([]byte(`[{"formattedAddress": "12 Main St", "lastSalePrice": 420000, "lastSaleDate": "2019-04-12", "zipCode": "62704"}]`))
		case "/avm/value":
			w.Write([]byte(`{"price": 455000}`))
		case "/avm/rent/long-term":
			w.Write([]byte(`{"rent": 2450}`))
		case "/markets":
			w.Write([]byte(`{"zipCode": "62704", "saleData": {"averageDaysOnMarket": 41}, "rentalData": {"medianRentYoY": 0.032}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return NewRentCast("test-key", srv.URL)
}

func TestPrefill_FillsMissingFields(t *testing.T) {
	e := NewEnricher(fakeRentCast(t), nil)

	d := &scoring.Deal{Asset: scoring.SingleFamily, Address: "12 Main St"}
	e.Prefill(context.Background(), d)

	require.NotNil(t, d.Price)
	assert.Equal(t, 455000.0, *d.Price)
	require.NotNil(t, d.MonthlyRent)
	assert.Equal(t, 2450.0, *d.MonthlyRent)
	require.NotNil(t, d.LastSalePrice)
	assert.Equal(t, 420000.0, *d.LastSalePrice)
	assert.Equal(t, "2019-04-12", d.LastSaleDate)
	require.NotNil(t, d.DaysOnMarket)
	assert.Equal(t, 41, *d.DaysOnMarket)
	require.NotNil(t, d.RentGrowth)
	assert.Equal(t, 0.032, *d.RentGrowth)
}

func TestPrefill_SuppliedValuesWin(t *testing.T) {
	e := NewEnricher(fakeRentCast(t), nil)

	userPrice := 390000.0
	d := &scoring.Deal{Asset: scoring.SingleFamily, Address: "12 Main St", Price: &userPrice}
	e.Prefill(context.Background(), d)

	require.NotNil(t, d.Price)
	assert.Equal(t, userPrice, *d.Price)
}

func TestPrefill_NoAddressIsNoop(t *testing.T) {
	e := NewEnricher(fakeRentCast(t), nil)

	d := &scoring.Deal{Asset: scoring.SingleFamily}
	e.Prefill(context.Background(), d)
	assert.Nil(t, d.Price)
	assert.Nil(t, d.MonthlyRent)
}

func TestPrefill_ProviderOutageDegrades(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := NewEnricher(NewRentCast("test-key", srv.URL), nil)
	d := &scoring.Deal{Asset: scoring.SingleFamily, Address: "12 Main St"}
	e.Prefill(context.Background(), d)
	assert.Nil(t, d.Price)
}

func TestRateEnvironment_FallsBackToNeutral(t *testing.T) {
	var e *Enricher
	assert.Equal(t, scoring.RateNeutral, e.RateEnvironment(context.Background()))

	e = NewEnricher(nil, NewFRED("", ""))
	assert.Equal(t, scoring.RateNeutral, e.RateEnvironment(context.Background()))
}

func TestMarketStats_NoProvider(t *testing.T) {
	var e *Enricher
	_, err := e.MarketStats(context.Background(), "10001")
	assert.ErrorIs(t, err, ErrNoAPIKey)

	e = NewEnricher(nil, nil)
	_, err = e.MarketStats(context.Background(), "10001")
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestMarketStats_PassesThrough(t *testing.T) {
	e := NewEnricher(fakeRentCast(t), nil)
	m, err := e.MarketStats(context.Background(), "62704")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "62704", m.ZipCode)
	assert.Equal(t, 41.0, m.AverageDaysOnMarket)
}
