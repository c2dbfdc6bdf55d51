package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRentCast_NoAPIKey(t *testing.T) {
	r := NewRentCast("", "")
	_, err := r.GetProperty(context.Background(), "12 Main St")
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestRentCast_GetProperty(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		assert.Equal(t, "/properties", r.URL.Path)
		assert.Equal(t, "12 Main St, Springfield", r.URL.Query().Get("address"))
		w.Write([]byte(`[{
			"formattedAddress": "12 Main St, Springfield",
			"propertyType": "Single Family",
			"squareFootage": 1820,
			"yearBuilt": 1987,
			"lastSaleDate": "2019-04-12",
			"lastSalePrice": 420000,
			"zipCode": "62704"
		}]`))
	}))
	defer srv.Close()

	rc := NewRentCast("test-key", srv.URL)

	rec, err := rc.GetProperty(context.Background(), "12 Main St, Springfield")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 420000.0, rec.LastSalePrice)
	assert.Equal(t, "62704", rec.ZipCode)

	// second lookup is served from cache
	_, err = rc.GetProperty(context.Background(), "12 Main St, Springfield")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRentCast_GetProperty_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	rc := NewRentCast("test-key", srv.URL)
	rec, err := rc.GetProperty(context.Background(), "nowhere")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestRentCast_GetValueAndRentEstimates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/avm/value":
			w.Write([]byte(`{"price": 455000, "priceRangeLow": 430000, "priceRangeHigh": 480000}`))
		case "/avm/rent/long-term":
			w.Write([]byte(`{"rent": 2450, "rentRangeLow": 2200, "rentRangeHigh": 2700}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	rc := NewRentCast("test-key", srv.URL)

	v, err := rc.GetValueEstimate(context.Background(), "12 Main St")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, 455000.0, v.Price)

	r, err := rc.GetRentEstimate(context.Background(), "12 Main St")
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, 2450.0, r.Rent)
}

func TestRentCast_GetMarketStats(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/markets", r.URL.Path)
		assert.Equal(t, "62704", r.URL.Query().Get("zipCode"))
		w.Write([]byte(`{
			"zipCode": "62704",
			"saleData": {"averageDaysOnMarket": 41, "medianPrice": 310000},
			"rentalData": {"medianRent": 1650, "medianRentYoY": 0.032}
		}`))
	}))
	defer srv.Close()

	rc := NewRentCast("test-key", srv.URL)
	m, err := rc.GetMarketStats(context.Background(), "62704")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, 41.0, m.AverageDaysOnMarket)
	assert.Equal(t, 0.032, m.RentGrowthYoY)
}
