package provider

import (
	"context"
	"fmt"
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/pkg/errors"

	"github.com/plupoV2/aire/pkg/net"
	"github.com/plupoV2/aire/pkg/scoring"
)

const (
	fredBaseURL = "https://api.stlouisfed.org/fred"

	// 30yr fixed mortgage average, weekly series
	mortgageSeries = "MORTGAGE30US"

	macroCacheTTL = 6 * time.Hour

	// bucket cutoffs on the 30yr mortgage rate, in percent
	rateHighCutoff    = 6.5
	rateNeutralCutoff = 4.5
)

// ErrNoObservations means the series returned no usable data points.
var ErrNoObservations = errors.New("no observations in series response")

type fredResponse struct {
	Observations []fredObservation `json:"observations"`
}

type fredObservation struct {
	Date  string `json:"date"`
	Value string `json:"value"`
}

// FRED fetches macro series from the St. Louis Fed API.
type FRED struct {
	apiKey  string
	baseURL string
	cache   *gocache.Cache
}

// NewFRED builds a client. The base URL override is for tests.
func NewFRED(apiKey string, baseURL string) *FRED {
	if baseURL == "" {
		baseURL = fredBaseURL
	}
	return &FRED{
		apiKey:  apiKey,
		baseURL: baseURL,
		cache:   gocache.New(macroCacheTTL, 2*macroCacheTTL),
	}
}

// MortgageRate returns the latest 30yr fixed mortgage average, in percent.
func (f *FRED) MortgageRate(ctx context.Context) (float64, error) {
	if f.apiKey == "" {
		return 0, ErrNoAPIKey
	}

	u := fmt.Sprintf("%s/series/observations?series_id=%s&api_key=%s&file_type=json&sort_order=desc&limit=5",
		f.baseURL, mortgageSeries, f.apiKey)

	if v, ok := f.cache.Get(mortgageSeries); ok {
		return v.(float64), nil
	}

	var resp fredResponse
	if err := net.GetJSON(ctx, u, nil, &resp); err != nil {
		return 0, errors.Wrap(err, "fred request failed")
	}

	// series pads missing weeks with "."
	for _, obs := range resp.Observations {
		rate, err := strconv.ParseFloat(obs.Value, 64)
		if err != nil {
			continue
		}
		f.cache.Set(mortgageSeries, rate, macroCacheTTL)
		return rate, nil
	}
	return 0, ErrNoObservations
}

// RateEnvironment maps the current mortgage rate onto a rate bucket.
func (f *FRED) RateEnvironment(ctx context.Context) (scoring.RateBucket, error) {
	rate, err := f.MortgageRate(ctx)
	if err != nil {
		return "", err
	}
	return BucketForRate(rate), nil
}

// BucketForRate classifies a 30yr mortgage rate into a rate environment.
func BucketForRate(rate float64) scoring.RateBucket {
	switch {
	case rate >= rateHighCutoff:
		return scoring.RateHigh
	case rate >= rateNeutralCutoff:
		return scoring.RateNeutral
	default:
		return scoring.RateLow
	}
}
