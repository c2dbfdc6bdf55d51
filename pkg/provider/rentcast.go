package provider

import (
	"context"
	"fmt"
	"net/url"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/pkg/errors"

	"github.com/plupoV2/aire/pkg/net"
)

const (
	rentcastBaseURL = "https://api.rentcast.io/v1"

	// property and AVM lookups change slowly, markets even slower
	propertyCacheTTL = time.Hour
	marketCacheTTL   = 6 * time.Hour
)

// ErrNoAPIKey means the provider was constructed without a credential.
var ErrNoAPIKey = errors.New("provider API key not configured")

// PropertyRecord is the subset of a RentCast property lookup the grader
// uses.
type PropertyRecord struct {
	FormattedAddress string  `json:"formattedAddress"`
	PropertyType     string  `json:"propertyType"`
	Bedrooms         float64 `json:"bedrooms"`
	Bathrooms        float64 `json:"bathrooms"`
	SquareFootage    float64 `json:"squareFootage"`
	YearBuilt        int     `json:"yearBuilt"`
	LastSaleDate     string  `json:"lastSaleDate"`
	LastSalePrice    float64 `json:"lastSalePrice"`
	ZipCode          string  `json:"zipCode"`
	County           string  `json:"county"`
}

// ValueEstimate is a RentCast AVM value response.
type ValueEstimate struct {
	Price      float64 `json:"price"`
	PriceLow   float64 `json:"priceRangeLow"`
	PriceHigh  float64 `json:"priceRangeHigh"`
	Confidence float64 `json:"confidence,omitempty"`
}

// RentEstimate is a RentCast long-term rent AVM response.
type RentEstimate struct {
	Rent     float64 `json:"rent"`
	RentLow  float64 `json:"rentRangeLow"`
	RentHigh float64 `json:"rentRangeHigh"`
}

// MarketStats is a RentCast zip-level market snapshot.
type MarketStats struct {
	ZipCode    string `json:"zipCode"`
	SaleData   `json:"saleData"`
	RentalData `json:"rentalData"`
}

type SaleData struct {
	AverageDaysOnMarket float64 `json:"averageDaysOnMarket"`
	MedianPrice         float64 `json:"medianPrice"`
}

type RentalData struct {
	MedianRent     float64 `json:"medianRent"`
	RentGrowthYoY  float64 `json:"medianRentYoY,omitempty"`
	AverageRentPSF float64 `json:"averageRentPerSquareFoot,omitempty"`
}

// RentCast is a client for the RentCast property data API. Responses are
// cached in memory so repeated scores of the same address stay cheap.
type RentCast struct {
	apiKey  string
	baseURL string
	cache   *gocache.Cache
}

// NewRentCast builds a client. The base URL override is for tests.
func NewRentCast(apiKey string, baseURL string) *RentCast {
	if baseURL == "" {
		baseURL = rentcastBaseURL
	}
	return &RentCast{
		apiKey:  apiKey,
		baseURL: baseURL,
		cache:   gocache.New(propertyCacheTTL, 2*propertyCacheTTL),
	}
}

// GetProperty looks up the property record for an address.
func (r *RentCast) GetProperty(ctx context.Context, address string) (*PropertyRecord, error) {
	u := fmt.Sprintf("%s/properties?address=%s", r.baseURL, url.QueryEscape(address))

	// the properties endpoint returns a list even for exact addresses
	list, err := getCached[[]PropertyRecord](ctx, r, u, propertyCacheTTL)
	if err != nil {
		return nil, err
	}
	if list == nil || len(*list) == 0 {
		return nil, nil
	}
	return &(*list)[0], nil
}

// GetValueEstimate returns the AVM sale value for an address.
func (r *RentCast) GetValueEstimate(ctx context.Context, address string) (*ValueEstimate, error) {
	u := fmt.Sprintf("%s/avm/value?address=%s", r.baseURL, url.QueryEscape(address))
	return getCached[ValueEstimate](ctx, r, u, propertyCacheTTL)
}

// GetRentEstimate returns the long-term rent AVM for an address.
func (r *RentCast) GetRentEstimate(ctx context.Context, address string) (*RentEstimate, error) {
	u := fmt.Sprintf("%s/avm/rent/long-term?address=%s", r.baseURL, url.QueryEscape(address))
	return getCached[RentEstimate](ctx, r, u, propertyCacheTTL)
}

// GetMarketStats returns zip-level sale and rental statistics.
func (r *RentCast) GetMarketStats(ctx context.Context, zipCode string) (*MarketStats, error) {
	u := fmt.Sprintf("%s/markets?zipCode=%s", r.baseURL, url.QueryEscape(zipCode))
	return getCached[MarketStats](ctx, r, u, marketCacheTTL)
}

func getCached[T any](ctx context.Context, r *RentCast, u string, ttl time.Duration) (*T, error) {
	if r.apiKey == "" {
		return nil, ErrNoAPIKey
	}

	if v, ok := r.cache.Get(u); ok {
		return v.(*T), nil
	}

	var out T
	err := net.GetJSON(ctx, u, map[string]string{"X-Api-Key": r.apiKey}, &out)
	if err != nil {
		if errors.Is(err, net.ErrorURLNotFound) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "rentcast request failed: %s", u)
	}

	r.cache.Set(u, &out, ttl)
	return &out, nil
}
