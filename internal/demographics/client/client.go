// Package client provides an HTTP client for US Census ACS county lookups.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"leadgen_backend/platform/logger"
)

const (
	defaultBaseURL     = "https://api.census.gov/data"
	defaultHTTPTimeout = 10 * time.Second
	// ACS encodes suppressed or unavailable estimates as large negative sentinels (-666666666 etc.).
	blockedValueThreshold = -99990
)

// ACS variables.
const (
	varTotalPopulation       = "B01003_001E"
	varHousingUnits          = "B25001_001E"
	varMedianHouseholdIncome = "B19013_001E"
	varConstructionPct       = "DP03_0033PE"
)

// FlexNumber handles ACS cells, which arrive as JSON strings holding numbers.
type FlexNumber float64

func (f *FlexNumber) UnmarshalJSON(data []byte) error {
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*f = FlexNumber(num)
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		if str == "" {
			*f = blockedValueThreshold - 1
			return nil
		}
		parsed, err := strconv.ParseFloat(str, 64)
		if err != nil {
			return err
		}
		*f = FlexNumber(parsed)
		return nil
	}
	if string(data) == "null" {
		*f = blockedValueThreshold - 1
		return nil
	}
	return fmt.Errorf("cannot unmarshal %s into FlexNumber", string(data))
}

// ToFloat64Ptr converts the value to a float64 pointer, filtering blocked values.
func (f *FlexNumber) ToFloat64Ptr() *float64 {
	if f == nil {
		return nil
	}
	val := float64(*f)
	if val <= blockedValueThreshold {
		return nil
	}
	return &val
}

// CountyProfile is the subset of ACS 5-year estimates used as context signals.
// Nil fields were suppressed or missing.
type CountyProfile struct {
	CountyFIPS            string
	Year                  int
	Population            *float64
	HousingUnits          *float64
	MedianHouseholdIncome *float64
	ConstructionPct       *float64
}

// Client handles Census API requests.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	year       int
	log        *logger.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL points the client at another host; used by tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// New creates a new Census client for the given ACS 5-year vintage.
func New(apiKey string, year int, log *logger.Logger, opts ...Option) *Client {
	if log == nil {
		log = logger.Nop()
	}
	c := &Client{
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		year:       year,
		log:        log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetCountyProfile fetches ACS estimates for a 5-digit county FIPS code (state + county).
// Returns nil when the county is unknown.
func (c *Client) GetCountyProfile(ctx context.Context, countyFIPS string) (*CountyProfile, error) {
	if len(countyFIPS) != 5 {
		return nil, fmt.Errorf("county fips %q must have 5 digits", countyFIPS)
	}
	state, county := countyFIPS[:2], countyFIPS[2:]

	detail, err := c.fetch(ctx, "acs/acs5", state, county, varTotalPopulation, varHousingUnits, varMedianHouseholdIncome)
	if err != nil {
		return nil, err
	}
	if detail == nil {
		return nil, nil
	}

	profile := &CountyProfile{
		CountyFIPS:            countyFIPS,
		Year:                  c.year,
		Population:            detail[varTotalPopulation].ToFloat64Ptr(),
		HousingUnits:          detail[varHousingUnits].ToFloat64Ptr(),
		MedianHouseholdIncome: detail[varMedianHouseholdIncome].ToFloat64Ptr(),
	}

	// The profile table is optional; a failure leaves ConstructionPct nil.
	extra, err := c.fetch(ctx, "acs/acs5/profile", state, county, varConstructionPct)
	if err != nil {
		c.log.Warn("census profile lookup failed", "county", countyFIPS, "error", err)
	} else if extra != nil {
		profile.ConstructionPct = extra[varConstructionPct].ToFloat64Ptr()
	}

	return profile, nil
}

// fetch returns variable → value for a single county, or nil when no row matched.
func (c *Client) fetch(ctx context.Context, dataset, state, county string, vars ...string) (map[string]*FlexNumber, error) {
	params := url.Values{}
	params.Set("get", strings.Join(vars, ","))
	params.Set("for", "county:"+county)
	params.Set("in", "state:"+state)
	if c.apiKey != "" {
		params.Set("key", c.apiKey)
	}

	reqURL := fmt.Sprintf("%s/%d/%s?%s", c.baseURL, c.year, dataset, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error("census request failed", "dataset", dataset, "error", err)
		return nil, err
	}
	defer resp.Body.Close()

	// The API answers 204 when the geography has no data.
	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		c.log.Error("census request error", "dataset", dataset, "status", resp.StatusCode)
		return nil, fmt.Errorf("census %s status %d", dataset, resp.StatusCode)
	}

	// Response is a header row followed by data rows: [["B01003_001E","state","county"],["4780913","48","201"]].
	var table [][]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&table); err != nil {
		c.log.Error("census decode failed", "dataset", dataset, "error", err)
		return nil, err
	}
	if len(table) < 2 {
		return nil, nil
	}

	header, row := table[0], table[1]
	out := make(map[string]*FlexNumber, len(vars))
	for i, raw := range header {
		if i >= len(row) {
			break
		}
		var name string
		if err := json.Unmarshal(raw, &name); err != nil {
			return nil, fmt.Errorf("census header: %w", err)
		}
		var v FlexNumber
		if err := json.Unmarshal(row[i], &v); err != nil {
			continue
		}
		out[name] = &v
	}
	return out, nil
}
