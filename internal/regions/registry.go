// Package regions loads the configured forecasting regions from a YAML file.
package regions

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Region is one forecasting and scoring area.
type Region struct {
	ID            string   `yaml:"id"`
	Name          string   `yaml:"name"`
	State         string   `yaml:"state"`
	Jurisdictions []string `yaml:"jurisdictions"`
	// CountyFIPS is the 5-digit state+county code used for census lookups.
	CountyFIPS   string  `yaml:"county_fips"`
	LandAreaSqMi float64 `yaml:"land_area_sq_mi"`
	// Disabled regions stay in the file but are skipped by batch jobs.
	Disabled bool `yaml:"disabled"`
}

type file struct {
	Regions []Region `yaml:"regions"`
}

// Registry is an immutable set of regions in file order.
type Registry struct {
	regions []Region
	byID    map[string]Region
}

// Load reads and validates a registry file.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read regions file: %w", err)
	}
	return Parse(data)
}

// Parse validates registry YAML: ids are required, unique and contain no whitespace.
func Parse(data []byte) (*Registry, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse regions file: %w", err)
	}
	return New(f.Regions)
}

// New builds a registry from regions already in memory.
func New(regions []Region) (*Registry, error) {
	r := &Registry{byID: make(map[string]Region, len(regions))}
	for i, region := range regions {
		region.ID = strings.TrimSpace(region.ID)
		region.State = strings.ToUpper(strings.TrimSpace(region.State))
		if region.ID == "" {
			return nil, fmt.Errorf("region %d: id is required", i)
		}
		if strings.ContainsAny(region.ID, " \t/") {
			return nil, fmt.Errorf("region %q: id must not contain spaces or slashes", region.ID)
		}
		if region.CountyFIPS != "" && !isFIPS(region.CountyFIPS) {
			return nil, fmt.Errorf("region %q: county_fips must be 5 digits", region.ID)
		}
		if _, dup := r.byID[region.ID]; dup {
			return nil, fmt.Errorf("region %q: duplicate id", region.ID)
		}
		r.byID[region.ID] = region
		r.regions = append(r.regions, region)
	}
	return r, nil
}

// IDs returns the enabled region ids in file order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.regions))
	for _, region := range r.regions {
		if !region.Disabled {
			ids = append(ids, region.ID)
		}
	}
	return ids
}

// Get looks up a region by id, enabled or not.
func (r *Registry) Get(id string) (Region, bool) {
	region, ok := r.byID[id]
	return region, ok
}

// Has reports whether id is a known region.
func (r *Registry) Has(id string) bool {
	_, ok := r.byID[id]
	return ok
}

// States returns the distinct state codes, sorted.
func (r *Registry) States() []string {
	seen := map[string]bool{}
	var states []string
	for _, region := range r.regions {
		if region.State != "" && !seen[region.State] {
			seen[region.State] = true
			states = append(states, region.State)
		}
	}
	sort.Strings(states)
	return states
}

func isFIPS(s string) bool {
	if len(s) != 5 {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
