// Package service merges census demographics into weekly region context signals.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"leadgen_backend/internal/demographics/client"
	"leadgen_backend/internal/forecasting/domain"
	"leadgen_backend/internal/forecasting/ports"
	"leadgen_backend/internal/regions"
	"leadgen_backend/platform/logger"
)

const cacheTTL = 30 * 24 * time.Hour

// ProfileSource fetches county estimates.
type ProfileSource interface {
	GetCountyProfile(ctx context.Context, countyFIPS string) (*client.CountyProfile, error)
}

// SignalStore reads and writes the per-week signal bag.
type SignalStore interface {
	GetContextSignals(ctx context.Context, regionID string, weekStart time.Time) (ports.ContextSignals, error)
	UpsertContextSignals(ctx context.Context, regionID string, weekStart time.Time, signals ports.ContextSignals) error
}

// RefreshResult reports what a refresh wrote.
type RefreshResult struct {
	RegionID string             `json:"regionId"`
	Weeks    int                `json:"weeks"`
	Signals  map[string]float64 `json:"signals"`
}

type cacheEntry struct {
	profile   *client.CountyProfile
	expiresAt time.Time
}

// Service refreshes demographic signals for registry regions.
type Service struct {
	source   ProfileSource
	signals  SignalStore
	registry *regions.Registry
	log      *logger.Logger
	cache    map[string]cacheEntry
	cacheMu  sync.RWMutex
	cacheTTL time.Duration
	now      func() time.Time
}

// New creates a new demographics service.
func New(source ProfileSource, signals SignalStore, registry *regions.Registry, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		source:   source,
		signals:  signals,
		registry: registry,
		log:      log,
		cache:    make(map[string]cacheEntry),
		cacheTTL: cacheTTL,
		now:      time.Now,
	}
}

// Signals converts a county profile to feature-named signals. Population
// density needs the region's land area and is skipped without it.
func Signals(profile *client.CountyProfile, landAreaSqMi float64) ports.ContextSignals {
	out := ports.ContextSignals{}
	if profile == nil {
		return out
	}
	if profile.Population != nil && landAreaSqMi > 0 {
		out["population_density"] = *profile.Population / landAreaSqMi
	}
	if profile.HousingUnits != nil {
		out["housing_units"] = *profile.HousingUnits
	}
	if profile.MedianHouseholdIncome != nil {
		out["median_household_income"] = *profile.MedianHouseholdIncome
	}
	if profile.ConstructionPct != nil {
		out["construction_employment_pct"] = *profile.ConstructionPct
	}
	return out
}

// RefreshRegion writes the region's demographic signals into each of the last
// weeks weeks (including the current one). Other signals already stored for a
// week are kept.
func (s *Service) RefreshRegion(ctx context.Context, regionID string, weeks int) (*RefreshResult, error) {
	region, ok := s.registry.Get(regionID)
	if !ok {
		return nil, fmt.Errorf("unknown region %q", regionID)
	}
	if region.CountyFIPS == "" {
		return nil, fmt.Errorf("region %q has no county_fips", regionID)
	}
	if weeks < 1 {
		weeks = 1
	}

	profile, err := s.profile(ctx, region.CountyFIPS)
	if err != nil {
		return nil, err
	}
	demo := Signals(profile, region.LandAreaSqMi)
	result := &RefreshResult{RegionID: regionID, Signals: demo}
	if len(demo) == 0 {
		s.log.Warn("no demographic data for region", "regionId", regionID, "county", region.CountyFIPS)
		return result, nil
	}

	current := domain.WeekStart(s.now())
	for i := 0; i < weeks; i++ {
		week := current.AddDate(0, 0, -7*i)
		existing, err := s.signals.GetContextSignals(ctx, regionID, week)
		if err != nil && !errors.Is(err, domain.ErrContextUnavailable) {
			return result, err
		}
		merged := ports.ContextSignals{}
		for k, v := range existing {
			merged[k] = v
		}
		for k, v := range demo {
			merged[k] = v
		}
		if err := s.signals.UpsertContextSignals(ctx, regionID, week, merged); err != nil {
			return result, err
		}
		result.Weeks++
	}

	s.log.Info("demographic signals refreshed", "regionId", regionID, "weeks", result.Weeks, "signals", len(demo))
	return result, nil
}

func (s *Service) profile(ctx context.Context, countyFIPS string) (*client.CountyProfile, error) {
	s.cacheMu.RLock()
	entry, ok := s.cache[countyFIPS]
	s.cacheMu.RUnlock()
	if ok && s.now().Before(entry.expiresAt) {
		return entry.profile, nil
	}

	profile, err := s.source.GetCountyProfile(ctx, countyFIPS)
	if err != nil {
		return nil, err
	}

	s.cacheMu.Lock()
	s.cache[countyFIPS] = cacheEntry{profile: profile, expiresAt: s.now().Add(s.cacheTTL)}
	s.cacheMu.Unlock()
	return profile, nil
}
