package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// FillPolicy decides the value a feature column takes when its source is missing.
type FillPolicy int

const (
	// FillZero is used for counts and amounts.
	FillZero FillPolicy = iota
	// FillOne is used for ratios and indices.
	FillOne
	// FillFalse is used for boolean flags.
	FillFalse
)

// Value returns the numeric fill value for the policy.
func (p FillPolicy) Value() float64 {
	if p == FillOne {
		return 1.0
	}
	return 0
}

// FeatureRow is the daily feature record for one region. Weekly-derived fields
// carry the values of the week the day belongs to.
type FeatureRow struct {
	RegionID    string
	FeatureDate time.Time
	WeekStart   time.Time

	PermitsLag1w  float64
	PermitsLag2w  float64
	PermitsLag4w  float64
	PermitsLag8w  float64
	PermitsLag12w float64

	PermitsMA4w  float64
	PermitsMA12w float64
	PermitsMA26w float64

	PermitsTrend4w  float64
	PermitsTrend12w float64

	PermitsSeasonalIndex float64

	DayOfWeek    float64
	DayOfWeekSin float64
	DayOfWeekCos float64
	DayOfMonth   float64
	Month        float64
	MonthSin     float64
	MonthCos     float64
	Quarter      float64

	ActiveContractors      float64
	NewContractors30d      float64
	ContractorDensity      float64
	AvgProjectValue        float64
	InspectionBacklogDays  float64
	PopulationDensity      float64
	BusinessCount          float64
	HousingUnits           float64
	MedianHouseholdIncome  float64
	ConstructionEmployment float64
	EconomicIndex          float64
	WeatherSevereDays      float64
	WeatherFreezeWeek      bool
}

// Column describes one named feature and how to read or write it on a row.
type Column struct {
	Name string
	Fill FillPolicy
	num  func(r *FeatureRow) *float64
	flag func(r *FeatureRow) *bool
}

// Get returns the column value as a float (booleans as 0/1).
func (c Column) Get(r *FeatureRow) float64 {
	if c.flag != nil {
		if *c.flag(r) {
			return 1
		}
		return 0
	}
	return *c.num(r)
}

// Set stores v on the row; booleans are true for any non-zero value.
func (c Column) Set(r *FeatureRow, v float64) {
	if c.flag != nil {
		*c.flag(r) = v != 0
		return
	}
	*c.num(r) = v
}

func numCol(name string, fill FillPolicy, f func(r *FeatureRow) *float64) Column {
	return Column{Name: name, Fill: fill, num: f}
}

var featureColumns = []Column{
	numCol("permits_lag_1w", FillZero, func(r *FeatureRow) *float64 { return &r.PermitsLag1w }),
	numCol("permits_lag_2w", FillZero, func(r *FeatureRow) *float64 { return &r.PermitsLag2w }),
	numCol("permits_lag_4w", FillZero, func(r *FeatureRow) *float64 { return &r.PermitsLag4w }),
	numCol("permits_lag_8w", FillZero, func(r *FeatureRow) *float64 { return &r.PermitsLag8w }),
	numCol("permits_lag_12w", FillZero, func(r *FeatureRow) *float64 { return &r.PermitsLag12w }),
	numCol("permits_ma_4w", FillZero, func(r *FeatureRow) *float64 { return &r.PermitsMA4w }),
	numCol("permits_ma_12w", FillZero, func(r *FeatureRow) *float64 { return &r.PermitsMA12w }),
	numCol("permits_ma_26w", FillZero, func(r *FeatureRow) *float64 { return &r.PermitsMA26w }),
	numCol("permits_trend_4w", FillZero, func(r *FeatureRow) *float64 { return &r.PermitsTrend4w }),
	numCol("permits_trend_12w", FillZero, func(r *FeatureRow) *float64 { return &r.PermitsTrend12w }),
	numCol("permits_seasonal_index", FillOne, func(r *FeatureRow) *float64 { return &r.PermitsSeasonalIndex }),
	numCol("day_of_week", FillZero, func(r *FeatureRow) *float64 { return &r.DayOfWeek }),
	numCol("day_of_week_sin", FillZero, func(r *FeatureRow) *float64 { return &r.DayOfWeekSin }),
	numCol("day_of_week_cos", FillZero, func(r *FeatureRow) *float64 { return &r.DayOfWeekCos }),
	numCol("day_of_month", FillZero, func(r *FeatureRow) *float64 { return &r.DayOfMonth }),
	numCol("month", FillZero, func(r *FeatureRow) *float64 { return &r.Month }),
	numCol("month_sin", FillZero, func(r *FeatureRow) *float64 { return &r.MonthSin }),
	numCol("month_cos", FillZero, func(r *FeatureRow) *float64 { return &r.MonthCos }),
	numCol("quarter", FillZero, func(r *FeatureRow) *float64 { return &r.Quarter }),
	numCol("active_contractors", FillZero, func(r *FeatureRow) *float64 { return &r.ActiveContractors }),
	numCol("new_contractors_30d", FillZero, func(r *FeatureRow) *float64 { return &r.NewContractors30d }),
	numCol("contractor_density", FillZero, func(r *FeatureRow) *float64 { return &r.ContractorDensity }),
	numCol("avg_project_value", FillZero, func(r *FeatureRow) *float64 { return &r.AvgProjectValue }),
	numCol("inspection_backlog_days", FillZero, func(r *FeatureRow) *float64 { return &r.InspectionBacklogDays }),
	numCol("population_density", FillZero, func(r *FeatureRow) *float64 { return &r.PopulationDensity }),
	numCol("business_count", FillZero, func(r *FeatureRow) *float64 { return &r.BusinessCount }),
	numCol("housing_units", FillZero, func(r *FeatureRow) *float64 { return &r.HousingUnits }),
	numCol("median_household_income", FillZero, func(r *FeatureRow) *float64 { return &r.MedianHouseholdIncome }),
	numCol("construction_employment_pct", FillZero, func(r *FeatureRow) *float64 { return &r.ConstructionEmployment }),
	numCol("economic_index", FillOne, func(r *FeatureRow) *float64 { return &r.EconomicIndex }),
	numCol("weather_severe_days", FillZero, func(r *FeatureRow) *float64 { return &r.WeatherSevereDays }),
	{Name: "weather_freeze_week", Fill: FillFalse, flag: func(r *FeatureRow) *bool { return &r.WeatherFreezeWeek }},
}

var columnIndex = func() map[string]Column {
	idx := make(map[string]Column, len(featureColumns))
	for _, c := range featureColumns {
		idx[c.Name] = c
	}
	return idx
}()

// modelFeaturePrefixes is the whitelist used to pick model inputs.
var modelFeaturePrefixes = []string{
	"permits_", "active_", "new_", "contractor_", "avg_", "inspection_", "population_",
	"business_", "housing_", "median_", "construction_", "economic_", "weather_",
	"day_of_", "month_", "quarter",
}

// Columns returns every feature column in canonical order.
func Columns() []Column {
	out := make([]Column, len(featureColumns))
	copy(out, featureColumns)
	return out
}

// LookupColumn finds a column by name.
func LookupColumn(name string) (Column, bool) {
	c, ok := columnIndex[name]
	return c, ok
}

// ModelFeatureColumns returns the whitelisted column names in canonical order.
func ModelFeatureColumns() []string {
	names := make([]string, 0, len(featureColumns))
	for _, c := range featureColumns {
		for _, prefix := range modelFeaturePrefixes {
			if strings.HasPrefix(c.Name, prefix) {
				names = append(names, c.Name)
				break
			}
		}
	}
	return names
}

// NewFeatureRow returns a row with every column at its fill value.
func NewFeatureRow(regionID string, date time.Time) FeatureRow {
	day := DateOnly(date)
	r := FeatureRow{RegionID: regionID, FeatureDate: day, WeekStart: WeekStart(day)}
	for _, c := range featureColumns {
		c.Set(&r, c.Fill.Value())
	}
	return r
}

// Value reads a column by name.
func (r *FeatureRow) Value(name string) (float64, bool) {
	c, ok := columnIndex[name]
	if !ok {
		return 0, false
	}
	return c.Get(r), true
}

// Map returns every column as name → value, the persisted form of the row.
func (r *FeatureRow) Map() map[string]float64 {
	out := make(map[string]float64, len(featureColumns))
	for _, c := range featureColumns {
		out[c.Name] = c.Get(r)
	}
	return out
}

// FeatureRowFromMap rebuilds a row from its persisted form. Columns absent from
// values take their fill value; unknown keys are ignored.
func FeatureRowFromMap(regionID string, date time.Time, values map[string]float64) FeatureRow {
	r := NewFeatureRow(regionID, date)
	for _, c := range featureColumns {
		if v, ok := values[c.Name]; ok {
			c.Set(&r, v)
		}
	}
	r.Sanitize()
	return r
}

// Sanitize coerces NaN and infinite values to 0.
func (r *FeatureRow) Sanitize() {
	for _, c := range featureColumns {
		if c.flag != nil {
			continue
		}
		v := c.Get(r)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			c.Set(r, 0)
		}
	}
}

// Vector returns the values for columns in the given order.
func (r *FeatureRow) Vector(columns []string) ([]float64, error) {
	out := make([]float64, len(columns))
	for i, name := range columns {
		c, ok := columnIndex[name]
		if !ok {
			return nil, fmt.Errorf("unknown feature column %q", name)
		}
		out[i] = c.Get(r)
	}
	return out, nil
}
