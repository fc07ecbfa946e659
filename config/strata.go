package config

import (
	"fmt"
	"math"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"rental-ooh/models"
)

const (
	defaultTierCount = 4
	weightTolerance  = 1e-6
)

// Strata is the stratification and weighting configuration, read from YAML.
type Strata struct {
	TierCount             int                         `yaml:"tier_count"`
	FloorAreaBands        []float64                   `yaml:"floor_area_bands"`
	FloorAreaOpenMidpoint float64                     `yaml:"floor_area_open_midpoint,omitempty"`
	AgeBands              []float64                   `yaml:"age_bands"`
	MissingStratumPolicy  models.MissingStratumPolicy `yaml:"missing_stratum_policy"`
	PartialResults        bool                        `yaml:"partial_results"`
	QualityAdjustment     []QualityFactor             `yaml:"quality_adjustment,omitempty"`
	Cities                map[string]City             `yaml:"cities"`
	Regions               []Region                    `yaml:"regions"`
}

// StratumRef names a fine stratum by tier and band indexes.
type StratumRef struct {
	Tier     int `yaml:"tier"`
	AreaBand int `yaml:"area_band"`
	AgeBand  int `yaml:"age_band"`
}

// Key converts the reference to a StratumKey.
func (r StratumRef) Key() models.StratumKey {
	return models.StratumKey{Tier: r.Tier, AreaBand: r.AreaBand, AgeBand: r.AgeBand}
}

// QualityFactor is a hedonic correction applied to a stratum's aggregated rent.
type QualityFactor struct {
	StratumRef `yaml:",inline"`
	Factor     float64 `yaml:"factor"`
}

// City maps a listing-site city code to its tier.
type City struct {
	Name string `yaml:"name"`
	Tier int    `yaml:"tier"`
}

// Region is a province (or any aggregate) whose OOH value is estimated.
type Region struct {
	Name               string             `yaml:"name"`
	Weights            map[string]float64 `yaml:"weights"`
	EffectiveFloorArea []FloorArea        `yaml:"effective_floor_area"`
}

// FloorArea is the effective floor area of a stratum's owner-occupied stock.
type FloorArea struct {
	StratumRef `yaml:",inline"`
	Area       float64 `yaml:"area"`
}

// LoadStrata reads and validates the strata file at path.
func LoadStrata(path string) (*Strata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("strata: read %q: %w", path, err)
	}
	return ParseStrata(data)
}

// ParseStrata decodes YAML, applies defaults and validates the result.
func ParseStrata(data []byte) (*Strata, error) {
	var s Strata
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("strata: decode: %w", err)
	}
	s.applyDefaults()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Strata) applyDefaults() {
	if s.TierCount == 0 {
		s.TierCount = defaultTierCount
	}
	if s.MissingStratumPolicy == "" {
		s.MissingStratumPolicy = models.PolicyExclude
	}
}

// Bands returns the band definitions of the grid.
func (s *Strata) Bands() models.Bands {
	return models.Bands{
		TierCount: s.TierCount,
		FloorArea: models.BandSet{Boundaries: s.FloorAreaBands, OpenMidpoint: s.FloorAreaOpenMidpoint},
		Age:       models.BandSet{Boundaries: s.AgeBands},
	}
}

// QualityFactors returns the configured factors keyed by stratum. Strata not
// listed have an implicit factor of 1.
func (s *Strata) QualityFactors() map[models.StratumKey]float64 {
	out := make(map[models.StratumKey]float64, len(s.QualityAdjustment))
	for _, q := range s.QualityAdjustment {
		out[q.Key()] = q.Factor
	}
	return out
}

// CityTier returns the tier of a city code.
func (s *Strata) CityTier(city string) (int, bool) {
	c, ok := s.Cities[city]
	return c.Tier, ok
}

// Tiers returns the tier of every configured city code.
func (s *Strata) Tiers() map[string]int {
	out := make(map[string]int, len(s.Cities))
	for code, c := range s.Cities {
		out[code] = c.Tier
	}
	return out
}

// CityCodes returns the configured city codes in sorted order.
func (s *Strata) CityCodes() []string {
	codes := make([]string, 0, len(s.Cities))
	for code := range s.Cities {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// EffectiveAreas returns the region's effective floor area keyed by stratum.
func (r Region) EffectiveAreas() map[models.StratumKey]float64 {
	out := make(map[models.StratumKey]float64, len(r.EffectiveFloorArea))
	for _, fa := range r.EffectiveFloorArea {
		out[fa.Key()] = fa.Area
	}
	return out
}

// Validate checks bands, policy, factors, cities and region weights.
func (s *Strata) Validate() error {
	bands := s.Bands()
	if err := bands.Validate(); err != nil {
		return err
	}

	switch s.MissingStratumPolicy {
	case models.PolicyExclude, models.PolicyFallbackCoarser:
	default:
		return &models.ConfigurationError{
			Field:  "missing_stratum_policy",
			Reason: fmt.Sprintf("unknown policy %q", s.MissingStratumPolicy),
		}
	}

	seen := make(map[models.StratumKey]struct{})
	for _, q := range s.QualityAdjustment {
		k := q.Key()
		if !bands.Contains(k) {
			return &models.ConfigurationError{Field: "quality_adjustment", Reason: fmt.Sprintf("stratum %s is outside the grid", k)}
		}
		if _, dup := seen[k]; dup {
			return &models.ConfigurationError{Field: "quality_adjustment", Reason: fmt.Sprintf("stratum %s listed twice", k)}
		}
		seen[k] = struct{}{}
		if q.Factor <= 0 || math.IsNaN(q.Factor) || math.IsInf(q.Factor, 0) {
			return &models.ConfigurationError{Field: "quality_adjustment", Reason: fmt.Sprintf("factor for %s must be positive", k)}
		}
	}

	for code, c := range s.Cities {
		if c.Tier < 1 || c.Tier > s.TierCount {
			return &models.ConfigurationError{
				Field:  "cities." + code,
				Reason: fmt.Sprintf("tier %d outside 1..%d", c.Tier, s.TierCount),
			}
		}
	}

	names := make(map[string]struct{}, len(s.Regions))
	for _, r := range s.Regions {
		if r.Name == "" {
			return &models.ConfigurationError{Field: "regions", Reason: "region name is required"}
		}
		if _, dup := names[r.Name]; dup {
			return &models.ConfigurationError{Field: "regions", Reason: fmt.Sprintf("region %q listed twice", r.Name)}
		}
		names[r.Name] = struct{}{}
		if err := s.validateRegion(r, bands); err != nil {
			return err
		}
	}
	return nil
}

func (s *Strata) validateRegion(r Region, bands models.Bands) error {
	field := "regions." + r.Name
	if len(r.Weights) == 0 {
		return &models.ConfigurationError{Field: field + ".weights", Reason: "at least one city weight is required"}
	}

	// Sum in sorted order so the check does not depend on map iteration.
	cities := make([]string, 0, len(r.Weights))
	for city := range r.Weights {
		cities = append(cities, city)
	}
	sort.Strings(cities)

	var total float64
	for _, city := range cities {
		w := r.Weights[city]
		if _, ok := s.Cities[city]; !ok {
			return &models.ConfigurationError{Field: field + ".weights", Reason: fmt.Sprintf("unknown city %q", city)}
		}
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return &models.ConfigurationError{Field: field + ".weights", Reason: fmt.Sprintf("weight of %q must be non-negative", city)}
		}
		total += w
	}
	if math.Abs(total-1) > weightTolerance {
		return &models.ConfigurationError{Field: field + ".weights", Reason: fmt.Sprintf("weights sum to %g, want 1", total)}
	}

	if len(r.EffectiveFloorArea) == 0 {
		return &models.ConfigurationError{Field: field + ".effective_floor_area", Reason: "at least one stratum is required"}
	}
	seen := make(map[models.StratumKey]struct{}, len(r.EffectiveFloorArea))
	for _, fa := range r.EffectiveFloorArea {
		k := fa.Key()
		if !bands.Contains(k) {
			return &models.ConfigurationError{Field: field + ".effective_floor_area", Reason: fmt.Sprintf("stratum %s is outside the grid", k)}
		}
		if _, dup := seen[k]; dup {
			return &models.ConfigurationError{Field: field + ".effective_floor_area", Reason: fmt.Sprintf("stratum %s listed twice", k)}
		}
		seen[k] = struct{}{}
		if fa.Area < 0 || math.IsNaN(fa.Area) || math.IsInf(fa.Area, 0) {
			return &models.ConfigurationError{Field: field + ".effective_floor_area", Reason: fmt.Sprintf("area of %s must be non-negative", k)}
		}
		if _, ok := bands.FloorArea.Midpoint(k.AreaBand); !ok {
			return &models.ConfigurationError{
				Field:  "floor_area_open_midpoint",
				Reason: fmt.Sprintf("stratum %s uses the open floor-area band, which has no midpoint", k),
			}
		}
	}
	return nil
}
