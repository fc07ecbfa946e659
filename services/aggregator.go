package services

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"rental-ooh/models"
)

const weightTolerance = 1e-6

// AggregateOptions controls a provincial aggregation.
type AggregateOptions struct {
	// Region labels errors.
	Region string
	// Strata restricts the aggregation. Nil means every stratum seen in the
	// statistics of a weighted city.
	Strata []models.StratumKey
	// Quality holds per-stratum adjustment factors applied after weighting.
	// Strata without an entry use a factor of 1.
	Quality map[models.StratumKey]float64
	// Partial keeps going when a stratum has no data, returning what could
	// be aggregated together with the joined InsufficientDataErrors.
	Partial bool
}

// Aggregate combines city-level stratum means into a weighted regional mean
// per stratum. For each stratum the weights are renormalized over the cities
// that have a mean for it. Cities are visited in sorted order, so the result
// does not depend on the order the statistics were produced in.
func Aggregate(
	cityStats map[string]map[models.StratumKey]models.StratumStatistic,
	weights map[string]float64,
	opts AggregateOptions,
) (map[models.StratumKey]float64, error) {
	cities, err := sortedWeightedCities(weights)
	if err != nil {
		return nil, err
	}

	strata := opts.Strata
	if strata == nil {
		strata = unionKeys(cityStats, cities)
	} else {
		strata = sortedKeys(strata)
	}

	out := make(map[models.StratumKey]float64, len(strata))
	var missing []error

	for _, k := range strata {
		var weighted, totalWeight float64
		for _, city := range cities {
			st, ok := cityStats[city][k]
			if !ok || !st.HasData() {
				continue
			}
			w := weights[city]
			weighted += w * st.MeanRent.Value
			totalWeight += w
		}

		if totalWeight == 0 {
			insufficient := &models.InsufficientDataError{Region: opts.Region, Stratum: k}
			if !opts.Partial {
				return nil, insufficient
			}
			missing = append(missing, insufficient)
			continue
		}

		factor := 1.0
		if f, ok := opts.Quality[k]; ok {
			factor = f
		}
		out[k] = weighted / totalWeight * factor
	}

	return out, errors.Join(missing...)
}

func sortedWeightedCities(weights map[string]float64) ([]string, error) {
	if len(weights) == 0 {
		return nil, &models.ConfigurationError{Field: "weights", Reason: "no city weights"}
	}

	cities := make([]string, 0, len(weights))
	for city := range weights {
		cities = append(cities, city)
	}
	sort.Strings(cities)

	var total float64
	for _, city := range cities {
		w := weights[city]
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, &models.ConfigurationError{Field: "weights", Reason: fmt.Sprintf("weight of %q must be non-negative", city)}
		}
		total += w
	}
	if math.Abs(total-1) > weightTolerance {
		return nil, &models.ConfigurationError{Field: "weights", Reason: fmt.Sprintf("weights sum to %g, want 1", total)}
	}
	return cities, nil
}

func unionKeys(cityStats map[string]map[models.StratumKey]models.StratumStatistic, cities []string) []models.StratumKey {
	seen := make(map[models.StratumKey]struct{})
	for _, city := range cities {
		for k := range cityStats[city] {
			seen[k] = struct{}{}
		}
	}
	keys := make([]models.StratumKey, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	return sortedKeys(keys)
}

func sortedKeys(keys []models.StratumKey) []models.StratumKey {
	out := append([]models.StratumKey(nil), keys...)
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}
