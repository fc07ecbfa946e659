package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"rental-ooh/config"
	"rental-ooh/models"
	"rental-ooh/utils"
)

// Estimator runs the stratify → resolve → aggregate → compute pipeline.
type Estimator struct {
	strata  *config.Strata
	workers int
	logger  *utils.Logger
}

// NewEstimator creates an Estimator. Cities are stratified on up to workers
// goroutines.
func NewEstimator(strata *config.Strata, workers int, logger *utils.Logger) *Estimator {
	return &Estimator{strata: strata, workers: workers, logger: logger}
}

type cityStrata struct {
	stats map[models.StratumKey]models.StratumStatistic
	err   error
}

// Run produces one OOHEstimate per configured region.
//
// Configuration problems abort before any computation. In strict mode the
// first stratum without data fails the run. In partial-results mode such
// strata are left out of their region's estimate and listed in
// MissingStrata; the estimates are returned together with the joined
// InsufficientDataErrors so the caller can report them.
func (e *Estimator) Run(ctx context.Context, recordsByCity map[string][]models.RentalRecord) (map[string]models.OOHEstimate, error) {
	if err := e.strata.Validate(); err != nil {
		return nil, err
	}

	cityStats, err := e.stratifyCities(ctx, recordsByCity)
	if err != nil {
		return nil, err
	}

	bands := e.strata.Bands()
	quality := e.strata.QualityFactors()
	out := make(map[string]models.OOHEstimate, len(e.strata.Regions))
	var warnings []error

	for _, region := range e.strata.Regions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		areas := region.EffectiveAreas()
		keys := make([]models.StratumKey, 0, len(areas))
		for k := range areas {
			keys = append(keys, k)
		}

		rent, aggErr := Aggregate(cityStats, region.Weights, AggregateOptions{
			Region:  region.Name,
			Strata:  keys,
			Quality: quality,
			Partial: e.strata.PartialResults,
		})
		if aggErr != nil && !e.strata.PartialResults {
			return nil, fmt.Errorf("estimator: region %s: %w", region.Name, aggErr)
		}
		if aggErr != nil {
			var insufficient *models.InsufficientDataError
			if !errors.As(aggErr, &insufficient) {
				return nil, fmt.Errorf("estimator: region %s: %w", region.Name, aggErr)
			}
			warnings = append(warnings, aggErr)
		}

		var missing []models.StratumKey
		for _, k := range sortedKeys(keys) {
			if _, ok := rent[k]; !ok {
				missing = append(missing, k)
				delete(areas, k)
			}
		}
		if len(areas) == 0 {
			e.logger.Warn("[estimator] Region %s: no stratum has data, no estimate produced", region.Name)
			continue
		}

		est, err := Compute(region.Name, rent, areas, bands.FloorArea)
		if err != nil {
			return nil, fmt.Errorf("estimator: region %s: %w", region.Name, err)
		}
		est.MissingStrata = missing
		if est.Partial() {
			e.logger.Warn("[estimator] Region %s: %d of %d strata have no data and were left out",
				region.Name, len(missing), len(keys))
		}

		e.logger.Info("[estimator] Region %s: nominal OOH %.0f over %.0f m²",
			region.Name, est.NominalValue, est.EffectiveFloorArea)
		out[region.Name] = est
	}

	return out, errors.Join(warnings...)
}

// stratifyCities stratifies every city independently on the worker pool and
// applies the missing-stratum policy to each.
func (e *Estimator) stratifyCities(ctx context.Context, recordsByCity map[string][]models.RentalRecord) (map[string]map[models.StratumKey]models.StratumStatistic, error) {
	bands := e.strata.Bands()
	policy := e.strata.MissingStratumPolicy

	cities := make([]string, 0, len(recordsByCity))
	for city := range recordsByCity {
		cities = append(cities, city)
	}
	sort.Strings(cities)

	var mu sync.Mutex
	results := make(map[string]cityStrata, len(cities))

	pool := utils.NewWorkerPool(e.workers, 0)
	for _, city := range cities {
		records := recordsByCity[city]
		pool.Submit(func() {
			res := cityStrata{err: ctx.Err()}
			if res.err == nil {
				res.stats, res.err = stratifyCity(records, bands, policy)
			}
			mu.Lock()
			results[city] = res
			mu.Unlock()
		})
	}
	pool.Wait()

	out := make(map[string]map[models.StratumKey]models.StratumStatistic, len(cities))
	for _, city := range cities {
		res := results[city]
		if res.err != nil {
			return nil, fmt.Errorf("estimator: stratify %s: %w", city, res.err)
		}
		e.logger.Debug("[estimator] Stratified %s: %d records", city, len(recordsByCity[city]))
		out[city] = res.stats
	}
	return out, nil
}

func stratifyCity(records []models.RentalRecord, bands models.Bands, policy models.MissingStratumPolicy) (map[models.StratumKey]models.StratumStatistic, error) {
	fine, err := Stratify(records, bands)
	if err != nil {
		return nil, err
	}
	if policy != models.PolicyFallbackCoarser {
		return fine, nil
	}
	coarse, err := StratifyCoarse(records, bands)
	if err != nil {
		return nil, err
	}
	return ResolveMissing(fine, coarse, policy), nil
}
