package services

import (
	"math"

	"rental-ooh/models"
)

// Stratify buckets records into the fine strata of the grid and summarises
// each bucket. Every stratum of the grid is present in the result; empty
// ones have a zero SampleCount and no mean.
//
// It fails with a *models.ValidationError on the first malformed record.
func Stratify(records []models.RentalRecord, bands models.Bands) (map[models.StratumKey]models.StratumStatistic, error) {
	if err := bands.Validate(); err != nil {
		return nil, err
	}

	acc := make(map[models.StratumKey]*accumulator, len(bands.Keys()))
	for _, k := range bands.Keys() {
		acc[k] = &accumulator{}
	}

	for _, r := range records {
		if err := validateRecord(r, bands.TierCount); err != nil {
			return nil, err
		}
		acc[bands.KeyFor(r)].add(r)
	}

	return summarise(acc), nil
}

// StratifyCoarse summarises records at the coarser levels used by the
// fallback policy: (tier, area band, any age) and (tier, any area, any age).
func StratifyCoarse(records []models.RentalRecord, bands models.Bands) (map[models.StratumKey]models.StratumStatistic, error) {
	if err := bands.Validate(); err != nil {
		return nil, err
	}

	acc := make(map[models.StratumKey]*accumulator)
	for tier := 1; tier <= bands.TierCount; tier++ {
		acc[models.StratumKey{Tier: tier, AreaBand: models.AnyBand, AgeBand: models.AnyBand}] = &accumulator{}
		for a := 0; a < bands.FloorArea.Count(); a++ {
			acc[models.StratumKey{Tier: tier, AreaBand: a, AgeBand: models.AnyBand}] = &accumulator{}
		}
	}

	for _, r := range records {
		if err := validateRecord(r, bands.TierCount); err != nil {
			return nil, err
		}
		k := bands.KeyFor(r)
		for {
			c, ok := k.Coarser()
			if !ok {
				break
			}
			acc[c].add(r)
			k = c
		}
	}

	return summarise(acc), nil
}

func validateRecord(r models.RentalRecord, tierCount int) error {
	switch {
	case r.Tier < 1 || r.Tier > tierCount:
		return &models.ValidationError{Record: r, Field: "tier", Reason: "outside configured tiers"}
	case !(r.FloorArea > 0) || math.IsInf(r.FloorArea, 0):
		return &models.ValidationError{Record: r, Field: "floor_area", Reason: "must be positive"}
	case !(r.MonthlyRent > 0) || math.IsInf(r.MonthlyRent, 0):
		return &models.ValidationError{Record: r, Field: "monthly_rent", Reason: "must be positive"}
	case r.DwellingAge < 0:
		return &models.ValidationError{Record: r, Field: "dwelling_age", Reason: "must not be negative"}
	}
	return nil
}

type accumulator struct {
	n       int
	rentSum float64
	areaSum float64
}

func (a *accumulator) add(r models.RentalRecord) {
	a.n++
	a.rentSum += r.MonthlyRent
	a.areaSum += r.FloorArea
}

func (a *accumulator) statistic() models.StratumStatistic {
	if a.n == 0 {
		return models.StratumStatistic{}
	}
	return models.StratumStatistic{
		SampleCount:   a.n,
		MeanRent:      models.Some(a.rentSum / float64(a.n)),
		MeanFloorArea: models.Some(a.areaSum / float64(a.n)),
	}
}

func summarise(acc map[models.StratumKey]*accumulator) map[models.StratumKey]models.StratumStatistic {
	out := make(map[models.StratumKey]models.StratumStatistic, len(acc))
	for k, a := range acc {
		out[k] = a.statistic()
	}
	return out
}
