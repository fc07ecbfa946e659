package services

import (
	"fmt"

	"rental-ooh/models"
)

const monthsPerYear = 12

// Compute values a region's owner-occupied housing stock by rental
// equivalence. For each stratum named in effectiveArea the aggregated monthly
// rent is annualized and divided by the floor-area band's midpoint, then
// multiplied by the stratum's effective floor area.
//
// It fails with a *models.ConfigurationError when effectiveArea names a
// stratum missing from rent, or one whose band has no midpoint.
func Compute(
	region string,
	rent map[models.StratumKey]float64,
	effectiveArea map[models.StratumKey]float64,
	floorArea models.BandSet,
) (models.OOHEstimate, error) {
	est := models.OOHEstimate{Region: region}

	keys := make([]models.StratumKey, 0, len(effectiveArea))
	for k := range effectiveArea {
		keys = append(keys, k)
	}
	keys = sortedKeys(keys)

	for _, k := range keys {
		monthly, ok := rent[k]
		if !ok {
			return models.OOHEstimate{}, &models.ConfigurationError{
				Field:  "effective_floor_area",
				Reason: fmt.Sprintf("region %s references stratum %s with no aggregated rent", region, k),
			}
		}
		if k.AreaBand < 0 || k.AreaBand >= floorArea.Count() {
			return models.OOHEstimate{}, &models.ConfigurationError{
				Field:  "effective_floor_area",
				Reason: fmt.Sprintf("stratum %s has no floor-area band", k),
			}
		}
		mid, ok := floorArea.Midpoint(k.AreaBand)
		if !ok || mid <= 0 {
			return models.OOHEstimate{}, &models.ConfigurationError{
				Field:  "floor_area_open_midpoint",
				Reason: fmt.Sprintf("stratum %s has no usable floor-area midpoint", k),
			}
		}

		area := effectiveArea[k]
		perM2 := monthly * monthsPerYear / mid
		nominal := perM2 * area

		est.Strata = append(est.Strata, models.StratumEstimate{
			Key:                k,
			MonthlyRent:        monthly,
			AnnualRentPerM2:    perM2,
			EffectiveFloorArea: area,
			NominalValue:       nominal,
		})
		est.NominalValue += nominal
		est.EffectiveFloorArea += area
	}

	if est.EffectiveFloorArea > 0 {
		est.AnnualizedRentPerM2 = est.NominalValue / est.EffectiveFloorArea
	}
	return est, nil
}
