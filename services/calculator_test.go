package services

import (
	"errors"
	"testing"

	"rental-ooh/models"
)

var calcBands = models.BandSet{Boundaries: []float64{0, 60, 90}}

func TestCompute(t *testing.T) {
	rent := map[models.StratumKey]float64{keyA: 6250, keyB: 7000}
	area := map[models.StratumKey]float64{keyA: 500, keyB: 250}

	est, err := Compute("jiangsu", rent, area, calcBands)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(est.Strata) != 2 || est.Strata[0].Key != keyA || est.Strata[1].Key != keyB {
		t.Fatalf("strata: got %+v, want %s then %s", est.Strata, keyA, keyB)
	}
	// [60,90) midpoint 75: 6250 × 12 / 75
	if !approxEqual(est.Strata[0].AnnualRentPerM2, 1000) {
		t.Errorf("%s rent/m²: got %v, want 1000", keyA, est.Strata[0].AnnualRentPerM2)
	}
	// open band [90,+) midpoint 105: 7000 × 12 / 105
	if !approxEqual(est.Strata[1].AnnualRentPerM2, 800) {
		t.Errorf("%s rent/m²: got %v, want 800", keyB, est.Strata[1].AnnualRentPerM2)
	}
	if !approxEqual(est.NominalValue, 700000) {
		t.Errorf("NominalValue: got %v, want 700000", est.NominalValue)
	}
	if est.EffectiveFloorArea != 750 {
		t.Errorf("EffectiveFloorArea: got %v, want 750", est.EffectiveFloorArea)
	}
	if !approxEqual(est.AnnualizedRentPerM2, 700000.0/750) {
		t.Errorf("AnnualizedRentPerM2: got %v", est.AnnualizedRentPerM2)
	}
	if est.Region != "jiangsu" || est.Partial() {
		t.Errorf("estimate header: got %+v", est)
	}
}

func TestComputeZeroArea(t *testing.T) {
	est, err := Compute("r", map[models.StratumKey]float64{keyA: 6250}, map[models.StratumKey]float64{keyA: 0}, calcBands)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if est.NominalValue != 0 || est.AnnualizedRentPerM2 != 0 {
		t.Errorf("zero-area estimate: got %+v", est)
	}
}

func TestComputeConfigurationErrors(t *testing.T) {
	lone := models.BandSet{Boundaries: []float64{0}}
	openKey := models.StratumKey{Tier: 1, AreaBand: 0, AgeBand: 0}

	tests := []struct {
		name  string
		rent  map[models.StratumKey]float64
		area  map[models.StratumKey]float64
		bands models.BandSet
	}{
		{"stratum without rent", map[models.StratumKey]float64{keyA: 1}, map[models.StratumKey]float64{keyB: 10}, calcBands},
		{"band outside the grid", map[models.StratumKey]float64{{Tier: 1, AreaBand: 7}: 1}, map[models.StratumKey]float64{{Tier: 1, AreaBand: 7}: 10}, calcBands},
		{"open band without midpoint", map[models.StratumKey]float64{openKey: 1}, map[models.StratumKey]float64{openKey: 10}, lone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compute("r", tt.rent, tt.area, tt.bands)
			var cerr *models.ConfigurationError
			if !errors.As(err, &cerr) {
				t.Fatalf("got %v, want *ConfigurationError", err)
			}
		})
	}
}
