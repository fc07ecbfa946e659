package services

import (
	"errors"
	"math"
	"testing"

	"rental-ooh/models"
)

func testBands() models.Bands {
	return models.Bands{
		TierCount: 2,
		FloorArea: models.BandSet{Boundaries: []float64{0, 60, 100}},
		Age:       models.BandSet{Boundaries: []float64{0, 10}},
	}
}

func TestStratifyMean(t *testing.T) {
	records := []models.RentalRecord{
		{City: "sh", Tier: 1, FloorArea: 80, DwellingAge: 5, MonthlyRent: 6000},
		{City: "sh", Tier: 1, FloorArea: 80, DwellingAge: 5, MonthlyRent: 8000},
	}

	stats, err := Stratify(records, testBands())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	st := stats[models.StratumKey{Tier: 1, AreaBand: 1, AgeBand: 0}]
	if st.SampleCount != 2 {
		t.Errorf("SampleCount: got %d, want 2", st.SampleCount)
	}
	if !st.MeanRent.Valid || st.MeanRent.Value != 7000 {
		t.Errorf("MeanRent: got %+v, want 7000", st.MeanRent)
	}
	if st.MeanFloorArea.Value != 80 {
		t.Errorf("MeanFloorArea: got %+v, want 80", st.MeanFloorArea)
	}
}

func TestStratifyPartition(t *testing.T) {
	bands := testBands()
	records := []models.RentalRecord{
		{Tier: 1, FloorArea: 0.5, DwellingAge: 0, MonthlyRent: 1000},
		{Tier: 1, FloorArea: 60, DwellingAge: 10, MonthlyRent: 2000},
		{Tier: 1, FloorArea: 59.99, DwellingAge: 9, MonthlyRent: 3000},
		{Tier: 2, FloorArea: 100, DwellingAge: 40, MonthlyRent: 4000},
		{Tier: 2, FloorArea: 250, DwellingAge: 1, MonthlyRent: 5000},
		{Tier: 2, FloorArea: 99.9, DwellingAge: 10, MonthlyRent: 6000},
	}

	stats, err := Stratify(records, bands)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stats) != len(bands.Keys()) {
		t.Fatalf("strata: got %d, want %d", len(stats), len(bands.Keys()))
	}

	var total int
	for _, st := range stats {
		total += st.SampleCount
	}
	if total != len(records) {
		t.Errorf("records across strata: got %d, want %d", total, len(records))
	}

	// Boundaries belong to the band they open.
	if got := stats[models.StratumKey{Tier: 1, AreaBand: 1, AgeBand: 1}].SampleCount; got != 1 {
		t.Errorf("t1/a1/g1: got %d records, want 1", got)
	}
	if got := stats[models.StratumKey{Tier: 1, AreaBand: 0, AgeBand: 0}].SampleCount; got != 2 {
		t.Errorf("t1/a0/g0: got %d records, want 2", got)
	}
	if got := stats[models.StratumKey{Tier: 2, AreaBand: 2, AgeBand: 1}].SampleCount; got != 1 {
		t.Errorf("t2/a2/g1: got %d records, want 1", got)
	}
}

func TestStratifyEmptyStrataHaveNoMean(t *testing.T) {
	stats, err := Stratify(nil, testBands())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for k, st := range stats {
		if st.HasData() || st.MeanRent.Valid || st.SampleCount != 0 {
			t.Errorf("%s: empty stratum reported data: %+v", k, st)
		}
	}
}

func TestStratifyRejectsInvalidRecords(t *testing.T) {
	tests := []struct {
		name   string
		record models.RentalRecord
		field  string
	}{
		{"tier zero", models.RentalRecord{Tier: 0, FloorArea: 50, MonthlyRent: 1000}, "tier"},
		{"tier above count", models.RentalRecord{Tier: 3, FloorArea: 50, MonthlyRent: 1000}, "tier"},
		{"zero area", models.RentalRecord{Tier: 1, FloorArea: 0, MonthlyRent: 1000}, "floor_area"},
		{"NaN area", models.RentalRecord{Tier: 1, FloorArea: math.NaN(), MonthlyRent: 1000}, "floor_area"},
		{"negative rent", models.RentalRecord{Tier: 1, FloorArea: 50, MonthlyRent: -1}, "monthly_rent"},
		{"infinite rent", models.RentalRecord{Tier: 1, FloorArea: 50, MonthlyRent: math.Inf(1)}, "monthly_rent"},
		{"negative age", models.RentalRecord{Tier: 1, FloorArea: 50, MonthlyRent: 1000, DwellingAge: -2}, "dwelling_age"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Stratify([]models.RentalRecord{tt.record}, testBands())
			var verr *models.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("got %v, want *ValidationError", err)
			}
			if verr.Field != tt.field {
				t.Errorf("field: got %q, want %q", verr.Field, tt.field)
			}
		})
	}
}

func TestStratifyRejectsBadBands(t *testing.T) {
	bands := testBands()
	bands.FloorArea.Boundaries = []float64{0, 60, 60}

	_, err := Stratify(nil, bands)
	var cerr *models.ConfigurationError
	if !errors.As(err, &cerr) {
		t.Fatalf("got %v, want *ConfigurationError", err)
	}
}

func TestStratifyCoarse(t *testing.T) {
	records := []models.RentalRecord{
		{Tier: 1, FloorArea: 50, DwellingAge: 1, MonthlyRent: 3000},
		{Tier: 1, FloorArea: 40, DwellingAge: 30, MonthlyRent: 5000},
		{Tier: 1, FloorArea: 80, DwellingAge: 2, MonthlyRent: 7000},
	}

	stats, err := StratifyCoarse(records, testBands())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	byArea := stats[models.StratumKey{Tier: 1, AreaBand: 0, AgeBand: models.AnyBand}]
	if byArea.SampleCount != 2 || byArea.MeanRent.Value != 4000 {
		t.Errorf("t1/a0/g*: got %+v, want 2 records with mean 4000", byArea)
	}
	byTier := stats[models.StratumKey{Tier: 1, AreaBand: models.AnyBand, AgeBand: models.AnyBand}]
	if byTier.SampleCount != 3 || byTier.MeanRent.Value != 5000 {
		t.Errorf("t1/a*/g*: got %+v, want 3 records with mean 5000", byTier)
	}
	if st := stats[models.StratumKey{Tier: 2, AreaBand: models.AnyBand, AgeBand: models.AnyBand}]; st.HasData() {
		t.Errorf("t2/a*/g*: got %+v, want no data", st)
	}
	// 2 tiers × (3 area bands + 1 tier-wide)
	if len(stats) != 8 {
		t.Errorf("coarse strata: got %d, want 8", len(stats))
	}
}
