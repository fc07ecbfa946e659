package models

// Mean is an optional average. An empty stratum has no mean, which is
// distinct from a mean of zero.
type Mean struct {
	Value float64
	Valid bool
}

// Some returns a defined Mean.
func Some(v float64) Mean {
	return Mean{Value: v, Valid: true}
}

// StratumStatistic summarises the records of one stratum.
type StratumStatistic struct {
	SampleCount   int
	MeanRent      Mean
	MeanFloorArea Mean
	// Source is set when the statistic was borrowed from a coarser stratum.
	Source *StratumKey
}

// HasData reports whether the statistic carries a usable mean rent.
func (s StratumStatistic) HasData() bool {
	return s.MeanRent.Valid
}

// StratumEstimate is the OOH contribution of a single stratum.
type StratumEstimate struct {
	Key                StratumKey
	MonthlyRent        float64
	AnnualRentPerM2    float64
	EffectiveFloorArea float64
	NominalValue       float64
}

// OOHEstimate is the nominal OOH value of one region for one run.
type OOHEstimate struct {
	Region              string
	AnnualizedRentPerM2 float64
	EffectiveFloorArea  float64
	NominalValue        float64
	Strata              []StratumEstimate
	// MissingStrata lists strata left out because no city had data. It is
	// only populated in partial-results mode.
	MissingStrata []StratumKey
}

// Partial reports whether some configured strata were left out.
func (e OOHEstimate) Partial() bool {
	return len(e.MissingStrata) > 0
}

// MissingStratumPolicy decides how empty city strata are treated before
// aggregation.
type MissingStratumPolicy string

const (
	// PolicyExclude leaves empty strata out; weights are renormalized over
	// the cities that have data.
	PolicyExclude MissingStratumPolicy = "exclude"
	// PolicyFallbackCoarser borrows the statistic of the next coarser
	// populated stratum of the same tier.
	PolicyFallbackCoarser MissingStratumPolicy = "fallback_coarser"
)
