package models

import (
	"fmt"
	"math"
	"strconv"
)

// AnyBand marks a coarsened dimension in a StratumKey.
const AnyBand = -1

// StratumKey identifies a bucket of comparable dwellings.
type StratumKey struct {
	Tier     int
	AreaBand int
	AgeBand  int
}

// String renders the key as "t1/a2/g0"; coarsened dimensions render as "*".
func (k StratumKey) String() string {
	return fmt.Sprintf("t%d/a%s/g%s", k.Tier, bandIndex(k.AreaBand), bandIndex(k.AgeBand))
}

// Coarser returns the next coarser key: the age band is dropped first, then
// the floor-area band. The tier is never coarsened. ok is false when k is
// already the coarsest key for its tier.
func (k StratumKey) Coarser() (StratumKey, bool) {
	switch {
	case k.AgeBand != AnyBand:
		return StratumKey{Tier: k.Tier, AreaBand: k.AreaBand, AgeBand: AnyBand}, true
	case k.AreaBand != AnyBand:
		return StratumKey{Tier: k.Tier, AreaBand: AnyBand, AgeBand: AnyBand}, true
	default:
		return k, false
	}
}

// Less orders keys by tier, floor-area band, then age band.
func (k StratumKey) Less(o StratumKey) bool {
	if k.Tier != o.Tier {
		return k.Tier < o.Tier
	}
	if k.AreaBand != o.AreaBand {
		return k.AreaBand < o.AreaBand
	}
	return k.AgeBand < o.AgeBand
}

func bandIndex(i int) string {
	if i == AnyBand {
		return "*"
	}
	return strconv.Itoa(i)
}

// BandSet partitions [Boundaries[0], ∞) into consecutive half-open bands
// [b0,b1) … [bn-1,bn) [bn,∞).
type BandSet struct {
	Boundaries []float64
	// OpenMidpoint is the representative value of the open top band.
	// Zero means it is derived from the preceding band's width.
	OpenMidpoint float64
}

// Count returns the number of bands.
func (b BandSet) Count() int {
	return len(b.Boundaries)
}

// Index returns the band containing v, or -1 when v lies below the first
// boundary.
func (b BandSet) Index(v float64) int {
	idx := -1
	for i, lo := range b.Boundaries {
		if v < lo {
			break
		}
		idx = i
	}
	return idx
}

// Bounds returns the band's lower bound and upper bound. open is true for the
// top band, whose upper bound is infinite.
func (b BandSet) Bounds(i int) (lo, hi float64, open bool) {
	lo = b.Boundaries[i]
	if i == len(b.Boundaries)-1 {
		return lo, 0, true
	}
	return lo, b.Boundaries[i+1], false
}

// Midpoint returns the representative value of band i. ok is false for a
// lone open band with no configured midpoint.
func (b BandSet) Midpoint(i int) (float64, bool) {
	lo, hi, open := b.Bounds(i)
	if !open {
		return (lo + hi) / 2, true
	}
	if b.OpenMidpoint > 0 {
		return b.OpenMidpoint, true
	}
	if i == 0 {
		return 0, false
	}
	prevWidth := lo - b.Boundaries[i-1]
	return lo + prevWidth/2, true
}

// Label renders band i as "[lo,hi)" or "[lo,+)".
func (b BandSet) Label(i int) string {
	if i == AnyBand {
		return "*"
	}
	lo, hi, open := b.Bounds(i)
	if open {
		return fmt.Sprintf("[%g,+)", lo)
	}
	return fmt.Sprintf("[%g,%g)", lo, hi)
}

// Validate checks that the boundaries start at zero and strictly increase,
// which makes the bands a partition of the non-negative reals.
func (b BandSet) Validate(field string) error {
	if len(b.Boundaries) == 0 {
		return &ConfigurationError{Field: field, Reason: "at least one boundary is required"}
	}
	if b.Boundaries[0] != 0 {
		return &ConfigurationError{Field: field, Reason: fmt.Sprintf("first boundary must be 0, got %g", b.Boundaries[0])}
	}
	for i, v := range b.Boundaries {
		if !finite(v) {
			return &ConfigurationError{Field: field, Reason: fmt.Sprintf("boundary %d is not a finite number: %g", i, v)}
		}
	}
	for i := 1; i < len(b.Boundaries); i++ {
		if b.Boundaries[i] <= b.Boundaries[i-1] {
			return &ConfigurationError{
				Field:  field,
				Reason: fmt.Sprintf("boundaries must strictly increase (%g after %g)", b.Boundaries[i], b.Boundaries[i-1]),
			}
		}
	}
	if !finite(b.OpenMidpoint) {
		return &ConfigurationError{Field: field, Reason: fmt.Sprintf("open band midpoint is not a finite number: %g", b.OpenMidpoint)}
	}
	if b.OpenMidpoint < 0 {
		return &ConfigurationError{Field: field, Reason: "open band midpoint must not be negative"}
	}
	if b.OpenMidpoint > 0 && b.OpenMidpoint < b.Boundaries[len(b.Boundaries)-1] {
		return &ConfigurationError{Field: field, Reason: "open band midpoint lies below the top boundary"}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Bands groups the band definitions of both stratification dimensions.
type Bands struct {
	TierCount int
	FloorArea BandSet
	Age       BandSet
}

// Keys enumerates every fine stratum of the grid in key order.
func (b Bands) Keys() []StratumKey {
	keys := make([]StratumKey, 0, b.TierCount*b.FloorArea.Count()*b.Age.Count())
	for tier := 1; tier <= b.TierCount; tier++ {
		for a := 0; a < b.FloorArea.Count(); a++ {
			for g := 0; g < b.Age.Count(); g++ {
				keys = append(keys, StratumKey{Tier: tier, AreaBand: a, AgeBand: g})
			}
		}
	}
	return keys
}

// KeyFor returns the fine stratum a record belongs to.
func (b Bands) KeyFor(r RentalRecord) StratumKey {
	return StratumKey{
		Tier:     r.Tier,
		AreaBand: b.FloorArea.Index(r.FloorArea),
		AgeBand:  b.Age.Index(float64(r.DwellingAge)),
	}
}

// Contains reports whether k names a fine stratum of the grid.
func (b Bands) Contains(k StratumKey) bool {
	return k.Tier >= 1 && k.Tier <= b.TierCount &&
		k.AreaBand >= 0 && k.AreaBand < b.FloorArea.Count() &&
		k.AgeBand >= 0 && k.AgeBand < b.Age.Count()
}

// Validate checks both dimensions and the tier count.
func (b Bands) Validate() error {
	if b.TierCount < 1 {
		return &ConfigurationError{Field: "tier_count", Reason: "must be at least 1"}
	}
	if err := b.FloorArea.Validate("floor_area_bands"); err != nil {
		return err
	}
	return b.Age.Validate("age_bands")
}
