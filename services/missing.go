package services

import "rental-ooh/models"

// ResolveMissing applies the missing-stratum policy to one city's fine
// statistics and returns a new map. Under PolicyExclude the input is copied
// unchanged. Under PolicyFallbackCoarser an empty stratum borrows the first
// populated coarser statistic from coarse, and records where it came from.
func ResolveMissing(
	fine map[models.StratumKey]models.StratumStatistic,
	coarse map[models.StratumKey]models.StratumStatistic,
	policy models.MissingStratumPolicy,
) map[models.StratumKey]models.StratumStatistic {
	out := make(map[models.StratumKey]models.StratumStatistic, len(fine))
	for k, st := range fine {
		if st.HasData() || policy != models.PolicyFallbackCoarser {
			out[k] = st
			continue
		}
		out[k] = fallback(k, st, coarse)
	}
	return out
}

func fallback(k models.StratumKey, empty models.StratumStatistic, coarse map[models.StratumKey]models.StratumStatistic) models.StratumStatistic {
	for c, ok := k.Coarser(); ok; c, ok = c.Coarser() {
		st, found := coarse[c]
		if !found || !st.HasData() {
			continue
		}
		src := c
		st.Source = &src
		return st
	}
	return empty
}
