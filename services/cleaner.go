package services

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"rental-ooh/models"
	"rental-ooh/utils"
)

var (
	// numberRegexp captures numeric values such as 6500 or 80.50
	numberRegexp = regexp.MustCompile(`\d+(?:\.\d+)?`)
	// rangeRegexp captures "3000-3500" style ranges
	rangeRegexp = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*-\s*(\d+(?:\.\d+)?)`)
	// areaRegexp captures a floor area followed by a square-metre unit
	areaRegexp = regexp.MustCompile(`(\d+(?:\.\d+)?(?:\s*-\s*\d+(?:\.\d+)?)?)\s*(?:㎡|m²|平米|平方米)`)
	// builtRegexp captures the construction year, e.g. "2005年建"
	builtRegexp = regexp.MustCompile(`((?:19|20)\d{2})\s*年建`)
)

// Cleaner transforms RawListings into validated RentalRecords.
type Cleaner struct {
	logger *utils.Logger
	tiers  map[string]int
	// assumedAge is used when a listing has no construction year. A negative
	// value drops such listings.
	assumedAge int
}

// NewCleaner creates a Cleaner. tiers maps city codes to their tier.
func NewCleaner(logger *utils.Logger, tiers map[string]int, assumedAge int) *Cleaner {
	return &Cleaner{logger: logger, tiers: tiers, assumedAge: assumedAge}
}

// Clean parses raw listings into rental records, dropping listings that
// cannot be parsed, belong to an unknown city, or repeat a URL.
func (c *Cleaner) Clean(raw []*models.RawListing) []models.RentalRecord {
	seen := utils.NewURLSet()
	result := make([]models.RentalRecord, 0, len(raw))

	for _, r := range raw {
		if url := strings.TrimSpace(r.URL); url != "" && !seen.Add(url) {
			c.logger.Debug("[cleaner] Duplicate URL skipped: %s", url)
			continue
		}

		city := normaliseCity(r.City)
		tier, ok := c.tiers[city]
		if !ok {
			c.logger.Warn("[cleaner] Dropping listing from unconfigured city %q: %s", city, r.Title)
			continue
		}

		rent := c.parsePrice(r.RawPrice)
		if rent <= 0 {
			c.logger.Debug("[cleaner] Dropping listing without rent: %s", r.Title)
			continue
		}

		text := normaliseText(r.Title + " | " + r.Detail)
		area := c.parseArea(text)
		if area <= 0 {
			c.logger.Debug("[cleaner] Dropping listing without floor area: %s", r.Title)
			continue
		}

		age, ok := c.parseAge(text, r.ScrapedAt.Year())
		if !ok {
			if c.assumedAge < 0 {
				c.logger.Debug("[cleaner] Dropping listing without construction year: %s", r.Title)
				continue
			}
			age = c.assumedAge
		}

		result = append(result, models.RentalRecord{
			City:        city,
			Tier:        tier,
			FloorArea:   area,
			DwellingAge: age,
			MonthlyRent: rent,
		})
	}

	c.logger.Info("[cleaner] Cleaned %d → %d records (dropped %d)",
		len(raw), len(result), len(raw)-len(result))
	return result
}

// Prices returns every listing with a parseable rent, whatever its area,
// construction year or city. Repeated URLs count once.
func (c *Cleaner) Prices(raw []*models.RawListing) []models.PricedListing {
	seen := utils.NewURLSet()
	out := make([]models.PricedListing, 0, len(raw))

	for _, r := range raw {
		url := strings.TrimSpace(r.URL)
		if url != "" && !seen.Add(url) {
			continue
		}
		rent := c.parsePrice(r.RawPrice)
		if rent <= 0 {
			continue
		}
		out = append(out, models.PricedListing{
			City:        normaliseCity(r.City),
			Title:       normaliseText(r.Title),
			URL:         url,
			MonthlyRent: rent,
		})
	}
	return out
}

// AssignTiers fills in the tier of records that arrived without one.
func (c *Cleaner) AssignTiers(records []models.RentalRecord) []models.RentalRecord {
	out := make([]models.RentalRecord, len(records))
	for i, r := range records {
		r.City = normaliseCity(r.City)
		if r.Tier == 0 {
			r.Tier = c.tiers[r.City]
		}
		out[i] = r
	}
	return out
}

// parsePrice extracts the monthly rent. A "3000-3500" range yields its mean.
func (c *Cleaner) parsePrice(raw string) float64 {
	cleaned := strings.ReplaceAll(raw, ",", "")
	return parseNumberOrRange(cleaned)
}

// parseArea extracts the floor area in m² from listing text.
func (c *Cleaner) parseArea(text string) float64 {
	m := areaRegexp.FindStringSubmatch(text)
	if len(m) < 2 {
		return 0
	}
	return parseNumberOrRange(m[1])
}

// parseAge derives the dwelling age from a construction year in the text.
func (c *Cleaner) parseAge(text string, refYear int) (int, bool) {
	m := builtRegexp.FindStringSubmatch(text)
	if len(m) < 2 {
		return 0, false
	}
	year, err := strconv.Atoi(m[1])
	if err != nil || year > refYear {
		return 0, false
	}
	return refYear - year, true
}

func parseNumberOrRange(s string) float64 {
	if m := rangeRegexp.FindStringSubmatch(s); len(m) == 3 {
		lo, errLo := strconv.ParseFloat(m[1], 64)
		hi, errHi := strconv.ParseFloat(m[2], 64)
		if errLo == nil && errHi == nil {
			return (lo + hi) / 2
		}
	}
	match := numberRegexp.FindString(s)
	if match == "" {
		return 0
	}
	v, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0
	}
	return v
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	fields := strings.FieldsFunc(s, unicode.IsSpace)
	return strings.Join(fields, " ")
}

func normaliseCity(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
