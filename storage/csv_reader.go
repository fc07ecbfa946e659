package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"rental-ooh/models"
)

var requiredRecordColumns = []string{"city", "floor_area", "dwelling_age", "monthly_rent"}

// ReadRecords loads rental records from a CSV file with a header row. The
// columns city, floor_area, dwelling_age and monthly_rent are required; tier
// is optional and left as zero when absent or empty.
func ReadRecords(path string) ([]models.RentalRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csv: open %q: %w", path, err)
	}
	defer f.Close()

	return DecodeRecords(f)
}

// DecodeRecords reads rental records from r. See ReadRecords.
func DecodeRecords(r io.Reader) ([]models.RentalRecord, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("csv: read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, name := range requiredRecordColumns {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("csv: missing column %q", name)
		}
	}

	var records []models.RentalRecord
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv: line %d: %w", line, err)
		}

		rec, err := decodeRecord(row, cols)
		if err != nil {
			return nil, fmt.Errorf("csv: line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func decodeRecord(row []string, cols map[string]int) (models.RentalRecord, error) {
	field := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var rec models.RentalRecord
	var err error

	rec.City = field("city")
	if rec.FloorArea, err = strconv.ParseFloat(field("floor_area"), 64); err != nil {
		return rec, fmt.Errorf("floor_area: %w", err)
	}
	if rec.MonthlyRent, err = strconv.ParseFloat(field("monthly_rent"), 64); err != nil {
		return rec, fmt.Errorf("monthly_rent: %w", err)
	}
	if rec.DwellingAge, err = strconv.Atoi(field("dwelling_age")); err != nil {
		return rec, fmt.Errorf("dwelling_age: %w", err)
	}
	if tier := field("tier"); tier != "" {
		if rec.Tier, err = strconv.Atoi(tier); err != nil {
			return rec, fmt.Errorf("tier: %w", err)
		}
	}
	return rec, nil
}

// GroupByCity splits records by city, keeping input order within a city.
func GroupByCity(records []models.RentalRecord) map[string][]models.RentalRecord {
	out := make(map[string][]models.RentalRecord)
	for _, r := range records {
		out[r.City] = append(out[r.City], r)
	}
	return out
}
