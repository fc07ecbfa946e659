package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"rental-ooh/models"
)

var (
	rawHeader      = []string{"platform", "city", "title", "raw_price", "detail", "url", "scraped_at"}
	recordHeader   = []string{"city", "tier", "floor_area", "dwelling_age", "monthly_rent"}
	estimateHeader = []string{
		"region", "tier", "floor_area_band", "age_band",
		"monthly_rent", "annual_rent_per_m2", "effective_floor_area", "nominal_value",
	}
)

// CSVWriter writes rows to a CSV file. It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// NewCSVWriter creates (or truncates) the CSV file at the given path and
// writes the header row. Intermediate directories are created automatically.
func NewCSVWriter(path string, header []string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	w.Flush()

	return &CSVWriter{file: f, writer: w}, nil
}

// NewRawCSVWriter creates a writer for unprocessed scraped listings.
func NewRawCSVWriter(path string) (*CSVWriter, error) {
	return NewCSVWriter(path, rawHeader)
}

// NewRecordCSVWriter creates a writer for cleaned rental records, in the
// layout ReadRecords accepts.
func NewRecordCSVWriter(path string) (*CSVWriter, error) {
	return NewCSVWriter(path, recordHeader)
}

// NewEstimateCSVWriter creates a writer for the flat estimate table.
func NewEstimateCSVWriter(path string) (*CSVWriter, error) {
	return NewCSVWriter(path, estimateHeader)
}

// WriteRaw appends raw listings.
func (c *CSVWriter) WriteRaw(listings []*models.RawListing) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, l := range listings {
		row := []string{
			l.Platform,
			l.City,
			l.Title,
			l.RawPrice,
			l.Detail,
			l.URL,
			l.ScrapedAt.Format(time.RFC3339),
		}
		if err := c.writer.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// WriteRecords appends cleaned rental records.
func (c *CSVWriter) WriteRecords(records []models.RentalRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, r := range records {
		row := []string{
			r.City,
			strconv.Itoa(r.Tier),
			formatFloat(r.FloorArea),
			strconv.Itoa(r.DwellingAge),
			formatFloat(r.MonthlyRent),
		}
		if err := c.writer.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// WriteEstimates appends one row per region and stratum, regions in sorted
// order. Band columns hold band indexes.
func (c *CSVWriter) WriteEstimates(estimates map[string]models.OOHEstimate) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	regions := make([]string, 0, len(estimates))
	for region := range estimates {
		regions = append(regions, region)
	}
	sort.Strings(regions)

	for _, region := range regions {
		for _, st := range estimates[region].Strata {
			row := []string{
				region,
				strconv.Itoa(st.Key.Tier),
				strconv.Itoa(st.Key.AreaBand),
				strconv.Itoa(st.Key.AgeBand),
				formatFloat(st.MonthlyRent),
				formatFloat(st.AnnualRentPerM2),
				formatFloat(st.EffectiveFloorArea),
				formatFloat(st.NominalValue),
			}
			if err := c.writer.Write(row); err != nil {
				return fmt.Errorf("csv: write row: %w", err)
			}
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.writer.Flush()
	return c.file.Close()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
