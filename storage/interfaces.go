package storage

import "rental-ooh/models"

// RawListingWriter is the interface for persisting unprocessed scraped data.
type RawListingWriter interface {
	WriteRaw(listings []*models.RawListing) error
	Close() error
}

// RecordWriter is the interface for persisting cleaned rental records.
type RecordWriter interface {
	WriteRecords(records []models.RentalRecord) error
	Close() error
}

// EstimateWriter is the interface any estimate sink must satisfy.
type EstimateWriter interface {
	WriteEstimates(estimates map[string]models.OOHEstimate) error
	Close() error
}

var (
	_ RawListingWriter = (*CSVWriter)(nil)
	_ RecordWriter     = (*CSVWriter)(nil)
	_ RecordWriter     = (*PostgresWriter)(nil)
	_ EstimateWriter   = (*CSVWriter)(nil)
	_ EstimateWriter   = (*PostgresWriter)(nil)
)
