package models

import "time"

// RawListing holds unprocessed scraped data for a single rental item.
// This is written to CSV before any cleaning or transformation.
type RawListing struct {
	Platform  string
	City      string
	Title     string
	RawPrice  string
	Detail    string
	URL       string
	ScrapedAt time.Time
}

// RentalRecord is a cleaned, validated rental observation. Records are never
// mutated after ingestion.
type RentalRecord struct {
	City        string
	Tier        int
	FloorArea   float64 // m²
	DwellingAge int     // years
	MonthlyRent float64
}

// RentPerM2 returns the monthly rent per square metre.
func (r RentalRecord) RentPerM2() float64 {
	return r.MonthlyRent / r.FloorArea
}

// PricedListing is a scraped listing with a parsed monthly rent. Listings
// lacking a floor area or construction year still count here.
type PricedListing struct {
	City        string
	Title       string
	URL         string
	MonthlyRent float64
}

// InsightReport summarises a scrape. Rent figures cover every priced
// listing; per-m² figures cover the cleaned records only.
type InsightReport struct {
	TotalListings     int
	AverageRent       float64
	MinRent           float64
	MaxRent           float64
	MostExpensive     *PricedListing
	ListingsByCity    map[string]int
	AverageRentByCity map[string]float64

	TotalRecords     int
	AverageRentPerM2 float64
	AverageFloorArea float64
}
