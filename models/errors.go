package models

import "fmt"

// ValidationError reports a malformed rental record.
type ValidationError struct {
	Record RentalRecord
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid record (city=%s tier=%d area=%g age=%d rent=%g): %s %s",
		e.Record.City, e.Record.Tier, e.Record.FloorArea, e.Record.DwellingAge, e.Record.MonthlyRent,
		e.Field, e.Reason)
}

// InsufficientDataError reports a stratum for which no contributing city has
// data.
type InsufficientDataError struct {
	Region  string
	Stratum StratumKey
}

func (e *InsufficientDataError) Error() string {
	if e.Region == "" {
		return fmt.Sprintf("insufficient data for stratum %s", e.Stratum)
	}
	return fmt.Sprintf("insufficient data for stratum %s in region %s", e.Stratum, e.Region)
}

// ConfigurationError reports malformed bands, weights or stratum references.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s: %s", e.Field, e.Reason)
}
