package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"testing"

	"rental-ooh/models"
)

func TestPlaceholders(t *testing.T) {
	tests := []struct {
		base, n int
		want    string
	}{
		{0, 5, "($1,$2,$3,$4,$5)"},
		{5, 5, "($6,$7,$8,$9,$10)"},
		{0, 1, "($1)"},
	}
	for _, tt := range tests {
		if got := placeholders(tt.base, tt.n); got != tt.want {
			t.Errorf("placeholders(%d, %d) = %q; want %q", tt.base, tt.n, got, tt.want)
		}
	}
}

// recordingExecer logs statements and fails the call numbered failAt (1-based).
type recordingExecer struct {
	queries []string
	args    []int
	failAt  int
}

func (e *recordingExecer) Exec(query string, args ...any) (sql.Result, error) {
	e.queries = append(e.queries, strings.Fields(query)[0])
	e.args = append(e.args, len(args))
	if len(e.queries) == e.failAt {
		return nil, errors.New("connection reset")
	}
	return nil, nil
}

func manyRecords(n int) []models.RentalRecord {
	records := make([]models.RentalRecord, n)
	for i := range records {
		city := "nj"
		if i%2 == 1 {
			city = "su"
		}
		records[i] = models.RentalRecord{City: city, Tier: 2, FloorArea: 50.125, DwellingAge: i % 30, MonthlyRent: 3000 + float64(i)}
	}
	return records
}

func TestReplaceRecordsDeletesThenInsertsInBatches(t *testing.T) {
	ex := &recordingExecer{}
	if err := replaceRecords(ex, manyRecords(250)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"DELETE", "DELETE", "INSERT", "INSERT", "INSERT"}
	if fmt.Sprint(ex.queries) != fmt.Sprint(want) {
		t.Fatalf("statements: got %v, want %v", ex.queries, want)
	}
	if got := ex.args[2:]; fmt.Sprint(got) != fmt.Sprint([]int{500, 500, 250}) {
		t.Errorf("insert args: got %v, want [500 500 250]", got)
	}
}

func TestReplaceRecordsStopsOnFailedBatch(t *testing.T) {
	// Fail the second insert; WriteRecords then rolls the deletes back.
	ex := &recordingExecer{failAt: 4}
	err := replaceRecords(ex, manyRecords(250))
	if err == nil || !strings.Contains(err.Error(), "insert records") {
		t.Fatalf("got %v, want insert error", err)
	}
	if len(ex.queries) != 4 {
		t.Errorf("statements after failure: got %d, want 4", len(ex.queries))
	}
}

func TestSchemaStoresExactFloats(t *testing.T) {
	if strings.Contains(schema, "NUMERIC") {
		t.Error("schema rounds values with NUMERIC columns")
	}
	for _, col := range []string{"floor_area", "monthly_rent"} {
		re := regexp.MustCompile(`(?m)^\s*` + col + `\s+DOUBLE PRECISION NOT NULL`)
		if !re.MatchString(schema) {
			t.Errorf("rental_records.%s is not DOUBLE PRECISION", col)
		}
	}
}
