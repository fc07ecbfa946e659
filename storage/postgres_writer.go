package storage

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"rental-ooh/models"
)

// PostgresWriter persists cleaned rental records and OOH estimates.
type PostgresWriter struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgresWriter opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use PostgresWriter.
func NewPostgresWriter(dsn string) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	pw := &PostgresWriter{db: db, now: time.Now}
	if err := pw.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return pw, nil
}

// schema is applied on every connect. The ALTERs bring tables created with
// NUMERIC columns up to DOUBLE PRECISION so stored values round-trip exactly.
const schema = `
	CREATE TABLE IF NOT EXISTS rental_records (
		id           SERIAL PRIMARY KEY,
		city         VARCHAR(16)      NOT NULL,
		tier         SMALLINT         NOT NULL,
		floor_area   DOUBLE PRECISION NOT NULL,
		dwelling_age INTEGER          NOT NULL,
		monthly_rent DOUBLE PRECISION NOT NULL,
		created_at   TIMESTAMPTZ      NOT NULL DEFAULT NOW()
	);

	ALTER TABLE rental_records
		ALTER COLUMN floor_area   TYPE DOUBLE PRECISION,
		ALTER COLUMN monthly_rent TYPE DOUBLE PRECISION;

	CREATE INDEX IF NOT EXISTS idx_rental_records_city ON rental_records(city);

	CREATE TABLE IF NOT EXISTS ooh_estimates (
		id                   SERIAL PRIMARY KEY,
		run_at               TIMESTAMPTZ      NOT NULL,
		region               TEXT             NOT NULL,
		tier                 SMALLINT         NOT NULL,
		floor_area_band      SMALLINT         NOT NULL,
		age_band             SMALLINT         NOT NULL,
		monthly_rent         DOUBLE PRECISION NOT NULL,
		annual_rent_per_m2   DOUBLE PRECISION NOT NULL,
		effective_floor_area DOUBLE PRECISION NOT NULL,
		nominal_value        DOUBLE PRECISION NOT NULL,
		UNIQUE (run_at, region, tier, floor_area_band, age_band)
	);

	CREATE INDEX IF NOT EXISTS idx_ooh_estimates_region ON ooh_estimates(region);
`

func (pw *PostgresWriter) migrate() error {
	_, err := pw.db.Exec(schema)
	return err
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// WriteRecords replaces the stored records of every city present in records.
// The delete and all inserts commit together or not at all.
func (pw *PostgresWriter) WriteRecords(records []models.RentalRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := pw.db.Begin()
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := replaceRecords(tx, records); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

func replaceRecords(ex execer, records []models.RentalRecord) error {
	seen := make(map[string]struct{})
	for _, r := range records {
		if _, ok := seen[r.City]; ok {
			continue
		}
		seen[r.City] = struct{}{}
		if _, err := ex.Exec("DELETE FROM rental_records WHERE city = $1", r.City); err != nil {
			return fmt.Errorf("postgres: clear %s: %w", r.City, err)
		}
	}

	const batchSize = 100
	for i := 0; i < len(records); i += batchSize {
		end := i + batchSize
		if end > len(records) {
			end = len(records)
		}
		if err := insertRecords(ex, records[i:end]); err != nil {
			return err
		}
	}
	return nil
}

func insertRecords(ex execer, batch []models.RentalRecord) error {
	const cols = 5
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]interface{}, 0, len(batch)*cols)

	for idx, r := range batch {
		valueStrings = append(valueStrings, placeholders(idx*cols, cols))
		valueArgs = append(valueArgs, r.City, r.Tier, r.FloorArea, r.DwellingAge, r.MonthlyRent)
	}

	query := fmt.Sprintf(`
		INSERT INTO rental_records (city, tier, floor_area, dwelling_age, monthly_rent)
		VALUES %s
	`, strings.Join(valueStrings, ","))

	if _, err := ex.Exec(query, valueArgs...); err != nil {
		return fmt.Errorf("postgres: insert records: %w", err)
	}
	return nil
}

// FetchRecords retrieves all stored records in insertion order.
func (pw *PostgresWriter) FetchRecords() ([]models.RentalRecord, error) {
	rows, err := pw.db.Query(`
		SELECT city, tier, floor_area, dwelling_age, monthly_rent
		FROM rental_records
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch records: %w", err)
	}
	defer rows.Close()

	var records []models.RentalRecord
	for rows.Next() {
		var r models.RentalRecord
		if err := rows.Scan(&r.City, &r.Tier, &r.FloorArea, &r.DwellingAge, &r.MonthlyRent); err != nil {
			return nil, fmt.Errorf("postgres: scan row: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// WriteEstimates stores one row per region and stratum under a single run
// timestamp, inside one transaction.
func (pw *PostgresWriter) WriteEstimates(estimates map[string]models.OOHEstimate) error {
	runAt := pw.now().UTC()

	regions := make([]string, 0, len(estimates))
	for region := range estimates {
		regions = append(regions, region)
	}
	sort.Strings(regions)

	tx, err := pw.db.Begin()
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
		INSERT INTO ooh_estimates (run_at, region, tier, floor_area_band, age_band,
			monthly_rent, annual_rent_per_m2, effective_floor_area, nominal_value)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`)
	if err != nil {
		return fmt.Errorf("postgres: prepare: %w", err)
	}
	defer stmt.Close()

	for _, region := range regions {
		for _, st := range estimates[region].Strata {
			if _, err := stmt.Exec(runAt, region, st.Key.Tier, st.Key.AreaBand, st.Key.AgeBand,
				st.MonthlyRent, st.AnnualRentPerM2, st.EffectiveFloorArea, st.NominalValue); err != nil {
				return fmt.Errorf("postgres: insert estimate %s/%s: %w", region, st.Key, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}

func placeholders(base, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", base+i+1)
	}
	return "(" + strings.Join(parts, ",") + ")"
}
