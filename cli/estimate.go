package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"rental-ooh/config"
	"rental-ooh/models"
	"rental-ooh/services"
	"rental-ooh/storage"
)

var (
	inputPath    string
	fromDB       bool
	scrapeCities []string
	outputPath   string
	workers      int
)

// estimateCmd represents the estimate command
var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Estimate nominal OOH value per region by rental equivalence",
	Long: `Estimate stratifies rental records per city, aggregates the city means into
weighted regional means and values each region's effective floor area.

Records come from exactly one source: a CSV file (--input), the PostgreSQL
rental_records table (--from-db) or a fresh scrape (--city).

Example:
  ooh estimate --input output/rental_records.csv
  ooh estimate --strata ./strata.yaml --from-db
  ooh estimate --city nj --city su --city wx --pages 2`,
	Args: cobra.NoArgs,
	RunE: runEstimate,
}

func init() {
	rootCmd.AddCommand(estimateCmd)

	estimateCmd.Flags().StringVar(&inputPath, "input", "", "rental records CSV (city, tier, floor_area, dwelling_age, monthly_rent)")
	estimateCmd.Flags().BoolVar(&fromDB, "from-db", false, "read rental records from PostgreSQL")
	estimateCmd.Flags().StringSliceVar(&scrapeCities, "city", nil, "scrape these city codes first")
	estimateCmd.Flags().IntVar(&scrapePages, "pages", 0, "pages per city when scraping (default: $PAGES_TO_SCRAPE)")
	estimateCmd.Flags().IntVar(&assumedAge, "assumed-age", -1, "dwelling age used when a listing has no construction year (default: $ASSUMED_DWELLING_AGE)")
	estimateCmd.Flags().StringVarP(&outputPath, "output", "o", "", "estimate CSV path (default: $ESTIMATE_OUTPUT_PATH)")
	estimateCmd.Flags().IntVar(&workers, "workers", 0, "cities stratified in parallel (default: $MAX_CONCURRENCY)")
}

func runEstimate(cmd *cobra.Command, args []string) error {
	sources := 0
	for _, set := range []bool{inputPath != "", fromDB, len(scrapeCities) > 0} {
		if set {
			sources++
		}
	}
	if sources != 1 {
		return errors.New("exactly one of --input, --from-db or --city is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	strata, err := config.LoadStrata(strataPath)
	if err != nil {
		return err
	}

	records, err := loadRecords(ctx, cmd, strata)
	if err != nil {
		return err
	}

	cleaner := services.NewCleaner(logger, strata.Tiers(), cfg.AssumedDwellingAge)
	records = configuredOnly(cleaner.AssignTiers(records), strata)
	logger.Info("Estimating from %d records across %d regions", len(records), len(strata.Regions))

	n := cfg.MaxConcurrency
	if workers > 0 {
		n = workers
	}
	estimates, err := services.NewEstimator(strata, n, logger).Run(ctx, storage.GroupByCity(records))
	if err != nil {
		var insufficient *models.InsufficientDataError
		if estimates == nil || !errors.As(err, &insufficient) {
			return err
		}
		logger.Warn("Partial results: %v", err)
	}
	if len(estimates) == 0 {
		return errors.New("no region could be estimated")
	}

	services.NewInsightService(logger).PrintEstimates(cmd.OutOrStdout(), estimates, strata.Bands())

	path := cfg.EstimateOutputPath
	if outputPath != "" {
		path = outputPath
	}
	if err := writeEstimates(path, estimates); err != nil {
		return err
	}
	logger.Info("Estimates saved to %s", path)

	if cfg.PostgresEnabled {
		pg, err := storage.NewPostgresWriter(cfg.DSN())
		if err != nil {
			return err
		}
		defer pg.Close()
		if err := pg.WriteEstimates(estimates); err != nil {
			return err
		}
		logger.Info("Estimates stored in PostgreSQL (table: ooh_estimates)")
	}
	return nil
}

func loadRecords(ctx context.Context, cmd *cobra.Command, strata *config.Strata) ([]models.RentalRecord, error) {
	switch {
	case inputPath != "":
		return storage.ReadRecords(inputPath)
	case fromDB:
		pg, err := storage.NewPostgresWriter(cfg.DSN())
		if err != nil {
			return nil, err
		}
		defer pg.Close()
		return pg.FetchRecords()
	default:
		_, records, err := scrapeRecords(ctx, cmd, strata, scrapeCities)
		if err != nil {
			return nil, err
		}
		if len(records) == 0 {
			return nil, errors.New("all listings were dropped during cleaning")
		}
		if err := writeRecordsCSV(records); err != nil {
			logger.Error("Records CSV write failed: %v", err)
		}
		return records, nil
	}
}

// configuredOnly drops records of cities missing from the strata file.
func configuredOnly(records []models.RentalRecord, strata *config.Strata) []models.RentalRecord {
	out := records[:0]
	dropped := make(map[string]int)
	for _, r := range records {
		if _, ok := strata.CityTier(r.City); !ok {
			dropped[r.City]++
			continue
		}
		out = append(out, r)
	}
	for city, n := range dropped {
		logger.Warn("Ignoring %d records from unconfigured city %q", n, city)
	}
	return out
}

func writeEstimates(path string, estimates map[string]models.OOHEstimate) error {
	w, err := storage.NewEstimateCSVWriter(path)
	if err != nil {
		return err
	}
	if err := w.WriteEstimates(estimates); err != nil {
		_ = w.Close()
		return fmt.Errorf("write estimates: %w", err)
	}
	return w.Close()
}
