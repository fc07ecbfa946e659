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
	"rental-ooh/scraper/lianjia"
	"rental-ooh/services"
	"rental-ooh/storage"
)

var (
	scrapePages int
	assumedAge  int
)

// scrapeCmd represents the scrape command
var scrapeCmd = &cobra.Command{
	Use:   "scrape <city>...",
	Short: "Scrape and clean rental listings for one or more cities",
	Long: `Scrape fetches Lianjia rental listing pages for each city code, writes the
raw listings to CSV, cleans them into rental records and prints a summary.
Cleaned records are written to CSV and, when POSTGRES_ENABLED is set,
stored in PostgreSQL.

Example:
  ooh scrape sh hz --pages 3
  ooh scrape nj su wx --strata ./strata.yaml --assumed-age 15`,
	Args: cobra.MinimumNArgs(1),
	RunE: runScrape,
}

func init() {
	rootCmd.AddCommand(scrapeCmd)

	scrapeCmd.Flags().IntVar(&scrapePages, "pages", 0, "pages per city (default: $PAGES_TO_SCRAPE)")
	scrapeCmd.Flags().IntVar(&assumedAge, "assumed-age", -1, "dwelling age used when a listing has no construction year; negative drops the listing (default: $ASSUMED_DWELLING_AGE)")
}

func runScrape(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	strata, err := config.LoadStrata(strataPath)
	if err != nil {
		return err
	}

	listings, records, err := scrapeRecords(ctx, cmd, strata, args)
	if err != nil {
		return err
	}

	if len(records) == 0 {
		logger.Warn("No listing had a floor area and construction year; no records written (try --assumed-age)")
	} else {
		if err := writeRecordsCSV(records); err != nil {
			logger.Error("Records CSV write failed: %v", err)
		}

		if cfg.PostgresEnabled {
			pg, err := storage.NewPostgresWriter(cfg.DSN())
			if err != nil {
				return err
			}
			defer pg.Close()
			if err := pg.WriteRecords(records); err != nil {
				return err
			}
			logger.Info("Clean records stored in PostgreSQL (table: rental_records)")

			// Report on the stored dataset, which may include earlier runs
			// for other cities.
			if stored, err := pg.FetchRecords(); err != nil {
				logger.Warn("Failed to fetch records from DB for insights: %v", err)
			} else {
				records = stored
			}
		}
	}

	insights := services.NewInsightService(logger)
	insights.Print(cmd.OutOrStdout(), insights.Generate(listings, records))
	return nil
}

// scrapeRecords scrapes cities, saves the raw listings and returns every
// priced listing along with the cleaned records.
func scrapeRecords(ctx context.Context, cmd *cobra.Command, strata *config.Strata, cities []string) ([]models.PricedListing, []models.RentalRecord, error) {
	for _, city := range cities {
		if _, ok := strata.CityTier(city); !ok {
			return nil, nil, fmt.Errorf("city %q is not configured in %s", city, strataPath)
		}
	}

	pages := cfg.PagesToScrape
	if cmd.Flags().Changed("pages") {
		pages = scrapePages
	}
	age := cfg.AssumedDwellingAge
	if cmd.Flags().Changed("assumed-age") {
		age = assumedAge
	}

	logger.Info("Config: cities %v | pages: %d | concurrency: %d | rate: %dms | fetch: %s",
		cities, pages, cfg.MaxConcurrency, cfg.RateLimitMs, cfg.FetchMode)

	fetcher, err := lianjia.NewFetcher(cfg)
	if err != nil {
		return nil, nil, err
	}
	defer fetcher.Close()

	raw, err := lianjia.New(cfg, logger, fetcher).ScrapeCities(ctx, cities, pages)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, nil, err
		}
		logger.Warn("Scrape finished with errors: %v", err)
	}
	if len(raw) == 0 {
		return nil, nil, errors.New("no listings were scraped")
	}

	rawWriter, err := storage.NewRawCSVWriter(cfg.CSVOutputPath)
	if err != nil {
		return nil, nil, err
	}
	defer rawWriter.Close()
	if err := rawWriter.WriteRaw(raw); err != nil {
		logger.Error("Raw CSV write failed: %v", err)
	} else {
		logger.Info("Raw listings saved to %s", cfg.CSVOutputPath)
	}

	cleaner := services.NewCleaner(logger, strata.Tiers(), age)
	return cleaner.Prices(raw), cleaner.Clean(raw), nil
}

func writeRecordsCSV(records []models.RentalRecord) error {
	w, err := storage.NewRecordCSVWriter(cfg.RecordsOutputPath)
	if err != nil {
		return err
	}
	if err := w.WriteRecords(records); err != nil {
		_ = w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	logger.Info("Clean records saved to %s", cfg.RecordsOutputPath)
	return nil
}
