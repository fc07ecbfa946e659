package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	PostgresEnabled  bool
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	MaxConcurrency   int
	RateLimitMs      int
	MaxRetries       int
	PagesToScrape    int
	RequestTimeoutMs int
	FetchMode        string
	UserAgent        string
	ChromeBin        string

	// AssumedDwellingAge replaces a missing construction year. Negative
	// drops such listings.
	AssumedDwellingAge int

	CSVOutputPath      string
	RecordsOutputPath  string
	EstimateOutputPath string
	StrataConfigPath   string
}

const (
	FetchModeHTTP    = "http"
	FetchModeBrowser = "browser"

	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/115.0 Safari/537.36"
)

// Load reads the given env files (.env when none are named) and returns a
// populated Config struct.
func Load(envFiles ...string) *Config {
	if err := godotenv.Load(envFiles...); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		PostgresEnabled:  getEnvBool("POSTGRES_ENABLED", false),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "ooh"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "ooh123"),
		PostgresDB:       getEnv("POSTGRES_DB", "rental_db"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		MaxConcurrency:   getEnvInt("MAX_CONCURRENCY", 3),
		RateLimitMs:      getEnvInt("RATE_LIMIT_MS", 1000),
		MaxRetries:       getEnvInt("MAX_RETRIES", 3),
		PagesToScrape:    getEnvInt("PAGES_TO_SCRAPE", 1),
		RequestTimeoutMs: getEnvInt("REQUEST_TIMEOUT_MS", 10000),
		FetchMode:        strings.ToLower(getEnv("FETCH_MODE", FetchModeHTTP)),
		UserAgent:        getEnv("USER_AGENT", defaultUserAgent),
		ChromeBin:        getEnv("CHROME_BIN", ""),

		AssumedDwellingAge: getEnvInt("ASSUMED_DWELLING_AGE", -1),

		CSVOutputPath:      getEnv("CSV_OUTPUT_PATH", "./output/raw_listings.csv"),
		RecordsOutputPath:  getEnv("RECORDS_OUTPUT_PATH", "./output/rental_records.csv"),
		EstimateOutputPath: getEnv("ESTIMATE_OUTPUT_PATH", "./output/ooh_estimates.csv"),
		StrataConfigPath:   getEnv("STRATA_CONFIG", "./strata.yaml"),
	}
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}
