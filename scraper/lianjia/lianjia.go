package lianjia

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"rental-ooh/config"
	"rental-ooh/models"
	"rental-ooh/utils"
)

const (
	platform           = "lianjia"
	defaultURLTemplate = "https://%s.lianjia.com/zufang/"
)

// Scraper fetches rental listing pages for one or more cities.
type Scraper struct {
	cfg         *config.Config
	logger      *utils.Logger
	fetcher     Fetcher
	retry       *utils.RetryConfig
	visitedURL  *utils.Set[string]
	urlTemplate string
	now         func() time.Time
}

// New creates a Scraper using fetcher for page requests.
func New(cfg *config.Config, logger *utils.Logger, fetcher Fetcher) *Scraper {
	return &Scraper{
		cfg:     cfg,
		logger:  logger,
		fetcher: fetcher,
		retry: &utils.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
		},
		visitedURL:  utils.NewURLSet(),
		urlTemplate: defaultURLTemplate,
		now:         time.Now,
	}
}

// PageURL returns the listing URL of a city's page. Page 1 is the base URL,
// later pages live under pgN/.
func (s *Scraper) PageURL(city string, page int) string {
	base := fmt.Sprintf(s.urlTemplate, city)
	if page <= 1 {
		return base
	}
	return fmt.Sprintf("%spg%d/", base, page)
}

// Scrape fetches up to pages listing pages for city. Pages that fail are
// logged and skipped; an empty page ends the city early.
func (s *Scraper) Scrape(ctx context.Context, city string, pages int) ([]*models.RawListing, error) {
	s.logger.Info("[lianjia] Starting scrape of %s, target: %d pages", city, pages)

	var listings []*models.RawListing
	for page := 1; page <= pages; page++ {
		if err := ctx.Err(); err != nil {
			return listings, err
		}

		pageURL := s.PageURL(city, page)
		html, err := s.fetchPage(ctx, pageURL, page)
		if err != nil {
			if ctx.Err() != nil {
				return listings, ctx.Err()
			}
			s.logger.Warn("[lianjia] %v", err)
		} else {
			pageListings, err := ParseListings(html, city, pageURL, s.now())
			if err != nil {
				return listings, fmt.Errorf("lianjia: page %d of %s: %w", page, city, err)
			}
			if len(pageListings) == 0 {
				s.logger.Warn("[lianjia] Page %d of %s returned 0 listings, stopping", page, city)
				break
			}
			listings = append(listings, s.dedupe(pageListings)...)
			s.logger.Info("[lianjia] Page %d of %s done, %d listings so far", page, city, len(listings))
		}

		if page < pages {
			if err := sleep(ctx, time.Duration(s.cfg.RateLimitMs)*time.Millisecond); err != nil {
				return listings, err
			}
		}
	}

	s.logger.Info("[lianjia] Scrape of %s complete, raw listings: %d", city, len(listings))
	return listings, nil
}

// ScrapeCities scrapes each city on the worker pool and returns all listings
// ordered by city.
func (s *Scraper) ScrapeCities(ctx context.Context, cities []string, pages int) ([]*models.RawListing, error) {
	var mu sync.Mutex
	byCity := make(map[string][]*models.RawListing, len(cities))
	var errs []error

	pool := utils.NewWorkerPool(s.cfg.MaxConcurrency, s.cfg.RateLimitMs)
	for _, city := range cities {
		pool.Submit(func() {
			listings, err := s.Scrape(ctx, city, pages)
			mu.Lock()
			defer mu.Unlock()
			byCity[city] = listings
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", city, err))
			}
		})
	}
	pool.Wait()
	s.logger.Info("[lianjia] %d unique listing URLs across %d cities", s.visitedURL.Size(), len(cities))

	sorted := append([]string(nil), cities...)
	sort.Strings(sorted)

	var all []*models.RawListing
	for _, city := range sorted {
		all = append(all, byCity[city]...)
	}
	return all, errors.Join(errs...)
}

func (s *Scraper) fetchPage(ctx context.Context, pageURL string, page int) (string, error) {
	var html string
	var permanent error

	err := s.retry.Do(ctx, fmt.Sprintf("fetch-page-%d", page), func() error {
		body, err := s.fetcher.Fetch(ctx, pageURL)
		var status *StatusError
		if errors.As(err, &status) && !status.Retryable() {
			permanent = err
			return nil
		}
		if err != nil {
			return err
		}
		html = body
		return nil
	})
	if err != nil {
		return "", err
	}
	if permanent != nil {
		return "", permanent
	}
	return html, nil
}

func (s *Scraper) dedupe(listings []*models.RawListing) []*models.RawListing {
	out := listings[:0]
	for _, l := range listings {
		if l.URL != "" && !s.visitedURL.Add(l.URL) {
			s.logger.Debug("[lianjia] Skipping duplicate: %s", l.URL)
			continue
		}
		out = append(out, l)
	}
	return out
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
