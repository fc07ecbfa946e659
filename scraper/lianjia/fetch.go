package lianjia

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/go-resty/resty/v2"

	"rental-ooh/config"
)

// Fetcher returns the HTML of a listing page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
	Close() error
}

// StatusError reports a non-200 response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("received status %d for %s", e.Code, e.URL)
}

// Retryable reports whether the status is worth retrying.
func (e *StatusError) Retryable() bool {
	return e.Code == 429 || e.Code >= 500
}

// NewFetcher builds the fetcher selected by cfg.FetchMode.
func NewFetcher(cfg *config.Config) (Fetcher, error) {
	timeout := time.Duration(cfg.RequestTimeoutMs) * time.Millisecond
	switch cfg.FetchMode {
	case config.FetchModeHTTP, "":
		return NewHTTPFetcher(cfg.UserAgent, timeout), nil
	case config.FetchModeBrowser:
		return NewBrowserFetcher(cfg.ChromeBin, cfg.UserAgent, timeout), nil
	default:
		return nil, fmt.Errorf("lianjia: unknown fetch mode %q", cfg.FetchMode)
	}
}

// HTTPFetcher fetches pages with a plain HTTP client.
type HTTPFetcher struct {
	client *resty.Client
}

// NewHTTPFetcher creates an HTTPFetcher sending the given user agent.
func NewHTTPFetcher(userAgent string, timeout time.Duration) *HTTPFetcher {
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("User-Agent", userAgent)
	client.SetHeader("Referer", "https://www.baidu.com")
	return &HTTPFetcher{client: client}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	res, err := f.client.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		return "", fmt.Errorf("http get: %w", err)
	}
	if res.StatusCode() != 200 {
		return "", &StatusError{URL: url, Code: res.StatusCode()}
	}
	return res.String(), nil
}

func (f *HTTPFetcher) Close() error {
	return nil
}

// BrowserFetcher renders pages in headless Chrome. The browser is started on
// the first Fetch and reused for later pages.
type BrowserFetcher struct {
	browserCtx context.Context
	cancel     []context.CancelFunc
	timeout    time.Duration

	startOnce sync.Once
	startErr  error
}

// NewBrowserFetcher prepares a headless browser allocator. chromeBin may be
// empty, in which case common install locations are searched.
func NewBrowserFetcher(chromeBin, userAgent string, timeout time.Duration) *BrowserFetcher {
	if chromeBin == "" {
		chromeBin = findChromeBinary()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(userAgent),
	)
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	// Suppress chromedp log noise
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	return &BrowserFetcher{
		browserCtx: browserCtx,
		cancel:     []context.CancelFunc{cancelBrowser, cancelAlloc},
		timeout:    timeout,
	}
}

func (f *BrowserFetcher) Fetch(ctx context.Context, url string) (string, error) {
	f.startOnce.Do(func() {
		f.startErr = chromedp.Run(f.browserCtx)
	})
	if f.startErr != nil {
		return "", fmt.Errorf("chromedp start: %w", f.startErr)
	}

	tabCtx, cancelTab := chromedp.NewContext(f.browserCtx)
	defer cancelTab()

	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, f.timeout)
	defer cancelTimeout()

	// Stop the tab when the caller's context ends.
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	var html string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("chromedp fetch: %w", err)
	}
	return html, nil
}

func (f *BrowserFetcher) Close() error {
	for _, cancel := range f.cancel {
		cancel()
	}
	return nil
}

// findChromeBinary locates Chrome/Chromium binary.
func findChromeBinary() string {
	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
