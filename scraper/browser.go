package scraper

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"rental-scraper/utils"
)

// renderWait gives client-side scripts time to populate the listing markup.
const renderWait = 3 * time.Second

// BrowserFetcher renders pages in headless Chrome for agencies whose
// listings are built client-side. One browser process is started on first
// use and every fetch opens a tab in it.
type BrowserFetcher struct {
	chromeBin string
	userAgent string
	logger    *utils.Logger

	once          sync.Once
	browserCtx    context.Context
	startErr      error
	cancelAlloc   context.CancelFunc
	cancelBrowser context.CancelFunc
}

// NewBrowserFetcher creates a BrowserFetcher. An empty chromeBin searches
// the usual install locations.
func NewBrowserFetcher(chromeBin, userAgent string, logger *utils.Logger) *BrowserFetcher {
	return &BrowserFetcher{chromeBin: chromeBin, userAgent: userAgent, logger: logger}
}

func (b *BrowserFetcher) start() {
	bin := b.chromeBin
	if bin == "" {
		bin = findChromeBinary()
	}
	b.logger.Info("[browser] Using browser binary: %q", bin)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.UserAgent(b.userAgent),
	)
	if bin != "" {
		opts = append(opts, chromedp.ExecPath(bin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)

	// Suppress chromedp log noise
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	b.browserCtx = browserCtx
	b.cancelAlloc = cancelAlloc
	b.cancelBrowser = cancelBrowser

	// Running with no actions launches the browser; tabs opened from
	// browserCtx later share this process.
	if err := chromedp.Run(browserCtx); err != nil {
		b.startErr = fmt.Errorf("start browser: %w", err)
		b.logger.Error("[browser] %v", b.startErr)
	}
}

// Fetch navigates to pageURL and returns the rendered document.
func (b *BrowserFetcher) Fetch(ctx context.Context, pageURL string) ([]byte, error) {
	b.once.Do(b.start)
	if b.startErr != nil {
		return nil, b.startErr
	}

	tabCtx, cancel := chromedp.NewContext(b.browserCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		tabCtx, cancelDeadline = context.WithDeadline(tabCtx, deadline)
		defer cancelDeadline()
	}

	var html string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(pageURL),
		chromedp.Sleep(renderWait),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("render %s: %w", pageURL, ctx.Err())
		}
		return nil, fmt.Errorf("render %s: %w", pageURL, err)
	}
	return []byte(html), nil
}

// Close shuts the browser down if it was started.
func (b *BrowserFetcher) Close() error {
	if b.cancelBrowser != nil {
		b.cancelBrowser()
	}
	if b.cancelAlloc != nil {
		b.cancelAlloc()
	}
	return nil
}

// findChromeBinary locates Chrome/Chromium binary.
func findChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
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
