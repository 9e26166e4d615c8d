package fetcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog"
)

// pageLoadTimeout bounds how long a rendered page may take to settle.
const pageLoadTimeout = 60 * time.Second

// BrowserFetcher renders pages through a headless Chromium instance. The
// browser launches lazily on first use and is shared across fetches.
type BrowserFetcher struct {
	logger  zerolog.Logger
	mutex   sync.Mutex
	browser *rod.Browser
}

// NewBrowserFetcher creates a new BrowserFetcher.
func NewBrowserFetcher(logger zerolog.Logger) *BrowserFetcher {
	return &BrowserFetcher{
		logger: logger.With().Str("component", "BrowserFetcher").Logger(),
	}
}

// RenderPage navigates to a URL, waits for load, and returns the rendered HTML.
func (bf *BrowserFetcher) RenderPage(ctx context.Context, url string) (string, error) {
	browser, err := bf.getBrowser()
	if err != nil {
		return "", err
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, pageLoadTimeout)
	defer cancel()

	page, err := browser.Context(timeoutCtx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return "", fmt.Errorf("failed to create page: %w", err)
	}
	defer page.Close()

	if err := page.Navigate(url); err != nil {
		return "", fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return "", fmt.Errorf("page load timeout for %s: %w", url, err)
	}

	html, err := page.HTML()
	if err != nil {
		return "", fmt.Errorf("failed to get HTML for %s: %w", url, err)
	}
	return html, nil
}

// Close shuts down the browser instance, if one was launched.
func (bf *BrowserFetcher) Close() {
	bf.mutex.Lock()
	defer bf.mutex.Unlock()

	if bf.browser != nil {
		if err := bf.browser.Close(); err != nil {
			bf.logger.Warn().Err(err).Msg("Failed to close browser")
		}
		bf.browser = nil
	}
}

func (bf *BrowserFetcher) getBrowser() (*rod.Browser, error) {
	bf.mutex.Lock()
	defer bf.mutex.Unlock()

	if bf.browser != nil {
		return bf.browser, nil
	}

	controlURL, err := launcher.New().
		Headless(true).
		Set("no-sandbox").
		Set("disable-dev-shm-usage").
		Set("disable-gpu").
		Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	bf.logger.Debug().Msg("Headless browser launched")
	bf.browser = browser
	return browser, nil
}
