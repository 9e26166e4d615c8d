package fetcher

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"notifyme/internal/config"
	"notifyme/internal/models"
)

// maxResponseSize caps how much of a response body is read.
const maxResponseSize = 10 * 1024 * 1024 // 10MB

// HTTPFetcher acquires page content over plain HTTP, with an optional
// headless-browser fallback for pages that need JS rendering or refuse
// non-browser clients.
type HTTPFetcher struct {
	cfg     config.FetcherConfig
	client  *http.Client
	browser *BrowserFetcher
	logger  zerolog.Logger
}

// NewHTTPFetcher creates a new HTTPFetcher.
func NewHTTPFetcher(cfg config.FetcherConfig, logger zerolog.Logger) *HTTPFetcher {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &HTTPFetcher{
		cfg: cfg,
		client: &http.Client{
			Timeout:   time.Duration(cfg.TimeoutSeconds) * time.Second,
			Transport: transport,
		},
		browser: NewBrowserFetcher(logger),
		logger:  logger.With().Str("component", "HTTPFetcher").Logger(),
	}
}

// Close shuts down the shared headless browser, if one was launched.
func (hf *HTTPFetcher) Close() {
	hf.browser.Close()
}

// Fetch retrieves a URL and returns its HTML, extracted text, and content
// fingerprint. With UseBrowser set the page is rendered headlessly; otherwise
// a plain GET is attempted first and the browser is used as a fallback when
// enabled.
func (hf *HTTPFetcher) Fetch(ctx context.Context, url string, opts models.FetchOptions) (*models.FetchResult, error) {
	if opts.UseBrowser {
		return hf.fetchWithBrowser(ctx, url)
	}

	result, err := hf.fetchPlain(ctx, url, opts)
	if err != nil && hf.cfg.BrowserFallback {
		hf.logger.Warn().Err(err).Str("url", url).Msg("Plain fetch failed, retrying with browser")
		if browserResult, browserErr := hf.fetchWithBrowser(ctx, url); browserErr == nil {
			return browserResult, nil
		}
	}
	return result, err
}

func (hf *HTTPFetcher) fetchPlain(ctx context.Context, url string, opts models.FetchOptions) (*models.FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", url, err)
	}

	req.Header.Set("User-Agent", hf.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	for key, value := range opts.Headers {
		req.Header.Set(key, value)
	}

	client := hf.client
	if opts.Timeout > 0 {
		clientCopy := *hf.client
		clientCopy.Timeout = opts.Timeout
		client = &clientCopy
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed for %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body for %s: %w", url, err)
	}

	return buildFetchResult(url, string(body), resp.StatusCode, false)
}

func (hf *HTTPFetcher) fetchWithBrowser(ctx context.Context, url string) (*models.FetchResult, error) {
	html, err := hf.browser.RenderPage(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("browser fetch failed for %s: %w", url, err)
	}
	return buildFetchResult(url, html, http.StatusOK, true)
}

// buildFetchResult extracts readable text from HTML and fingerprints it.
// Script, style, and chrome elements are stripped so cosmetic markup churn
// does not register as a content change.
func buildFetchResult(url, html string, statusCode int, usedBrowser bool) (*models.FetchResult, error) {
	text, err := ExtractText(html)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML for %s: %w", url, err)
	}

	return &models.FetchResult{
		URL:         url,
		HTML:        html,
		Text:        text,
		StatusCode:  statusCode,
		ContentHash: models.Fingerprint(text),
		UsedBrowser: usedBrowser,
	}, nil
}

// ExtractText returns the visible text of an HTML document, one line per
// text node, with script/style/nav/header/footer removed.
func ExtractText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}

	doc.Find("script, style, nav, footer, header").Remove()

	var lines []string
	doc.Find("body").Each(func(_ int, body *goquery.Selection) {
		for _, line := range strings.Split(body.Text(), "\n") {
			if trimmed := strings.TrimSpace(line); trimmed != "" {
				lines = append(lines, trimmed)
			}
		}
	})
	if lines == nil {
		// No body element; fall back to the whole document text.
		for _, line := range strings.Split(doc.Text(), "\n") {
			if trimmed := strings.TrimSpace(line); trimmed != "" {
				lines = append(lines, trimmed)
			}
		}
	}
	return strings.Join(lines, "\n"), nil
}
