package checker

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"github.com/sergi/go-diff/diffmatchpatch"

	"notifyme/internal/models"
)

// maxStoredExcerpt caps the text snapshot kept between cycles for diffing.
const maxStoredExcerpt = 4096

// WebpageChecker detects any change to a webpage by fingerprinting its
// (optionally selector-scoped) text content.
//
// Config options:
//   - selector: CSS selector limiting which part of the page is fingerprinted
//   - use_browser: render via headless browser for JS-heavy pages
type WebpageChecker struct {
	fetcher models.Fetcher
	logger  zerolog.Logger
}

// NewWebpageChecker creates a new WebpageChecker.
func NewWebpageChecker(fetcher models.Fetcher, logger zerolog.Logger) *WebpageChecker {
	return &WebpageChecker{
		fetcher: fetcher,
		logger:  logger.With().Str("component", "WebpageChecker").Logger(),
	}
}

// Check fetches the page and compares its fingerprint to the previous one.
// The first observation records a baseline and never reports a change.
func (wc *WebpageChecker) Check(ctx context.Context, monitor *models.Monitor) (*models.CheckResult, error) {
	opts := models.FetchOptions{UseBrowser: monitor.ConfigBool("use_browser", false)}

	fetchResult, err := wc.fetcher.Fetch(ctx, monitor.URL, opts)
	if err != nil {
		return nil, WrapFetchError(monitor.URL, err)
	}

	text, contentHash := wc.scopedContent(monitor, fetchResult)

	previousHash := monitor.StateString("hash")
	changed := previousHash != "" && contentHash != previousHash

	var explanation string
	switch {
	case previousHash == "":
		explanation = "First check - baseline recorded"
	case changed:
		explanation = "Page content has changed"
	default:
		explanation = "No changes detected"
	}

	details := map[string]any{
		"hash":          contentHash,
		"previous_hash": previousHash,
		"excerpt":       text,
	}
	if changed {
		if summary := wc.diffSummary(monitor.StateString("excerpt"), text); summary != "" {
			details["diff_summary"] = summary
		}
	}

	return &models.CheckResult{
		ConditionMet: changed,
		Explanation:  explanation,
		Details:      details,
		StateHash:    contentHash,
	}, nil
}

// ShouldNotify reports a change only when a baseline already existed.
func (wc *WebpageChecker) ShouldNotify(monitor *models.Monitor, result *models.CheckResult) bool {
	return monitor.StateString("hash") != "" && result.ConditionMet
}

// StateForStorage keeps the fingerprint and a capped text excerpt for the
// next cycle's diff summary.
func (wc *WebpageChecker) StateForStorage(monitor *models.Monitor, result *models.CheckResult) map[string]any {
	excerpt, _ := result.Details["excerpt"].(string)
	return map[string]any{
		"condition_met": result.ConditionMet,
		"hash":          result.StateHash,
		"excerpt":       excerpt,
	}
}

// scopedContent returns the text to fingerprint and its hash. When a selector
// is configured and matches, only the selected element's text counts; a
// missing selector falls back to the whole-page hash. The chosen excerpt is
// stashed in Details so StateForStorage can persist it without re-fetching.
func (wc *WebpageChecker) scopedContent(monitor *models.Monitor, fetchResult *models.FetchResult) (string, string) {
	text := fetchResult.Text
	contentHash := fetchResult.ContentHash

	selector := monitor.ConfigString("selector", "")
	if selector != "" {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(fetchResult.HTML))
		if err == nil {
			selection := doc.Find(selector).First()
			if selection.Length() > 0 {
				text = strings.TrimSpace(selection.Text())
				contentHash = models.Fingerprint(text)
			} else {
				wc.logger.Warn().Str("selector", selector).Str("url", monitor.URL).Msg("Selector not found on page")
			}
		}
	}

	text = models.TruncateText(text, maxStoredExcerpt)
	return text, contentHash
}

// diffSummary produces a compact "+adds/-dels chars" summary of the change
// between the stored excerpt and the new text.
func (wc *WebpageChecker) diffSummary(previous, current string) string {
	if previous == "" {
		return ""
	}
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(previous, current, false)

	var added, removed int
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			added += len(d.Text)
		case diffmatchpatch.DiffDelete:
			removed += len(d.Text)
		}
	}
	if added == 0 && removed == 0 {
		return ""
	}
	return fmt.Sprintf("+%d/-%d chars", added, removed)
}
