package checker

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"notifyme/internal/models"
)

var priceTokenRegex = regexp.MustCompile(`(\d+(?:\.\d{1,2})?)`)

// PriceChecker extracts a numeric price from a selector-scoped element and
// alerts when it drops below a threshold.
//
// Config options:
//   - selector: CSS selector for the price element (required)
//   - threshold: alert when the price falls below this value (required)
//   - currency: expected currency symbol to strip (default "$")
//   - use_browser: render via headless browser for JS-heavy pages
type PriceChecker struct {
	fetcher models.Fetcher
	logger  zerolog.Logger
}

// NewPriceChecker creates a new PriceChecker.
func NewPriceChecker(fetcher models.Fetcher, logger zerolog.Logger) *PriceChecker {
	return &PriceChecker{
		fetcher: fetcher,
		logger:  logger.With().Str("component", "PriceChecker").Logger(),
	}
}

// Check fetches the page and compares the extracted price to the threshold.
// A missing selector match or unparseable price is a soft miss, not an error:
// the result explains the problem with ConditionMet=false.
func (pc *PriceChecker) Check(ctx context.Context, monitor *models.Monitor) (*models.CheckResult, error) {
	selector := monitor.ConfigString("selector", "")
	if selector == "" {
		return nil, NewConfigError(monitor.Name, "selector")
	}
	threshold, ok := monitor.ConfigFloat("threshold", 0)
	if !ok {
		return nil, NewConfigError(monitor.Name, "threshold")
	}
	currency := monitor.ConfigString("currency", "$")

	opts := models.FetchOptions{UseBrowser: monitor.ConfigBool("use_browser", false)}
	fetchResult, err := pc.fetcher.Fetch(ctx, monitor.URL, opts)
	if err != nil {
		return nil, WrapFetchError(monitor.URL, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fetchResult.HTML))
	if err != nil {
		return nil, WrapFetchError(monitor.URL, err)
	}

	selection := doc.Find(selector).First()
	if selection.Length() == 0 {
		return &models.CheckResult{
			ConditionMet: false,
			Explanation:  fmt.Sprintf("Price element not found with selector: %s", selector),
			Details:      map[string]any{"error": "selector_not_found"},
		}, nil
	}

	priceText := strings.TrimSpace(selection.Text())
	price, parsed := ParsePrice(priceText, currency)
	if !parsed {
		return &models.CheckResult{
			ConditionMet: false,
			Explanation:  fmt.Sprintf("Could not parse price from: %s", priceText),
			Details:      map[string]any{"raw_text": priceText},
		}, nil
	}

	belowThreshold := price < threshold
	var explanation string
	if belowThreshold {
		explanation = fmt.Sprintf("Price $%.2f is below threshold $%.2f", price, threshold)
	} else {
		explanation = fmt.Sprintf("Price $%.2f is at or above threshold $%.2f", price, threshold)
	}

	return &models.CheckResult{
		ConditionMet: belowThreshold,
		Explanation:  explanation,
		Details: map[string]any{
			"price":      price,
			"threshold":  threshold,
			"price_text": priceText,
		},
	}, nil
}

// ShouldNotify fires only on the transition into below-threshold territory.
// Repeated low readings stay quiet until the price recovers and drops again.
// Unlike the webpage checker there is no baseline suppression: a first
// observation already below threshold is immediately actionable.
func (pc *PriceChecker) ShouldNotify(monitor *models.Monitor, result *models.CheckResult) bool {
	if !result.ConditionMet {
		return false
	}
	return !monitor.StateBool("below_threshold")
}

// StateForStorage stores the threshold status and last observed price.
func (pc *PriceChecker) StateForStorage(monitor *models.Monitor, result *models.CheckResult) map[string]any {
	state := map[string]any{
		"condition_met":   result.ConditionMet,
		"below_threshold": result.ConditionMet,
	}
	if price, ok := result.Details["price"]; ok {
		state["last_price"] = price
	}
	return state
}

// ParsePrice extracts a float from price text, tolerating currency symbols,
// codes, and thousands separators: "$1,234.56", "USD 1234", "1234.56".
func ParsePrice(text, currency string) (float64, bool) {
	cleaned := strings.ReplaceAll(text, currency, "")
	cleaned = strings.ReplaceAll(cleaned, "USD", "")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.TrimSpace(cleaned)

	match := priceTokenRegex.FindString(cleaned)
	if match == "" {
		return 0, false
	}
	price, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}
	return price, true
}
