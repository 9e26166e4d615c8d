package checker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"notifyme/internal/models"
)

// maxSeenIDs bounds the dedup set persisted between cycles. Eviction keeps
// the most recent insertions and drops the oldest.
const maxSeenIDs = 500

// maxFilterContentChars caps article content sent to the relevance filter.
const maxFilterContentChars = 10000

// NewsChecker watches a syndication feed and reports entries not seen before.
// Also serves the rss monitor type.
//
// Config options:
//   - max_age_days: ignore entries older than this many days (first-run guard)
//   - filter_condition: natural-language relevance filter applied to new
//     entries via the evaluation capability
//   - stop_on_first_match: stop filtering after the first matching entry
type NewsChecker struct {
	feedFetcher models.FeedFetcher
	fetcher     models.Fetcher
	evaluator   models.Evaluator
	logger      zerolog.Logger
}

// NewNewsChecker creates a new NewsChecker. The evaluator may be nil when no
// relevance filtering is configured.
func NewNewsChecker(feedFetcher models.FeedFetcher, fetcher models.Fetcher, evaluator models.Evaluator, logger zerolog.Logger) *NewsChecker {
	return &NewsChecker{
		feedFetcher: feedFetcher,
		fetcher:     fetcher,
		evaluator:   evaluator,
		logger:      logger.With().Str("component", "NewsChecker").Logger(),
	}
}

// Check fetches the feed and diffs its entry ids against the stored dedup set.
func (nc *NewsChecker) Check(ctx context.Context, monitor *models.Monitor) (*models.CheckResult, error) {
	feed, err := nc.feedFetcher.FetchFeed(ctx, monitor.URL)
	if err != nil {
		return nil, WrapFetchError(monitor.URL, err)
	}

	seenIDs := make(map[string]struct{})
	for _, id := range monitor.StateStrings("seen_ids") {
		seenIDs[id] = struct{}{}
	}

	var newItems []models.FeedItem
	allIDs := make([]string, 0, len(feed.Items))
	for _, item := range feed.Items {
		id := EntryID(item)
		allIDs = append(allIDs, id)
		if _, seen := seenIDs[id]; seen {
			continue
		}
		item.ID = id
		if item.Source == "" {
			item.Source = sourceFromTitle(item.Title)
		}
		newItems = append(newItems, item)
	}

	if maxAgeDays := monitor.ConfigInt("max_age_days", 0); maxAgeDays > 0 && len(newItems) > 0 {
		before := len(newItems)
		newItems = nc.filterByAge(newItems, maxAgeDays)
		if excluded := before - len(newItems); excluded > 0 {
			nc.logger.Info().Int("excluded", excluded).Int("max_age_days", maxAgeDays).Msg("Age filter excluded old articles")
		}
	}

	if condition := monitor.ConfigString("filter_condition", ""); condition != "" && len(newItems) > 0 {
		newItems = nc.filterByCondition(ctx, newItems, condition, monitor.ConfigBool("stop_on_first_match", false))
	}

	hasNew := len(newItems) > 0
	explanation := "No new articles"
	if hasNew {
		explanation = fmt.Sprintf("Found %d new article(s)", len(newItems))
	}

	return &models.CheckResult{
		ConditionMet: hasNew,
		Explanation:  explanation,
		Details:      map[string]any{"feed_title": feed.Title},
		NewItems:     newItems,
		StateHash:    models.Fingerprint(strings.Join(allIDs, ",")),
	}, nil
}

// ShouldNotify fires on every non-empty batch of new entries. There is no
// transition logic here: each batch is news.
func (nc *NewsChecker) ShouldNotify(monitor *models.Monitor, result *models.CheckResult) bool {
	return len(result.NewItems) > 0
}

// StateForStorage merges the new ids into the stored dedup set, newest first,
// truncated to the cap. The set never shrinks below what fits the cap.
func (nc *NewsChecker) StateForStorage(monitor *models.Monitor, result *models.CheckResult) map[string]any {
	existing := monitor.StateStrings("seen_ids")

	merged := make([]string, 0, len(result.NewItems)+len(existing))
	present := make(map[string]struct{}, len(result.NewItems)+len(existing))
	for _, item := range result.NewItems {
		if _, dup := present[item.ID]; dup {
			continue
		}
		present[item.ID] = struct{}{}
		merged = append(merged, item.ID)
	}
	for _, id := range existing {
		if _, dup := present[id]; dup {
			continue
		}
		present[id] = struct{}{}
		merged = append(merged, id)
	}
	if len(merged) > maxSeenIDs {
		merged = merged[:maxSeenIDs]
	}

	return map[string]any{
		"condition_met": result.ConditionMet,
		"seen_ids":      merged,
		"last_count":    len(result.NewItems),
	}
}

// filterByAge drops entries older than the cutoff. Entries without a parsed
// publish date are kept.
func (nc *NewsChecker) filterByAge(items []models.FeedItem, maxAgeDays int) []models.FeedItem {
	cutoff := time.Now().UTC().AddDate(0, 0, -maxAgeDays)
	kept := items[:0]
	for _, item := range items {
		if item.PublishedAt == nil || !item.PublishedAt.Before(cutoff) {
			kept = append(kept, item)
		}
	}
	return kept
}

// filterByCondition keeps entries the evaluation capability judges relevant.
// Evaluator failures keep the entry rather than risk missing news.
func (nc *NewsChecker) filterByCondition(ctx context.Context, items []models.FeedItem, condition string, stopOnFirst bool) []models.FeedItem {
	if nc.evaluator == nil {
		nc.logger.Warn().Msg("filter_condition set but no evaluator configured; keeping all articles")
		return items
	}

	var matched []models.FeedItem
	for i, item := range items {
		content := nc.articleContent(ctx, item)
		evaluation, err := nc.evaluator.Evaluate(ctx, content, condition)
		if err != nil {
			nc.logger.Warn().Err(err).Str("title", item.Title).Msg("Relevance filter failed; keeping article")
			matched = append(matched, item)
		} else if evaluation.ConditionMet {
			matched = append(matched, item)
		}

		if stopOnFirst && len(matched) > 0 {
			nc.logger.Info().Int("checked", i+1).Msg("Relevance filter stopped on first match")
			return matched
		}
	}

	nc.logger.Info().Int("matched", len(matched)).Int("total", len(items)).Msg("Relevance filter complete")
	return matched
}

// articleContent fetches the linked article for filtering, falling back to
// title and summary when the fetch fails.
func (nc *NewsChecker) articleContent(ctx context.Context, item models.FeedItem) string {
	if item.Link != "" && nc.fetcher != nil {
		if fetched, err := nc.fetcher.Fetch(ctx, item.Link, models.FetchOptions{Timeout: 15 * time.Second}); err == nil {
			return models.TruncateText(fetched.Text, maxFilterContentChars)
		}
	}
	return fmt.Sprintf("Title: %s\n\nSummary: %s", item.Title, item.Summary)
}

// EntryID derives the dedup key for a feed entry: the feed-provided id when
// present, else a fingerprint of the link, the title, or the whole entry.
func EntryID(item models.FeedItem) string {
	if item.ID != "" {
		return item.ID
	}
	if item.Link != "" {
		return models.Fingerprint(item.Link)
	}
	if item.Title != "" {
		return models.Fingerprint(item.Title)
	}
	return models.Fingerprint(fmt.Sprintf("%s|%s|%s", item.Title, item.Published, item.Summary))
}

// sourceFromTitle extracts the publisher from Google-News style titles of the
// form "Article Title - Source Name".
func sourceFromTitle(title string) string {
	if idx := strings.LastIndex(title, " - "); idx >= 0 {
		return title[idx+len(" - "):]
	}
	return "Unknown"
}
