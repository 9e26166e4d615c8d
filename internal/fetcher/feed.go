package fetcher

import (
	"context"
	"fmt"

	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"

	"notifyme/internal/models"
)

// maxSummaryChars caps stored entry summaries.
const maxSummaryChars = 500

// GofeedFetcher parses RSS/Atom/JSON feeds.
type GofeedFetcher struct {
	parser *gofeed.Parser
	logger zerolog.Logger
}

// NewGofeedFetcher creates a new GofeedFetcher.
func NewGofeedFetcher(userAgent string, logger zerolog.Logger) *GofeedFetcher {
	parser := gofeed.NewParser()
	parser.UserAgent = userAgent
	return &GofeedFetcher{
		parser: parser,
		logger: logger.With().Str("component", "GofeedFetcher").Logger(),
	}
}

// FetchFeed retrieves and parses a feed, mapping entries into the shared
// FeedItem shape. Entry source attribution is left to the caller when the
// feed itself carries none.
func (gf *GofeedFetcher) FetchFeed(ctx context.Context, url string) (*models.Feed, error) {
	parsed, err := gf.parser.ParseURLWithContext(url, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed %s: %w", url, err)
	}

	feed := &models.Feed{
		Title: parsed.Title,
		Items: make([]models.FeedItem, 0, len(parsed.Items)),
	}
	for _, entry := range parsed.Items {
		if entry == nil {
			continue
		}
		summary := models.TruncateText(entry.Description, maxSummaryChars)
		feed.Items = append(feed.Items, models.FeedItem{
			ID:          entry.GUID,
			Title:       entry.Title,
			Link:        entry.Link,
			Published:   entry.Published,
			PublishedAt: entry.PublishedParsed,
			Summary:     summary,
		})
	}

	gf.logger.Debug().Str("url", url).Int("entries", len(feed.Items)).Msg("Feed fetched")
	return feed, nil
}
