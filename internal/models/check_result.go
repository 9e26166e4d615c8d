package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
	"unicode/utf8"
)

// CheckResult is the short-lived outcome of one check cycle for one monitor.
// The meaning of ConditionMet is type-specific: "page changed", "price below
// threshold", "new articles found", "condition satisfied".
type CheckResult struct {
	ConditionMet bool
	Explanation  string
	Details      map[string]any
	StateHash    string
	NewItems     []FeedItem
}

// FeedItem is a single entry discovered by a feed-style checker.
type FeedItem struct {
	ID          string
	Title       string
	Link        string
	Published   string
	PublishedAt *time.Time
	Source      string
	Summary     string
}

// Fingerprint returns a short deterministic digest of text content, used for
// cheap equality checks between observations.
func Fingerprint(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])[:16]
}

// TruncateText shortens s to at most maxBytes bytes without cutting a UTF-8
// rune in half. The cut point backs up to the nearest rune boundary.
func TruncateText(s string, maxBytes int) string {
	if maxBytes <= 0 {
		return ""
	}
	if len(s) <= maxBytes {
		return s
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
