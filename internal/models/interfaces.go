package models

import (
	"context"
	"time"
)

// FetchOptions control how page content is acquired.
type FetchOptions struct {
	UseBrowser bool
	Timeout    time.Duration
	Headers    map[string]string
}

// FetchResult carries the content of a fetched page.
type FetchResult struct {
	URL         string
	HTML        string
	Text        string
	StatusCode  int
	ContentHash string
	UsedBrowser bool
}

// Feed is a parsed syndication feed.
type Feed struct {
	Title string
	Items []FeedItem
}

// Evaluation is the outcome of evaluating a natural-language condition
// against fetched content.
type Evaluation struct {
	ConditionMet bool
	Explanation  string
	Details      map[string]any
	EventID      string
}

// Fetcher acquires page content. Timeouts and transport concerns live behind
// this interface; callers treat any failure as a fetch error.
type Fetcher interface {
	Fetch(ctx context.Context, url string, opts FetchOptions) (*FetchResult, error)
}

// FeedFetcher acquires and parses a syndication feed.
type FeedFetcher interface {
	FetchFeed(ctx context.Context, url string) (*Feed, error)
}

// Evaluator decides whether a natural-language condition holds for content.
type Evaluator interface {
	Evaluate(ctx context.Context, content, condition string) (*Evaluation, error)
}

// BalanceFetcher retrieves an account credit balance via an external
// authentication flow.
type BalanceFetcher interface {
	FetchBalance(ctx context.Context) (float64, error)
}

// MonitorRepository owns Monitor persistence and the notification log.
type MonitorRepository interface {
	AddMonitor(monitor *Monitor) error
	GetMonitor(id string) (*Monitor, error)
	GetMonitorByName(name string) (*Monitor, error)
	ListMonitors(activeOnly bool) ([]*Monitor, error)
	GetMonitorsDue(now time.Time) ([]*Monitor, error)
	UpdateMonitor(monitor *Monitor) error
	DeleteMonitor(id string) (bool, error)
	SetMonitorActive(id string, active bool) (bool, error)
	AddNotification(log *NotificationLog) error
	GetNotifications(monitorID string, limit int) ([]*NotificationLog, error)
	GetLastNotification(monitorID string) (*NotificationLog, error)
}

// Notifier delivers a notification for a triggered monitor. With dryRun set it
// logs instead of delivering, but still returns the would-be log record.
type Notifier interface {
	Send(ctx context.Context, monitor *Monitor, result *CheckResult, dryRun bool) (*NotificationLog, error)
}
