package checker

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"notifyme/internal/models"
)

// Checker is the per-type strategy contract: observe, decide, project.
//
// Check performs the type-specific observation and may do I/O through the
// injected capabilities. ShouldNotify and StateForStorage are pure functions
// over the monitor's last-observation state and the new result.
type Checker interface {
	Check(ctx context.Context, monitor *models.Monitor) (*models.CheckResult, error)
	ShouldNotify(monitor *models.Monitor, result *models.CheckResult) bool
	StateForStorage(monitor *models.Monitor, result *models.CheckResult) map[string]any
}

// Registry resolves checkers by monitor type.
type Registry struct {
	checkers map[models.MonitorType]Checker
}

// NewRegistry creates an empty checker registry.
func NewRegistry() *Registry {
	return &Registry{checkers: make(map[models.MonitorType]Checker)}
}

// Register binds a checker to a monitor type, replacing any existing binding.
func (r *Registry) Register(monitorType models.MonitorType, c Checker) {
	r.checkers[monitorType] = c
}

// Get resolves the checker for a monitor type.
func (r *Registry) Get(monitorType models.MonitorType) (Checker, error) {
	c, ok := r.checkers[monitorType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, monitorType)
	}
	return c, nil
}

// Capabilities bundles the external collaborators the checkers depend on.
type Capabilities struct {
	Fetcher        models.Fetcher
	FeedFetcher    models.FeedFetcher
	Evaluator      models.Evaluator
	BalanceFetcher models.BalanceFetcher
}

// NewDefaultRegistry wires one checker per monitor type. The rss type shares
// the news checker.
func NewDefaultRegistry(caps Capabilities, logger zerolog.Logger) *Registry {
	registry := NewRegistry()
	news := NewNewsChecker(caps.FeedFetcher, caps.Fetcher, caps.Evaluator, logger)

	registry.Register(models.MonitorTypeWebpage, NewWebpageChecker(caps.Fetcher, logger))
	registry.Register(models.MonitorTypePrice, NewPriceChecker(caps.Fetcher, logger))
	registry.Register(models.MonitorTypeNews, news)
	registry.Register(models.MonitorTypeRSS, news)
	registry.Register(models.MonitorTypeAgentic, NewAgenticChecker(caps.Fetcher, caps.Evaluator, logger))
	registry.Register(models.MonitorTypeCredits, NewCreditsChecker(caps.BalanceFetcher, logger))
	return registry
}
