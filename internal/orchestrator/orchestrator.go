package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"notifyme/internal/checker"
	"notifyme/internal/models"
)

// ResultObserver is invoked after a monitor check completes and its outcome
// is persisted. Observers are for side channels (progress output, metrics)
// and cannot influence the check outcome.
type ResultObserver func(monitor *models.Monitor, result *models.CheckResult, notified bool)

// CheckOutcome pairs a monitor with its successful check result.
type CheckOutcome struct {
	Monitor  *models.Monitor
	Result   *models.CheckResult
	Notified bool
}

// CheckOrchestrator drives the check pipeline for monitors: resolve the
// checker, observe, decide on notification, and persist the new state.
// A check error leaves the monitor record untouched.
type CheckOrchestrator struct {
	repo     models.MonitorRepository
	notifier models.Notifier
	registry *checker.Registry
	mutexes  *MonitorMutexManager
	logger   zerolog.Logger
	dryRun   bool
}

// NewCheckOrchestrator creates a new CheckOrchestrator.
func NewCheckOrchestrator(
	repo models.MonitorRepository,
	notifier models.Notifier,
	registry *checker.Registry,
	dryRun bool,
	logger zerolog.Logger,
) *CheckOrchestrator {
	return &CheckOrchestrator{
		repo:     repo,
		notifier: notifier,
		registry: registry,
		mutexes:  NewMonitorMutexManager(logger),
		logger:   logger.With().Str("component", "CheckOrchestrator").Logger(),
		dryRun:   dryRun,
	}
}

// CheckOne runs a full check cycle for a single monitor. The monitor record
// is saved exactly once, and only after the check itself succeeded; notify
// and persistence failures after that point are logged but the observation
// still counts. The observer, if any, runs last.
func (co *CheckOrchestrator) CheckOne(ctx context.Context, monitor *models.Monitor, onResult ResultObserver) (*models.CheckResult, bool, error) {
	mutex := co.mutexes.GetMutex(monitor.ID)
	mutex.Lock()
	defer mutex.Unlock()

	monitorChecker, err := co.registry.Get(monitor.Type)
	if err != nil {
		return nil, false, err
	}

	co.logger.Info().
		Str("monitor", monitor.Name).
		Str("type", string(monitor.Type)).
		Msg("Checking monitor")

	result, err := monitorChecker.Check(ctx, monitor)
	if err != nil {
		return nil, false, fmt.Errorf("check failed for monitor %s: %w", monitor.Name, err)
	}

	notified := false
	if monitorChecker.ShouldNotify(monitor, result) {
		notified = co.notify(ctx, monitor, result)
	} else {
		co.logger.Debug().
			Str("monitor", monitor.Name).
			Bool("condition_met", result.ConditionMet).
			Msg("No notification needed")
	}

	co.persistOutcome(monitor, monitorChecker, result)
	co.invokeObserver(onResult, monitor, result, notified)

	return result, notified, nil
}

// CheckAllDue checks every active monitor whose interval has elapsed.
// Failures are isolated per monitor: logged, counted, and skipped.
func (co *CheckOrchestrator) CheckAllDue(ctx context.Context, onResult ResultObserver) ([]CheckOutcome, error) {
	monitors, err := co.repo.GetMonitorsDue(time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to load due monitors: %w", err)
	}
	return co.checkBatch(ctx, monitors, onResult), nil
}

// CheckAll checks every active monitor regardless of schedule.
func (co *CheckOrchestrator) CheckAll(ctx context.Context, onResult ResultObserver) ([]CheckOutcome, error) {
	monitors, err := co.repo.ListMonitors(true)
	if err != nil {
		return nil, fmt.Errorf("failed to load monitors: %w", err)
	}
	return co.checkBatch(ctx, monitors, onResult), nil
}

func (co *CheckOrchestrator) checkBatch(ctx context.Context, monitors []*models.Monitor, onResult ResultObserver) []CheckOutcome {
	if len(monitors) == 0 {
		co.logger.Debug().Msg("No monitors to check")
		return nil
	}

	activeIDs := make([]string, 0, len(monitors))
	for _, monitor := range monitors {
		activeIDs = append(activeIDs, monitor.ID)
	}
	co.mutexes.CleanupUnusedMutexes(activeIDs)

	outcomes := make([]CheckOutcome, 0, len(monitors))
	failedCount := 0
	for _, monitor := range monitors {
		if ctx.Err() != nil {
			co.logger.Warn().Err(ctx.Err()).Msg("Check batch aborted")
			break
		}

		result, notified, err := co.CheckOne(ctx, monitor, onResult)
		if err != nil {
			failedCount++
			co.logger.Error().
				Err(err).
				Str("monitor", monitor.Name).
				Msg("Monitor check failed")
			continue
		}
		outcomes = append(outcomes, CheckOutcome{Monitor: monitor, Result: result, Notified: notified})
	}

	co.logger.Info().
		Int("checked", len(outcomes)).
		Int("failed", failedCount).
		Msg("Check batch complete")
	return outcomes
}

// notify sends the notification and records it in the log. Delivery failures
// do not fail the check; the state transition that triggered the notification
// is still recorded, so the alert is not re-sent on the next cycle.
func (co *CheckOrchestrator) notify(ctx context.Context, monitor *models.Monitor, result *models.CheckResult) bool {
	entry, err := co.notifier.Send(ctx, monitor, result, co.dryRun)
	if err != nil {
		co.logger.Error().
			Err(err).
			Str("monitor", monitor.Name).
			Msg("Failed to send notification")
		return false
	}

	if err := co.repo.AddNotification(entry); err != nil {
		co.logger.Error().
			Err(err).
			Str("monitor", monitor.Name).
			Msg("Failed to record notification")
	}

	co.logger.Info().
		Str("monitor", monitor.Name).
		Bool("dry_run", co.dryRun).
		Msg("Notification sent")
	return true
}

// persistOutcome applies the checker's state projection and stamps the check
// time, then saves the monitor in a single update.
func (co *CheckOrchestrator) persistOutcome(monitor *models.Monitor, monitorChecker checker.Checker, result *models.CheckResult) {
	now := time.Now()
	monitor.LastState = monitorChecker.StateForStorage(monitor, result)
	monitor.LastChecked = &now
	if result.StateHash != "" {
		monitor.LastStateHash = result.StateHash
	}

	if err := co.repo.UpdateMonitor(monitor); err != nil {
		co.logger.Error().
			Err(err).
			Str("monitor", monitor.Name).
			Msg("Failed to persist monitor state")
	}
}

func (co *CheckOrchestrator) invokeObserver(onResult ResultObserver, monitor *models.Monitor, result *models.CheckResult, notified bool) {
	if onResult == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			co.logger.Error().
				Interface("panic", r).
				Str("monitor", monitor.Name).
				Msg("Result observer panicked")
		}
	}()
	onResult(monitor, result, notified)
}
