package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"notifyme/internal/config"
	"notifyme/internal/orchestrator"
)

// Scheduler runs periodic check sweeps on a cron schedule. Each sweep asks
// the orchestrator for due monitors; per-monitor intervals decide which
// monitors actually run.
type Scheduler struct {
	cfg          config.SchedulerConfig
	orchestrator *orchestrator.CheckOrchestrator
	cron         *cron.Cron
	logger       zerolog.Logger
}

// NewScheduler creates a new Scheduler.
func NewScheduler(cfg config.SchedulerConfig, co *orchestrator.CheckOrchestrator, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		cfg:          cfg,
		orchestrator: co,
		logger:       logger.With().Str("component", "Scheduler").Logger(),
	}
}

// Run starts the cron loop and blocks until the context is cancelled. One
// sweep is fired immediately at startup so a freshly started daemon does not
// sit idle until the first cron tick.
func (s *Scheduler) Run(ctx context.Context) error {
	// SecondOptional accepts both 5-field and 6-field specs.
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	schedule, err := parser.Parse(s.cfg.CronSpec)
	if err != nil {
		return fmt.Errorf("invalid cron spec %q: %w", s.cfg.CronSpec, err)
	}

	s.cron = cron.New(cron.WithParser(parser))
	s.cron.Schedule(schedule, cron.FuncJob(func() {
		s.runSweep(ctx)
	}))

	s.logger.Info().Str("cron_spec", s.cfg.CronSpec).Msg("Scheduler started")
	s.runSweep(ctx)
	s.cron.Start()

	<-ctx.Done()

	stopCtx := s.cron.Stop()
	// Let an in-flight sweep finish before returning.
	<-stopCtx.Done()
	s.logger.Info().Msg("Scheduler stopped")
	return nil
}

func (s *Scheduler) runSweep(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	s.logger.Debug().Msg("Starting check sweep")
	outcomes, err := s.orchestrator.CheckAllDue(ctx, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("Check sweep failed")
		return
	}

	notifiedCount := 0
	for _, outcome := range outcomes {
		if outcome.Notified {
			notifiedCount++
		}
	}
	s.logger.Info().
		Int("checked", len(outcomes)).
		Int("notified", notifiedCount).
		Msg("Check sweep complete")
}
