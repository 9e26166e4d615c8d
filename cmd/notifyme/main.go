package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"notifyme/internal/checker"
	"notifyme/internal/config"
	"notifyme/internal/credits"
	"notifyme/internal/datastore"
	"notifyme/internal/evaluator"
	"notifyme/internal/fetcher"
	"notifyme/internal/logger"
	"notifyme/internal/models"
	"notifyme/internal/notifier"
	"notifyme/internal/orchestrator"
	"notifyme/internal/scheduler"
)

func main() {
	flags := ParseFlags()

	gCfg, err := config.LoadGlobalConfig(flags.GlobalConfigFile)
	if err != nil {
		log.Fatalf("[FATAL] Could not load global config using path '%s': %v", flags.GlobalConfigFile, err)
	}

	zLogger, err := logger.New(gCfg.LogConfig)
	if err != nil {
		log.Fatalf("[FATAL] Could not initialize logger: %v", err)
	}

	if err := run(flags, gCfg, zLogger); err != nil {
		zLogger.Fatal().Err(err).Msg("notifyme exited with error")
	}
}

func run(flags AppFlags, gCfg *config.GlobalConfig, zLogger zerolog.Logger) error {
	databasePath := gCfg.StorageConfig.DatabasePath
	if databasePath == "" {
		var err error
		if databasePath, err = datastore.DefaultDatabasePath(); err != nil {
			return err
		}
	}

	repo, err := datastore.NewSQLiteRepository(databasePath, zLogger)
	if err != nil {
		return err
	}
	defer repo.Close()

	httpFetcher := fetcher.NewHTTPFetcher(gCfg.FetcherConfig, zLogger)
	defer httpFetcher.Close()

	capabilities := checker.Capabilities{
		Fetcher:        httpFetcher,
		FeedFetcher:    fetcher.NewGofeedFetcher(gCfg.FetcherConfig.UserAgent, zLogger),
		BalanceFetcher: credits.NewConsoleBalanceFetcher(gCfg.CreditsConfig, zLogger),
	}
	if gCfg.EvaluatorConfig.APIKey != "" {
		openaiEvaluator, err := evaluator.NewOpenAIEvaluator(gCfg.EvaluatorConfig, zLogger)
		if err != nil {
			return err
		}
		capabilities.Evaluator = openaiEvaluator
	} else {
		zLogger.Warn().Msg("No evaluator API key configured, agentic monitors and feed filters will fail")
	}

	registry := checker.NewDefaultRegistry(capabilities, zLogger)
	emailNotifier := notifier.NewEmailNotifier(gCfg.NotificationConfig, zLogger)
	co := orchestrator.NewCheckOrchestrator(repo, emailNotifier, registry, flags.DryRun, zLogger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch {
	case flags.MonitorName != "":
		return checkSingle(ctx, co, repo, flags.MonitorName)
	case flags.CheckAll:
		_, err := co.CheckAll(ctx, printResult)
		return err
	case flags.Daemon:
		return scheduler.NewScheduler(gCfg.SchedulerConfig, co, zLogger).Run(ctx)
	}
	return nil
}

func checkSingle(ctx context.Context, co *orchestrator.CheckOrchestrator, repo models.MonitorRepository, name string) error {
	monitor, err := repo.GetMonitorByName(name)
	if err != nil {
		return err
	}
	if monitor == nil {
		return fmt.Errorf("no monitor named %q", name)
	}

	_, _, err = co.CheckOne(ctx, monitor, printResult)
	return err
}

// printResult writes a one-line outcome per check to stdout for the one-shot
// modes. Daemon mode relies on structured logs instead.
func printResult(monitor *models.Monitor, result *models.CheckResult, notified bool) {
	status := "ok"
	if result.ConditionMet {
		status = "condition met"
	}
	if notified {
		status += ", notified"
	}
	fmt.Fprintf(os.Stdout, "%-30s [%s] %s: %s\n", monitor.Name, monitor.Type, status, result.Explanation)
}
