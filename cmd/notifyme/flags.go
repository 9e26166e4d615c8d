package main

import (
	"flag"
	"fmt"
	"os"
)

type AppFlags struct {
	GlobalConfigFile string
	MonitorName      string
	CheckAll         bool
	Daemon           bool
	DryRun           bool
}

func ParseFlags() AppFlags {
	globalConfigFile := flag.String("config", "", "Path to the global YAML/JSON configuration file. If not set, searches default locations.")
	globalConfigFileAlias := flag.String("c", "", "Alias for -config")

	monitorName := flag.String("check", "", "Run a single check for the monitor with this name, then exit.")
	checkAll := flag.Bool("all", false, "Check every active monitor regardless of schedule, then exit.")
	daemon := flag.Bool("daemon", false, "Run continuously, sweeping due monitors on the configured cron schedule.")
	dryRun := flag.Bool("dry-run", false, "Log notifications instead of sending email.")

	flag.Parse()

	flags := AppFlags{
		MonitorName: *monitorName,
		CheckAll:    *checkAll,
		Daemon:      *daemon,
		DryRun:      *dryRun,
	}

	if *globalConfigFile != "" {
		flags.GlobalConfigFile = *globalConfigFile
	} else if *globalConfigFileAlias != "" {
		flags.GlobalConfigFile = *globalConfigFileAlias
	}

	modeCount := 0
	if flags.MonitorName != "" {
		modeCount++
	}
	if flags.CheckAll {
		modeCount++
	}
	if flags.Daemon {
		modeCount++
	}
	if modeCount != 1 {
		fmt.Fprintln(os.Stderr, "[FATAL] Exactly one of -check <name>, -all, or -daemon is required")
		flag.Usage()
		os.Exit(1)
	}

	return flags
}
