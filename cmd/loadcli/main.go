package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/studiowebux/loadcli/internal/parser"
	"github.com/studiowebux/loadcli/internal/report"
	"github.com/studiowebux/loadcli/internal/results"
	"github.com/studiowebux/loadcli/internal/runner"
	"github.com/studiowebux/loadcli/internal/scenario"
)

var (
	version = "0.1.0"
)

// ProgressInterval is how often a running load test reports progress
const ProgressInterval = 2 * time.Second

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "loadcli",
	Short: "Load CLI - declarative HTTP load testing tool",
	Long: `Load CLI runs declarative load-test scenarios against HTTP services.

A scenario file (JSON, JSONC or YAML) describes a sequence of parameterized
requests with data sources, variable extraction and assertions. Sessions are
executed concurrently by a pool of virtual users and results are persisted
to a local SQLite database.

Examples:
  loadcli run scenario.json                      # Run with defaults (10 users, 100 sessions)
  loadcli run scenario.yaml -u 50 -n 1000        # 50 users, 1000 sessions
  loadcli run scenario.json --duration 60        # Stop after 60 seconds
  loadcli run scenario.json --seed 42            # Reproducible run
  loadcli plan scenario.json                     # Show the compiled plan
  loadcli report reports/run_stats.csv           # Summarize an exported stats file
  loadcli runs                                   # List recent runs`,
	Version: version,
}

var runCmd = &cobra.Command{
	Use:   "run <scenario-file>",
	Short: "Execute a load-test scenario",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScenario(args[0])
	},
}

var planCmd = &cobra.Command{
	Use:   "plan <scenario-file>",
	Short: "Compile a scenario and show the execution plan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return showPlan(args[0])
	},
}

var reportCmd = &cobra.Command{
	Use:   "report <stats-file>",
	Short: "Summarize an aggregate stats CSV export",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return showReport(args[0])
	},
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent load runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return listRuns()
	},
}

// Flags
var (
	flagUsers    int
	flagSessions int
	flagRampUp   int
	flagDuration int
	flagTimeout  int
	flagSeed     int64
	flagDBPath   string
	flagStatsOut string
	flagVerbose  bool
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db", "loadcli.db", "Results database path")

	runCmd.Flags().IntVarP(&flagUsers, "users", "u", 10, "Concurrent virtual users")
	runCmd.Flags().IntVarP(&flagSessions, "sessions", "n", 100, "Total sessions to run")
	runCmd.Flags().IntVar(&flagRampUp, "ramp-up", 0, "Ramp-up duration in seconds")
	runCmd.Flags().IntVar(&flagDuration, "duration", 0, "Run duration in seconds (0 = until all sessions finish)")
	runCmd.Flags().IntVar(&flagTimeout, "timeout", 10, "Per-request timeout in seconds")
	runCmd.Flags().Int64Var(&flagSeed, "seed", 0, "Random seed for reproducible runs (0 = time-derived)")
	runCmd.Flags().StringVar(&flagStatsOut, "stats-out", "", "Export aggregate stats CSV to this path")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(runsCmd)
}

// newLogger builds the console logger used by every subcommand
func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if flagVerbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).With().Timestamp().Logger()
}

// runScenario loads, compiles and executes a scenario file
func runScenario(filePath string) error {
	log := newLogger()

	def, err := parser.Load(filePath)
	if err != nil {
		return fmt.Errorf("failed to load scenario: %w", err)
	}

	plan := scenario.Compile(def, filepath.Dir(filePath), log)

	manager, err := results.NewManager(flagDBPath)
	if err != nil {
		return fmt.Errorf("failed to open results database: %w", err)
	}
	defer manager.Close()

	cfg := &runner.Config{
		Users:             flagUsers,
		Sessions:          flagSessions,
		RampUpDurationSec: flagRampUp,
		RunDurationSec:    flagDuration,
		RequestTimeoutSec: flagTimeout,
		Seed:              flagSeed,
	}

	exec, err := runner.NewExecutor(plan, cfg, manager, log)
	if err != nil {
		return err
	}

	log.Info().Str("scenario", def.Name).Int("users", cfg.Users).
		Int("sessions", cfg.Sessions).Int64("seed", exec.Seed()).Msg("starting run")

	exec.Start()

	// Live progress while the run is going
	progressStop := make(chan struct{})
	progressDone := make(chan struct{})
	go func() {
		defer close(progressDone)
		watchProgress(exec, log, ProgressInterval, progressStop)
	}()

	// Stop cleanly on Ctrl+C
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan error, 1)
	go func() {
		done <- exec.Wait()
	}()

	select {
	case <-sigChan:
		log.Warn().Msg("interrupted, stopping run")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := exec.StopWithContext(ctx); err != nil {
			log.Error().Err(err).Msg("forced shutdown")
		}
		<-done
	case err := <-done:
		if err != nil {
			return err
		}
	}

	close(progressStop)
	<-progressDone

	run := exec.GetRun()
	printRunSummary(run)

	if flagStatsOut != "" {
		if err := report.WriteSummary(flagStatsOut, run); err != nil {
			return fmt.Errorf("failed to export stats: %w", err)
		}
		log.Info().Str("path", flagStatsOut).Msg("stats exported")
	}

	return nil
}

// watchProgress logs run statistics every interval until stop is closed
// or every queued session has finished.
func watchProgress(exec *runner.Executor, log zerolog.Logger, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			stats := exec.GetStats()
			log.Info().
				Str("progress", fmt.Sprintf("%.1f%%", stats.Progress())).
				Int("sessions", stats.CompletedSessions).
				Int("requests", stats.CompletedRequests).
				Int("errors", stats.ErrorCount).
				Int("assertion_failures", stats.AssertionFailureCount).
				Int("workers", exec.ActiveWorkers()).
				Msg("run progress")
			if exec.IsExecutionComplete() {
				return
			}
		}
	}
}

// printRunSummary writes the human-readable end-of-run figures to stdout
func printRunSummary(run *results.Run) {
	fmt.Printf("\nRun #%d (%s, %s mode, seed %d)\n", run.ID, run.Status, run.Mode, run.Seed)
	fmt.Printf("  Sessions:           %d/%d\n", run.CompletedSessions, run.TotalSessions)
	fmt.Printf("  Requests:           %d\n", run.TotalRequests)
	fmt.Printf("  Dispatch errors:    %d\n", run.TotalErrors)
	fmt.Printf("  Assertion failures: %d\n", run.TotalAssertionFailures)
	fmt.Printf("  Latency avg/min/max: %.1fms / %dms / %dms\n",
		run.AvgDurationMs, run.MinDurationMs, run.MaxDurationMs)
	fmt.Printf("  Percentiles p50/p90/p95/p99: %dms / %dms / %dms / %dms\n",
		run.P50DurationMs, run.P90DurationMs, run.P95DurationMs, run.P99DurationMs)
}

// showPlan compiles a scenario and prints its steps and engine mode
func showPlan(filePath string) error {
	log := newLogger()

	def, err := parser.Load(filePath)
	if err != nil {
		return fmt.Errorf("failed to load scenario: %w", err)
	}

	plan := scenario.Compile(def, filepath.Dir(filePath), log)

	fmt.Printf("Scenario: %s\n", def.Name)
	if def.Description != "" {
		fmt.Printf("Description: %s\n", def.Description)
	}
	fmt.Printf("Mode: %s\n", plan.Mode)
	if def.MaxWaitMs > 0 {
		fmt.Printf("Wait between steps: %d-%dms\n", def.MinWaitMs, def.MaxWaitMs)
	}

	if len(plan.Tables) > 0 {
		fmt.Println("Data sources:")
		for _, src := range def.DataSources {
			rows := 0
			if table, ok := plan.Tables[src.Name]; ok {
				rows = len(table.Rows)
			}
			fmt.Printf("  %s (%s, %s): %d rows\n", src.Name, src.Type, src.File, rows)
		}
	}

	fmt.Println("Steps:")
	for i, step := range plan.Steps {
		fmt.Printf("  %d. [%s] %s %s\n", i+1, step.ID, step.Method, step.URL)
		for name := range step.Extract {
			fmt.Printf("     extract: %s\n", name)
		}
		for _, a := range step.Assertions {
			fmt.Printf("     assert: %s\n", a.Type)
		}
	}

	return nil
}

// showReport summarizes an aggregate stats CSV export
func showReport(filePath string) error {
	log := newLogger()

	summary, err := report.LoadFile(filePath, log)
	if err != nil {
		return err
	}

	fmt.Println(summary.Headline())
	fmt.Printf("Performance grade: %s\n", summary.Grade())
	if summary.HasPercentiles {
		fmt.Printf("Latency p90/p95: %.0fms / %.0fms\n", summary.P90ResponseMs, summary.P95ResponseMs)
	}

	recs := summary.Recommendations()
	if len(recs) > 0 {
		fmt.Println("Recommendations:")
		for _, rec := range recs {
			fmt.Printf("  - %s\n", rec)
		}
	}

	return nil
}

// listRuns prints the most recent runs from the results database
func listRuns() error {
	manager, err := results.NewManager(flagDBPath)
	if err != nil {
		return fmt.Errorf("failed to open results database: %w", err)
	}
	defer manager.Close()

	runs, err := manager.ListRuns(20)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}

	for _, run := range runs {
		fmt.Printf("#%-4d %-24s %-8s %-10s sessions %d/%d, %d requests, %d errors, %d assertion failures\n",
			run.ID, run.ScenarioName, run.Mode, run.Status,
			run.CompletedSessions, run.TotalSessions,
			run.TotalRequests, run.TotalErrors, run.TotalAssertionFailures)
	}

	return nil
}
