package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eleveniq/sfexport/internal/pipeline"
	"github.com/eleveniq/sfexport/pkg/config"
	"github.com/eleveniq/sfexport/pkg/drive"
	"github.com/eleveniq/sfexport/pkg/extract"
	"github.com/eleveniq/sfexport/pkg/logger"
	"github.com/eleveniq/sfexport/pkg/observability"
	"github.com/eleveniq/sfexport/pkg/retry"
	"github.com/eleveniq/sfexport/pkg/salesforce"
	"github.com/eleveniq/sfexport/pkg/stats"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "sfexport",
		Short: "sfexport - Salesforce to Google Drive export pipeline",
		Long: `sfexport extracts configured Salesforce object types, merges them into
one table, writes it locally as Excel or CSV, and mirrors the file into a
Google Drive folder. Run statistics are appended to a CSV log per run.`,
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("sfexport v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	var objectsConfigFile string
	objectsCmd := &cobra.Command{
		Use:   "objects",
		Short: "List the configured Salesforce objects",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(objectsConfigFile)
			if err != nil {
				return err
			}
			fmt.Println("Configured objects:")
			for _, object := range cfg.Objects {
				fmt.Printf("  - %s\n", object)
			}
			fmt.Printf("\nStandard-field whitelist: %d fields\n", len(cfg.StandardFields))
			return nil
		},
	}
	objectsCmd.Flags().StringVarP(&objectsConfigFile, "config", "c", "", "Path to YAML configuration file")
	root.AddCommand(objectsCmd)

	var (
		configFile  string
		logLevel    string
		concurrency int
		timeout     time.Duration
		dryRun      bool
	)

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the export pipeline",
		Long: `Run the export pipeline end to end. Credentials come from the config
file; ${VAR} references in it are substituted from the environment, and a
.env file in the working directory is loaded first.

Example:
  sfexport run --config sfexport.yaml --log-level debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(configFile, logLevel, concurrency, timeout, dryRun)
		},
	}

	runCmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to YAML configuration file")
	runCmd.Flags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides config")
	runCmd.Flags().IntVar(&concurrency, "concurrency", 0, "Concurrent object extractions; overrides config")
	runCmd.Flags().DurationVar(&timeout, "timeout", 2*time.Hour, "Pipeline timeout")
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Skip the Drive sync stage, keep only the local file")
	root.AddCommand(runCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runExport(configFile, logLevel string, concurrency int, timeout time.Duration, dryRun bool) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Observability.LogLevel = logLevel
	}
	if concurrency > 0 {
		cfg.Reliability.Concurrency = concurrency
	}
	if dryRun {
		// A dry run never touches Drive, so its credentials may be absent.
		if err := cfg.ValidateSettings(); err != nil {
			return err
		}
	} else if err := cfg.Validate(); err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:    cfg.Observability.LogLevel,
		Encoding: "json",
	}); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000")
	ctx = context.WithValue(ctx, logger.RunIDKey, runID)
	log := logger.WithContext(ctx)

	if cfg.Observability.EnableTracing {
		shutdown, err := observability.InitTracing(version)
		if err != nil {
			return err
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				log.Warn("failed to flush spans", zap.Error(err))
			}
		}()
	}

	log.Info("starting export",
		zap.Int("objects", len(cfg.Objects)),
		zap.Int("concurrency", cfg.Reliability.Concurrency),
		zap.Bool("dry_run", dryRun))

	policy := &retry.Policy{
		MaxAttempts:     cfg.Reliability.RetryAttempts,
		InitialDelay:    cfg.Reliability.RetryDelay,
		MaxDelay:        cfg.Reliability.MaxRetryDelay,
		Multiplier:      cfg.Reliability.RetryMultiplier,
		RandomizeFactor: 0.25,
	}

	session, err := salesforce.Login(ctx, cfg.Salesforce, policy, log)
	if err != nil {
		return err
	}
	extractor := extract.New(session, cfg.StandardFields, policy, log)

	var syncer pipeline.Syncer
	if !dryRun {
		svc, err := drive.NewService(ctx, cfg.Drive.CredentialsFile)
		if err != nil {
			return err
		}
		syncer = drive.NewSynchronizer(drive.WrapService(svc), cfg.Drive.FolderName, cfg.Drive.ParentID, log)
	}

	collector := stats.NewCollector(time.Now())
	p := pipeline.New(cfg, extractor, syncer, collector, log, pipeline.Options{DryRun: dryRun})

	if err := p.Run(ctx); err != nil {
		return fmt.Errorf("pipeline failed in %s: %w", p.FailedStage(), err)
	}

	log.Info("export completed",
		zap.Int("records", collector.TotalRecords()),
		zap.Duration("duration", collector.RunDuration()))
	return nil
}
