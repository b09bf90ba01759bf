package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/IshaanNene/PaperStalk/internal/app"
	"github.com/IshaanNene/PaperStalk/internal/collector"
	"github.com/IshaanNene/PaperStalk/internal/config"
	"github.com/IshaanNene/PaperStalk/internal/fetcher"
	"github.com/IshaanNene/PaperStalk/internal/storage"
)

var (
	cfgFile     string
	verbose     bool
	workers     int
	format      string
	outputDir   string
	fetcherType string
	headless    bool
	itemTimeout time.Duration
	upload      bool
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\nError: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "paperstalk [query...]",
		Short: "PaperStalk collects paper metadata from DBpia search results",
		Long: `PaperStalk searches DBpia, collects every result link across the
paginated listing and extracts title, authors, journal, year, pages and
abstract for each paper with a pool of isolated browser sessions.

The output table is rewritten after every paper, so an interrupted run
still leaves every finished record on disk.`,
		Args:          cobra.ArbitraryArgs,
		RunE:          runCrawl,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	cmd.Flags().IntVarP(&workers, "workers", "n", 0, "number of concurrent extraction workers (0 = config default)")
	cmd.Flags().StringVarP(&format, "format", "f", "", "output format: csv, json, jsonl")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory")
	cmd.Flags().StringVar(&fetcherType, "fetcher", "", "session backend: browser, http")
	cmd.Flags().BoolVar(&headless, "headless", true, "run the browser without a window")
	cmd.Flags().DurationVar(&itemTimeout, "item-timeout", 0, "deadline for one paper (0 = config default)")
	cmd.Flags().BoolVar(&upload, "upload", false, "also upsert records into MongoDB")

	cmd.AddCommand(previewCmd())
	cmd.AddCommand(configCmd())
	cmd.AddCommand(versionCmd())
	return cmd
}

// runCrawl executes a search-and-extract run.
func runCrawl(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := setupLogger(cfg.Logging)

	query := strings.Join(args, " ")
	if strings.TrimSpace(query) == "" {
		query, err = promptQuery(cmd.InOrStdin(), cmd.OutOrStdout())
		if err != nil {
			return fmt.Errorf("read query: %w", err)
		}
	}

	launcher, err := fetcher.NewLauncher(cfg, logger)
	if err != nil {
		return err
	}

	report, err := app.New(cfg, launcher, logger).Run(context.Background(), query)
	if report == nil {
		if collector.IsFatal(err) {
			return fmt.Errorf("crawl failed: %w", err)
		}
		return fmt.Errorf("crawl failed unexpectedly: %w", err)
	}

	app.PrintReport(cmd.OutOrStdout(), report)
	if err != nil {
		return fmt.Errorf("some records could not be persisted: %w", err)
	}
	return nil
}

// promptQuery reads one line from in.
func promptQuery(in io.Reader, out io.Writer) (string, error) {
	fmt.Fprint(out, "Search query: ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", fmt.Errorf("empty search query")
	}
	return line, nil
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	applyCLIOverrides(cmd, cfg)
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// applyCLIOverrides applies command-line flag values to the config.
func applyCLIOverrides(cmd *cobra.Command, cfg *config.Config) {
	if workers > 0 {
		cfg.Pool.MaxWorkers = workers
	}
	if format != "" {
		cfg.Storage.Format = strings.ToLower(format)
	}
	if outputDir != "" {
		cfg.Storage.OutputDir = outputDir
	}
	if fetcherType != "" {
		cfg.Fetcher.Type = strings.ToLower(fetcherType)
	}
	if f := cmd.Flags().Lookup("headless"); f != nil && f.Changed {
		cfg.Browser.Headless = headless
	}
	if itemTimeout > 0 {
		cfg.Pool.ItemTimeout = itemTimeout
	}
	if upload {
		cfg.Upload.Enabled = true
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
}

// previewCmd creates the "preview" subcommand.
func previewCmd() *cobra.Command {
	var rows int
	cmd := &cobra.Command{
		Use:   "preview <file.csv>",
		Short: "Print the first records of an output table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := storage.ReadTable(args[0])
			if err != nil {
				return err
			}
			failed := 0
			for _, rec := range records {
				if rec.Failed {
					failed++
				}
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d papers, %d failed\n", args[0], len(records), failed)
			app.PrintRecords(out, records, rows)
			return nil
		},
	}
	cmd.Flags().IntVar(&rows, "rows", app.PreviewCount, "number of records to show")
	return cmd
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			return enc.Close()
		},
	}
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "PaperStalk %s\n", config.Version)
		},
	}
}

// setupLogger creates a structured logger on stderr.
func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}
