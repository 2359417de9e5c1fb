package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/johnconna/pyforce-evaluation-v2/api"
	"github.com/johnconna/pyforce-evaluation-v2/internal/app"
	"github.com/johnconna/pyforce-evaluation-v2/internal/domain"
	"github.com/johnconna/pyforce-evaluation-v2/internal/infrastructure"
	"github.com/johnconna/pyforce-evaluation-v2/pkg/logger"
)

var (
	configPath string
	outputDir  string
	workers    int
	rounds     int
	noProgress bool

	rootCmd = &cobra.Command{
		Use:   "pyforce",
		Short: "PyForce - bulk package fetcher for PyPI",
		Long:  `Resolves package names against PyPI and downloads one distributable artifact per package.`,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")

	fetchCmd.Flags().StringVar(&outputDir, "output", "", "Output directory (overrides config)")
	fetchCmd.Flags().IntVar(&workers, "workers", 0, "Number of concurrent workers (overrides config)")
	fetchCmd.Flags().IntVar(&rounds, "rounds", -1, "Retry rounds for failed packages (overrides config)")
	fetchCmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable the progress bar")

	retryCmd.Flags().StringVar(&outputDir, "output", "", "Output directory (overrides config)")
	retryCmd.Flags().IntVar(&workers, "workers", 0, "Number of concurrent workers (overrides config)")
	retryCmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable the progress bar")

	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(retryCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(serveCmd)
}

// loadEnvironment builds the config and logger shared by every subcommand.
func loadEnvironment() (*domain.Config, *zap.Logger) {
	config, err := app.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	applyOverrides(config)

	log, err := logger.New(logger.Config{
		Level:      config.Logging.Level,
		Format:     config.Logging.Format,
		OutputPath: config.Logging.OutputPath,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	return config, log
}

func applyOverrides(config *domain.Config) {
	if outputDir != "" {
		config.Download.OutputDir = outputDir
	}
	if workers > 0 {
		config.Download.Workers = workers
	}
	if rounds >= 0 {
		config.Retry.Rounds = rounds
	}
	if noProgress {
		config.Download.ProgressBar = false
	}
}

// openLedger is best-effort: fetch runs proceed without persistence.
func openLedger(config *domain.Config, log *zap.Logger) *infrastructure.SQLiteFetchLedger {
	ledger, err := infrastructure.NewSQLiteFetchLedger(config.Ledger.DatabasePath)
	if err != nil {
		log.Warn("Ledger unavailable, continuing without persistence",
			zap.String("path", config.Ledger.DatabasePath),
			zap.Error(err))
		return nil
	}
	return ledger
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

var fetchCmd = &cobra.Command{
	Use:   "fetch [manifest]",
	Short: "Download one artifact per package named in the manifest",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		config, log := loadEnvironment()
		defer log.Sync()

		manifestPath := args[0]
		names, err := app.LoadPackageList(manifestPath)
		if err != nil {
			log.Fatal("Failed to read package manifest",
				zap.String("path", manifestPath),
				zap.Error(err))
		}

		ledger := openLedger(config, log)
		if ledger != nil {
			defer ledger.Close()
		}

		ctx, cancel := signalContext()
		defer cancel()

		pipeline := app.NewPipeline(config, nil, ledgerOrNil(ledger), log)
		if _, _, err := pipeline.Run(ctx, manifestPath, names); err != nil {
			log.Fatal("Fetch run failed", zap.Error(err))
		}
	},
}

var retryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Re-drive the failed packages from the previous run",
	Long: `Reads the failed-package list written by the last fetch run and submits
those names through the full pipeline again. Falls back to the ledger when
the list file is missing.`,
	Run: func(cmd *cobra.Command, args []string) {
		config, log := loadEnvironment()
		defer log.Sync()

		ledger := openLedger(config, log)
		if ledger != nil {
			defer ledger.Close()
		}

		listPath := filepath.Join(config.Download.OutputDir, app.FailedListFilename)
		names, err := app.LoadPackageList(listPath)
		if err != nil {
			if ledger == nil {
				log.Fatal("No failed-package list and no ledger to fall back to",
					zap.String("path", listPath),
					zap.Error(err))
			}
			log.Info("Failed-package list unreadable, consulting ledger",
				zap.String("path", listPath))
			names, err = ledger.LatestFailedNames()
			if err != nil {
				log.Fatal("Failed to load failed packages from ledger", zap.Error(err))
			}
		}
		if len(names) == 0 {
			log.Info("Nothing to retry")
			return
		}

		ctx, cancel := signalContext()
		defer cancel()

		pipeline := app.NewPipeline(config, nil, ledgerOrNil(ledger), log)
		if _, _, err := pipeline.Run(ctx, listPath, names); err != nil {
			log.Fatal("Retry run failed", zap.Error(err))
		}
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print cumulative statistics from the fetch ledger",
	Run: func(cmd *cobra.Command, args []string) {
		config, log := loadEnvironment()
		defer log.Sync()

		ledger, err := infrastructure.NewSQLiteFetchLedger(config.Ledger.DatabasePath)
		if err != nil {
			log.Fatal("Failed to open ledger",
				zap.String("path", config.Ledger.DatabasePath),
				zap.Error(err))
		}
		defer ledger.Close()

		stats, err := ledger.GetStats()
		if err != nil {
			log.Fatal("Failed to read ledger statistics", zap.Error(err))
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "RUNS\tTOTAL\tSUCCESSFUL\tSKIPPED\tFAILED\tDOWNLOADED")
		fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%d\t%.2f MB\n",
			stats.Runs,
			stats.Total,
			stats.Successful,
			stats.Skipped,
			stats.Failed,
			float64(stats.TotalBytes)/(1024*1024))
		w.Flush()
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the fetch ledger over HTTP",
	Run: func(cmd *cobra.Command, args []string) {
		config, log := loadEnvironment()
		defer log.Sync()

		ledger, err := infrastructure.NewSQLiteFetchLedger(config.Ledger.DatabasePath)
		if err != nil {
			log.Fatal("Failed to open ledger",
				zap.String("path", config.Ledger.DatabasePath),
				zap.Error(err))
		}
		defer ledger.Close()

		router := api.SetupRouter(ledger, log)
		addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
		server := &http.Server{
			Addr:    addr,
			Handler: router,
		}

		go func() {
			log.Info("HTTP server listening", zap.String("addr", addr))
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatal("Failed to start server", zap.Error(err))
			}
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		log.Info("Shutting down server...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("Server shutdown error", zap.Error(err))
		}
	},
}

// ledgerOrNil avoids handing the pipeline a typed nil behind the interface.
func ledgerOrNil(ledger *infrastructure.SQLiteFetchLedger) domain.FetchLedger {
	if ledger == nil {
		return nil
	}
	return ledger
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
