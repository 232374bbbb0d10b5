package main

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"liscraper/internal/store"
	"liscraper/pkg/account"
	"liscraper/pkg/auth"
	"liscraper/pkg/config"
	"liscraper/pkg/logger"
)

var (
	// Version information, overridden at build time with -ldflags.
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string

	cfg *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "liscraper",
	Short: "LinkedIn profile scraping orchestrator",
	Long: `liscraper keeps a roster of LinkedIn profiles up to date by scraping them
through a rotating pool of accounts.

Scraped fields are merged into Postgres, employment and education histories
are replaced wholesale, and a PDF snapshot of each profile is archived to
S3-compatible object storage. Randomized human-like pacing and a per-account
daily budget keep the account pool below detection thresholds.

Account credentials come from numbered environment variables:
  LINKEDIN_EMAIL_1 / LINKEDIN_PASSWORD_1
  LINKEDIN_EMAIL_2 / LINKEDIN_PASSWORD_2
  ...`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configFile)
		if err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		if err := logger.Initialize(&cfg.Logging); err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is $HOME/.liscraper/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.SetVersionTemplate(`liscraper {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// openStore connects to Postgres and applies pending migrations.
func openStore(ctx context.Context) (*store.Store, error) {
	st, err := store.New(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return st, nil
}

// buildPool loads the credential sequence and rehydrates today's usage from
// the durable counters, so a restart cannot hand out exhausted accounts.
func buildPool(ctx context.Context, st *store.Store) (*account.Manager, error) {
	credManager, err := auth.NewManager()
	if err != nil {
		return nil, fmt.Errorf("initialize credential manager: %w", err)
	}
	creds, err := credManager.LoadSequence()
	if err != nil {
		return nil, err
	}
	pool, err := account.NewManager(creds, cfg.Accounts.DailyLimitPerAccount, st)
	if err != nil {
		return nil, err
	}
	pool.Rehydrate(ctx)
	return pool, nil
}
