package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"liscraper/internal/control"
	"liscraper/pkg/auth"
	"liscraper/pkg/linkedin"
	"liscraper/pkg/logger"
	"liscraper/pkg/pacing"
	"liscraper/pkg/scraper"
	"liscraper/pkg/storage"
)

var (
	// Scrape command flags
	useQueue    bool
	maxProfiles int
	forceUpdate bool
	cohort      string
	noPDF       bool
)

// scrapeCmd represents the scrape command
var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Run a scraping batch over stale profiles or the queue",
	Long: `Run one scraping batch.

By default the batch selects every subject whose profile is older than the
configured staleness threshold, oldest first. With --queue the batch drains
the durable scraping queue instead, highest priority first.

Accounts rotate automatically: a security checkpoint flags the account and
moves on, a rejected login just moves on, and a subject only fails once
every account in the pool has been tried or exhausted its daily budget.`,
	Example: `  # Scrape everyone past the staleness threshold
  liscraper scrape

  # Drain the queue, at most 50 profiles
  liscraper scrape --queue --max-profiles 50

  # Re-scrape one cohort regardless of freshness
  liscraper scrape --cohort 2024-spring --force`,
	Args: cobra.NoArgs,
	RunE: runScrape,
}

func init() {
	rootCmd.AddCommand(scrapeCmd)

	scrapeCmd.Flags().BoolVar(&useQueue, "queue", false, "drain the scraping queue instead of the staleness threshold")
	scrapeCmd.Flags().IntVar(&maxProfiles, "max-profiles", 0, "maximum profiles to process (0 = unlimited)")
	scrapeCmd.Flags().BoolVar(&forceUpdate, "force", false, "ignore the staleness threshold")
	scrapeCmd.Flags().StringVar(&cohort, "cohort", "", "restrict threshold selection to one cohort")
	scrapeCmd.Flags().BoolVar(&noPDF, "no-pdf", false, "skip PDF snapshots")
}

func runScrape(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log := logger.GetLogger()

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	pool, err := buildPool(ctx, st)
	if err != nil {
		return err
	}
	log.WithFields(map[string]interface{}{
		"accounts": pool.Size(),
		"capacity": pool.TotalAvailableCapacity(),
	}).Info("Account pool ready")

	var pdfs scraper.PDFStore
	if !noPDF && cfg.Storage.Bucket != "" {
		uploader, err := storage.NewUploader(ctx, cfg.Storage)
		if err != nil {
			return fmt.Errorf("initialize object storage: %w", err)
		}
		pdfs = uploader
	}

	var ctrl scraper.Controller
	if cfg.Redis.Addr != "" {
		sw := control.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		defer sw.Close()
		ctrl = sw
	}

	pace := pacing.NewHuman(cfg.Pacing.MinDelay, cfg.Pacing.MaxDelay)
	factory := func(email, password string) (scraper.Session, error) {
		return linkedin.NewSession(auth.Credential{Email: email, Password: password}, cfg.Scraper, pace)
	}

	o := scraper.New(cfg, pool, st, pdfs, ctrl, factory, pace)
	opts := scraper.RunOptions{
		MaxProfiles: maxProfiles,
		ForceUpdate: forceUpdate,
		Cohort:      cohort,
	}

	var stats *scraper.Stats
	if useQueue {
		stats, err = o.RunQueueBased(ctx, opts)
	} else {
		stats, err = o.RunThresholdBased(ctx, opts)
	}
	if stats != nil {
		printRunStats(stats)
	}
	return err
}

func printRunStats(stats *scraper.Stats) {
	fmt.Printf("\nProcessed:     %d\n", stats.Processed)
	fmt.Printf("Successful:    %d\n", stats.Successful)
	fmt.Printf("Failed:        %d\n", stats.Failed)
	fmt.Printf("Skipped:       %d\n", stats.Skipped)
	fmt.Printf("PDFs uploaded: %d\n", stats.PDFsUploaded)
	fmt.Printf("Duration:      %s\n", stats.CompletedAt.Sub(stats.StartedAt).Round(time.Second))
	for _, e := range stats.Errors {
		fmt.Printf("  error: %s\n", e)
	}
}
