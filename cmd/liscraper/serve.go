package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"liscraper/internal/control"
	"liscraper/internal/telemetry"
	"liscraper/pkg/auth"
	"liscraper/pkg/linkedin"
	"liscraper/pkg/logger"
	"liscraper/pkg/pacing"
	"liscraper/pkg/scheduler"
	"liscraper/pkg/scraper"
	"liscraper/pkg/storage"
)

var listenAddr string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the background scheduler with a metrics endpoint",
	Long: `Run liscraper as a long-lived process.

The daily usage counters reset at UTC midnight, the scraping queue is
drained on the configured cron spec, and Prometheus metrics are served on
/metrics. The process honors the same pause/stop control flags as a
foreground scrape.`,
	Example: `  liscraper serve

  liscraper serve --listen :9091`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&listenAddr, "listen", ":9090", "metrics listen address")
}

func runServe(cmd *cobra.Command, args []string) error {
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
	telemetry.PoolCapacityGauge.Set(float64(pool.TotalAvailableCapacity()))

	var pdfs scraper.PDFStore
	if cfg.Storage.Bucket != "" {
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
	orchestrator := scraper.New(cfg, pool, st, pdfs, ctrl, factory, pace)

	sched := scheduler.New(cfg.Scheduler, pool, orchestrator, st)
	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer sched.Stop()

	mux := http.NewServeMux()
	mux.Handle("/metrics", telemetry.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := st.Ping(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{Addr: listenAddr, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", listenAddr).Info("Metrics server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown metrics server: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
