package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"liscraper/internal/store"
)

var (
	// Queue command flags
	queuePriority  int
	staleOlderThan string
)

// queueCmd represents the queue command
var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Manage the scraping queue",
	Long: `Manage the durable scraping queue.

Queued items survive restarts and are drained by 'liscraper scrape --queue'
or the background drain job of 'liscraper serve'. Higher priority items are
processed first; ties break oldest first.`,
}

var queueAddCmd = &cobra.Command{
	Use:   "add <external-id>",
	Short: "Enqueue a subject for scraping",
	Long: `Enqueue a subject by its external ID.

Re-enqueueing a subject that is already pending does not create a second
item; it bumps the existing item's priority if the new one is higher.`,
	Example: `  liscraper queue add crm-4711

  liscraper queue add crm-4711 --priority 10`,
	Args: cobra.ExactArgs(1),
	RunE: runQueueAdd,
}

var queueStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show queue depth by status",
	Args:  cobra.NoArgs,
	RunE:  runQueueStats,
}

var queueRequeueCmd = &cobra.Command{
	Use:   "requeue-stale",
	Short: "Return orphaned in-progress items to pending",
	Long: `Return in-progress items whose last attempt is older than the cutoff to
pending. Recovers work orphaned by a crash mid-scrape.`,
	Args: cobra.NoArgs,
	RunE: runQueueRequeueStale,
}

func init() {
	rootCmd.AddCommand(queueCmd)
	queueCmd.AddCommand(queueAddCmd)
	queueCmd.AddCommand(queueStatsCmd)
	queueCmd.AddCommand(queueRequeueCmd)

	queueAddCmd.Flags().IntVar(&queuePriority, "priority", 0, "queue priority (higher runs first)")
	queueRequeueCmd.Flags().StringVar(&staleOlderThan, "older-than", "30 minutes", "age cutoff as a Postgres interval")
}

func runQueueAdd(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	subject, err := st.GetSubjectByExternalID(ctx, args[0])
	if err != nil {
		if errors.Is(err, store.ErrSubjectNotFound) {
			return fmt.Errorf("no subject with external ID %q; register it with 'liscraper subjects add'", args[0])
		}
		return err
	}

	item, err := st.Enqueue(ctx, subject.ID, queuePriority)
	if err != nil {
		return fmt.Errorf("enqueue subject: %w", err)
	}

	fmt.Printf("Queued subject %d (item %d, priority %d)\n", subject.ID, item.ID, item.Priority)
	return nil
}

func runQueueStats(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	stats, err := st.Statistics(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Pending:     %d\n", stats.Pending)
	fmt.Printf("In progress: %d\n", stats.InProgress)
	fmt.Printf("Completed:   %d\n", stats.Completed)
	fmt.Printf("Failed:      %d\n", stats.Failed)
	fmt.Printf("Total:       %d\n", stats.Total)
	return nil
}

func runQueueRequeueStale(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	n, err := st.RequeueStale(ctx, staleOlderThan)
	if err != nil {
		return err
	}

	fmt.Printf("Requeued %d stale item(s)\n", n)
	return nil
}
