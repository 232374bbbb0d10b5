package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var logsLimit int

// logsCmd represents the logs command
var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show recent scrape log entries",
	Long: `Show the most recent scrape log rows, newest first.

Every attempted subject yields exactly one row per run: success or failed,
with the account used, the error message, and whether a PDF was stored.`,
	Args: cobra.NoArgs,
	RunE: runLogs,
}

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().IntVar(&logsLimit, "limit", 20, "number of entries to show")
}

func runLogs(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	entries, err := st.RecentScrapeLogs(ctx, logsLimit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No scrape log entries")
		return nil
	}

	for _, e := range entries {
		detail := ""
		if e.Status != "success" && e.ErrorMessage != "" {
			detail = "  " + e.ErrorMessage
		}
		pdf := ""
		if e.PDFStored {
			pdf = "  +pdf"
		}
		fmt.Printf("%s  subject %-6d  %-7s  %-30s  %3ds%s%s\n",
			e.CreatedAt.Format("2006-01-02 15:04:05"), e.SubjectID, e.Status,
			e.AccountEmail, e.DurationSeconds, pdf, detail)
	}
	return nil
}
