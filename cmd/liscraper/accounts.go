package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"liscraper/pkg/auth"
)

var usageHistoryDays int

// accountsCmd represents the accounts command
var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Manage the scraper account pool",
	Long: `Manage the pool of scraper accounts.

Credentials are resolved in this order:
  - Numbered environment variables (LINKEDIN_EMAIL_n / LINKEDIN_PASSWORD_n)
  - System keychain
  - Encrypted file (~/.liscraper/credentials.enc)

Accounts stored here are only used when no numbered environment variables
are set. Never share your credentials or config files!`,
}

var accountsAddCmd = &cobra.Command{
	Use:   "add [email]",
	Short: "Store scraper account credentials securely",
	Example: `  # Interactive
  liscraper accounts add

  # With the email on the command line
  liscraper accounts add scraper1@example.com`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAccountsAdd,
}

var accountsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored accounts with masked passwords",
	Args:  cobra.NoArgs,
	RunE:  runAccountsList,
}

var accountsRemoveCmd = &cobra.Command{
	Use:   "remove <email>",
	Short: "Remove stored credentials for one account",
	Args:  cobra.ExactArgs(1),
	RunE:  runAccountsRemove,
}

var accountsUsageCmd = &cobra.Command{
	Use:   "usage <email>",
	Short: "Show an account's recent daily usage",
	Long: `Show the durable daily usage counters for one account.

The rows are the audit trail behind the in-memory daily budget: one row per
UTC day with the scrape count and the flagged state.`,
	Args: cobra.ExactArgs(1),
	RunE: runAccountsUsage,
}

var accountsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show today's usage across the whole pool",
	Long: `Show today's remaining budget for every configured account, rehydrated
from the durable usage counters.`,
	Args: cobra.NoArgs,
	RunE: runAccountsStats,
}

var accountsSetupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Show how to configure the account pool",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		auth.ShowCredentialSetupGuide()
	},
}

func init() {
	rootCmd.AddCommand(accountsCmd)
	accountsCmd.AddCommand(accountsAddCmd)
	accountsCmd.AddCommand(accountsListCmd)
	accountsCmd.AddCommand(accountsRemoveCmd)
	accountsCmd.AddCommand(accountsUsageCmd)
	accountsCmd.AddCommand(accountsStatsCmd)
	accountsCmd.AddCommand(accountsSetupCmd)

	accountsUsageCmd.Flags().IntVar(&usageHistoryDays, "days", 14, "number of days to show")
}

func runAccountsAdd(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("initialize credential manager: %w", err)
	}

	var email string
	if len(args) > 0 {
		email = args[0]
	} else {
		reader := bufio.NewReader(os.Stdin)
		fmt.Print("Account email: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return err
		}
		email = strings.TrimSpace(line)
	}
	if email == "" {
		return fmt.Errorf("email is required")
	}

	fmt.Print("Password: ")
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}
	if len(password) == 0 {
		return fmt.Errorf("password is required")
	}

	if err := manager.Store(&auth.Credential{Email: email, Password: string(password)}); err != nil {
		return fmt.Errorf("store credentials: %w", err)
	}

	fmt.Printf("Credentials for %s stored securely\n", email)
	return nil
}

func runAccountsList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("initialize credential manager: %w", err)
	}

	creds, err := manager.List()
	if err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}
	if len(creds) == 0 {
		fmt.Println("No stored accounts. Use 'liscraper accounts add' or numbered environment variables.")
		return nil
	}

	for _, cred := range creds {
		masked := auth.SanitizeCredential(cred)
		fmt.Printf("%s  (password %s)\n", masked.Email, masked.Password)
	}
	return nil
}

func runAccountsRemove(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("initialize credential manager: %w", err)
	}

	if err := manager.Delete(args[0]); err != nil {
		return fmt.Errorf("remove account: %w", err)
	}

	fmt.Printf("Credentials for %s removed\n", args[0])
	return nil
}

func runAccountsStats(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	pool, err := buildPool(ctx, st)
	if err != nil {
		return err
	}

	for _, snap := range pool.UsageStats() {
		state := "available"
		switch {
		case snap.Flagged:
			state = "FLAGGED"
		case !snap.Available:
			state = "exhausted"
		}
		fmt.Printf("%-30s  %3d/%3d  %s\n", snap.Email, snap.UsedToday, snap.DailyLimit, state)
	}
	fmt.Printf("\nTotal capacity remaining today: %d\n", pool.TotalAvailableCapacity())
	return nil
}

func runAccountsUsage(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	records, err := st.UsageHistory(ctx, args[0], usageHistoryDays)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Printf("No usage recorded for %s\n", args[0])
		return nil
	}

	for _, r := range records {
		flag := ""
		if r.IsFlagged {
			flag = "  FLAGGED"
		}
		fmt.Printf("%s  %3d scrape(s)%s\n", r.Day.Format("2006-01-02"), r.ScrapedCount, flag)
	}
	return nil
}
