package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"liscraper/pkg/models"
)

var (
	// Subject add flags
	subjectName       string
	subjectCohort     string
	subjectURL        string
	subjectProfileID  string
	subjectExternalID string
)

// subjectsCmd represents the subjects command
var subjectsCmd = &cobra.Command{
	Use:   "subjects",
	Short: "Manage scraping subjects",
}

var subjectsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered subjects",
	Args:  cobra.NoArgs,
	RunE:  runSubjectsList,
}

var subjectsShowCmd = &cobra.Command{
	Use:   "show <external-id>",
	Short: "Show one subject with its scraped employment history",
	Args:  cobra.ExactArgs(1),
	RunE:  runSubjectsShow,
}

var subjectsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a new subject",
	Long: `Register a new subject to keep up to date.

A subject needs at least a profile URL or a profile ID (the vanity slug
from linkedin.com/in/<slug>). Subjects without either are skipped by every
scraping run. The external ID names PDF snapshots in object storage; one is
generated when not provided.`,
	Example: `  liscraper subjects add --name "Jane Doe" --profile-id jane-doe --cohort 2024-spring

  liscraper subjects add --url https://www.linkedin.com/in/jane-doe --external-id crm-4711`,
	Args: cobra.NoArgs,
	RunE: runSubjectsAdd,
}

var (
	subjectsListCohort string
	subjectsListLimit  int
)

func init() {
	rootCmd.AddCommand(subjectsCmd)
	subjectsCmd.AddCommand(subjectsAddCmd)
	subjectsCmd.AddCommand(subjectsListCmd)
	subjectsCmd.AddCommand(subjectsShowCmd)

	subjectsListCmd.Flags().StringVar(&subjectsListCohort, "cohort", "", "restrict to one cohort")
	subjectsListCmd.Flags().IntVar(&subjectsListLimit, "limit", 50, "maximum subjects to list (0 = all)")

	subjectsAddCmd.Flags().StringVar(&subjectName, "name", "", "subject display name")
	subjectsAddCmd.Flags().StringVar(&subjectCohort, "cohort", "", "cohort label for batch selection")
	subjectsAddCmd.Flags().StringVar(&subjectURL, "url", "", "full profile URL")
	subjectsAddCmd.Flags().StringVar(&subjectProfileID, "profile-id", "", "profile vanity slug")
	subjectsAddCmd.Flags().StringVar(&subjectExternalID, "external-id", "", "external identifier (generated when empty)")
}

func runSubjectsAdd(cmd *cobra.Command, args []string) error {
	if subjectURL == "" && subjectProfileID == "" {
		return fmt.Errorf("either --url or --profile-id is required")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	externalID := subjectExternalID
	if externalID == "" {
		externalID = uuid.NewString()
	}

	created, err := st.CreateSubject(ctx, &models.Subject{
		Name:       subjectName,
		Cohort:     subjectCohort,
		ExternalID: externalID,
		ProfileURL: subjectURL,
		ProfileID:  subjectProfileID,
	})
	if err != nil {
		return fmt.Errorf("create subject: %w", err)
	}

	fmt.Printf("Subject %d created (external ID %s)\n", created.ID, created.ExternalID)
	return nil
}

func runSubjectsShow(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	s, err := st.GetSubjectByExternalID(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Subject %d  %s\n", s.ID, s.Name)
	fmt.Printf("  External ID: %s\n", s.ExternalID)
	if s.Cohort != "" {
		fmt.Printf("  Cohort:      %s\n", s.Cohort)
	}
	fmt.Printf("  Profile:     %s\n", s.ResolvedProfileURL())
	if s.CurrentTitle != "" || s.CurrentCompany != "" {
		fmt.Printf("  Current:     %s at %s\n", s.CurrentTitle, s.CurrentCompany)
	}
	if s.Headline != "" {
		fmt.Printf("  Headline:    %s\n", s.Headline)
	}
	if s.Location != "" {
		fmt.Printf("  Location:    %s\n", s.Location)
	}
	if s.PDFURL != "" {
		fmt.Printf("  PDF:         %s\n", s.PDFURL)
	}
	if s.LastScrapedAt != nil {
		fmt.Printf("  Scraped:     %s\n", s.LastScrapedAt.Format("2006-01-02 15:04:05"))
	} else {
		fmt.Println("  Scraped:     never")
	}

	jobs, err := st.ListJobHistory(ctx, s.ID)
	if err != nil {
		return err
	}
	if len(jobs) > 0 {
		fmt.Println("\nEmployment history:")
		for _, j := range jobs {
			span := j.StartDate
			if j.EndDate != "" {
				span += " - " + j.EndDate
			} else if j.IsCurrent {
				span += " - present"
			}
			fmt.Printf("  %s, %s  (%s)\n", j.Title, j.Company, span)
		}
	}
	return nil
}

func runSubjectsList(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	subjects, err := st.ListSubjects(ctx, subjectsListCohort, subjectsListLimit)
	if err != nil {
		return err
	}
	if len(subjects) == 0 {
		fmt.Println("No subjects registered")
		return nil
	}

	for _, s := range subjects {
		scraped := "never"
		if s.LastScrapedAt != nil {
			scraped = s.LastScrapedAt.Format("2006-01-02")
		}
		fmt.Printf("%6d  %-20s  %-14s  scraped %-10s  %s\n",
			s.ID, s.Name, s.Cohort, scraped, s.ResolvedProfileURL())
	}
	return nil
}
