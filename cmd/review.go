package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/plannetic/compliance-cli/internal/reminder"
)

var (
	reviewDueBy string
	reviewWatch bool
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Inspect the review calendar and send reminders",
}

var reviewDueCmd = &cobra.Command{
	Use:   "due",
	Short: "List reviews due by a date (default: today)",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		dueBy := time.Now().UTC()
		if reviewDueBy != "" {
			parsed, err := time.Parse("2006-01-02", reviewDueBy)
			if err != nil {
				return eris.Wrap(err, "review: parse --by date")
			}
			dueBy = parsed
		}

		s, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		due, err := s.ListDueReviews(ctx, dueBy)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SUBJECT\tTYPE\tTIER\tNEXT REVIEW")
		for _, a := range due {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				a.SubjectID, a.Type, a.Tier, a.NextReviewAt.Format("2006-01-02"))
		}
		return w.Flush()
	},
}

var reviewRemindCmd = &cobra.Command{
	Use:   "remind",
	Short: "Evaluate reminders once, or continuously with --watch",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		s, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		collector := reminder.NewCollector(s, cfg.Schedule)
		alerter := reminder.NewAlerter(cfg.Reminder)
		checker := reminder.NewChecker(collector, alerter, cfg.Reminder)

		if reviewWatch {
			checker.Run(ctx)
			return nil
		}

		sent, err := checker.CheckOnce(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Sent %d alert(s)\n", sent)
		return nil
	},
}

func init() {
	reviewDueCmd.Flags().StringVar(&reviewDueBy, "by", "", "due date cutoff (YYYY-MM-DD)")
	reviewRemindCmd.Flags().BoolVar(&reviewWatch, "watch", false, "keep running on the configured interval")

	reviewCmd.AddCommand(reviewDueCmd)
	reviewCmd.AddCommand(reviewRemindCmd)
	rootCmd.AddCommand(reviewCmd)
}
