package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var usageCmd = &cobra.Command{
	Use:   "usage <account-id-or-email>",
	Short: "Show usage statistics for an account",
	Long: `Show today's quota usage, audited request counts and the most
requested symbols for an account.

Examples:
  quotagate usage ada@example.com
  quotagate usage 3f0c2a7e-...`,
	Args: cobra.ExactArgs(1),
	RunE: runUsage,
}

func init() {
	rootCmd.AddCommand(usageCmd)
}

func runUsage(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	acct, err := a.Accounts.Find(ctx, args[0])
	if err != nil {
		return fmt.Errorf("account not found: %s", args[0])
	}

	stats, err := a.Stats.AccountStats(ctx, acct)
	if err != nil {
		return fmt.Errorf("failed to load usage: %w", err)
	}

	w := out(cmd)
	fmt.Fprintf(w, "Usage for %s (%s)\n", acct.Email, acct.ID)
	fmt.Fprintf(w, "Day: %s\n\n", stats.Day)

	fmt.Fprintf(w, "  Plan:            %s\n", stats.Plan.ID)
	if stats.Unlimited() {
		fmt.Fprintf(w, "  Used today:      %d (unlimited)\n", stats.UsedToday)
	} else {
		fmt.Fprintf(w, "  Used today:      %d / %d\n", stats.UsedToday, stats.Plan.RequestsPerDay)
		fmt.Fprintf(w, "  Remaining:       %d\n", stats.Remaining)
	}
	fmt.Fprintf(w, "  Audited today:   %d\n", stats.AuditedToday)
	fmt.Fprintf(w, "  Total requests:  %d\n", stats.TotalRequests)

	if len(stats.TopSubjects) == 0 {
		return nil
	}

	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SYMBOL\tREQUESTS")
	fmt.Fprintln(tw, "------\t--------")
	for _, s := range stats.TopSubjects {
		fmt.Fprintf(tw, "%s\t%d\n", s.Subject, s.Count)
	}
	return tw.Flush()
}
