package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var plansCmd = &cobra.Command{
	Use:   "plans",
	Short: "Show the plan catalogue",
	Long: `Show the configured subscription plans.

Plans are read from the plans section of the configuration. With no
plans configured the built-in free, basic, premium and enterprise tiers
are used.`,
	RunE: runPlans,
}

func init() {
	rootCmd.AddCommand(plansCmd)
}

func runPlans(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	plans, err := cfg.PlanRegistry()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out(cmd), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tREQUESTS/DAY\tFIELDS\tDEFAULT")
	fmt.Fprintln(w, "--\t----\t------------\t------\t-------")

	for _, p := range plans.List() {
		quota := fmt.Sprintf("%d", p.RequestsPerDay)
		if p.IsUnlimited() {
			quota = "unlimited"
		}
		def := ""
		if p.ID == plans.Default().ID {
			def = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", p.ID, p.Name, quota, strings.Join(p.Fields.Tokens(), ","), def)
	}

	return w.Flush()
}
