package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/artpar/quotagate/domain/account"
	"github.com/spf13/cobra"
)

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Manage accounts",
	Long: `Provision and manage API accounts.

Each account has one secret key and is assigned to a plan. Accounts can
be referenced by ID or by contact email.

Examples:
  quotagate accounts create --name="Ada" --email=ada@example.com --plan=basic
  quotagate accounts list
  quotagate accounts get ada@example.com
  quotagate accounts reset-key ada@example.com
  quotagate accounts set-plan ada@example.com premium`,
}

var accountsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new account and print its secret key",
	RunE:  runAccountsCreate,
}

var accountsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List accounts",
	RunE:  runAccountsList,
}

var accountsGetCmd = &cobra.Command{
	Use:   "get <account-id-or-email>",
	Short: "Get account details",
	Args:  cobra.ExactArgs(1),
	RunE:  runAccountsGet,
}

var accountsResetKeyCmd = &cobra.Command{
	Use:   "reset-key <account-id-or-email>",
	Short: "Issue a new secret key; the old key stops working immediately",
	Args:  cobra.ExactArgs(1),
	RunE:  runAccountsResetKey,
}

var accountsSetPlanCmd = &cobra.Command{
	Use:   "set-plan <account-id-or-email> <plan-id>",
	Short: "Move an account to another plan",
	Args:  cobra.ExactArgs(2),
	RunE:  runAccountsSetPlan,
}

var (
	accountName    string
	accountEmail   string
	accountPlan    string
	accountShowKey bool
	accountsLimit  int
	accountsOffset int
)

func init() {
	rootCmd.AddCommand(accountsCmd)

	accountsCmd.AddCommand(accountsCreateCmd)
	accountsCmd.AddCommand(accountsListCmd)
	accountsCmd.AddCommand(accountsGetCmd)
	accountsCmd.AddCommand(accountsResetKeyCmd)
	accountsCmd.AddCommand(accountsSetPlanCmd)

	accountsCreateCmd.Flags().StringVar(&accountName, "name", "", "account holder name (required)")
	accountsCreateCmd.Flags().StringVar(&accountEmail, "email", "", "contact email (required)")
	accountsCreateCmd.Flags().StringVar(&accountPlan, "plan", "", "plan ID (default: configured default plan)")
	accountsCreateCmd.MarkFlagRequired("name")
	accountsCreateCmd.MarkFlagRequired("email")

	accountsGetCmd.Flags().BoolVar(&accountShowKey, "show-key", false, "print the full secret key")

	accountsListCmd.Flags().IntVar(&accountsLimit, "limit", 100, "maximum accounts to show")
	accountsListCmd.Flags().IntVar(&accountsOffset, "offset", 0, "accounts to skip")
}

func runAccountsCreate(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	acct, err := a.Accounts.Create(context.Background(), account.CreateParams{
		Name:   accountName,
		Email:  accountEmail,
		PlanID: accountPlan,
	})
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}

	w := out(cmd)
	fmt.Fprintf(w, "%s Created account: %s\n", checkMark, acct.ID)
	fmt.Fprintf(w, "   Name:  %s\n", acct.Name)
	fmt.Fprintf(w, "   Email: %s\n", acct.Email)
	fmt.Fprintf(w, "   Plan:  %s\n", acct.PlanID)
	fmt.Fprintf(w, "   Key:   %s\n", acct.SecretKey)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Store the key now; it is only shown in full on creation or reset.")
	return nil
}

func runAccountsList(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	accounts, total, err := a.Accounts.List(context.Background(), accountsLimit, accountsOffset)
	if err != nil {
		return fmt.Errorf("failed to list accounts: %w", err)
	}

	w := out(cmd)
	if len(accounts) == 0 {
		fmt.Fprintln(w, "No accounts found.")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Create one with: quotagate accounts create --name=Ada --email=ada@example.com")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tPLAN\tKEY")
	fmt.Fprintln(tw, "--\t----\t-----\t----\t---")
	for _, acct := range accounts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", acct.ID, acct.Name, acct.Email, acct.PlanID, acct.MaskedKey())
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nShowing %d of %d accounts.\n", len(accounts), total)
	return nil
}

func runAccountsGet(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	acct, err := a.Accounts.Find(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("account not found: %s", args[0])
	}

	key := acct.MaskedKey()
	if accountShowKey {
		key = acct.SecretKey
	}

	w := out(cmd)
	fmt.Fprintf(w, "ID:         %s\n", acct.ID)
	fmt.Fprintf(w, "Name:       %s\n", acct.Name)
	fmt.Fprintf(w, "Email:      %s\n", acct.Email)
	fmt.Fprintf(w, "Plan:       %s\n", acct.PlanID)
	fmt.Fprintf(w, "Key:        %s\n", key)
	fmt.Fprintf(w, "Created:    %s\n", acct.CreatedAt.Format("2006-01-02 15:04:05"))
	if !acct.LastSeenAt.IsZero() {
		fmt.Fprintf(w, "Last seen:  %s\n", acct.LastSeenAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runAccountsResetKey(cmd *cobra.Command, args []string) error {
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

	acct, err = a.Accounts.ResetKey(ctx, acct.ID)
	if err != nil {
		return fmt.Errorf("failed to reset key: %w", err)
	}

	w := out(cmd)
	fmt.Fprintf(w, "%s Issued new key for %s\n", checkMark, acct.Email)
	fmt.Fprintf(w, "   Key: %s\n", acct.SecretKey)
	return nil
}

func runAccountsSetPlan(cmd *cobra.Command, args []string) error {
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

	acct, err = a.Accounts.ChangePlan(ctx, acct.ID, args[1])
	if err != nil {
		return fmt.Errorf("failed to change plan: %w", err)
	}

	fmt.Fprintf(out(cmd), "%s %s is now on plan %s\n", checkMark, acct.Email, acct.PlanID)
	return nil
}
