package main

import (
	"fmt"
	"os"
	"syscall"

	"github.com/artpar/quotagate/adapters/hasher"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Admin API helpers",
	Long: `Helpers for the admin API.

Admin requests authenticate with "Authorization: Bearer <token>". The
server stores only bcrypt hashes of accepted tokens in admin.token_hashes.

Examples:
  quotagate admin hash-token
  quotagate admin hash-token --token=s3cret`,
}

var adminHashTokenCmd = &cobra.Command{
	Use:   "hash-token",
	Short: "Print the bcrypt hash of an admin token",
	Long: `Print the bcrypt hash of an admin token for admin.token_hashes.

If --token is not provided, you will be prompted to enter it securely.`,
	RunE: runAdminHashToken,
}

var (
	adminToken string
	adminCost  int
)

func init() {
	rootCmd.AddCommand(adminCmd)
	adminCmd.AddCommand(adminHashTokenCmd)

	adminHashTokenCmd.Flags().StringVar(&adminToken, "token", "", "admin token (will prompt if not provided)")
	adminHashTokenCmd.Flags().IntVar(&adminCost, "cost", bcrypt.DefaultCost, "bcrypt cost")
}

func runAdminHashToken(cmd *cobra.Command, args []string) error {
	token := adminToken
	if token == "" {
		var err error
		token, err = promptToken("Admin token: ")
		if err != nil {
			return err
		}
	}
	if len(token) < 16 {
		return fmt.Errorf("token must be at least 16 characters")
	}

	hash, err := hasher.NewBcrypt(adminCost).Hash(token)
	if err != nil {
		return fmt.Errorf("failed to hash token: %w", err)
	}

	fmt.Fprintln(out(cmd), string(hash))
	return nil
}

func promptToken(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	token, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr) // Print newline after token input
	if err != nil {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	return string(token), nil
}
