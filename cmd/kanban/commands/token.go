package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/benvon/kanban-assistant/internal/models"
	"github.com/benvon/kanban-assistant/internal/services/auth"
	"github.com/spf13/cobra"
)

// NewTokenCmd creates the token command
func NewTokenCmd() *cobra.Command {
	var (
		secret, issuer       string
		subject, email, name string
		ttl                  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a development access token",
		Long:  "Sign an HS256 access token with the server's JWT_SECRET. Only useful when the server verifies tokens with a shared secret.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if subject == "" {
				return fmt.Errorf("--subject is required")
			}
			if secret == "" {
				return fmt.Errorf("--secret is required (or set JWT_SECRET)")
			}
			token, err := auth.Issue(secret, issuer, models.TokenClaims{
				Subject: subject,
				Email:   email,
				Name:    name,
			}, ttl)
			if err != nil {
				return fmt.Errorf("failed to issue token: %w", err)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&secret, "secret", os.Getenv("JWT_SECRET"), "HS256 signing secret")
	cmd.Flags().StringVar(&issuer, "issuer", os.Getenv("JWT_ISSUER"), "Token issuer")
	cmd.Flags().StringVar(&subject, "subject", "", "User subject (required)")
	cmd.Flags().StringVar(&email, "email", "", "User email")
	cmd.Flags().StringVar(&name, "name", "", "User display name")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")

	return cmd
}
