package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	httpadapter "github.com/viralforge/appointment-payments/internal/adapters/http"
)

func tokenCmd() *cobra.Command {
	var (
		secret  string
		issuer  string
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an operator token for the internal API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if secret == "" {
				return fmt.Errorf("--secret or ADMIN_JWT_SECRET is required")
			}
			token, err := httpadapter.IssueAdminToken(secret, issuer, subject, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&secret, "secret", os.Getenv("ADMIN_JWT_SECRET"), "signing secret")
	f.StringVar(&issuer, "issuer", "m15-appointment-payment-service", "token issuer")
	f.StringVar(&subject, "subject", "operator", "token subject")
	f.DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
