package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"chatsync-be/internal/config"
	"chatsync-be/internal/pkg/serverutils"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func main() {
	var (
		user   string
		secret string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "devtoken",
		Short: "Mint a bearer token for local development",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = config.Load().Auth.JWTSecret
			}
			if secret == "" {
				return errors.New("no secret: pass --secret or set JWT_SECRET")
			}

			userId := uuid.New()
			if user != "" {
				parsed, err := uuid.Parse(user)
				if err != nil {
					return fmt.Errorf("--user must be a uuid: %w", err)
				}
				userId = parsed
			}

			token, err := serverutils.IssueUserToken(secret, userId, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "user %s, expires %s\n", userId, time.Now().Add(ttl).Format(time.RFC3339))
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user id (random if empty)")
	cmd.Flags().StringVar(&secret, "secret", "", "signing secret (defaults to JWT_SECRET)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
