package main

import (
	"fmt"
	"os"
	"time"

	"go-chainwatch/internal/config"
	"go-chainwatch/pkg/utils"

	"github.com/spf13/cobra"
)

// newRootCmd mints an analyst token signed with JWT_SECRET, for use as a
// bearer header or the websocket token query parameter.
func newRootCmd() *cobra.Command {
	var (
		roles []string
		ttl   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token <analyst-id>",
		Short: "Mint an analyst token for the dashboard API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			issuer, err := utils.NewTokenIssuer(cfg.JWTSecret)
			if err != nil {
				return err
			}
			token, err := issuer.Issue(args[0], roles, ttl)
			if err != nil {
				return fmt.Errorf("failed to sign token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&roles, "roles", []string{"analyst"}, "roles embedded in the token")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "token lifetime")
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
