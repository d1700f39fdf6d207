package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sakif/coderunner/internal/auth"
	"github.com/sakif/coderunner/internal/config"
)

var ttlFlag time.Duration

var tokenCmd = &cobra.Command{
	Use:   "token SUBJECT",
	Short: "Issue an API bearer token",
	Long: `Issue a bearer token for SUBJECT, signed with auth.jwt_secret.

Examples:
  coderunner token ci-bot
  coderunner token grader --ttl 720h`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFlag)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if cfg.Auth.JWTSecret == "" {
			return errors.New("auth.jwt_secret is not set (CODERUNNER_AUTH_JWT_SECRET)")
		}

		tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret)
		if err != nil {
			return err
		}
		token, err := tokens.Issue(args[0], ttlFlag)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().DurationVar(&ttlFlag, "ttl", auth.DefaultTTL, "Token lifetime")
	rootCmd.AddCommand(tokenCmd)
}
