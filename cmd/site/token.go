package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/nirman-site/internal/server"
)

var tokenSubject string

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for POST /api/revalidate",
	Long: `Issue a revalidation token signed with JWT_SECRET. Configure it as the
Authorization header of the CMS webhook.`,
	Args: cobra.NoArgs,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "cms-webhook", "Name of the caller the token is issued to")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Auth.Validate(); err != nil {
		return err
	}

	token, err := server.NewJWTService(&cfg.Auth).GenerateToken(tokenSubject)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
	return err
}
