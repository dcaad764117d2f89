package cmd

import (
	"fmt"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"
)

// authLoginCmd represents the auth login command.
var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate with Spotify",
	Long: `Authenticate with Spotify using the authorization-code+PKCE flow.

A cached token is reused when fresh and refreshed when stale; otherwise a
browser window opens for interactive authentication and the command waits
for the redirect on the local callback port.`,
	RunE: runAuthLogin,
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	auth, err := newAuthenticator(cfg)
	if err != nil {
		return err
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " Waiting for Spotify authentication..."
	s.Start()

	_, err = auth.Authenticate(cmd.Context())
	s.Stop()

	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Authentication successful.")
	if token := auth.Token(); token != nil && !token.Expiry.IsZero() {
		fmt.Fprintf(cmd.OutOrStdout(), "Access token valid until %s.\n", token.Expiry.Format(time.RFC3339))
	}

	return nil
}
