package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"spotify-mcp/internal/oauth"
)

// authStatusCmd represents the auth status command.
var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the cached authentication status",
	Long: `Show the state of the cached Spotify token set.

This inspects the local token cache only and never contacts Spotify.`,
	RunE: runAuthStatus,
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	cache, err := oauth.NewTokenCache(cfg.CacheDir)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	record := cache.Load()
	if record == nil {
		fmt.Fprintln(out, "Not authenticated: no usable token cache.")
		fmt.Fprintln(out, "Run 'spotify-mcp auth login' to authenticate.")
		return nil
	}

	expiry := time.Unix(record.ExpiresAt, 0)
	if record.IsFresh(time.Now()) {
		fmt.Fprintf(out, "Authenticated: access token valid until %s.\n", expiry.Format(time.RFC3339))
	} else {
		fmt.Fprintf(out, "Access token expired at %s; it will be refreshed on next use.\n", expiry.Format(time.RFC3339))
	}

	fmt.Fprintf(out, "Scopes: %s\n", record.Scope)
	fmt.Fprintf(out, "Cache:  %s\n", cache.Path())

	return nil
}
