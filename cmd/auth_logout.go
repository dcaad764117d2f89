package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"spotify-mcp/internal/oauth"
)

// authLogoutCmd represents the auth logout command.
var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the cached token set",
	Long: `Remove the cached Spotify token set.

The next connection will require interactive re-authentication.`,
	RunE: runAuthLogout,
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	cache, err := oauth.NewTokenCache(cfg.CacheDir)
	if err != nil {
		return err
	}

	if err := cache.Clear(); err != nil {
		return fmt.Errorf("failed to clear token cache: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Logged out: token cache cleared.")
	return nil
}
