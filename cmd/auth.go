package cmd

import (
	"github.com/spf13/cobra"
)

// authCmd represents the auth command group.
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage Spotify authentication",
	Long: `Manage Spotify authentication for spotify-mcp.

The auth command group provides subcommands to login, check status and
log out of the cached Spotify session.

Examples:
  spotify-mcp auth login    # Run the interactive browser flow now
  spotify-mcp auth status   # Show the cached token state
  spotify-mcp auth logout   # Remove the cached token set`,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authStatusCmd)
	authCmd.AddCommand(authLogoutCmd)
}
