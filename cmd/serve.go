package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"spotify-mcp/internal/server"
)

// serveCmd starts the MCP server on stdio.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Spotify MCP server on stdio",
	Long: `Start the MCP server for AI assistant integration.

The server speaks the MCP protocol over stdin/stdout. The first tool call
that needs Spotify access triggers the OAuth flow: a cached token is used
when fresh, refreshed when stale, and only when neither works does a
browser window open for interactive authentication.

Example Claude Desktop configuration:

  {
    "mcpServers": {
      "spotify": {
        "command": "spotify-mcp",
        "args": ["serve"]
      }
    }
  }`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	auth, err := newAuthenticator(cfg)
	if err != nil {
		return err
	}

	slog.Info("Starting Spotify MCP server",
		"callback_port", cfg.CallbackPort,
		"scopes", len(cfg.Scopes),
	)

	srv := server.NewMCPServer(auth, rootCmd.Version)
	return srv.Start(cmd.Context())
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
