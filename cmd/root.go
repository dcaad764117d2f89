package cmd

import (
	"errors"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"spotify-mcp/internal/oauth"
)

// Exit codes for CLI commands.
// These follow common conventions for scripting and automation.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeAuthRequired indicates authentication is required but not available.
	ExitCodeAuthRequired = 2
	// ExitCodeAuthFailed indicates the OAuth flow failed.
	ExitCodeAuthFailed = 3
)

var debugLogging bool

// rootCmd represents the base command for the spotify-mcp application.
var rootCmd = &cobra.Command{
	Use:   "spotify-mcp",
	Short: "Spotify MCP server with OAuth PKCE authentication",
	Long: `spotify-mcp exposes the Spotify Web API as MCP tools for AI assistants.

It authenticates against Spotify's authorization-code+PKCE flow in the
browser, caches the token set on disk and refreshes it transparently, so
tools keep working without re-prompting on every run.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors
	// that are handled by the application.
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initLogging()
	},
}

// initLogging routes structured logs to stderr. Stdout is reserved for the
// MCP stdio transport.
func initLogging() {
	level := slog.LevelInfo
	if debugLogging {
		level = slog.LevelDebug
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}

// SetVersion sets the version for the root command.
// This function is called from the main package to inject the application
// version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "spotify-mcp version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
func getExitCode(err error) int {
	if errors.Is(err, oauth.ErrNotAuthenticated) {
		return ExitCodeAuthRequired
	}

	var callbackErr *oauth.CallbackError
	if errors.As(err, &callbackErr) {
		return ExitCodeAuthFailed
	}

	var exchangeErr *oauth.ExchangeError
	if errors.As(err, &exchangeErr) {
		return ExitCodeAuthFailed
	}

	if errors.Is(err, oauth.ErrStateMismatch) {
		return ExitCodeAuthFailed
	}

	return ExitCodeError
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugLogging, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&clientID, "client-id", "", "Spotify application client ID (overrides config and SPOTIFY_CLIENT_ID)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config-path", "", "Configuration directory (default: ~/.spotify-mcp)")
	rootCmd.PersistentFlags().IntVar(&callbackPort, "callback-port", 0, "Loopback port for the OAuth redirect (default: 8888)")

	rootCmd.AddCommand(newVersionCmd())
}
