// Package server exposes the Spotify Web API as MCP tools.
//
// The tool set is a closed, explicitly enumerated list; every handler
// obtains an authenticated client handle from the oauth.Authenticator and
// passes the call through to the remote service, returning Spotify's JSON
// unmodified. Any authentication error is surfaced to the MCP caller as a
// tool error.
package server

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"spotify-mcp/internal/oauth"
	"spotify-mcp/internal/spotify"
)

// clientProvider yields an authenticated Spotify client handle.
// *oauth.Authenticator is the production implementation; tests substitute
// their own.
type clientProvider interface {
	Authenticate(ctx context.Context) (*spotify.Client, error)
}

// MCPServer exposes Spotify operations as MCP tools over stdio.
type MCPServer struct {
	auth      clientProvider
	mcpServer *server.MCPServer
}

// NewMCPServer creates the MCP server and registers the tool set.
func NewMCPServer(auth *oauth.Authenticator, version string) *MCPServer {
	return newMCPServer(auth, version)
}

func newMCPServer(auth clientProvider, version string) *MCPServer {
	mcpServer := server.NewMCPServer(
		"spotify-mcp",
		version,
		server.WithToolCapabilities(false),
	)

	s := &MCPServer{
		auth:      auth,
		mcpServer: mcpServer,
	}

	s.registerTools()

	return s
}

// Start serves the MCP protocol over stdio. It blocks until the stdio
// connection is closed by the client.
func (s *MCPServer) Start(ctx context.Context) error {
	return server.ServeStdio(s.mcpServer)
}

// registerTools registers all MCP tools.
func (s *MCPServer) registerTools() {
	searchTracksTool := mcp.NewTool("search_tracks",
		mcp.WithDescription("Search for tracks on Spotify"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query for tracks"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results to return (default: 10)"),
		),
	)
	s.mcpServer.AddTool(searchTracksTool, s.handleSearchTracks)

	getTrackTool := mcp.NewTool("get_track",
		mcp.WithDescription("Get detailed information about a specific track by ID"),
		mcp.WithString("track_id",
			mcp.Required(),
			mcp.Description("Spotify track ID"),
		),
	)
	s.mcpServer.AddTool(getTrackTool, s.handleGetTrack)

	searchArtistsTool := mcp.NewTool("search_artists",
		mcp.WithDescription("Search for artists on Spotify"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query for artists"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results to return (default: 10)"),
		),
	)
	s.mcpServer.AddTool(searchArtistsTool, s.handleSearchArtists)

	getArtistTool := mcp.NewTool("get_artist",
		mcp.WithDescription("Get detailed information about a specific artist by ID"),
		mcp.WithString("artist_id",
			mcp.Required(),
			mcp.Description("Spotify artist ID"),
		),
	)
	s.mcpServer.AddTool(getArtistTool, s.handleGetArtist)

	getArtistTopTracksTool := mcp.NewTool("get_artist_top_tracks",
		mcp.WithDescription("Get top tracks for a specific artist"),
		mcp.WithString("artist_id",
			mcp.Required(),
			mcp.Description("Spotify artist ID"),
		),
		mcp.WithString("market",
			mcp.Description("ISO 3166-1 alpha-2 country code (default: US)"),
		),
	)
	s.mcpServer.AddTool(getArtistTopTracksTool, s.handleGetArtistTopTracks)

	searchAlbumsTool := mcp.NewTool("search_albums",
		mcp.WithDescription("Search for albums on Spotify"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query for albums"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results to return (default: 10)"),
		),
	)
	s.mcpServer.AddTool(searchAlbumsTool, s.handleSearchAlbums)

	getAlbumTool := mcp.NewTool("get_album",
		mcp.WithDescription("Get detailed information about a specific album by ID"),
		mcp.WithString("album_id",
			mcp.Required(),
			mcp.Description("Spotify album ID"),
		),
	)
	s.mcpServer.AddTool(getAlbumTool, s.handleGetAlbum)

	searchPlaylistsTool := mcp.NewTool("search_playlists",
		mcp.WithDescription("Search for playlists on Spotify"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query for playlists"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results to return (default: 10)"),
		),
	)
	s.mcpServer.AddTool(searchPlaylistsTool, s.handleSearchPlaylists)

	getPlaylistTool := mcp.NewTool("get_playlist",
		mcp.WithDescription("Get detailed information about a specific playlist by ID"),
		mcp.WithString("playlist_id",
			mcp.Required(),
			mcp.Description("Spotify playlist ID"),
		),
	)
	s.mcpServer.AddTool(getPlaylistTool, s.handleGetPlaylist)

	getCurrentUserTool := mcp.NewTool("get_current_user",
		mcp.WithDescription("Get the current user's profile information"),
	)
	s.mcpServer.AddTool(getCurrentUserTool, s.handleGetCurrentUser)

	getUserPlaylistsTool := mcp.NewTool("get_user_playlists",
		mcp.WithDescription("Get the current user's playlists"),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results to return (default: 20)"),
		),
	)
	s.mcpServer.AddTool(getUserPlaylistsTool, s.handleGetUserPlaylists)

	getUserTopTracksTool := mcp.NewTool("get_user_top_tracks",
		mcp.WithDescription("Get the current user's top tracks"),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results to return (default: 20)"),
		),
		mcp.WithString("time_range",
			mcp.Description("Time range - short_term (4 weeks), medium_term (6 months), long_term (years)"),
		),
	)
	s.mcpServer.AddTool(getUserTopTracksTool, s.handleGetUserTopTracks)

	getUserTopArtistsTool := mcp.NewTool("get_user_top_artists",
		mcp.WithDescription("Get the current user's top artists"),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results to return (default: 20)"),
		),
		mcp.WithString("time_range",
			mcp.Description("Time range - short_term (4 weeks), medium_term (6 months), long_term (years)"),
		),
	)
	s.mcpServer.AddTool(getUserTopArtistsTool, s.handleGetUserTopArtists)

	getRecentlyPlayedTool := mcp.NewTool("get_recently_played",
		mcp.WithDescription("Get the current user's recently played tracks"),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results to return (default: 20)"),
		),
	)
	s.mcpServer.AddTool(getRecentlyPlayedTool, s.handleGetRecentlyPlayed)
}
