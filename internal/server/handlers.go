package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"spotify-mcp/internal/spotify"
)

// Defaults mirroring the Web API conventions: searches page at 10, user
// library listings at 20.
const (
	defaultSearchLimit  = 10
	defaultListingLimit = 20
	defaultMarket       = "US"
	defaultTimeRange    = "medium_term"
)

// client obtains an authenticated Spotify handle for one tool call.
// Authenticate is cheap after the first call (in-memory fast path) and
// transparently refreshes an expiring token.
func (s *MCPServer) client(ctx context.Context) (*spotify.Client, error) {
	return s.auth.Authenticate(ctx)
}

// result formats a raw Spotify JSON response as a tool result.
func result(raw json.RawMessage, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(raw)), nil
}

// limitArg extracts the optional numeric "limit" argument.
func limitArg(request mcp.CallToolRequest, fallback int) int {
	if v, ok := request.GetArguments()["limit"].(float64); ok && v > 0 {
		return int(v)
	}
	return fallback
}

// stringArg extracts an optional string argument.
func stringArg(request mcp.CallToolRequest, name, fallback string) string {
	if v, ok := request.GetArguments()[name].(string); ok && v != "" {
		return v
	}
	return fallback
}

func (s *MCPServer) handleSearchTracks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query argument is required"), nil
	}

	client, err := s.client(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Authentication failed: %v", err)), nil
	}

	return result(client.Search(ctx, query, "track", limitArg(request, defaultSearchLimit)))
}

func (s *MCPServer) handleGetTrack(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	trackID, err := request.RequireString("track_id")
	if err != nil {
		return mcp.NewToolResultError("track_id argument is required"), nil
	}

	client, err := s.client(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Authentication failed: %v", err)), nil
	}

	return result(client.GetTrack(ctx, trackID))
}

func (s *MCPServer) handleSearchArtists(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query argument is required"), nil
	}

	client, err := s.client(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Authentication failed: %v", err)), nil
	}

	return result(client.Search(ctx, query, "artist", limitArg(request, defaultSearchLimit)))
}

func (s *MCPServer) handleGetArtist(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	artistID, err := request.RequireString("artist_id")
	if err != nil {
		return mcp.NewToolResultError("artist_id argument is required"), nil
	}

	client, err := s.client(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Authentication failed: %v", err)), nil
	}

	return result(client.GetArtist(ctx, artistID))
}

func (s *MCPServer) handleGetArtistTopTracks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	artistID, err := request.RequireString("artist_id")
	if err != nil {
		return mcp.NewToolResultError("artist_id argument is required"), nil
	}

	client, err := s.client(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Authentication failed: %v", err)), nil
	}

	return result(client.GetArtistTopTracks(ctx, artistID, stringArg(request, "market", defaultMarket)))
}

func (s *MCPServer) handleSearchAlbums(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query argument is required"), nil
	}

	client, err := s.client(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Authentication failed: %v", err)), nil
	}

	return result(client.Search(ctx, query, "album", limitArg(request, defaultSearchLimit)))
}

func (s *MCPServer) handleGetAlbum(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	albumID, err := request.RequireString("album_id")
	if err != nil {
		return mcp.NewToolResultError("album_id argument is required"), nil
	}

	client, err := s.client(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Authentication failed: %v", err)), nil
	}

	return result(client.GetAlbum(ctx, albumID))
}

func (s *MCPServer) handleSearchPlaylists(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query argument is required"), nil
	}

	client, err := s.client(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Authentication failed: %v", err)), nil
	}

	return result(client.Search(ctx, query, "playlist", limitArg(request, defaultSearchLimit)))
}

func (s *MCPServer) handleGetPlaylist(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	playlistID, err := request.RequireString("playlist_id")
	if err != nil {
		return mcp.NewToolResultError("playlist_id argument is required"), nil
	}

	client, err := s.client(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Authentication failed: %v", err)), nil
	}

	return result(client.GetPlaylist(ctx, playlistID))
}

func (s *MCPServer) handleGetCurrentUser(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	client, err := s.client(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Authentication failed: %v", err)), nil
	}

	return result(client.CurrentUser(ctx))
}

func (s *MCPServer) handleGetUserPlaylists(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	client, err := s.client(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Authentication failed: %v", err)), nil
	}

	return result(client.CurrentUserPlaylists(ctx, limitArg(request, defaultListingLimit)))
}

func (s *MCPServer) handleGetUserTopTracks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	client, err := s.client(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Authentication failed: %v", err)), nil
	}

	return result(client.CurrentUserTopTracks(ctx,
		limitArg(request, defaultListingLimit),
		stringArg(request, "time_range", defaultTimeRange)))
}

func (s *MCPServer) handleGetUserTopArtists(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	client, err := s.client(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Authentication failed: %v", err)), nil
	}

	return result(client.CurrentUserTopArtists(ctx,
		limitArg(request, defaultListingLimit),
		stringArg(request, "time_range", defaultTimeRange)))
}

func (s *MCPServer) handleGetRecentlyPlayed(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	client, err := s.client(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Authentication failed: %v", err)), nil
	}

	return result(client.RecentlyPlayed(ctx, limitArg(request, defaultListingLimit)))
}
