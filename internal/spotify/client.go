// Package spotify provides a thin client for the Spotify Web API.
//
// The client is the authenticated handle the oauth.Authenticator hands out:
// it wraps a bearer access token and performs pass-through calls to the
// remote service, returning Spotify's JSON responses unmodified.
package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
)

// APIBaseURL is the Spotify Web API base URL.
const APIBaseURL = "https://api.spotify.com/v1"

// MaxLimit is the largest page size the Web API accepts.
const MaxLimit = 50

// ClientOpts configures a Client.
type ClientOpts struct {
	// AccessToken is the OAuth bearer token.
	AccessToken string

	// BaseURL overrides the API base URL. Used by tests.
	BaseURL string

	// HTTPClient is an optional underlying HTTP client.
	HTTPClient *http.Client
}

// Client is an authenticated Spotify Web API handle. It becomes stale once
// the access token expires; the owning authenticator detects that on the
// next Authenticate call and replaces it.
type Client struct {
	httpClient *resty.Client
}

// NewClient creates a client for the given options.
func NewClient(opts ClientOpts) *Client {
	var rc *resty.Client
	if opts.HTTPClient != nil {
		rc = resty.NewWithClient(opts.HTTPClient)
	} else {
		rc = resty.New()
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = APIBaseURL
	}

	rc.SetBaseURL(baseURL).
		SetAuthToken(opts.AccessToken).
		SetHeader("Accept", "application/json")

	return &Client{httpClient: rc}
}

// req prepares a request bound to ctx.
func (c *Client) req(ctx context.Context) *resty.Request {
	return c.httpClient.NewRequest().SetContext(ctx)
}

// get performs a GET and returns the raw JSON body.
func get(r *resty.Request, path string) (json.RawMessage, error) {
	res, err := r.Get(path)
	if err != nil {
		return nil, err
	}
	if res.IsError() {
		return nil, fmt.Errorf("request failed: GET %s (status: %d)", res.Request.URL, res.StatusCode())
	}
	return json.RawMessage(res.Body()), nil
}

// ClampLimit caps a requested page size to the API maximum.
func ClampLimit(limit int) int {
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// Search queries the search endpoint for a single item type
// ("track", "artist", "album" or "playlist").
func (c *Client) Search(ctx context.Context, query, itemType string, limit int) (json.RawMessage, error) {
	return get(c.req(ctx).SetQueryParams(map[string]string{
		"q":     query,
		"type":  itemType,
		"limit": fmt.Sprintf("%d", ClampLimit(limit)),
	}), "/search")
}

// GetTrack fetches a track by ID.
func (c *Client) GetTrack(ctx context.Context, trackID string) (json.RawMessage, error) {
	return get(c.req(ctx).SetPathParam("id", trackID), "/tracks/{id}")
}

// GetArtist fetches an artist by ID.
func (c *Client) GetArtist(ctx context.Context, artistID string) (json.RawMessage, error) {
	return get(c.req(ctx).SetPathParam("id", artistID), "/artists/{id}")
}

// GetArtistTopTracks fetches an artist's top tracks for a market.
func (c *Client) GetArtistTopTracks(ctx context.Context, artistID, market string) (json.RawMessage, error) {
	return get(c.req(ctx).
		SetPathParam("id", artistID).
		SetQueryParam("market", market), "/artists/{id}/top-tracks")
}

// GetAlbum fetches an album by ID.
func (c *Client) GetAlbum(ctx context.Context, albumID string) (json.RawMessage, error) {
	return get(c.req(ctx).SetPathParam("id", albumID), "/albums/{id}")
}

// GetPlaylist fetches a playlist by ID.
func (c *Client) GetPlaylist(ctx context.Context, playlistID string) (json.RawMessage, error) {
	return get(c.req(ctx).SetPathParam("id", playlistID), "/playlists/{id}")
}

// CurrentUser fetches the current user's profile.
func (c *Client) CurrentUser(ctx context.Context) (json.RawMessage, error) {
	return get(c.req(ctx), "/me")
}

// CurrentUserPlaylists fetches the current user's playlists.
func (c *Client) CurrentUserPlaylists(ctx context.Context, limit int) (json.RawMessage, error) {
	return get(c.req(ctx).
		SetQueryParam("limit", fmt.Sprintf("%d", ClampLimit(limit))), "/me/playlists")
}

// CurrentUserTopTracks fetches the current user's top tracks.
// timeRange is one of short_term, medium_term, long_term.
func (c *Client) CurrentUserTopTracks(ctx context.Context, limit int, timeRange string) (json.RawMessage, error) {
	return get(c.req(ctx).SetQueryParams(map[string]string{
		"limit":      fmt.Sprintf("%d", ClampLimit(limit)),
		"time_range": timeRange,
	}), "/me/top/tracks")
}

// CurrentUserTopArtists fetches the current user's top artists.
func (c *Client) CurrentUserTopArtists(ctx context.Context, limit int, timeRange string) (json.RawMessage, error) {
	return get(c.req(ctx).SetQueryParams(map[string]string{
		"limit":      fmt.Sprintf("%d", ClampLimit(limit)),
		"time_range": timeRange,
	}), "/me/top/artists")
}

// RecentlyPlayed fetches the current user's recently played tracks.
func (c *Client) RecentlyPlayed(ctx context.Context, limit int) (json.RawMessage, error) {
	return get(c.req(ctx).
		SetQueryParam("limit", fmt.Sprintf("%d", ClampLimit(limit))), "/me/player/recently-played")
}
