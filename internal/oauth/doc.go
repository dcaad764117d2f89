// Package oauth implements the Spotify authorization-code+PKCE flow for
// spotify-mcp.
//
// The package owns the whole authentication lifecycle:
//   - PKCE code verifier/challenge generation
//   - A one-shot loopback HTTP listener that captures the authorization
//     redirect on 127.0.0.1
//   - A JSON token cache on disk with expiry-aware load and atomic save
//   - The Authenticator, which sequences cache lookup, token refresh and
//     the full interactive browser flow
//
// # Token storage
//
// Tokens are cached in a single JSON file:
//
//	~/.spotify-mcp/token-cache.json
//
// The file always holds the most recently issued token set. Its expires_at
// field is recomputed from the local clock at save time and a stale file is
// kept around as a refresh candidate as long as it carries a refresh token.
//
// # Usage
//
//	auth := oauth.NewAuthenticator(oauth.Config{
//	    ClientID: "abc123",
//	    Scopes:   []string{"user-read-email"},
//	})
//	client, err := auth.Authenticate(ctx)
package oauth
