package oauth

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"
)

// DefaultCacheDir is the per-user directory holding the token cache,
// relative to the home directory.
const DefaultCacheDir = ".spotify-mcp"

// cacheFileName is the single on-disk artifact this subsystem defines.
const cacheFileName = "token-cache.json"

// freshnessBuffer is the safety margin applied when checking token expiry.
// It covers clock skew and in-flight request latency.
const freshnessBuffer = 300 * time.Second

// TokenResponse is the JSON object returned by Spotify's token endpoint for
// both the authorization-code exchange and the refresh grant.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope"`
}

// TokenRecord is the persisted token set. ExpiresAt is always recomputed
// from the local clock at save time, never trusted from the remote response.
type TokenRecord struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope"`
	ExpiresAt    int64  `json:"expires_at"`
}

// IsFresh reports whether the access token is still usable at the given
// time, with a 5-minute safety buffer. A record expiring exactly at
// now+300s is not fresh.
func (r *TokenRecord) IsFresh(now time.Time) bool {
	if r == nil {
		return false
	}
	return r.ExpiresAt > now.Add(freshnessBuffer).Unix()
}

// Token converts the record to an oauth2.Token.
func (r *TokenRecord) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  r.AccessToken,
		TokenType:    r.TokenType,
		RefreshToken: r.RefreshToken,
		Expiry:       time.Unix(r.ExpiresAt, 0),
	}
}

// TokenCache is the durable store for the current token set.
//
// The cache file is process-external shared state: writes go through a
// temp-file-then-rename so a concurrent reader in another process never
// observes a half-written file. Token values are never logged.
type TokenCache struct {
	dir string
	now func() time.Time
}

// NewTokenCache creates a token cache rooted at dir. If dir is empty, the
// per-user default (~/.spotify-mcp) is used.
func NewTokenCache(dir string) (*TokenCache, error) {
	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(homeDir, DefaultCacheDir)
	}

	return &TokenCache{
		dir: dir,
		now: time.Now,
	}, nil
}

// Path returns the location of the cache file.
func (c *TokenCache) Path() string {
	return filepath.Join(c.dir, cacheFileName)
}

// Load reads the persisted token record.
//
// A missing, unreadable or malformed cache file is treated as "no cache"
// and returns nil without an error. A record whose access token has expired
// is still returned as long as it carries a refresh token, since it remains
// useful as a refresh candidate; an expired record without one is useless
// and reported as absent.
func (c *TokenCache) Load() *TokenRecord {
	data, err := os.ReadFile(c.Path())
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Debug("Token cache unreadable, treating as absent",
				"path", c.Path(),
				"error", err.Error(),
			)
		}
		return nil
	}

	var record TokenRecord
	if err := json.Unmarshal(data, &record); err != nil {
		slog.Warn("Token cache corrupt, treating as absent",
			"path", c.Path(),
			"error", err.Error(),
		)
		return nil
	}

	if record.IsFresh(c.now()) {
		return &record
	}

	if record.RefreshToken != "" {
		return &record
	}

	return nil
}

// Save persists a token response, recomputing expires_at from the current
// clock. When the response omits a refresh token (refresh responses
// frequently do not reissue one), the previously stored refresh token is
// preserved. The write is an atomic replace.
func (c *TokenCache) Save(resp *TokenResponse) (*TokenRecord, error) {
	record := &TokenRecord{
		AccessToken:  resp.AccessToken,
		TokenType:    resp.TokenType,
		ExpiresIn:    resp.ExpiresIn,
		RefreshToken: resp.RefreshToken,
		Scope:        resp.Scope,
		ExpiresAt:    c.now().Unix() + resp.ExpiresIn,
	}

	if record.RefreshToken == "" {
		if prev := c.readRecord(); prev != nil {
			record.RefreshToken = prev.RefreshToken
		}
	}

	if err := c.writeRecord(record); err != nil {
		return record, err
	}

	return record, nil
}

// readRecord reads the raw cache file without any freshness filtering.
func (c *TokenCache) readRecord() *TokenRecord {
	data, err := os.ReadFile(c.Path())
	if err != nil {
		return nil
	}

	var record TokenRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil
	}

	return &record
}

// writeRecord writes the record atomically: marshal to a temp file in the
// cache directory, then rename over the final path.
func (c *TokenCache) writeRecord(record *TokenRecord) error {
	if err := os.MkdirAll(c.dir, 0700); err != nil {
		return fmt.Errorf("failed to create token cache directory: %w", err)
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal token record: %w", err)
	}

	tmp, err := os.CreateTemp(c.dir, cacheFileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp token file: %w", err)
	}
	tmpPath := tmp.Name()

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to restrict token file permissions: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write token file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close token file: %w", err)
	}

	if err := os.Rename(tmpPath, c.Path()); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace token cache: %w", err)
	}

	return nil
}

// Clear removes the cache file. A missing file is not an error.
func (c *TokenCache) Clear() error {
	err := os.Remove(c.Path())
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
