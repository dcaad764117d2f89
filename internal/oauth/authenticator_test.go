package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

// tokenEndpointRecorder is an httptest handler for the token endpoint that
// records every grant it serves.
type tokenEndpointRecorder struct {
	t            *testing.T
	calls        atomic.Int64
	refreshCalls atomic.Int64
	codeCalls    atomic.Int64
	lastForm     atomic.Value // url.Values
	refreshFails bool
	codeFails    bool
}

func (h *tokenEndpointRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.calls.Add(1)

	if err := r.ParseForm(); err != nil {
		h.t.Errorf("token endpoint received unparseable form: %v", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	h.lastForm.Store(r.PostForm)

	switch r.PostForm.Get("grant_type") {
	case "refresh_token":
		h.refreshCalls.Add(1)
		if h.refreshFails {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":"invalid_grant"}`)
			return
		}
		// Refresh responses typically omit the refresh token.
		json.NewEncoder(w).Encode(TokenResponse{
			AccessToken: "refreshed-access-token",
			TokenType:   "Bearer",
			ExpiresIn:   3600,
			Scope:       "user-read-email",
		})
	case "authorization_code":
		h.codeCalls.Add(1)
		if h.codeFails {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"error":"server_error"}`)
			return
		}
		json.NewEncoder(w).Encode(TokenResponse{
			AccessToken:  "exchanged-access-token",
			TokenType:    "Bearer",
			ExpiresIn:    3600,
			RefreshToken: "new-refresh-token",
			Scope:        "user-read-email",
		})
	default:
		h.t.Errorf("unexpected grant_type: %q", r.PostForm.Get("grant_type"))
		w.WriteHeader(http.StatusBadRequest)
	}
}

func noBrowser(t *testing.T) func(string) error {
	return func(authURL string) error {
		t.Errorf("browser opened unexpectedly: %s", authURL)
		return nil
	}
}

func newTestAuthenticator(t *testing.T, endpoint *tokenEndpointRecorder, openBrowser func(string) error) (*Authenticator, string) {
	t.Helper()

	ts := httptest.NewServer(endpoint)
	t.Cleanup(ts.Close)

	cacheDir := t.TempDir()

	auth, err := NewAuthenticator(Config{
		ClientID:        "abc123",
		Scopes:          []string{"user-read-email"},
		CallbackPort:    freePort(t),
		CacheDir:        cacheDir,
		CallbackTimeout: 5 * time.Second,
		TokenEndpoint:   ts.URL,
		OpenBrowser:     openBrowser,
	})
	if err != nil {
		t.Fatalf("Failed to create authenticator: %v", err)
	}

	return auth, cacheDir
}

// writeCacheRecord plants a token record in the cache directory.
func writeCacheRecord(t *testing.T, cacheDir string, record TokenRecord) {
	t.Helper()

	data, err := json.Marshal(record)
	if err != nil {
		t.Fatalf("Failed to marshal record: %v", err)
	}
	if err := os.WriteFile(filepath.Join(cacheDir, cacheFileName), data, 0600); err != nil {
		t.Fatalf("Failed to write cache file: %v", err)
	}
}

// sendCallback simulates the browser redirect: it parses the authorization
// URL, extracts redirect_uri, and requests it with the given query values.
func sendCallback(t *testing.T, authURL string, params func(authQuery url.Values) url.Values) error {
	t.Helper()

	parsed, err := url.Parse(authURL)
	if err != nil {
		return fmt.Errorf("bad authorization URL: %w", err)
	}
	authQuery := parsed.Query()

	redirectURI := authQuery.Get("redirect_uri")
	if redirectURI == "" {
		return errors.New("authorization URL missing redirect_uri")
	}

	resp, err := http.Get(redirectURI + "?" + params(authQuery).Encode())
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func TestAuthenticator_UsesFreshCache(t *testing.T) {
	endpoint := &tokenEndpointRecorder{t: t}
	auth, cacheDir := newTestAuthenticator(t, endpoint, noBrowser(t))

	writeCacheRecord(t, cacheDir, TokenRecord{
		AccessToken:  "cached-access-token",
		TokenType:    "Bearer",
		ExpiresIn:    3600,
		RefreshToken: "cached-refresh-token",
		Scope:        "user-read-email",
		ExpiresAt:    time.Now().Unix() + 3600,
	})

	client, err := auth.Authenticate(context.Background())
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if client == nil {
		t.Fatal("expected a client handle")
	}

	if got := endpoint.calls.Load(); got != 0 {
		t.Errorf("token endpoint called %d times, want 0", got)
	}
	if auth.State() != StateAuthenticated {
		t.Errorf("state = %s, want %s", auth.State(), StateAuthenticated)
	}
}

func TestAuthenticator_RefreshesExpiredToken(t *testing.T) {
	endpoint := &tokenEndpointRecorder{t: t}
	auth, cacheDir := newTestAuthenticator(t, endpoint, noBrowser(t))

	writeCacheRecord(t, cacheDir, TokenRecord{
		AccessToken:  "stale-access-token",
		TokenType:    "Bearer",
		ExpiresIn:    3600,
		RefreshToken: "cached-refresh-token",
		Scope:        "user-read-email",
		ExpiresAt:    time.Now().Unix() - 60,
	})

	client, err := auth.Authenticate(context.Background())
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if client == nil {
		t.Fatal("expected a client handle")
	}

	// Exactly one refresh call, no code exchange, no browser.
	if got := endpoint.refreshCalls.Load(); got != 1 {
		t.Errorf("refresh calls = %d, want 1", got)
	}
	if got := endpoint.codeCalls.Load(); got != 0 {
		t.Errorf("code exchange calls = %d, want 0", got)
	}

	form := endpoint.lastForm.Load().(url.Values)
	if form.Get("refresh_token") != "cached-refresh-token" {
		t.Errorf("refresh_token = %q, want %q", form.Get("refresh_token"), "cached-refresh-token")
	}
	if form.Get("client_id") != "abc123" {
		t.Errorf("client_id = %q, want %q", form.Get("client_id"), "abc123")
	}

	// The refresh response omitted the refresh token; the cache must keep
	// the old one.
	data, err := os.ReadFile(filepath.Join(cacheDir, cacheFileName))
	if err != nil {
		t.Fatalf("Failed to read cache file: %v", err)
	}
	var record TokenRecord
	if err := json.Unmarshal(data, &record); err != nil {
		t.Fatalf("Cache file corrupt: %v", err)
	}
	if record.AccessToken != "refreshed-access-token" {
		t.Errorf("cached access token = %q, want refreshed", record.AccessToken)
	}
	if record.RefreshToken != "cached-refresh-token" {
		t.Errorf("cached refresh token = %q, want preserved", record.RefreshToken)
	}
}

func TestAuthenticator_FastPathSkipsEverything(t *testing.T) {
	endpoint := &tokenEndpointRecorder{t: t}
	auth, cacheDir := newTestAuthenticator(t, endpoint, noBrowser(t))

	writeCacheRecord(t, cacheDir, TokenRecord{
		AccessToken: "cached-access-token",
		TokenType:   "Bearer",
		ExpiresIn:   3600,
		Scope:       "user-read-email",
		ExpiresAt:   time.Now().Unix() + 3600,
	})

	first, err := auth.Authenticate(context.Background())
	if err != nil {
		t.Fatalf("first Authenticate failed: %v", err)
	}

	// Remove the cache file: the fast path must not touch it.
	if err := os.Remove(filepath.Join(cacheDir, cacheFileName)); err != nil {
		t.Fatalf("Failed to remove cache: %v", err)
	}

	second, err := auth.Authenticate(context.Background())
	if err != nil {
		t.Fatalf("second Authenticate failed: %v", err)
	}
	if first != second {
		t.Error("expected the same in-memory handle on repeated calls")
	}
	if got := endpoint.calls.Load(); got != 0 {
		t.Errorf("token endpoint called %d times, want 0", got)
	}
}

func TestAuthenticator_FullFlow(t *testing.T) {
	endpoint := &tokenEndpointRecorder{t: t}

	var capturedAuthURL string
	openBrowser := func(authURL string) error {
		capturedAuthURL = authURL
		return sendCallback(t, authURL, func(authQuery url.Values) url.Values {
			return url.Values{
				"code":  {"good-code"},
				"state": {authQuery.Get("state")},
			}
		})
	}

	auth, cacheDir := newTestAuthenticator(t, endpoint, openBrowser)

	client, err := auth.Authenticate(context.Background())
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if client == nil {
		t.Fatal("expected a client handle")
	}

	// The authorization URL must carry the full PKCE request.
	parsed, err := url.Parse(capturedAuthURL)
	if err != nil {
		t.Fatalf("bad authorization URL: %v", err)
	}
	q := parsed.Query()
	if q.Get("client_id") != "abc123" {
		t.Errorf("client_id = %q, want %q", q.Get("client_id"), "abc123")
	}
	if q.Get("response_type") != "code" {
		t.Errorf("response_type = %q, want %q", q.Get("response_type"), "code")
	}
	if q.Get("code_challenge_method") != "S256" {
		t.Errorf("code_challenge_method = %q, want %q", q.Get("code_challenge_method"), "S256")
	}
	if q.Get("scope") != "user-read-email" {
		t.Errorf("scope = %q, want %q", q.Get("scope"), "user-read-email")
	}
	if q.Get("state") == "" {
		t.Error("authorization URL missing state")
	}
	if q.Get("code_challenge") == "" {
		t.Error("authorization URL missing code_challenge")
	}

	// The exchange must send the verifier (never the challenge), and the
	// challenge in the URL must be derived from it.
	form := endpoint.lastForm.Load().(url.Values)
	if form.Get("grant_type") != "authorization_code" {
		t.Errorf("grant_type = %q, want authorization_code", form.Get("grant_type"))
	}
	if form.Get("code") != "good-code" {
		t.Errorf("code = %q, want %q", form.Get("code"), "good-code")
	}
	verifier := form.Get("code_verifier")
	if verifier == "" {
		t.Fatal("exchange missing code_verifier")
	}
	derived, err := DeriveChallenge(verifier)
	if err != nil {
		t.Fatalf("DeriveChallenge failed: %v", err)
	}
	if derived != q.Get("code_challenge") {
		t.Error("code_challenge in authorization URL does not match the exchanged verifier")
	}

	// Tokens are persisted.
	if _, err := os.Stat(filepath.Join(cacheDir, cacheFileName)); err != nil {
		t.Errorf("expected token cache after full flow: %v", err)
	}
	if auth.State() != StateAuthenticated {
		t.Errorf("state = %s, want %s", auth.State(), StateAuthenticated)
	}
}

func TestAuthenticator_StateMismatch(t *testing.T) {
	endpoint := &tokenEndpointRecorder{t: t}

	openBrowser := func(authURL string) error {
		// Forge the callback with a state that was never issued.
		return sendCallback(t, authURL, func(url.Values) url.Values {
			return url.Values{
				"code":  {"stolen-code"},
				"state": {"forged-state"},
			}
		})
	}

	auth, _ := newTestAuthenticator(t, endpoint, openBrowser)

	_, err := auth.Authenticate(context.Background())
	if !errors.Is(err, ErrStateMismatch) {
		t.Fatalf("err = %v, want ErrStateMismatch", err)
	}

	// The forged code must never reach the token endpoint.
	if got := endpoint.calls.Load(); got != 0 {
		t.Errorf("token endpoint called %d times, want 0", got)
	}
	if auth.State() != StateUnauthenticated {
		t.Errorf("state = %s, want %s", auth.State(), StateUnauthenticated)
	}
	if _, err := auth.GetClient(); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("GetClient err = %v, want ErrNotAuthenticated", err)
	}
}

func TestAuthenticator_CallbackError(t *testing.T) {
	endpoint := &tokenEndpointRecorder{t: t}

	openBrowser := func(authURL string) error {
		return sendCallback(t, authURL, func(url.Values) url.Values {
			return url.Values{
				"error": {"access_denied"},
			}
		})
	}

	auth, _ := newTestAuthenticator(t, endpoint, openBrowser)

	_, err := auth.Authenticate(context.Background())

	var callbackErr *CallbackError
	if !errors.As(err, &callbackErr) {
		t.Fatalf("err = %v, want *CallbackError", err)
	}
	if callbackErr.Code != "access_denied" {
		t.Errorf("Code = %q, want %q", callbackErr.Code, "access_denied")
	}

	if got := endpoint.calls.Load(); got != 0 {
		t.Errorf("token endpoint called %d times, want 0", got)
	}
}

func TestAuthenticator_RefreshFailureFallsBackToFullFlow(t *testing.T) {
	endpoint := &tokenEndpointRecorder{t: t, refreshFails: true}

	openBrowser := func(authURL string) error {
		return sendCallback(t, authURL, func(authQuery url.Values) url.Values {
			return url.Values{
				"code":  {"good-code"},
				"state": {authQuery.Get("state")},
			}
		})
	}

	auth, cacheDir := newTestAuthenticator(t, endpoint, openBrowser)

	writeCacheRecord(t, cacheDir, TokenRecord{
		AccessToken:  "stale-access-token",
		TokenType:    "Bearer",
		ExpiresIn:    3600,
		RefreshToken: "revoked-refresh-token",
		Scope:        "user-read-email",
		ExpiresAt:    time.Now().Unix() - 60,
	})

	client, err := auth.Authenticate(context.Background())
	if err != nil {
		t.Fatalf("Authenticate should fall back to full flow, got: %v", err)
	}
	if client == nil {
		t.Fatal("expected a client handle")
	}

	if got := endpoint.refreshCalls.Load(); got != 1 {
		t.Errorf("refresh calls = %d, want 1", got)
	}
	if got := endpoint.codeCalls.Load(); got != 1 {
		t.Errorf("code exchange calls = %d, want 1", got)
	}
}

func TestAuthenticator_ExchangeFailure(t *testing.T) {
	endpoint := &tokenEndpointRecorder{t: t, codeFails: true}

	openBrowser := func(authURL string) error {
		return sendCallback(t, authURL, func(authQuery url.Values) url.Values {
			return url.Values{
				"code":  {"good-code"},
				"state": {authQuery.Get("state")},
			}
		})
	}

	auth, _ := newTestAuthenticator(t, endpoint, openBrowser)

	_, err := auth.Authenticate(context.Background())

	var exchangeErr *ExchangeError
	if !errors.As(err, &exchangeErr) {
		t.Fatalf("err = %v, want *ExchangeError", err)
	}
	if exchangeErr.Grant != "authorization_code" {
		t.Errorf("Grant = %q, want authorization_code", exchangeErr.Grant)
	}
	if auth.State() != StateUnauthenticated {
		t.Errorf("state = %s, want %s", auth.State(), StateUnauthenticated)
	}
}

func TestAuthenticator_CorruptCacheFallsBackToFullFlow(t *testing.T) {
	endpoint := &tokenEndpointRecorder{t: t}

	openBrowser := func(authURL string) error {
		return sendCallback(t, authURL, func(authQuery url.Values) url.Values {
			return url.Values{
				"code":  {"good-code"},
				"state": {authQuery.Get("state")},
			}
		})
	}

	auth, cacheDir := newTestAuthenticator(t, endpoint, openBrowser)

	if err := os.WriteFile(filepath.Join(cacheDir, cacheFileName), []byte("%%%"), 0600); err != nil {
		t.Fatalf("Failed to write corrupt cache: %v", err)
	}

	client, err := auth.Authenticate(context.Background())
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if client == nil {
		t.Fatal("expected a client handle")
	}
	if got := endpoint.codeCalls.Load(); got != 1 {
		t.Errorf("code exchange calls = %d, want 1", got)
	}
}

func TestAuthenticator_GetClientBeforeAuthenticate(t *testing.T) {
	endpoint := &tokenEndpointRecorder{t: t}
	auth, _ := newTestAuthenticator(t, endpoint, noBrowser(t))

	if _, err := auth.GetClient(); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("GetClient err = %v, want ErrNotAuthenticated", err)
	}
	// The pure accessor never triggers network activity.
	if got := endpoint.calls.Load(); got != 0 {
		t.Errorf("token endpoint called %d times, want 0", got)
	}
}

func TestAuthenticator_Invalidate(t *testing.T) {
	endpoint := &tokenEndpointRecorder{t: t}
	auth, cacheDir := newTestAuthenticator(t, endpoint, noBrowser(t))

	writeCacheRecord(t, cacheDir, TokenRecord{
		AccessToken: "cached-access-token",
		TokenType:   "Bearer",
		ExpiresIn:   3600,
		Scope:       "user-read-email",
		ExpiresAt:   time.Now().Unix() + 3600,
	})

	if _, err := auth.Authenticate(context.Background()); err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}

	auth.Invalidate()

	if _, err := auth.GetClient(); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("GetClient err = %v, want ErrNotAuthenticated after Invalidate", err)
	}
}

func TestAuthenticator_RequiresClientID(t *testing.T) {
	if _, err := NewAuthenticator(Config{}); err == nil {
		t.Error("expected error for missing client ID")
	}
}
