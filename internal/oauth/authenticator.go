package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"spotify-mcp/internal/spotify"
)

// Spotify account service endpoints.
const (
	DefaultAuthorizationEndpoint = "https://accounts.spotify.com/authorize"
	DefaultTokenEndpoint         = "https://accounts.spotify.com/api/token"
)

// codeChallengeMethod is always S256; the plain method is not supported.
const codeChallengeMethod = "S256"

// defaultHTTPTimeout is the timeout for token endpoint requests.
const defaultHTTPTimeout = 30 * time.Second

// AuthState represents the coordinator's position in the authentication
// flow.
type AuthState int

const (
	// StateUnauthenticated means no session exists.
	StateUnauthenticated AuthState = iota

	// StateCacheValid means a fresh cached token was found.
	StateCacheValid

	// StateCacheRefreshing means a stale cached token is being refreshed.
	StateCacheRefreshing

	// StateCacheRefreshFailed means the refresh failed and the flow is
	// falling through to interactive authentication.
	StateCacheRefreshFailed

	// StateFullFlowPending means the interactive flow is waiting for the
	// browser redirect.
	StateFullFlowPending

	// StateFullFlowExchanging means the authorization code is being
	// exchanged for tokens.
	StateFullFlowExchanging

	// StateAuthenticated means a valid client handle exists.
	StateAuthenticated
)

// String returns the string representation of the auth state.
func (s AuthState) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateCacheValid:
		return "cache_valid"
	case StateCacheRefreshing:
		return "cache_refreshing"
	case StateCacheRefreshFailed:
		return "cache_refresh_failed"
	case StateFullFlowPending:
		return "full_flow_pending"
	case StateFullFlowExchanging:
		return "full_flow_exchanging"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Config configures the Authenticator.
type Config struct {
	// ClientID is the Spotify application client ID.
	ClientID string

	// Scopes is the set of Spotify API scopes to request.
	Scopes []string

	// CallbackPort is the port for the loopback callback listener.
	// Defaults to 8888. It must match the redirect URI registered with
	// Spotify.
	CallbackPort int

	// CacheDir is the directory holding the token cache.
	// Defaults to ~/.spotify-mcp.
	CacheDir string

	// CallbackTimeout bounds the wait for the browser redirect.
	// Defaults to 5 minutes.
	CallbackTimeout time.Duration

	// AuthorizationEndpoint and TokenEndpoint override the Spotify account
	// service URLs. Used by tests.
	AuthorizationEndpoint string
	TokenEndpoint         string

	// HTTPClient is an optional custom HTTP client for token requests.
	HTTPClient *http.Client

	// OpenBrowser overrides how the authorization URL is presented to the
	// user. Defaults to opening the system browser; a failure there is
	// non-fatal because the URL is also logged for manual use.
	OpenBrowser func(url string) error
}

// Authenticator orchestrates the end-to-end authentication flow: check the
// cache, refresh when expiring, otherwise run the full interactive
// authorization-code+PKCE flow. It owns the PKCE generator, the token cache
// and the callback listener, and it is the only component that hands out
// client handles.
//
// Authenticate is synchronous and blocking end-to-end; concurrent calls are
// serialized so at most one authorization attempt (and one bound callback
// port) is active at a time.
type Authenticator struct {
	mu         sync.Mutex
	cfg        Config
	cache      *TokenCache
	httpClient *http.Client
	state      AuthState
	client     *spotify.Client
	record     *TokenRecord
}

// NewAuthenticator creates an authenticator for the given configuration.
func NewAuthenticator(cfg Config) (*Authenticator, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("client ID is required")
	}

	if cfg.CallbackPort == 0 {
		cfg.CallbackPort = DefaultCallbackPort
	}
	if cfg.CallbackTimeout == 0 {
		cfg.CallbackTimeout = DefaultCallbackTimeout
	}
	if cfg.AuthorizationEndpoint == "" {
		cfg.AuthorizationEndpoint = DefaultAuthorizationEndpoint
	}
	if cfg.TokenEndpoint == "" {
		cfg.TokenEndpoint = DefaultTokenEndpoint
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if cfg.OpenBrowser == nil {
		cfg.OpenBrowser = OpenBrowser
	}

	cache, err := NewTokenCache(cfg.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create token cache: %w", err)
	}

	return &Authenticator{
		cfg:        cfg,
		cache:      cache,
		httpClient: cfg.HTTPClient,
		state:      StateUnauthenticated,
	}, nil
}

// Authenticate returns an authenticated Spotify client handle.
//
// The fast path returns the in-memory handle from a previous call. Otherwise
// the cached token set is used when fresh, refreshed when stale, and only
// when neither works does the full interactive flow run: generate a PKCE
// pair and state nonce, open the authorization URL in the browser, wait for
// the loopback redirect, validate the state, and exchange the code.
//
// Only a callback error, a state mismatch or a failed code exchange
// propagate as errors; cache corruption and refresh failures fall through to
// the interactive flow, and persistence failures are logged while the
// session continues on the in-memory token.
func (a *Authenticator) Authenticate(ctx context.Context) (*spotify.Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Fast path for repeated calls within one process lifetime.
	if a.state == StateAuthenticated && a.client != nil {
		return a.client, nil
	}

	if record := a.cache.Load(); record != nil {
		if record.IsFresh(time.Now()) {
			slog.Debug("Using cached access token",
				"cache", a.cache.Path(),
			)
			a.setAuthenticated(record, StateCacheValid)
			return a.client, nil
		}

		a.state = StateCacheRefreshing
		slog.Info("Access token expired, refreshing")

		refreshed, err := a.refresh(ctx, record.RefreshToken)
		if err == nil {
			a.setAuthenticated(a.persist(refreshed), StateCacheRefreshing)
			return a.client, nil
		}

		// A failed refresh (network error, revoked token, invalid grant)
		// is not terminal: the user can still re-authenticate interactively.
		a.state = StateCacheRefreshFailed
		slog.Warn("Token refresh failed, starting interactive authentication",
			"error", err.Error(),
		)
	}

	record, err := a.runInteractiveFlow(ctx)
	if err != nil {
		a.state = StateUnauthenticated
		a.client = nil
		return nil, err
	}

	a.setAuthenticated(record, StateFullFlowExchanging)
	return a.client, nil
}

// GetClient is a pure accessor: it returns the current handle when
// authenticated and ErrNotAuthenticated otherwise. It never triggers
// network activity.
func (a *Authenticator) GetClient() (*spotify.Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != StateAuthenticated || a.client == nil {
		return nil, ErrNotAuthenticated
	}
	return a.client, nil
}

// State returns the coordinator's current state.
func (a *Authenticator) State() AuthState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Token returns the current token set as an oauth2.Token, or nil when no
// session exists.
func (a *Authenticator) Token() *oauth2.Token {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.record == nil {
		return nil
	}
	return a.record.Token()
}

// Invalidate drops the in-memory session so the next Authenticate call goes
// back to the cache. The cache file is left in place.
func (a *Authenticator) Invalidate() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.state = StateUnauthenticated
	a.client = nil
	a.record = nil
}

// setAuthenticated installs the client handle for a record. The via state is
// recorded in logs only; the observable terminal state is Authenticated.
func (a *Authenticator) setAuthenticated(record *TokenRecord, via AuthState) {
	a.record = record
	a.client = spotify.NewClient(spotify.ClientOpts{
		AccessToken: record.AccessToken,
		HTTPClient:  a.httpClient,
	})
	a.state = StateAuthenticated

	slog.Debug("Authentication state updated",
		"via", via.String(),
		"state", a.state.String(),
	)
}

// persist saves a token response, logging (not raising) persistence
// failures: the in-memory session continues on the fresh token even when the
// cache write fails.
func (a *Authenticator) persist(resp *TokenResponse) *TokenRecord {
	record, err := a.cache.Save(resp)
	if err != nil {
		slog.Warn("Failed to persist token cache, continuing with in-memory token",
			"cache", a.cache.Path(),
			"error", err.Error(),
		)
	}
	return record
}

// runInteractiveFlow runs the full authorization-code+PKCE flow.
// Caller must hold a.mu.
func (a *Authenticator) runInteractiveFlow(ctx context.Context) (*TokenRecord, error) {
	a.state = StateFullFlowPending

	pkce, err := GeneratePKCE()
	if err != nil {
		return nil, err
	}

	state, err := GenerateState()
	if err != nil {
		return nil, err
	}

	listener := NewCallbackServer(a.cfg.CallbackPort)
	redirectURI, err := listener.Start(ctx)
	if err != nil {
		return nil, err
	}
	defer listener.Stop()

	authURL := a.buildAuthorizationURL(redirectURI, state, pkce)

	slog.Info("Opening browser for Spotify authentication",
		"url", authURL,
	)
	if err := a.cfg.OpenBrowser(authURL); err != nil {
		slog.Warn("Could not open browser, visit the authorization URL manually",
			"url", authURL,
			"error", err.Error(),
		)
	}

	waitCtx, cancel := context.WithTimeout(ctx, a.cfg.CallbackTimeout)
	defer cancel()

	result, err := listener.WaitForCallback(waitCtx)
	if err != nil {
		return nil, fmt.Errorf("callback failed: %w", err)
	}

	if result.IsError() {
		return nil, &CallbackError{
			Code:        result.Error,
			Description: result.ErrorDescription,
		}
	}

	// Critical security check: abort before any token exchange when the
	// callback's state does not match the nonce generated for this attempt.
	if result.State != state {
		slog.Warn("OAuth state mismatch detected - possible CSRF attack",
			"expected_state_len", len(state),
			"received_state_len", len(result.State),
		)
		return nil, ErrStateMismatch
	}

	a.state = StateFullFlowExchanging

	resp, err := a.exchangeCode(ctx, result.Code, pkce.Verifier, redirectURI)
	if err != nil {
		return nil, err
	}

	slog.Info("Spotify authentication successful")

	return a.persist(resp), nil
}

// buildAuthorizationURL constructs the authorization URL for one attempt.
func (a *Authenticator) buildAuthorizationURL(redirectURI, state string, pkce *PKCEPair) string {
	params := url.Values{
		"client_id":             {a.cfg.ClientID},
		"response_type":         {"code"},
		"redirect_uri":          {redirectURI},
		"code_challenge_method": {codeChallengeMethod},
		"code_challenge":        {pkce.Challenge},
		"state":                 {state},
		"scope":                 {strings.Join(a.cfg.Scopes, " ")},
	}

	return a.cfg.AuthorizationEndpoint + "?" + params.Encode()
}

// exchangeCode exchanges an authorization code plus the PKCE verifier for a
// token set.
func (a *Authenticator) exchangeCode(ctx context.Context, code, verifier, redirectURI string) (*TokenResponse, error) {
	return a.requestToken(ctx, "authorization_code", url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {redirectURI},
		"client_id":     {a.cfg.ClientID},
		"code_verifier": {verifier},
	})
}

// refresh exchanges a refresh token for a new token set.
func (a *Authenticator) refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	return a.requestToken(ctx, "refresh_token", url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"client_id":     {a.cfg.ClientID},
	})
}

// requestToken posts a grant to the token endpoint and decodes the response.
func (a *Authenticator) requestToken(ctx context.Context, grant string, form url.Values) (*TokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.TokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &ExchangeError{Grant: grant, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, &ExchangeError{Grant: grant, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ExchangeError{Grant: grant, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &ExchangeError{
			Grant:      grant,
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}

	var tokenResp TokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, &ExchangeError{Grant: grant, Err: err}
	}

	return &tokenResp, nil
}
