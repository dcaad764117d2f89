package oauth

import (
	"errors"
	"fmt"
)

// ErrNotAuthenticated is returned by GetClient when no valid session exists.
// It never triggers network activity; call Authenticate to establish one.
var ErrNotAuthenticated = errors.New("not authenticated: call Authenticate first")

// ErrStateMismatch signals that the callback's state parameter did not match
// the nonce generated for this attempt. This is a possible CSRF / request
// forgery and the flow must abort before any token exchange.
var ErrStateMismatch = errors.New("state mismatch - possible CSRF attack")

// CallbackError is a terminal authentication failure delivered via the
// redirect: the authorization server denied the request or the user
// cancelled.
type CallbackError struct {
	Code        string
	Description string
}

// Error implements the error interface.
func (e *CallbackError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("authorization failed: %s - %s", e.Code, e.Description)
	}
	return fmt.Sprintf("authorization failed: %s", e.Code)
}

// ExchangeError is a terminal failure of a token endpoint request, either
// the authorization-code exchange or a refresh.
type ExchangeError struct {
	Grant      string // "authorization_code" or "refresh_token"
	StatusCode int
	Body       string
	Err        error
}

// Error implements the error interface.
func (e *ExchangeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s grant failed: %v", e.Grant, e.Err)
	}
	return fmt.Sprintf("%s grant failed with status %d: %s", e.Grant, e.StatusCode, e.Body)
}

// Unwrap returns the underlying transport error, if any.
func (e *ExchangeError) Unwrap() error {
	return e.Err
}
