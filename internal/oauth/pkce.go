package oauth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
)

const (
	// verifierBytes is the number of random bytes for the PKCE code verifier.
	// 32 bytes provides 256 bits of entropy and encodes to 43 base64url
	// characters, the minimum length RFC 7636 allows.
	verifierBytes = 32

	// stateBytes is the number of random bytes for the OAuth state parameter.
	stateBytes = 16
)

// PKCEPair holds the verifier/challenge pair for one authorization attempt.
// The verifier stays in memory for the duration of a single flow and is
// consumed by the token exchange; the challenge is what goes into the
// authorization request.
type PKCEPair struct {
	// Verifier is the cryptographically random secret. It is never sent to
	// the browser.
	Verifier string

	// Challenge is the S256 hash of the verifier, base64url-encoded without
	// padding.
	Challenge string
}

// GeneratePKCE generates a new PKCE code verifier and its S256 challenge.
func GeneratePKCE() (*PKCEPair, error) {
	verifier, err := GenerateVerifier()
	if err != nil {
		return nil, err
	}

	challenge, err := DeriveChallenge(verifier)
	if err != nil {
		return nil, err
	}

	return &PKCEPair{
		Verifier:  verifier,
		Challenge: challenge,
	}, nil
}

// GenerateVerifier returns 32 cryptographically random bytes, base64url
// encoded without padding. Failure of the random source is fatal for the
// authentication attempt.
func GenerateVerifier() (string, error) {
	buf := make([]byte, verifierBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random bytes for PKCE verifier: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// DeriveChallenge returns SHA-256(verifier), base64url encoded without
// padding. It is a pure function of the verifier.
func DeriveChallenge(verifier string) (string, error) {
	if verifier == "" {
		return "", errors.New("empty code verifier")
	}

	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:]), nil
}

// GenerateState generates the random state nonce for one authorization
// attempt. The nonce is 16 random bytes, hex-encoded, and is used solely for
// CSRF validation against the callback's state parameter.
func GenerateState() (string, error) {
	buf := make([]byte, stateBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}

	return hex.EncodeToString(buf), nil
}
