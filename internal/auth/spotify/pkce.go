package spotify

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// PKCECodes carries the verifier/challenge pair for one authorization attempt
// together with the random state parameter used for CSRF protection. The state
// is generated independently of the verifier; it plays no role in the PKCE
// proof itself.
type PKCECodes struct {
	Verifier  string
	Challenge string
	State     string
}

// GeneratePKCECodes generates a fresh PKCE verifier, its S256 challenge, and a
// random state parameter following RFC 7636. Only the client holding the
// verifier can later exchange the authorization code.
func GeneratePKCECodes() (*PKCECodes, error) {
	verifier, err := generateCodeVerifier()
	if err != nil {
		return nil, fmt.Errorf("failed to generate code verifier: %w", err)
	}

	state, err := generateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state: %w", err)
	}

	return &PKCECodes{
		Verifier:  verifier,
		Challenge: generateCodeChallenge(verifier),
		State:     state,
	}, nil
}

// generateCodeVerifier creates a cryptographically random verifier. 64 random
// bytes encode to 86 URL-safe characters, inside the 43-128 range RFC 7636
// mandates.
func generateCodeVerifier() (string, error) {
	bytes := make([]byte, 64)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}

// generateCodeChallenge hashes the verifier with SHA-256 and encodes the
// digest as unpadded URL-safe base64 (the S256 challenge method).
func generateCodeChallenge(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}

// generateState creates the random CSRF token echoed back on the callback.
func generateState() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}
