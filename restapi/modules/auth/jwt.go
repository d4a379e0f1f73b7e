// Package auth validates the bearer tokens sent to the REST API.
package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Authentication failures, worded as returned to the caller
var (
	ErrTokenMissing = errors.New("Authentication failed - token missing")
	ErrTokenExpired = errors.New("Authentication failed - token has expired")
	ErrTokenInvalid = errors.New("Authentication failed - could not decode JWT token")
)

// Verifier checks RS256 tokens against a public key and a set of accepted audiences
type Verifier struct {
	key       *rsa.PublicKey
	audiences []string
}

// NewVerifier parses a PEM public key. A bare base64 key body is accepted too.
func NewVerifier(publicKey string, audiences []string) (*Verifier, error) {
	publicKey = strings.TrimSpace(publicKey)
	if publicKey == "" {
		return nil, errors.New("no JWT public key configured")
	}
	if !strings.HasPrefix(publicKey, "-----BEGIN") {
		publicKey = "-----BEGIN PUBLIC KEY-----\n" + publicKey + "\n-----END PUBLIC KEY-----"
	}

	key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(publicKey))
	if err != nil {
		return nil, fmt.Errorf("parsing JWT public key: %w", err)
	}
	return &Verifier{key: key, audiences: audiences}, nil
}

// Verify decodes the Authorization header value. The token is accepted when it
// validates for any one of the configured audiences.
func (v *Verifier) Verify(header string) (jwt.MapClaims, error) {
	token := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(header), "Bearer "))
	if token == "" {
		return nil, ErrTokenMissing
	}

	audiences := v.audiences
	if len(audiences) == 0 {
		audiences = []string{""}
	}

	expired := false
	for _, aud := range audiences {
		opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()})}
		if aud != "" {
			opts = append(opts, jwt.WithAudience(aud))
		}

		claims := jwt.MapClaims{}
		_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
			return v.key, nil
		}, opts...)
		if err == nil {
			return claims, nil
		}
		if errors.Is(err, jwt.ErrTokenExpired) {
			expired = true
		}
	}

	if expired {
		return nil, ErrTokenExpired
	}
	return nil, ErrTokenInvalid
}
