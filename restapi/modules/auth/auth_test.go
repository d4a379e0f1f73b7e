package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func keyPair(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	return key, string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
}

func sign(t *testing.T, key *rsa.PrivateKey, aud string, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"aud":   aud,
		"email": "dev@example.com",
		"exp":   exp.Unix(),
	})
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func TestVerifierAudiences(t *testing.T) {
	key, pub := keyPair(t)
	v, err := NewVerifier(pub, []string{"fabric8-online-platform", "openshiftio-public"})
	require.NoError(t, err)

	claims, err := v.Verify("Bearer " + sign(t, key, "openshiftio-public", time.Now().Add(time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, "dev@example.com", claims["email"])

	_, err = v.Verify("Bearer " + sign(t, key, "someone-else", time.Now().Add(time.Hour)))
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, err = v.Verify(sign(t, key, "fabric8-online-platform", time.Now().Add(-time.Hour)))
	assert.ErrorIs(t, err, ErrTokenExpired)

	_, err = v.Verify("")
	assert.ErrorIs(t, err, ErrTokenMissing)

	_, err = v.Verify("Bearer not-a-jwt")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifierRejectsOtherKeys(t *testing.T) {
	_, pub := keyPair(t)
	other, _ := keyPair(t)
	v, err := NewVerifier(pub, nil)
	require.NoError(t, err)

	_, err = v.Verify(sign(t, other, "any", time.Now().Add(time.Hour)))
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestNewVerifierAcceptsBareKey(t *testing.T) {
	key, pub := keyPair(t)
	block, _ := pem.Decode([]byte(pub))
	bare := base64.StdEncoding.EncodeToString(block.Bytes)

	v, err := NewVerifier(bare, nil)
	require.NoError(t, err)
	_, err = v.Verify(sign(t, key, "x", time.Now().Add(time.Hour)))
	assert.NoError(t, err)

	_, err = NewVerifier("", nil)
	assert.Error(t, err)
	_, err = NewVerifier("garbage", nil)
	assert.Error(t, err)
}

func TestRequireAuth(t *testing.T) {
	key, pub := keyPair(t)
	v, err := NewVerifier(pub, []string{"aud"})
	require.NoError(t, err)

	tests := []struct {
		name     string
		disabled bool
		verifier *Verifier
		header   string
		status   int
		body     string
	}{
		{"valid", false, v, "Bearer " + sign(t, key, "aud", time.Now().Add(time.Hour)), 200, "ok"},
		{"missing", false, v, "", 401, "token missing"},
		{"expired", false, v, "Bearer " + sign(t, key, "aud", time.Now().Add(-time.Hour)), 401, "token has expired"},
		{"garbage", false, v, "Bearer abc", 401, "could not decode JWT token"},
		{"disabled", true, nil, "", 200, "ok"},
		{"no verifier", false, nil, "Bearer abc", 401, "could not decode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/", RequireAuth(tt.disabled, tt.verifier, zap.NewNop()), func(c *fiber.Ctx) error {
				return c.SendString("ok")
			})

			req := httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)

			body, _ := io.ReadAll(resp.Body)
			assert.True(t, strings.Contains(string(body), tt.body), string(body))
		})
	}
}
