package notification

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
)

// ErrNoToken is returned when no notification credential is configured
var ErrNoToken = errors.New("no notification service token configured")

// TokenSource supplies the bearer token used for delivery.
// Refresh is called after the notification service rejected the current token.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Refresh(ctx context.Context) (string, error)
}

// StaticToken is a fixed credential; refreshing returns the same value
type StaticToken string

// Token implements TokenSource
func (t StaticToken) Token(context.Context) (string, error) {
	if t == "" {
		return "", ErrNoToken
	}
	return string(t), nil
}

// Refresh implements TokenSource
func (t StaticToken) Refresh(ctx context.Context) (string, error) {
	return t.Token(ctx)
}

// FileToken reads the credential from a file, such as a mounted secret that is
// rotated in place. The value is cached until Refresh.
type FileToken struct {
	Path string

	mu    sync.Mutex
	token string
}

// Token implements TokenSource
func (f *FileToken) Token(ctx context.Context) (string, error) {
	f.mu.Lock()
	cached := f.token
	f.mu.Unlock()
	if cached != "" {
		return cached, nil
	}
	return f.Refresh(ctx)
}

// Refresh implements TokenSource
func (f *FileToken) Refresh(context.Context) (string, error) {
	content, err := os.ReadFile(f.Path)
	if err != nil {
		return "", fmt.Errorf("reading token file: %w", err)
	}
	token := strings.TrimSpace(string(content))
	if token == "" {
		return "", ErrNoToken
	}

	f.mu.Lock()
	f.token = token
	f.mu.Unlock()
	return token, nil
}

// NewTokenSource prefers a token file over a fixed token
func NewTokenSource(token, tokenFile string) TokenSource {
	if tokenFile != "" {
		return &FileToken{Path: tokenFile}
	}
	return StaticToken(token)
}
