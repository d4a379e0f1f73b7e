package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ortelius/pdvd-reposcan/model"
	"go.uber.org/zap"
)

const maxErrorBodySize = 64 * 1024

var (
	// ErrDeliveryAuthFailed is returned when the notification service rejects the token.
	// Callers are expected to refresh their credential and retry.
	ErrDeliveryAuthFailed = errors.New("notification service rejected credentials")
	// ErrDeliveryFailed is matched by every DeliveryError
	ErrDeliveryFailed = errors.New("notification delivery failed")
)

// DeliveryError carries the raw transport status of a rejected notification
type DeliveryError struct {
	StatusCode int
	Body       string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("notification delivery failed: HTTP %d: %s", e.StatusCode, e.Body)
}

// Is makes errors.Is(err, ErrDeliveryFailed) hold for any DeliveryError
func (e *DeliveryError) Is(target error) bool {
	return target == ErrDeliveryFailed
}

// Outcome is the result of an accepted delivery
type Outcome string

// OutcomeAccepted means the notification service queued the notification
const OutcomeAccepted Outcome = "accepted"

// HTTPDoer is the subset of *http.Client used by Client
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Deliverer sends one payload
type Deliverer interface {
	Deliver(ctx context.Context, payload model.NotificationPayload, token string) (Outcome, error)
}

// Client posts payloads to <host>/api/notify
type Client struct {
	httpClient HTTPDoer
	endpoint   string
	logger     *zap.Logger
}

// NewClient creates a notification client for the service at host
func NewClient(httpClient HTTPDoer, host string, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		httpClient: httpClient,
		endpoint:   strings.TrimRight(strings.TrimSpace(host), "/") + "/api/notify",
		logger:     logger,
	}
}

// Deliver posts the payload's JSON-API envelope with a bearer token
func (c *Client) Deliver(ctx context.Context, payload model.NotificationPayload, token string) (Outcome, error) {
	body, err := json.Marshal(payload.Envelope())
	if err != nil {
		return "", fmt.Errorf("encoding notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("notification request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusAccepted:
		_, _ = io.Copy(io.Discard, resp.Body)
		c.logger.Info("notification accepted",
			zap.String("repo_url", payload.RepoURL),
			zap.String("notification_id", payload.ID),
			zap.Int("cve_count", payload.CVECount))
		return OutcomeAccepted, nil
	case http.StatusUnauthorized:
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", ErrDeliveryAuthFailed
	default:
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return "", &DeliveryError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
}

var _ Deliverer = (*Client)(nil)
