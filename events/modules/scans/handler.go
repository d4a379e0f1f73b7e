package scans

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ortelius/pdvd-reposcan/model"
	"go.uber.org/zap"
)

// ErrInvalidEvent marks messages that can never succeed and should not be retried
var ErrInvalidEvent = errors.New("invalid scan event")

// Runner executes a decoded scan request
type Runner interface {
	Scan(ctx context.Context, req model.ScanRequest) (model.ScanResult, error)
}

// Decode unmarshals and validates a scan event
func Decode(msg []byte) (ScanRequestedEvent, error) {
	var event ScanRequestedEvent
	if err := json.Unmarshal(msg, &event); err != nil {
		return event, fmt.Errorf("%w: failed to unmarshal ScanRequestedEvent: %w", ErrInvalidEvent, err)
	}

	if event.EventType != "" && event.EventType != EventTypeScanRequested {
		return event, fmt.Errorf("%w: unexpected event type %q", ErrInvalidEvent, event.EventType)
	}
	if event.Request.RepoURL == "" {
		return event, fmt.Errorf("%w: missing repo_url", ErrInvalidEvent)
	}
	if len(event.Request.Files) == 0 && event.Request.Dependencies == nil {
		return event, fmt.Errorf("%w: no manifest files or dependencies", ErrInvalidEvent)
	}
	if event.Request.RequestID == "" {
		event.Request.RequestID = event.EventID
	}
	return event, nil
}

// HandleScanRequested processes one scan request event from Kafka
func HandleScanRequested(ctx context.Context, msg []byte, runner Runner, logger *zap.Logger) error {
	event, err := Decode(msg)
	if err != nil {
		return err
	}

	logger.Info("Processing scan request",
		zap.String("event_id", event.EventID),
		zap.String("repo_url", event.Request.RepoURL),
		zap.Int("attempt", event.Attempt))

	result, err := runner.Scan(ctx, event.Request)
	if err != nil {
		return fmt.Errorf("scan of %s failed: %w", event.Request.RepoURL, err)
	}

	logger.Info("Successfully processed scan request",
		zap.String("event_id", event.EventID),
		zap.Int("reports", len(result.Reports)),
		zap.Int("notified", result.Notified))
	return nil
}
