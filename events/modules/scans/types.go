// Package scans defines the Kafka contract for repository scan requests.
package scans

import (
	"time"

	"github.com/ortelius/pdvd-reposcan/model"
)

// EventTypeScanRequested is the event_type of ScanRequestedEvent
const EventTypeScanRequested = "repository.scan.requested"

// SchemaVersion of the events written by ScanProducer
const SchemaVersion = "v1"

// ScanRequestedEvent asks a worker to scan one repository.
type ScanRequestedEvent struct {
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EventTime     time.Time `json:"event_time"`
	SchemaVersion string    `json:"schema_version"`

	Request model.ScanRequest `json:"request"`

	// Attempt is incremented when a failed scan is re-queued
	Attempt int `json:"attempt,omitempty"`
}
