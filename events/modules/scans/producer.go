package scans

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/ortelius/pdvd-reposcan/model"
	"github.com/segmentio/kafka-go"
)

// MessageWriter is the subset of *kafka.Writer used by ScanProducer
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ScanProducer publishes scan requests to Kafka
type ScanProducer struct {
	Writer MessageWriter
}

// NewScanProducer initializes a Kafka writer for scan requests.
// Messages are keyed by repository so scans of one repository stay ordered.
func NewScanProducer(brokers []string, topic string, transport *kafka.Transport) *ScanProducer {
	w := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.Hash{},
	}
	if transport != nil {
		w.Transport = transport
	}
	return &ScanProducer{Writer: w}
}

// NewEvent wraps req in a fresh event, assigning a request id when it has none
func NewEvent(req model.ScanRequest) ScanRequestedEvent {
	event := ScanRequestedEvent{
		EventType:     EventTypeScanRequested,
		EventID:       uuid.New().String(),
		EventTime:     time.Now().UTC(),
		SchemaVersion: SchemaVersion,
		Request:       req,
	}
	if event.Request.RequestID == "" {
		event.Request.RequestID = event.EventID
	}
	return event
}

// Publish writes the event to the topic
func (p *ScanProducer) Publish(ctx context.Context, event ScanRequestedEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.Writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Request.RepoURL),
		Value: payload,
	})
}

// PublishScanRequested queues req and returns the request id it was queued under
func (p *ScanProducer) PublishScanRequested(ctx context.Context, req model.ScanRequest) (string, error) {
	event := NewEvent(req)
	if err := p.Publish(ctx, event); err != nil {
		return "", err
	}
	return event.Request.RequestID, nil
}

// Close cleans up the Kafka writer
func (p *ScanProducer) Close() error {
	return p.Writer.Close()
}
