// Package kafka runs the worker that consumes scan requests from Kafka.
package kafka

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/ortelius/pdvd-reposcan/config"
	"github.com/ortelius/pdvd-reposcan/events/modules/scans"
	"github.com/ortelius/pdvd-reposcan/internal/services"
	"github.com/ortelius/pdvd-reposcan/notification"
	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"
	"go.uber.org/zap"
)

// MessageReader is the subset of *kafka.Reader used by Processor
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Processor consumes scan events and runs them, retrying failed scans with backoff
type Processor struct {
	Reader     MessageReader
	Runner     scans.Runner
	Tokens     notification.TokenSource
	Logger     *zap.Logger
	MaxRetries uint64
	// NewBackOff overrides the retry schedule, mainly for tests
	NewBackOff func() backoff.BackOff
}

// NewDialer builds a dialer, with SASL/PLAIN over TLS when credentials are configured
func NewDialer(cfg config.KafkaConfig) *kafka.Dialer {
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	if cfg.APIKey != "" && cfg.APISecret != "" {
		dialer.SASLMechanism = plain.Mechanism{
			Username: cfg.APIKey,
			Password: cfg.APISecret,
		}
		dialer.TLS = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return dialer
}

// NewTransport is the writer side equivalent of NewDialer
func NewTransport(cfg config.KafkaConfig) *kafka.Transport {
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil
	}
	return &kafka.Transport{
		SASL: plain.Mechanism{
			Username: cfg.APIKey,
			Password: cfg.APISecret,
		},
		TLS: &tls.Config{MinVersion: tls.VersionTLS12},
	}
}

// RunScanProcessor checks the broker is reachable and starts consuming in the background
func RunScanProcessor(ctx context.Context, cfg config.KafkaConfig, runner scans.Runner, tokens notification.TokenSource, logger *zap.Logger) error {
	if len(cfg.Brokers) == 0 {
		return errors.New("no kafka brokers configured")
	}
	dialer := NewDialer(cfg)

	var err error
	for i := 1; i <= 3; i++ {
		logger.Info("Kafka connection attempt", zap.Int("attempt", i), zap.String("broker", cfg.Brokers[0]))
		var conn *kafka.Conn
		conn, err = dialer.DialContext(ctx, "tcp", cfg.Brokers[0])
		if err == nil {
			conn.Close()
			break
		}
		if i < 3 {
			time.Sleep(2 * time.Second)
		}
	}
	if err != nil {
		return fmt.Errorf("connecting to kafka: %w", err)
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MaxBytes: 10e6,
		Dialer:   dialer,
	})

	p := &Processor{
		Reader:     reader,
		Runner:     runner,
		Tokens:     tokens,
		Logger:     logger,
		MaxRetries: 5,
	}
	go p.Run(ctx)
	return nil
}

// Run consumes until ctx is done
func (p *Processor) Run(ctx context.Context) {
	defer p.Reader.Close()
	p.Logger.Info("Kafka Event Processor started. Listening for scan requests...")

	for {
		msg, err := p.Reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.Logger.Warn("Failed to fetch message", zap.Error(err))
			continue
		}

		if err := p.Handle(ctx, msg); err != nil {
			p.Logger.Error("Dropping scan request",
				zap.Int64("offset", msg.Offset),
				zap.String("key", string(msg.Key)),
				zap.Error(err))
		}
		if err := p.Reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			p.Logger.Warn("Failed to commit message", zap.Int64("offset", msg.Offset), zap.Error(err))
		}
	}
}

// Handle runs one message, retrying transient failures. Malformed events and
// requests the pipeline rejects before correlation are not retried; a rejected notification token is refreshed before the next attempt.
func (p *Processor) Handle(ctx context.Context, msg kafka.Message) error {
	bo := p.backOff()

	return backoff.RetryNotify(func() error {
		err := scans.HandleScanRequested(ctx, msg.Value, p.Runner, p.Logger)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, scans.ErrInvalidEvent), errors.Is(err, services.ErrInvalidRequest):
			return backoff.Permanent(err)
		case errors.Is(err, notification.ErrDeliveryAuthFailed) && p.Tokens != nil:
			if _, rerr := p.Tokens.Refresh(ctx); rerr != nil {
				p.Logger.Warn("Failed to refresh notification token", zap.Error(rerr))
			}
		}
		return err
	}, backoff.WithContext(bo, ctx), func(err error, next time.Duration) {
		p.Logger.Warn("Retrying scan request", zap.Error(err), zap.Duration("next", next))
	})
}

func (p *Processor) backOff() backoff.BackOff {
	var bo backoff.BackOff
	if p.NewBackOff != nil {
		bo = p.NewBackOff()
	} else {
		exp := backoff.NewExponentialBackOff()
		exp.InitialInterval = 2 * time.Second
		exp.MaxInterval = time.Minute
		exp.MaxElapsedTime = 10 * time.Minute
		bo = exp
	}
	if p.MaxRetries > 0 {
		bo = backoff.WithMaxRetries(bo, p.MaxRetries)
	}
	return bo
}
