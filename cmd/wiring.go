package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ortelius/pdvd-reposcan/config"
	"github.com/ortelius/pdvd-reposcan/database"
	"github.com/ortelius/pdvd-reposcan/graph"
	"github.com/ortelius/pdvd-reposcan/internal/services"
	"github.com/ortelius/pdvd-reposcan/notification"
	"go.uber.org/zap"
)

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// connectStore opens ArangoDB, creating collections and indexes as needed
func connectStore(ctx context.Context, cfg config.Config) (database.DBConnection, *database.Store, error) {
	conn, err := database.InitializeDatabase(ctx, cfg.Arango, cfg.ArangoEndpoint())
	if err != nil {
		return conn, nil, err
	}
	return conn, database.NewStore(conn), nil
}

// newCorrelator selects the graph backend. conn is only used by the arango backend.
func newCorrelator(cfg config.Config, conn *database.DBConnection) (graph.Correlator, error) {
	switch cfg.GraphBackend {
	case config.BackendGremlin:
		client := &http.Client{Timeout: cfg.GraphTimeout}
		return graph.NewGremlinCorrelator(client, graph.GremlinEndpoint(cfg.Gremlin.Host, cfg.Gremlin.Port)), nil
	case config.BackendArango:
		if conn == nil || conn.Database == nil {
			return nil, fmt.Errorf("arango backend selected but no database connection")
		}
		return graph.NewArangoCorrelator(conn.Database), nil
	default:
		return nil, fmt.Errorf("unknown graph backend %q", cfg.GraphBackend)
	}
}

// newScanService wires the pipeline; store may be nil for local scans
func newScanService(cfg config.Config, correlator graph.Correlator, store services.ResultStore, tokens notification.TokenSource, logger *zap.Logger) *services.ScanService {
	opts := services.Options{
		Correlator:    correlator,
		Store:         store,
		Tokens:        tokens,
		Logger:        logger,
		GraphTimeout:  cfg.GraphTimeout,
		NotifyTimeout: cfg.NotifyTimeout,
	}
	if cfg.Notification.Host != "" {
		opts.Deliverer = notification.NewClient(&http.Client{Timeout: cfg.NotifyTimeout}, cfg.Notification.Host, logger)
	}
	return services.NewScanService(opts)
}

func tokenSource(cfg config.Config) notification.TokenSource {
	return notification.NewTokenSource(cfg.Notification.Token, cfg.Notification.TokenFile)
}
