package cmd

import (
	"time"

	"github.com/ortelius/pdvd-reposcan/database"
	"github.com/ortelius/pdvd-reposcan/events/modules/scans"
	"github.com/ortelius/pdvd-reposcan/internal/api"
	"github.com/ortelius/pdvd-reposcan/internal/kafka"
	scanhandlers "github.com/ortelius/pdvd-reposcan/restapi/modules/scans"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type serveOptions struct {
	Queue  bool
	Worker bool
}

func newServeCommand(root *rootOptions) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the REST and GraphQL API",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runServe(root, opts)
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&opts.Queue, "queue", true, "Queue scans on Kafka; when false every scan runs inline")
	flags.BoolVar(&opts.Worker, "worker", false, "Also consume the scan topic in this process")
	return cmd
}

func runServe(root *rootOptions, opts *serveOptions) error {
	logger := database.InitLogger()
	defer logger.Sync()

	cfg, err := root.load()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	conn, store, err := connectStore(ctx, cfg)
	if err != nil {
		return err
	}
	correlator, err := newCorrelator(cfg, &conn)
	if err != nil {
		return err
	}
	tokens := tokenSource(cfg)
	service := newScanService(cfg, correlator, store, tokens, logger)

	handlers := &scanhandlers.Handlers{
		Registry: store,
		Results:  store,
		Scanner:  service,
		Logger:   logger,
	}
	if opts.Queue {
		producer := scans.NewScanProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, kafka.NewTransport(cfg.Kafka))
		defer producer.Close()
		handlers.Queue = producer
	}
	if opts.Worker {
		if err := kafka.RunScanProcessor(ctx, cfg.Kafka, service, tokens, logger); err != nil {
			return err
		}
	}

	app, err := api.NewFiberApp(cfg, handlers, store, logger)
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		logger.Info("Shutting down API server")
		if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
			logger.Warn("Shutdown did not complete", zap.Error(err))
		}
	}()

	logger.Info("Starting server", zap.String("port", cfg.Port), zap.String("graph_backend", cfg.GraphBackend))
	return app.Listen(":" + cfg.Port)
}
