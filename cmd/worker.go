package cmd

import (
	"github.com/ortelius/pdvd-reposcan/database"
	"github.com/ortelius/pdvd-reposcan/internal/kafka"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newWorkerCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Consume scan requests from Kafka",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runWorker(root)
		},
	}
}

func runWorker(root *rootOptions) error {
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

	if err := kafka.RunScanProcessor(ctx, cfg.Kafka, service, tokens, logger); err != nil {
		return err
	}

	logger.Info("Worker running", zap.String("topic", cfg.Kafka.Topic), zap.String("group", cfg.Kafka.GroupID))
	<-ctx.Done()
	logger.Info("Worker stopped")
	return nil
}
