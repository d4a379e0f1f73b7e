package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/ortelius/pdvd-reposcan/config"
	"github.com/ortelius/pdvd-reposcan/database"
	"github.com/ortelius/pdvd-reposcan/graph"
	"github.com/ortelius/pdvd-reposcan/internal/services"
	"github.com/ortelius/pdvd-reposcan/manifest"
	"github.com/ortelius/pdvd-reposcan/model"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type scanOptions struct {
	RepoURL   string
	Ecosystem string
	Format    string
	Output    string
	Notify    bool
	Store     bool
}

func newScanCommand(root *rootOptions) *cobra.Command {
	opts := &scanOptions{}

	cmd := &cobra.Command{
		Use:   "scan [flags] FILE...",
		Short: "Scan local dependency listings and print the vulnerability report",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			if opts.Format != "table" && opts.Format != "json" {
				return fmt.Errorf("unknown format %q", opts.Format)
			}

			out := cmd.OutOrStdout()
			if opts.Output != "" {
				f, err := os.Create(opts.Output)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}

			ctx, cancel := signalContext()
			defer cancel()
			return runScan(ctx, cfg, opts, args, out)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.RepoURL, "repo", "", "Repository URL the listings belong to")
	flags.StringVar(&opts.Ecosystem, "ecosystem", "npm", "Listing format: "+strings.Join(manifest.Ecosystems(), ", "))
	flags.StringVar(&opts.Format, "format", "table", "Output format: table, json")
	flags.StringVarP(&opts.Output, "output", "o", "", "Write to file instead of stdout")
	flags.BoolVar(&opts.Notify, "notify", false, "Deliver notifications for vulnerable repositories")
	flags.BoolVar(&opts.Store, "store", false, "Store the result in ArangoDB")
	_ = cmd.MarkFlagRequired("repo")
	return cmd
}

func runScan(ctx context.Context, cfg config.Config, opts *scanOptions, paths []string, out io.Writer) error {
	logger := zap.NewNop()
	if opts.Format == "table" && out == os.Stdout {
		logger = database.InitLogger()
	}

	files := make([]model.ManifestFile, 0, len(paths))
	for _, p := range paths {
		content, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		files = append(files, model.ManifestFile{Name: filepath.Base(p), Content: content})
	}

	var conn *database.DBConnection
	var store services.ResultStore
	if cfg.GraphBackend == config.BackendArango || opts.Store {
		c, s, err := connectStore(ctx, cfg)
		if err != nil {
			return err
		}
		conn = &c
		if opts.Store {
			store = s
		}
	}

	correlator, err := newCorrelator(cfg, conn)
	if err != nil {
		return err
	}

	service := newScanService(cfg, correlator, store, tokenSource(cfg), logger)

	result, err := service.Scan(ctx, model.ScanRequest{
		RequestID: uuid.New().String(),
		RepoURL:   opts.RepoURL,
		Ecosystem: opts.Ecosystem,
		Files:     files,
		Notify:    opts.Notify,
	})
	if err != nil {
		var cerr *graph.CorrelationError
		if errors.As(err, &cerr) {
			return fmt.Errorf("graph backend %s: %w", cfg.GraphBackend, err)
		}
		return err
	}

	if opts.Format == "json" {
		return writeJSON(out, result.Reports)
	}
	return writeTable(out, result.Reports, out == os.Stdout)
}
