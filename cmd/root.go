// Package cmd implements the reposcan command line: the API server, the Kafka worker and local scans.
package cmd

import (
	"github.com/ortelius/pdvd-reposcan/config"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags.
var Version = "dev"

type rootOptions struct {
	ConfigPath string
	Backend    string
}

// load reads the configuration and applies the flag overrides
func (o *rootOptions) load() (config.Config, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return cfg, err
	}
	if o.Backend != "" {
		cfg.GraphBackend = o.Backend
		if err := cfg.Validate(); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

// NewRootCommand creates the root cobra command and its subcommands.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:     "reposcan",
		Short:   "Correlate repository dependencies with known CVEs and notify on findings",
		Version: Version,
		Long: `reposcan parses the dependency listings of a repository, correlates them with
the vulnerability graph and produces one report per repository.

It runs as an API server, as a Kafka worker, or as a one-shot local scan:
  reposcan serve
  reposcan worker
  reposcan scan --repo https://github.com/org/app --ecosystem npm npm-list.json`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.ConfigPath, "config", "c", "", "YAML configuration file; environment variables override it")
	flags.StringVar(&opts.Backend, "backend", "", "Graph backend: gremlin or arango")

	cmd.AddCommand(
		newServeCommand(opts),
		newWorkerCommand(opts),
		newScanCommand(opts),
	)
	return cmd
}

// Execute runs the root command
func Execute() error {
	return NewRootCommand().Execute()
}
