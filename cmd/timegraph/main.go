// timegraph: temporal RDF graph store
// Serves the TemporalGraph gRPC API and offers offline maintenance commands
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nainya/timegraph/internal/config"
	"github.com/nainya/timegraph/internal/logger"
	"github.com/nainya/timegraph/pkg/coordinator"
	"github.com/nainya/timegraph/pkg/timegraph"
)

var (
	cfg *config.Config
	log *logger.Logger
)

func newRootCmd() *cobra.Command {
	var dbFlag, logLevelFlag string
	var prettyFlag bool

	root := &cobra.Command{
		Use:           "timegraph",
		Short:         "Temporal RDF graph store with snapshot materialization",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if cfg, err = config.New(); err != nil {
				return err
			}
			if cmd.Flags().Changed("db") {
				cfg.DBPath = dbFlag
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevelFlag
			}
			if cmd.Flags().Changed("pretty") {
				cfg.LogPretty = prettyFlag
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger.InitGlobalLogger(logger.Config{
				Level:  cfg.LogLevel,
				Pretty: cfg.LogPretty,
				Output: cmd.ErrOrStderr(),
				File:   cfg.LogFile,
			})
			log = logger.GetGlobalLogger()
			return nil
		},
	}

	root.PersistentFlags().StringVar(&dbFlag, "db", "", "SQLite database path (overrides TIMEGRAPH_DB_PATH)")
	root.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "debug, info, warn or error")
	root.PersistentFlags().BoolVar(&prettyFlag, "pretty", false, "human readable logs")

	root.AddCommand(newServeCmd(), newImportCmd(), newGraphsCmd(), newMaterializeCmd(), newJournalCmd())
	return root
}

// newCoordinator builds the coordinator every command shares
func newCoordinator(opts coordinator.Options) *coordinator.Coordinator {
	opts.DBPath = cfg.DBPath
	opts.DropStale = cfg.DropStale
	opts.Logger = log
	opts.StoreOptions = timegraph.Options{
		Vocabulary: cfg.Vocabulary(),
		Namer:      timegraph.PrefixNamer(cfg.GraphPrefix),
	}
	return coordinator.New(opts)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
