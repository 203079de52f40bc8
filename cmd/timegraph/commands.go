package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/nainya/timegraph/pkg/changefeed"
	"github.com/nainya/timegraph/pkg/coordinator"
	"github.com/nainya/timegraph/pkg/journal"
	"github.com/nainya/timegraph/pkg/snapshot"
	"github.com/nainya/timegraph/pkg/temporal"
)

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func newImportCmd() *cobra.Command {
	var spanText string

	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Load N-Triples or N-Quads into the persistent store (stdin when no file)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)

			var span *temporal.Span
			if spanText != "" {
				sp, err := temporal.ParseSpan(spanText)
				if err != nil {
					return err
				}
				span = &sp
			}

			var r io.Reader = os.Stdin
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}

			coord := newCoordinator(coordinator.Options{})
			defer coord.Close()
			store, err := coord.Persistent(ctx)
			if err != nil {
				return err
			}
			n, err := store.Import(ctx, span, r)
			if err != nil {
				return fmt.Errorf("import stopped after %d statements: %w", n, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d statements\n", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&spanText, "span", "", "validity span for every statement, e.g. 2005/P3Y")
	return cmd
}

func newGraphsCmd() *cobra.Command {
	var at, over string

	cmd := &cobra.Command{
		Use:   "graphs",
		Short: "List the named graphs valid at an instant or overlapping a span",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			coord := newCoordinator(coordinator.Options{})
			defer coord.Close()
			store, err := coord.Persistent(ctx)
			if err != nil {
				return err
			}

			var graphs []string
			if over != "" {
				sp, err := temporal.ParseSpan(over)
				if err != nil {
					return err
				}
				graphs, err = store.GraphsOver(sp)
				if err != nil {
					return err
				}
			} else {
				i := temporal.Now()
				if at != "" {
					if i, err = temporal.ParseInstant(at); err != nil {
						return err
					}
				}
				if graphs, err = store.GraphsAt(i); err != nil {
					return err
				}
			}
			for _, g := range graphs {
				fmt.Fprintln(cmd.OutOrStdout(), g)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "instant, e.g. 2006 or 2006-03-15 (default today)")
	cmd.Flags().StringVar(&over, "over", "", "span, e.g. 2005/P3Y")
	return cmd
}

func newMaterializeCmd() *cobra.Command {
	var at, over, construct, selectQuery, format, resultsFormat string
	var mirror bool

	cmd := &cobra.Command{
		Use:   "materialize",
		Short: "Build a snapshot and write it to stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)

			var sel snapshot.Selector
			if over != "" {
				sp, err := temporal.ParseSpan(over)
				if err != nil {
					return err
				}
				sel = snapshot.Over(sp)
			} else {
				i := temporal.Now()
				if at != "" {
					var err error
					if i, err = temporal.ParseInstant(at); err != nil {
						return err
					}
				}
				sel = snapshot.At(i)
			}

			coord := newCoordinator(coordinator.Options{})
			defer coord.Close()
			snap, err := coord.Materialize(ctx, sel, mirror)
			if err != nil {
				return err
			}
			if construct != "" {
				if snap, err = snap.ExecuteConstruct(ctx, construct); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if selectQuery != "" {
				res, err := snap.Select(ctx, selectQuery)
				if err != nil {
					return err
				}
				return res.Encode(out, resultsFormat)
			}
			log.Info("snapshot materialized").
				Str("snapshot_id", snap.ID).
				Str("selector", snap.Selector.String()).
				Int("graphs", len(snap.Graphs)).
				Int("triples", snap.Len()).
				Send()
			return snap.Encode(out, format)
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "instant, e.g. 2006 (default today)")
	cmd.Flags().StringVar(&over, "over", "", "span, e.g. 2005/P3Y")
	cmd.Flags().StringVar(&construct, "construct", "", "CONSTRUCT query deriving the output snapshot")
	cmd.Flags().StringVar(&selectQuery, "select", "", "SELECT query to run instead of dumping triples")
	cmd.Flags().StringVar(&format, "format", snapshot.FormatNTriples, "ntriples or nquads")
	cmd.Flags().StringVar(&resultsFormat, "results-format", "json", "json, csv or tsv for --select")
	cmd.Flags().BoolVar(&mirror, "mirror", false, "materialize from the in-memory mirror")
	return cmd
}

func newJournalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect and replay change journals",
	}

	var apply bool
	replay := &cobra.Command{
		Use:   "replay <path>",
		Short: "Print journal entries, optionally re-applying them to the persistent store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			out := cmd.OutOrStdout()

			var coord *coordinator.Coordinator
			if apply {
				coord = newCoordinator(coordinator.Options{})
				defer coord.Close()
			}

			applied := 0
			skipped, err := journal.ReplayEvents(args[0], func(e *journal.Entry, ev changefeed.Event) error {
				fmt.Fprintln(out, e.String())
				if coord == nil {
					return nil
				}
				store, err := coord.Persistent(ctx)
				if err != nil {
					return err
				}
				if err := store.Apply(ctx, ev); err != nil && !errors.Is(err, changefeed.ErrPropagation) {
					return fmt.Errorf("entry %d: %w", e.LSN, err)
				}
				applied++
				return nil
			})
			if err != nil {
				return err
			}

			log.Info("journal replayed").
				Str("path", args[0]).
				Int("applied", applied).
				Int("skipped", skipped).
				Send()
			return nil
		},
	}
	replay.Flags().BoolVar(&apply, "apply", false, "re-apply entries to the persistent store")

	cmd.AddCommand(replay)
	return cmd
}
