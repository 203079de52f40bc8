package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nainya/timegraph/pkg/changefeed"
	"github.com/nainya/timegraph/pkg/journal"
	"github.com/nainya/timegraph/pkg/rdf"
	"github.com/nainya/timegraph/pkg/temporal"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(io.Discard)
	require.NoError(t, root.Execute(), "timegraph %s", strings.Join(args, " "))
	return out.String()
}

func TestImportGraphsMaterialize(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "tg.db")

	facts := filepath.Join(dir, "facts.nt")
	require.NoError(t, os.WriteFile(facts, []byte(
		`<http://example.org/alice> <http://example.org/role> "engineer" .`+"\n"), 0644))
	base := filepath.Join(dir, "base.nt")
	require.NoError(t, os.WriteFile(base, []byte(
		`<http://example.org/acme> <http://example.org/name> "Acme" .`+"\n"), 0644))

	assert.Contains(t, run(t, "import", "--db", db, "--span", "2005/P3Y", facts), "Imported 1 statements")
	assert.Contains(t, run(t, "import", "--db", db, base), "Imported 1 statements")

	assert.Equal(t, "graph://2005/P3Y\n", run(t, "graphs", "--db", db, "--at", "2006"))
	assert.Empty(t, run(t, "graphs", "--db", db, "--at", "2009"))
	assert.Equal(t, "graph://2005/P3Y\n", run(t, "graphs", "--db", db, "--over", "2007/P2Y"))

	out := run(t, "materialize", "--db", db, "--at", "2006-02-10")
	assert.Contains(t, out, `"engineer"`)
	assert.Contains(t, out, `"Acme"`)

	out = run(t, "materialize", "--db", db, "--at", "2010", "--mirror")
	assert.NotContains(t, out, `"engineer"`)
	assert.Contains(t, out, `"Acme"`)

	out = run(t, "materialize", "--db", db, "--at", "2006",
		"--select", `SELECT ?r WHERE { ?p <http://example.org/role> ?r }`, "--results-format", "csv")
	assert.Contains(t, out, "engineer")
}

func TestJournalReplayApply(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "journal", "tg.journal")

	sp, err := temporal.ParseSpan("2005/P3Y")
	require.NoError(t, err)
	keep := rdf.NewTriple(rdf.IRI("http://example.org/alice"), rdf.IRI("http://example.org/role"), rdf.Literal("engineer"))
	drop := rdf.NewTriple(rdf.IRI("http://example.org/alice"), rdf.IRI("http://example.org/role"), rdf.Literal("intern"))

	j, err := journal.Open(path, journal.Options{})
	require.NoError(t, err)
	ctx := context.Background()
	for _, ev := range []changefeed.Event{
		changefeed.Insertion{GraphSpan: &sp, Fact: keep},
		changefeed.Insertion{GraphSpan: &sp, Fact: drop},
		changefeed.NewSpanRemoval(sp, drop),
	} {
		require.NoError(t, j.Apply(ctx, ev))
	}
	require.NoError(t, j.Close())

	db := filepath.Join(dir, "tg.db")
	out := run(t, "journal", "replay", path, "--apply", "--db", db)
	assert.Equal(t, 3, strings.Count(out, "\n"))

	assert.Equal(t, "graph://2005/P3Y\n", run(t, "graphs", "--db", db, "--at", "2006"))
	snap := run(t, "materialize", "--db", db, "--at", "2006")
	assert.Contains(t, snap, `"engineer"`)
	assert.NotContains(t, snap, `"intern"`)
}

func TestReplayMissingJournalFails(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"journal", "replay", filepath.Join(t.TempDir(), "none"), "--db", filepath.Join(t.TempDir(), "tg.db")})
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	assert.ErrorIs(t, root.Execute(), journal.ErrNotFound)
}
