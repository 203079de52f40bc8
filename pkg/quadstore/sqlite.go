// ABOUTME: SQLite-backed persistent quad store using modernc.org/sqlite via sqlx
// ABOUTME: Terms are stored in their N-Triples encoding, one row per quad

package quadstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nainya/timegraph/pkg/rdf"
)

const schema = `
CREATE TABLE IF NOT EXISTS graphs (
	id TEXT PRIMARY KEY
);
CREATE TABLE IF NOT EXISTS quads (
	graph     TEXT NOT NULL REFERENCES graphs(id) ON DELETE CASCADE,
	subject   TEXT NOT NULL,
	predicate TEXT NOT NULL,
	object    TEXT NOT NULL,
	PRIMARY KEY (graph, subject, predicate, object)
);
CREATE INDEX IF NOT EXISTS quads_pos ON quads (predicate, object, subject);
CREATE INDEX IF NOT EXISTS quads_osg ON quads (object, subject, graph);
`

// SQLiteStore persists quads in a SQLite database
type SQLiteStore struct {
	db   *sqlx.DB
	path string
}

type quadRow struct {
	Graph     string `db:"graph"`
	Subject   string `db:"subject"`
	Predicate string `db:"predicate"`
	Object    string `db:"object"`
}

// OpenSQLite opens (or creates) a quad store at path with WAL journaling
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	// ensure parent directory exists to avoid SQLITE_CANTOPEN errors
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", path)
	db, err := sqlx.ConnectContext(ctx, "sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SQLite: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT OR IGNORE INTO graphs (id) VALUES (?)`, rdf.DefaultGraph); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create base graph: %w", err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// Path returns the database file path
func (s *SQLiteStore) Path() string {
	return s.path
}

func (s *SQLiteStore) CreateNamedGraph(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidQuad
	}
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO graphs (id) VALUES (?)`, id)
	return wrapClosed(err)
}

func (s *SQLiteStore) ContainsGraph(ctx context.Context, id string) (bool, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM graphs WHERE id = ?`, id); err != nil {
		return false, wrapClosed(err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) ListGraphs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := s.db.SelectContext(ctx, &ids, `SELECT id FROM graphs ORDER BY id`); err != nil {
		return nil, wrapClosed(err)
	}
	return ids, nil
}

func (s *SQLiteStore) FindQuads(ctx context.Context, p Pattern, fn func(rdf.Quad) bool) error {
	var (
		conds []string
		args  []any
	)
	if p.Graph != "" {
		conds = append(conds, "graph = ?")
		args = append(args, p.Graph)
	}
	for _, c := range []struct {
		col  string
		term rdf.Term
	}{{"subject", p.S}, {"predicate", p.P}, {"object", p.O}} {
		if !c.term.IsZero() {
			conds = append(conds, c.col+" = ?")
			args = append(args, c.term.String())
		}
	}

	query := `SELECT graph, subject, predicate, object FROM quads`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY graph, subject, predicate, object"

	// Rows are fully read before fn runs so fn may write to the store
	var rows []quadRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return wrapClosed(err)
	}

	for _, r := range rows {
		q, err := r.decode()
		if err != nil {
			return err
		}
		if !fn(q) {
			return nil
		}
	}
	return nil
}

func (s *SQLiteStore) AddQuad(ctx context.Context, q rdf.Quad) error {
	if err := validate(q); err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return wrapClosed(err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO graphs (id) VALUES (?)`, q.Graph); err != nil {
		return err
	}
	if _, err := tx.NamedExecContext(ctx,
		`INSERT OR IGNORE INTO quads (graph, subject, predicate, object)
		 VALUES (:graph, :subject, :predicate, :object)`, encodeQuad(q)); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) RemoveQuad(ctx context.Context, q rdf.Quad) error {
	_, err := s.db.NamedExecContext(ctx,
		`DELETE FROM quads WHERE graph = :graph AND subject = :subject
		 AND predicate = :predicate AND object = :object`, encodeQuad(q))
	return wrapClosed(err)
}

func (s *SQLiteStore) AddTripleToGraph(ctx context.Context, graph string, t rdf.Triple) error {
	return s.AddQuad(ctx, rdf.NewQuad(graph, t))
}

func (s *SQLiteStore) RemoveTripleFromGraph(ctx context.Context, graph string, t rdf.Triple) error {
	return s.RemoveQuad(ctx, rdf.NewQuad(graph, t))
}

func (s *SQLiteStore) Graph(ctx context.Context, id string) (rdf.Model, error) {
	ok, err := s.ContainsGraph(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrGraphNotFound
	}

	g := rdf.NewGraph()
	err = s.FindQuads(ctx, Pattern{Graph: id}, func(q rdf.Quad) bool {
		g.Add(q.Triple)
		return true
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

func (s *SQLiteStore) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM quads`); err != nil {
		return 0, wrapClosed(err)
	}
	return n, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func encodeQuad(q rdf.Quad) quadRow {
	return quadRow{
		Graph:     q.Graph,
		Subject:   q.S.String(),
		Predicate: q.P.String(),
		Object:    q.O.String(),
	}
}

func (r quadRow) decode() (rdf.Quad, error) {
	var terms [3]rdf.Term
	for i, text := range []string{r.Subject, r.Predicate, r.Object} {
		t, err := rdf.ParseTerm(text)
		if err != nil {
			return rdf.Quad{}, fmt.Errorf("decoding stored quad in %s: %w", r.Graph, err)
		}
		terms[i] = t
	}
	return rdf.NewQuad(r.Graph, rdf.NewTriple(terms[0], terms[1], terms[2])), nil
}

func wrapClosed(err error) error {
	if err != nil && strings.Contains(err.Error(), "database is closed") {
		return fmt.Errorf("%w: %v", ErrClosed, err)
	}
	return err
}
