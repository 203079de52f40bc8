// ABOUTME: Owns the persistent store and its lazily built in-memory mirror
// ABOUTME: Replaces process-wide singletons with an explicit, resettable handle

package coordinator

import (
	"context"
	"fmt"
	"sync"

	"github.com/nainya/timegraph/internal/logger"
	"github.com/nainya/timegraph/internal/metrics"
	"github.com/nainya/timegraph/pkg/quadstore"
	"github.com/nainya/timegraph/pkg/snapshot"
	"github.com/nainya/timegraph/pkg/timegraph"
)

// Options configures a Coordinator
type Options struct {
	// DBPath is the SQLite file backing the persistent store
	DBPath string

	// OpenPersistent overrides how the persistent backend is opened
	OpenPersistent func(ctx context.Context) (quadstore.Store, error)

	// StoreOptions applies to both stores; Role and ReadOnly are set per store
	StoreOptions timegraph.Options

	// DropStale is passed to the materializer
	DropStale bool

	Logger  *logger.Logger
	Metrics *metrics.Metrics
}

// Coordinator hands out the persistent store and its mirror
type Coordinator struct {
	opts Options
	log  *logger.Logger

	mu           sync.Mutex
	persistent   *timegraph.Store
	mirror       *timegraph.Store
	unsubscribe  func()
	materializer *snapshot.Materializer
}

// New creates a Coordinator. Nothing is opened until first use.
func New(opts Options) *Coordinator {
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.OpenPersistent == nil {
		path := opts.DBPath
		opts.OpenPersistent = func(ctx context.Context) (quadstore.Store, error) {
			return quadstore.OpenSQLite(ctx, path)
		}
	}
	opts.StoreOptions.Logger = opts.Logger
	opts.StoreOptions.Metrics = opts.Metrics

	return &Coordinator{
		opts: opts,
		log:  opts.Logger,
		materializer: snapshot.NewMaterializer(snapshot.Options{
			DropStale: opts.DropStale,
			Logger:    opts.Logger,
			Metrics:   opts.Metrics,
		}),
	}
}

// Persistent opens the authoritative store and builds its index on first call
func (c *Coordinator) Persistent(ctx context.Context) (*timegraph.Store, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.persistentLocked(ctx)
}

func (c *Coordinator) persistentLocked(ctx context.Context) (*timegraph.Store, error) {
	if c.persistent != nil {
		return c.persistent, nil
	}

	backend, err := c.opts.OpenPersistent(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening persistent store: %w", err)
	}

	opts := c.opts.StoreOptions
	opts.Role = timegraph.RolePersistent
	opts.ReadOnly = false
	s := timegraph.New(backend, opts)
	if err := s.BuildIndex(ctx); err != nil {
		backend.Close()
		return nil, err
	}

	c.persistent = s
	c.log.Info("persistent store ready").Str("db_path", c.opts.DBPath).Send()
	return s, nil
}

// Mirror builds the in-memory mirror on first call: a full copy of the
// persistent store kept current by change events. It never rescans.
func (c *Coordinator) Mirror(ctx context.Context) (*timegraph.Store, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mirror != nil {
		return c.mirror, nil
	}
	p, err := c.persistentLocked(ctx)
	if err != nil {
		return nil, err
	}

	opts := c.opts.StoreOptions
	opts.Role = timegraph.RoleMirror
	opts.ReadOnly = true
	m := timegraph.New(quadstore.NewMemory(), opts)

	unsubscribe, err := p.CopyTo(ctx, m.Backend(), timegraph.MirrorListener(m))
	if err != nil {
		return nil, err
	}
	if err := m.BuildIndex(ctx); err != nil {
		unsubscribe()
		return nil, err
	}

	c.mirror = m
	c.unsubscribe = unsubscribe
	st, _ := m.Stats(ctx)
	c.log.Info("mirror ready").Int("quads", st.Quads).Int("index_entries", st.IndexEntries).Send()
	return m, nil
}

// Materialize takes a snapshot from the persistent store or its mirror
func (c *Coordinator) Materialize(ctx context.Context, sel snapshot.Selector, fromMirror bool) (*snapshot.Snapshot, error) {
	var (
		src *timegraph.Store
		err error
	)
	if fromMirror {
		src, err = c.Mirror(ctx)
	} else {
		src, err = c.Persistent(ctx)
	}
	if err != nil {
		return nil, err
	}
	return c.materializer.Materialize(ctx, src, sel)
}

// Reset detaches the mirror, closes both stores and forgets them
func (c *Coordinator) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
	if c.mirror != nil {
		if err := c.mirror.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		c.mirror = nil
	}
	if c.persistent != nil {
		if err := c.persistent.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		c.persistent = nil
	}
	return firstErr
}

// Close is Reset
func (c *Coordinator) Close() error { return c.Reset() }
