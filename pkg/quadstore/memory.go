// ABOUTME: In-memory quad store: one rdf.Graph per named graph
// ABOUTME: Guarded by an RWMutex; used for the mirror and in tests

package quadstore

import (
	"context"
	"slices"
	"sync"

	"github.com/nainya/timegraph/pkg/rdf"
)

// MemoryStore keeps every graph in memory
type MemoryStore struct {
	mu     sync.RWMutex
	graphs map[string]*rdf.Graph
	closed bool
}

// NewMemory creates an empty in-memory store holding only the base graph
func NewMemory() *MemoryStore {
	return &MemoryStore{
		graphs: map[string]*rdf.Graph{rdf.DefaultGraph: rdf.NewGraph()},
	}
}

func (m *MemoryStore) CreateNamedGraph(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidQuad
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if _, ok := m.graphs[id]; !ok {
		m.graphs[id] = rdf.NewGraph()
	}
	return nil
}

func (m *MemoryStore) ContainsGraph(ctx context.Context, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return false, ErrClosed
	}
	_, ok := m.graphs[id]
	return ok, nil
}

func (m *MemoryStore) ListGraphs(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	ids := make([]string, 0, len(m.graphs))
	for id := range m.graphs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

func (m *MemoryStore) FindQuads(ctx context.Context, p Pattern, fn func(rdf.Quad) bool) error {
	// Collect under the read lock so fn may re-enter the store
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return ErrClosed
	}
	var matches []rdf.Quad
	collect := func(id string, g *rdf.Graph) {
		g.Find(p.Triple(), func(t rdf.Triple) bool {
			matches = append(matches, rdf.NewQuad(id, t))
			return true
		})
	}
	if p.Graph != "" {
		if g, ok := m.graphs[p.Graph]; ok {
			collect(p.Graph, g)
		}
	} else {
		ids := make([]string, 0, len(m.graphs))
		for id := range m.graphs {
			ids = append(ids, id)
		}
		slices.Sort(ids)
		for _, id := range ids {
			collect(id, m.graphs[id])
		}
	}
	m.mu.RUnlock()

	for _, q := range matches {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !fn(q) {
			return nil
		}
	}
	return nil
}

func (m *MemoryStore) AddQuad(ctx context.Context, q rdf.Quad) error {
	if err := validate(q); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	g, ok := m.graphs[q.Graph]
	if !ok {
		g = rdf.NewGraph()
		m.graphs[q.Graph] = g
	}
	g.Add(q.Triple)
	return nil
}

func (m *MemoryStore) RemoveQuad(ctx context.Context, q rdf.Quad) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if g, ok := m.graphs[q.Graph]; ok {
		g.Remove(q.Triple)
	}
	return nil
}

func (m *MemoryStore) AddTripleToGraph(ctx context.Context, graph string, t rdf.Triple) error {
	return m.AddQuad(ctx, rdf.NewQuad(graph, t))
}

func (m *MemoryStore) RemoveTripleFromGraph(ctx context.Context, graph string, t rdf.Triple) error {
	return m.RemoveQuad(ctx, rdf.NewQuad(graph, t))
}

func (m *MemoryStore) Graph(ctx context.Context, id string) (rdf.Model, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	g, ok := m.graphs[id]
	if !ok {
		return nil, ErrGraphNotFound
	}
	return g.Clone(), nil
}

func (m *MemoryStore) Len(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return 0, ErrClosed
	}
	n := 0
	for _, g := range m.graphs {
		n += g.Len()
	}
	return n, nil
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.graphs = nil
	return nil
}
