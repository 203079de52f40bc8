// Package server implements the gRPC TemporalGraph service
package server

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/nainya/timegraph/internal/logger"
	"github.com/nainya/timegraph/pkg/coordinator"
	"github.com/nainya/timegraph/pkg/rdf"
	"github.com/nainya/timegraph/pkg/snapshot"
	"github.com/nainya/timegraph/pkg/temporal"
	"github.com/nainya/timegraph/pkg/timegraph"
)

// Server implements TemporalGraphServer on top of a coordinator
type Server struct {
	coord     *coordinator.Coordinator
	log       *logger.Logger
	startTime time.Time
}

// NewServer creates a new gRPC server instance
func NewServer(coord *coordinator.Coordinator, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	return &Server{coord: coord, log: log, startTime: time.Now()}
}

// Close releases both stores
func (s *Server) Close() error {
	return s.coord.Close()
}

// ========== Mutations ==========

// Insert loads {"statements": "<N-Triples>", "span": "2005/P3Y"}.
// Without a span, N-Quads graph labels decide the target graph.
func (s *Server) Insert(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	text := stringField(req, "statements")
	if strings.TrimSpace(text) == "" {
		return nil, status.Error(codes.InvalidArgument, "statements are required")
	}
	span, err := optionalSpan(req)
	if err != nil {
		return nil, toStatus(err)
	}

	store, err := s.coord.Persistent(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	n, err := store.Import(ctx, span, strings.NewReader(text))
	if err != nil {
		return nil, toStatus(fmt.Errorf("after %d statements: %w", n, err))
	}
	s.log.Debug("statements inserted").Int("count", n).Bool("temporal", span != nil).Send()

	return newStruct(map[string]interface{}{
		"inserted": n,
		"message":  fmt.Sprintf("Inserted %d statements", n),
	})
}

// Remove deletes {"statement": "<line>", "span": "..."}. A statement with a
// graph label is removed as a quad and must not carry a span.
func (s *Server) Remove(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	q, ok, err := rdf.ParseLine(stringField(req, "statement"))
	if err != nil {
		return nil, toStatus(err)
	}
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "statement is required")
	}
	span, err := optionalSpan(req)
	if err != nil {
		return nil, toStatus(err)
	}

	store, err := s.coord.Persistent(ctx)
	if err != nil {
		return nil, toStatus(err)
	}

	switch {
	case q.Graph != rdf.DefaultGraph && span != nil:
		return nil, status.Error(codes.InvalidArgument, "a quad cannot also name a span")
	case q.Graph != rdf.DefaultGraph:
		err = store.RemoveQuad(ctx, q)
	default:
		err = store.Remove(ctx, span, q.Triple)
	}
	if err != nil {
		return nil, toStatus(err)
	}
	return newStruct(map[string]interface{}{"removed": true})
}

// ========== Temporal Queries ==========

// Graphs lists graph ids for {"at": "2006"} or {"over": "2005/P3Y"};
// "mirror": true answers from the in-memory mirror.
func (s *Server) Graphs(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	store, err := s.store(ctx, req)
	if err != nil {
		return nil, toStatus(err)
	}

	var graphs []string
	if over := stringField(req, "over"); over != "" {
		sp, err := temporal.ParseSpan(over)
		if err != nil {
			return nil, toStatus(err)
		}
		graphs, err = store.GraphsOver(sp)
		if err != nil {
			return nil, toStatus(err)
		}
	} else {
		at, err := instantField(req)
		if err != nil {
			return nil, toStatus(err)
		}
		graphs, err = store.GraphsAt(at)
		if err != nil {
			return nil, toStatus(err)
		}
	}

	return newStruct(map[string]interface{}{"graphs": stringList(graphs)})
}

// Materialize builds a snapshot for "at" or "over" and returns it serialized.
// Optional "construct" derives a snapshot, "select" returns query results
// in "results_format" (json, csv, tsv) instead of triples.
func (s *Server) Materialize(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	sel, err := selectorField(req)
	if err != nil {
		return nil, toStatus(err)
	}
	snap, err := s.coord.Materialize(ctx, sel, boolField(req, "mirror"))
	if err != nil {
		return nil, toStatus(err)
	}

	if q := stringField(req, "construct"); q != "" {
		if snap, err = snap.ExecuteConstruct(ctx, q); err != nil {
			return nil, toStatus(err)
		}
	}

	resp := map[string]interface{}{
		"id":       snap.ID,
		"parent":   snap.Parent,
		"selector": snap.Selector.String(),
		"graphs":   stringList(snap.Graphs),
		"triples":  snap.Len(),
	}

	var buf bytes.Buffer
	if q := stringField(req, "select"); q != "" {
		res, err := snap.Select(ctx, q)
		if err != nil {
			return nil, toStatus(err)
		}
		format := stringField(req, "results_format")
		if format == "" {
			format = "json"
		}
		if err := res.Encode(&buf, format); err != nil {
			return nil, toStatus(err)
		}
		resp["rows"] = res.Len()
	} else {
		format := stringField(req, "format")
		if format == "" {
			format = snapshot.FormatNTriples
		}
		if err := snap.Encode(&buf, format); err != nil {
			return nil, toStatus(err)
		}
	}
	resp["data"] = buf.String()

	return newStruct(resp)
}

// ========== Health & Status ==========

// Stats reports the persistent store, and the mirror when "mirror" is true
func (s *Server) Stats(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	resp := map[string]interface{}{
		"uptime_seconds": int64(time.Since(s.startTime).Seconds()),
	}
	if boolField(req, "mirror") {
		m, err := s.coord.Mirror(ctx)
		if err != nil {
			return nil, toStatus(err)
		}
		mst, err := m.Stats(ctx)
		if err != nil {
			return nil, toStatus(err)
		}
		resp["mirror"] = statsMap(mst)
	}

	p, err := s.coord.Persistent(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	pst, err := p.Stats(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	resp["persistent"] = statsMap(pst)
	return newStruct(resp)
}

func (s *Server) store(ctx context.Context, req *structpb.Struct) (*timegraph.Store, error) {
	if boolField(req, "mirror") {
		return s.coord.Mirror(ctx)
	}
	return s.coord.Persistent(ctx)
}

// ========== Request helpers ==========

func stringField(req *structpb.Struct, name string) string {
	if v, ok := req.GetFields()[name]; ok {
		return v.GetStringValue()
	}
	return ""
}

func boolField(req *structpb.Struct, name string) bool {
	if v, ok := req.GetFields()[name]; ok {
		return v.GetBoolValue()
	}
	return false
}

func optionalSpan(req *structpb.Struct) (*temporal.Span, error) {
	text := stringField(req, "span")
	if text == "" {
		return nil, nil
	}
	sp, err := temporal.ParseSpan(text)
	if err != nil {
		return nil, err
	}
	return &sp, nil
}

// instantField reads "at", defaulting to the current day
func instantField(req *structpb.Struct) (temporal.Instant, error) {
	at := stringField(req, "at")
	if at == "" {
		return temporal.Now(), nil
	}
	return temporal.ParseInstant(at)
}

func selectorField(req *structpb.Struct) (snapshot.Selector, error) {
	if over := stringField(req, "over"); over != "" {
		sp, err := temporal.ParseSpan(over)
		if err != nil {
			return nil, err
		}
		return snapshot.Over(sp), nil
	}
	at, err := instantField(req)
	if err != nil {
		return nil, err
	}
	return snapshot.At(at), nil
}

func stringList(in []string) []interface{} {
	out := make([]interface{}, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

func statsMap(st timegraph.Stats) map[string]interface{} {
	return map[string]interface{}{
		"role":          st.Role,
		"quads":         st.Quads,
		"graphs":        st.Graphs,
		"index_entries": st.IndexEntries,
		"listeners":     st.Listeners,
	}
}

func newStruct(m map[string]interface{}) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encoding response: %v", err)
	}
	return out, nil
}
