// Integration tests for the TemporalGraph gRPC service
package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/nainya/timegraph/internal/logger"
	"github.com/nainya/timegraph/internal/metrics"
	"github.com/nainya/timegraph/pkg/coordinator"
	"github.com/nainya/timegraph/pkg/quadstore"
)

const bufSize = 1024 * 1024

type testEnv struct {
	client *Client
	conn   *grpc.ClientConn
	coord  *coordinator.Coordinator
	reg    *prometheus.Registry
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	log := logger.Nop()
	coord := coordinator.New(coordinator.Options{
		OpenPersistent: func(ctx context.Context) (quadstore.Store, error) { return quadstore.NewMemory(), nil },
		Logger:         log,
		Metrics:        m,
	})

	lis := bufconn.Listen(bufSize)
	grpcServer, _ := NewGRPCServer(NewServer(coord, log), m, log)
	go func() {
		// Serve returns when the listener closes during cleanup
		_ = grpcServer.Serve(lis)
	}()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) { return lis.Dial() }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("Failed to dial bufnet: %v", err)
	}

	t.Cleanup(func() {
		conn.Close()
		grpcServer.Stop()
		lis.Close()
		coord.Close()
	})
	return &testEnv{client: NewClient(conn), conn: conn, coord: coord, reg: reg}
}

const statements = `<http://example.org/alice> <http://example.org/worksFor> <http://example.org/acme> .
<http://example.org/alice> <http://example.org/role> "engineer" .
`

func TestInsertAndGraphs(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	resp, err := env.client.Insert(ctx, map[string]interface{}{"statements": statements, "span": "2005/P3Y"})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if n := resp.Fields["inserted"].GetNumberValue(); n != 2 {
		t.Errorf("Expected 2 inserted, got %v", n)
	}

	graphs, err := env.client.Graphs(ctx, map[string]interface{}{"at": "2006"})
	if err != nil {
		t.Fatalf("Graphs failed: %v", err)
	}
	list := graphs.Fields["graphs"].GetListValue().GetValues()
	if len(list) != 1 || list[0].GetStringValue() != "graph://2005/P3Y" {
		t.Errorf("Unexpected graphs: %v", list)
	}

	graphs, err = env.client.Graphs(ctx, map[string]interface{}{"at": "2009"})
	if err != nil {
		t.Fatalf("Graphs failed: %v", err)
	}
	if n := len(graphs.Fields["graphs"].GetListValue().GetValues()); n != 0 {
		t.Errorf("Expected no graphs in 2009, got %d", n)
	}

	graphs, err = env.client.Graphs(ctx, map[string]interface{}{"over": "2007/P10Y", "mirror": true})
	if err != nil {
		t.Fatalf("Graphs on mirror failed: %v", err)
	}
	if n := len(graphs.Fields["graphs"].GetListValue().GetValues()); n != 1 {
		t.Errorf("Expected 1 overlapping graph on the mirror, got %d", n)
	}
}

func TestMaterialize(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	if _, err := env.client.Insert(ctx, map[string]interface{}{"statements": statements, "span": "2005/P3Y"}); err != nil {
		t.Fatal(err)
	}
	base := `<http://example.org/acme> <http://example.org/name> "Acme" .`
	if _, err := env.client.Insert(ctx, map[string]interface{}{"statements": base}); err != nil {
		t.Fatal(err)
	}

	for _, mirror := range []bool{false, true} {
		resp, err := env.client.Materialize(ctx, map[string]interface{}{"at": "2006", "mirror": mirror})
		if err != nil {
			t.Fatalf("Materialize(mirror=%v) failed: %v", mirror, err)
		}
		if n := resp.Fields["triples"].GetNumberValue(); n != 3 {
			t.Errorf("mirror=%v: expected 3 triples, got %v", mirror, n)
		}
		if resp.Fields["id"].GetStringValue() == "" {
			t.Error("snapshot id missing")
		}
	}

	resp, err := env.client.Materialize(ctx, map[string]interface{}{"at": "2010"})
	if err != nil {
		t.Fatal(err)
	}
	if data := resp.Fields["data"].GetStringValue(); strings.Contains(data, "engineer") {
		t.Errorf("2010 snapshot should only hold base facts: %s", data)
	}

	resp, err = env.client.Materialize(ctx, map[string]interface{}{
		"at":     "2006",
		"select": `SELECT ?role WHERE { ?p <http://example.org/role> ?role }`,
	})
	if err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if !strings.Contains(resp.Fields["data"].GetStringValue(), `"engineer"`) {
		t.Errorf("unexpected results: %s", resp.Fields["data"].GetStringValue())
	}

	resp, err = env.client.Materialize(ctx, map[string]interface{}{
		"at":        "2006",
		"construct": `CONSTRUCT { ?p <http://example.org/employer> ?o } WHERE { ?p <http://example.org/worksFor> ?o }`,
		"format":    "nquads",
	})
	if err != nil {
		t.Fatalf("construct failed: %v", err)
	}
	if resp.Fields["parent"].GetStringValue() == "" {
		t.Error("derived snapshot should name its parent")
	}
	if n := resp.Fields["triples"].GetNumberValue(); n != 1 {
		t.Errorf("expected 1 constructed triple, got %v", n)
	}
}

func TestRemove(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	if _, err := env.client.Insert(ctx, map[string]interface{}{"statements": statements, "span": "2005/P3Y"}); err != nil {
		t.Fatal(err)
	}
	line := `<http://example.org/alice> <http://example.org/role> "engineer" .`
	if _, err := env.client.Remove(ctx, map[string]interface{}{"statement": line, "span": "2005/P3Y"}); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	quad := `<http://example.org/alice> <http://example.org/worksFor> <http://example.org/acme> <graph://2005/P3Y> .`
	if _, err := env.client.Remove(ctx, map[string]interface{}{"statement": quad}); err != nil {
		t.Fatalf("Remove quad failed: %v", err)
	}

	resp, err := env.client.Materialize(ctx, map[string]interface{}{"at": "2006"})
	if err != nil {
		t.Fatal(err)
	}
	if n := resp.Fields["triples"].GetNumberValue(); n != 0 {
		t.Errorf("expected empty snapshot, got %v triples", n)
	}
}

func TestErrorCodes(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	cases := []struct {
		name string
		call func() error
		want codes.Code
	}{
		{"bad span", func() error {
			_, err := env.client.Insert(ctx, map[string]interface{}{"statements": statements, "span": "2005-13"})
			return err
		}, codes.InvalidArgument},
		{"missing statements", func() error {
			_, err := env.client.Insert(ctx, map[string]interface{}{})
			return err
		}, codes.InvalidArgument},
		{"malformed statement", func() error {
			_, err := env.client.Remove(ctx, map[string]interface{}{"statement": "<a> <b>"})
			return err
		}, codes.InvalidArgument},
		{"unknown graph", func() error {
			_, err := env.client.Insert(ctx, map[string]interface{}{"statements": `<http://e/s> <http://e/p> "o" <graph://nowhere> .`})
			return err
		}, codes.NotFound},
		{"bad format", func() error {
			_, err := env.client.Materialize(ctx, map[string]interface{}{"at": "2006", "format": "turtle"})
			return err
		}, codes.InvalidArgument},
		{"bad query", func() error {
			_, err := env.client.Materialize(ctx, map[string]interface{}{"at": "2006", "select": "SELECT WHERE"})
			return err
		}, codes.InvalidArgument},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.call()
			if status.Code(err) != tc.want {
				t.Errorf("expected %v, got %v (%v)", tc.want, status.Code(err), err)
			}
		})
	}
}

func TestStatsAndHealth(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	if _, err := env.client.Insert(ctx, map[string]interface{}{"statements": statements}); err != nil {
		t.Fatal(err)
	}
	resp, err := env.client.call(ctx, "Stats", map[string]interface{}{"mirror": true})
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	p := resp.Fields["persistent"].GetStructValue().GetFields()
	m := resp.Fields["mirror"].GetStructValue().GetFields()
	if p["quads"].GetNumberValue() != 2 || m["quads"].GetNumberValue() != 2 {
		t.Errorf("unexpected stats: %v", resp)
	}
	if p["listeners"].GetNumberValue() != 1 {
		t.Errorf("mirror listener not subscribed: %v", p)
	}

	hc, err := healthpb.NewHealthClient(env.conn).Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		t.Fatalf("health check failed: %v", err)
	}
	if hc.Status != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("unexpected health status %v", hc.Status)
	}
}

func TestObservabilityRoutes(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	if _, err := env.client.Insert(ctx, map[string]interface{}{"statements": statements, "span": "2005/P3Y"}); err != nil {
		t.Fatal(err)
	}

	router := NewRouter(env.reg, env.coord, func() error { return nil })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/graphs?at=2007", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("graphs status %d: %s", rec.Code, rec.Body)
	}
	var body struct {
		Graphs []string `json:"graphs"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.Graphs) != 1 || body.Graphs[0] != "graph://2005/P3Y" {
		t.Errorf("unexpected graphs %v", body.Graphs)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/graphs?at=yesterday", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "timegraph_grpc_requests_total") {
		t.Errorf("metrics endpoint missing gRPC counters")
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("health status %d", rec.Code)
	}
}
