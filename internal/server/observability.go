// Observability middleware and HTTP server for metrics, health and profiling
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/nainya/timegraph/internal/logger"
	"github.com/nainya/timegraph/internal/metrics"
	"github.com/nainya/timegraph/pkg/coordinator"
	"github.com/nainya/timegraph/pkg/temporal"
	"github.com/nainya/timegraph/pkg/timegraph"
)

// GrpcMetricsInterceptor records metrics and logs for every unary call and
// maps domain errors to status codes
func GrpcMetricsInterceptor(m *metrics.Metrics, log *logger.Logger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		start := time.Now()
		if m != nil {
			m.GrpcRequestsInFlight.Inc()
			defer m.GrpcRequestsInFlight.Dec()
		}

		resp, err := handler(ctx, req)
		err = toStatus(err)

		duration := time.Since(start)
		m.RecordGrpcRequest(info.FullMethod, status.Code(err).String(), duration)
		log.LogGrpcRequest(info.FullMethod, duration, err)

		return resp, err
	}
}

// ObservabilityServer provides HTTP endpoints for metrics, health,
// profiling and read-only graph lookups
type ObservabilityServer struct {
	server *http.Server
	log    *logger.Logger
}

// NewObservabilityServer creates the HTTP server. ready reports whether the
// persistent store is open; coord answers /v1/graphs.
func NewObservabilityServer(port int, gatherer prometheus.Gatherer, coord *coordinator.Coordinator, ready func() error, log *logger.Logger) *ObservabilityServer {
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      NewRouter(gatherer, coord, ready),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return &ObservabilityServer{server: server, log: log}
}

// NewRouter builds the HTTP routes
func NewRouter(gatherer prometheus.Gatherer, coord *coordinator.Coordinator, ready func() error) *mux.Router {
	r := mux.NewRouter()

	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "timegraph"})
	}).Methods(http.MethodGet)

	r.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if ready != nil {
			if err := ready(); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "error": err.Error()})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}).Methods(http.MethodGet)

	r.HandleFunc("/v1/graphs", graphsHandler(coord)).Methods(http.MethodGet)

	// pprof endpoints for profiling
	r.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	r.HandleFunc("/debug/pprof/profile", pprof.Profile)
	r.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	r.HandleFunc("/debug/pprof/trace", pprof.Trace)
	r.PathPrefix("/debug/pprof/").HandlerFunc(pprof.Index)

	return r
}

// graphsHandler serves GET /v1/graphs?at=2006[&mirror=true]
func graphsHandler(coord *coordinator.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		at := temporal.Now()
		if text := r.URL.Query().Get("at"); text != "" {
			i, err := temporal.ParseInstant(text)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
				return
			}
			at = i
		}

		var (
			store *timegraph.Store
			err   error
		)
		if r.URL.Query().Get("mirror") == "true" {
			store, err = coord.Mirror(r.Context())
		} else {
			store, err = coord.Persistent(r.Context())
		}
		if err == nil {
			var graphs []string
			if graphs, err = store.GraphsAt(at); err == nil {
				writeJSON(w, http.StatusOK, map[string]interface{}{"at": at.String(), "graphs": graphs})
				return
			}
		}
		writeJSON(w, httpStatus(err), map[string]string{"error": err.Error()})
	}
}

func httpStatus(err error) int {
	switch status.Code(toStatus(err)) {
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.FailedPrecondition:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

// Handler exposes the router, mainly for tests
func (o *ObservabilityServer) Handler() http.Handler { return o.server.Handler }

// Start starts the observability HTTP server
func (o *ObservabilityServer) Start() error {
	o.log.Info("Starting observability server").
		Str("addr", o.server.Addr).
		Str("metrics", fmt.Sprintf("http://%s/metrics", o.server.Addr)).
		Str("health", fmt.Sprintf("http://%s/health", o.server.Addr)).
		Str("pprof", fmt.Sprintf("http://%s/debug/pprof/", o.server.Addr)).
		Send()

	if err := o.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("observability server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the observability server
func (o *ObservabilityServer) Shutdown(ctx context.Context) error {
	o.log.Info("Shutting down observability server").Send()
	return o.server.Shutdown(ctx)
}
