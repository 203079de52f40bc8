package main

import (
	"context"
	"fmt"
	"net"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nainya/timegraph/internal/metrics"
	"github.com/nainya/timegraph/internal/server"
	"github.com/nainya/timegraph/pkg/coordinator"
	"github.com/nainya/timegraph/pkg/journal"
)

func newServeCmd() *cobra.Command {
	var grpcPort, httpPort int
	var eagerMirror bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gRPC service and the observability endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("port") {
				cfg.GRPCPort = grpcPort
			}
			if cmd.Flags().Changed("http-port") {
				cfg.HTTPPort = httpPort
			}
			return serve(cmd.Context(), eagerMirror)
		},
	}
	cmd.Flags().IntVar(&grpcPort, "port", 0, "gRPC port (overrides TIMEGRAPH_GRPC_PORT)")
	cmd.Flags().IntVar(&httpPort, "http-port", 0, "metrics/health port (overrides TIMEGRAPH_HTTP_PORT)")
	cmd.Flags().BoolVar(&eagerMirror, "mirror", false, "build the in-memory mirror at startup")
	return cmd
}

func serve(parent context.Context, eagerMirror bool) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.LogServerStart(cfg.GRPCPort, cfg.HTTPPort, cfg.DBPath)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)

	coord := newCoordinator(coordinator.Options{Metrics: m})
	defer coord.Close()

	persistent, err := coord.Persistent(ctx)
	if err != nil {
		return err
	}

	if cfg.JournalPath != "" {
		j, err := journal.Open(cfg.JournalPath, journal.Options{Logger: log, Metrics: m})
		if err != nil {
			return fmt.Errorf("opening journal: %w", err)
		}
		defer j.Close()
		unsubscribe := persistent.Subscribe(j)
		defer unsubscribe()
	}

	if eagerMirror {
		if _, err := coord.Mirror(ctx); err != nil {
			return err
		}
	}

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	grpcServer, health := server.NewGRPCServer(server.NewServer(coord, log), m, log)
	obs := server.NewObservabilityServer(cfg.HTTPPort, reg, coord, func() error {
		_, err := coord.Persistent(ctx)
		return err
	}, log)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.LogServerReady(cfg.GRPCPort)
		return grpcServer.Serve(lis)
	})
	g.Go(obs.Start)
	g.Go(func() error {
		m.RunUptime(gctx.Done())
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.LogServerShutdown()
		health.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := obs.Shutdown(shutdownCtx)
		grpcServer.GracefulStop()
		return err
	})

	return g.Wait()
}
