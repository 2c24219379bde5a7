// Command docstore-server serves stock-and-flow documents over gRPC from a
// mem://, file:// or nats:// backend.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/signalsfoundry/stockflow-editor/internal/config"
	"github.com/signalsfoundry/stockflow-editor/internal/docrpc"
	"github.com/signalsfoundry/stockflow-editor/internal/docstore"
	"github.com/signalsfoundry/stockflow-editor/internal/logging"
	"github.com/signalsfoundry/stockflow-editor/internal/observability"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file")
	addr := flag.String("addr", "", "TCP address to listen on (defaults to :<server.port>)")
	metricsAddr := flag.String("metrics-addr", "", "HTTP address for Prometheus /metrics (overrides server.metrics_addr)")
	connect := flag.String("connect", "", "Connect string of the default store (overrides store.connect_string)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "docstore-server: %v\n", err)
		os.Exit(2)
	}
	if *metricsAddr != "" {
		cfg.Server.MetricsAddr = *metricsAddr
	}
	if *connect != "" {
		cfg.Store.ConnectString = *connect
	}
	listen := *addr
	if listen == "" {
		listen = fmt.Sprintf(":%d", cfg.Server.Port)
	}

	log := logging.New(cfg.LoggerConfig())
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lis, err := net.Listen("tcp", listen)
	if err != nil {
		log.Error(ctx, "failed to listen for gRPC", logging.String("addr", listen), logging.Err(err))
		os.Exit(1)
	}
	if err := run(ctx, cfg, log, lis); err != nil {
		log.Error(ctx, "document store server failed", logging.Err(err))
		os.Exit(1)
	}
}

// run serves on lis until ctx is done.
func run(ctx context.Context, cfg config.Config, log logging.Logger, lis net.Listener) error {
	shutdownTracing, err := observability.InitTracing(ctx, cfg.TracingConfig(), log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	collector, err := observability.NewRPCCollector(nil)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	metricsSrv := serveMetrics(cfg.Server.MetricsAddr, collector, log)

	store, err := docstore.Open(ctx, cfg.Store.ConnectString, docstore.WithLogger(log))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	info := docrpc.Configuration{
		DefaultCollection:    cfg.Store.Collection,
		DefaultConnectString: cfg.Store.ConnectString,
		WikiHost:             cfg.Wiki.Host,
	}
	srv := docrpc.NewServer(store, info,
		docrpc.WithLogger(log),
		docrpc.WithMetrics(collector),
		docrpc.WithOpener(func(ctx context.Context, cs string) (docstore.Store, error) {
			return docstore.Open(ctx, cs, docstore.WithLogger(log))
		}),
	)
	server := docrpc.NewGRPCServer(srv, log, collector)

	errCh := make(chan error, 1)
	log.Info(ctx, "starting document store server",
		logging.String("addr", lis.Addr().String()),
		logging.String("connect_string", cfg.Store.ConnectString),
	)
	go func() { errCh <- server.Serve(lis) }()

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info(context.Background(), "shutting down document store server")
		server.GracefulStop()
	case serveErr = <-errCh:
	}

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	return serveErr
}

func serveMetrics(addr string, collector *observability.RPCCollector, log logging.Logger) *http.Server {
	if addr == "" || collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
