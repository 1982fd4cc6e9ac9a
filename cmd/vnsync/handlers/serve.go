package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"sigs.k8s.io/controller-runtime/pkg/healthz"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/metrics"

	"github.com/imamik/vnsync/internal/trigger"
)

const shutdownTimeout = 10 * time.Second

// connectNATS dials the trigger bus. Replaced in tests.
var connectNATS = trigger.Connect

// Serve runs the daemon until ctx is cancelled: the periodic full-sync, the
// NATS trigger listener when configured, and the metrics endpoint.
func Serve(ctx context.Context, configPath string) error {
	logger := log.FromContext(ctx).WithName("serve")

	rt, err := newRuntime(ctx, configPath)
	if err != nil {
		return err
	}
	defer rt.close()

	full := rt.fullSync()
	orch := rt.orchestrator()

	if rt.cfg.NATS.URL != "" {
		nc, err := connectNATS(ctx, rt.cfg.NATS.URL, "vnsync")
		if err != nil {
			return err
		}
		defer nc.Close()

		listener := trigger.NewListener(nc, rt.cfg.NATS.Queue, &trigger.Dispatcher{
			Prefix: rt.cfg.NATS.SubjectPrefix,
			Orch:   orch,
			Full:   full,
		})
		if err := listener.Start(ctx); err != nil {
			return err
		}
		defer listener.Stop()
	} else {
		logger.Info("nats url not set, trigger listener disabled")
	}

	srv := &http.Server{
		Addr:              rt.cfg.Metrics.BindAddress,
		Handler:           newMux(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("serving metrics", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("metrics server failed: %w", err)
		}
		close(serveErr)
	}()

	syncDone := make(chan struct{})
	go func() {
		defer close(syncDone)
		full.Start(ctx, rt.cfg.Sync.Interval)
	}()

	logger.Info("vnsync started",
		"namespace", rt.cfg.Namespace,
		"interval", rt.cfg.Sync.Interval,
		"parallelism", rt.cfg.Sync.Parallelism)

	select {
	case <-ctx.Done():
	case err = <-serveErr:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.Error(shutdownErr, "failed to shut down metrics server")
	}
	<-syncDone
	logger.Info("vnsync stopped")
	return err
}

// newMux serves the controller-runtime metrics registry and a liveness check.
func newMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	mux.Handle("/healthz/", http.StripPrefix("/healthz", &healthz.Handler{
		Checks: map[string]healthz.Checker{"ping": healthz.Ping},
	}))
	mux.Handle("/healthz", http.RedirectHandler("/healthz/", http.StatusMovedPermanently))
	return mux
}
