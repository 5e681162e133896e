package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/yuriy-kovalchuk/rackhost-ddns/internal/cache"
	"github.com/yuriy-kovalchuk/rackhost-ddns/internal/config"
	"github.com/yuriy-kovalchuk/rackhost-ddns/internal/dns"
	"github.com/yuriy-kovalchuk/rackhost-ddns/internal/server"
	"github.com/yuriy-kovalchuk/rackhost-ddns/internal/telemetry"
	"github.com/yuriy-kovalchuk/rackhost-ddns/internal/updater"
)

const shutdownTimeout = 10 * time.Second

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve dynamic DNS callbacks from routers",
		Action: func(c *cli.Context) error {
			return serve(ctrl.SetupSignalHandler())
		},
	}
}

func serve(ctx context.Context) error {
	log := ctrl.Log.WithName("setup")
	log.Info("starting rackhost-ddns", "version", Version)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("unable to load config: %w", err)
	}
	if err := cfg.ValidateServer(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	shutdownTracing, err := telemetry.Setup(ctx, Version, os.Stderr)
	if err != nil {
		return fmt.Errorf("unable to set up tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Error(err, "tracing shutdown failed")
		}
	}()

	name := cfg.Provider.Provider
	newProvider, err := dns.Lookup(name, ctrl.Log.WithName("dns-"+name), cfg.ProviderSettings())
	if err != nil {
		return fmt.Errorf("unable to create DNS provider: %w", err)
	}

	var ready atomic.Bool
	ops := &http.Server{
		Addr: cfg.OpsAddr,
		Handler: server.OpsHandler(func(*http.Request) error {
			if !ready.Load() {
				return errors.New("cache not loaded")
			}
			return nil
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return listen(gctx, ops, log.WithValues("listener", "ops")) })

	g.Go(func() error {
		store, err := openCache(gctx, cfg.Cache, newProvider)
		if err != nil {
			return err
		}
		defer store.Close()
		ready.Store(true)

		callbacks := &http.Server{
			Addr: cfg.ListenAddr,
			Handler: &server.Server{
				Username: cfg.Username,
				Password: cfg.Password,
				Updater: &updater.Updater{
					NewProvider: newProvider,
					Cache:       store,
					Log:         ctrl.Log.WithName("updater"),
				},
				Log: ctrl.Log.WithName("server"),
			},
			ReadHeaderTimeout: 5 * time.Second,
		}
		return listen(gctx, callbacks, log.WithValues("listener", "callbacks"))
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("shut down")
	return nil
}

// openCache opens the configured backend, bootstrapping it from the provider
// when it holds no snapshot yet.
func openCache(ctx context.Context, cfg config.CacheConfig, newProvider func() (dns.Provider, error)) (*cache.Store, error) {
	var backend cache.Backend
	switch cfg.Backend {
	case config.CacheBackendBolt:
		b, err := cache.OpenBoltBackend(cfg.Path)
		if err != nil {
			return nil, err
		}
		backend = b
	default:
		backend = cache.NewFileBackend(cfg.Path)
	}

	bootstrap := func(ctx context.Context) ([]cache.Entry, error) {
		p, err := newProvider()
		if err != nil {
			return nil, err
		}
		if err := p.Login(ctx); err != nil {
			return nil, err
		}
		return cache.Bootstrap(ctx, p)
	}

	store, err := cache.Open(ctx, backend, bootstrap, ctrl.Log.WithName("cache").WithValues("path", cfg.Path, "backend", cfg.Backend))
	if err != nil {
		backend.Close()
		return nil, err
	}
	return store, nil
}

// listen serves srv until ctx is cancelled, then shuts it down gracefully.
func listen(ctx context.Context, srv *http.Server, log logr.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("%s: %w", srv.Addr, err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(sctx)
}
