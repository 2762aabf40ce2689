package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pwnholic/urltrack/internal"
	"github.com/pwnholic/urltrack/internal/clients"
	"github.com/pwnholic/urltrack/internal/config"
	"github.com/pwnholic/urltrack/internal/tracker"
	"github.com/pwnholic/urltrack/internal/web"
)

const shutdownTimeout = 10 * time.Second

func serve(ctx context.Context, cfg *config.Config) error {
	builder := clients.NewRequestBuilder(cfg.HTTPClientOptions())
	defer builder.Request.Close()

	capturer := cfg.Capturer()
	defer func() {
		if err := capturer.Close(); err != nil {
			internal.Warn("Failed to close browser: %v", err)
		}
	}()

	srv, err := web.NewServer(web.Options{
		Store:          tracker.NewStore(),
		Exporter:       cfg.DocumentExporter(),
		Preview:        builder.Request,
		Capturer:       capturer,
		MaxUploadBytes: int64(cfg.Server.MaxUploadMB) << 20,
	})
	if err != nil {
		return err
	}

	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		internal.Info("Listening on %s", cfg.Server.Addr)
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		internal.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
