package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/setanarut/portrait"
	"github.com/setanarut/portrait/catalog"
	"github.com/setanarut/portrait/internal/config"
	"github.com/setanarut/portrait/internal/server"
	"github.com/setanarut/portrait/loader"
)

func main() {
	if err := run(); err != nil {
		slog.Error("portraitd stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)
	portrait.SetLogger(logger)

	opts, err := cfg.RenderOptions()
	if err != nil {
		return err
	}

	assets := os.DirFS(cfg.AssetRoot)
	var cat catalog.Catalog
	if cfg.CatalogPath != "" {
		cat, err = catalog.LoadFile(cfg.CatalogPath)
	} else {
		cat, err = catalog.Scan(assets, ".")
	}
	if err != nil {
		return err
	}
	logger.Info("catalog loaded", "body_types", len(cat.BodyTypes))

	ld := loader.New(loader.Options{
		Assets:        assets,
		Client:        &http.Client{Timeout: cfg.LoadTimeout},
		FetchInterval: cfg.FetchInterval,
		FetchBurst:    cfg.FetchBurst,
	})
	loadCtx := context.Background()
	if cfg.LoadTimeout > 0 {
		var cancel context.CancelFunc
		loadCtx, cancel = context.WithTimeout(loadCtx, cfg.LoadTimeout)
		defer cancel()
	}
	opts.Placeholder, err = cfg.LoadPlaceholder(loadCtx, ld)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.New(cat, ld, opts, cfg.SessionTTL).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
