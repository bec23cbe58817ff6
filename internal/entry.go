// Package internal wires configuration, logging and the build pipeline into
// the build, serve and search entry points.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/sowilo/internal/render"
	"github.com/starford/sowilo/internal/search"
	"github.com/starford/sowilo/internal/server"
	"github.com/starford/sowilo/internal/site"
	"github.com/starford/sowilo/internal/sse"
	"github.com/starford/sowilo/internal/storage"
	"github.com/starford/sowilo/internal/tokenizer"
	"github.com/starford/sowilo/internal/watch"
)

func newApplication(opts []Option) (*application, error) {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if app.logger == nil {
		app.logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: app.config.App.LogLevel,
		}))
		slog.SetDefault(app.logger)
	}
	return app, nil
}

// newBuilder assembles the builder from config. The returned close func
// stops the tokenizer workers.
func (a *application) newBuilder() (*site.Builder, func(), error) {
	cfg := a.config

	fs, err := storage.NewFS(cfg.Limits.OpenFiles)
	if err != nil {
		return nil, nil, fmt.Errorf("init storage: %w", err)
	}

	profile, err := render.LoadProfile(cfg.Render.Profile)
	if err != nil {
		return nil, nil, err
	}
	engine, err := render.NewEngine(cfg.Render.Template, profile)
	if err != nil {
		return nil, nil, fmt.Errorf("init templates: %w", err)
	}

	var tok tokenizer.Tokenizer = tokenizer.Builtin{}
	if cfg.Tokenizer.External() {
		pool, err := tokenizer.NewPool(tokenizer.Config{
			Command: cfg.Tokenizer.Command,
			Env:     cfg.Tokenizer.Env,
			Workers: cfg.Tokenizer.Workers,
		}, a.logger)
		if err != nil {
			return nil, nil, fmt.Errorf("init tokenizer: %w", err)
		}
		tok = pool
	}
	closeTok := func() {
		if err := tok.Close(); err != nil {
			a.logger.Warn("tokenizer close failed", slog.String("error", err.Error()))
		}
	}

	b, err := site.NewBuilder(site.Options{
		Roots:    cfg.Content.Roots,
		Output:   cfg.Output.Path,
		Collect:  cfg.Output.CollectDocuments,
		PageSize: cfg.Render.PageSize,
		Static:   cfg.Render.Static,
	}, fs, tok, engine, a.logger)
	if err != nil {
		closeTok()
		return nil, nil, err
	}
	return b, closeTok, nil
}

// Build runs one site build.
func Build(ctx context.Context, opts ...Option) (*site.Result, error) {
	app, err := newApplication(opts)
	if err != nil {
		return nil, err
	}
	cfg := app.config
	app.logger.Info("Configuration loaded",
		slog.Any("roots", cfg.Content.Roots),
		slog.String("output", cfg.Output.Path),
		slog.Int("page_size", cfg.Render.PageSize),
		slog.Bool("external_tokenizer", cfg.Tokenizer.External()),
		slog.String("log_level", cfg.App.LogLevel.String()))

	b, closeTok, err := app.newBuilder()
	if err != nil {
		return nil, err
	}
	defer closeTok()

	return b.Build(ctx)
}

// Serve builds the site, serves the output directory and, when watching is
// enabled, rebuilds on content changes until ctx is cancelled or a signal
// arrives.
func Serve(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.logger

	b, closeTok, err := app.newBuilder()
	if err != nil {
		return err
	}
	defer closeTok()

	broker := sse.NewBroker()
	defer broker.Close()

	var ready atomic.Bool
	rebuild := func(ctx context.Context) error {
		res, err := b.Build(ctx)
		if err != nil {
			broker.PublishBuild(0, 0, 0, err)
			return err
		}
		ready.Store(true)
		broker.PublishBuild(res.Nodes, res.Documents, res.Elapsed, nil)
		return nil
	}

	if err := rebuild(ctx); err != nil {
		if !cfg.Serve.Watch {
			return err
		}
		logger.Error("initial build failed", slog.String("error", err.Error()))
	}

	httpServer := &http.Server{
		Addr: cfg.Serve.Address(),
		Handler: server.NewRouter(server.Options{
			Root:      cfg.Output.Path,
			Events:    broker,
			Ready:     ready.Load,
			AccessLog: cfg.App.LogLevel <= slog.LevelDebug,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	if cfg.Serve.Watch {
		g.Go(func() error {
			return watch.Watch(gCtx, watch.Options{
				Roots:  cfg.Content.Roots,
				Ignore: []string{cfg.Output.Path},
			}, logger, rebuild)
		})
	}

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.Serve.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		// Closing the broker ends open event streams so Shutdown can finish.
		broker.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return context.Canceled
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// Search loads the index file at indexPath and returns the documents
// containing every token of query.
func Search(indexPath, query string) ([]search.Hit, error) {
	data, err := os.ReadFile(indexPath)
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	entries, err := search.Decode(data)
	if err != nil {
		return nil, err
	}
	return search.Query(entries, query), nil
}
