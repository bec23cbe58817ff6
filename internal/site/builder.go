// Package site runs the build pipeline: tree, prepare, resolve, resource
// map, render and search index.
package site

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/sowilo/internal/render"
	"github.com/starford/sowilo/internal/search"
	"github.com/starford/sowilo/internal/storage"
	"github.com/starford/sowilo/internal/tokenizer"
	"github.com/starford/sowilo/internal/tree"
)

// StaticDir is the output directory static assets are copied into.
const StaticDir = "static"

// Options configure one build.
type Options struct {
	Roots    []string
	Output   string
	Collect  bool
	PageSize int
	Static   []string
}

// Builder owns the shared resources of a build: the file provider and the
// tokenizer are the only state touched by concurrent node tasks.
type Builder struct {
	opts   Options
	fs     storage.Provider
	tok    tokenizer.Tokenizer
	engine *render.Engine
	logger *slog.Logger
}

// Result summarises a finished build.
type Result struct {
	Root      *tree.Node
	Nodes     int
	Documents int
	Elapsed   time.Duration
}

// NewBuilder validates opts and returns a Builder.
func NewBuilder(opts Options, fs storage.Provider, tok tokenizer.Tokenizer, engine *render.Engine, logger *slog.Logger) (*Builder, error) {
	if len(opts.Roots) == 0 {
		return nil, errors.New("site: at least one content root is required")
	}
	if opts.Output == "" {
		return nil, errors.New("site: output path is required")
	}
	if opts.PageSize < 1 {
		return nil, fmt.Errorf("site: page size must be positive, got %d", opts.PageSize)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{opts: opts, fs: fs, tok: tok, engine: engine, logger: logger}, nil
}

// Build runs every stage. The first failing task cancels the rest and its
// error is returned; the output directory may then be partially written.
func (b *Builder) Build(ctx context.Context) (*Result, error) {
	start := time.Now()
	stage := func(name string, since time.Time) {
		b.logger.Info("stage finished", slog.String("stage", name), slog.Duration("elapsed", time.Since(since)))
	}

	t := time.Now()
	root, err := tree.Build(b.opts.Roots, b.opts.Output)
	if err != nil {
		return nil, err
	}
	stage("tree", t)

	t = time.Now()
	if err := b.prepareAll(ctx, root); err != nil {
		return nil, err
	}
	stage("prepare", t)

	t = time.Now()
	tree.Resolve(root, b.opts.Output, b.opts.Collect)
	resources, err := tree.ResourceMap(root)
	if err != nil {
		return nil, err
	}
	stage("resolve", t)

	t = time.Now()
	if err := b.prepareOutput(ctx, root); err != nil {
		return nil, err
	}
	stage("output", t)

	t = time.Now()
	if err := b.renderAll(ctx, root, resources); err != nil {
		return nil, err
	}
	stage("render", t)

	t = time.Now()
	entries, err := search.Assemble(ctx, root, b.fs)
	if err != nil {
		return nil, err
	}
	if b.opts.Collect {
		path := filepath.Join(b.opts.Output, tree.CollectDir, search.FileName)
		if err := search.Write(ctx, b.fs, path, entries); err != nil {
			return nil, err
		}
	}
	stage("search", t)

	res := &Result{
		Root:      root,
		Nodes:     len(tree.Flatten(root)),
		Documents: len(entries),
		Elapsed:   time.Since(start),
	}
	b.logger.Info("build finished",
		slog.Int("nodes", res.Nodes),
		slog.Int("documents", res.Documents),
		slog.Duration("elapsed", res.Elapsed))
	return res, nil
}

// prepareOutput clears the output root, keeping hidden entries, copies the
// static assets and creates every directory node's target.
func (b *Builder) prepareOutput(ctx context.Context, root *tree.Node) error {
	if err := b.fs.RemoveContents(ctx, b.opts.Output, false); err != nil {
		return err
	}
	static := filepath.Join(b.opts.Output, StaticDir)
	for _, p := range b.opts.Static {
		if err := b.fs.CopyTree(ctx, p, static, false); err != nil {
			return err
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, n := range tree.FlattenDirs(root) {
		g.Go(func() error {
			target, err := n.Target()
			if err != nil {
				return err
			}
			return b.fs.MkdirAll(ctx, target)
		})
	}
	if b.opts.Collect {
		g.Go(func() error {
			return b.fs.MkdirAll(ctx, filepath.Join(b.opts.Output, tree.CollectDir))
		})
	}
	return g.Wait()
}
