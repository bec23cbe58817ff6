package site

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/sowilo/internal/gate"
	"github.com/starford/sowilo/internal/parser"
	"github.com/starford/sowilo/internal/tokenizer"
	"github.com/starford/sowilo/internal/tree"
)

// prepareAll launches one task per node. Directory tasks wait for their
// children's prepare gates, so the dependency order is carried by the gates
// alone and sibling tasks finish in any order.
func (b *Builder) prepareAll(ctx context.Context, root *tree.Node) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, n := range tree.Flatten(root) {
		g.Go(func() error {
			if err := b.prepare(ctx, n); err != nil {
				return fmt.Errorf("prepare %s: %w", n.Org(), err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (b *Builder) prepare(ctx context.Context, n *tree.Node) error {
	var err error
	if n.Kind() == tree.KindDir {
		err = b.prepareDir(ctx, n)
	} else {
		err = b.prepareFile(ctx, n)
	}
	if err != nil {
		return err
	}
	n.Gates().Open(gate.Prepare)
	b.logger.Debug("node prepared", slog.String("node", n.String()))
	return nil
}

func (b *Builder) prepareDir(ctx context.Context, n *tree.Node) error {
	for _, c := range n.Children() {
		if err := c.Gates().Wait(ctx, gate.Prepare); err != nil {
			return err
		}
	}

	sorted := SortChildren(n.Children())
	count := 0
	for _, c := range sorted {
		if c.Kind() == tree.KindDir || c.Document() != nil {
			count++
		}
	}
	children, paged := Paginate(n.Org(), sorted, b.opts.PageSize)

	n.SetChildren(children)
	n.SetDir(tree.Entry{Key: tree.Stem(n.Rel()), ChildCount: count, IsPaged: paged})
	return nil
}

func (b *Builder) prepareFile(ctx context.Context, n *tree.Node) error {
	name := filepath.Base(n.Org())
	if !tree.IsMarkdown(name) {
		n.SetFile(tree.Binary{Key: name})
		return nil
	}

	data, err := b.fs.ReadFile(ctx, n.Org())
	if err != nil {
		return err
	}
	res, err := parser.Parse(data)
	if err != nil {
		return err
	}
	var created time.Time
	if res.Properties.CreatedAt != "" {
		if created, err = parser.ParseDate(res.Properties.CreatedAt); err != nil {
			return err
		}
	}

	title := tree.Stem(name)
	tokens, err := b.collectTokens(ctx, res.Lines, title)
	if err != nil {
		return err
	}
	n.SetFile(tree.Markdown{Key: title, Doc: tree.NewDocument(title, res, created, tokens)})
	return nil
}

// collectTokens merges, for every text line and the title, the plain words
// with the tokenizer's segmentation. Stopwords are dropped and everything is
// lower-cased.
func (b *Builder) collectTokens(ctx context.Context, lines []string, title string) (map[string]struct{}, error) {
	set := make(map[string]struct{})
	add := func(words []string) {
		for _, w := range words {
			w = strings.ToLower(strings.TrimSpace(w))
			if w == "" || tokenizer.IsStopword(w) {
				continue
			}
			set[w] = struct{}{}
		}
	}

	segment := func(text string, keep func(rune) bool) error {
		add(tokenizer.Split(text, keep))
		seg, err := b.tok.Tokenize(ctx, text)
		if err != nil {
			return err
		}
		add(seg)
		return nil
	}

	for _, l := range lines {
		if err := segment(l, tokenizer.Letters); err != nil {
			return nil, err
		}
	}
	if err := segment(title, tokenizer.Alnum); err != nil {
		return nil, err
	}
	return set, nil
}
