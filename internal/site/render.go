package site

import (
	"context"
	"fmt"
	"html"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/starford/sowilo/internal/gate"
	"github.com/starford/sowilo/internal/render"
	"github.com/starford/sowilo/internal/tree"
)

const (
	indexFile = "index.html"
	undefined = "undefined"
)

func (b *Builder) renderAll(ctx context.Context, root *tree.Node, resources map[string]string) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, n := range tree.Flatten(root) {
		g.Go(func() error {
			if err := b.renderNode(ctx, n, resources); err != nil {
				return fmt.Errorf("render %s: %w", n.Org(), err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (b *Builder) renderNode(ctx context.Context, n *tree.Node, resources map[string]string) error {
	if err := n.Gates().Wait(ctx, gate.Prepare); err != nil {
		return err
	}
	abs, err := n.Abs()
	if err != nil {
		return err
	}
	target, err := n.Target()
	if err != nil {
		return err
	}

	if n.Kind() == tree.KindDir {
		return b.renderDir(ctx, n, abs, target)
	}
	switch c := n.File().(type) {
	case tree.Markdown:
		return b.renderDoc(ctx, c.Doc, target, resources)
	case tree.Binary:
		return b.fs.CopyFile(ctx, n.Org(), target)
	}
	return nil
}

func (b *Builder) renderDoc(ctx context.Context, doc *tree.Document, target string, resources map[string]string) error {
	body, images := render.Rewrite(doc.Raw, doc.Links, doc.BodyImages(), resources)
	doc.FinalizeImages(images)

	converted, err := render.ToHTML(body)
	if err != nil {
		return err
	}
	p := doc.Properties
	out, err := b.engine.Post(render.PostPage{
		Title:     doc.Title,
		Author:    p.Author,
		CreatedAt: p.CreatedAt,
		Aliases:   p.Aliases,
		Tags:      p.Tags,
		HTML:      converted,
	})
	if err != nil {
		return err
	}
	return b.fs.WriteFile(ctx, target, out)
}

func (b *Builder) renderDir(ctx context.Context, n *tree.Node, abs, target string) error {
	items, err := listItems(ctx, n.Children())
	if err != nil {
		return err
	}
	page := render.ListPage{Items: items}

	switch c := n.Dir().(type) {
	case tree.Entry:
		if c.IsPaged {
			page.Refresh = path.Join(abs, "1")
		}
	case tree.Page:
		page.Pages, page.Prop = pageControls(abs, c)
	}

	out, err := b.engine.List(page)
	if err != nil {
		return err
	}
	return b.fs.WriteFile(ctx, filepath.Join(target, indexFile), out)
}

// pageControls builds sibling page links for the page at abs.
func pageControls(abs string, p tree.Page) ([]render.PageLink, render.Pagination) {
	parent := path.Dir(abs)
	href := func(i int) string { return path.Join(parent, strconv.Itoa(i)) }

	w := PageWindow(p.Index, p.Total)
	var links []render.PageLink
	for _, i := range w.Pages() {
		links = append(links, render.PageLink{Index: i, Current: i == p.Index, Href: href(i)})
	}
	return links, render.Pagination{Paged: true, BottomHref: href(w.Bottom), TopHref: href(w.Top)}
}

// listItems describes the visible children: directory entries and
// documents. Page nodes and binaries are not listed. Reading a document's
// cover images waits for that document's image gate.
func listItems(ctx context.Context, children []*tree.Node) ([]render.ListItem, error) {
	var items []render.ListItem
	for _, c := range children {
		if err := c.Gates().Wait(ctx, gate.Prepare); err != nil {
			return nil, err
		}
		abs, err := c.Abs()
		if err != nil {
			return nil, err
		}

		if c.Kind() == tree.KindDir {
			e, ok := c.Dir().(tree.Entry)
			if !ok {
				continue
			}
			link := path.Join(abs, indexFile)
			if e.IsPaged {
				link = path.Join(abs, "1", indexFile)
			}
			items = append(items, render.ListItem{Link: link, Title: e.Key, ChildCount: e.ChildCount})
			continue
		}

		doc := c.Document()
		if doc == nil {
			continue
		}
		images, err := doc.Images(ctx)
		if err != nil {
			return nil, err
		}
		covers := make([]string, len(images))
		for i, u := range images {
			covers[i] = strings.ReplaceAll(u, " ", `\ `)
		}
		summary := doc.Summary
		if len(doc.Properties.Aliases) > 0 {
			summary = html.EscapeString(strings.Join(doc.Properties.Aliases, " "))
		}
		items = append(items, render.ListItem{
			Link:        abs,
			Title:       doc.Title,
			CreatedAt:   orUndefined(doc.Properties.CreatedAt),
			Author:      orUndefined(doc.Properties.Author),
			Summary:     summary,
			Pinned:      doc.Pinned(),
			CoverImages: covers,
		})
	}
	return items, nil
}

func orUndefined(s string) string {
	if s == "" {
		return undefined
	}
	return s
}
