// Package render turns prepared nodes into HTML: Markdown conversion with
// wiki-link rewriting, and page templates.
package render

import (
	"embed"
	"fmt"
	"io/fs"
	"os"

	"github.com/flosch/pongo2/v6"
)

//go:embed templates/*.html
var builtin embed.FS

const (
	listTemplate = "list.html"
	postTemplate = "post.html"
)

// ListItem is one entry of a directory listing.
type ListItem struct {
	Link        string
	Title       string
	CreatedAt   string
	Author      string
	Summary     string
	ChildCount  int
	Pinned      bool
	CoverImages []string
}

// PageLink is one numbered pagination control.
type PageLink struct {
	Index   int
	Current bool
	Href    string
}

// Pagination carries the first/last shortcuts of a paged listing.
type Pagination struct {
	Paged      bool
	BottomHref string
	TopHref    string
}

// ListPage is the data behind a directory's index.html.
type ListPage struct {
	// Refresh, when set, redirects to the first page of a paged directory.
	Refresh string
	Items   []ListItem
	Pages   []PageLink
	Prop    Pagination
}

// PostPage is the data behind a document page.
type PostPage struct {
	Title     string
	Author    string
	CreatedAt string
	Aliases   []string
	Tags      []string
	HTML      string
}

// Engine renders list.html and post.html from a template directory, or the
// built-in templates when none is given.
type Engine struct {
	list    *pongo2.Template
	post    *pongo2.Template
	profile Profile
}

// NewEngine loads list.html and post.html from dir ("" for built-ins).
func NewEngine(dir string, profile Profile) (*Engine, error) {
	var src fs.FS
	if dir == "" {
		sub, err := fs.Sub(builtin, "templates")
		if err != nil {
			return nil, fmt.Errorf("render: builtin templates: %w", err)
		}
		src = sub
	} else {
		src = os.DirFS(dir)
	}

	set := pongo2.NewSet("sowilo", pongo2.NewFSLoader(src))
	list, err := set.FromFile(listTemplate)
	if err != nil {
		return nil, fmt.Errorf("render: load %s: %w", listTemplate, err)
	}
	post, err := set.FromFile(postTemplate)
	if err != nil {
		return nil, fmt.Errorf("render: load %s: %w", postTemplate, err)
	}
	return &Engine{list: list, post: post, profile: profile}, nil
}

// List renders a directory listing.
func (e *Engine) List(p ListPage) ([]byte, error) {
	out, err := e.list.ExecuteBytes(pongo2.Context{
		"profile": e.profile,
		"refresh": p.Refresh,
		"list":    p.Items,
		"pages":   p.Pages,
		"prop":    p.Prop,
	})
	if err != nil {
		return nil, fmt.Errorf("render: %s: %w", listTemplate, err)
	}
	return out, nil
}

// Post renders a document page.
func (e *Engine) Post(p PostPage) ([]byte, error) {
	out, err := e.post.ExecuteBytes(pongo2.Context{
		"profile":    e.profile,
		"title":      p.Title,
		"aliases":    p.Aliases,
		"author":     p.Author,
		"created_at": p.CreatedAt,
		"tags":       p.Tags,
		"post":       p.HTML,
	})
	if err != nil {
		return nil, fmt.Errorf("render: %s: %w", postTemplate, err)
	}
	return out, nil
}
