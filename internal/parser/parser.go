// Package parser extracts front-matter, text, images and wiki-links from
// Markdown content.
package parser

import (
	"bytes"
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/adrg/frontmatter"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"

	"github.com/starford/sowilo/internal/apperr"
)

// SummaryLimit is the number of text bytes after which the summary stops
// growing.
const SummaryLimit = 300

// DateLayout is the accepted created_at format.
const DateLayout = "2006-01-02"

var (
	wikilinkRe = regexp.MustCompile(`\[\[([^\[\]]*)\]\]`)

	yamlFormat = frontmatter.NewFormat("---", "---", yaml.Unmarshal)

	md = goldmark.New(goldmark.WithExtensions(extension.GFM))
)

// Properties holds the recognised front-matter keys.
type Properties struct {
	Title     string   `yaml:"title"`
	Author    string   `yaml:"author"`
	Aliases   []string `yaml:"aliases"`
	CreatedAt string   `yaml:"created_at"`
	Tags      []string `yaml:"tags"`
	Priority  *int     `yaml:"priority"`
}

// LinkKind distinguishes hyperlinks from embedded images.
type LinkKind int

const (
	// LinkResource is a plain [[name]] reference.
	LinkResource LinkKind = iota
	// LinkImage is a ![[name]] reference.
	LinkImage
)

// Link is one wiki-link occurrence in the body. Start and End are byte
// offsets into Result.Body; for images Start covers the leading '!'.
type Link struct {
	Start int
	End   int
	Kind  LinkKind
	Name  string
}

// Result holds the output of parsing a Markdown file.
type Result struct {
	Properties Properties
	Body       string
	// Lines are the distinct text lines in document order, the raw material
	// for tokenization.
	Lines   []string
	Summary string
	Links   []Link
	Images  []string
}

// Parse splits front-matter from body and walks the body's syntax tree.
// Malformed front-matter is an error.
func Parse(data []byte) (*Result, error) {
	var props Properties
	body, err := frontmatter.Parse(bytes.NewReader(data), &props, yamlFormat)
	if err != nil {
		return nil, fmt.Errorf("parser: front-matter: %w: %w", apperr.ErrParse, err)
	}

	res := &Result{Properties: props, Body: string(body)}
	excluded := res.walk(body)
	res.Links = scanLinks(res.Body, excluded)
	return res, nil
}

// ParseDate parses a created_at value.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("parser: created_at %q: %w: %w", s, apperr.ErrParse, err)
	}
	return t, nil
}

type span struct{ start, stop int }

// walk collects lines, summary and images, returning the byte ranges of code
// content where wiki-links are not recognised.
func (r *Result) walk(src []byte) []span {
	var (
		excluded []span
		summary  []string
		size     int
		seen     = map[string]struct{}{}
		line     strings.Builder
	)

	addSummary := func(s string) {
		if size >= SummaryLimit {
			return
		}
		summary = append(summary, html.EscapeString(strings.TrimSpace(s)))
		size += len(s)
	}
	flush := func() {
		if line.Len() == 0 {
			return
		}
		s := line.String()
		line.Reset()
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			r.Lines = append(r.Lines, s)
		}
		addSummary(s)
	}

	doc := md.Parser().Parse(text.NewReader(src))
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock {
				flush()
			}
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Text:
			line.Write(node.Segment.Value(src))
			if node.SoftLineBreak() || node.HardLineBreak() {
				flush()
			}
		case *ast.CodeSpan:
			var code strings.Builder
			for c := node.FirstChild(); c != nil; c = c.NextSibling() {
				if t, ok := c.(*ast.Text); ok {
					code.Write(t.Segment.Value(src))
					excluded = append(excluded, span{t.Segment.Start, t.Segment.Stop})
				}
			}
			addSummary(code.String())
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				excluded = append(excluded, span{seg.Start, seg.Stop})
				for _, l := range strings.Split(string(seg.Value(src)), "\n") {
					if l != "" {
						addSummary(l)
					}
				}
			}
			return ast.WalkSkipChildren, nil
		case *ast.Image:
			r.Images = append(r.Images, string(node.Destination))
		}
		return ast.WalkContinue, nil
	})
	flush()

	r.Summary = strings.Join(summary, " ")
	return excluded
}

// scanLinks finds [[name]] occurrences outside code. A '!' directly before
// the brackets makes the occurrence an image.
func scanLinks(body string, excluded []span) []Link {
	var out []Link
	for _, m := range wikilinkRe.FindAllStringSubmatchIndex(body, -1) {
		start, end := m[0], m[1]
		if inCode(start, end, excluded) {
			continue
		}
		l := Link{Start: start, End: end, Kind: LinkResource, Name: body[m[2]:m[3]]}
		if start > 0 && body[start-1] == '!' {
			l.Start = start - 1
			l.Kind = LinkImage
		}
		out = append(out, l)
	}
	return out
}

func inCode(start, end int, excluded []span) bool {
	for _, s := range excluded {
		if start < s.stop && end > s.start {
			return true
		}
	}
	return false
}
