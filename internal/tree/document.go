package tree

import (
	"context"
	"sort"
	"time"

	"github.com/starford/sowilo/internal/gate"
	"github.com/starford/sowilo/internal/parser"
)

// Document is a prepared Markdown file.
type Document struct {
	Raw        string
	Title      string
	Properties parser.Properties
	// CreatedAt is the zero time when created_at is absent.
	CreatedAt time.Time
	Summary   string
	Links     []parser.Link

	tokens map[string]struct{}

	// images starts as the body's image list and is finalized by Render,
	// which then opens the image gate.
	images []string
	gates  *gate.Set
}

// NewDocument builds a document from parse results and its token set.
func NewDocument(title string, res *parser.Result, created time.Time, tokens map[string]struct{}) *Document {
	return &Document{
		Raw:        res.Body,
		Title:      title,
		Properties: res.Properties,
		CreatedAt:  created,
		Summary:    res.Summary,
		Links:      res.Links,
		tokens:     tokens,
		images:     append([]string(nil), res.Images...),
		gates:      gate.New(gate.Image),
	}
}

// Tokens returns the token set in sorted order.
func (d *Document) Tokens() []string {
	out := make([]string, 0, len(d.tokens))
	for t := range d.tokens {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// HasToken reports whether t is in the token set.
func (d *Document) HasToken(t string) bool {
	_, ok := d.tokens[t]
	return ok
}

// Pinned reports whether the document carries an explicit priority.
func (d *Document) Pinned() bool { return d.Properties.Priority != nil }

// Priority returns the explicit priority or zero.
func (d *Document) Priority() int {
	if d.Properties.Priority == nil {
		return 0
	}
	return *d.Properties.Priority
}

// BodyImages returns the images found in the body at prepare time.
func (d *Document) BodyImages() []string { return d.images }

// FinalizeImages stores the rendered image list and opens the image gate.
// A second call panics.
func (d *Document) FinalizeImages(images []string) {
	if d.gates.IsOpen(gate.Image) {
		panic("tree: images of " + d.Title + " finalized twice")
	}
	d.images = images
	d.gates.Open(gate.Image)
}

// Images waits for the image gate and returns the finalized list.
func (d *Document) Images(ctx context.Context) ([]string, error) {
	if err := d.gates.Wait(ctx, gate.Image); err != nil {
		return nil, err
	}
	return d.images, nil
}
