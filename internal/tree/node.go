// Package tree models the content forest as shared nodes whose
// classification and output paths are written once and then frozen.
package tree

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/starford/sowilo/internal/apperr"
	"github.com/starford/sowilo/internal/gate"
)

// Kind tells directories and files apart before classification.
type Kind int

const (
	KindDir Kind = iota
	KindFile
)

func (k Kind) String() string {
	if k == KindDir {
		return "dir"
	}
	return "file"
}

// DirClass is the classification of a directory node: Entry or Page.
type DirClass interface{ dirClass() }

// Entry is a directory present on disk.
type Entry struct {
	Key        string
	ChildCount int
	IsPaged    bool
}

// Page is a synthetic directory holding one chunk of a paginated listing.
type Page struct {
	Index int
	Total int
}

func (Entry) dirClass() {}
func (Page) dirClass()  {}

// FileClass is the classification of a file node: Markdown or Binary.
type FileClass interface{ fileClass() }

// Markdown is a parsed document.
type Markdown struct {
	Key string
	Doc *Document
}

// Binary is any other file, copied verbatim.
type Binary struct {
	Key string
}

func (Markdown) fileClass() {}
func (Binary) fileClass()   {}

// Path holds the locations of a node. Org and Rel are fixed at creation;
// the public URL and output location are set once by Resolve.
type Path struct {
	// Org is the source location on disk.
	Org string
	// Rel is this node's own URL segment: a directory name, "<stem>.html",
	// a file name, or a page number.
	Rel string

	abs      string
	target   string
	resolved atomic.Bool
}

// Node is a tree entity shared by reference between the tree and the tasks
// processing it.
type Node struct {
	kind  Kind
	path  Path
	gates *gate.Set

	// children are reordered and paginated only by this node's Prepare task,
	// before its prepare gate opens.
	children []*Node

	dir  DirClass
	file FileClass
}

// NewDir returns an unclassified directory node.
func NewDir(org, rel string) *Node {
	return &Node{kind: KindDir, path: Path{Org: org, Rel: rel}, gates: gate.New(gate.Prepare)}
}

// NewFile returns an unclassified file node.
func NewFile(org, rel string) *Node {
	return &Node{kind: KindFile, path: Path{Org: org, Rel: rel}, gates: gate.New(gate.Prepare)}
}

// NewPage returns a Page directory that is born ready: its children are
// already prepared.
func NewPage(org string, index, total int, children []*Node) *Node {
	n := &Node{
		kind:     KindDir,
		path:     Path{Org: org, Rel: fmt.Sprint(index)},
		gates:    gate.NewOpen(gate.Prepare),
		children: children,
		dir:      Page{Index: index, Total: total},
	}
	return n
}

func (n *Node) Kind() Kind       { return n.kind }
func (n *Node) Org() string      { return n.path.Org }
func (n *Node) Rel() string      { return n.path.Rel }
func (n *Node) Gates() *gate.Set { return n.gates }

// Children returns the node's current children. The slice must not be
// modified by callers.
func (n *Node) Children() []*Node { return n.children }

// AddChild appends c. Only the tree builder calls it.
func (n *Node) AddChild(c *Node) { n.children = append(n.children, c) }

// SetChildren replaces the child list. Only the node's Prepare task, or a
// test constructing a tree by hand, calls it.
func (n *Node) SetChildren(c []*Node) {
	if n.gates.IsOpen(gate.Prepare) {
		panic(fmt.Sprintf("tree: children of %s changed after prepare", n))
	}
	n.children = c
}

// Ready reports whether n's classification may be read.
func (n *Node) Ready() bool { return n.gates.IsOpen(gate.Prepare) }

// SetDir records the directory classification. It panics on a file node
// or on a second write.
func (n *Node) SetDir(c DirClass) {
	if n.kind != KindDir {
		panic(fmt.Sprintf("tree: SetDir on %s", n))
	}
	if n.dir != nil {
		panic(fmt.Sprintf("tree: %s classified twice", n))
	}
	n.dir = c
}

// SetFile records the file classification. It panics on a directory node
// or on a second write.
func (n *Node) SetFile(c FileClass) {
	if n.kind != KindFile {
		panic(fmt.Sprintf("tree: SetFile on %s", n))
	}
	if n.file != nil {
		panic(fmt.Sprintf("tree: %s classified twice", n))
	}
	n.file = c
}

// Dir returns the directory classification. Reading it before the prepare
// gate opens panics.
func (n *Node) Dir() DirClass {
	n.mustBeReady()
	if n.kind != KindDir {
		panic(fmt.Sprintf("tree: Dir on %s", n))
	}
	return n.dir
}

// File returns the file classification. Reading it before the prepare gate
// opens panics.
func (n *Node) File() FileClass {
	n.mustBeReady()
	if n.kind != KindFile {
		panic(fmt.Sprintf("tree: File on %s", n))
	}
	return n.file
}

// Key is the stable name of a classified node.
func (n *Node) Key() string {
	if n.kind == KindDir {
		switch c := n.Dir().(type) {
		case Entry:
			return c.Key
		case Page:
			return fmt.Sprint(c.Index)
		}
		return ""
	}
	switch c := n.File().(type) {
	case Markdown:
		return c.Key
	case Binary:
		return c.Key
	}
	return ""
}

// Document returns the parsed document of a Markdown node, or nil.
func (n *Node) Document() *Document {
	if n.kind != KindFile {
		return nil
	}
	if md, ok := n.File().(Markdown); ok {
		return md.Doc
	}
	return nil
}

func (n *Node) mustBeReady() {
	if !n.gates.IsOpen(gate.Prepare) {
		panic(fmt.Sprintf("tree: %s read before prepare", n))
	}
}

// SetResolved records the public URL and output location. It panics on a
// second write.
func (n *Node) SetResolved(abs, target string) {
	if n.path.resolved.Load() {
		panic(fmt.Sprintf("tree: %s resolved twice", n))
	}
	n.path.abs = abs
	n.path.target = target
	n.path.resolved.Store(true)
}

// Abs returns the public URL.
func (n *Node) Abs() (string, error) {
	if !n.path.resolved.Load() {
		return "", fmt.Errorf("tree: abs path of %s: %w", n, apperr.ErrNotReady)
	}
	return n.path.abs, nil
}

// Target returns the output location.
func (n *Node) Target() (string, error) {
	if !n.path.resolved.Load() {
		return "", fmt.Errorf("tree: target path of %s: %w", n, apperr.ErrNotReady)
	}
	return n.path.target, nil
}

func (n *Node) String() string {
	name := n.path.Rel
	if name == "" {
		name = "/"
	}
	return n.kind.String() + " " + name
}

// IsHidden reports whether a file name is a dotfile.
func IsHidden(name string) bool { return strings.HasPrefix(name, ".") }

// OutputName maps a source file name to its output name: "<stem>.html" for
// Markdown, unchanged otherwise.
func OutputName(name string) string {
	if IsMarkdown(name) {
		return Stem(name) + ".html"
	}
	return name
}

// IsMarkdown reports whether name has the .md extension.
func IsMarkdown(name string) bool { return filepath.Ext(name) == ".md" }

// Stem returns name without its extension.
func Stem(name string) string { return strings.TrimSuffix(name, filepath.Ext(name)) }
