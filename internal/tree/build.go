package tree

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
)

// Build walks every root and returns a synthetic root directory whose
// children are the root trees, in the given order. Hidden entries below a
// root and the entries at or below any exclude path are not part of the
// tree. Only directory listings are read.
func Build(roots []string, exclude ...string) (*Node, error) {
	skip := make([]string, 0, len(exclude))
	for _, p := range exclude {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("tree: resolve %s: %w", p, err)
		}
		skip = append(skip, abs)
	}

	top := NewDir("", "")
	for _, root := range roots {
		n, err := buildOne(root, skip)
		if err != nil {
			return nil, err
		}
		top.AddChild(n)
	}
	return top, nil
}

func buildOne(root string, skip []string) (*Node, error) {
	root = filepath.Clean(root)
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("tree: resolve %s: %w", root, err)
	}

	var (
		first *Node
		stack []*Node
	)
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("tree: walk %s: %w", p, err)
		}
		if p != root && (IsHidden(d.Name()) || excluded(p, skip)) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		parent := filepath.Dir(p)
		for len(stack) > 0 && stack[len(stack)-1].Org() != parent {
			stack = stack[:len(stack)-1]
		}

		name := d.Name()
		if p == root {
			name = filepath.Base(abs)
		}
		var n *Node
		if d.IsDir() {
			n = NewDir(p, name)
		} else {
			n = NewFile(p, OutputName(name))
		}

		if first == nil {
			first = n
		} else if len(stack) > 0 {
			stack[len(stack)-1].AddChild(n)
		}
		if d.IsDir() {
			stack = append(stack, n)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return first, nil
}

// excluded reports whether p is one of skip or lies below one.
func excluded(p string, skip []string) bool {
	if len(skip) == 0 {
		return false
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return false
	}
	for _, s := range skip {
		if abs == s || strings.HasPrefix(abs, s+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// Flatten returns every node reachable from root, breadth first.
func Flatten(root *Node) []*Node {
	return collect(root, func(*Node) bool { return true })
}

// FlattenDirs returns every directory node, breadth first.
func FlattenDirs(root *Node) []*Node {
	return collect(root, func(n *Node) bool { return n.Kind() == KindDir })
}

// FlattenFiles returns every file node, breadth first.
func FlattenFiles(root *Node) []*Node {
	return collect(root, func(n *Node) bool { return n.Kind() == KindFile })
}

func collect(root *Node, keep func(*Node) bool) []*Node {
	var out []*Node
	queue := []*Node{root}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if keep(n) {
			out = append(out, n)
		}
		queue = append(queue, n.Children()...)
	}
	return out
}
