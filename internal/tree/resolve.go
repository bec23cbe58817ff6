package tree

import (
	"path"
	"path/filepath"
)

// CollectDir is the URL segment collected documents are moved under.
const CollectDir = "post"

// Resolve assigns every node its public URL and output location in one
// breadth-first pass. With collect set, Markdown leaves live under
// /post/<name> instead of mirroring their tree position.
func Resolve(root *Node, outRoot string, collect bool) {
	type item struct {
		n   *Node
		acc string
	}
	queue := []item{{root, ""}}
	for len(queue) > 0 {
		it := queue[0]
		queue = queue[1:]

		acc := path.Join(it.acc, it.n.Rel())
		if collect && it.n.Kind() == KindFile {
			if _, ok := it.n.File().(Markdown); ok {
				acc = path.Join(CollectDir, it.n.Rel())
			}
		}
		it.n.SetResolved("/"+acc, filepath.Join(outRoot, filepath.FromSlash(acc)))

		for _, c := range it.n.Children() {
			queue = append(queue, item{c, acc})
		}
	}
}

// ResourceMap maps every file's key to its public URL. Markdown files are
// keyed by stem, binaries by full file name. On a clash the file visited
// last in breadth-first order wins.
func ResourceMap(root *Node) (map[string]string, error) {
	m := make(map[string]string)
	for _, n := range FlattenFiles(root) {
		abs, err := n.Abs()
		if err != nil {
			return nil, err
		}
		m[n.Key()] = abs
	}
	return m, nil
}
