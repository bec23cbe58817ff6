package site

import (
	"fmt"
	"sort"

	"github.com/starford/sowilo/internal/tree"
)

// sortKey orders siblings: higher priority first, directories before files,
// newer documents first, then by name.
type sortKey struct {
	priority int
	rank     int
	created  int64
	name     string
}

func (a sortKey) less(b sortKey) bool {
	if a.priority != b.priority {
		return a.priority < b.priority
	}
	if a.rank != b.rank {
		return a.rank < b.rank
	}
	if a.created != b.created {
		return a.created < b.created
	}
	return a.name < b.name
}

func keyOf(n *tree.Node) sortKey {
	if n.Kind() == tree.KindDir {
		return sortKey{name: n.Key()}
	}
	k := sortKey{rank: 1, name: n.Key()}
	if doc := n.Document(); doc != nil {
		k.priority = -doc.Priority()
		if !doc.CreatedAt.IsZero() {
			k.created = -doc.CreatedAt.Unix()
		}
	}
	return k
}

// SortChildren returns children in listing order. Every child must be
// prepared.
func SortChildren(children []*tree.Node) []*tree.Node {
	keys := make(map[*tree.Node]sortKey, len(children))
	for _, c := range children {
		keys[c] = keyOf(c)
	}
	out := append([]*tree.Node(nil), children...)
	sort.SliceStable(out, func(i, j int) bool { return keys[out[i]].less(keys[out[j]]) })
	return out
}

func pageable(n *tree.Node) bool {
	if n.Kind() == tree.KindDir {
		return true
	}
	_, bin := n.File().(tree.Binary)
	return !bin
}

// Paginate splits sorted children into Page nodes of at most size pageable
// children each when there are more than size of them. Binary children
// follow the pages, unpaged. It reports whether pages were made.
func Paginate(org string, sorted []*tree.Node, size int) ([]*tree.Node, bool) {
	if size < 1 {
		panic(fmt.Sprintf("site: page size %d", size))
	}
	var target, rest []*tree.Node
	for _, c := range sorted {
		if pageable(c) {
			target = append(target, c)
		} else {
			rest = append(rest, c)
		}
	}
	if len(target) <= size {
		return sorted, false
	}

	total := (len(target)-1)/size + 1
	out := make([]*tree.Node, 0, total+len(rest))
	for i := 0; i < total; i++ {
		end := min((i+1)*size, len(target))
		chunk := append([]*tree.Node(nil), target[i*size:end]...)
		out = append(out, tree.NewPage(org, i+1, total, chunk))
	}
	return append(out, rest...), true
}

// WindowHalfWidth is the number of page links shown on each side of the
// current page.
const WindowHalfWidth = 3

// Window is the range of page links around a current page and the first and
// last shortcut targets.
type Window struct {
	Start, End  int
	Bottom, Top int
}

// PageWindow computes the link window for page index of total. The three
// clamps run in order: shift right past 1, shift left under total, clamp
// the start to 1 again.
func PageWindow(index, total int) Window {
	start, end := index-WindowHalfWidth, index+WindowHalfWidth
	if start <= 0 {
		d := 1 - start
		start += d
		end += d
	}
	if end > total {
		d := end - total
		start -= d
		end -= d
	}
	if start <= 0 {
		start = 1
	}
	return Window{
		Start:  start,
		End:    end,
		Bottom: max(1, index-(WindowHalfWidth+1)),
		Top:    min(total, index+(WindowHalfWidth+1)),
	}
}

// Pages lists the integers of the window.
func (w Window) Pages() []int {
	var out []int
	for i := w.Start; i <= w.End; i++ {
		out = append(out, i)
	}
	return out
}
