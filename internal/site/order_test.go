package site

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/sowilo/internal/gate"
	"github.com/starford/sowilo/internal/parser"
	"github.com/starford/sowilo/internal/testutil"
	"github.com/starford/sowilo/internal/tree"
)

func doc(t *testing.T, name string, priority *int, created string) *tree.Node {
	t.Helper()
	var at time.Time
	if created != "" {
		var err error
		if at, err = parser.ParseDate(created); err != nil {
			t.Fatal(err)
		}
	}
	res := &parser.Result{Properties: parser.Properties{Priority: priority, CreatedAt: created}}
	n := tree.NewFile(name+".md", name+".html")
	n.SetFile(tree.Markdown{Key: name, Doc: tree.NewDocument(name, res, at, nil)})
	n.Gates().Open(gate.Prepare)
	return n
}

func keys(nodes []*tree.Node) []string {
	var out []string
	for _, n := range nodes {
		out = append(out, n.Key())
	}
	return out
}

func TestSortChildren_PriorityKindDateName(t *testing.T) {
	five := 5
	children := []*tree.Node{
		doc(t, "b", nil, "2020-01-01"),
		doc(t, "a", &five, ""),
		testutil.Dir("z-dir"),
	}
	if diff := cmp.Diff([]string{"a", "z-dir", "b"}, keys(SortChildren(children))); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestSortChildren_NewestFirstThenName(t *testing.T) {
	one := 1
	children := []*tree.Node{
		doc(t, "old", nil, "2019-05-01"),
		testutil.Binary("pic.png"),
		doc(t, "new", nil, "2021-05-01"),
		doc(t, "undated-b", nil, ""),
		doc(t, "undated-a", nil, ""),
		testutil.Dir("b-dir"),
		testutil.Dir("a-dir"),
		doc(t, "pinned", &one, "2000-01-01"),
	}
	want := []string{"pinned", "a-dir", "b-dir", "new", "old", "pic.png", "undated-a", "undated-b"}
	if diff := cmp.Diff(want, keys(SortChildren(children))); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestSortChildren_DoesNotModifyInput(t *testing.T) {
	children := []*tree.Node{testutil.Dir("b"), testutil.Dir("a")}
	SortChildren(children)
	if children[0].Key() != "b" {
		t.Error("input reordered")
	}
}

func TestPageWindow_Fixtures(t *testing.T) {
	tests := []struct {
		index, total int
		pages        []int
		bottom, top  int
	}{
		{1, 10, []int{1, 2, 3, 4, 5, 6, 7}, 1, 5},
		{5, 10, []int{2, 3, 4, 5, 6, 7, 8}, 1, 9},
		{10, 10, []int{4, 5, 6, 7, 8, 9, 10}, 6, 10},
		{2, 3, []int{1, 2, 3}, 1, 3},
		{1, 1, []int{1}, 1, 1},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_of_%d", tt.index, tt.total), func(t *testing.T) {
			w := PageWindow(tt.index, tt.total)
			if diff := cmp.Diff(tt.pages, w.Pages()); diff != "" {
				t.Errorf("pages mismatch (-want +got):\n%s", diff)
			}
			if w.Bottom != tt.bottom || w.Top != tt.top {
				t.Errorf("bottom, top = %d, %d, want %d, %d", w.Bottom, w.Top, tt.bottom, tt.top)
			}
		})
	}
}

func TestPaginate_TwentyFiveChildren(t *testing.T) {
	var children []*tree.Node
	for i := 0; i < 25; i++ {
		children = append(children, doc(t, fmt.Sprintf("doc%02d", i), nil, ""))
	}
	children = append(children, testutil.Binary("x.png"), testutil.Binary("y.png"))
	sorted := SortChildren(children)

	out, paged := Paginate("/src", sorted, 10)
	if !paged {
		t.Fatal("expected pagination")
	}
	if len(out) != 5 {
		t.Fatalf("children = %d, want 3 pages and 2 binaries", len(out))
	}

	var union []*tree.Node
	for i, p := range out[:3] {
		if !p.Ready() {
			t.Errorf("page %d not born ready", i+1)
		}
		pg, ok := p.Dir().(tree.Page)
		if !ok || pg.Index != i+1 || pg.Total != 3 {
			t.Errorf("page %d = %+v", i+1, p.Dir())
		}
		if p.Rel() != fmt.Sprint(i+1) || p.Org() != "/src" {
			t.Errorf("page %d path = %q %q", i+1, p.Rel(), p.Org())
		}
		union = append(union, p.Children()...)
	}
	if len(out[2].Children()) != 5 {
		t.Errorf("last page holds %d", len(out[2].Children()))
	}
	if diff := cmp.Diff(keys(sorted[:25]), keys(union)); diff != "" {
		t.Errorf("pages do not reconstruct the order (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"x.png", "y.png"}, keys(out[3:])); diff != "" {
		t.Errorf("binaries mismatch (-want +got):\n%s", diff)
	}
}

func TestPaginate_AtPageSizeKeepsChildren(t *testing.T) {
	var children []*tree.Node
	for i := 0; i < 10; i++ {
		children = append(children, testutil.Dir(fmt.Sprintf("d%d", i)))
	}
	children = append(children, testutil.Binary("z.bin"))
	out, paged := Paginate("/src", children, 10)
	if paged || len(out) != 11 {
		t.Errorf("paged = %v, len = %d", paged, len(out))
	}
}
