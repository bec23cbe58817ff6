package parser

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/sowilo/internal/apperr"
)

func TestParse_FrontmatterAndBody(t *testing.T) {
	input := []byte("---\ntitle: Hello\nauthor: kim\ncreated_at: 2020-01-02\npriority: 3\ntags:\n  - go\n  - site\n---\n# Hello\nBody text.\n")
	r, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p := r.Properties
	if p.Title != "Hello" || p.Author != "kim" || p.CreatedAt != "2020-01-02" {
		t.Errorf("properties = %+v", p)
	}
	if p.Priority == nil || *p.Priority != 3 {
		t.Errorf("priority = %v, want 3", p.Priority)
	}
	if diff := cmp.Diff([]string{"go", "site"}, p.Tags); diff != "" {
		t.Errorf("tags mismatch (-want +got):\n%s", diff)
	}
	if strings.TrimSpace(r.Body) != "# Hello\nBody text." {
		t.Errorf("body = %q", r.Body)
	}
}

func TestParse_NoFrontmatter(t *testing.T) {
	r, err := Parse([]byte("# Just a heading\nSome text.\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Properties.Priority != nil || r.Properties.Title != "" {
		t.Errorf("expected empty properties, got %+v", r.Properties)
	}
	if !strings.Contains(r.Body, "Some text.") {
		t.Errorf("body = %q", r.Body)
	}
}

func TestParse_InvalidYAMLIsFatal(t *testing.T) {
	_, err := Parse([]byte("---\n: invalid: yaml: {{{\n---\nBody\n"))
	if !errors.Is(err, apperr.ErrParse) {
		t.Fatalf("err = %v, want ErrParse", err)
	}
}

func TestParse_LinesFollowTextNodes(t *testing.T) {
	r, err := Parse([]byte("Hello *big* world\nsecond line\n\n# Title\n\nHello *big* world\n"))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"Hello big world", "second line", "Title"}
	if diff := cmp.Diff(want, r.Lines); diff != "" {
		t.Errorf("lines mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_SummaryIsEscapedAndCapped(t *testing.T) {
	var b strings.Builder
	b.WriteString("a < b & c\n\n")
	for i := 0; i < 100; i++ {
		b.WriteString("paragraph text\n\n")
	}
	r, err := Parse([]byte(b.String()))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(r.Summary, "a &lt; b &amp; c ") {
		t.Errorf("summary = %q", r.Summary)
	}
	if n := strings.Count(r.Summary, "paragraph text"); n == 0 || n >= 100 {
		t.Errorf("summary holds %d paragraphs, want a capped prefix", n)
	}
	if len(r.Summary) > SummaryLimit+64 {
		t.Errorf("summary length %d exceeds cap", len(r.Summary))
	}
}

func TestParse_Images(t *testing.T) {
	r, err := Parse([]byte("![one](https://example.com/a.png)\n\ntext ![two](b.png)\n"))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"https://example.com/a.png", "b.png"}, r.Images); diff != "" {
		t.Errorf("images mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_WikiLinks(t *testing.T) {
	body := "See [[Note A]] and ![[cat.png]].\n"
	r, err := Parse([]byte(body))
	if err != nil {
		t.Fatal(err)
	}
	want := []Link{
		{Start: 4, End: 14, Kind: LinkResource, Name: "Note A"},
		{Start: 19, End: 31, Kind: LinkImage, Name: "cat.png"},
	}
	if diff := cmp.Diff(want, r.Links); diff != "" {
		t.Errorf("links mismatch (-want +got):\n%s", diff)
	}
	for _, l := range r.Links {
		got := r.Body[l.Start:l.End]
		if !strings.HasSuffix(got, "[["+l.Name+"]]") {
			t.Errorf("offsets %d:%d cover %q", l.Start, l.End, got)
		}
	}
}

func TestParse_WikiLinksInCodeAreIgnored(t *testing.T) {
	body := "`[[inline]]` and [[Real]]\n\n```\n[[block]]\n```\n\n    [[indented]]\n"
	r, err := Parse([]byte(body))
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Links) != 1 || r.Links[0].Name != "Real" {
		t.Errorf("links = %+v, want only Real", r.Links)
	}
}

func TestParse_EmptyWikiLink(t *testing.T) {
	r, err := Parse([]byte("an [[]] link\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Links) != 1 || r.Links[0].Name != "" {
		t.Errorf("links = %+v", r.Links)
	}
}

func TestParseDate(t *testing.T) {
	got, err := ParseDate("2020-01-02")
	if err != nil {
		t.Fatal(err)
	}
	if got.Unix() != 1577923200 {
		t.Errorf("unix = %d", got.Unix())
	}
	if _, err := ParseDate("02/01/2020"); !errors.Is(err, apperr.ErrParse) {
		t.Errorf("err = %v, want ErrParse", err)
	}
}
