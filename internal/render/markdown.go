package render

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/starford/sowilo/internal/parser"
)

var (
	md = goldmark.New(goldmark.WithExtensions(extension.GFM))

	headingRes = func() [6]*regexp.Regexp {
		var out [6]*regexp.Regexp
		for i := range out {
			out[i] = regexp.MustCompile(fmt.Sprintf(`(?s)<h%d>(.*?)</h%d>`, i+1, i+1))
		}
		return out
	}()
)

// Unresolved is the link target used for names missing from the resource
// map.
const Unresolved = "/"

// Rewrite replaces every wiki-link occurrence in raw with a Markdown link
// or image resolved through resources. It returns the rewritten body and the
// document's image list: each resolved local image is put in front of the
// body images, the last link ending up first. Rewrite does not modify its
// inputs.
func Rewrite(raw string, links []parser.Link, bodyImages []string, resources map[string]string) (string, []string) {
	images := append([]string(nil), bodyImages...)

	var b strings.Builder
	b.Grow(len(raw))
	pos := 0
	for _, l := range links {
		b.WriteString(raw[pos:l.Start])
		target, ok := resources[l.Name]
		if !ok {
			target = Unresolved
		}
		if l.Kind == parser.LinkImage {
			b.WriteByte('!')
			if ok {
				images = append([]string{target}, images...)
			}
		}
		fmt.Fprintf(&b, "[%s](%s)", l.Name, strings.ReplaceAll(target, " ", "%20"))
		pos = l.End
	}
	b.WriteString(raw[pos:])
	return b.String(), images
}

// ToHTML converts Markdown to HTML and gives every heading an id equal to
// its inner content.
func ToHTML(src string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("render: markdown: %w", err)
	}
	return HeadingIDs(buf.String()), nil
}

// HeadingIDs injects id attributes into bare <h1>..<h6> tags.
func HeadingIDs(html string) string {
	for i, re := range headingRes {
		html = re.ReplaceAllString(html, fmt.Sprintf(`<h%d id="${1}">${1}</h%d>`, i+1, i+1))
	}
	return html
}
