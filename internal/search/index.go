package search

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/starford/sowilo/internal/storage"
	"github.com/starford/sowilo/internal/tokenizer"
	"github.com/starford/sowilo/internal/tree"
)

// FileName is the index file written into every directory.
const FileName = "searchindex"

// Entry is one searchable document.
type Entry struct {
	_msgpack struct{} `msgpack:",as_array"`

	Filter Filter
	Title  string
	Rel    string
}

// Encode serializes entries as a length-prefixed msgpack array.
func Encode(entries []Entry) ([]byte, error) {
	if entries == nil {
		entries = []Entry{}
	}
	data, err := msgpack.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("search: encode: %w", err)
	}
	return data, nil
}

// Decode parses an index file.
func Decode(data []byte) ([]Entry, error) {
	var entries []Entry
	if err := msgpack.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("search: decode: %w", err)
	}
	return entries, nil
}

// Assemble walks the tree bottom up. Every Markdown leaf yields one entry;
// every directory writes the entries of all documents beneath it to
// <target>/searchindex and hands them to its parent.
func Assemble(ctx context.Context, n *tree.Node, fs storage.Provider) ([]Entry, error) {
	if n.Kind() == tree.KindFile {
		doc := n.Document()
		if doc == nil {
			return nil, nil
		}
		rel, err := n.Abs()
		if err != nil {
			return nil, err
		}
		f, err := NewFilter(doc.Tokens())
		if err != nil {
			return nil, fmt.Errorf("search: %s: %w", rel, err)
		}
		return []Entry{{Filter: f, Title: doc.Title, Rel: rel}}, nil
	}

	var entries []Entry
	for _, c := range n.Children() {
		sub, err := Assemble(ctx, c, fs)
		if err != nil {
			return nil, err
		}
		entries = append(entries, sub...)
	}

	target, err := n.Target()
	if err != nil {
		return nil, err
	}
	if err := Write(ctx, fs, filepath.Join(target, FileName), entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Write encodes entries to path.
func Write(ctx context.Context, fs storage.Provider, path string, entries []Entry) error {
	data, err := Encode(entries)
	if err != nil {
		return err
	}
	return fs.WriteFile(ctx, path, data)
}

// Hit is a matching document and the number of query tokens it matched.
type Hit struct {
	Title   string
	Rel     string
	Matched int
}

// Query returns the entries containing every token of q, split on
// non-alphanumerics and lower-cased. Hits are ranked by matched token count,
// keeping index order among equals.
func Query(entries []Entry, q string) []Hit {
	tokens, _ := tokenizer.Builtin{}.Tokenize(context.Background(), q)
	if len(tokens) == 0 {
		return nil
	}

	var hits []Hit
	for _, e := range entries {
		matched := 0
		for _, t := range tokens {
			if !e.Filter.Contains(t) {
				matched = 0
				break
			}
			matched++
		}
		if matched > 0 {
			hits = append(hits, Hit{Title: e.Title, Rel: e.Rel, Matched: matched})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Matched > hits[j].Matched })
	return hits
}
