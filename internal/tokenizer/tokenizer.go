// Package tokenizer turns document text into search tokens.
//
// The build only depends on the Tokenizer interface. Pool runs external
// line-protocol morphological analyzers; Builtin is the in-process fallback
// used when no command is configured.
package tokenizer

import (
	"context"
	_ "embed"
	"strings"
	"unicode"
)

// Tokenizer segments one piece of text into tokens.
type Tokenizer interface {
	Tokenize(ctx context.Context, text string) ([]string, error)
	Close() error
}

//go:embed stopwords.txt
var stopwordList string

var stopwords = func() map[string]struct{} {
	m := make(map[string]struct{})
	for _, w := range strings.Fields(stopwordList) {
		m[w] = struct{}{}
	}
	return m
}()

// IsStopword reports whether w (compared lower-cased) carries no search value.
func IsStopword(w string) bool {
	_, ok := stopwords[strings.ToLower(w)]
	return ok
}

// Split breaks s on every rune for which keep is false, dropping empties.
func Split(s string, keep func(rune) bool) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return !keep(r) })
}

// Letters keeps alphabetic runes.
func Letters(r rune) bool { return unicode.IsLetter(r) }

// Alnum keeps alphabetic and numeric runes.
func Alnum(r rune) bool { return unicode.IsLetter(r) || unicode.IsNumber(r) }

// Builtin is an in-process Tokenizer that splits on non-alphanumerics and
// lower-cases every word.
type Builtin struct{}

// Tokenize implements Tokenizer.
func (Builtin) Tokenize(_ context.Context, text string) ([]string, error) {
	words := Split(text, Alnum)
	out := words[:0]
	for _, w := range words {
		out = append(out, strings.ToLower(w))
	}
	return out, nil
}

// Close implements Tokenizer.
func (Builtin) Close() error { return nil }

var _ Tokenizer = Builtin{}
