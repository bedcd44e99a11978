// Package sanitize reduces user-submitted text to plain text before it is
// shown to other users.
package sanitize

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Text strips markup from s and returns the trimmed plain text. Contents
// of script and style elements are dropped and entities are decoded.
func Text(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.TrimSpace(s)
	}
	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	skip := 0
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			// io.EOF or a malformed tail; keep what was read.
			return strings.TrimSpace(b.String())
		case html.StartTagToken:
			tok := z.Token()
			if isRaw(tok.DataAtom) {
				skip++
			}
			if tok.DataAtom == atom.Br || tok.DataAtom == atom.P {
				b.WriteString("\n")
			}
		case html.EndTagToken:
			tok := z.Token()
			if isRaw(tok.DataAtom) && skip > 0 {
				skip--
			}
		case html.SelfClosingTagToken:
			if z.Token().DataAtom == atom.Br {
				b.WriteString("\n")
			}
		case html.TextToken:
			if skip == 0 {
				b.WriteString(z.Token().Data)
			}
		}
	}
}

// Lines applies Text to every element and drops the ones left empty.
func Lines(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if clean := Text(item); clean != "" {
			out = append(out, clean)
		}
	}
	return out
}

func isRaw(a atom.Atom) bool {
	return a == atom.Script || a == atom.Style
}
