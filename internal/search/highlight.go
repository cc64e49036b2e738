// Package search locates query words inside result lines so they can be
// highlighted. Ranking and matching are done by the search server; this
// only marks what is already on screen.
package search

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// minWordLen skips words too short to be worth marking.
const minWordLen = 2

// Span is the byte range [Start, End) of a match in a line.
type Span struct {
	Start int
	End   int
}

type Highlighter struct {
	re *regexp.Regexp
}

// New builds a case-insensitive matcher for the words of query. Longer
// words win when two words overlap.
func New(query string) *Highlighter {
	var words []string
	seen := make(map[string]bool)
	for _, w := range strings.Fields(query) {
		if utf8.RuneCountInString(w) < minWordLen || seen[w] {
			continue
		}
		seen[w] = true
		words = append(words, regexp.QuoteMeta(w))
	}
	if len(words) == 0 {
		return &Highlighter{}
	}
	sort.SliceStable(words, func(i, j int) bool { return len(words[i]) > len(words[j]) })
	return &Highlighter{re: regexp.MustCompile("(?i)" + strings.Join(words, "|"))}
}

// Matches returns non-overlapping spans of line in order.
func (h *Highlighter) Matches(line string) []Span {
	if h.re == nil {
		return nil
	}
	idx := h.re.FindAllStringIndex(line, -1)
	spans := make([]Span, len(idx))
	for i, m := range idx {
		spans[i] = Span{Start: m[0], End: m[1]}
	}
	return spans
}

// Apply rewrites line with every match passed through mark.
func (h *Highlighter) Apply(line string, mark func(string) string) string {
	spans := h.Matches(line)
	if len(spans) == 0 {
		return line
	}
	var b strings.Builder
	last := 0
	for _, s := range spans {
		b.WriteString(line[last:s.Start])
		b.WriteString(mark(line[s.Start:s.End]))
		last = s.End
	}
	b.WriteString(line[last:])
	return b.String()
}
