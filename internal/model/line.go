package model

import "fmt"

// LineMatch is one scripture line (pankti) returned by the search server.
type LineMatch struct {
	Punjabi    string `json:"punjabi"`
	Translit   string `json:"translit"`
	Attributes string `json:"attributes"`
	ShabadID   string `json:"shabdID"`
}

// ResultSet is the ordered output of one search query. Order is whatever
// the server returned and must be kept.
type ResultSet struct {
	Query string      `json:"query"`
	Mode  Mode        `json:"mode"`
	Lines []LineMatch `json:"lines"`
}

func (r ResultSet) Len() int {
	return len(r.Lines)
}

// Passage is every line of one shabad, in composition order.
type Passage struct {
	ID    string      `json:"id"`
	Lines []LineMatch `json:"lines"`
}

func (p Passage) Len() int {
	return len(p.Lines)
}

// FormatCloze renders the text inserted into a document for a line. The
// layout is consumed by the flashcard plugin and must not change.
func FormatCloze(l LineMatch) string {
	return fmt.Sprintf("%s\t{{cloze %s %s}}", l.Punjabi, l.Translit, l.Attributes)
}

// CloneLines returns a copy so callers can't alias a snapshot's backing array.
func CloneLines(lines []LineMatch) []LineMatch {
	if lines == nil {
		return nil
	}
	out := make([]LineMatch, len(lines))
	copy(out, lines)
	return out
}
