package session

import "github.com/altinukshini/pankti/internal/model"

// Event is a UI action on an open session. The set is closed; see the
// types below.
type Event interface {
	eventName() string
}

// SelectLine inserts the line at Index of the visible sequence. Shown and
// Line, when set, name the state and line the UI displayed; the event is
// rejected if the session no longer matches them.
type SelectLine struct {
	Index int
	Shown State
	Line  model.LineMatch
}

// ViewPassage opens the full shabad a result line belongs to.
type ViewPassage struct{ ShabadID string }

// Back returns from a passage to the result set that led to it.
type Back struct{}

// InsertAll inserts every line of the visible sequence in order. A non-idle
// Shown must equal the current state.
type InsertAll struct{ Shown State }

// Close ends the session.
type Close struct{}

func (SelectLine) eventName() string  { return "select line" }
func (ViewPassage) eventName() string { return "view passage" }
func (Back) eventName() string        { return "back" }
func (InsertAll) eventName() string   { return "insert all" }
func (Close) eventName() string       { return "close" }
