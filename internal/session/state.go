package session

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/altinukshini/pankti/internal/model"
)

type State int

const (
	StateIdle State = iota
	StateSearching
	StateResults
	StatePassage
	StateError
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSearching:
		return "searching"
	case StateResults:
		return "results"
	case StatePassage:
		return "passage"
	case StateError:
		return "error"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

var (
	// ErrInvocationSkipped means there was no anchor text or cursor to start
	// from. Callers should ignore it silently.
	ErrInvocationSkipped = errors.New("invocation skipped")
	ErrBusy              = errors.New("session busy")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrClosed            = errors.New("session closed")
)

// Position is where the host's cursor sits on screen.
type Position struct {
	Row int
	Col int
}

// Host is the document and UI surface a session is anchored in.
type Host interface {
	BlockContent(ref uuid.UUID) (string, bool)
	CursorPosition() (Position, bool)
	InsertBlock(ctx context.Context, ref uuid.UUID, content string) error
}

// Provider is the search server.
type Provider interface {
	Search(ctx context.Context, query string, mode model.Mode) (model.ResultSet, error)
	Passage(ctx context.Context, shabadID string) (model.Passage, error)
}

// Snapshot is a copy of a session's state for rendering. Nothing in it
// aliases controller memory.
type Snapshot struct {
	ID       string
	State    State
	Anchor   uuid.UUID
	Cursor   Position
	Mode     model.Mode
	Query    string
	Results  model.ResultSet
	Passage  model.Passage
	Err      string
	Busy     bool
	Inserted int
}

// Lines is the sequence the user is looking at: the passage in
// StatePassage, the result set otherwise.
func (s Snapshot) Lines() []model.LineMatch {
	if s.State == StatePassage {
		return s.Passage.Lines
	}
	return s.Results.Lines
}
