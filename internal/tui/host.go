package tui

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/altinukshini/pankti/internal/page"
	"github.com/altinukshini/pankti/internal/session"
)

// pageHost anchors a session in the open page. The cursor position is
// fixed when the session starts.
type pageHost struct {
	page   *page.Page
	pos    session.Position
	hasPos bool
}

func newPageHost(p *page.Page, pos session.Position, hasPos bool) *pageHost {
	return &pageHost{page: p, pos: pos, hasPos: hasPos}
}

func (h *pageHost) BlockContent(ref uuid.UUID) (string, bool) {
	b, ok := h.page.Block(ref)
	if !ok {
		return "", false
	}
	return b.Content(), true
}

func (h *pageHost) CursorPosition() (session.Position, bool) {
	return h.pos, h.hasPos
}

// InsertBlock adds content under ref and writes the page back to disk.
func (h *pageHost) InsertBlock(ctx context.Context, ref uuid.UUID, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := h.page.InsertChild(ref, content); err != nil {
		return err
	}
	if h.page.Path() == "" {
		return nil
	}
	if err := h.page.Save(); err != nil {
		return fmt.Errorf("save page: %w", err)
	}
	return nil
}
