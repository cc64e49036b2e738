package ops

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/altinukshini/pankti/internal/model"
)

// ErrStopped is returned when the alive check fails before all lines were
// inserted.
var ErrStopped = errors.New("insertion stopped")

// Inserter appends content under an anchor block.
type Inserter interface {
	InsertBlock(ctx context.Context, ref uuid.UUID, content string) error
}

type InsertResult struct {
	Completed int
	Total     int
}

// InsertLines inserts the cloze text of each line under ref, first to last.
// Before every insertion it checks ctx and alive; the first failure ends the
// run. Lines already inserted stay in the document.
func InsertLines(
	ctx context.Context,
	ins Inserter,
	ref uuid.UUID,
	lines []model.LineMatch,
	alive func() bool,
	onProgress func(completed, total int),
) (*InsertResult, error) {
	result := &InsertResult{Total: len(lines)}

	for i, line := range lines {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}
		if alive != nil && !alive() {
			return result, ErrStopped
		}

		if err := ins.InsertBlock(ctx, ref, model.FormatCloze(line)); err != nil {
			return result, fmt.Errorf("insert line %d of %d: %w", i+1, len(lines), err)
		}
		result.Completed++

		if onProgress != nil {
			onProgress(result.Completed, result.Total)
		}
	}

	return result, nil
}
