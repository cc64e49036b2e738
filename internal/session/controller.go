// Package session drives one search interaction anchored to a document
// block: search, browse results, open a passage, go back, insert lines.
//
// A Controller is a state machine guarded by a mutex. Provider and host
// calls happen outside the lock; while one is running the session is busy
// and further events are rejected with ErrBusy. Close cancels anything in
// flight and no insertion starts after it.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/altinukshini/pankti/internal/logging"
	"github.com/altinukshini/pankti/internal/model"
	"github.com/altinukshini/pankti/internal/ops"
)

// DefaultTimeout bounds each provider call.
const DefaultTimeout = 10 * time.Second

type Option func(*Controller)

// WithTimeout sets the per-call provider timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *Controller) { c.timeout = d }
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithInsertProgress registers a callback run after each line of an
// InsertAll is written.
func WithInsertProgress(fn func(completed, total int)) Option {
	return func(c *Controller) { c.onProgress = fn }
}

type Controller struct {
	id         string
	host       Host
	provider   Provider
	timeout    time.Duration
	logger     zerolog.Logger
	onProgress func(completed, total int)

	// ctx lives as long as the session; Close cancels it.
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	state    State
	anchor   uuid.UUID
	cursor   Position
	mode     model.Mode
	query    string
	results  model.ResultSet
	passage  model.Passage
	errMsg   string
	busy     bool
	inserted int

	hasResults bool
}

func New(host Host, provider Provider, opts ...Option) *Controller {
	c := &Controller{
		id:       uuid.NewString(),
		host:     host,
		provider: provider,
		timeout:  DefaultTimeout,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.ctx, c.cancel = context.WithCancel(logging.WithSessionID(context.Background(), c.id))
	return c
}

func (c *Controller) ID() string {
	return c.id
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		ID:       c.id,
		State:    c.state,
		Anchor:   c.anchor,
		Cursor:   c.cursor,
		Mode:     c.mode,
		Query:    c.query,
		Results:  model.ResultSet{Query: c.results.Query, Mode: c.results.Mode, Lines: model.CloneLines(c.results.Lines)},
		Passage:  model.Passage{ID: c.passage.ID, Lines: model.CloneLines(c.passage.Lines)},
		Err:      c.errMsg,
		Busy:     c.busy,
		Inserted: c.inserted,
	}
}

// Invoke starts the session: it reads the anchor block's text and searches
// for it. A missing block, missing cursor or blank text returns
// ErrInvocationSkipped and leaves the session idle. A provider failure
// moves the session to StateError and is also returned.
func (c *Controller) Invoke(ctx context.Context, ref uuid.UUID, mode model.Mode) error {
	if err := c.checkIdle(); err != nil {
		return err
	}
	if !mode.Valid() {
		return fmt.Errorf("invoke: unknown mode %q", mode)
	}

	text, ok := c.host.BlockContent(ref)
	if !ok {
		return ErrInvocationSkipped
	}
	pos, ok := c.host.CursorPosition()
	if !ok {
		return ErrInvocationSkipped
	}
	query := strings.TrimSpace(text)
	if query == "" {
		return ErrInvocationSkipped
	}

	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return c.stateErr()
	}
	c.anchor, c.cursor, c.mode, c.query = ref, pos, mode, query
	c.busy = true
	c.transition(StateSearching)
	c.mu.Unlock()

	c.logger.Info().Ctx(c.ctx).Str("mode", string(mode)).Str("query", query).Msg("search started")

	callCtx, done := c.bind(ctx, c.timeout)
	rs, err := c.provider.Search(callCtx, query, mode)
	done()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy = false
	if c.state == StateClosed {
		return ErrClosed
	}
	if err != nil {
		c.fail(err)
		return err
	}
	c.results = model.ResultSet{Query: rs.Query, Mode: rs.Mode, Lines: model.CloneLines(rs.Lines)}
	c.hasResults = true
	c.transition(StateResults)
	c.logger.Debug().Ctx(c.ctx).Int("matches", len(rs.Lines)).Msg("search finished")
	return nil
}

func (c *Controller) checkIdle() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateIdle {
		return c.stateErr()
	}
	return nil
}

// stateErr is the error for an Invoke on a used session. Caller holds mu.
func (c *Controller) stateErr() error {
	if c.state == StateClosed {
		return ErrClosed
	}
	return ErrBusy
}

// Dispatch applies a UI event.
func (c *Controller) Dispatch(ctx context.Context, ev Event) error {
	switch ev := ev.(type) {
	case Close:
		c.Close()
		return nil
	case SelectLine:
		return c.selectLine(ctx, ev)
	case InsertAll:
		return c.insertAll(ctx, ev)
	case ViewPassage:
		return c.viewPassage(ctx, ev.ShabadID)
	case Back:
		return c.back()
	case nil:
		return fmt.Errorf("%w: nil event", ErrInvalidTransition)
	default:
		return fmt.Errorf("%w: unsupported event %T", ErrInvalidTransition, ev)
	}
}

// Close discards the session. It is safe to call more than once.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosed {
		return
	}
	c.transition(StateClosed)
	c.cancel()
}

func (c *Controller) alive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state != StateClosed
}

// acquire marks the session busy if ev is allowed in one of states.
// Caller holds mu.
func (c *Controller) acquire(ev Event, states ...State) error {
	if c.state == StateClosed {
		return ErrClosed
	}
	if c.busy {
		return ErrBusy
	}
	for _, s := range states {
		if c.state == s {
			c.busy = true
			return nil
		}
	}
	return fmt.Errorf("%w: %s in state %s", ErrInvalidTransition, ev.eventName(), c.state)
}

// activeLines is the visible sequence. Caller holds mu.
func (c *Controller) activeLines() []model.LineMatch {
	if c.state == StatePassage {
		return c.passage.Lines
	}
	return c.results.Lines
}

// stale reports an event built against a state the session has left.
// Caller holds mu.
func (c *Controller) stale(ev Event, shown State) error {
	if shown == StateIdle || shown == c.state {
		return nil
	}
	return fmt.Errorf("%w: %s for %s but session is in %s", ErrInvalidTransition, ev.eventName(), shown, c.state)
}

func (c *Controller) selectLine(ctx context.Context, ev SelectLine) error {
	c.mu.Lock()
	if err := c.acquire(ev, StateResults, StatePassage); err != nil {
		c.mu.Unlock()
		return err
	}
	index := ev.Index
	lines := c.activeLines()
	err := c.stale(ev, ev.Shown)
	switch {
	case err != nil:
	case index < 0 || index >= len(lines):
		err = fmt.Errorf("%w: line %d out of range (%d lines)", ErrInvalidTransition, index, len(lines))
	case ev.Line != (model.LineMatch{}) && ev.Line != lines[index]:
		err = fmt.Errorf("%w: line %d no longer matches the displayed line", ErrInvalidTransition, index)
	}
	if err != nil {
		c.busy = false
		c.mu.Unlock()
		return err
	}
	line, anchor := lines[index], c.anchor
	c.mu.Unlock()

	callCtx, done := c.bind(ctx, 0)
	defer done()

	res, err := ops.InsertLines(callCtx, c.host, anchor, []model.LineMatch{line}, c.alive, nil)
	c.finishInsert(res)
	if err != nil {
		return c.insertErr(err)
	}
	c.logger.Info().Ctx(c.ctx).Int("index", index).Str("shabad_id", line.ShabadID).Msg("line inserted")
	return nil
}

func (c *Controller) insertAll(ctx context.Context, ev InsertAll) error {
	c.mu.Lock()
	if err := c.acquire(ev, StateResults, StatePassage); err != nil {
		c.mu.Unlock()
		return err
	}
	if err := c.stale(ev, ev.Shown); err != nil {
		c.busy = false
		c.mu.Unlock()
		return err
	}
	lines := model.CloneLines(c.activeLines())
	anchor := c.anchor
	c.mu.Unlock()

	callCtx, done := c.bind(ctx, 0)
	defer done()

	res, err := ops.InsertLines(callCtx, c.host, anchor, lines, c.alive, c.onProgress)
	c.finishInsert(res)
	if err != nil {
		c.logger.Warn().Ctx(c.ctx).Err(err).Int("completed", res.Completed).Int("total", res.Total).Msg("insert all stopped")
		return c.insertErr(err)
	}
	c.logger.Info().Ctx(c.ctx).Int("lines", res.Completed).Msg("all lines inserted")
	return nil
}

func (c *Controller) finishInsert(res *ops.InsertResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy = false
	if res != nil {
		c.inserted += res.Completed
	}
}

// insertErr maps a stop caused by Close to ErrClosed.
func (c *Controller) insertErr(err error) error {
	if !c.alive() && (errors.Is(err, ops.ErrStopped) || errors.Is(err, context.Canceled)) {
		return ErrClosed
	}
	return err
}

func (c *Controller) viewPassage(ctx context.Context, shabadID string) error {
	c.mu.Lock()
	if err := c.acquire(ViewPassage{}, StateResults); err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	c.logger.Debug().Ctx(c.ctx).Str("shabad_id", shabadID).Msg("fetching passage")

	callCtx, done := c.bind(ctx, c.timeout)
	p, err := c.provider.Passage(callCtx, shabadID)
	done()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy = false
	if c.state == StateClosed {
		return ErrClosed
	}
	if err != nil {
		c.fail(err)
		return err
	}
	c.passage = model.Passage{ID: p.ID, Lines: model.CloneLines(p.Lines)}
	c.transition(StatePassage)
	return nil
}

// back restores the result set that led to the current passage. It also
// recovers from a failed passage fetch, since the results are still held.
func (c *Controller) back() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.acquire(Back{}, StatePassage, StateError); err != nil {
		return err
	}
	c.busy = false
	if c.state == StateError && !c.hasResults {
		return fmt.Errorf("%w: back without results", ErrInvalidTransition)
	}
	c.passage = model.Passage{}
	c.errMsg = ""
	c.transition(StateResults)
	return nil
}

// fail records err and moves to StateError. Caller holds mu.
func (c *Controller) fail(err error) {
	c.errMsg = err.Error()
	c.logger.Warn().Ctx(c.ctx).Err(err).Msg("provider call failed")
	c.transition(StateError)
}

// transition logs and applies a state change. Caller holds mu.
func (c *Controller) transition(to State) {
	c.logger.Debug().Ctx(c.ctx).Stringer("from", c.state).Stringer("to", to).Msg("session transition")
	c.state = to
}

// bind derives a call context that ends when the caller's context ends,
// the session closes or the timeout passes.
func (c *Controller) bind(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(logging.WithSessionID(ctx, c.id))
	stop := context.AfterFunc(c.ctx, cancel)
	if timeout <= 0 {
		return ctx, func() { stop(); cancel() }
	}
	tctx, tcancel := context.WithTimeout(ctx, timeout)
	return tctx, func() { tcancel(); stop(); cancel() }
}
