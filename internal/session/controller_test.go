package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/altinukshini/pankti/internal/gurbani"
	"github.com/altinukshini/pankti/internal/model"
)

// fakeHost is an in-memory document with a single anchor block.
type fakeHost struct {
	mu        sync.Mutex
	anchor    uuid.UUID
	text      string
	hasBlock  bool
	hasCursor bool
	inserted  []string
	refs      []uuid.UUID
	failAt    int
	onInsert  func(n int)
}

func newFakeHost(text string) *fakeHost {
	return &fakeHost{anchor: uuid.New(), text: text, hasBlock: true, hasCursor: true}
}

func (h *fakeHost) BlockContent(ref uuid.UUID) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.hasBlock || ref != h.anchor {
		return "", false
	}
	return h.text, true
}

func (h *fakeHost) CursorPosition() (Position, bool) {
	return Position{Row: 3, Col: 7}, h.hasCursor
}

func (h *fakeHost) InsertBlock(_ context.Context, ref uuid.UUID, content string) error {
	h.mu.Lock()
	if h.failAt > 0 && len(h.inserted)+1 == h.failAt {
		h.mu.Unlock()
		return errors.New("write failed")
	}
	h.inserted = append(h.inserted, content)
	h.refs = append(h.refs, ref)
	n := len(h.inserted)
	cb := h.onInsert
	h.mu.Unlock()
	if cb != nil {
		cb(n)
	}
	return nil
}

func (h *fakeHost) Inserted() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.inserted...)
}

// fakeProvider serves canned results and counts calls.
type fakeProvider struct {
	mu          sync.Mutex
	results     []model.LineMatch
	passages    map[string][]model.LineMatch
	searchErr   error
	passageErr  error
	searchCalls int
	block       chan struct{}
}

func (p *fakeProvider) Search(ctx context.Context, query string, mode model.Mode) (model.ResultSet, error) {
	p.mu.Lock()
	p.searchCalls++
	block := p.block
	p.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return model.ResultSet{}, ctx.Err()
		}
	}
	if p.searchErr != nil {
		return model.ResultSet{}, p.searchErr
	}
	return model.ResultSet{Query: query, Mode: mode, Lines: model.CloneLines(p.results)}, nil
}

func (p *fakeProvider) Passage(_ context.Context, id string) (model.Passage, error) {
	if p.passageErr != nil {
		return model.Passage{}, p.passageErr
	}
	return model.Passage{ID: id, Lines: model.CloneLines(p.passages[id])}, nil
}

func (p *fakeProvider) SearchCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.searchCalls
}

var (
	ikOankar = model.LineMatch{Punjabi: "ੴ", Translit: "ik oankar", Attributes: "Mundavani M: 5", ShabadID: "S1"}

	results = []model.LineMatch{
		ikOankar,
		{Punjabi: "ਸੋ ਦਰੁ", Translit: "so dar", Attributes: "Rehras M: 1", ShabadID: "S2"},
		{Punjabi: "ਸੋਹਿਲਾ", Translit: "sohilaa", Attributes: "Kirtan Sohila M: 1", ShabadID: "S3"},
	}

	shabadS1 = []model.LineMatch{
		{Punjabi: "ੴ ਸਤਿ ਨਾਮੁ", Translit: "ik oankar sat naam", Attributes: "Japji M: 1", ShabadID: "S1"},
		{Punjabi: "ਆਦਿ ਸਚੁ", Translit: "aad sach", Attributes: "Japji M: 1", ShabadID: "S1"},
		{Punjabi: "ਹੈ ਭੀ ਸਚੁ", Translit: "hai bhee sach", Attributes: "Japji M: 1", ShabadID: "S1"},
	}
)

func newProvider() *fakeProvider {
	return &fakeProvider{
		results:  results,
		passages: map[string][]model.LineMatch{"S1": shabadS1},
	}
}

func openSession(t *testing.T, host *fakeHost, p *fakeProvider, opts ...Option) *Controller {
	t.Helper()
	c := New(host, p, opts...)
	require.NoError(t, c.Invoke(context.Background(), host.anchor, model.ModeText))
	require.Equal(t, StateResults, c.State())
	return c
}

func TestInvokeShowsResults(t *testing.T) {
	host := newFakeHost("  ੴ  ")
	c := openSession(t, host, newProvider())

	snap := c.Snapshot()
	assert.Equal(t, StateResults, snap.State)
	assert.Equal(t, "ੴ", snap.Query)
	assert.Equal(t, model.ModeText, snap.Mode)
	assert.Equal(t, host.anchor, snap.Anchor)
	assert.Equal(t, Position{Row: 3, Col: 7}, snap.Cursor)
	assert.Equal(t, results, snap.Lines())
	assert.False(t, snap.Busy)
	assert.NotEmpty(t, snap.ID)
}

func TestInvokeSkipped(t *testing.T) {
	tests := []struct {
		name  string
		setup func(h *fakeHost)
		ref   func(h *fakeHost) uuid.UUID
	}{
		{name: "empty text", setup: func(h *fakeHost) { h.text = "" }},
		{name: "whitespace text", setup: func(h *fakeHost) { h.text = " \n\t " }},
		{name: "no block", setup: func(h *fakeHost) { h.hasBlock = false }},
		{name: "no cursor", setup: func(h *fakeHost) { h.hasCursor = false }},
		{name: "unknown ref", ref: func(h *fakeHost) uuid.UUID { return uuid.New() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host := newFakeHost("ੴ")
			if tt.setup != nil {
				tt.setup(host)
			}
			ref := host.anchor
			if tt.ref != nil {
				ref = tt.ref(host)
			}
			p := newProvider()
			c := New(host, p)

			err := c.Invoke(context.Background(), ref, model.ModeText)
			assert.ErrorIs(t, err, ErrInvocationSkipped)
			assert.Equal(t, StateIdle, c.State())
			assert.Equal(t, 0, p.SearchCalls())
			assert.Empty(t, host.Inserted())
		})
	}
}

func TestInvokeProviderErrorMovesToError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, err := gurbani.NewClient(srv.URL, time.Second)
	require.NoError(t, err)

	host := newFakeHost("ੴ")
	c := New(host, client)
	err = c.Invoke(context.Background(), host.anchor, model.ModeFuzzy)
	require.Error(t, err)
	assert.True(t, gurbani.IsProviderError(err))

	snap := c.Snapshot()
	assert.Equal(t, StateError, snap.State)
	assert.Contains(t, snap.Err, "500")
	assert.Empty(t, snap.Lines())
}

func TestInvokeOnlyOnce(t *testing.T) {
	host := newFakeHost("ੴ")
	p := newProvider()
	c := openSession(t, host, p)

	assert.ErrorIs(t, c.Invoke(context.Background(), host.anchor, model.ModeText), ErrBusy)
	c.Close()
	assert.ErrorIs(t, c.Invoke(context.Background(), host.anchor, model.ModeText), ErrClosed)
	assert.Equal(t, 1, p.SearchCalls())
}

func TestInvokeRejectsUnknownMode(t *testing.T) {
	host := newFakeHost("ੴ")
	p := newProvider()
	c := New(host, p)
	require.Error(t, c.Invoke(context.Background(), host.anchor, model.Mode("regex")))
	assert.Equal(t, StateIdle, c.State())
	assert.Equal(t, 0, p.SearchCalls())
}

func TestInvokeTimeout(t *testing.T) {
	host := newFakeHost("ੴ")
	p := newProvider()
	p.block = make(chan struct{})
	defer close(p.block)

	c := New(host, p, WithTimeout(20*time.Millisecond))
	err := c.Invoke(context.Background(), host.anchor, model.ModeText)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StateError, c.State())
}

func TestSearchingIsBusyAndCloseAbortsSearch(t *testing.T) {
	host := newFakeHost("ੴ")
	p := newProvider()
	p.block = make(chan struct{})
	defer close(p.block)

	c := New(host, p, WithTimeout(0))
	done := make(chan error, 1)
	go func() { done <- c.Invoke(context.Background(), host.anchor, model.ModeText) }()

	require.Eventually(t, func() bool { return c.State() == StateSearching }, time.Second, time.Millisecond)
	assert.True(t, c.Snapshot().Busy)
	assert.ErrorIs(t, c.Dispatch(context.Background(), InsertAll{}), ErrBusy)

	c.Close()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("invoke did not return after close")
	}
	assert.Equal(t, StateClosed, c.State())
}

func TestSelectLineInsertsCloze(t *testing.T) {
	host := newFakeHost("ੴ")
	p := newProvider()
	p.results = []model.LineMatch{ikOankar}
	c := openSession(t, host, p)

	require.NoError(t, c.Dispatch(context.Background(), SelectLine{Index: 0}))

	assert.Equal(t, []string{"ੴ\t{{cloze ik oankar Mundavani M: 5}}"}, host.Inserted())
	assert.Equal(t, StateResults, c.State())
	assert.Equal(t, 1, c.Snapshot().Inserted)
}

func TestSelectLineIsNotIdempotent(t *testing.T) {
	host := newFakeHost("ੴ")
	c := openSession(t, host, newProvider())

	require.NoError(t, c.Dispatch(context.Background(), SelectLine{Index: 1}))
	require.NoError(t, c.Dispatch(context.Background(), SelectLine{Index: 1}))

	got := host.Inserted()
	require.Len(t, got, 2)
	assert.Equal(t, got[0], got[1])
}

func TestSelectLineOutOfRange(t *testing.T) {
	host := newFakeHost("ੴ")
	c := openSession(t, host, newProvider())

	for _, idx := range []int{-1, 3} {
		err := c.Dispatch(context.Background(), SelectLine{Index: idx})
		assert.ErrorIs(t, err, ErrInvalidTransition)
	}
	assert.Empty(t, host.Inserted())
	assert.False(t, c.Snapshot().Busy)
}

func TestInsertAllResultsInOrder(t *testing.T) {
	host := newFakeHost("ੴ")
	var progress []int
	c := openSession(t, host, newProvider(), WithInsertProgress(func(completed, total int) {
		assert.Equal(t, 3, total)
		progress = append(progress, completed)
	}))

	require.NoError(t, c.Dispatch(context.Background(), InsertAll{}))

	want := make([]string, len(results))
	for i, l := range results {
		want[i] = model.FormatCloze(l)
	}
	assert.Equal(t, want, host.Inserted())
	for _, ref := range host.refs {
		assert.Equal(t, host.anchor, ref)
	}
	assert.Equal(t, []int{1, 2, 3}, progress)
	assert.Equal(t, StateResults, c.State())
	assert.Equal(t, 3, c.Snapshot().Inserted)
}

func TestViewPassageAndBackRoundTrip(t *testing.T) {
	host := newFakeHost("ੴ")
	c := openSession(t, host, newProvider())
	before := c.Snapshot().Results

	require.NoError(t, c.Dispatch(context.Background(), ViewPassage{ShabadID: "S1"}))
	snap := c.Snapshot()
	assert.Equal(t, StatePassage, snap.State)
	assert.Equal(t, "S1", snap.Passage.ID)
	assert.Equal(t, shabadS1, snap.Lines())
	assert.Equal(t, before, snap.Results, "passage keeps its result set")

	require.NoError(t, c.Dispatch(context.Background(), Back{}))
	snap = c.Snapshot()
	assert.Equal(t, StateResults, snap.State)
	assert.Equal(t, before, snap.Results)
	assert.Equal(t, results, snap.Lines())
	assert.Empty(t, snap.Passage.Lines)
}

func TestInsertShabad(t *testing.T) {
	host := newFakeHost("ੴ")
	c := openSession(t, host, newProvider())
	require.NoError(t, c.Dispatch(context.Background(), ViewPassage{ShabadID: "S1"}))

	require.NoError(t, c.Dispatch(context.Background(), InsertAll{}))
	assert.Equal(t, []string{
		"ੴ ਸਤਿ ਨਾਮੁ\t{{cloze ik oankar sat naam Japji M: 1}}",
		"ਆਦਿ ਸਚੁ\t{{cloze aad sach Japji M: 1}}",
		"ਹੈ ਭੀ ਸਚੁ\t{{cloze hai bhee sach Japji M: 1}}",
	}, host.Inserted())
	assert.Equal(t, StatePassage, c.State())

	require.NoError(t, c.Dispatch(context.Background(), SelectLine{Index: 2}))
	assert.Len(t, host.Inserted(), 4)
	assert.Equal(t, "ਹੈ ਭੀ ਸਚੁ\t{{cloze hai bhee sach Japji M: 1}}", host.Inserted()[3])
}

func TestEventsForLeftStateAreRejected(t *testing.T) {
	host := newFakeHost("ੴ")
	c := openSession(t, host, newProvider())
	require.NoError(t, c.Dispatch(context.Background(), ViewPassage{ShabadID: "S1"}))
	require.NoError(t, c.Dispatch(context.Background(), Back{}))

	// The UI still shows the shabad while Back has already landed.
	err := c.Dispatch(context.Background(), SelectLine{Index: 1, Shown: StatePassage, Line: shabadS1[1]})
	assert.ErrorIs(t, err, ErrInvalidTransition)
	err = c.Dispatch(context.Background(), InsertAll{Shown: StatePassage})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	assert.Empty(t, host.Inserted())
	snap := c.Snapshot()
	assert.Equal(t, StateResults, snap.State)
	assert.False(t, snap.Busy)

	require.NoError(t, c.Dispatch(context.Background(), SelectLine{Index: 1, Shown: StateResults, Line: results[1]}))
	require.NoError(t, c.Dispatch(context.Background(), InsertAll{Shown: StateResults}))
	assert.Len(t, host.Inserted(), 4)
}

func TestSelectLineRejectsChangedLine(t *testing.T) {
	host := newFakeHost("ੴ")
	c := openSession(t, host, newProvider())

	err := c.Dispatch(context.Background(), SelectLine{Index: 0, Shown: StateResults, Line: results[2]})
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Empty(t, host.Inserted())
	assert.False(t, c.Snapshot().Busy)
}

func TestViewPassageFailure(t *testing.T) {
	host := newFakeHost("ੴ")
	p := newProvider()
	p.passageErr = &gurbani.ProviderError{Op: "get shabad", StatusCode: 404, Err: errors.New("server returned 404 Not Found")}
	c := openSession(t, host, p)

	err := c.Dispatch(context.Background(), ViewPassage{ShabadID: "S9"})
	require.Error(t, err)

	snap := c.Snapshot()
	assert.Equal(t, StateError, snap.State)
	assert.Equal(t, "get shabad: server returned 404 Not Found", snap.Err)

	// The result set survives the failed fetch.
	require.NoError(t, c.Dispatch(context.Background(), Back{}))
	snap = c.Snapshot()
	assert.Equal(t, StateResults, snap.State)
	assert.Equal(t, results, snap.Lines())
	assert.Empty(t, snap.Err)
}

func TestBackFromSearchErrorIsInvalid(t *testing.T) {
	host := newFakeHost("ੴ")
	p := newProvider()
	p.searchErr = errors.New("down")
	c := New(host, p)
	require.Error(t, c.Invoke(context.Background(), host.anchor, model.ModeText))

	assert.ErrorIs(t, c.Dispatch(context.Background(), Back{}), ErrInvalidTransition)
	assert.ErrorIs(t, c.Dispatch(context.Background(), InsertAll{}), ErrInvalidTransition)
	assert.Equal(t, StateError, c.State())
}

func TestInvalidTransitions(t *testing.T) {
	host := newFakeHost("ੴ")

	idle := New(host, newProvider())
	assert.ErrorIs(t, idle.Dispatch(context.Background(), SelectLine{}), ErrInvalidTransition)
	assert.ErrorIs(t, idle.Dispatch(context.Background(), ViewPassage{ShabadID: "S1"}), ErrInvalidTransition)
	assert.ErrorIs(t, idle.Dispatch(context.Background(), nil), ErrInvalidTransition)

	c := openSession(t, host, newProvider())
	assert.ErrorIs(t, c.Dispatch(context.Background(), Back{}), ErrInvalidTransition)
	assert.Equal(t, StateResults, c.State())

	require.NoError(t, c.Dispatch(context.Background(), ViewPassage{ShabadID: "S1"}))
	assert.ErrorIs(t, c.Dispatch(context.Background(), ViewPassage{ShabadID: "S1"}), ErrInvalidTransition)
	assert.Equal(t, StatePassage, c.State())
}

func TestCloseDiscardsSession(t *testing.T) {
	host := newFakeHost("ੴ")
	c := openSession(t, host, newProvider())

	require.NoError(t, c.Dispatch(context.Background(), Close{}))
	assert.Equal(t, StateClosed, c.State())
	c.Close()

	for _, ev := range []Event{SelectLine{}, InsertAll{}, ViewPassage{ShabadID: "S1"}, Back{}} {
		assert.ErrorIs(t, c.Dispatch(context.Background(), ev), ErrClosed)
	}
	assert.Empty(t, host.Inserted())
}

func TestCloseStopsInsertAll(t *testing.T) {
	host := newFakeHost("ੴ")
	c := openSession(t, host, newProvider())
	host.onInsert = func(n int) {
		if n == 1 {
			c.Close()
		}
	}

	err := c.Dispatch(context.Background(), InsertAll{})
	assert.ErrorIs(t, err, ErrClosed)
	assert.Len(t, host.Inserted(), 1, "no insertion starts after close")
}

func TestInsertAllPartialFailureKeepsCommitted(t *testing.T) {
	host := newFakeHost("ੴ")
	host.failAt = 3
	c := openSession(t, host, newProvider())

	err := c.Dispatch(context.Background(), InsertAll{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert line 3 of 3")
	assert.Len(t, host.Inserted(), 2)

	snap := c.Snapshot()
	assert.Equal(t, StateResults, snap.State)
	assert.Equal(t, 2, snap.Inserted)
	assert.False(t, snap.Busy)
}

func TestSnapshotDoesNotAlias(t *testing.T) {
	host := newFakeHost("ੴ")
	c := openSession(t, host, newProvider())

	snap := c.Snapshot()
	snap.Results.Lines[0].Punjabi = "mutated"
	assert.Equal(t, "ੴ", c.Snapshot().Results.Lines[0].Punjabi)
}

// The scenario from the plugin: search "ੴ", insert the only match.
func TestScenarioSearchAndInsertAgainstServer(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/text":
			gotPath, gotQuery = r.URL.Path, r.URL.Query().Get("q")
			_, _ = w.Write([]byte(`[{"punjabi":"ੴ","translit":"ik oankar","attributes":"Mundavani M: 5","shabdID":"S1"}]`))
		case "/get_shabad/S1":
			_, _ = w.Write([]byte(`[{"punjabi":"a","translit":"1","attributes":"x","shabdID":"S1"},` +
				`{"punjabi":"b","translit":"2","attributes":"x","shabdID":"S1"},` +
				`{"punjabi":"c","translit":"3","attributes":"x","shabdID":"S1"}]`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client, err := gurbani.NewClient(srv.URL, time.Second)
	require.NoError(t, err)

	host := newFakeHost("ੴ")
	c := New(host, client)
	require.NoError(t, c.Invoke(context.Background(), host.anchor, model.ModeText))
	assert.Equal(t, "/text", gotPath)
	assert.Equal(t, "ੴ", gotQuery)
	require.Len(t, c.Snapshot().Lines(), 1)

	require.NoError(t, c.Dispatch(context.Background(), SelectLine{Index: 0}))
	assert.Equal(t, []string{"ੴ\t{{cloze ik oankar Mundavani M: 5}}"}, host.Inserted())

	require.NoError(t, c.Dispatch(context.Background(), ViewPassage{ShabadID: "S1"}))
	require.Len(t, c.Snapshot().Lines(), 3)
	require.NoError(t, c.Dispatch(context.Background(), InsertAll{}))
	assert.Equal(t, []string{
		"ੴ\t{{cloze ik oankar Mundavani M: 5}}",
		"a\t{{cloze 1 x}}",
		"b\t{{cloze 2 x}}",
		"c\t{{cloze 3 x}}",
	}, host.Inserted())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "passage", StatePassage.String())
	assert.Equal(t, "unknown", State(99).String())
}
