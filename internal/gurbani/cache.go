package gurbani

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/altinukshini/pankti/internal/model"
)

// Searcher is the search server contract. *Client implements it.
type Searcher interface {
	Search(ctx context.Context, query string, mode model.Mode) (model.ResultSet, error)
	Passage(ctx context.Context, shabadID string) (model.Passage, error)
}

// CachedProvider remembers fetched passages. Shabads never change, so
// entries have no TTL. Searches always go to the server.
type CachedProvider struct {
	next     Searcher
	passages *lru.Cache[string, model.Passage]
}

func NewCachedProvider(next Searcher, size int) (*CachedProvider, error) {
	cache, err := lru.New[string, model.Passage](size)
	if err != nil {
		return nil, fmt.Errorf("create passage cache: %w", err)
	}
	return &CachedProvider{next: next, passages: cache}, nil
}

func (p *CachedProvider) Search(ctx context.Context, query string, mode model.Mode) (model.ResultSet, error) {
	return p.next.Search(ctx, query, mode)
}

func (p *CachedProvider) Passage(ctx context.Context, shabadID string) (model.Passage, error) {
	if cached, ok := p.passages.Get(shabadID); ok {
		return model.Passage{ID: cached.ID, Lines: model.CloneLines(cached.Lines)}, nil
	}
	passage, err := p.next.Passage(ctx, shabadID)
	if err != nil {
		return model.Passage{}, err
	}
	p.passages.Add(shabadID, model.Passage{ID: passage.ID, Lines: model.CloneLines(passage.Lines)})
	return passage, nil
}

// Len returns the number of cached passages.
func (p *CachedProvider) Len() int {
	return p.passages.Len()
}
