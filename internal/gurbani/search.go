package gurbani

import (
	"context"
	"fmt"
	"net/url"

	"github.com/altinukshini/pankti/internal/model"
)

// Search runs query against the endpoint for mode. Ranking and matching are
// entirely up to the server.
func (c *Client) Search(ctx context.Context, query string, mode model.Mode) (model.ResultSet, error) {
	if !mode.Valid() {
		return model.ResultSet{}, &ProviderError{Op: "search", Err: fmt.Errorf("unsupported mode %q", mode)}
	}

	v := url.Values{}
	v.Set("q", query)

	var lines []model.LineMatch
	if err := c.Get(ctx, "search", c.endpoint(v, url.PathEscape(string(mode))), &lines); err != nil {
		return model.ResultSet{}, err
	}
	return model.ResultSet{Query: query, Mode: mode, Lines: lines}, nil
}

// Passage fetches every line of the shabad with the given ID.
func (c *Client) Passage(ctx context.Context, shabadID string) (model.Passage, error) {
	if shabadID == "" {
		return model.Passage{}, &ProviderError{Op: "get shabad", Err: fmt.Errorf("empty shabad id")}
	}

	var lines []model.LineMatch
	if err := c.Get(ctx, "get shabad", c.endpoint(nil, "get_shabad", url.PathEscape(shabadID)), &lines); err != nil {
		return model.Passage{}, err
	}
	return model.Passage{ID: shabadID, Lines: lines}, nil
}
