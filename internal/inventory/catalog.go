package inventory

import (
	"context"
	"net/url"
	"strconv"

	"trackmatch-srv/internal/models"
)

// FetchTracks downloads the whole catalog.
func (c *Client) FetchTracks(ctx context.Context) ([]models.CatalogEntry, error) {
	var result struct {
		Tracks []models.CatalogEntry `json:"tracks"`
	}
	if err := c.DoRequest(ctx, "/catalog/tracks", nil, &result); err != nil {
		return nil, err
	}
	return result.Tracks, nil
}

// Search runs the service's full-text candidate search with raw row text.
func (c *Client) Search(ctx context.Context, q models.LegacyQuery) ([]models.LegacyCandidate, error) {
	params := url.Values{}
	params.Set("title", q.Title)
	if q.Artist != "" {
		params.Set("artist", q.Artist)
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	var result struct {
		Tracks []models.LegacyCandidate `json:"tracks"`
	}
	if err := c.DoRequest(ctx, "/search", params, &result); err != nil {
		return nil, err
	}
	return result.Tracks, nil
}
