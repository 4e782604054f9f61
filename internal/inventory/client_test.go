package inventory

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trackmatch-srv/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := New(Options{BaseURL: srv.URL + "/", Token: "configured", RequestsPerSecond: 1000})
	require.NoError(t, err)
	return client
}

func TestFetchTracks(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/catalog/tracks", r.URL.Path)
		assert.Equal(t, "Bearer configured", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"tracks":[
			{"track_key":"1:A1","title":"Yesterday","artist":"The Beatles","side":"A","position":"1","isrc":"GBAYE0601477"},
			{"track_key":"1:A2","title":"Help!","artist":"The Beatles"}
		]}`))
	})

	tracks, err := client.FetchTracks(context.Background())
	require.NoError(t, err)
	require.Len(t, tracks, 2)
	assert.Equal(t, models.CatalogEntry{
		TrackKey: "1:A1", Title: "Yesterday", Artist: "The Beatles", Side: "A", Position: "1", ISRC: "GBAYE0601477",
	}, tracks[0])
}

func TestSearchSendsRawQueryAndContextToken(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Yesterday (Remastered 2009)", r.URL.Query().Get("title"))
		assert.Equal(t, "The Beatles", r.URL.Query().Get("artist"))
		assert.Equal(t, "25", r.URL.Query().Get("limit"))
		assert.Equal(t, "Bearer caller", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"tracks":[{"track_key":"1:A1","title":"Yesterday","artist":"The Beatles","score":0.91}]}`))
	})

	ctx := WithToken(context.Background(), "caller")
	hits, err := client.Search(ctx, models.LegacyQuery{Title: "Yesterday (Remastered 2009)", Artist: "The Beatles", Limit: 25})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "1:A1", hits[0].TrackKey)
	assert.InDelta(t, 0.91, hits[0].Score, 1e-9)
}

func TestNonSuccessStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "token expired", http.StatusUnauthorized)
	})

	_, err := client.FetchTracks(context.Background())
	require.ErrorIs(t, err, ErrStatus)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "token expired")
}

func TestMalformedBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"tracks":`))
	})
	_, err := client.Search(context.Background(), models.LegacyQuery{Title: "x", Limit: 1})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrStatus)
}

func TestCancelledContext(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not be sent")
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.FetchTracks(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestWithTokenIgnoresEmpty(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, ctx, WithToken(ctx, ""))
	assert.Equal(t, "abc", tokenFrom(WithToken(ctx, "abc")))
}
