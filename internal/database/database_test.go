package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trackmatch-srv/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "data", "trackmatch.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedCatalog(t *testing.T, store *Store) {
	t.Helper()
	_, err := store.UpsertTracks(context.Background(), []models.CatalogEntry{
		{TrackKey: "2:A1", Title: "Yesterday Once More", Artist: "Carpenters", Side: "A", Position: "1"},
		{TrackKey: "1:B2", Title: "Help!", Artist: "The Beatles", Side: "B", Position: "2"},
		{TrackKey: "1:A1", Title: "Yesterday", Artist: "The Beatles", Side: "A", Position: "1", ISRC: "GBAYE0601477"},
	})
	require.NoError(t, err)
}

func TestOpenCreatesSchema(t *testing.T) {
	store := openTestStore(t)
	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, CatalogStats{}, stats)

	// Reopening applies the schema idempotently.
	require.NoError(t, InitDatabase(context.Background(), store.db))
}

func TestUpsertAndFetchTracks(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	seedCatalog(t, store)

	entries, err := store.FetchTracks(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "1:A1", entries[0].TrackKey)
	assert.Equal(t, "1:B2", entries[1].TrackKey)
	assert.Equal(t, "2:A1", entries[2].TrackKey)
	assert.Equal(t, "GBAYE0601477", entries[0].ISRC)

	_, err = store.UpsertTracks(ctx, []models.CatalogEntry{
		{TrackKey: "1:A1", Title: "Yesterday (Remastered)", Artist: "The Beatles"},
	})
	require.NoError(t, err)

	entries, err = store.FetchTracks(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "Yesterday (Remastered)", entries[0].Title)
	assert.Equal(t, "GBAYE0601477", entries[0].ISRC, "empty isrc must not clear a stored one")

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Tracks)
	assert.Equal(t, 2, stats.Releases)
	assert.Equal(t, 1, stats.WithISRC)
}

func TestUpsertTracksRejectsBadEntries(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	_, err := store.UpsertTracks(ctx, []models.CatalogEntry{{TrackKey: "not-a-key", Title: "x"}})
	assert.Error(t, err)

	_, err = store.UpsertTracks(ctx, []models.CatalogEntry{
		{TrackKey: "1:A1", Title: "Fine"},
		{TrackKey: "1:A2", Title: "  "},
	})
	assert.Error(t, err)

	entries, err := store.FetchTracks(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries, "failed batch must roll back")
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	seedCatalog(t, store)

	hits, err := store.Search(ctx, models.LegacyQuery{Title: "Yesterday", Artist: "The Beatles", Limit: 5})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "1:A1", hits[0].TrackKey)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-9)
	assert.Greater(t, hits[0].Score, hits[1].Score)

	hits, err = store.Search(ctx, models.LegacyQuery{Title: "Yesterday", Limit: 1})
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	hits, err = store.Search(ctx, models.LegacyQuery{Title: "100% Nothing_Here", Limit: 5})
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = store.Search(ctx, models.LegacyQuery{Title: "  ", Limit: 5})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearchFoldsNonASCIICase(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	_, err := store.UpsertTracks(ctx, []models.CatalogEntry{
		{TrackKey: "5:A1", Title: "ÉTÉ INDIEN", Artist: "JOE DASSIN"},
		{TrackKey: "5:A2", Title: "ÜBER ALLES", Artist: "Somebody"},
	})
	require.NoError(t, err)

	hits, err := store.Search(ctx, models.LegacyQuery{Title: "été indien", Artist: "Joe Dassin", Limit: 5})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "5:A1", hits[0].TrackKey)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-9)

	hits, err = store.Search(ctx, models.LegacyQuery{Title: "Über", Limit: 5})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "5:A2", hits[0].TrackKey)
}

func TestFetchTracksReleaseOrder(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	_, err := store.UpsertTracks(ctx, []models.CatalogEntry{
		{TrackKey: "3:A10", Title: "Ten"},
		{TrackKey: "3:10", Title: "Numeric ten"},
		{TrackKey: "3:A2", Title: "Two"},
		{TrackKey: "3:2", Title: "Numeric two"},
		{TrackKey: "4:B1", Title: "Flip", Side: "B", Position: "1"},
		{TrackKey: "4:A10", Title: "Closer", Side: "A", Position: "10"},
		{TrackKey: "4:A2", Title: "Second", Side: "A", Position: "2"},
	})
	require.NoError(t, err)

	entries, err := store.FetchTracks(ctx)
	require.NoError(t, err)
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		keys = append(keys, e.TrackKey)
	}
	assert.Equal(t, []string{"3:2", "3:10", "3:A2", "3:A10", "4:A2", "4:A10", "4:B1"}, keys)
}

func TestSearchWords(t *testing.T) {
	assert.Equal(t, []string{"yesterday", "once", "more"}, searchWords("yesterday once more"))
	assert.Equal(t, []string{"bohemian", "rhapsody"}, searchWords("bohemian rhapsody (op)"))
	assert.Empty(t, searchWords("a b"))
}

func TestPlaylists(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	highest, err := store.MaxPlaylistSortOrder(ctx)
	require.NoError(t, err)
	assert.Zero(t, highest)

	first, err := store.CreatePlaylist(ctx, "Road Trip", "car", "#ff0000", 1)
	require.NoError(t, err)
	second, err := store.CreatePlaylist(ctx, "Rainy Day", "", "", 2)
	require.NoError(t, err)

	highest, err = store.MaxPlaylistSortOrder(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, highest)

	p, err := store.FindPlaylist(ctx, first)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Road Trip", p.Name)
	assert.Equal(t, "car", p.Icon)
	assert.Equal(t, "#ff0000", p.Color)

	missing, err := store.FindPlaylist(ctx, second+100)
	require.NoError(t, err)
	assert.Nil(t, missing)

	all, err := store.ListPlaylists(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, first, all[0].ID)
	assert.Equal(t, second, all[1].ID)

	_, err = store.CreatePlaylist(ctx, " ", "", "", 3)
	assert.Error(t, err)
}

func TestAppendMembership(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	id, err := store.CreatePlaylist(ctx, "Mix", "", "", 1)
	require.NoError(t, err)

	require.NoError(t, store.AppendMembership(ctx, id, []models.PlaylistItem{
		{TrackKey: "1:A1", SortOrder: 1},
		{TrackKey: "1:B2", SortOrder: 2},
	}))
	require.NoError(t, store.AppendMembership(ctx, id, []models.PlaylistItem{{TrackKey: "2:A1", SortOrder: 3}}))
	require.NoError(t, store.AppendMembership(ctx, id, nil))

	tests := []struct {
		name  string
		items []models.PlaylistItem
	}{
		{"stale sort order", []models.PlaylistItem{{TrackKey: "3:A1", SortOrder: 3}}},
		{"existing member", []models.PlaylistItem{{TrackKey: "3:A1", SortOrder: 4}, {TrackKey: "1:A1", SortOrder: 5}}},
		{"non increasing batch", []models.PlaylistItem{{TrackKey: "3:A1", SortOrder: 6}, {TrackKey: "3:A2", SortOrder: 6}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.AppendMembership(ctx, id, tt.items)
			assert.ErrorIs(t, err, ErrMembershipConflict)
		})
	}

	items, err := store.ListMembership(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []models.PlaylistItem{
		{TrackKey: "1:A1", SortOrder: 1},
		{TrackKey: "1:B2", SortOrder: 2},
		{TrackKey: "2:A1", SortOrder: 3},
	}, items, "rejected batches must leave membership untouched")

	err = store.AppendMembership(ctx, id+1, []models.PlaylistItem{{TrackKey: "1:A1", SortOrder: 1}})
	assert.ErrorIs(t, err, ErrPlaylistNotFound)
}

func TestTrackRegistry(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	require.NoError(t, store.UpsertMapping(ctx, TrackMapping{TrackKey: "1:A1", SpotifyID: "3BQHpFgAp4l80e1XslIjNI"}))
	require.NoError(t, store.UpsertMapping(ctx, TrackMapping{TrackKey: "1:A1", ISRC: "GBAYE0601477"}))

	key, err := store.LookupSource(ctx, "spotify", "3BQHpFgAp4l80e1XslIjNI")
	require.NoError(t, err)
	assert.Equal(t, "1:A1", key, "later upserts keep earlier ids")

	key, err = store.LookupSource(ctx, "isrc", "GBAYE0601477")
	require.NoError(t, err)
	assert.Equal(t, "1:A1", key)

	key, err = store.LookupSource(ctx, "youtube", "dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Empty(t, key)

	_, err = store.LookupSource(ctx, "tidal", "x")
	assert.Error(t, err)
	assert.Error(t, store.UpsertMapping(ctx, TrackMapping{}))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Mappings)
}
