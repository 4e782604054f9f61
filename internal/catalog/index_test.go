package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trackmatch-srv/internal/models"
)

func sampleEntries() []models.CatalogEntry {
	return []models.CatalogEntry{
		{TrackKey: "1:A1", Title: "Yesterday (Mono Mix)", Artist: "The Beatles", Side: "A", Position: "1", ISRC: "GBUM71029601"},
		{TrackKey: "1:A2", Title: "Help!", Artist: "The Beatles", Side: "A", Position: "2"},
		{TrackKey: "2:B1", Title: "Yesterday", Artist: "Boyz II Men", Side: "B", Position: "1"},
		{TrackKey: "3:A1", Title: "Intro", Artist: "Daft Punk"},
		{TrackKey: "1:A1", Title: "Duplicate Key", Artist: "Nobody"},
		{TrackKey: "", Title: "No Key", Artist: "Nobody"},
	}
}

func TestNewIndexLookups(t *testing.T) {
	idx := NewIndex(sampleEntries())
	require.Equal(t, 4, idx.Len())

	track, ok := idx.ByKey("1:A1")
	require.True(t, ok)
	assert.Equal(t, "yesterday", track.CanonicalTitle)
	assert.Equal(t, "beatles", track.CanonicalArtist)
	assert.Equal(t, "Yesterday (Mono Mix)", track.Title, "duplicate key must not replace the first entry")

	_, ok = idx.ByKey("")
	assert.False(t, ok)

	require.Len(t, idx.ByISRC("GBUM71029601"), 1)
	assert.Len(t, idx.ByTitle("yesterday"), 2)
	assert.Len(t, idx.ByArtist("beatles"), 2)
	require.Len(t, idx.ByPair("yesterday", "boyz ii men"), 1)
	assert.Equal(t, "2:B1", idx.ByPair("yesterday", "boyz ii men")[0].TrackKey)
	assert.Len(t, idx.ByToken("yesterday"), 2)
	assert.Len(t, idx.ByToken("beatles"), 2)
	assert.Empty(t, idx.ByToken("mono"), "noise words are not indexed")
}

func TestIndexPreservesCatalogOrder(t *testing.T) {
	idx := NewIndex(sampleEntries())
	keys := make([]string, 0, idx.Len())
	for _, tr := range idx.Tracks() {
		keys = append(keys, tr.TrackKey)
	}
	assert.Equal(t, []string{"1:A1", "1:A2", "2:B1", "3:A1"}, keys)
}

func TestTitlePrefix(t *testing.T) {
	idx := NewIndex(sampleEntries())
	assert.Len(t, idx.TitlePrefix("yeste", 10), 2)
	assert.Len(t, idx.TitlePrefix("yeste", 1), 1)
	assert.Empty(t, idx.TitlePrefix("", 10))
	assert.Empty(t, idx.TitlePrefix("zzz", 10))
}

func TestNormalizeISRC(t *testing.T) {
	tests := map[string]string{
		"GBUM71029601":    "GBUM71029601",
		"gb-um7-10-29601": "GBUM71029601",
		"US RC1 76 07839": "USRC17607839",
		"Yesterday":       "",
		"12345":           "",
		"":                "",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeISRC(in), in)
	}
}
