package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trackmatch-srv/internal/models"
)

func TestParseCatalogCSV(t *testing.T) {
	input := strings.Join([]string{
		"release_id;track_id;title;artist;side;position;isrc",
		"1;A1;Yesterday;The Beatles;A;1;gb-aye-06-01477",
		"1;A2;Help!;The Beatles;A;2;",
	}, "\n")

	entries, err := ParseCatalogCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, models.CatalogEntry{
		TrackKey: "1:A1", Title: "Yesterday", Artist: "The Beatles", Side: "A", Position: "1", ISRC: "GBAYE0601477",
	}, entries[0])
	assert.Equal(t, "1:A2", entries[1].TrackKey)
}

func TestParseCatalogCSVTrackKeyColumn(t *testing.T) {
	entries, err := ParseCatalogCSV(strings.NewReader("Track Key,Title,Artist\n9:B3,Intro,Daft Punk\n"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "9:B3", entries[0].TrackKey)
}

func TestParseCatalogCSVRejects(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"missing key columns", "title,artist\nYesterday,The Beatles\n", "track_key"},
		{"bad release", "release_id,track_id,title\nx,A1,Yesterday\n", "line 2"},
		{"missing title", "release_id,track_id,title\n1,A1,\n", "missing title"},
		{"bad key", "track_key,title\nnope,Yesterday\n", "malformed track key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCatalogCSV(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	_, err := ParseCatalogCSV(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrNoRows)
	_, err = ParseCatalogCSV(strings.NewReader("release_id,track_id,title\n"))
	assert.ErrorIs(t, err, ErrNoRows)
}
