package parser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zmb3/spotify/v2"
)

func TestParseSpotifyURL(t *testing.T) {
	tests := []struct {
		link    string
		id      spotify.ID
		kind    string
		wantErr bool
	}{
		{link: "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M?si=abc", id: "37i9dQZF1DXcBWIGoYBM5M", kind: "playlist"},
		{link: "https://open.spotify.com/intl-fr/album/1klALx0u4AavZNEvC4LrTL", id: "1klALx0u4AavZNEvC4LrTL", kind: "album"},
		{link: "spotify:track:3BQHpFgAp4l80e1XslIjNI", id: "3BQHpFgAp4l80e1XslIjNI", kind: "track"},
		{link: "https://open.spotify.com/artist/0oSGxfWSnnOXhD2fKuz2Gy", wantErr: true},
		{link: "https://open.spotify.com/", wantErr: true},
		{link: "spotify:track", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.link, func(t *testing.T) {
			id, kind, err := parseSpotifyURL(tt.link)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.id, id)
			assert.Equal(t, tt.kind, kind)
		})
	}
}

func TestSpotifyParserTrack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tracks/3BQHpFgAp4l80e1XslIjNI" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "3BQHpFgAp4l80e1XslIjNI",
			"name": "Yesterday - Remastered 2009",
			"artists": [{"name": "The Beatles"}, {"name": "George Martin"}],
			"external_ids": {"isrc": "GBAYE0601477"}
		}`))
	}))
	defer srv.Close()

	client := spotify.New(srv.Client(), spotify.WithBaseURL(srv.URL+"/"))
	rows, name, err := NewSpotifyParser(client).Parse(context.Background(), "https://open.spotify.com/track/3BQHpFgAp4l80e1XslIjNI")
	require.NoError(t, err)
	require.Len(t, rows, 1)

	assert.Equal(t, "Yesterday - Remastered 2009", name)
	assert.Equal(t, "Yesterday - Remastered 2009", rows[0].Title)
	assert.Equal(t, "The Beatles, George Martin", rows[0].Artist)
	assert.Equal(t, "GBAYE0601477", rows[0].ISRC)
	assert.Equal(t, "3BQHpFgAp4l80e1XslIjNI", rows[0].SourceID)
	assert.Equal(t, "spotify", rows[0].Type)
}

func TestNewSpotifyClientRequiresCredentials(t *testing.T) {
	_, err := NewSpotifyClient(context.Background(), "", "secret")
	assert.Error(t, err)
}

func TestNormalizeYTTitle(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		uploader   string
		wantArtist string
		wantTitle  string
	}{
		{"artist dash title", "The Beatles - Hey Jude (Official Video)", "", "The Beatles", "Hey Jude"},
		{"acronym artist", "AC/DC - Back In Black [Official Audio]", "", "AC/DC", "Back In Black"},
		{"uploader fallback", "Yesterday", "The Beatles - Topic", "The Beatles", "Yesterday"},
		{"bracket noise", "Bohemian Rhapsody [HD]", "Queen Official", "Queen Official", "Bohemian Rhapsody"},
		{"no uploader", "some song", "", "", "Some Song"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			artist, title := NormalizeYTTitle(tt.raw, tt.uploader)
			assert.Equal(t, tt.wantArtist, artist)
			assert.Equal(t, tt.wantTitle, title)
		})
	}
}

func TestYouTubeRow(t *testing.T) {
	row := youTubeRow("dQw4w9WgXcQ", "Rick Astley - Never Gonna Give You Up (Official Music Video)", "Rick Astley")
	assert.Equal(t, "Never Gonna Give You Up", row.Title)
	assert.Equal(t, "Rick Astley", row.Artist)
	assert.Equal(t, "dQw4w9WgXcQ", row.SourceID)
	assert.Equal(t, "youtube", row.Type)
}
