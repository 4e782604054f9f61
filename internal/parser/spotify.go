package parser

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"

	"trackmatch-srv/internal/models"
)

const spotifyBatchSize = 50

// SpotifyParser turns Spotify playlist, album and track links into source
// rows through the Web API.
type SpotifyParser struct {
	client *spotify.Client
}

func NewSpotifyParser(client *spotify.Client) *SpotifyParser {
	return &SpotifyParser{client: client}
}

// NewSpotifyClient builds a Web API client authenticated with the client
// credentials flow. Tokens refresh automatically.
func NewSpotifyClient(ctx context.Context, clientID, clientSecret string, opts ...spotify.ClientOption) (*spotify.Client, error) {
	if clientID == "" || clientSecret == "" {
		return nil, errors.New("spotify client id and secret are required")
	}
	config := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	return spotify.New(config.Client(ctx), opts...), nil
}

// Parse fetches the rows behind a Spotify link and returns them with the
// source's display name.
func (p *SpotifyParser) Parse(ctx context.Context, link string) ([]models.SourceRow, string, error) {
	id, mediaType, err := parseSpotifyURL(link)
	if err != nil {
		return nil, "", fmt.Errorf("spotify parse url: %w", err)
	}

	switch mediaType {
	case "playlist":
		return p.handlePlaylist(ctx, id)
	case "album":
		return p.handleAlbum(ctx, id)
	case "track":
		return p.handleTrack(ctx, id)
	default:
		return nil, "", fmt.Errorf("unsupported spotify type: %s", mediaType)
	}
}

func (p *SpotifyParser) handlePlaylist(ctx context.Context, id spotify.ID) ([]models.SourceRow, string, error) {
	res, err := p.client.GetPlaylist(ctx, id)
	if err != nil {
		return nil, "", fmt.Errorf("get playlist: %w", err)
	}

	var rows []models.SourceRow
	page := res.Tracks
	for {
		for _, item := range page.Tracks {
			if item.Track.ID != "" && !item.IsLocal {
				rows = append(rows, spotifyRow(item.Track))
			}
		}

		err = p.client.NextPage(ctx, &page)
		if errors.Is(err, spotify.ErrNoMorePages) {
			break
		}
		if err != nil {
			return rows, res.Name, fmt.Errorf("playlist pagination: %w", err)
		}
	}
	return rows, res.Name, nil
}

// handleAlbum refetches album tracks in batches because simple tracks carry
// no ISRC.
func (p *SpotifyParser) handleAlbum(ctx context.Context, id spotify.ID) ([]models.SourceRow, string, error) {
	res, err := p.client.GetAlbum(ctx, id)
	if err != nil {
		return nil, "", fmt.Errorf("get album: %w", err)
	}

	ids := make([]spotify.ID, 0, len(res.Tracks.Tracks))
	for _, t := range res.Tracks.Tracks {
		ids = append(ids, t.ID)
	}

	rows := make([]models.SourceRow, 0, len(ids))
	for i := 0; i < len(ids); i += spotifyBatchSize {
		end := min(i+spotifyBatchSize, len(ids))
		full, err := p.client.GetTracks(ctx, ids[i:end])
		if err != nil {
			return nil, "", fmt.Errorf("get album tracks: %w", err)
		}
		for _, ft := range full {
			if ft != nil {
				rows = append(rows, spotifyRow(*ft))
			}
		}
	}
	return rows, res.Name, nil
}

func (p *SpotifyParser) handleTrack(ctx context.Context, id spotify.ID) ([]models.SourceRow, string, error) {
	res, err := p.client.GetTrack(ctx, id)
	if err != nil {
		return nil, "", fmt.Errorf("get track: %w", err)
	}
	return []models.SourceRow{spotifyRow(*res)}, res.Name, nil
}

// parseSpotifyURL accepts open.spotify.com links and spotify: URIs.
func parseSpotifyURL(link string) (spotify.ID, string, error) {
	if strings.HasPrefix(link, "spotify:") {
		parts := strings.Split(link, ":")
		if len(parts) == 3 && parts[2] != "" {
			return spotify.ID(parts[2]), parts[1], nil
		}
		return "", "", fmt.Errorf("malformed spotify uri %q", link)
	}

	u, err := url.Parse(link)
	if err != nil {
		return "", "", err
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) > 0 && strings.HasPrefix(segments[0], "intl-") {
		segments = segments[1:]
	}
	if len(segments) < 2 || segments[1] == "" {
		return "", "", errors.New("could not identify media type from URL")
	}
	switch segments[0] {
	case "playlist", "album", "track":
		return spotify.ID(segments[1]), segments[0], nil
	}
	return "", "", fmt.Errorf("unsupported spotify type: %s", segments[0])
}

func spotifyRow(st spotify.FullTrack) models.SourceRow {
	artists := make([]string, len(st.Artists))
	for i, a := range st.Artists {
		artists[i] = a.Name
	}
	return models.SourceRow{
		Title:    st.Name,
		Artist:   strings.Join(artists, ", "),
		ISRC:     st.ExternalIDs["isrc"],
		SourceID: string(st.ID),
		Type:     "spotify",
	}
}
