package parser

import (
	"context"
	"fmt"

	"github.com/kkdai/youtube/v2"

	"trackmatch-srv/internal/models"
)

// YouTubeParser turns YouTube playlist and video links into source rows by
// splitting video titles into artist and title.
type YouTubeParser struct {
	client *youtube.Client
}

func NewYouTubeParser(client *youtube.Client) *YouTubeParser {
	if client == nil {
		client = &youtube.Client{}
	}
	return &YouTubeParser{client: client}
}

// Parse tries the link as a playlist first and falls back to a single video.
func (p *YouTubeParser) Parse(ctx context.Context, link string) ([]models.SourceRow, string, error) {
	playlist, err := p.client.GetPlaylistContext(ctx, link)
	if err == nil {
		rows := make([]models.SourceRow, 0, len(playlist.Videos))
		for _, entry := range playlist.Videos {
			rows = append(rows, youTubeRow(entry.ID, entry.Title, entry.Author))
		}
		return rows, playlist.Title, nil
	}

	video, err := p.client.GetVideoContext(ctx, link)
	if err != nil {
		return nil, "", fmt.Errorf("parse youtube url: %w", err)
	}
	return []models.SourceRow{youTubeRow(video.ID, video.Title, video.Author)}, video.Title, nil
}

func youTubeRow(id, rawTitle, uploader string) models.SourceRow {
	artist, title := NormalizeYTTitle(rawTitle, uploader)
	return models.SourceRow{
		Title:    title,
		Artist:   artist,
		SourceID: id,
		Type:     "youtube",
	}
}
