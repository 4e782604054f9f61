package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"trackmatch-srv/internal/catalog"
	"trackmatch-srv/internal/models"
)

// TrackMapping links a catalog track to the identifiers it was matched from.
type TrackMapping struct {
	TrackKey  string
	ISRC      string
	SpotifyID string
	YoutubeID string
}

// UpsertMapping inserts or updates the registry. Empty fields never wipe ids
// recorded by an earlier import.
func (s *Store) UpsertMapping(ctx context.Context, m TrackMapping) error {
	if m.TrackKey == "" {
		return errors.New("mapping has no track key")
	}
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO track_registry (track_key, isrc, spotify_id, youtube_id, last_updated)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(track_key) DO UPDATE SET
		isrc = COALESCE(excluded.isrc, track_registry.isrc),
		spotify_id = COALESCE(excluded.spotify_id, track_registry.spotify_id),
		youtube_id = COALESCE(excluded.youtube_id, track_registry.youtube_id),
		last_updated = excluded.last_updated`,
		m.TrackKey, nullableString(m.ISRC), nullableString(m.SpotifyID), nullableString(m.YoutubeID), now(),
	)
	if err != nil {
		return fmt.Errorf("upsert mapping %s: %w", m.TrackKey, err)
	}
	return nil
}

// LookupSource returns the track key previously matched to a streaming id.
// The empty string means no mapping is known.
func (s *Store) LookupSource(ctx context.Context, sourceType, sourceID string) (string, error) {
	if sourceID == "" {
		return "", nil
	}
	var query string
	switch sourceType {
	case "spotify":
		query = `SELECT track_key FROM track_registry WHERE spotify_id = ?`
	case "youtube":
		query = `SELECT track_key FROM track_registry WHERE youtube_id = ?`
	case "isrc":
		query = `SELECT track_key FROM track_registry WHERE isrc = ?`
	default:
		return "", fmt.Errorf("unsupported source type: %s", sourceType)
	}

	var key string
	err := s.db.QueryRowContext(ctx, query, sourceID).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("lookup %s mapping: %w", sourceType, err)
	}
	return key, nil
}

// RecordMatch registers the identifiers of a row that resolved to trackKey.
func (s *Store) RecordMatch(ctx context.Context, trackKey string, row models.SourceRow) error {
	m := TrackMapping{TrackKey: trackKey, ISRC: catalog.NormalizeISRC(row.ISRC)}
	switch row.Type {
	case "spotify":
		m.SpotifyID = row.SourceID
	case "youtube":
		m.YoutubeID = row.SourceID
	}
	return s.UpsertMapping(ctx, m)
}
