package models

import (
	"fmt"
	"strconv"
	"strings"
)

// SourceRow is one external record from an import file or a streaming source.
type SourceRow struct {
	Title    string `json:"title"`
	Artist   string `json:"artist,omitempty"`
	ISRC     string `json:"isrc,omitempty"`
	SourceID string `json:"source_id,omitempty"`
	Type     string `json:"type,omitempty"`
}

// CatalogEntry is a raw inventory record as delivered by a catalog source.
type CatalogEntry struct {
	TrackKey string `json:"track_key"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Side     string `json:"side,omitempty"`
	Position string `json:"position,omitempty"`
	ISRC     string `json:"isrc,omitempty"`
}

// CatalogTrack is a catalog entry with its canonical forms precomputed.
type CatalogTrack struct {
	CatalogEntry
	CanonicalTitle  string   `json:"-"`
	CanonicalArtist string   `json:"-"`
	TitleTokens     []string `json:"-"`
	ArtistTokens    []string `json:"-"`
}

// MakeTrackKey builds the composite key of a track on a physical release.
func MakeTrackKey(releaseID int64, trackID string) string {
	return fmt.Sprintf("%d:%s", releaseID, trackID)
}

// SplitTrackKey is the inverse of MakeTrackKey.
func SplitTrackKey(key string) (int64, string, error) {
	release, track, ok := strings.Cut(key, ":")
	if !ok || track == "" {
		return 0, "", fmt.Errorf("malformed track key %q", key)
	}
	releaseID, err := strconv.ParseInt(release, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("malformed track key %q: %w", key, err)
	}
	return releaseID, track, nil
}

type MatchCandidate struct {
	TrackKey string  `json:"track_key"`
	Title    string  `json:"title"`
	Artist   string  `json:"artist"`
	Side     string  `json:"side,omitempty"`
	Position string  `json:"position,omitempty"`
	Score    float64 `json:"score"`
}

// MissingRow is a row that was not resolved automatically.
type MissingRow struct {
	SourceRow
	Candidates []MatchCandidate `json:"candidates"`
}

type ImportResult struct {
	RunID             string       `json:"run_id"`
	PlaylistID        int64        `json:"playlist_id"`
	PlaylistName      string       `json:"playlist_name"`
	MatchingMode      string       `json:"matching_mode"`
	SourceCount       int          `json:"source_count"`
	ResolvedCount     int          `json:"resolved_count"`
	MatchedCount      int          `json:"matched_count"`
	FuzzyMatchedCount int          `json:"fuzzy_matched_count"`
	UnmatchedCount    int          `json:"unmatched_count"`
	DuplicatesSkipped int          `json:"duplicates_skipped"`
	UnmatchedSample   []MissingRow `json:"unmatched_sample"`
}

type Playlist struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Icon      string `json:"icon,omitempty"`
	Color     string `json:"color,omitempty"`
	SortOrder int    `json:"sort_order"`
}

type PlaylistItem struct {
	TrackKey  string `json:"track_key"`
	SortOrder int    `json:"sort_order"`
}

// LegacyQuery is sent to the legacy full-text search with raw row text.
type LegacyQuery struct {
	Title  string `json:"title"`
	Artist string `json:"artist,omitempty"`
	Limit  int    `json:"limit"`
}

type LegacyCandidate struct {
	TrackKey string  `json:"track_key"`
	Title    string  `json:"title"`
	Artist   string  `json:"artist"`
	Side     string  `json:"side,omitempty"`
	Position string  `json:"position,omitempty"`
	Score    float64 `json:"score"`
}
