package database

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"github.com/agnivade/levenshtein"

	"trackmatch-srv/internal/models"
)

const (
	maxSearchWords   = 4
	minSearchWordLen = 3
	searchScanLimit  = 500
	searchTitleShare = 0.7
)

// CatalogStats summarizes the stored inventory.
type CatalogStats struct {
	Tracks    int `json:"tracks"`
	Releases  int `json:"releases"`
	WithISRC  int `json:"with_isrc"`
	Playlists int `json:"playlists"`
	Mappings  int `json:"mappings"`
}

// UpsertTracks writes catalog entries in one transaction. Entries are keyed by
// their release and track id; existing rows are overwritten.
func (s *Store) UpsertTracks(ctx context.Context, entries []models.CatalogEntry) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin upsert tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO catalog_tracks (release_id, track_id, title, artist, side, position, isrc, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(release_id, track_id) DO UPDATE SET
		title = excluded.title,
		artist = excluded.artist,
		side = excluded.side,
		position = excluded.position,
		isrc = COALESCE(NULLIF(excluded.isrc, ''), catalog_tracks.isrc),
		updated_at = excluded.updated_at`)
	if err != nil {
		return 0, fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	ts := now()
	for _, e := range entries {
		releaseID, trackID, err := models.SplitTrackKey(e.TrackKey)
		if err != nil {
			return 0, err
		}
		if strings.TrimSpace(e.Title) == "" {
			return 0, fmt.Errorf("track %s has no title", e.TrackKey)
		}
		if _, err := stmt.ExecContext(ctx, releaseID, trackID, e.Title, e.Artist, e.Side, e.Position, e.ISRC, ts); err != nil {
			return 0, fmt.Errorf("upsert track %s: %w", e.TrackKey, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit upsert: %w", err)
	}
	return len(entries), nil
}

const trackColumns = "release_id, track_id, title, artist, side, position, isrc"

func scanEntry(scanner interface{ Scan(dest ...any) error }) (models.CatalogEntry, error) {
	var (
		releaseID int64
		trackID   string
		e         models.CatalogEntry
	)
	if err := scanner.Scan(&releaseID, &trackID, &e.Title, &e.Artist, &e.Side, &e.Position, &e.ISRC); err != nil {
		return models.CatalogEntry{}, err
	}
	e.TrackKey = models.MakeTrackKey(releaseID, trackID)
	return e, nil
}

// catalogOrder lists tracks the way they sit on a release: by side, then
// numeric position, then track id with shorter ids first so "2" precedes
// "10". Index lookups that keep the first hit depend on it.
const catalogOrder = `release_id, side, CAST(position AS INTEGER), length(track_id), track_id`

// FetchTracks returns the whole catalog in release order.
func (s *Store) FetchTracks(ctx context.Context) ([]models.CatalogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+trackColumns+` FROM catalog_tracks ORDER BY `+catalogOrder)
	if err != nil {
		return nil, fmt.Errorf("query catalog: %w", err)
	}
	defer rows.Close()

	var entries []models.CatalogEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan catalog track: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate catalog: %w", err)
	}
	return entries, nil
}

// Search is the legacy full-text lookup. A LIKE prefilter on the longer
// words of the raw title narrows the catalog, and the survivors are ranked by
// Jaro-Winkler title similarity blended with Levenshtein artist similarity.
func (s *Store) Search(ctx context.Context, q models.LegacyQuery) ([]models.LegacyCandidate, error) {
	title := strings.ToLower(strings.TrimSpace(q.Title))
	if title == "" || q.Limit <= 0 {
		return nil, nil
	}

	words := searchWords(title)
	if len(words) == 0 {
		words = []string{title}
	}
	clauses := make([]string, len(words))
	args := make([]any, 0, len(words)+1)
	for i, w := range words {
		clauses[i] = `unicode_lower(title) LIKE ? ESCAPE '\'`
		args = append(args, "%"+escapeLike(w)+"%")
	}
	args = append(args, searchScanLimit)

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+trackColumns+` FROM catalog_tracks WHERE `+strings.Join(clauses, " OR ")+` LIMIT ?`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("legacy search: %w", err)
	}
	defer rows.Close()

	artist := strings.ToLower(strings.TrimSpace(q.Artist))
	jw := metrics.NewJaroWinkler()
	var out []models.LegacyCandidate
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan search hit: %w", err)
		}
		score := strutil.Similarity(title, strings.ToLower(e.Title), jw)
		if artist != "" {
			score = searchTitleShare*score + (1-searchTitleShare)*levenshteinSimilarity(artist, strings.ToLower(e.Artist))
		}
		out = append(out, models.LegacyCandidate{
			TrackKey: e.TrackKey,
			Title:    e.Title,
			Artist:   e.Artist,
			Side:     e.Side,
			Position: e.Position,
			Score:    score,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search hits: %w", err)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// Stats counts catalog, playlist and registry rows.
func (s *Store) Stats(ctx context.Context) (CatalogStats, error) {
	var st CatalogStats
	err := s.db.QueryRowContext(ctx, `
	SELECT
		(SELECT COUNT(1) FROM catalog_tracks),
		(SELECT COUNT(DISTINCT release_id) FROM catalog_tracks),
		(SELECT COUNT(1) FROM catalog_tracks WHERE isrc <> ''),
		(SELECT COUNT(1) FROM playlists),
		(SELECT COUNT(1) FROM track_registry)`,
	).Scan(&st.Tracks, &st.Releases, &st.WithISRC, &st.Playlists, &st.Mappings)
	if err != nil {
		return CatalogStats{}, fmt.Errorf("catalog stats: %w", err)
	}
	return st, nil
}

// searchWords picks the longest distinct words of a lowercase title.
func searchWords(title string) []string {
	fields := strings.FieldsFunc(title, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]struct{}, len(fields))
	var words []string
	for _, f := range fields {
		if utf8.RuneCountInString(f) < minSearchWordLen {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		words = append(words, f)
	}
	sort.SliceStable(words, func(i, j int) bool { return len(words[i]) > len(words[j]) })
	if len(words) > maxSearchWords {
		words = words[:maxSearchWords]
	}
	return words
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func levenshteinSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 0
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}
