// Package importer runs a whole playlist import: it matches source rows
// against a catalog snapshot, dedupes the resolved tracks, resolves or
// creates the target playlist and appends the tracks it does not already hold.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/arunsworld/nursery"
	"github.com/google/uuid"

	"trackmatch-srv/internal/catalog"
	"trackmatch-srv/internal/database"
	"trackmatch-srv/internal/inventory"
	"trackmatch-srv/internal/matcher"
	"trackmatch-srv/internal/models"
)

const (
	// UnmatchedSampleLimit bounds the missing rows carried by a result.
	UnmatchedSampleLimit = 100
	defaultAppendTries   = 3
)

// ErrPlaylistNotFound means the request named a playlist id that does not
// exist.
var ErrPlaylistNotFound = errors.New("playlist not found")

// CatalogSource delivers the inventory in bulk.
type CatalogSource interface {
	FetchTracks(ctx context.Context) ([]models.CatalogEntry, error)
}

// PlaylistStore persists playlists and their ordered membership.
type PlaylistStore interface {
	CreatePlaylist(ctx context.Context, name, icon, color string, sortOrder int) (int64, error)
	MaxPlaylistSortOrder(ctx context.Context) (int, error)
	FindPlaylist(ctx context.Context, id int64) (*models.Playlist, error)
	ListMembership(ctx context.Context, playlistID int64) ([]models.PlaylistItem, error)
	AppendMembership(ctx context.Context, playlistID int64, items []models.PlaylistItem) error
}

// MatchRecorder remembers which source identifiers resolved to a track.
type MatchRecorder interface {
	RecordMatch(ctx context.Context, trackKey string, row models.SourceRow) error
}

// ProgressFunc observes each row as it resolves. Calls are serialized but
// arrive in completion order when matching runs on several workers.
type ProgressFunc func(index, total int, out matcher.Outcome)

// Request describes one import.
type Request struct {
	Rows         []models.SourceRow
	PlaylistName string
	// PlaylistID targets an existing playlist; nil creates a new one.
	PlaylistID   *int64
	Icon         string
	Color        string
	MatchingMode string
	// AuthToken is forwarded to the catalog and legacy search untouched.
	AuthToken string
}

type Options struct {
	Catalog     CatalogSource
	Legacy      matcher.LegacySearcher
	Store       PlaylistStore
	Recorder    MatchRecorder
	Workers     int
	LegacyLimit int
	Progress    ProgressFunc
	Logger      *slog.Logger
}

type Importer struct {
	catalog     CatalogSource
	legacy      matcher.LegacySearcher
	store       PlaylistStore
	recorder    MatchRecorder
	workers     int
	legacyLimit int
	progress    ProgressFunc
	logger      *slog.Logger
}

func New(opts Options) (*Importer, error) {
	if opts.Catalog == nil {
		return nil, errors.New("importer: catalog source is required")
	}
	if opts.Store == nil {
		return nil, errors.New("importer: playlist store is required")
	}
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Importer{
		catalog:     opts.Catalog,
		legacy:      opts.Legacy,
		store:       opts.Store,
		recorder:    opts.Recorder,
		workers:     workers,
		legacyLimit: opts.LegacyLimit,
		progress:    opts.Progress,
		logger:      logger,
	}, nil
}

// Run executes an import. Rows that do not resolve are reported in the
// result; only structural failures return an error.
func (im *Importer) Run(ctx context.Context, req Request) (*models.ImportResult, error) {
	started := time.Now()
	mode := matcher.ParseMode(req.MatchingMode)
	runID := uuid.NewString()
	logger := im.logger.With(slog.String("run_id", runID))
	ctx = inventory.WithToken(ctx, req.AuthToken)

	var target *models.Playlist
	if req.PlaylistID != nil {
		p, err := im.store.FindPlaylist(ctx, *req.PlaylistID)
		if err != nil {
			return nil, fmt.Errorf("find playlist: %w", err)
		}
		if p == nil {
			return nil, fmt.Errorf("%w: %d", ErrPlaylistNotFound, *req.PlaylistID)
		}
		target = p
	}

	rows := usableRows(req.Rows)
	logger.Info("import started",
		slog.String("mode", string(mode)),
		slog.Int("rows", len(rows)),
		slog.Int("dropped", len(req.Rows)-len(rows)),
	)

	entries, err := im.catalog.FetchTracks(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch catalog: %w", err)
	}
	idx := catalog.NewIndex(entries)
	logger.Debug("catalog indexed", slog.Int("tracks", idx.Len()))

	m := matcher.New(idx, im.legacy, matcher.Options{
		Mode:        mode,
		LegacyLimit: im.legacyLimit,
		Logger:      logger,
	})
	outcomes, err := im.matchAll(ctx, m, rows)
	if err != nil {
		return nil, err
	}

	result := &models.ImportResult{
		RunID:           runID,
		MatchingMode:    string(mode),
		SourceCount:     len(rows),
		UnmatchedSample: []models.MissingRow{},
	}

	var (
		keys    []string
		fuzzy   = make(map[string]bool)
		firstOf = make(map[string]models.SourceRow)
	)
	for _, out := range outcomes {
		if !out.Matched() {
			result.UnmatchedCount++
			if len(result.UnmatchedSample) < UnmatchedSampleLimit {
				result.UnmatchedSample = append(result.UnmatchedSample, models.MissingRow{
					SourceRow:  out.Row,
					Candidates: out.Candidates,
				})
			}
			continue
		}
		if _, seen := firstOf[out.TrackKey]; seen {
			continue
		}
		keys = append(keys, out.TrackKey)
		firstOf[out.TrackKey] = out.Row
		fuzzy[out.TrackKey] = out.Fuzzy
	}
	result.ResolvedCount = len(keys)

	if target == nil {
		target, err = im.createPlaylist(ctx, req)
		if err != nil {
			return nil, err
		}
	}
	result.PlaylistID = target.ID
	result.PlaylistName = target.Name

	inserted, err := im.appendNew(ctx, target.ID, keys)
	if err != nil {
		return nil, err
	}
	result.MatchedCount = len(inserted)
	for _, key := range inserted {
		if fuzzy[key] {
			result.FuzzyMatchedCount++
		}
	}
	result.DuplicatesSkipped = result.ResolvedCount - result.MatchedCount

	im.recordMatches(ctx, logger, keys, firstOf)

	logger.Info("import complete",
		slog.Int64("playlist_id", result.PlaylistID),
		slog.Int("matched", result.MatchedCount),
		slog.Int("fuzzy", result.FuzzyMatchedCount),
		slog.Int("unmatched", result.UnmatchedCount),
		slog.Int("duplicates_skipped", result.DuplicatesSkipped),
		slog.Duration("elapsed", time.Since(started)),
	)
	return result, nil
}

// matchAll resolves rows on the configured number of workers. Outcomes are
// stored by row index so callers see input order regardless of scheduling.
func (im *Importer) matchAll(ctx context.Context, m *matcher.Matcher, rows []models.SourceRow) ([]matcher.Outcome, error) {
	outcomes := make([]matcher.Outcome, len(rows))
	total := len(rows)

	var mu sync.Mutex
	report := func(out matcher.Outcome) {
		if im.progress == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		im.progress(out.Index, total, out)
	}

	workers := min(im.workers, total)
	if workers <= 1 {
		for i, row := range rows {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			outcomes[i] = m.Match(ctx, i, row)
			report(outcomes[i])
		}
		return outcomes, nil
	}

	next := make(chan int)
	jobs := make([]nursery.ConcurrentJob, 0, workers+1)
	jobs = append(jobs, func(_ context.Context, _ chan error) {
		defer close(next)
		for i := range rows {
			select {
			case next <- i:
			case <-ctx.Done():
				return
			}
		}
	})
	for w := 0; w < workers; w++ {
		jobs = append(jobs, func(_ context.Context, _ chan error) {
			for i := range next {
				outcomes[i] = m.Match(ctx, i, rows[i])
				report(outcomes[i])
			}
		})
	}
	if err := nursery.RunConcurrently(jobs...); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

func (im *Importer) createPlaylist(ctx context.Context, req Request) (*models.Playlist, error) {
	highest, err := im.store.MaxPlaylistSortOrder(ctx)
	if err != nil {
		return nil, fmt.Errorf("read playlist order: %w", err)
	}
	name := strings.TrimSpace(req.PlaylistName)
	if name == "" {
		name = "Imported " + time.Now().Format("2006-01-02 15:04")
	}
	id, err := im.store.CreatePlaylist(ctx, name, req.Icon, req.Color, highest+1)
	if err != nil {
		return nil, fmt.Errorf("create playlist: %w", err)
	}
	return &models.Playlist{ID: id, Name: name, Icon: req.Icon, Color: req.Color, SortOrder: highest + 1}, nil
}

// appendNew adds the keys the playlist does not already contain, numbering
// them after the current last item. A concurrent writer makes the store
// reject the batch; membership is then re-read and the batch rebuilt.
func (im *Importer) appendNew(ctx context.Context, playlistID int64, keys []string) ([]string, error) {
	var lastErr error
	for attempt := 0; attempt < defaultAppendTries; attempt++ {
		existing, err := im.store.ListMembership(ctx, playlistID)
		if err != nil {
			return nil, fmt.Errorf("list membership: %w", err)
		}
		present := make(map[string]struct{}, len(existing))
		last := 0
		for _, item := range existing {
			present[item.TrackKey] = struct{}{}
			last = max(last, item.SortOrder)
		}

		var (
			fresh []string
			items []models.PlaylistItem
		)
		for _, key := range keys {
			if _, ok := present[key]; ok {
				continue
			}
			last++
			fresh = append(fresh, key)
			items = append(items, models.PlaylistItem{TrackKey: key, SortOrder: last})
		}
		if len(items) == 0 {
			return nil, nil
		}

		err = im.store.AppendMembership(ctx, playlistID, items)
		if err == nil {
			return fresh, nil
		}
		if !errors.Is(err, database.ErrMembershipConflict) {
			return nil, fmt.Errorf("append membership: %w", err)
		}
		lastErr = err
		im.logger.Warn("playlist changed during import, retrying",
			slog.Int64("playlist_id", playlistID),
			slog.Int("attempt", attempt+1),
		)
	}
	return nil, fmt.Errorf("append membership: %w", lastErr)
}

// recordMatches stores streaming ids for resolved tracks. Failures are
// logged and do not fail the import.
func (im *Importer) recordMatches(ctx context.Context, logger *slog.Logger, keys []string, rows map[string]models.SourceRow) {
	if im.recorder == nil {
		return
	}
	for _, key := range keys {
		row := rows[key]
		if row.SourceID == "" && row.ISRC == "" {
			continue
		}
		if err := im.recorder.RecordMatch(ctx, key, row); err != nil {
			logger.Warn("record match failed",
				slog.String("track_key", key),
				slog.String("error", err.Error()),
			)
		}
	}
}

func usableRows(rows []models.SourceRow) []models.SourceRow {
	out := make([]models.SourceRow, 0, len(rows))
	for _, row := range rows {
		row.Title = strings.TrimSpace(row.Title)
		row.Artist = strings.TrimSpace(row.Artist)
		if row.Title == "" {
			continue
		}
		out = append(out, row)
	}
	return out
}
