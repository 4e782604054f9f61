package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"trackmatch-srv/internal/models"
)

// CreatePlaylist inserts a playlist and returns its id.
func (s *Store) CreatePlaylist(ctx context.Context, name, icon, color string, sortOrder int) (int64, error) {
	if strings.TrimSpace(name) == "" {
		return 0, errors.New("playlist name is required")
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO playlists (name, icon, color, sort_order, created_at) VALUES (?, ?, ?, ?, ?)`,
		name, icon, color, sortOrder, now(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert playlist: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// MaxPlaylistSortOrder returns the highest playlist sort order, 0 when there
// are no playlists.
func (s *Store) MaxPlaylistSortOrder(ctx context.Context) (int, error) {
	var highest int
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(sort_order), 0) FROM playlists`).Scan(&highest); err != nil {
		return 0, fmt.Errorf("max playlist sort order: %w", err)
	}
	return highest, nil
}

const playlistColumns = "id, name, icon, color, sort_order"

func scanPlaylist(scanner interface{ Scan(dest ...any) error }) (*models.Playlist, error) {
	var p models.Playlist
	if err := scanner.Scan(&p.ID, &p.Name, &p.Icon, &p.Color, &p.SortOrder); err != nil {
		return nil, err
	}
	return &p, nil
}

// FindPlaylist returns the playlist with id, or nil when it does not exist.
func (s *Store) FindPlaylist(ctx context.Context, id int64) (*models.Playlist, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+playlistColumns+` FROM playlists WHERE id = ?`, id)
	p, err := scanPlaylist(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find playlist: %w", err)
	}
	return p, nil
}

func (s *Store) ListPlaylists(ctx context.Context) ([]models.Playlist, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+playlistColumns+` FROM playlists ORDER BY sort_order, id`)
	if err != nil {
		return nil, fmt.Errorf("list playlists: %w", err)
	}
	defer rows.Close()

	var out []models.Playlist
	for rows.Next() {
		p, err := scanPlaylist(rows)
		if err != nil {
			return nil, fmt.Errorf("scan playlist: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate playlists: %w", err)
	}
	return out, nil
}

// ListMembership returns a playlist's items in sort order.
func (s *Store) ListMembership(ctx context.Context, playlistID int64) ([]models.PlaylistItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT track_key, sort_order FROM playlist_items WHERE playlist_id = ? ORDER BY sort_order`,
		playlistID,
	)
	if err != nil {
		return nil, fmt.Errorf("list membership: %w", err)
	}
	defer rows.Close()

	var out []models.PlaylistItem
	for rows.Next() {
		var item models.PlaylistItem
		if err := rows.Scan(&item.TrackKey, &item.SortOrder); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate membership: %w", err)
	}
	return out, nil
}

// AppendMembership adds items to a playlist in one transaction. The batch is
// rejected with ErrMembershipConflict when any item would not sort after the
// current last item, when sort orders are not strictly increasing, or when a
// track is already a member. Callers re-read membership and retry.
func (s *Store) AppendMembership(ctx context.Context, playlistID int64, items []models.PlaylistItem) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin membership tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM playlists WHERE id = ?`, playlistID).Scan(&exists); err != nil {
		return fmt.Errorf("check playlist: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("%w: %d", ErrPlaylistNotFound, playlistID)
	}

	var last int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sort_order), 0) FROM playlist_items WHERE playlist_id = ?`, playlistID,
	).Scan(&last); err != nil {
		return fmt.Errorf("max item sort order: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO playlist_items (playlist_id, track_key, sort_order, added_at) VALUES (?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("prepare membership insert: %w", err)
	}
	defer stmt.Close()

	ts := now()
	for _, item := range items {
		if item.SortOrder <= last {
			return fmt.Errorf("%w: sort order %d is not after %d", ErrMembershipConflict, item.SortOrder, last)
		}
		if _, err := stmt.ExecContext(ctx, playlistID, item.TrackKey, item.SortOrder, ts); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: %s is already a member", ErrMembershipConflict, item.TrackKey)
			}
			return fmt.Errorf("insert membership: %w", err)
		}
		last = item.SortOrder
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit membership: %w", err)
	}
	return nil
}
