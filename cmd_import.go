package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"trackmatch-srv/internal/config"
	"trackmatch-srv/internal/database"
	"trackmatch-srv/internal/importer"
	"trackmatch-srv/internal/models"
	"trackmatch-srv/internal/parser"
	"trackmatch-srv/internal/report"
)

const importLockRetry = 250 * time.Millisecond

type importFlags struct {
	spotify    string
	youtube    string
	name       string
	playlistID int64
	mode       string
	icon       string
	color      string
	format     string
	wait       time.Duration
}

func newImportCommand(ctx *commandContext) *cobra.Command {
	var flags importFlags

	cmd := &cobra.Command{
		Use:   "import [FILE]",
		Short: "Import a CSV file or streaming playlist into a shop playlist",
		Long: "Import rows from a CSV/TSV file (use - for stdin), a Spotify link or a YouTube link.\n" +
			"Matched tracks are appended to the playlist given by --playlist-id or to a new one.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := report.ParseFormat(flags.format)
			if err != nil {
				return err
			}
			sourceCount := len(args)
			if flags.spotify != "" {
				sourceCount++
			}
			if flags.youtube != "" {
				sourceCount++
			}
			if sourceCount != 1 {
				return errors.New("give exactly one of FILE, --spotify or --youtube")
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			rows, sourceName, err := loadRows(cmd.Context(), cfg, cmd.InOrStdin(), args, flags)
			if err != nil {
				return err
			}

			req := importer.Request{
				Rows:         rows,
				PlaylistName: flags.name,
				Icon:         flags.icon,
				Color:        flags.color,
				MatchingMode: flags.mode,
			}
			if req.PlaylistName == "" {
				req.PlaylistName = sourceName
			}
			if req.MatchingMode == "" {
				req.MatchingMode = cfg.Matching.Mode
			}
			if cmd.Flags().Changed("playlist-id") {
				id := flags.playlistID
				req.PlaylistID = &id
			}

			return ctx.withStore(func(cfg *config.Config, store *database.Store) error {
				unlock, err := lockImports(cmd.Context(), store.Path(), flags.wait)
				if err != nil {
					return err
				}
				defer unlock()

				im, err := newImporter(cfg, store, logger, nil)
				if err != nil {
					return err
				}
				res, err := im.Run(cmd.Context(), req)
				if err != nil {
					return err
				}
				return report.WriteResult(cmd.OutOrStdout(), res, format)
			})
		},
	}

	cmd.Flags().StringVar(&flags.spotify, "spotify", "", "Spotify playlist, album or track link")
	cmd.Flags().StringVar(&flags.youtube, "youtube", "", "YouTube playlist or video link")
	cmd.Flags().StringVarP(&flags.name, "name", "n", "", "Name of the playlist to create")
	cmd.Flags().Int64Var(&flags.playlistID, "playlist-id", 0, "Append to an existing playlist")
	cmd.Flags().StringVarP(&flags.mode, "mode", "m", "", "Matching mode: strict, balanced or aggressive")
	cmd.Flags().StringVar(&flags.icon, "icon", "", "Icon of a created playlist")
	cmd.Flags().StringVar(&flags.color, "color", "", "Color of a created playlist")
	cmd.Flags().StringVarP(&flags.format, "format", "f", "table", "Output format: table, json or yaml")
	cmd.Flags().DurationVar(&flags.wait, "wait", 30*time.Second, "How long to wait for another import to finish")

	return cmd
}

func loadRows(ctx context.Context, cfg *config.Config, stdin io.Reader, args []string, flags importFlags) ([]models.SourceRow, string, error) {
	switch {
	case flags.spotify != "":
		if !cfg.SpotifyEnabled() {
			return nil, "", errors.New("spotify import needs SPOTIFY_ID and SPOTIFY_SECRET")
		}
		return fromStreaming(ctx, cfg, "spotify", flags.spotify)
	case flags.youtube != "":
		return fromStreaming(ctx, cfg, "youtube", flags.youtube)
	}

	path := args[0]
	var r io.Reader = stdin
	name := "stdin"
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, "", fmt.Errorf("open import file: %w", err)
		}
		defer f.Close()
		r = f
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	rows, err := parser.ParseCSV(r)
	if err != nil {
		return nil, "", fmt.Errorf("parse %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, "", fmt.Errorf("parse %s: %w", path, parser.ErrNoRows)
	}
	return rows, name, nil
}

func fromStreaming(ctx context.Context, cfg *config.Config, kind, link string) ([]models.SourceRow, string, error) {
	srcs, err := streamingSources(ctx, cfg)
	if err != nil {
		return nil, "", err
	}
	rows, name, err := srcs[kind].Parse(ctx, link)
	if err != nil {
		return nil, "", fmt.Errorf("extract %s: %w", kind, err)
	}
	if len(rows) == 0 {
		return nil, "", parser.ErrNoRows
	}
	return rows, name, nil
}

// lockImports serializes CLI imports against the same database. The lock
// file sits next to the database so every process agrees on it.
func lockImports(ctx context.Context, dbPath string, wait time.Duration) (func(), error) {
	lock := flock.New(dbPath + ".lock")

	lockCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	ok, err := lock.TryLockContext(lockCtx, importLockRetry)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("another import holds %s", lock.Path())
		}
		return nil, fmt.Errorf("acquire import lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("another import holds %s", lock.Path())
	}
	return func() { _ = lock.Unlock() }, nil
}
