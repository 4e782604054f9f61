package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"trackmatch-srv/internal/config"
	"trackmatch-srv/internal/database"
	"trackmatch-srv/internal/models"
	"trackmatch-srv/internal/report"
)

func newPlaylistCommand(ctx *commandContext) *cobra.Command {
	var format string

	playlistCmd := &cobra.Command{
		Use:   "playlist",
		Short: "Inspect shop playlists",
	}
	playlistCmd.PersistentFlags().StringVarP(&format, "format", "f", "table", "Output format: table, json or yaml")

	playlistCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List playlists in display order",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := report.ParseFormat(format)
			if err != nil {
				return err
			}
			return ctx.withStore(func(_ *config.Config, store *database.Store) error {
				playlists, err := store.ListPlaylists(cmd.Context())
				if err != nil {
					return err
				}
				return report.WritePlaylists(cmd.OutOrStdout(), playlists, f)
			})
		},
	})

	playlistCmd.AddCommand(&cobra.Command{
		Use:   "show ID",
		Short: "Show the ordered tracks of a playlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := report.ParseFormat(format)
			if err != nil {
				return err
			}
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid playlist id %q", args[0])
			}
			return ctx.withStore(func(cfg *config.Config, store *database.Store) error {
				p, err := store.FindPlaylist(cmd.Context(), id)
				if err != nil {
					return err
				}
				if p == nil {
					return fmt.Errorf("%w: %d", database.ErrPlaylistNotFound, id)
				}
				items, err := store.ListMembership(cmd.Context(), id)
				if err != nil {
					return err
				}

				catalogSource, _, err := sources(cfg, store)
				if err != nil {
					return err
				}
				entries, err := catalogSource.FetchTracks(cmd.Context())
				if err != nil {
					return fmt.Errorf("fetch catalog: %w", err)
				}
				return report.WritePlaylist(cmd.OutOrStdout(), playlistView(*p, items, entries), f)
			})
		},
	})

	return playlistCmd
}

func playlistView(p models.Playlist, items []models.PlaylistItem, entries []models.CatalogEntry) report.PlaylistView {
	byKey := make(map[string]models.CatalogEntry, len(entries))
	for _, e := range entries {
		byKey[e.TrackKey] = e
	}
	view := report.PlaylistView{Playlist: p, Items: make([]report.PlaylistViewItem, 0, len(items))}
	for _, item := range items {
		e := byKey[item.TrackKey]
		view.Items = append(view.Items, report.PlaylistViewItem{PlaylistItem: item, Title: e.Title, Artist: e.Artist})
	}
	return view
}
