package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"trackmatch-srv/internal/config"
	"trackmatch-srv/internal/database"
	"trackmatch-srv/internal/parser"
	"trackmatch-srv/internal/report"
)

func newCatalogCommand(ctx *commandContext) *cobra.Command {
	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the local catalog tables",
	}

	catalogCmd.AddCommand(newCatalogLoadCommand(ctx))
	catalogCmd.AddCommand(newCatalogStatsCommand(ctx))
	catalogCmd.AddCommand(newCatalogLookupCommand(ctx))

	return catalogCmd
}

func newCatalogLoadCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "load FILE",
		Short: "Seed the catalog from an inventory CSV export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open catalog file: %w", err)
			}
			defer f.Close()

			entries, err := parser.ParseCatalogCSV(f)
			if err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}
			return ctx.withStore(func(_ *config.Config, store *database.Store) error {
				n, err := store.UpsertTracks(cmd.Context(), entries)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d tracks into %s\n", n, store.Path())
				return nil
			})
		},
	}
}

func newCatalogStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show catalog and playlist counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *database.Store) error {
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				return report.WriteKeyValues(cmd.OutOrStdout(), [2]string{"Item", "Count"}, [][2]string{
					{"Tracks", strconv.Itoa(stats.Tracks)},
					{"Releases", strconv.Itoa(stats.Releases)},
					{"Tracks with ISRC", strconv.Itoa(stats.WithISRC)},
					{"Playlists", strconv.Itoa(stats.Playlists)},
					{"Known mappings", strconv.Itoa(stats.Mappings)},
				})
			})
		},
	}
}

func newCatalogLookupCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:       "lookup spotify|youtube|isrc ID",
		Short:     "Show the catalog track an earlier import matched to an id",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"spotify", "youtube", "isrc"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *database.Store) error {
				key, err := store.LookupSource(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				if key == "" {
					fmt.Fprintf(cmd.OutOrStdout(), "No track recorded for %s %s\n", args[0], args[1])
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), key)
				return nil
			})
		},
	}
}
