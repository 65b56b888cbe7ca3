package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deusflow/feedwatch/internal/archive"
	"github.com/deusflow/feedwatch/internal/logger"
)

func archiveCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Show the archive's item count and newest items",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			store := archive.NewFileStore(cfg.ArchivePath, logger.New(cfg.Debug))

			items, err := store.Read(cmd.Context())
			if errors.Is(err, archive.ErrNotExist) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: no archive yet\n", cfg.ArchivePath)
				return nil
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d items (cap %d)\n", cfg.ArchivePath, len(items), cfg.MaxArchiveItems)
			for i, it := range items {
				if i >= limit {
					break
				}
				fmt.Fprintf(out, "%s %s [%s] %s\n    %s\n", it.Date, it.Time, it.Source, it.Title, it.Link)
			}
			return nil
		},
	}
	cmd.PersistentFlags().String("archive", "", "archive HTML path (overrides ARCHIVE_PATH)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of newest items to print")

	cmd.AddCommand(rebuildCmd())
	return cmd
}

func rebuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Re-render the archive with the current template and cap",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log := logger.New(cfg.Debug)

			engine := &archive.Engine{
				Store:    archive.NewFileStore(cfg.ArchivePath, log),
				Max:      cfg.MaxArchiveItems,
				Location: cfg.Location(),
				Logger:   logger.Component(log, "archive"),
			}
			res, err := engine.Rebuild(cmd.Context())
			if err != nil {
				return err
			}
			if !res.Written {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: nothing to rebuild\n", cfg.ArchivePath)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d items (%d dropped by cap)\n", cfg.ArchivePath, res.Total, res.Dropped)
			return nil
		},
	}
}
