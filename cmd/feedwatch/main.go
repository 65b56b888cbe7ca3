package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/deusflow/feedwatch/internal/app"
	"github.com/deusflow/feedwatch/internal/config"
	"github.com/deusflow/feedwatch/internal/logger"
)

func main() {
	root := &cobra.Command{
		Use:          "feedwatch",
		Short:        "feedwatch: financial RSS poller with chat alerts and an HTML timeline",
		Long:         "Polls RSS feeds, translates fresh headlines, notifies chat channels and keeps a capped HTML archive.",
		SilenceUsage: true,
	}
	run := runCmd()
	root.RunE = run.RunE
	root.Flags().AddFlagSet(run.Flags())

	root.AddCommand(
		run,
		archiveCmd(),
		serveCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig applies path flags on top of the environment.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, err
	}
	if f := cmd.Flags().Lookup("feeds"); f != nil && f.Changed {
		cfg.FeedsPath = f.Value.String()
	}
	if f := cmd.Flags().Lookup("archive"); f != nil && f.Changed {
		cfg.ArchivePath = f.Value.String()
	}
	return cfg, cfg.Validate()
}

func runCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Poll every feed once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log := logger.New(cfg.Debug)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			p, err := app.New(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer p.Close()

			_, err = p.Run(ctx, app.Options{DryRun: dryRun})
			return err
		},
	}
	cmd.Flags().String("feeds", "", "feed list path (overrides FEEDS_PATH)")
	cmd.Flags().String("archive", "", "archive HTML path (overrides ARCHIVE_PATH)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "fetch and translate but write nothing and send nothing")
	return cmd
}
