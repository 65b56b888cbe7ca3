package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/deusflow/feedwatch/internal/archive"
	"github.com/deusflow/feedwatch/internal/logger"
	"github.com/deusflow/feedwatch/internal/web"
)

func serveCmd() *cobra.Command {
	var addrFlag string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the archive page, its items as JSON and a health probe",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log := logger.New(cfg.Debug)

			store := archive.NewFileStore(cfg.ArchivePath, log)
			srv := &http.Server{
				Addr:              addrFlag,
				Handler:           web.NewServer(cfg.ArchivePath, store, log).Router(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				log.Info("starting archive server", "addr", addrFlag, "archive", cfg.ArchivePath)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("server error: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			log.Info("shutting down archive server")
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addrFlag, "addr", ":8080", "listen address")
	cmd.Flags().String("archive", "", "archive HTML path (overrides ARCHIVE_PATH)")
	return cmd
}
