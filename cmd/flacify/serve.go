package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"flacify/internal/logger"
	"flacify/internal/shutdown"
	"flacify/internal/web"
)

func newServeCmd() *cobra.Command {
	var listenAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the conversion job web server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if listenAddr != "" {
				cfg.ListenAddr = listenAddr
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("configuration error: %w", err)
			}

			sh := shutdown.New()
			sh.Listen()

			log := logger.New(cfg.Verbose)
			defer log.Close()
			setupFileLog(log, cfg)

			jobMgr := web.NewJobManager()
			jobMgr.StartCleanup(sh.Context())
			server := web.NewServer(sh.Context(), jobMgr, cfg, log)

			httpServer := &http.Server{
				Addr:         cfg.ListenAddr,
				Handler:      server.Router(),
				ReadTimeout:  15 * time.Second,
				WriteTimeout: 15 * time.Second,
				IdleTimeout:  60 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				log.Info("Starting web server on %s", cfg.ListenAddr)
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			select {
			case err := <-errCh:
				return err
			case <-sh.Context().Done():
			}

			log.Info("Shutting down server...")
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := httpServer.Shutdown(ctx); err != nil {
				log.Error("Server shutdown error: %v", err)
			}

			log.Info("Server stopped")
			return nil
		},
	}

	cmd.Flags().StringVarP(&listenAddr, "listen", "l", "", "listen address (default from config, :8080)")

	return cmd
}
