package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/RobinCoderZhao/newsdesk/internal/api"
)

func newServeCommand(cc *commandContext) *cobra.Command {
	var port int
	var noScheduler bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the REST API and the daily research scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := cc.open(ctx)
			if err != nil {
				return err
			}
			defer cc.close()

			cfg := a.Config
			if port == 0 {
				port = cfg.Server.Port
			}

			if cfg.Scheduler.Enabled && !noScheduler {
				s, err := a.Scheduler()
				if err != nil {
					return err
				}
				if err := s.Start(ctx); err != nil {
					return err
				}
				defer s.Stop()
			}

			gin.SetMode(gin.ReleaseMode)
			server := api.NewServer(a.Store, a.Research, a.Vectors, cfg.Server.CORSOrigins)
			server.MountMCP(newMCPServer(a))
			srv := &http.Server{
				Addr:              ":" + strconv.Itoa(port),
				Handler:           server.Routes(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				slog.Info("starting REST API server", "port", port)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			slog.Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				slog.Error("server forced to shutdown", "error", err)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Listen port (overrides server.port)")
	cmd.Flags().BoolVar(&noScheduler, "no-scheduler", false, "Do not start the daily research scheduler")
	return cmd
}
