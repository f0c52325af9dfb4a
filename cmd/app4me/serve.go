package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"

	apiv1 "github.com/dp9910/app4me-sub001/server/router/api/v1"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the search API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			prof, err := loadProfile(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			st, pipeline, err := openPipeline(ctx, prof)
			if err != nil {
				return err
			}
			defer st.Close()

			e := echo.New()
			e.HideBanner = true
			e.HidePort = true
			e.Use(echomiddleware.Recover())
			e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
				LogStatus:   true,
				LogURI:      true,
				LogMethod:   true,
				LogLatency:  true,
				LogRemoteIP: true,
				LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
					slog.Info("request",
						slog.String("method", v.Method),
						slog.String("uri", v.URI),
						slog.Int("status", v.Status),
						slog.Int64("latency_ms", v.Latency.Milliseconds()),
						slog.String("remote_ip", v.RemoteIP),
					)
					return nil
				},
			}))
			apiv1.NewAPIV1Service(prof, st, pipeline).RegisterRoutes(e)

			addr := fmt.Sprintf("%s:%d", prof.Addr, prof.Port)
			errCh := make(chan error, 1)
			go func() {
				slog.Info("app4me server started",
					slog.String("addr", addr),
					slog.String("mode", prof.Mode),
					slog.String("driver", prof.Driver),
					slog.String("version", prof.Version),
					slog.Bool("ai_enabled", prof.IsAIEnabled()),
				)
				if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			slog.Info("shutting down server")
			return e.Shutdown(shutdownCtx)
		},
	}
}
