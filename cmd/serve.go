package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/windsite/internal/api"
	"github.com/sells-group/windsite/internal/config"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for zone generation and layout validation",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		handler, err := buildRouter(cfg)
		if err != nil {
			return err
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}
		return serve(ctx, srv)
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// buildRouter resolves the server-wide setbacks and builds the API handler.
func buildRouter(c *config.Config) (http.Handler, error) {
	sb, err := c.ResolveSetbacks()
	if err != nil {
		return nil, eris.Wrap(err, "serve: resolve setbacks")
	}
	return api.NewRouter(api.Options{
		AllowedOrigins: c.Server.AllowedOrigins,
		RateLimit:      c.Server.RateLimit,
		RateBurst:      c.Server.RateBurst,
		MaxBodyBytes:   int64(c.Server.MaxBodyMB) << 20,
		Timeout:        time.Duration(c.Server.TimeoutSecs) * time.Second,
		Analysis:       c.Analysis.Options(),
		Setbacks:       sb,
		Layout:         c.Layout.Options(),
	}), nil
}

// serve runs srv until ctx is done, then shuts it down gracefully.
func serve(ctx context.Context, srv *http.Server) error {
	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zap.L().Warn("server shutdown", zap.Error(err))
		}
	}()

	zap.L().Info("starting server", zap.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "server listen")
	}
	return nil
}
