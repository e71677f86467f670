package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rushteam/recipekit/api"
	"github.com/rushteam/recipekit/logging"
	"github.com/rushteam/recipekit/metrics"
	"github.com/rushteam/recipekit/recommend"
)

func newServeCmd(g *globalOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API. The engine loads in the background; /readyz
reports 503 until the catalog is projected and validated.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s := g.settings
			if addr != "" {
				s.Server.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, g)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

func serve(ctx context.Context, g *globalOptions) error {
	s := g.settings
	m := metrics.New()
	opts, cleanup, err := engineOptions(s, m)
	if err != nil {
		return err
	}
	defer cleanup()

	loader := recommend.NewLoader(opts)
	go func() {
		if _, err := loader.Get(ctx); err != nil && ctx.Err() == nil {
			logging.Error().Err(err).Msg("engine warm-up failed, retrying on first request")
		}
	}()

	srv := &http.Server{
		Addr: s.Server.Addr,
		Handler: api.NewRouter(loader, api.Options{
			MaxTopN:        s.Recommend.MaxTopN,
			RateLimit:      s.Server.RateLimit,
			AllowedOrigins: s.Server.AllowedOrigins,
			Metrics:        m,
		}),
		ReadTimeout:  s.Server.ReadTimeout,
		WriteTimeout: s.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", srv.Addr).Msg("http server listening")
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

	logging.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if loader.Ready() {
		if e, err := loader.Get(shutdownCtx); err == nil {
			if err := e.Close(shutdownCtx); err != nil {
				logging.Warn().Err(err).Msg("close engine")
			}
		}
	}
	return nil
}
