package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"portal-backend/controllers"
	"portal-backend/logging"
	"portal-backend/middleware"
	"portal-backend/routes"
)

const maxBodyBytes = 1 << 20

func newServeCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, *configPath)
		},
	}
}

func serve(ctx context.Context, configPath string) error {
	a, err := loadApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.migrate(ctx); err != nil {
		return err
	}

	if a.cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	svc := a.service()
	revoker := a.revoker(ctx)
	h := controllers.New(svc, revoker, a.log)

	r := gin.New()
	r.Use(
		gin.Recovery(),
		middleware.RequestID(),
		logging.GinLogger(a.log),
		middleware.CORSMiddleware(a.cfg.CORSOrigins),
		middleware.MaxBody(maxBodyBytes),
	)
	routes.SetupRoutes(r, h, middleware.AuthMiddleware(a.tokens(), revoker, svc, a.log))

	server := &http.Server{
		Addr:         ":" + a.cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		a.log.WithField("port", a.cfg.Port).Info("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	a.log.Info("shutting down server")
	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	a.log.Info("server exited")
	return nil
}
