package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/tendant/chi-demo/app"
	demomw "github.com/tendant/chi-demo/middleware"
	"github.com/tendant/simple-vfs/pkg/vfs"
	"github.com/tendant/simple-vfs/pkg/vfs/config"
	"github.com/tendant/simple-vfs/pkg/vfs/repo/postgres"
)

// migrationReport is the schema state of one database, named by the
// projections it serves.
type migrationReport struct {
	Projections []string `json:"projections"`
	Version     uint     `json:"version"`
	Latest      uint     `json:"latest"`
	Dirty       bool     `json:"dirty"`
	Current     bool     `json:"current"`
	Error       string   `json:"error,omitempty"`
}

// opsServer exposes health, readiness, metrics and schema state of a store.
type opsServer struct {
	store      *vfs.Store
	cfg        *config.Config
	logger     *slog.Logger
	migrations func() []migrationReport
}

func newOpsServer(rt *config.Runtime, cfg *config.Config, logger *slog.Logger) *opsServer {
	s := &opsServer{store: rt.Store, cfg: cfg, logger: logger}
	s.migrations = s.checkMigrations
	return s
}

// Routes sets up the HTTP routes
func (s *opsServer) Routes() (http.Handler, error) {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	app.RoutesHealthz(r)
	r.Get("/healthz/ready", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	var guard func(http.Handler) http.Handler
	if s.cfg.OpsAPIKeySHA256 != "" {
		var err error
		guard, err = demomw.ApiKeyMiddleware(demomw.ApiKeyConfig{
			APIKeys: map[string]string{"ops": s.cfg.OpsAPIKeySHA256},
		})
		if err != nil {
			return nil, fmt.Errorf("api key middleware: %w", err)
		}
	}

	r.Route("/ops", func(r chi.Router) {
		if guard != nil {
			r.Use(guard)
		}
		r.Get("/config", s.handleConfig)
		r.Get("/migrations", s.handleMigrations)
	})
	return r, nil
}

func (s *opsServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn("Store not ready", "err", err)
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	render.PlainText(w, r, http.StatusText(http.StatusOK))
}

// handleConfig reports the store settings without connection strings or credentials.
func (s *opsServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]any{
		"database_type":            s.cfg.DatabaseType,
		"content_backend":          s.cfg.ContentBackend,
		"online_project_id":        s.store.Router().OnlineProjectID(),
		"link_type":                s.cfg.LinkType,
		"propagate_link_dates":     s.cfg.PropagateLinkDates,
		"tolerate_content_failure": s.cfg.TolerateContentFailure,
		"property_cache_size":      s.cfg.PropertyCacheSize,
	})
}

func (s *opsServer) handleMigrations(w http.ResponseWriter, r *http.Request) {
	reports := s.migrations()
	for _, rep := range reports {
		if rep.Error != "" || !rep.Current {
			render.Status(r, http.StatusServiceUnavailable)
			break
		}
	}
	render.JSON(w, r, reports)
}

func (s *opsServer) checkMigrations() []migrationReport {
	reports := []migrationReport{}
	if s.cfg.DatabaseType != "postgres" {
		return reports
	}

	offline, online, backup := s.cfg.Databases()
	byDSN := map[string][]string{}
	for _, pair := range []struct{ name, dsn string }{
		{vfs.ProjectionOffline.String(), offline},
		{vfs.ProjectionOnline.String(), online},
		{vfs.ProjectionBackup.String(), backup},
	} {
		byDSN[pair.dsn] = append(byDSN[pair.dsn], pair.name)
	}

	for _, dsn := range distinct(offline, online, backup) {
		rep := migrationReport{Projections: byDSN[dsn]}
		status, err := postgres.CheckMigrations(dsn)
		if err != nil {
			rep.Error = err.Error()
		} else {
			rep.Version, rep.Latest, rep.Dirty, rep.Current = status.Version, status.Latest, status.Dirty, status.Current()
		}
		reports = append(reports, rep)
	}
	return reports
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve health, readiness, metrics and migration status over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.OpsAddr = addr
		}
		rt, err := cfg.Build(ctx, logger)
		if err != nil {
			return fmt.Errorf("initializing store: %w", err)
		}
		defer rt.Close()

		handler, err := newOpsServer(rt, cfg, logger).Routes()
		if err != nil {
			return err
		}
		httpServer := &http.Server{
			Addr:              cfg.OpsAddr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info("Ops server starting", "addr", cfg.OpsAddr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		logger.Info("Shutting down ops server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	},
}
