// Package gateway composes config, storage, the decision engine, and the
// HTTP API into the running replygate service.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nextlevelbuilder/replygate/internal/config"
	"github.com/nextlevelbuilder/replygate/internal/engine"
	httpapi "github.com/nextlevelbuilder/replygate/internal/http"
	"github.com/nextlevelbuilder/replygate/internal/stats"
	"github.com/nextlevelbuilder/replygate/internal/store"
	"github.com/nextlevelbuilder/replygate/internal/store/pg"
	"github.com/nextlevelbuilder/replygate/internal/store/sqlite"
)

// Server is the replygate gateway: one shared engine instance serving all
// concurrent decision requests plus the admin surfaces.
type Server struct {
	cfg      *config.Config
	stores   *store.Stores
	patterns *engine.PatternStore
	engine   *engine.Engine
	recorder *stats.Recorder

	httpServer *http.Server
	mux        *http.ServeMux
}

// NewServer opens storage and assembles the engine. Patterns are loaded from
// persistence first; an empty table falls back to the built-in seed set so a
// fresh install responds out of the box.
func NewServer(cfg *config.Config) (*Server, error) {
	stores, err := openStores(cfg)
	if err != nil {
		return nil, err
	}

	recorder := stats.NewRecorder(stores.Stats, cfg.Stats.QueueSize)
	patterns := engine.NewPatternStore(stores.Patterns)

	s := &Server{
		cfg:      cfg,
		stores:   stores,
		patterns: patterns,
		engine:   engine.New(patterns, cfg.Engine, recorder),
		recorder: recorder,
	}

	if err := s.loadInitialPatterns(context.Background()); err != nil {
		s.closeStores()
		return nil, err
	}
	return s, nil
}

func openStores(cfg *config.Config) (*store.Stores, error) {
	if cfg.IsManagedMode() {
		slog.Info("store.mode", "backend", "postgres")
		return pg.NewStores(cfg.Database.PostgresDSN)
	}
	slog.Info("store.mode", "backend", "sqlite", "path", cfg.Database.SQLitePath)
	return sqlite.NewStores(cfg.Database.SQLitePath)
}

func (s *Server) loadInitialPatterns(ctx context.Context) error {
	if s.cfg.Patterns.SeedFile != "" {
		if err := s.loadSeedFile(ctx); err != nil {
			return fmt.Errorf("load seed file: %w", err)
		}
		return nil
	}

	count, err := s.patterns.ReloadFromStore(ctx)
	if err != nil {
		return fmt.Errorf("initial pattern load: %w", err)
	}
	if count == 0 {
		slog.Info("patterns.seeding_defaults")
		s.patterns.Load(engine.DefaultPatterns())
	}
	return nil
}

// Engine returns the decision engine (used by tests and CLI wiring).
func (s *Server) Engine() *engine.Engine { return s.engine }

// BuildMux creates and caches the HTTP mux with all routes registered.
func (s *Server) BuildMux() *http.ServeMux {
	if s.mux != nil {
		return s.mux
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)

	token := s.cfg.Gateway.Token
	httpapi.NewRespondHandler(s.engine, token, s.cfg.Gateway.MaxMessageChars).RegisterRoutes(mux)
	httpapi.NewPatternsHandler(s.stores.Patterns, s.patterns, token).RegisterRoutes(mux)
	httpapi.NewStatsHandler(s.recorder, token).RegisterRoutes(mux)

	s.mux = mux
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if _, ok := s.patterns.Current(); !ok {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, `{"status":"no pattern snapshot"}`)
		return
	}
	fmt.Fprint(w, `{"status":"ok"}`)
}

// Start begins serving and blocks until ctx is cancelled or the listener
// fails. Background loops (seed watcher, scheduled reload) share ctx.
func (s *Server) Start(ctx context.Context) error {
	mux := s.BuildMux()

	if s.cfg.Patterns.SeedFile != "" && s.cfg.Patterns.WatchSeed {
		go s.watchSeedFile(ctx)
	}
	if s.cfg.Patterns.ReloadSchedule != "" {
		go s.runReloadSchedule(ctx)
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Gateway.Host, s.cfg.Gateway.Port)
	s.httpServer = &http.Server{Addr: addr, Handler: mux}

	slog.Info("gateway.starting", "addr", addr, "managed", s.cfg.IsManagedMode())

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		// Shutdown is still draining in-flight handlers, and those handlers
		// may enqueue stat records. The recorder must outlive them.
		<-shutdownDone
	}
	s.recorder.Close()
	s.closeStores()
	if err != http.ErrServerClosed {
		return fmt.Errorf("gateway server: %w", err)
	}
	return nil
}

func (s *Server) closeStores() {
	if s.stores.Close != nil {
		if err := s.stores.Close(); err != nil {
			slog.Warn("store.close", "error", err)
		}
	}
}
