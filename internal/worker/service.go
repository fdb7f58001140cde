// Package worker wires the recommendation engine together and serves its
// HTTP API.
package worker

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"gorm.io/gorm/logger"

	"github.com/vintry/sommelier/internal/config"
	gormstore "github.com/vintry/sommelier/internal/db/gorm"
	"github.com/vintry/sommelier/internal/embedding"
	"github.com/vintry/sommelier/internal/indexer"
	"github.com/vintry/sommelier/internal/llm"
	"github.com/vintry/sommelier/internal/profile"
	"github.com/vintry/sommelier/internal/reranker"
	"github.com/vintry/sommelier/internal/scoring"
	"github.com/vintry/sommelier/internal/search"
)

// Service is the main worker orchestrator: stores, domain services, the
// background scheduler, and the HTTP server.
type Service struct {
	config *config.Config
	logger zerolog.Logger

	// Database
	store      *gormstore.Store
	catalog    *gormstore.CatalogStore
	cellar     *gormstore.CellarStore
	embeddings *gormstore.EmbeddingStore
	profiles   *gormstore.ProfileStore
	recs       *gormstore.RecommendationStore

	// Domain services
	indexer   *indexer.Indexer
	builder   *profile.Builder
	reranker  *reranker.Reranker
	search    *search.Service
	scheduler *Scheduler

	// HTTP server
	router    *chi.Mux
	server    *http.Server
	startTime time.Time
}

// NewService creates a fully wired worker service.
func NewService(cfg *config.Config, log zerolog.Logger) (*Service, error) {
	// 1. Open the store and run migrations
	store, err := gormstore.NewStore(gormstore.Config{
		DSN:           cfg.DSN,
		MaxConns:      cfg.MaxConns,
		LogLevel:      logger.Silent,
		EmbeddingDims: cfg.EmbeddingDimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	svc := &Service{
		config:     cfg,
		logger:     log.With().Str("component", "worker").Logger(),
		store:      store,
		catalog:    gormstore.NewCatalogStore(store),
		cellar:     gormstore.NewCellarStore(store),
		embeddings: gormstore.NewEmbeddingStore(store),
		profiles:   gormstore.NewProfileStore(store),
		recs:       gormstore.NewRecommendationStore(store),
		router:     chi.NewRouter(),
		startTime:  time.Now(),
	}

	// 2. External providers
	embedClient, err := embedding.NewClient(cfg)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("embedding client: %w", err)
	}
	chatClient, err := llm.NewClient(cfg)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("chat client: %w", err)
	}

	// 3. Domain services
	svc.indexer = indexer.New(svc.catalog, embedClient, svc.embeddings, cfg, log)
	svc.builder = profile.NewBuilder(svc.cellar, svc.catalog, svc.profiles, log)
	scorer := scoring.NewScorer(cfg.Weights)
	svc.reranker = reranker.New(svc.profiles, svc.catalog, scorer, chatClient, svc.recs, cfg, log)
	svc.search = search.NewService(
		search.NewInterpreter(chatClient, log),
		embedClient, svc.catalog, svc.embeddings, cfg, log)

	// 4. Background scheduler
	svc.scheduler = NewScheduler(svc.indexer, svc.builder, svc.reranker, svc.cellar, svc.recs, cfg, log)

	// 5. HTTP surface
	svc.setupMiddleware()
	svc.setupRoutes()
	svc.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      svc.router,
		ReadTimeout:  cfg.RequestTimeout,
		WriteTimeout: 2 * cfg.RequestTimeout,
	}

	return svc, nil
}

func (s *Service) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(2 * s.config.RequestTimeout))
	s.router.Use(s.requestLogger)
}

func (s *Service) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/search", s.handleSearch)
		r.Get("/stats", s.handleStats)
		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/recommendations", s.handleRecommendations)
			r.Post("/refresh", s.handleRefreshUser)
		})
	})
}

// requestLogger logs one line per request at debug level.
func (s *Service) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}

// Start launches the scheduler and blocks serving HTTP until Shutdown.
func (s *Service) Start(ctx context.Context) error {
	go s.scheduler.Start(ctx)

	s.logger.Info().Int("port", s.config.HTTPPort).Msg("worker listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown stops the HTTP server and the scheduler, then closes the store.
func (s *Service) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down")

	err := s.server.Shutdown(ctx)

	s.scheduler.Stop()
	s.scheduler.Wait()

	if cerr := s.store.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// Router exposes the HTTP handler for tests.
func (s *Service) Router() http.Handler {
	return s.router
}
