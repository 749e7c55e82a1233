package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Memesold/vk-tg-repost-bot/internal/database"
	"github.com/Memesold/vk-tg-repost-bot/internal/middleware"
	"github.com/Memesold/vk-tg-repost-bot/internal/models"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Server exposes the operational endpoints: health and metrics.
type Server struct {
	router *mux.Router
	logger *logrus.Logger
	cfg    *models.Config
	db     *database.Database
	server *http.Server
}

func NewServer(cfg *models.Config, db *database.Database, logger *logrus.Logger) *Server {
	s := &Server{
		router: mux.NewRouter(),
		logger: logger,
		cfg:    cfg,
		db:     db,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.ObservabilityMiddleware(s.logger))
	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", s.handleMetrics()).Methods(http.MethodGet)
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(s.cfg.Server.WriteTimeoutSec) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.Server.IdleTimeoutSec) * time.Second,
	}

	s.logger.Infof("Starting server on port %d", s.cfg.Server.Port)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.db.Ping(r.Context()); err != nil {
			s.logger.WithError(err).Error("Health check failed")
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			s.logger.WithError(err).Debug("Failed to write health response")
		}
	}
}
