// Package server exposes the redactor over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/straja-ai/ukredact/internal/audit"
	"github.com/straja-ai/ukredact/internal/config"
	"github.com/straja-ai/ukredact/internal/pipeline"
)

// Server wraps the HTTP server components for ukredact.
type Server struct {
	cfg      *config.Config
	analyzer *pipeline.Analyzer
	audit    *audit.Emitter
	engine   *gin.Engine
	schemas  map[string]json.RawMessage
	srv      *http.Server
}

// New builds the router. em may be nil to disable auditing.
func New(cfg *config.Config, analyzer *pipeline.Analyzer, em *audit.Emitter) (*Server, error) {
	if cfg == nil || analyzer == nil {
		return nil, errors.New("server needs a config and an analyzer")
	}
	schemas, err := apiSchemas()
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:      cfg,
		analyzer: analyzer,
		audit:    em,
		schemas:  schemas,
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestID(), accessLog(), bodyLimit(cfg.Server.MaxBodyBytes))

	// Routes
	r.GET("/healthz", s.handleHealth)
	r.GET("/robots.txt", handleRobots)

	v1 := r.Group("/v1")
	{
		v1.POST("/analyze", s.handleAnalyze)
		v1.POST("/analyze/file", s.handleAnalyzeFile)
		v1.POST("/export", s.handleExport)
		v1.GET("/entities", s.handleEntities)
		v1.GET("/schema", s.handleSchema)
	}

	s.engine = r
	s.srv = &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.engine }

// Start listens until Shutdown is called.
func (s *Server) Start() error {
	slog.Info("ukredact listening", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, then flushes the audit queue.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.srv.Shutdown(ctx)
	s.audit.Close(ctx)
	return err
}
