package server

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/aitorres/orion/internal/auth"
	"github.com/aitorres/orion/internal/config"
	"github.com/aitorres/orion/internal/pds"
	"github.com/aitorres/orion/internal/store"
)

//go:embed templates/*.html
var templateFS embed.FS

// Server is the Orion console HTTP server.
type Server struct {
	cfg      config.ServerConfig
	store    *store.Store
	auth     *auth.Service
	accounts *pds.Cache
	client   *pds.Client
	engine   *gin.Engine
	srv      *http.Server
}

// New assembles the server with its routes and middleware.
func New(cfg config.ServerConfig, st *store.Store, authSvc *auth.Service, client *pds.Client, cache *pds.Cache) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())

	if len(cfg.AllowOrigins) > 0 {
		corsCfg := cors.DefaultConfig()
		corsCfg.AllowOrigins = cfg.AllowOrigins
		corsCfg.AllowCredentials = true
		engine.Use(cors.New(corsCfg))
	}

	engine.SetHTMLTemplate(template.Must(template.ParseFS(templateFS, "templates/*.html")))

	s := &Server{
		cfg:      cfg,
		store:    st,
		auth:     authSvc,
		accounts: cache,
		client:   client,
		engine:   engine,
	}
	s.routes()
	return s
}

// Handler exposes the underlying handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// ListenAndServe starts the server on the configured bind address and blocks
// until it stops.
func (s *Server) ListenAndServe() error {
	s.srv = &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Info().Str("addr", s.cfg.Addr()).Int("workers", s.cfg.Workers).Msg("Starting Orion console")
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return fmt.Errorf("server not running")
	}
	return s.srv.Shutdown(ctx)
}
