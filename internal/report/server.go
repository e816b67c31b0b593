// Package report serves read-only research results over HTTP: NAV
// curves, performance indicators and the factor pick summaries. It
// never writes; the batch pipeline owns all persistence.
package report

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"factorlab/internal/config"
	"factorlab/internal/logger"
	"factorlab/internal/tabular"
)

// Server wraps the gin router and the read-side dependencies.
type Server struct {
	cfg        *config.Config
	router     *gin.Engine
	httpServer *http.Server
	handlers   *Handlers
	log        logger.Logger
}

func NewServer(cfg *config.Config, store *tabular.Store, log logger.Logger) *Server {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	s := &Server{
		cfg:      cfg,
		router:   router,
		handlers: NewHandlers(store, &cfg.Research, log),
		log:      log,
	}
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         cfg.Report.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Report.ReadTimeout,
		WriteTimeout: cfg.Report.WriteTimeout,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(gin.Recovery())
	s.router.Use(requestLogMiddleware(s.log))

	s.router.GET("/health", s.handlers.Health)

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/labels", s.handlers.ListLabels)

		simulations := v1.Group("/simulations")
		{
			simulations.GET("/:sid/nav", s.handlers.GetNAV)
			simulations.GET("/:sid/indicators", s.handlers.GetIndicators)
		}

		summaries := v1.Group("/summaries")
		{
			summaries.GET("/ic", s.handlers.GetICSummary)
			summaries.GET("/gp", s.handlers.GetGPSummary)
			summaries.GET("/simulations", s.handlers.GetSimuSummary)
		}
	}
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	s.log.Info("report server listening", "addr", s.cfg.Report.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the handler tree for tests.
func (s *Server) Router() http.Handler { return s.router }
