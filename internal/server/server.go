// Package server exposes plate analysis over HTTP: multipart image upload
// in, JSON MIC results and rendered artifacts out.
package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"plate-reader/internal/config"
)

// Server wraps the gin engine and its configuration.
type Server struct {
	cfg    *config.Config
	engine *gin.Engine
}

// New builds the router with all routes and middleware attached.
func New(cfg *config.Config) *Server {
	gin.SetMode(func() string {
		if cfg.Server.Mode == "debug" {
			return gin.DebugMode
		}
		return gin.ReleaseMode
	}())

	engine := gin.New()
	engine.Use(requestLogger(), recovery())
	engine.MaxMultipartMemory = cfg.Upload.MaxSize << 20

	s := &Server{cfg: cfg, engine: engine}

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := engine.Group("/api/v1")
	api.POST("/analyze", s.handleAnalyze)

	return s
}

// Run serves until the listener fails.
func (s *Server) Run() error {
	addr := fmt.Sprintf(":%d", s.cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}
	return srv.ListenAndServe()
}
