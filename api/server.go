package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Server hosts the wager HTTP API
type Server struct {
	engine *gin.Engine
	http   *http.Server
}

// NewServer builds the gin engine with all routes registered
func NewServer(addr string, handler *Handler) *Server {
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())

	handler.RegisterRoutes(engine.Group("/v1"))

	return &Server{
		engine: engine,
		http: &http.Server{
			Addr:    addr,
			Handler: engine,
		},
	}
}

// Start begins serving in a goroutine
func (s *Server) Start() {
	go func() {
		log.WithField("addr", s.http.Addr).Info("HTTP API listening")
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("HTTP API server error")
		}
	}()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}).Debug("Handled request")
	}
}
