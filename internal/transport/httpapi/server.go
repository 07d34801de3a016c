// Package httpapi exposes ICM's 16 tools over HTTP, for `icm serve
// --transport http`. Grounded on the teacher's internal/api.Server
// (gin-gonic/gin + gin-contrib/cors): same New/setupRoutes/Start/Stop
// shape and find-available-port behavior, rewired from the teacher's
// memory/search/relationships REST surface to a single generic
// tool-dispatch endpoint backed by *mcp.Server.
package httpapi

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/icm-memory/icm/internal/icmerr"
	"github.com/icm-memory/icm/internal/logging"
	"github.com/icm-memory/icm/internal/mcp"
)

const shutdownTimeout = 10 * time.Second

// Server is ICM's HTTP tool-protocol transport.
type Server struct {
	router     *gin.Engine
	mcp        *mcp.Server
	httpServer *http.Server
	log        *logging.Logger
}

// Config configures the HTTP transport.
type Config struct {
	Host string
	Port int
	CORS bool
}

// NewServer builds an HTTP server that dispatches every request to mcpServer.
func NewServer(mcpServer *mcp.Server, cfg Config) *Server {
	log := logging.GetLogger("httpapi")

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	if cfg.CORS {
		router.Use(cors.New(cors.Config{
			AllowMethods:    []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:    []string{"Origin", "Content-Type", "Accept"},
			AllowAllOrigins: true,
		}))
	}

	s := &Server{router: router, mcp: mcpServer, log: log}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.Group("/api/v1")
	{
		api.GET("/health", s.health)
		api.GET("/tools", s.listTools)
		api.POST("/tools/:name", s.callTool)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) listTools(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tools": s.mcp.ListTools()})
}

func (s *Server) callTool(c *gin.Context) {
	name := c.Param("name")

	var args map[string]interface{}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&args); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	result, err := s.mcp.CallTool(c.Request.Context(), name, args)
	if err != nil {
		c.JSON(statusForKind(icmerr.KindOf(err)), gin.H{
			"error": err.Error(),
			"kind":  string(icmerr.KindOf(err)),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result})
}

func statusForKind(kind icmerr.Kind) int {
	switch kind {
	case icmerr.InvalidInput:
		return http.StatusBadRequest
	case icmerr.NotFound:
		return http.StatusNotFound
	case icmerr.Conflict, icmerr.AlreadyConsolidated:
		return http.StatusConflict
	case icmerr.Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Run starts the HTTP server and blocks until ctx is cancelled or the
// listener fails, mirroring the teacher's Start/graceful-shutdown pattern.
func (s *Server) Run(ctx context.Context, host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return icmerr.Wrap(icmerr.Unavailable, "bind http listener", err)
	}

	s.httpServer = &http.Server{Handler: s.router}

	errChan := make(chan error, 1)
	go func() {
		s.log.Info("starting http transport", "address", addr)
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return icmerr.Wrap(icmerr.StorageFailure, "http transport failed", err)
	}
}

// Stop gracefully shuts the HTTP server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
