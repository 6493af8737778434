// Package httpapi provides the minimal HTTP surface named in spec.md
// §1's secondary responsibilities: a health-check endpoint and CRUD for
// the Diagram Model Store. The §6 MCP tool-call surface itself is
// served separately by pkg/mcpserver, per SPEC_FULL.md's domain-stack
// split.
package httpapi

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/glsp-mcp/forge/pkg/diagram"
)

// HealthChecker reports this process's own readiness, independent of
// any external dependency — mirroring the teacher's health handler,
// which deliberately excludes external MCP/LLM services from its
// check so the orchestrator doesn't restart tarsy over someone else's
// outage.
type HealthChecker interface {
	Healthy(ctx context.Context) (ok bool, detail map[string]string)
}

// Server is the gin-backed HTTP API server, grounded on the teacher's
// cmd/tarsy/main.go router wiring and pkg/api/handlers.go's
// request/response binding style.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server
	health     HealthChecker
	diagrams   diagram.Store
}

// NewServer builds a Server and registers its routes.
func NewServer(health HealthChecker, diagrams diagram.Store) *Server {
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{engine: engine, health: health, diagrams: diagrams}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/health", s.healthHandler)

	v1 := s.engine.Group("/api/v1")
	v1.POST("/diagrams", s.createDiagramHandler)
	v1.GET("/diagrams", s.listDiagramsHandler)
	v1.GET("/diagrams/:id", s.getDiagramHandler)
	v1.PUT("/diagrams/:id", s.updateDiagramHandler)
	v1.DELETE("/diagrams/:id", s.deleteDiagramHandler)
}

// Start serves on addr (blocking), mirroring the teacher's
// api.Server.Start.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.engine}
	return s.httpServer.ListenAndServe()
}

// StartWithListener serves on a pre-created listener, for tests that
// need a random OS-assigned port — same shape as the teacher's
// api.Server.StartWithListener.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.engine}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) healthHandler(c *gin.Context) {
	reqCtx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	ok, detail := s.health.Healthy(reqCtx)
	status := "healthy"
	httpStatus := http.StatusOK
	if !ok {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, gin.H{
		"status": status,
		"checks": detail,
	})
}
