// Package server exposes compile, run and batch over HTTP for an editing
// front end, along with a small store of saved graph documents.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ravi-parthasarathy/aigen/pkg/coordinator"
	"github.com/ravi-parthasarathy/aigen/pkg/graph"
	"github.com/ravi-parthasarathy/aigen/pkg/pipeline"
	"github.com/ravi-parthasarathy/aigen/pkg/placeholder"
)

const shutdownTimeout = 5 * time.Second

// Options configures a Server.
type Options struct {
	Addr           string
	AllowedOrigins []string
	// Store holds saved documents; nil disables the /api/graphs routes.
	Store *graph.Store
	// ExecutorHealth probes the remote executor; nil disables
	// /api/executor/health.
	ExecutorHealth func(context.Context) error
	Logger         *slog.Logger
}

// Server is the HTTP front door to a Coordinator.
type Server struct {
	engine *gin.Engine
	coord  *coordinator.Coordinator
	opts   Options
	logger *slog.Logger
}

// New builds the gin engine and registers every route.
func New(coord *coordinator.Coordinator, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		engine: gin.New(),
		coord:  coord,
		opts:   opts,
		logger: logger.With("component", "server"),
	}
	s.engine.Use(gin.Recovery(), requestID(), cors(opts.AllowedOrigins), requestLogger(s.logger))
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	api := s.engine.Group("/api")
	api.POST("/compile", s.handleCompile)
	api.POST("/run", s.handleRun)
	api.POST("/batch", s.handleBatch)
	if s.opts.ExecutorHealth != nil {
		api.GET("/executor/health", s.handleExecutorHealth)
	}
	if s.opts.Store != nil {
		api.GET("/graphs", s.handleListGraphs)
		api.GET("/graphs/:name", s.handleGetGraph)
		api.PUT("/graphs/:name", s.handlePutGraph)
		api.DELETE("/graphs/:name", s.handleDeleteGraph)
	}
}

// Handler returns the engine for embedding or testing.
func (s *Server) Handler() http.Handler { return s.engine }

// Run listens on Options.Addr and serves until ctx is done, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.opts.Addr, err)
	}
	srv := &http.Server{Handler: s.engine, ReadHeaderTimeout: 10 * time.Second}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	s.logger.Info("listening", "addr", ln.Addr().String())

	select {
	case err := <-errc:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	s.logger.Info("stopped")
	return nil
}

// ─── handlers ─────────────────────────────────────────────────────────────────

type compileRequest struct {
	Nodes []*graph.Node `json:"nodes" binding:"required"`
	Edges []graph.Edge  `json:"edges"`
}

type compileResponse struct {
	Document string   `json:"document"`
	Lint     []string `json:"lint,omitempty"`
}

func (s *Server) handleCompile(c *gin.Context) {
	var req compileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	steps, err := pipeline.Linearize(req.Nodes, req.Edges)
	if err != nil {
		s.respondError(c, err)
		return
	}
	doc, err := pipeline.Serialize(steps)
	if err != nil {
		s.respondError(c, err)
		return
	}
	resp := compileResponse{Document: doc}
	for _, le := range pipeline.Lint(steps) {
		resp.Lint = append(resp.Lint, le.Error())
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleRun(c *gin.Context) {
	var doc graph.Document
	if err := c.ShouldBindJSON(&doc); err != nil {
		badRequest(c, err)
		return
	}
	text, err := coordinator.Compile(doc.Graph())
	if err != nil {
		s.respondError(c, err)
		return
	}
	// The document's own placeholder name is guarded as well as the
	// coordinator's.
	if err := coordinator.GuardPlaceholder(text, doc.PlaceholderName); err != nil {
		s.respondError(c, err)
		return
	}
	state, err := s.coord.RunOnce(c.Request.Context(), text)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (s *Server) handleBatch(c *gin.Context) {
	var doc graph.Document
	if err := c.ShouldBindJSON(&doc); err != nil {
		badRequest(c, err)
		return
	}
	text, err := coordinator.Compile(doc.Graph())
	if err != nil {
		s.respondError(c, err)
		return
	}
	name := doc.PlaceholderName
	if name == "" {
		name = s.coord.Placeholder()
	}
	state, err := s.coord.RunBatch(c.Request.Context(), text, name, placeholder.Lines(doc.BatchValues))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (s *Server) handleExecutorHealth(c *gin.Context) {
	if err := s.opts.ExecutorHealth(c.Request.Context()); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleListGraphs(c *gin.Context) {
	names, err := s.opts.Store.List()
	if err != nil {
		s.respondError(c, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"graphs": names})
}

func (s *Server) handleGetGraph(c *gin.Context) {
	doc, err := s.opts.Store.Get(c.Param("name"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (s *Server) handlePutGraph(c *gin.Context) {
	var doc graph.Document
	if err := c.ShouldBindJSON(&doc); err != nil {
		badRequest(c, err)
		return
	}
	if err := s.opts.Store.Put(c.Param("name"), &doc); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleDeleteGraph(c *gin.Context) {
	if err := s.opts.Store.Delete(c.Param("name")); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ─── errors ───────────────────────────────────────────────────────────────────

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
	// NodeID is set for chain errors that stopped at a specific node.
	NodeID string `json:"node_id,omitempty"`
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: "request"})
}

func (s *Server) respondError(c *gin.Context, err error) {
	var chainErr *pipeline.ChainError
	switch {
	case errors.As(err, &chainErr):
		c.JSON(http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Kind: "chain", NodeID: chainErr.NodeID})
	case errors.Is(err, coordinator.ErrConfig):
		c.JSON(http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Kind: "config"})
	case errors.Is(err, graph.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse{Error: err.Error(), Kind: "not_found"})
	case errors.Is(err, graph.ErrInvalidName):
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: "request"})
	default:
		s.logger.Error("request failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error(), Kind: "internal"})
	}
}
