// Package api provides the REST API server for newsdesk.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/RobinCoderZhao/newsdesk/internal/newsdesk/research"
	"github.com/RobinCoderZhao/newsdesk/internal/newsdesk/store"
	"github.com/RobinCoderZhao/newsdesk/internal/newsdesk/vector"
)

// TaskStore is the persistence the API reads from.
type TaskStore interface {
	ListTasks(ctx context.Context, skip, limit int) ([]store.Task, error)
	GetTask(ctx context.Context, id int64) (*store.Task, error)
	SearchDocuments(ctx context.Context, q string, limit int) ([]store.Document, error)
	Stats(ctx context.Context) (*store.Stats, error)
}

// Researcher runs research tasks and deletes them along with their cached
// URLs and vectors.
type Researcher interface {
	Run(ctx context.Context, topic string) (*research.Result, error)
	DeleteTask(ctx context.Context, id int64) (bool, error)
}

// Server holds the dependencies for the API.
type Server struct {
	store    TaskStore
	research Researcher
	vectors  vector.Index
	origins  []string
	mcp      http.Handler
	logger   *slog.Logger
}

// NewServer creates a new API Server instance. A nil vector index disables
// similarity search.
func NewServer(st TaskStore, r Researcher, vectors vector.Index, corsOrigins []string) *Server {
	if vectors == nil {
		vectors = vector.Nop{}
	}
	return &Server{
		store:    st,
		research: r,
		vectors:  vectors,
		origins:  corsOrigins,
		logger:   slog.Default().With("component", "api"),
	}
}

// MountMCP serves an MCP JSON-RPC endpoint at POST /mcp.
func (s *Server) MountMCP(h http.Handler) {
	s.mcp = h
}

// Routes returns the configured http.Handler for the API.
func (s *Server) Routes() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	if len(s.origins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     s.origins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "Mcp-Session-Id"},
			ExposeHeaders:    []string{"Mcp-Session-Id"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.GET("/", s.handleRoot())

	api := r.Group("/api")
	api.GET("/tasks", s.handleListTasks())
	api.GET("/tasks/:id", s.handleGetTask())
	api.DELETE("/tasks/:id", s.handleDeleteTask())

	// Static segments take precedence over the :topic wildcard.
	api.GET("/search/history", s.handleSearchHistory())
	api.GET("/search/similar", s.handleSearchSimilar())
	api.GET("/search/:topic", s.handleResearch())

	api.GET("/analytics/stats", s.handleStats())

	if s.mcp != nil {
		r.POST("/mcp", gin.WrapH(s.mcp))
	}
	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

func (s *Server) handleRoot() gin.HandlerFunc {
	return func(c *gin.Context) {
		respondJSON(c, http.StatusOK, gin.H{"status": "ok", "service": "newsdesk"})
	}
}

// --- Helpers ---

func respondJSON(c *gin.Context, status int, data any) {
	c.JSON(status, data)
}

func respondError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": message})
}
