package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/RobinCoderZhao/newsdesk/internal/newsdesk/fallback"
	"github.com/RobinCoderZhao/newsdesk/internal/newsdesk/vector"
)

// handleResearch runs a research task. Running out of sources is reported
// in the body with status 200 so clients render the message.
func (s *Server) handleResearch() gin.HandlerFunc {
	return func(c *gin.Context) {
		topic := strings.TrimSpace(c.Param("topic"))
		res, err := s.research.Run(c.Request.Context(), topic)
		if err != nil {
			if errors.Is(err, fallback.ErrEmptyTopic) {
				respondError(c, http.StatusBadRequest, err.Error())
				return
			}
			s.logger.Error("research failed", "topic", topic, "error", err)
			respondError(c, http.StatusInternalServerError, "Research failed")
			return
		}
		if res.Error != "" {
			respondJSON(c, http.StatusOK, gin.H{"error": res.Error, "task_id": res.TaskID})
			return
		}
		respondJSON(c, http.StatusOK, res)
	}
}

func (s *Server) handleSearchHistory() gin.HandlerFunc {
	return func(c *gin.Context) {
		q := strings.TrimSpace(c.Query("q"))
		if q == "" {
			respondError(c, http.StatusBadRequest, "query parameter q is required")
			return
		}
		docs, err := s.store.SearchDocuments(c.Request.Context(), q, 50)
		if err != nil {
			s.logger.Error("search history", "q", q, "error", err)
			respondError(c, http.StatusInternalServerError, "Database error")
			return
		}
		respondJSON(c, http.StatusOK, docs)
	}
}

func (s *Server) handleSearchSimilar() gin.HandlerFunc {
	return func(c *gin.Context) {
		q := strings.TrimSpace(c.Query("q"))
		if q == "" {
			respondError(c, http.StatusBadRequest, "query parameter q is required")
			return
		}
		limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(vector.DefaultLimit)))
		if err != nil || limit < 1 || limit > 100 {
			respondError(c, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		matches, err := s.vectors.Search(c.Request.Context(), q, limit)
		if err != nil {
			if errors.Is(err, vector.ErrDisabled) {
				respondError(c, http.StatusServiceUnavailable, err.Error())
				return
			}
			s.logger.Error("similarity search", "q", q, "error", err)
			respondError(c, http.StatusBadGateway, "Similarity search failed")
			return
		}
		respondJSON(c, http.StatusOK, matches)
	}
}
