package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const maxPageSize = 1000

func (s *Server) handleListTasks() gin.HandlerFunc {
	return func(c *gin.Context) {
		skip, err := strconv.Atoi(c.DefaultQuery("skip", "0"))
		if err != nil || skip < 0 {
			respondError(c, http.StatusBadRequest, "skip must be a non-negative integer")
			return
		}
		limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
		if err != nil || limit < 1 || limit > maxPageSize {
			respondError(c, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}

		tasks, err := s.store.ListTasks(c.Request.Context(), skip, limit)
		if err != nil {
			s.logger.Error("list tasks", "error", err)
			respondError(c, http.StatusInternalServerError, "Database error")
			return
		}
		respondJSON(c, http.StatusOK, tasks)
	}
}

func (s *Server) handleGetTask() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := taskID(c)
		if !ok {
			return
		}
		task, err := s.store.GetTask(c.Request.Context(), id)
		if err != nil {
			s.logger.Error("get task", "id", id, "error", err)
			respondError(c, http.StatusInternalServerError, "Database error")
			return
		}
		if task == nil {
			respondError(c, http.StatusNotFound, "Task not found")
			return
		}
		respondJSON(c, http.StatusOK, task)
	}
}

func (s *Server) handleDeleteTask() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := taskID(c)
		if !ok {
			return
		}
		deleted, err := s.research.DeleteTask(c.Request.Context(), id)
		if err != nil {
			s.logger.Error("delete task", "id", id, "error", err)
			respondError(c, http.StatusInternalServerError, "Database error")
			return
		}
		if !deleted {
			respondError(c, http.StatusNotFound, "Task not found")
			return
		}
		respondJSON(c, http.StatusOK, gin.H{"ok": true})
	}
}

func (s *Server) handleStats() gin.HandlerFunc {
	return func(c *gin.Context) {
		st, err := s.store.Stats(c.Request.Context())
		if err != nil {
			s.logger.Error("stats", "error", err)
			respondError(c, http.StatusInternalServerError, "Database error")
			return
		}
		respondJSON(c, http.StatusOK, st)
	}
}

func taskID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		respondError(c, http.StatusBadRequest, "invalid task id")
		return 0, false
	}
	return id, true
}
