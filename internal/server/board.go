package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"sprintboard/internal/storage"
)

type columnRequest struct {
	Name string `json:"name"`
}

// handleGetBoard returns the project's board with ordered columns.
func (s *Server) handleGetBoard(c *gin.Context) {
	projectID, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	b, err := s.board.Board(c.Request.Context(), projectID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"board": b})
}

// handleCreateColumn appends a column to the project's board.
func (s *Server) handleCreateColumn(c *gin.Context) {
	projectID, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	var req columnRequest
	if !s.bindJSON(c, &req) {
		return
	}
	col, err := s.board.AddColumn(c.Request.Context(), projectID, req.Name)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"column": col})
}

// handleRenameColumn relabels a column.
func (s *Server) handleRenameColumn(c *gin.Context) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	var req columnRequest
	if !s.bindJSON(c, &req) {
		return
	}
	col, err := s.board.RenameColumn(c.Request.Context(), id, req.Name)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"column": col})
}

// handleEvents streams project notifications as Server-Sent Events.
func (s *Server) handleEvents(c *gin.Context) {
	projectID, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	if _, err := s.store.GetProject(c.Request.Context(), projectID); err != nil {
		s.respondError(c, storage.Translate(err, "project %d", projectID))
		return
	}
	s.bus.ServeSSE(c.Writer, c.Request, projectID)
}
