package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"sprintboard/internal/apperr"
	"sprintboard/internal/events"
	"sprintboard/internal/models"
	"sprintboard/internal/storage"
)

type storyRequest struct {
	EpicID      *int64  `json:"epic_id"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Points      *int64  `json:"points"`
	Status      *string `json:"status"`
}

type moveRequest struct {
	ColumnID int64 `json:"column_id"`
}

// handleListStories returns a project's stories, or only its backlog with
// ?backlog=true.
func (s *Server) handleListStories(c *gin.Context) {
	projectID, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		s.respondError(c, storage.Translate(err, "project %d", projectID))
		return
	}

	var (
		stories []models.Story
		err     error
	)
	if c.Query("backlog") == "true" {
		stories, err = s.store.ListBacklog(ctx, projectID)
	} else {
		stories, err = s.store.ListStories(ctx, projectID)
	}
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"stories": stories})
}

// handleCreateStory adds a story to a project's backlog.
func (s *Server) handleCreateStory(c *gin.Context) {
	projectID, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	var req storyRequest
	if !s.bindJSON(c, &req) {
		return
	}
	if req.EpicID == nil {
		s.respondError(c, apperr.New(apperr.Validation, "epic_id is required"))
		return
	}

	story := models.Story{
		ProjectID:   projectID,
		EpicID:      *req.EpicID,
		Title:       getString(req.Title),
		Description: getString(req.Description),
		Status:      getString(req.Status),
	}
	if req.Points != nil {
		story.Points = *req.Points
	}
	story, err := s.store.CreateStory(c.Request.Context(), story)
	if err != nil {
		s.respondError(c, storage.Translate(err, "epic %d", *req.EpicID))
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"story": story})
}

// handleUpdateStory edits story fields.
func (s *Server) handleUpdateStory(c *gin.Context) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	var req storyRequest
	if !s.bindJSON(c, &req) {
		return
	}

	story, err := s.store.UpdateStory(c.Request.Context(), id, storage.StoryChanges{
		Title:       req.Title,
		Description: req.Description,
		Points:      req.Points,
		Status:      req.Status,
		EpicID:      req.EpicID,
	})
	if err != nil {
		s.respondError(c, storage.Translate(err, "story %d", id))
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"story": story})
}

// handleDeleteStory removes a story; its tasks are unlinked.
func (s *Server) handleDeleteStory(c *gin.Context) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	if err := s.store.DeleteStory(c.Request.Context(), id); err != nil {
		s.respondError(c, storage.Translate(err, "story %d", id))
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"status": "deleted"})
}

// handleMoveStory places a sprint story on a board column.
func (s *Server) handleMoveStory(c *gin.Context) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	var req moveRequest
	if !s.bindJSON(c, &req) {
		return
	}

	story, err := s.board.MoveStory(c.Request.Context(), id, req.ColumnID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.publish(events.StoryMoved, "story", story.ProjectID, gin.H{
		"id": story.ID, "column_id": req.ColumnID, "status": story.Status,
	})
	respondSuccess(c, http.StatusOK, gin.H{"story": story})
}
