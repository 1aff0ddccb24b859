package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"sprintboard/internal/apperr"
	"sprintboard/internal/events"
	"sprintboard/internal/models"
	"sprintboard/internal/storage"
)

// taskRequest.Assignee accepts 42, "42", {"id": 42} or {"_id": "42"};
// {"id": null} clears the assignee.
type taskRequest struct {
	StoryID     *int64          `json:"story_id"`
	Title       *string         `json:"title"`
	Description *string         `json:"description"`
	Status      *string         `json:"status"`
	Assignee    *models.UserRef `json:"assignee"`
}

// handleListTasks fetches tasks for a project.
func (s *Server) handleListTasks(c *gin.Context) {
	projectID, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		s.respondError(c, storage.Translate(err, "project %d", projectID))
		return
	}

	tasks, err := s.store.ListTasks(ctx, projectID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"tasks": tasks})
}

// handleCreateTask inserts a new task, optionally linked to a story.
func (s *Server) handleCreateTask(c *gin.Context) {
	projectID, ok := s.parseID(c, "id")
	if !ok {
		return
	}

	var req taskRequest
	if !s.bindJSON(c, &req) {
		return
	}
	if req.Title == nil || *req.Title == "" {
		s.respondError(c, apperr.New(apperr.Validation, "title is required"))
		return
	}

	task := models.Task{
		ProjectID:   projectID,
		StoryID:     req.StoryID,
		Title:       *req.Title,
		Description: getString(req.Description),
		Status:      getString(req.Status),
	}
	if req.Assignee != nil {
		task.AssigneeID = req.Assignee.Ptr()
	}
	task, err := s.store.CreateTask(c.Request.Context(), task)
	if err != nil {
		s.respondError(c, storage.Translate(err, "project %d", projectID))
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"task": task})
}

// handleUpdateTask updates task fields such as status or assignee.
func (s *Server) handleUpdateTask(c *gin.Context) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}

	var req taskRequest
	if !s.bindJSON(c, &req) {
		return
	}

	task, err := s.store.UpdateTask(c.Request.Context(), id, storage.TaskChanges{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Assignee:    req.Assignee,
	})
	if err != nil {
		s.respondError(c, storage.Translate(err, "task %d", id))
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"task": task})
}

// handleDeleteTask removes a task completely.
func (s *Server) handleDeleteTask(c *gin.Context) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	if err := s.store.DeleteTask(c.Request.Context(), id); err != nil {
		s.respondError(c, storage.Translate(err, "task %d", id))
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"status": "deleted"})
}

// handleMoveTask places a task on a board column.
func (s *Server) handleMoveTask(c *gin.Context) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	var req moveRequest
	if !s.bindJSON(c, &req) {
		return
	}

	task, err := s.board.MoveTask(c.Request.Context(), id, req.ColumnID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.publish(events.TaskMoved, "task", task.ProjectID, gin.H{"id": task.ID, "column_id": req.ColumnID})
	respondSuccess(c, http.StatusOK, gin.H{"task": task})
}
