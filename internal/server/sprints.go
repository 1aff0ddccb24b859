package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"sprintboard/internal/events"
	"sprintboard/internal/models"
	"sprintboard/internal/sprint"
)

type sprintRequest struct {
	Name      *string  `json:"name"`
	Objective *string  `json:"objective"`
	StartDate *string  `json:"start_date"`
	EndDate   *string  `json:"end_date"`
	Status    *string  `json:"status"`
	StoryIDs  *[]int64 `json:"story_ids"`
}

type storyIDsRequest struct {
	StoryIDs []int64 `json:"story_ids"`
}

// handleListSprints returns the sprints of a project by number.
func (s *Server) handleListSprints(c *gin.Context) {
	projectID, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	sprints, err := s.sprints.List(c.Request.Context(), projectID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"sprints": sprints})
}

// handleCreateSprint plans a new pending sprint.
func (s *Server) handleCreateSprint(c *gin.Context) {
	projectID, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	var req sprintRequest
	if !s.bindJSON(c, &req) {
		return
	}
	start, err := parseDate("start_date", req.StartDate)
	if err != nil {
		s.respondError(c, err)
		return
	}
	end, err := parseDate("end_date", req.EndDate)
	if err != nil {
		s.respondError(c, err)
		return
	}

	in := sprint.CreateInput{
		ProjectID: projectID,
		Name:      getString(req.Name),
		Objective: getString(req.Objective),
		StartDate: start,
		EndDate:   end,
	}
	if req.StoryIDs != nil {
		in.StoryIDs = *req.StoryIDs
	}
	sp, err := s.sprints.Create(c.Request.Context(), in)
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.publish(events.SprintCreated, "sprint", sp.ProjectID, sp)
	respondSuccess(c, http.StatusCreated, gin.H{"sprint": sp})
}

// handleGetSprint returns a sprint with its stories.
func (s *Server) handleGetSprint(c *gin.Context) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	sp, err := s.sprints.Get(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"sprint": sp})
}

// handleUpdateSprint edits a sprint's details or story selection.
func (s *Server) handleUpdateSprint(c *gin.Context) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	var req sprintRequest
	if !s.bindJSON(c, &req) {
		return
	}
	start, err := parseDate("start_date", req.StartDate)
	if err != nil {
		s.respondError(c, err)
		return
	}
	end, err := parseDate("end_date", req.EndDate)
	if err != nil {
		s.respondError(c, err)
		return
	}

	sp, err := s.sprints.Update(c.Request.Context(), id, sprint.UpdateInput{
		Name:      req.Name,
		Objective: req.Objective,
		StartDate: start,
		EndDate:   end,
		Status:    req.Status,
		StoryIDs:  req.StoryIDs,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.publish(events.SprintUpdated, "sprint", sp.ProjectID, sp)
	respondSuccess(c, http.StatusOK, gin.H{"sprint": sp})
}

// handleDeleteSprint removes a sprint that is not running.
func (s *Server) handleDeleteSprint(c *gin.Context) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	sp, err := s.sprints.Get(ctx, id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if err := s.sprints.Delete(ctx, id); err != nil {
		s.respondError(c, err)
		return
	}
	s.publish(events.SprintDeleted, "sprint", sp.ProjectID, gin.H{"id": id})
	respondSuccess(c, http.StatusOK, gin.H{"status": "deleted"})
}

// handleStartSprint moves a pending sprint into progress and its stories onto the board.
func (s *Server) handleStartSprint(c *gin.Context) {
	s.transition(c, s.sprints.Start, events.SprintStarted)
}

// handleFinishSprint completes a sprint whose stories all sit in the last column.
func (s *Server) handleFinishSprint(c *gin.Context) {
	s.transition(c, s.sprints.Finish, events.SprintFinished)
}

// handleCancelSprint cancels a pending or running sprint.
func (s *Server) handleCancelSprint(c *gin.Context) {
	s.transition(c, s.sprints.Cancel, events.SprintCancelled)
}

// transition runs one lifecycle operation and announces its result.
func (s *Server) transition(c *gin.Context, apply func(context.Context, int64) (models.Sprint, error), eventType string) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	sp, err := apply(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.publish(eventType, "sprint", sp.ProjectID, sp)
	respondSuccess(c, http.StatusOK, gin.H{"sprint": sp})
}

// handleCanStartSprint reports whether the sprint could start now.
func (s *Server) handleCanStartSprint(c *gin.Context) {
	s.preflight(c, s.sprints.CanStart)
}

// handleCanFinishSprint reports whether the sprint could finish now.
func (s *Server) handleCanFinishSprint(c *gin.Context) {
	s.preflight(c, s.sprints.CanFinish)
}

// preflight answers a can-start or can-finish check without changing anything.
func (s *Server) preflight(c *gin.Context, check func(context.Context, int64) (sprint.Check, error)) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	result, err := check(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"allowed": result.Allowed,
		"reason":  result.Reason,
		"code":    result.Code,
	})
}

// handleAssignStories scopes stories to a sprint.
func (s *Server) handleAssignStories(c *gin.Context) {
	s.changeScope(c, s.sprints.AssignStories, events.SprintStoriesAssigned)
}

// handleUnassignStories takes stories out of a sprint.
func (s *Server) handleUnassignStories(c *gin.Context) {
	s.changeScope(c, s.sprints.UnassignStories, events.SprintStoriesUnassigned)
}

// changeScope applies a story id list to a sprint and announces the change.
func (s *Server) changeScope(c *gin.Context, apply func(context.Context, int64, []int64) (int64, error), eventType string) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	var req storyIDsRequest
	if !s.bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()
	updated, err := apply(ctx, id, req.StoryIDs)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if sp, err := s.store.GetSprint(ctx, id); err == nil {
		s.publish(eventType, "sprint", sp.ProjectID, gin.H{"id": id, "story_ids": req.StoryIDs, "updated": updated})
	}
	respondSuccess(c, http.StatusOK, gin.H{"updated": updated})
}
