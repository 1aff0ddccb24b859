package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"sprintboard/internal/storage"
)

type projectRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Color       *string `json:"color"`
}

type epicRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// handleListProjects returns all available projects.
func (s *Server) handleListProjects(c *gin.Context) {
	projects, err := s.store.ListProjects(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"projects": projects})
}

// handleCreateProject creates a project together with its board.
func (s *Server) handleCreateProject(c *gin.Context) {
	var req projectRequest
	if !s.bindJSON(c, &req) {
		return
	}

	project, err := s.store.CreateProject(c.Request.Context(), req.Name, getString(req.Description), getString(req.Color))
	if err != nil {
		s.respondError(c, storage.Translate(err, "project %q", req.Name))
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"project": project})
}

// handleUpdateProject renames, describes or recolors an existing project.
func (s *Server) handleUpdateProject(c *gin.Context) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}

	var req projectRequest
	if !s.bindJSON(c, &req) {
		return
	}

	project, err := s.store.UpdateProject(c.Request.Context(), id, req.Name, req.Description, req.Color)
	if err != nil {
		s.respondError(c, storage.Translate(err, "project %d", id))
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"project": project})
}

// handleDeleteProject removes a project and everything it owns.
func (s *Server) handleDeleteProject(c *gin.Context) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	if err := s.store.DeleteProject(c.Request.Context(), id); err != nil {
		s.respondError(c, storage.Translate(err, "project %d", id))
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"status": "deleted"})
}

// handleListEpics returns the epics of a project.
func (s *Server) handleListEpics(c *gin.Context) {
	projectID, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		s.respondError(c, storage.Translate(err, "project %d", projectID))
		return
	}
	epics, err := s.store.ListEpics(ctx, projectID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"epics": epics})
}

// handleCreateEpic adds an epic to a project.
func (s *Server) handleCreateEpic(c *gin.Context) {
	projectID, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	var req epicRequest
	if !s.bindJSON(c, &req) {
		return
	}

	epic, err := s.store.CreateEpic(c.Request.Context(), projectID, req.Name, req.Description)
	if err != nil {
		s.respondError(c, storage.Translate(err, "project %d", projectID))
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"epic": epic})
}
