package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"sprintboard/internal/apperr"
	"sprintboard/internal/board"
	"sprintboard/internal/events"
	"sprintboard/internal/projectlock"
	"sprintboard/internal/sprint"
	"sprintboard/internal/storage"
)

// Server provides HTTP handlers for the sprint board backend.
type Server struct {
	engine    *gin.Engine
	store     *storage.Store
	sprints   *sprint.Manager
	board     *board.Resolver
	bus       *events.Bus
	logger    *slog.Logger
	staticDir string
}

// New constructs the HTTP server with routes and middleware configured.
func New(store *storage.Store, bus *events.Bus, logger *slog.Logger, staticDir string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if bus == nil {
		bus = events.NewBus(0)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestID())
	router.Use(accessLog(logger))
	router.Use(requestMetrics())

	locks := projectlock.New()
	srv := &Server{
		engine:    router,
		store:     store,
		sprints:   sprint.NewManager(store, logger, sprint.WithLocks(locks)),
		board:     board.NewResolver(store, logger, board.WithLocks(locks)),
		bus:       bus,
		logger:    logger,
		staticDir: staticDir,
	}

	srv.registerRoutes()
	return srv
}

// Engine exposes the underlying Gin engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// registerRoutes wires all API and static handlers together.
func (s *Server) registerRoutes() {
	api := s.engine.Group("/api")
	{
		api.GET("/healthz", s.handleHealth)

		projects := api.Group("/projects")
		{
			projects.GET("", s.handleListProjects)
			projects.POST("", s.handleCreateProject)
			projects.PUT(":id", s.handleUpdateProject)
			projects.DELETE(":id", s.handleDeleteProject)

			projects.GET(":id/epics", s.handleListEpics)
			projects.POST(":id/epics", s.handleCreateEpic)
			projects.GET(":id/stories", s.handleListStories)
			projects.POST(":id/stories", s.handleCreateStory)
			projects.GET(":id/board", s.handleGetBoard)
			projects.POST(":id/board/columns", s.handleCreateColumn)
			projects.GET(":id/sprints", s.handleListSprints)
			projects.POST(":id/sprints", s.handleCreateSprint)
			projects.GET(":id/tasks", s.handleListTasks)
			projects.POST(":id/tasks", s.handleCreateTask)
			projects.GET(":id/events", s.handleEvents)
		}

		stories := api.Group("/stories")
		{
			stories.PUT(":id", s.handleUpdateStory)
			stories.DELETE(":id", s.handleDeleteStory)
			stories.PUT(":id/move", s.handleMoveStory)
		}

		api.PUT("/columns/:id", s.handleRenameColumn)

		sprints := api.Group("/sprints")
		{
			sprints.GET(":id", s.handleGetSprint)
			sprints.PUT(":id", s.handleUpdateSprint)
			sprints.DELETE(":id", s.handleDeleteSprint)
			sprints.POST(":id/start", s.handleStartSprint)
			sprints.POST(":id/finish", s.handleFinishSprint)
			sprints.POST(":id/cancel", s.handleCancelSprint)
			sprints.GET(":id/can-start", s.handleCanStartSprint)
			sprints.GET(":id/can-finish", s.handleCanFinishSprint)
			sprints.POST(":id/stories", s.handleAssignStories)
			sprints.POST(":id/stories/remove", s.handleUnassignStories)
		}

		tasks := api.Group("/tasks")
		{
			tasks.PUT(":id", s.handleUpdateTask)
			tasks.DELETE(":id", s.handleDeleteTask)
			tasks.PUT(":id/move", s.handleMoveTask)
		}
	}

	s.mountStatic()
}

// handleHealth reports readiness, including the database connection.
func (s *Server) handleHealth(c *gin.Context) {
	if err := s.store.Ping(c.Request.Context()); err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"status": "ok", "driver": s.store.Driver()})
}

// parseID converts a path parameter to int64 with error handling.
func (s *Server) parseID(c *gin.Context, name string) (int64, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		s.respondError(c, apperr.New(apperr.Validation, "invalid identifier %q", raw))
		return 0, false
	}
	return id, true
}

// bindJSON decodes the request body, answering with a validation failure
// when it is malformed.
func (s *Server) bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		s.respondError(c, apperr.Wrap(apperr.Validation, err, "malformed request body"))
		return false
	}
	return true
}

// respondError logs the error and writes the failure envelope. Store
// sentinels that reach here unclassified are translated first.
func (s *Server) respondError(c *gin.Context, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		err = storage.Translate(err, "resource")
	}
	status := apperr.HTTPStatus(err)

	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	s.logger.Log(c.Request.Context(), level, "request failed",
		slog.String("path", c.FullPath()),
		slog.String("request_id", c.GetString(requestIDKey)),
		slog.String("error", err.Error()),
	)

	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"message": apperr.Message(err),
		"error":   apperr.KindOf(err).String(),
	})
}

// respondSuccess wraps a payload in the success envelope.
func respondSuccess(c *gin.Context, status int, payload gin.H) {
	body := gin.H{"success": true}
	for k, v := range payload {
		body[k] = v
	}
	c.JSON(status, body)
}

// publish emits a project event after a successful write.
func (s *Server) publish(eventType, entity string, projectID int64, payload any) {
	s.bus.Publish(events.Event{Type: eventType, Entity: entity, ProjectID: projectID, Payload: payload})
}

// parseDate accepts RFC 3339 timestamps and plain YYYY-MM-DD dates.
func parseDate(field string, raw *string) (*time.Time, error) {
	if raw == nil {
		return nil, nil
	}
	value := strings.TrimSpace(*raw)
	if value == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, apperr.New(apperr.Validation, "%s must be a date (YYYY-MM-DD) or RFC 3339 timestamp", field)
}

func getString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
