// Package sprint implements the sprint lifecycle: creation and numbering,
// scope changes, and the guarded pendiente -> en progreso -> completado /
// cancelado transitions with their board side effects.
package sprint

import (
	"context"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"sprintboard/internal/models"
	"sprintboard/internal/projectlock"
	"sprintboard/internal/storage"
	"sprintboard/internal/telemetry"
)

// Store is the slice of the entity store the lifecycle needs.
type Store interface {
	GetProject(ctx context.Context, id int64) (models.Project, error)

	ListSprints(ctx context.Context, projectID int64) ([]models.Sprint, error)
	GetSprint(ctx context.Context, id int64) (models.Sprint, error)
	NextSprintNumber(ctx context.Context, projectID int64) (int64, error)
	CreateSprint(ctx context.Context, sp models.Sprint) (models.Sprint, error)
	UpdateSprintDetails(ctx context.Context, id int64, changes storage.SprintChanges) (models.Sprint, error)
	TransitionSprint(ctx context.Context, id, expectedRevision int64, status string, startedAt, finishedAt *time.Time) (models.Sprint, error)
	InProgressSprint(ctx context.Context, projectID, excludeID int64) (models.Sprint, bool, error)
	EarlierPendingSprint(ctx context.Context, projectID, number int64) (models.Sprint, bool, error)
	DeleteSprint(ctx context.Context, id int64) error

	StoriesBySprint(ctx context.Context, sprintID int64) ([]models.Story, error)
	CountSprintStories(ctx context.Context, sprintID int64) (int64, error)
	CountSprintStoriesOutside(ctx context.Context, sprintID, columnID int64) (int64, error)
	AssignStoriesToSprint(ctx context.Context, projectID, sprintID int64, storyIDs []int64) (int64, error)
	UnassignStoriesFromSprint(ctx context.Context, sprintID int64, storyIDs []int64) (int64, error)
	DetachSprintStories(ctx context.Context, sprintID int64) (int64, error)
	PlaceSprintStories(ctx context.Context, sprintID, columnID int64, status string) (int64, error)
	ClearSprintStoryColumns(ctx context.Context, sprintID int64) (int64, error)
	SetSprintStoriesStatus(ctx context.Context, sprintID int64, status string) (int64, error)

	BoardByProject(ctx context.Context, projectID int64) (models.Board, error)
	IntakeColumn(ctx context.Context, boardID int64) (models.Column, error)
	DoneColumn(ctx context.Context, boardID int64) (models.Column, error)
}

// Manager owns the sprint state machine.
type Manager struct {
	store       Store
	logger      *slog.Logger
	locks       *projectlock.Set
	now         func() time.Time
	tracer      trace.Tracer
	transitions metric.Int64Counter
}

// Option customises a Manager.
type Option func(*Manager)

// WithClock replaces the time source used for actual start and finish stamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLocks shares a project lock set with other writers of the board.
func WithLocks(locks *projectlock.Set) Option {
	return func(m *Manager) { m.locks = locks }
}

// NewManager builds a lifecycle manager over store.
func NewManager(store Store, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	transitions, _ := telemetry.Meter("sprint").Int64Counter("sprintboard.sprint.transitions",
		metric.WithDescription("Sprint status transitions applied"),
	)
	m := &Manager{
		store:       store,
		logger:      logger,
		locks:       projectlock.New(),
		now:         func() time.Time { return time.Now().UTC() },
		tracer:      telemetry.Tracer("sprint"),
		transitions: transitions,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// span starts a trace span for a lifecycle operation.
func (m *Manager) span(ctx context.Context, name string, sprintID int64) (context.Context, trace.Span) {
	return m.tracer.Start(ctx, "sprint."+name, trace.WithAttributes(attribute.Int64("sprint.id", sprintID)))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (m *Manager) recordTransition(ctx context.Context, sp models.Sprint, from string) {
	m.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", from),
		attribute.String("to", sp.Status),
	))
	m.logger.Info("sprint transition",
		slog.Int64("sprint_id", sp.ID),
		slog.Int64("project_id", sp.ProjectID),
		slog.String("from", from),
		slog.String("to", sp.Status),
	)
}

// withStories attaches the sprint's scoped stories.
func (m *Manager) withStories(ctx context.Context, sp models.Sprint) (models.Sprint, error) {
	stories, err := m.store.StoriesBySprint(ctx, sp.ID)
	if err != nil {
		return models.Sprint{}, err
	}
	sp.Stories = stories
	return sp, nil
}
