// Package board places stories and tasks on a project's board. A story's
// status follows the position of its column: the first column means
// pendiente, the last completada, anything in between en progreso.
package board

import (
	"context"
	"io"
	"log/slog"

	"sprintboard/internal/apperr"
	"sprintboard/internal/models"
	"sprintboard/internal/projectlock"
	"sprintboard/internal/storage"
)

// Store is the slice of the entity store the resolver needs.
type Store interface {
	GetProject(ctx context.Context, id int64) (models.Project, error)
	GetBoard(ctx context.Context, id int64) (models.Board, error)
	BoardByProject(ctx context.Context, projectID int64) (models.Board, error)
	GetColumn(ctx context.Context, id int64) (models.Column, error)
	IntakeColumn(ctx context.Context, boardID int64) (models.Column, error)
	DoneColumn(ctx context.Context, boardID int64) (models.Column, error)
	CreateColumn(ctx context.Context, boardID int64, name string) (models.Column, error)
	RenameColumn(ctx context.Context, id int64, name string) (models.Column, error)

	GetStory(ctx context.Context, id int64) (models.Story, error)
	PlaceStory(ctx context.Context, storyID, columnID int64, status string) error

	GetTask(ctx context.Context, id int64) (models.Task, error)
	SetTaskColumn(ctx context.Context, taskID, columnID int64) error
	SetStoryTasksStatus(ctx context.Context, storyID int64, status string) (int64, error)
}

// Resolver applies the board placement rules.
type Resolver struct {
	store  Store
	logger *slog.Logger
	locks  *projectlock.Set
}

// Option customises a Resolver.
type Option func(*Resolver)

// WithLocks makes story moves wait on the same project locks as the sprint
// lifecycle, so a move never lands in the middle of a start or finish.
func WithLocks(locks *projectlock.Set) Option {
	return func(r *Resolver) { r.locks = locks }
}

// NewResolver builds a resolver over store.
func NewResolver(store Store, logger *slog.Logger, opts ...Option) *Resolver {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	r := &Resolver{store: store, logger: logger, locks: projectlock.New()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Board returns the project's board with its columns in order.
func (r *Resolver) Board(ctx context.Context, projectID int64) (models.Board, error) {
	if _, err := r.store.GetProject(ctx, projectID); err != nil {
		return models.Board{}, storage.Translate(err, "project %d", projectID)
	}
	b, err := r.store.BoardByProject(ctx, projectID)
	if err != nil {
		return models.Board{}, storage.Translate(err, "board of project %d", projectID)
	}
	return b, nil
}

// AddColumn appends a column to the project's board. The new column becomes
// the done column.
func (r *Resolver) AddColumn(ctx context.Context, projectID int64, name string) (models.Column, error) {
	b, err := r.Board(ctx, projectID)
	if err != nil {
		return models.Column{}, err
	}
	col, err := r.store.CreateColumn(ctx, b.ID, name)
	if err != nil {
		return models.Column{}, storage.Translate(err, "column %q", name)
	}
	return col, nil
}

// RenameColumn changes a column label.
func (r *Resolver) RenameColumn(ctx context.Context, columnID int64, name string) (models.Column, error) {
	col, err := r.store.RenameColumn(ctx, columnID, name)
	if err != nil {
		return models.Column{}, storage.Translate(err, "column %d", columnID)
	}
	return col, nil
}

// MoveTask puts a task into a column of its project's board. The task
// status is left as is.
func (r *Resolver) MoveTask(ctx context.Context, taskID, columnID int64) (models.Task, error) {
	task, err := r.store.GetTask(ctx, taskID)
	if err != nil {
		return models.Task{}, storage.Translate(err, "task %d", taskID)
	}
	col, err := r.store.GetColumn(ctx, columnID)
	if err != nil {
		return models.Task{}, storage.Translate(err, "column %d", columnID)
	}
	if err := r.sameProject(ctx, col, task.ProjectID); err != nil {
		return models.Task{}, err
	}

	if err := r.store.SetTaskColumn(ctx, taskID, columnID); err != nil {
		return models.Task{}, storage.Translate(err, "task %d", taskID)
	}
	r.logger.Debug("task moved", slog.Int64("task_id", taskID), slog.Int64("column_id", columnID))

	task, err = r.store.GetTask(ctx, taskID)
	if err != nil {
		return models.Task{}, storage.Translate(err, "task %d", taskID)
	}
	return task, nil
}

// MoveStory puts a sprint story into a column, derives its status from the
// column position and forces that status onto the story's tasks.
func (r *Resolver) MoveStory(ctx context.Context, storyID, columnID int64) (models.Story, error) {
	story, err := r.store.GetStory(ctx, storyID)
	if err != nil {
		return models.Story{}, storage.Translate(err, "story %d", storyID)
	}
	unlock := r.locks.Lock(story.ProjectID)
	defer unlock()
	// Sprint membership may have changed while waiting.
	story, err = r.store.GetStory(ctx, storyID)
	if err != nil {
		return models.Story{}, storage.Translate(err, "story %d", storyID)
	}
	col, err := r.store.GetColumn(ctx, columnID)
	if err != nil {
		return models.Story{}, storage.Translate(err, "column %d", columnID)
	}
	if story.SprintID == nil {
		return models.Story{}, apperr.New(apperr.InvalidOperation,
			"story %d is not part of a sprint and cannot be placed on the board", storyID)
	}
	if err := r.sameProject(ctx, col, story.ProjectID); err != nil {
		return models.Story{}, err
	}

	status, err := r.StatusForColumn(ctx, col)
	if err != nil {
		return models.Story{}, err
	}
	if err := r.store.PlaceStory(ctx, storyID, columnID, status); err != nil {
		return models.Story{}, storage.Translate(err, "story %d", storyID)
	}
	cascaded, err := r.store.SetStoryTasksStatus(ctx, storyID, status)
	if err != nil {
		return models.Story{}, err
	}
	r.logger.Debug("story moved",
		slog.Int64("story_id", storyID),
		slog.Int64("column_id", columnID),
		slog.String("status", status),
		slog.Int64("tasks", cascaded),
	)

	story, err = r.store.GetStory(ctx, storyID)
	if err != nil {
		return models.Story{}, storage.Translate(err, "story %d", storyID)
	}
	return story, nil
}

// StatusForColumn maps a column to the story status it stands for. When a
// board has a single column, it counts as the intake column.
func (r *Resolver) StatusForColumn(ctx context.Context, col models.Column) (string, error) {
	intake, err := r.store.IntakeColumn(ctx, col.BoardID)
	if err != nil {
		return "", storage.Translate(err, "first column of board %d", col.BoardID)
	}
	if intake.ID == col.ID {
		return models.StoryPending, nil
	}
	done, err := r.store.DoneColumn(ctx, col.BoardID)
	if err != nil {
		return "", storage.Translate(err, "last column of board %d", col.BoardID)
	}
	if done.ID == col.ID {
		return models.StoryDone, nil
	}
	return models.StoryInProgress, nil
}

func (r *Resolver) sameProject(ctx context.Context, col models.Column, projectID int64) error {
	b, err := r.store.GetBoard(ctx, col.BoardID)
	if err != nil {
		return storage.Translate(err, "board %d", col.BoardID)
	}
	if b.ProjectID != projectID {
		return apperr.New(apperr.InvalidOperation,
			"column %d belongs to another project's board", col.ID)
	}
	return nil
}
