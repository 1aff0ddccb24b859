package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"sprintboard/internal/models"
)

const taskColumns = `id, project_id, story_id, column_id, title, description, status, assignee_id, position, created_at, updated_at`

// TaskChanges lists the optional fields of a task update.
type TaskChanges struct {
	Title       *string
	Description *string
	Status      *string
	// Assignee replaces the assignee when non-nil; a zero UserRef clears it.
	Assignee *models.UserRef
}

func scanTask(row interface{ Scan(...any) error }) (models.Task, error) {
	var (
		t        models.Task
		storyID  sql.NullInt64
		columnID sql.NullInt64
		assignee sql.NullInt64
	)
	err := row.Scan(&t.ID, &t.ProjectID, &storyID, &columnID, &t.Title, &t.Description, &t.Status, &assignee,
		&t.Position, &t.CreatedAt, &t.UpdatedAt)
	t.StoryID = fromNullInt(storyID)
	t.ColumnID = fromNullInt(columnID)
	t.AssigneeID = fromNullInt(assignee)
	return t, err
}

func (s *Store) listTasks(ctx context.Context, where string, args ...any) ([]models.Task, error) {
	rows, err := s.query(ctx, `SELECT `+taskColumns+` FROM tasks WHERE `+where+` ORDER BY status, position, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// ListTasks returns tasks for the given project ordered by status and position.
func (s *Store) ListTasks(ctx context.Context, projectID int64) ([]models.Task, error) {
	return s.listTasks(ctx, `project_id = ?`, projectID)
}

// TasksByStory returns the tasks linked to a story.
func (s *Store) TasksByStory(ctx context.Context, storyID int64) ([]models.Task, error) {
	return s.listTasks(ctx, `story_id = ?`, storyID)
}

// CreateTask inserts a new task for a project.
func (s *Store) CreateTask(ctx context.Context, t models.Task) (models.Task, error) {
	t.Title = strings.TrimSpace(t.Title)
	if t.Title == "" {
		return models.Task{}, fmt.Errorf("%w: task title must not be empty", ErrInvalid)
	}
	if _, err := s.GetProject(ctx, t.ProjectID); err != nil {
		return models.Task{}, err
	}
	if t.StoryID != nil {
		story, err := s.GetStory(ctx, *t.StoryID)
		if err != nil {
			return models.Task{}, err
		}
		if story.ProjectID != t.ProjectID {
			return models.Task{}, fmt.Errorf("%w: story %d belongs to another project", ErrInvalid, story.ID)
		}
	}
	if _, ok := models.ValidStoryStatuses[t.Status]; !ok {
		t.Status = models.StoryPending
	}

	pos, err := s.nextPosition(ctx, t.ProjectID, t.Status)
	if err != nil {
		return models.Task{}, err
	}

	ts := now()
	id, err := s.insert(ctx, `INSERT INTO tasks(project_id, story_id, title, description, status, assignee_id, position, created_at, updated_at)
        VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ProjectID, nullableInt(t.StoryID), t.Title, strings.TrimSpace(t.Description), t.Status, nullableInt(t.AssigneeID), pos, ts, ts)
	if err != nil {
		return models.Task{}, fmt.Errorf("insert task: %w", err)
	}
	return s.GetTask(ctx, id)
}

// GetTask retrieves a task by id.
func (s *Store) GetTask(ctx context.Context, id int64) (models.Task, error) {
	t, err := scanTask(s.queryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Task{}, fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.Task{}, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// UpdateTask updates task fields and re-queues the task when its status changes.
func (s *Store) UpdateTask(ctx context.Context, id int64, changes TaskChanges) (models.Task, error) {
	current, err := s.GetTask(ctx, id)
	if err != nil {
		return models.Task{}, err
	}

	if changes.Title != nil && strings.TrimSpace(*changes.Title) != "" {
		current.Title = strings.TrimSpace(*changes.Title)
	}
	if changes.Description != nil {
		current.Description = strings.TrimSpace(*changes.Description)
	}
	if changes.Assignee != nil {
		current.AssigneeID = changes.Assignee.Ptr()
	}

	position := current.Position
	if changes.Status != nil && *changes.Status != current.Status {
		if _, valid := models.ValidStoryStatuses[*changes.Status]; !valid {
			return models.Task{}, fmt.Errorf("%w: unknown task status %q", ErrInvalid, *changes.Status)
		}
		pos, err := s.nextPosition(ctx, current.ProjectID, *changes.Status)
		if err != nil {
			return models.Task{}, err
		}
		current.Status = *changes.Status
		position = pos
	}

	_, err = s.exec(ctx, `UPDATE tasks SET title = ?, description = ?, status = ?, assignee_id = ?, position = ?, updated_at = ? WHERE id = ?`,
		current.Title, current.Description, current.Status, nullableInt(current.AssigneeID), position, now(), id)
	if err != nil {
		return models.Task{}, fmt.Errorf("update task: %w", err)
	}
	return s.GetTask(ctx, id)
}

// DeleteTask removes a task by id.
func (s *Store) DeleteTask(ctx context.Context, id int64) error {
	err := s.execAffecting(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

// SetTaskColumn moves a task into a column without touching its status.
func (s *Store) SetTaskColumn(ctx context.Context, taskID, columnID int64) error {
	err := s.execAffecting(ctx, `UPDATE tasks SET column_id = ?, updated_at = ? WHERE id = ?`, columnID, now(), taskID)
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("task %d: %w", taskID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("move task: %w", err)
	}
	return nil
}

// SetStoryTasksStatus forces the status of every task linked to a story.
func (s *Store) SetStoryTasksStatus(ctx context.Context, storyID int64, status string) (int64, error) {
	res, err := s.exec(ctx, `UPDATE tasks SET status = ?, updated_at = ? WHERE story_id = ?`, status, now(), storyID)
	if err != nil {
		return 0, fmt.Errorf("cascade task status: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) nextPosition(ctx context.Context, projectID int64, status string) (int64, error) {
	var position sql.NullInt64
	err := s.queryRow(ctx, `SELECT MAX(position) FROM tasks WHERE project_id = ? AND status = ?`, projectID, status).Scan(&position)
	if err != nil {
		return 0, fmt.Errorf("select position: %w", err)
	}
	if position.Valid {
		return position.Int64 + 1, nil
	}
	return 0, nil
}
