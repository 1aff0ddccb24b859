package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"sprintboard/internal/models"
)

const storyColumns = `id, project_id, epic_id, title, description, points, status, sprint_id, column_id, created_at, updated_at`

// StoryChanges lists the optional fields of a story update.
type StoryChanges struct {
	Title       *string
	Description *string
	Points      *int64
	Status      *string
	EpicID      *int64
}

func scanStory(row interface{ Scan(...any) error }) (models.Story, error) {
	var (
		st       models.Story
		sprintID sql.NullInt64
		columnID sql.NullInt64
	)
	err := row.Scan(&st.ID, &st.ProjectID, &st.EpicID, &st.Title, &st.Description, &st.Points, &st.Status,
		&sprintID, &columnID, &st.CreatedAt, &st.UpdatedAt)
	st.SprintID = fromNullInt(sprintID)
	st.ColumnID = fromNullInt(columnID)
	return st, err
}

func (s *Store) listStories(ctx context.Context, where string, args ...any) ([]models.Story, error) {
	rows, err := s.query(ctx, `SELECT `+storyColumns+` FROM stories WHERE `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list stories: %w", err)
	}
	defer rows.Close()

	stories := []models.Story{}
	for rows.Next() {
		st, err := scanStory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan story: %w", err)
		}
		stories = append(stories, st)
	}
	return stories, rows.Err()
}

// ListStories returns every story of a project.
func (s *Store) ListStories(ctx context.Context, projectID int64) ([]models.Story, error) {
	return s.listStories(ctx, `project_id = ?`, projectID)
}

// ListBacklog returns the project stories not scoped to any sprint.
func (s *Store) ListBacklog(ctx context.Context, projectID int64) ([]models.Story, error) {
	return s.listStories(ctx, `project_id = ? AND sprint_id IS NULL`, projectID)
}

// StoriesBySprint returns the stories scoped to a sprint.
func (s *Store) StoriesBySprint(ctx context.Context, sprintID int64) ([]models.Story, error) {
	return s.listStories(ctx, `sprint_id = ?`, sprintID)
}

// CountSprintStories counts the stories scoped to a sprint.
func (s *Store) CountSprintStories(ctx context.Context, sprintID int64) (int64, error) {
	var n int64
	if err := s.queryRow(ctx, `SELECT COUNT(*) FROM stories WHERE sprint_id = ?`, sprintID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count sprint stories: %w", err)
	}
	return n, nil
}

// CountSprintStoriesOutside counts the sprint's stories that do not sit in columnID.
func (s *Store) CountSprintStoriesOutside(ctx context.Context, sprintID, columnID int64) (int64, error) {
	var n int64
	err := s.queryRow(ctx, `SELECT COUNT(*) FROM stories WHERE sprint_id = ? AND (column_id IS NULL OR column_id <> ?)`,
		sprintID, columnID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unfinished stories: %w", err)
	}
	return n, nil
}

// CreateStory inserts a story into the backlog of its project.
func (s *Store) CreateStory(ctx context.Context, st models.Story) (models.Story, error) {
	st.Title = strings.TrimSpace(st.Title)
	if st.Title == "" {
		return models.Story{}, fmt.Errorf("%w: story title must not be empty", ErrInvalid)
	}
	epic, err := s.GetEpic(ctx, st.EpicID)
	if err != nil {
		return models.Story{}, err
	}
	if epic.ProjectID != st.ProjectID {
		return models.Story{}, fmt.Errorf("%w: epic %d belongs to another project", ErrInvalid, st.EpicID)
	}
	if _, ok := models.ValidStoryStatuses[st.Status]; !ok {
		st.Status = models.StoryPending
	}

	ts := now()
	id, err := s.insert(ctx, `INSERT INTO stories(project_id, epic_id, title, description, points, status, created_at, updated_at)
        VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		st.ProjectID, st.EpicID, st.Title, strings.TrimSpace(st.Description), st.Points, st.Status, ts, ts)
	if err != nil {
		return models.Story{}, fmt.Errorf("insert story: %w", err)
	}
	return s.GetStory(ctx, id)
}

// GetStory retrieves a story by id.
func (s *Store) GetStory(ctx context.Context, id int64) (models.Story, error) {
	st, err := scanStory(s.queryRow(ctx, `SELECT `+storyColumns+` FROM stories WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Story{}, fmt.Errorf("story %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.Story{}, fmt.Errorf("get story: %w", err)
	}
	return st, nil
}

// UpdateStory applies the non-nil fields of changes.
func (s *Store) UpdateStory(ctx context.Context, id int64, changes StoryChanges) (models.Story, error) {
	current, err := s.GetStory(ctx, id)
	if err != nil {
		return models.Story{}, err
	}

	if changes.Title != nil && strings.TrimSpace(*changes.Title) != "" {
		current.Title = strings.TrimSpace(*changes.Title)
	}
	if changes.Description != nil {
		current.Description = strings.TrimSpace(*changes.Description)
	}
	if changes.Points != nil {
		current.Points = *changes.Points
	}
	if changes.Status != nil {
		if _, valid := models.ValidStoryStatuses[*changes.Status]; !valid {
			return models.Story{}, fmt.Errorf("%w: unknown story status %q", ErrInvalid, *changes.Status)
		}
		current.Status = *changes.Status
	}
	if changes.EpicID != nil && *changes.EpicID != current.EpicID {
		epic, err := s.GetEpic(ctx, *changes.EpicID)
		if err != nil {
			return models.Story{}, err
		}
		if epic.ProjectID != current.ProjectID {
			return models.Story{}, fmt.Errorf("%w: epic %d belongs to another project", ErrInvalid, epic.ID)
		}
		current.EpicID = epic.ID
	}

	_, err = s.exec(ctx, `UPDATE stories SET title = ?, description = ?, points = ?, status = ?, epic_id = ?, updated_at = ? WHERE id = ?`,
		current.Title, current.Description, current.Points, current.Status, current.EpicID, now(), id)
	if err != nil {
		return models.Story{}, fmt.Errorf("update story: %w", err)
	}
	return s.GetStory(ctx, id)
}

// DeleteStory removes a story by id.
func (s *Store) DeleteStory(ctx context.Context, id int64) error {
	err := s.execAffecting(ctx, `DELETE FROM stories WHERE id = ?`, id)
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("story %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("delete story: %w", err)
	}
	return nil
}

// AssignStoriesToSprint points the given stories of the sprint's project at
// the sprint. Ids that match no story in that project are skipped. A story
// that changes sprint leaves the board; one already in the sprint keeps its
// column.
func (s *Store) AssignStoriesToSprint(ctx context.Context, projectID, sprintID int64, storyIDs []int64) (int64, error) {
	if len(storyIDs) == 0 {
		return 0, nil
	}
	args := append([]any{sprintID, sprintID, now(), projectID}, int64Args(storyIDs)...)
	res, err := s.exec(ctx, `UPDATE stories
		SET sprint_id = ?, column_id = CASE WHEN sprint_id = ? THEN column_id ELSE NULL END, updated_at = ?
		WHERE project_id = ? AND id IN `+inClause(len(storyIDs)), args...)
	if err != nil {
		return 0, fmt.Errorf("assign stories: %w", err)
	}
	return res.RowsAffected()
}

// UnassignStoriesFromSprint detaches the given stories from the sprint and
// the board. Stories not currently in the sprint are skipped.
func (s *Store) UnassignStoriesFromSprint(ctx context.Context, sprintID int64, storyIDs []int64) (int64, error) {
	if len(storyIDs) == 0 {
		return 0, nil
	}
	args := append([]any{now(), sprintID}, int64Args(storyIDs)...)
	res, err := s.exec(ctx, `UPDATE stories SET sprint_id = NULL, column_id = NULL, updated_at = ? WHERE sprint_id = ? AND id IN `+inClause(len(storyIDs)), args...)
	if err != nil {
		return 0, fmt.Errorf("unassign stories: %w", err)
	}
	return res.RowsAffected()
}

// DetachSprintStories detaches every story of the sprint from it and the board.
func (s *Store) DetachSprintStories(ctx context.Context, sprintID int64) (int64, error) {
	res, err := s.exec(ctx, `UPDATE stories SET sprint_id = NULL, column_id = NULL, updated_at = ? WHERE sprint_id = ?`, now(), sprintID)
	if err != nil {
		return 0, fmt.Errorf("detach sprint stories: %w", err)
	}
	return res.RowsAffected()
}

// PlaceSprintStories moves every story of the sprint into columnID with the given status.
func (s *Store) PlaceSprintStories(ctx context.Context, sprintID, columnID int64, status string) (int64, error) {
	res, err := s.exec(ctx, `UPDATE stories SET column_id = ?, status = ?, updated_at = ? WHERE sprint_id = ?`, columnID, status, now(), sprintID)
	if err != nil {
		return 0, fmt.Errorf("place sprint stories: %w", err)
	}
	return res.RowsAffected()
}

// ClearSprintStoryColumns takes every story of the sprint off the board,
// keeping its sprint.
func (s *Store) ClearSprintStoryColumns(ctx context.Context, sprintID int64) (int64, error) {
	res, err := s.exec(ctx, `UPDATE stories SET column_id = NULL, updated_at = ? WHERE sprint_id = ?`, now(), sprintID)
	if err != nil {
		return 0, fmt.Errorf("clear sprint story columns: %w", err)
	}
	return res.RowsAffected()
}

// SetSprintStoriesStatus sets the status of every story of the sprint.
func (s *Store) SetSprintStoriesStatus(ctx context.Context, sprintID int64, status string) (int64, error) {
	res, err := s.exec(ctx, `UPDATE stories SET status = ?, updated_at = ? WHERE sprint_id = ?`, status, now(), sprintID)
	if err != nil {
		return 0, fmt.Errorf("set sprint stories status: %w", err)
	}
	return res.RowsAffected()
}

// PlaceStory puts a single story into a column with the given status.
func (s *Store) PlaceStory(ctx context.Context, storyID, columnID int64, status string) error {
	err := s.execAffecting(ctx, `UPDATE stories SET column_id = ?, status = ?, updated_at = ? WHERE id = ?`, columnID, status, now(), storyID)
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("story %d: %w", storyID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("place story: %w", err)
	}
	return nil
}
