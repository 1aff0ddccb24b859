package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"sprintboard/internal/models"
)

const sprintColumns = `id, project_id, name, objective, number, status, start_date, end_date, started_at, finished_at, revision, created_at, updated_at`

// SprintChanges lists the optional descriptive fields of a sprint update.
type SprintChanges struct {
	Name      *string
	Objective *string
	StartDate *time.Time
	EndDate   *time.Time
}

func scanSprint(row interface{ Scan(...any) error }) (models.Sprint, error) {
	var (
		sp         models.Sprint
		startedAt  sql.NullTime
		finishedAt sql.NullTime
	)
	err := row.Scan(&sp.ID, &sp.ProjectID, &sp.Name, &sp.Objective, &sp.Number, &sp.Status, &sp.StartDate, &sp.EndDate,
		&startedAt, &finishedAt, &sp.Revision, &sp.CreatedAt, &sp.UpdatedAt)
	sp.StartedAt = fromNullTime(startedAt)
	sp.FinishedAt = fromNullTime(finishedAt)
	return sp, err
}

func (s *Store) findSprint(ctx context.Context, query string, args ...any) (models.Sprint, bool, error) {
	sp, err := scanSprint(s.queryRow(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Sprint{}, false, nil
	}
	if err != nil {
		return models.Sprint{}, false, fmt.Errorf("find sprint: %w", err)
	}
	return sp, true, nil
}

// ListSprints returns the sprints of a project ordered by number.
func (s *Store) ListSprints(ctx context.Context, projectID int64) ([]models.Sprint, error) {
	rows, err := s.query(ctx, `SELECT `+sprintColumns+` FROM sprints WHERE project_id = ? ORDER BY number ASC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list sprints: %w", err)
	}
	defer rows.Close()

	sprints := []models.Sprint{}
	for rows.Next() {
		sp, err := scanSprint(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sprint: %w", err)
		}
		sprints = append(sprints, sp)
	}
	return sprints, rows.Err()
}

// NextSprintNumber returns the highest sprint number of the project plus one,
// or 1 for a project without sprints.
func (s *Store) NextSprintNumber(ctx context.Context, projectID int64) (int64, error) {
	var number sql.NullInt64
	if err := s.queryRow(ctx, `SELECT MAX(number) FROM sprints WHERE project_id = ?`, projectID).Scan(&number); err != nil {
		return 0, fmt.Errorf("select sprint number: %w", err)
	}
	if number.Valid {
		return number.Int64 + 1, nil
	}
	return 1, nil
}

// CreateSprint inserts a pending sprint. The caller picks the number.
func (s *Store) CreateSprint(ctx context.Context, sp models.Sprint) (models.Sprint, error) {
	sp.Name = strings.TrimSpace(sp.Name)
	if sp.Name == "" {
		return models.Sprint{}, fmt.Errorf("%w: sprint name must not be empty", ErrInvalid)
	}
	if sp.Status == "" {
		sp.Status = models.SprintPending
	}

	ts := now()
	id, err := s.insert(ctx, `INSERT INTO sprints(project_id, name, objective, number, status, start_date, end_date, revision, created_at, updated_at)
        VALUES(?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		sp.ProjectID, sp.Name, strings.TrimSpace(sp.Objective), sp.Number, sp.Status, sp.StartDate.UTC(), sp.EndDate.UTC(), ts, ts)
	if err != nil {
		return models.Sprint{}, fmt.Errorf("insert sprint: %w", err)
	}
	return s.GetSprint(ctx, id)
}

// GetSprint retrieves a sprint by id.
func (s *Store) GetSprint(ctx context.Context, id int64) (models.Sprint, error) {
	sp, ok, err := s.findSprint(ctx, `SELECT `+sprintColumns+` FROM sprints WHERE id = ?`, id)
	if err != nil {
		return models.Sprint{}, err
	}
	if !ok {
		return models.Sprint{}, fmt.Errorf("sprint %d: %w", id, ErrNotFound)
	}
	return sp, nil
}

// UpdateSprintDetails applies the non-nil descriptive fields. The status is
// never touched here.
func (s *Store) UpdateSprintDetails(ctx context.Context, id int64, changes SprintChanges) (models.Sprint, error) {
	current, err := s.GetSprint(ctx, id)
	if err != nil {
		return models.Sprint{}, err
	}
	if changes.Name != nil && strings.TrimSpace(*changes.Name) != "" {
		current.Name = strings.TrimSpace(*changes.Name)
	}
	if changes.Objective != nil {
		current.Objective = strings.TrimSpace(*changes.Objective)
	}
	if changes.StartDate != nil {
		current.StartDate = changes.StartDate.UTC()
	}
	if changes.EndDate != nil {
		current.EndDate = changes.EndDate.UTC()
	}

	_, err = s.exec(ctx, `UPDATE sprints SET name = ?, objective = ?, start_date = ?, end_date = ?, updated_at = ? WHERE id = ?`,
		current.Name, current.Objective, current.StartDate, current.EndDate, now(), id)
	if err != nil {
		return models.Sprint{}, fmt.Errorf("update sprint: %w", err)
	}
	return s.GetSprint(ctx, id)
}

// TransitionSprint writes a new status and actual timestamps if the sprint
// still carries expectedRevision, bumping the revision. A concurrent write
// in between yields ErrStale.
func (s *Store) TransitionSprint(ctx context.Context, id, expectedRevision int64, status string, startedAt, finishedAt *time.Time) (models.Sprint, error) {
	res, err := s.exec(ctx, `UPDATE sprints SET status = ?, started_at = ?, finished_at = ?, revision = revision + 1, updated_at = ?
        WHERE id = ? AND revision = ?`,
		status, nullableTime(startedAt), nullableTime(finishedAt), now(), id, expectedRevision)
	if err != nil {
		return models.Sprint{}, fmt.Errorf("transition sprint: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return models.Sprint{}, err
	}
	if affected == 0 {
		if _, err := s.GetSprint(ctx, id); err != nil {
			return models.Sprint{}, err
		}
		return models.Sprint{}, fmt.Errorf("sprint %d: %w", id, ErrStale)
	}
	return s.GetSprint(ctx, id)
}

// InProgressSprint returns a sprint of the project other than excludeID that
// is currently in progress.
func (s *Store) InProgressSprint(ctx context.Context, projectID, excludeID int64) (models.Sprint, bool, error) {
	return s.findSprint(ctx, `SELECT `+sprintColumns+` FROM sprints WHERE project_id = ? AND status = ? AND id <> ? ORDER BY number LIMIT 1`,
		projectID, models.SprintInProgress, excludeID)
}

// EarlierPendingSprint returns the lowest-numbered pending sprint of the
// project whose number is below number.
func (s *Store) EarlierPendingSprint(ctx context.Context, projectID, number int64) (models.Sprint, bool, error) {
	return s.findSprint(ctx, `SELECT `+sprintColumns+` FROM sprints WHERE project_id = ? AND status = ? AND number < ? ORDER BY number LIMIT 1`,
		projectID, models.SprintPending, number)
}

// DeleteSprint removes a sprint by id.
func (s *Store) DeleteSprint(ctx context.Context, id int64) error {
	err := s.execAffecting(ctx, `DELETE FROM sprints WHERE id = ?`, id)
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("sprint %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("delete sprint: %w", err)
	}
	return nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
