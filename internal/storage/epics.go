package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"sprintboard/internal/models"
)

const epicColumns = `id, project_id, name, description, created_at, updated_at`

func scanEpic(row interface{ Scan(...any) error }) (models.Epic, error) {
	var e models.Epic
	err := row.Scan(&e.ID, &e.ProjectID, &e.Name, &e.Description, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

// ListEpics returns the epics of a project in creation order.
func (s *Store) ListEpics(ctx context.Context, projectID int64) ([]models.Epic, error) {
	rows, err := s.query(ctx, `SELECT `+epicColumns+` FROM epics WHERE project_id = ? ORDER BY id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list epics: %w", err)
	}
	defer rows.Close()

	epics := []models.Epic{}
	for rows.Next() {
		e, err := scanEpic(rows)
		if err != nil {
			return nil, fmt.Errorf("scan epic: %w", err)
		}
		epics = append(epics, e)
	}
	return epics, rows.Err()
}

// CreateEpic inserts an epic into an existing project.
func (s *Store) CreateEpic(ctx context.Context, projectID int64, name, description string) (models.Epic, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Epic{}, fmt.Errorf("%w: epic name must not be empty", ErrInvalid)
	}
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return models.Epic{}, err
	}

	ts := now()
	id, err := s.insert(ctx, `INSERT INTO epics(project_id, name, description, created_at, updated_at) VALUES(?, ?, ?, ?, ?)`,
		projectID, name, strings.TrimSpace(description), ts, ts)
	if err != nil {
		return models.Epic{}, fmt.Errorf("insert epic: %w", err)
	}
	return s.GetEpic(ctx, id)
}

// GetEpic fetches a single epic by id.
func (s *Store) GetEpic(ctx context.Context, id int64) (models.Epic, error) {
	e, err := scanEpic(s.queryRow(ctx, `SELECT `+epicColumns+` FROM epics WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Epic{}, fmt.Errorf("epic %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.Epic{}, fmt.Errorf("get epic: %w", err)
	}
	return e, nil
}
