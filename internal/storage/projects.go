package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"sprintboard/internal/models"
)

const projectColumns = `id, name, description, color, created_at, updated_at`

func scanProject(row interface{ Scan(...any) error }) (models.Project, error) {
	var p models.Project
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Color, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// ListProjects retrieves all projects ordered by creation date.
func (s *Store) ListProjects(ctx context.Context) ([]models.Project, error) {
	rows, err := s.query(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	projects := []models.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// CreateProject persists a new project together with its board and the
// default board columns.
func (s *Store) CreateProject(ctx context.Context, name, description, color string) (models.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Project{}, fmt.Errorf("%w: project name must not be empty", ErrInvalid)
	}
	if color == "" {
		color = randomPaletteColor()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Project{}, fmt.Errorf("begin create project: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	ts := now()
	var projectID int64
	err = tx.QueryRowContext(ctx, s.rebind(`INSERT INTO projects(name, description, color, created_at, updated_at) VALUES(?, ?, ?, ?, ?) RETURNING id`),
		name, strings.TrimSpace(description), color, ts, ts).Scan(&projectID)
	if err != nil {
		return models.Project{}, fmt.Errorf("insert project: %w", classify(err))
	}

	var boardID int64
	err = tx.QueryRowContext(ctx, s.rebind(`INSERT INTO boards(project_id, name, created_at) VALUES(?, ?, ?) RETURNING id`),
		projectID, name, ts).Scan(&boardID)
	if err != nil {
		return models.Project{}, fmt.Errorf("insert board: %w", err)
	}

	for i, col := range s.defaultColumns {
		if _, err := tx.ExecContext(ctx, s.rebind(`INSERT INTO board_columns(board_id, name, position, created_at) VALUES(?, ?, ?, ?)`),
			boardID, col, int64(i+1), ts); err != nil {
			return models.Project{}, fmt.Errorf("insert column %q: %w", col, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return models.Project{}, fmt.Errorf("commit create project: %w", err)
	}
	return s.GetProject(ctx, projectID)
}

// GetProject fetches a single project by id.
func (s *Store) GetProject(ctx context.Context, id int64) (models.Project, error) {
	p, err := scanProject(s.queryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Project{}, fmt.Errorf("project %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.Project{}, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

// UpdateProject renames a project and optionally changes its description or color.
func (s *Store) UpdateProject(ctx context.Context, id int64, name string, description, color *string) (models.Project, error) {
	current, err := s.GetProject(ctx, id)
	if err != nil {
		return models.Project{}, err
	}
	if v := strings.TrimSpace(name); v != "" {
		current.Name = v
	}
	if description != nil {
		current.Description = strings.TrimSpace(*description)
	}
	if color != nil && *color != "" {
		current.Color = *color
	}

	err = s.execAffecting(ctx, `UPDATE projects SET name = ?, description = ?, color = ?, updated_at = ? WHERE id = ?`,
		current.Name, current.Description, current.Color, now(), id)
	if errors.Is(err, ErrNotFound) {
		return models.Project{}, fmt.Errorf("project %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.Project{}, fmt.Errorf("update project: %w", err)
	}
	return s.GetProject(ctx, id)
}

// DeleteProject removes a project along with everything it owns.
func (s *Store) DeleteProject(ctx context.Context, id int64) error {
	err := s.execAffecting(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("project %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return nil
}

func randomPaletteColor() string {
	palette := []string{
		"#2563eb", // blue-600
		"#7c3aed", // violet-600
		"#dc2626", // red-600
		"#059669", // green-600
		"#ea580c", // orange-600
		"#d97706", // amber-600
		"#0ea5e9", // sky-500
	}
	return palette[rand.IntN(len(palette))]
}
