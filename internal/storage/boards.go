package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"sprintboard/internal/models"
)

const columnColumns = `id, board_id, name, position, created_at`

func scanColumn(row interface{ Scan(...any) error }) (models.Column, error) {
	var c models.Column
	err := row.Scan(&c.ID, &c.BoardID, &c.Name, &c.Position, &c.CreatedAt)
	return c, err
}

func (s *Store) getBoard(ctx context.Context, where string, arg int64) (models.Board, error) {
	var b models.Board
	err := s.queryRow(ctx, `SELECT id, project_id, name, created_at FROM boards WHERE `+where, arg).
		Scan(&b.ID, &b.ProjectID, &b.Name, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Board{}, ErrNotFound
	}
	if err != nil {
		return models.Board{}, fmt.Errorf("get board: %w", err)
	}
	return b, nil
}

// GetBoard fetches a board by id without its columns.
func (s *Store) GetBoard(ctx context.Context, id int64) (models.Board, error) {
	b, err := s.getBoard(ctx, `id = ?`, id)
	if errors.Is(err, ErrNotFound) {
		return models.Board{}, fmt.Errorf("board %d: %w", id, ErrNotFound)
	}
	return b, err
}

// BoardByProject fetches the board of a project with its columns in order.
func (s *Store) BoardByProject(ctx context.Context, projectID int64) (models.Board, error) {
	b, err := s.getBoard(ctx, `project_id = ?`, projectID)
	if errors.Is(err, ErrNotFound) {
		return models.Board{}, fmt.Errorf("board of project %d: %w", projectID, ErrNotFound)
	}
	if err != nil {
		return models.Board{}, err
	}
	b.Columns, err = s.ListColumns(ctx, b.ID)
	if err != nil {
		return models.Board{}, err
	}
	return b, nil
}

// ListColumns returns the columns of a board by ascending position.
func (s *Store) ListColumns(ctx context.Context, boardID int64) ([]models.Column, error) {
	rows, err := s.query(ctx, `SELECT `+columnColumns+` FROM board_columns WHERE board_id = ? ORDER BY position ASC`, boardID)
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	defer rows.Close()

	columns := []models.Column{}
	for rows.Next() {
		c, err := scanColumn(rows)
		if err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		columns = append(columns, c)
	}
	return columns, rows.Err()
}

// GetColumn fetches a column by id.
func (s *Store) GetColumn(ctx context.Context, id int64) (models.Column, error) {
	c, err := scanColumn(s.queryRow(ctx, `SELECT `+columnColumns+` FROM board_columns WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Column{}, fmt.Errorf("column %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.Column{}, fmt.Errorf("get column: %w", err)
	}
	return c, nil
}

// IntakeColumn returns the lowest-positioned column of a board.
func (s *Store) IntakeColumn(ctx context.Context, boardID int64) (models.Column, error) {
	return s.edgeColumn(ctx, boardID, "ASC")
}

// DoneColumn returns the highest-positioned column of a board.
func (s *Store) DoneColumn(ctx context.Context, boardID int64) (models.Column, error) {
	return s.edgeColumn(ctx, boardID, "DESC")
}

func (s *Store) edgeColumn(ctx context.Context, boardID int64, direction string) (models.Column, error) {
	c, err := scanColumn(s.queryRow(ctx, `SELECT `+columnColumns+` FROM board_columns WHERE board_id = ? ORDER BY position `+direction+` LIMIT 1`, boardID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Column{}, fmt.Errorf("columns of board %d: %w", boardID, ErrNotFound)
	}
	if err != nil {
		return models.Column{}, fmt.Errorf("edge column: %w", err)
	}
	return c, nil
}

// CreateColumn appends a column after the last one of the board.
func (s *Store) CreateColumn(ctx context.Context, boardID int64, name string) (models.Column, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Column{}, fmt.Errorf("%w: column name must not be empty", ErrInvalid)
	}
	if _, err := s.GetBoard(ctx, boardID); err != nil {
		return models.Column{}, err
	}

	var position sql.NullInt64
	if err := s.queryRow(ctx, `SELECT MAX(position) FROM board_columns WHERE board_id = ?`, boardID).Scan(&position); err != nil {
		return models.Column{}, fmt.Errorf("select column position: %w", err)
	}
	next := int64(1)
	if position.Valid {
		next = position.Int64 + 1
	}

	id, err := s.insert(ctx, `INSERT INTO board_columns(board_id, name, position, created_at) VALUES(?, ?, ?, ?)`, boardID, name, next, now())
	if err != nil {
		return models.Column{}, fmt.Errorf("insert column: %w", err)
	}
	return s.GetColumn(ctx, id)
}

// RenameColumn changes the display name of a column. Placement rules only
// look at positions, so renaming never changes how stories are classified.
func (s *Store) RenameColumn(ctx context.Context, id int64, name string) (models.Column, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Column{}, fmt.Errorf("%w: column name must not be empty", ErrInvalid)
	}
	err := s.execAffecting(ctx, `UPDATE board_columns SET name = ? WHERE id = ?`, name, id)
	if errors.Is(err, ErrNotFound) {
		return models.Column{}, fmt.Errorf("column %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.Column{}, fmt.Errorf("rename column: %w", err)
	}
	return s.GetColumn(ctx, id)
}
