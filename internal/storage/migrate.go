package storage

import (
	"context"
	"fmt"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS projects (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        name TEXT NOT NULL UNIQUE,
        description TEXT NOT NULL DEFAULT '',
        color TEXT NOT NULL DEFAULT '#2563eb',
        created_at DATETIME NOT NULL,
        updated_at DATETIME NOT NULL
    );`,
	`CREATE TABLE IF NOT EXISTS epics (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        project_id INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
        name TEXT NOT NULL,
        description TEXT NOT NULL DEFAULT '',
        created_at DATETIME NOT NULL,
        updated_at DATETIME NOT NULL
    );`,
	`CREATE TABLE IF NOT EXISTS boards (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        project_id INTEGER NOT NULL UNIQUE REFERENCES projects(id) ON DELETE CASCADE,
        name TEXT NOT NULL,
        created_at DATETIME NOT NULL
    );`,
	`CREATE TABLE IF NOT EXISTS board_columns (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        board_id INTEGER NOT NULL REFERENCES boards(id) ON DELETE CASCADE,
        name TEXT NOT NULL,
        position INTEGER NOT NULL,
        created_at DATETIME NOT NULL,
        UNIQUE(board_id, position)
    );`,
	`CREATE TABLE IF NOT EXISTS sprints (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        project_id INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
        name TEXT NOT NULL,
        objective TEXT NOT NULL DEFAULT '',
        number INTEGER NOT NULL,
        status TEXT NOT NULL DEFAULT 'pendiente',
        start_date DATETIME NOT NULL,
        end_date DATETIME NOT NULL,
        started_at DATETIME,
        finished_at DATETIME,
        revision INTEGER NOT NULL DEFAULT 0,
        created_at DATETIME NOT NULL,
        updated_at DATETIME NOT NULL,
        UNIQUE(project_id, number)
    );`,
	`CREATE TABLE IF NOT EXISTS stories (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        project_id INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
        epic_id INTEGER NOT NULL REFERENCES epics(id) ON DELETE CASCADE,
        title TEXT NOT NULL,
        description TEXT NOT NULL DEFAULT '',
        points INTEGER NOT NULL DEFAULT 0,
        status TEXT NOT NULL DEFAULT 'pendiente',
        sprint_id INTEGER REFERENCES sprints(id) ON DELETE SET NULL,
        column_id INTEGER REFERENCES board_columns(id) ON DELETE SET NULL,
        created_at DATETIME NOT NULL,
        updated_at DATETIME NOT NULL
    );`,
	`CREATE TABLE IF NOT EXISTS tasks (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        project_id INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
        story_id INTEGER REFERENCES stories(id) ON DELETE SET NULL,
        column_id INTEGER REFERENCES board_columns(id) ON DELETE SET NULL,
        title TEXT NOT NULL,
        description TEXT NOT NULL DEFAULT '',
        status TEXT NOT NULL DEFAULT 'pendiente',
        assignee_id INTEGER,
        position INTEGER NOT NULL DEFAULT 0,
        created_at DATETIME NOT NULL,
        updated_at DATETIME NOT NULL
    );`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS projects (
        id BIGSERIAL PRIMARY KEY,
        name TEXT NOT NULL UNIQUE,
        description TEXT NOT NULL DEFAULT '',
        color TEXT NOT NULL DEFAULT '#2563eb',
        created_at TIMESTAMPTZ NOT NULL,
        updated_at TIMESTAMPTZ NOT NULL
    );`,
	`CREATE TABLE IF NOT EXISTS epics (
        id BIGSERIAL PRIMARY KEY,
        project_id BIGINT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
        name TEXT NOT NULL,
        description TEXT NOT NULL DEFAULT '',
        created_at TIMESTAMPTZ NOT NULL,
        updated_at TIMESTAMPTZ NOT NULL
    );`,
	`CREATE TABLE IF NOT EXISTS boards (
        id BIGSERIAL PRIMARY KEY,
        project_id BIGINT NOT NULL UNIQUE REFERENCES projects(id) ON DELETE CASCADE,
        name TEXT NOT NULL,
        created_at TIMESTAMPTZ NOT NULL
    );`,
	`CREATE TABLE IF NOT EXISTS board_columns (
        id BIGSERIAL PRIMARY KEY,
        board_id BIGINT NOT NULL REFERENCES boards(id) ON DELETE CASCADE,
        name TEXT NOT NULL,
        position BIGINT NOT NULL,
        created_at TIMESTAMPTZ NOT NULL,
        UNIQUE(board_id, position)
    );`,
	`CREATE TABLE IF NOT EXISTS sprints (
        id BIGSERIAL PRIMARY KEY,
        project_id BIGINT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
        name TEXT NOT NULL,
        objective TEXT NOT NULL DEFAULT '',
        number BIGINT NOT NULL,
        status TEXT NOT NULL DEFAULT 'pendiente',
        start_date TIMESTAMPTZ NOT NULL,
        end_date TIMESTAMPTZ NOT NULL,
        started_at TIMESTAMPTZ,
        finished_at TIMESTAMPTZ,
        revision BIGINT NOT NULL DEFAULT 0,
        created_at TIMESTAMPTZ NOT NULL,
        updated_at TIMESTAMPTZ NOT NULL,
        UNIQUE(project_id, number)
    );`,
	`CREATE TABLE IF NOT EXISTS stories (
        id BIGSERIAL PRIMARY KEY,
        project_id BIGINT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
        epic_id BIGINT NOT NULL REFERENCES epics(id) ON DELETE CASCADE,
        title TEXT NOT NULL,
        description TEXT NOT NULL DEFAULT '',
        points BIGINT NOT NULL DEFAULT 0,
        status TEXT NOT NULL DEFAULT 'pendiente',
        sprint_id BIGINT REFERENCES sprints(id) ON DELETE SET NULL,
        column_id BIGINT REFERENCES board_columns(id) ON DELETE SET NULL,
        created_at TIMESTAMPTZ NOT NULL,
        updated_at TIMESTAMPTZ NOT NULL
    );`,
	`CREATE TABLE IF NOT EXISTS tasks (
        id BIGSERIAL PRIMARY KEY,
        project_id BIGINT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
        story_id BIGINT REFERENCES stories(id) ON DELETE SET NULL,
        column_id BIGINT REFERENCES board_columns(id) ON DELETE SET NULL,
        title TEXT NOT NULL,
        description TEXT NOT NULL DEFAULT '',
        status TEXT NOT NULL DEFAULT 'pendiente',
        assignee_id BIGINT,
        position BIGINT NOT NULL DEFAULT 0,
        created_at TIMESTAMPTZ NOT NULL,
        updated_at TIMESTAMPTZ NOT NULL
    );`,
}

var sharedIndexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_epics_project ON epics(project_id);`,
	`CREATE INDEX IF NOT EXISTS idx_sprints_project_status ON sprints(project_id, status);`,
	`CREATE INDEX IF NOT EXISTS idx_stories_project ON stories(project_id);`,
	`CREATE INDEX IF NOT EXISTS idx_stories_sprint ON stories(sprint_id);`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks(project_id);`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_story ON tasks(story_id);`,
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := sqliteSchema
	if s.driver == DriverPostgres {
		stmts = postgresSchema
	}
	stmts = append(append([]string{}, stmts...), sharedIndexes...)

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
