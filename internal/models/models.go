package models

import "time"

// Project groups the epics, stories, sprints and board of one team effort.
type Project struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Color       string    `json:"color"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Epic is a themed group of stories inside a project.
type Epic struct {
	ID          int64     `json:"id"`
	ProjectID   int64     `json:"project_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Story is a backlog item. It joins a sprint explicitly and lands on the
// board only once that sprint starts.
type Story struct {
	ID          int64     `json:"id"`
	ProjectID   int64     `json:"project_id"`
	EpicID      int64     `json:"epic_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Points      int64     `json:"points"`
	Status      string    `json:"status"`
	SprintID    *int64    `json:"sprint_id"`
	ColumnID    *int64    `json:"column_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Sprint is a time-boxed slice of a project's stories.
type Sprint struct {
	ID         int64      `json:"id"`
	ProjectID  int64      `json:"project_id"`
	Name       string     `json:"name"`
	Objective  string     `json:"objective"`
	Number     int64      `json:"number"`
	Status     string     `json:"status"`
	StartDate  time.Time  `json:"start_date"`
	EndDate    time.Time  `json:"end_date"`
	StartedAt  *time.Time `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
	Revision   int64      `json:"revision"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	Stories    []Story    `json:"stories,omitempty"`
}

// Board is the single kanban board of a project.
type Board struct {
	ID        int64     `json:"id"`
	ProjectID int64     `json:"project_id"`
	Name      string    `json:"name"`
	Columns   []Column  `json:"columns,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Column is an ordered lane on a board. The lowest position is the intake
// column and the highest is the done column.
type Column struct {
	ID        int64     `json:"id"`
	BoardID   int64     `json:"board_id"`
	Name      string    `json:"name"`
	Position  int64     `json:"position"`
	CreatedAt time.Time `json:"created_at"`
}

// Task represents a single card in the scrum board.
type Task struct {
	ID          int64     `json:"id"`
	ProjectID   int64     `json:"project_id"`
	StoryID     *int64    `json:"story_id"`
	ColumnID    *int64    `json:"column_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	AssigneeID  *int64    `json:"assignee_id"`
	Position    int64     `json:"position"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Sprint statuses.
const (
	SprintPending    = "pendiente"
	SprintInProgress = "en progreso"
	SprintCompleted  = "completado"
	SprintCancelled  = "cancelado"
)

// Story and task statuses.
const (
	StoryPending    = "pendiente"
	StoryInProgress = "en progreso"
	StoryInReview   = "en revisión"
	StoryDone       = "completada"
)

// ValidStoryStatuses enumerates the statuses a story or task may hold.
var ValidStoryStatuses = map[string]struct{}{
	StoryPending:    {},
	StoryInProgress: {},
	StoryInReview:   {},
	StoryDone:       {},
}

// DefaultColumns seeds the board of a new project when no columns are configured.
var DefaultColumns = []string{"Pendiente", "En progreso", "Completado"}
