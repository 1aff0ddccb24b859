package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sprintboard/internal/apperr"
	"sprintboard/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), Options{
		Driver: DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "sprintboard.db"),
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedProject(t *testing.T, s *Store) (models.Project, models.Epic) {
	t.Helper()
	ctx := context.Background()
	p, err := s.CreateProject(ctx, "Apollo", "", "")
	require.NoError(t, err)
	e, err := s.CreateEpic(ctx, p.ID, "Onboarding", "")
	require.NoError(t, err)
	return p, e
}

func TestRebind(t *testing.T) {
	pg := &Store{driver: DriverPostgres}
	lite := &Store{driver: DriverSQLite}
	q := `UPDATE stories SET sprint_id = ? WHERE project_id = ? AND id IN (?, ?)`

	assert.Equal(t, `UPDATE stories SET sprint_id = $1 WHERE project_id = $2 AND id IN ($3, $4)`, pg.rebind(q))
	assert.Equal(t, q, lite.rebind(q))
	assert.Equal(t, "(?, ?, ?)", inClause(3))
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Options{Driver: "oracle", DSN: "x"}, nil)
	assert.ErrorIs(t, err, ErrUnsupportedDriver)

	_, err = OpenWithRetry(context.Background(), Options{Driver: "oracle", DSN: "x"}, nil, time.Second)
	assert.ErrorIs(t, err, ErrUnsupportedDriver)
}

func TestCreateProjectSeedsBoard(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p, _ := seedProject(t, s)
	board, err := s.BoardByProject(ctx, p.ID)
	require.NoError(t, err)

	var names []string
	for _, c := range board.Columns {
		names = append(names, c.Name)
	}
	if diff := cmp.Diff(models.DefaultColumns, names); diff != "" {
		t.Fatalf("default columns mismatch (-want +got):\n%s", diff)
	}

	intake, err := s.IntakeColumn(ctx, board.ID)
	require.NoError(t, err)
	done, err := s.DoneColumn(ctx, board.ID)
	require.NoError(t, err)
	assert.Equal(t, board.Columns[0].ID, intake.ID)
	assert.Equal(t, board.Columns[len(board.Columns)-1].ID, done.ID)

	extra, err := s.CreateColumn(ctx, board.ID, "Archivado")
	require.NoError(t, err)
	done, err = s.DoneColumn(ctx, board.ID)
	require.NoError(t, err)
	assert.Equal(t, extra.ID, done.ID)
}

func TestProjectNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetProject(ctx, 99)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeleteProject(ctx, 99), ErrNotFound)

	_, err = s.CreateProject(ctx, "  ", "", "")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestSprintNumbering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p, _ := seedProject(t, s)

	n, err := s.NextSprintNumber(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	_, err = s.CreateSprint(ctx, models.Sprint{ProjectID: p.ID, Name: "S1", Number: 1, StartDate: start, EndDate: start.AddDate(0, 0, 14)})
	require.NoError(t, err)

	n, err = s.NextSprintNumber(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = s.CreateSprint(ctx, models.Sprint{ProjectID: p.ID, Name: "dup", Number: 1, StartDate: start, EndDate: start})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestTransitionSprintChecksRevision(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p, _ := seedProject(t, s)

	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	sp, err := s.CreateSprint(ctx, models.Sprint{ProjectID: p.ID, Name: "S1", Number: 1, StartDate: start, EndDate: start})
	require.NoError(t, err)
	assert.Equal(t, models.SprintPending, sp.Status)

	startedAt := time.Now().UTC()
	updated, err := s.TransitionSprint(ctx, sp.ID, sp.Revision, models.SprintInProgress, &startedAt, nil)
	require.NoError(t, err)
	assert.Equal(t, models.SprintInProgress, updated.Status)
	assert.Equal(t, sp.Revision+1, updated.Revision)
	require.NotNil(t, updated.StartedAt)
	assert.Nil(t, updated.FinishedAt)

	_, err = s.TransitionSprint(ctx, sp.ID, sp.Revision, models.SprintCancelled, &startedAt, nil)
	assert.ErrorIs(t, err, ErrStale)

	_, err = s.TransitionSprint(ctx, 404, 0, models.SprintCancelled, nil, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAssignAndUnassignStories(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p, e := seedProject(t, s)

	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	sp, err := s.CreateSprint(ctx, models.Sprint{ProjectID: p.ID, Name: "S1", Number: 1, StartDate: start, EndDate: start})
	require.NoError(t, err)

	a, err := s.CreateStory(ctx, models.Story{ProjectID: p.ID, EpicID: e.ID, Title: "login"})
	require.NoError(t, err)
	b, err := s.CreateStory(ctx, models.Story{ProjectID: p.ID, EpicID: e.ID, Title: "logout"})
	require.NoError(t, err)
	assert.Equal(t, models.StoryPending, a.Status)
	assert.Nil(t, a.SprintID)

	n, err := s.AssignStoriesToSprint(ctx, p.ID, sp.ID, []int64{a.ID, b.ID, 999})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	count, err := s.CountSprintStories(ctx, sp.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	n, err = s.UnassignStoriesFromSprint(ctx, sp.ID, []int64{a.ID, 999})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	backlog, err := s.ListBacklog(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, backlog, 1)
	assert.Equal(t, a.ID, backlog[0].ID)
}

func TestStoryTaskCascade(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p, e := seedProject(t, s)

	st, err := s.CreateStory(ctx, models.Story{ProjectID: p.ID, EpicID: e.ID, Title: "export"})
	require.NoError(t, err)
	_, err = s.CreateTask(ctx, models.Task{ProjectID: p.ID, StoryID: &st.ID, Title: "csv"})
	require.NoError(t, err)
	_, err = s.CreateTask(ctx, models.Task{ProjectID: p.ID, StoryID: &st.ID, Title: "pdf"})
	require.NoError(t, err)

	n, err := s.SetStoryTasksStatus(ctx, st.ID, models.StoryInProgress)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	tasks, err := s.TasksByStory(ctx, st.ID)
	require.NoError(t, err)
	for _, task := range tasks {
		assert.Equal(t, models.StoryInProgress, task.Status)
	}
}

func TestUpdateTaskAssignee(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p, _ := seedProject(t, s)

	task, err := s.CreateTask(ctx, models.Task{ProjectID: p.ID, Title: "deploy"})
	require.NoError(t, err)
	assert.Nil(t, task.AssigneeID)

	task, err = s.UpdateTask(ctx, task.ID, TaskChanges{Assignee: &models.UserRef{ID: 7, Valid: true}})
	require.NoError(t, err)
	require.NotNil(t, task.AssigneeID)
	assert.Equal(t, int64(7), *task.AssigneeID)

	_, err = s.UpdateTask(ctx, task.ID, TaskChanges{Status: ptr("bloqueada")})
	assert.ErrorIs(t, err, ErrInvalid)
}

func ptr[T any](v T) *T { return &v }

func TestTranslate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.GetSprint(ctx, 12)
	translated := Translate(err, "sprint %d", 12)
	assert.True(t, apperr.Is(translated, apperr.NotFound))
	assert.Equal(t, "sprint 12 not found", apperr.Message(translated))

	_, err = s.CreateProject(ctx, "", "", "")
	translated = Translate(err, "project")
	assert.True(t, apperr.Is(translated, apperr.Validation))
	assert.Equal(t, "project name must not be empty", apperr.Message(translated))

	assert.Nil(t, Translate(nil, "project"))
}
