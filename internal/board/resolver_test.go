package board

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sprintboard/internal/apperr"
	"sprintboard/internal/models"
	"sprintboard/internal/projectlock"
	"sprintboard/internal/storage"
)

type fixture struct {
	store    *storage.Store
	resolver *Resolver
	project  models.Project
	board    models.Board
	story    models.Story
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store, err := storage.Open(ctx, storage.Options{
		Driver: storage.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "board.db"),
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	project, err := store.CreateProject(ctx, "Vega", "", "")
	require.NoError(t, err)
	epic, err := store.CreateEpic(ctx, project.ID, "Search", "")
	require.NoError(t, err)
	story, err := store.CreateStory(ctx, models.Story{ProjectID: project.ID, EpicID: epic.ID, Title: "Index catalog"})
	require.NoError(t, err)

	now := time.Now().UTC()
	sp, err := store.CreateSprint(ctx, models.Sprint{
		ProjectID: project.ID,
		Name:      "Sprint 1",
		Number:    1,
		Status:    models.SprintPending,
		StartDate: now,
		EndDate:   now.AddDate(0, 0, 14),
	})
	require.NoError(t, err)
	_, err = store.AssignStoriesToSprint(ctx, project.ID, sp.ID, []int64{story.ID})
	require.NoError(t, err)

	r := NewResolver(store, nil)
	board, err := r.Board(ctx, project.ID)
	require.NoError(t, err)
	require.Len(t, board.Columns, len(models.DefaultColumns))

	story, err = store.GetStory(ctx, story.ID)
	require.NoError(t, err)
	return &fixture{store: store, resolver: r, project: project, board: board, story: story}
}

func (f *fixture) task(t *testing.T, storyID *int64) models.Task {
	t.Helper()
	task, err := f.store.CreateTask(context.Background(), models.Task{
		ProjectID: f.project.ID,
		StoryID:   storyID,
		Title:     "write indexer",
	})
	require.NoError(t, err)
	return task
}

func requireKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, apperr.KindOf(err), "unexpected error: %v", err)
}

func TestMoveStoryDerivesStatusFromColumnOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.task(t, &f.story.ID)

	cases := []struct {
		column models.Column
		want   string
	}{
		{f.board.Columns[1], models.StoryInProgress},
		{f.board.Columns[2], models.StoryDone},
		{f.board.Columns[0], models.StoryPending},
	}
	for _, tc := range cases {
		moved, err := f.resolver.MoveStory(ctx, f.story.ID, tc.column.ID)
		require.NoError(t, err)
		require.NotNil(t, moved.ColumnID)
		assert.Equal(t, tc.column.ID, *moved.ColumnID)
		assert.Equal(t, tc.want, moved.Status, "column %q", tc.column.Name)

		cascaded, err := f.store.GetTask(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, tc.want, cascaded.Status)
	}
}

func TestMoveStoryIgnoresColumnLabels(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.resolver.RenameColumn(ctx, f.board.Columns[0].ID, "Completado")
	require.NoError(t, err)
	_, err = f.resolver.RenameColumn(ctx, f.board.Columns[2].ID, "Backlog")
	require.NoError(t, err)

	moved, err := f.resolver.MoveStory(ctx, f.story.ID, f.board.Columns[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.StoryPending, moved.Status)

	moved, err = f.resolver.MoveStory(ctx, f.story.ID, f.board.Columns[2].ID)
	require.NoError(t, err)
	assert.Equal(t, models.StoryDone, moved.Status)
}

func TestAddedColumnBecomesDoneColumn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	col, err := f.resolver.AddColumn(ctx, f.project.ID, "Released")
	require.NoError(t, err)
	assert.Equal(t, int64(len(models.DefaultColumns)+1), col.Position)

	moved, err := f.resolver.MoveStory(ctx, f.story.ID, f.board.Columns[2].ID)
	require.NoError(t, err)
	assert.Equal(t, models.StoryInProgress, moved.Status)

	moved, err = f.resolver.MoveStory(ctx, f.story.ID, col.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StoryDone, moved.Status)

	_, err = f.resolver.AddColumn(ctx, f.project.ID, "  ")
	requireKind(t, err, apperr.Validation)
	_, err = f.resolver.AddColumn(ctx, 404, "QA")
	requireKind(t, err, apperr.NotFound)
}

func TestMoveStoryRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.resolver.MoveStory(ctx, 404, f.board.Columns[0].ID)
	requireKind(t, err, apperr.NotFound)

	_, err = f.resolver.MoveStory(ctx, f.story.ID, 404)
	requireKind(t, err, apperr.NotFound)

	backlog, err := f.store.CreateStory(ctx, models.Story{ProjectID: f.project.ID, EpicID: f.story.EpicID, Title: "Loose"})
	require.NoError(t, err)
	_, err = f.resolver.MoveStory(ctx, backlog.ID, f.board.Columns[1].ID)
	requireKind(t, err, apperr.InvalidOperation)

	other, err := f.store.CreateProject(ctx, "Other", "", "")
	require.NoError(t, err)
	otherBoard, err := f.resolver.Board(ctx, other.ID)
	require.NoError(t, err)
	_, err = f.resolver.MoveStory(ctx, f.story.ID, otherBoard.Columns[0].ID)
	requireKind(t, err, apperr.InvalidOperation)

	unchanged, err := f.store.GetStory(ctx, f.story.ID)
	require.NoError(t, err)
	assert.Nil(t, unchanged.ColumnID)
}

func TestMoveTaskKeepsStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.task(t, nil)

	moved, err := f.resolver.MoveTask(ctx, task.ID, f.board.Columns[2].ID)
	require.NoError(t, err)
	require.NotNil(t, moved.ColumnID)
	assert.Equal(t, f.board.Columns[2].ID, *moved.ColumnID)
	assert.Equal(t, task.Status, moved.Status)

	_, err = f.resolver.MoveTask(ctx, 404, f.board.Columns[0].ID)
	requireKind(t, err, apperr.NotFound)
	_, err = f.resolver.MoveTask(ctx, task.ID, 404)
	requireKind(t, err, apperr.NotFound)

	other, err := f.store.CreateProject(ctx, "Other", "", "")
	require.NoError(t, err)
	otherBoard, err := f.resolver.Board(ctx, other.ID)
	require.NoError(t, err)
	_, err = f.resolver.MoveTask(ctx, task.ID, otherBoard.Columns[0].ID)
	requireKind(t, err, apperr.InvalidOperation)
}

func TestRenameColumnUnknown(t *testing.T) {
	f := newFixture(t)

	_, err := f.resolver.RenameColumn(context.Background(), 404, "QA")
	requireKind(t, err, apperr.NotFound)

	_, err = f.resolver.RenameColumn(context.Background(), f.board.Columns[0].ID, "")
	requireKind(t, err, apperr.Validation)
}

func TestMoveStoryWaitsForProjectLock(t *testing.T) {
	f := newFixture(t)
	locks := projectlock.New()
	r := NewResolver(f.store, nil, WithLocks(locks))
	done := f.board.Columns[len(f.board.Columns)-1]

	unlock := locks.Lock(f.project.ID)
	type result struct {
		story models.Story
		err   error
	}
	moved := make(chan result, 1)
	go func() {
		story, err := r.MoveStory(context.Background(), f.story.ID, done.ID)
		moved <- result{story, err}
	}()

	select {
	case <-moved:
		t.Fatal("story moved while the project was locked")
	case <-time.After(50 * time.Millisecond):
	}
	stored, err := f.store.GetStory(context.Background(), f.story.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.ColumnID)

	unlock()
	res := <-moved
	require.NoError(t, res.err)
	assert.Equal(t, models.StoryDone, res.story.Status)
	assert.Zero(t, locks.Len())
}
