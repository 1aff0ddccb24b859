package sprint

import (
	"context"
	"errors"

	"sprintboard/internal/apperr"
	"sprintboard/internal/models"
	"sprintboard/internal/storage"
)

// Check is the answer to a can-start or can-finish pre-flight.
type Check struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
	Code    string `json:"code,omitempty"`
}

// transitions lists the status changes the lifecycle permits.
var transitions = map[string][]string{
	models.SprintPending:    {models.SprintInProgress, models.SprintCancelled},
	models.SprintInProgress: {models.SprintCompleted, models.SprintCancelled},
}

// checkTransition fails with InvalidTransition unless from -> to is permitted.
func checkTransition(from, to string) error {
	for _, next := range transitions[from] {
		if next == to {
			return nil
		}
	}
	return apperr.New(apperr.InvalidTransition, "a sprint cannot go from %s to %s", from, to)
}

// startPlan is what a successful start precondition chain resolves.
type startPlan struct {
	sprint models.Sprint
	intake models.Column
}

// finishPlan is what a successful finish precondition chain resolves.
type finishPlan struct {
	sprint models.Sprint
	done   models.Column
}

// planStart evaluates the start preconditions in order; the first failure wins.
func (m *Manager) planStart(ctx context.Context, id int64) (startPlan, error) {
	sp, err := m.store.GetSprint(ctx, id)
	if err != nil {
		return startPlan{}, storage.Translate(err, "sprint %d", id)
	}
	if sp.Status != models.SprintPending {
		return startPlan{}, apperr.New(apperr.InvalidOperation, "sprint is already %s", sp.Status)
	}

	running, found, err := m.store.InProgressSprint(ctx, sp.ProjectID, sp.ID)
	if err != nil {
		return startPlan{}, err
	}
	if found {
		return startPlan{}, apperr.New(apperr.Conflict,
			"sprint %d (%s) is already in progress in this project", running.Number, running.Name)
	}

	earlier, found, err := m.store.EarlierPendingSprint(ctx, sp.ProjectID, sp.Number)
	if err != nil {
		return startPlan{}, err
	}
	if found {
		return startPlan{}, apperr.New(apperr.OrderViolation,
			"sprint %d (%s) is still pending and must be started or cancelled first", earlier.Number, earlier.Name)
	}

	scoped, err := m.store.CountSprintStories(ctx, sp.ID)
	if err != nil {
		return startPlan{}, err
	}
	if scoped == 0 {
		return startPlan{}, apperr.New(apperr.EmptyScope, "sprint has no stories assigned")
	}

	board, err := m.store.BoardByProject(ctx, sp.ProjectID)
	if err != nil {
		return startPlan{}, storage.Translate(err, "board of project %d", sp.ProjectID)
	}
	intake, err := m.store.IntakeColumn(ctx, board.ID)
	if err != nil {
		return startPlan{}, storage.Translate(err, "first column of board %d", board.ID)
	}
	return startPlan{sprint: sp, intake: intake}, nil
}

// planFinish evaluates the finish preconditions in order; the first failure wins.
func (m *Manager) planFinish(ctx context.Context, id int64) (finishPlan, error) {
	sp, err := m.store.GetSprint(ctx, id)
	if err != nil {
		return finishPlan{}, storage.Translate(err, "sprint %d", id)
	}
	if sp.Status != models.SprintInProgress {
		return finishPlan{}, apperr.New(apperr.InvalidOperation, "only a sprint in progress can be finished; sprint is %s", sp.Status)
	}

	board, err := m.store.BoardByProject(ctx, sp.ProjectID)
	if err != nil {
		return finishPlan{}, storage.Translate(err, "board of project %d", sp.ProjectID)
	}
	done, err := m.store.DoneColumn(ctx, board.ID)
	if err != nil {
		return finishPlan{}, storage.Translate(err, "last column of board %d", board.ID)
	}

	pending, err := m.store.CountSprintStoriesOutside(ctx, sp.ID, done.ID)
	if err != nil {
		return finishPlan{}, err
	}
	if pending > 0 {
		return finishPlan{}, apperr.New(apperr.IncompleteWork,
			"%d stories are not in column %q yet", pending, done.Name)
	}
	return finishPlan{sprint: sp, done: done}, nil
}

// lockSprintProject resolves the sprint's project and locks it.
func (m *Manager) lockSprintProject(ctx context.Context, id int64) (func(), error) {
	sp, err := m.store.GetSprint(ctx, id)
	if err != nil {
		return nil, storage.Translate(err, "sprint %d", id)
	}
	return m.locks.Lock(sp.ProjectID), nil
}

// Start moves a pending sprint into progress and puts its stories into the
// board's intake column as pending.
func (m *Manager) Start(ctx context.Context, id int64) (sp models.Sprint, err error) {
	ctx, span := m.span(ctx, "start", id)
	defer func() { endSpan(span, err) }()

	unlock, err := m.lockSprintProject(ctx, id)
	if err != nil {
		return models.Sprint{}, err
	}
	defer unlock()

	plan, err := m.planStart(ctx, id)
	if err != nil {
		return models.Sprint{}, err
	}

	startedAt := m.now()
	sp, err = m.store.TransitionSprint(ctx, id, plan.sprint.Revision, models.SprintInProgress, &startedAt, nil)
	if err != nil {
		return models.Sprint{}, storage.Translate(err, "sprint %d", id)
	}
	m.recordTransition(ctx, sp, plan.sprint.Status)

	if _, err := m.store.PlaceSprintStories(ctx, id, plan.intake.ID, models.StoryPending); err != nil {
		return models.Sprint{}, err
	}
	return m.withStories(ctx, sp)
}

// Finish completes a sprint whose stories all sit in the done column and
// marks those stories completed.
func (m *Manager) Finish(ctx context.Context, id int64) (sp models.Sprint, err error) {
	ctx, span := m.span(ctx, "finish", id)
	defer func() { endSpan(span, err) }()

	unlock, err := m.lockSprintProject(ctx, id)
	if err != nil {
		return models.Sprint{}, err
	}
	defer unlock()

	plan, err := m.planFinish(ctx, id)
	if err != nil {
		return models.Sprint{}, err
	}

	finishedAt := m.now()
	sp, err = m.store.TransitionSprint(ctx, id, plan.sprint.Revision, models.SprintCompleted, plan.sprint.StartedAt, &finishedAt)
	if err != nil {
		return models.Sprint{}, storage.Translate(err, "sprint %d", id)
	}
	m.recordTransition(ctx, sp, plan.sprint.Status)

	if _, err := m.store.SetSprintStoriesStatus(ctx, id, models.StoryDone); err != nil {
		return models.Sprint{}, err
	}
	return m.withStories(ctx, sp)
}

// Cancel cancels a pending or running sprint. Stories of a running sprint
// leave the board but stay scoped to the sprint.
func (m *Manager) Cancel(ctx context.Context, id int64) (sp models.Sprint, err error) {
	ctx, span := m.span(ctx, "cancel", id)
	defer func() { endSpan(span, err) }()

	unlock, err := m.lockSprintProject(ctx, id)
	if err != nil {
		return models.Sprint{}, err
	}
	defer unlock()

	current, err := m.store.GetSprint(ctx, id)
	if err != nil {
		return models.Sprint{}, storage.Translate(err, "sprint %d", id)
	}
	if current.Status != models.SprintPending && current.Status != models.SprintInProgress {
		return models.Sprint{}, apperr.New(apperr.InvalidOperation, "sprint is already %s", current.Status)
	}

	sp, err = m.store.TransitionSprint(ctx, id, current.Revision, models.SprintCancelled, current.StartedAt, nil)
	if err != nil {
		return models.Sprint{}, storage.Translate(err, "sprint %d", id)
	}
	m.recordTransition(ctx, sp, current.Status)

	if current.Status == models.SprintInProgress {
		if _, err := m.store.ClearSprintStoryColumns(ctx, id); err != nil {
			return models.Sprint{}, err
		}
	}
	return m.withStories(ctx, sp)
}

// CanStart reports whether Start would currently succeed. It never writes.
func (m *Manager) CanStart(ctx context.Context, id int64) (Check, error) {
	if _, err := m.store.GetSprint(ctx, id); err != nil {
		return Check{}, storage.Translate(err, "sprint %d", id)
	}
	_, err := m.planStart(ctx, id)
	return toCheck(err, "sprint can be started")
}

// CanFinish reports whether Finish would currently succeed. It never writes.
func (m *Manager) CanFinish(ctx context.Context, id int64) (Check, error) {
	if _, err := m.store.GetSprint(ctx, id); err != nil {
		return Check{}, storage.Translate(err, "sprint %d", id)
	}
	_, err := m.planFinish(ctx, id)
	return toCheck(err, "sprint can be finished")
}

// toCheck turns a failed precondition into a negative answer. Store
// failures stay errors.
func toCheck(err error, okReason string) (Check, error) {
	if err == nil {
		return Check{Allowed: true, Reason: okReason}, nil
	}
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind == apperr.Internal {
		return Check{}, err
	}
	return Check{Allowed: false, Reason: appErr.Message, Code: appErr.Kind.String()}, nil
}
