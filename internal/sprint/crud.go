package sprint

import (
	"context"
	"strings"
	"time"

	"sprintboard/internal/apperr"
	"sprintboard/internal/models"
	"sprintboard/internal/storage"
)

// CreateInput carries the fields of a new sprint.
type CreateInput struct {
	ProjectID int64
	Name      string
	Objective string
	StartDate *time.Time
	EndDate   *time.Time
	StoryIDs  []int64
}

// UpdateInput carries optional sprint changes. A nil StoryIDs leaves the
// scope alone; a non-nil one replaces it.
type UpdateInput struct {
	Name      *string
	Objective *string
	StartDate *time.Time
	EndDate   *time.Time
	Status    *string
	StoryIDs  *[]int64
}

// Create numbers and stores a pending sprint, then scopes the selected
// stories to it. Unknown story ids are skipped.
func (m *Manager) Create(ctx context.Context, in CreateInput) (sp models.Sprint, err error) {
	ctx, span := m.span(ctx, "create", 0)
	defer func() { endSpan(span, err) }()

	switch {
	case in.ProjectID <= 0:
		return models.Sprint{}, apperr.New(apperr.Validation, "project is required")
	case strings.TrimSpace(in.Name) == "":
		return models.Sprint{}, apperr.New(apperr.Validation, "name is required")
	case in.StartDate == nil || in.StartDate.IsZero():
		return models.Sprint{}, apperr.New(apperr.Validation, "start date is required")
	case in.EndDate == nil || in.EndDate.IsZero():
		return models.Sprint{}, apperr.New(apperr.Validation, "end date is required")
	case in.EndDate.Before(*in.StartDate):
		return models.Sprint{}, apperr.New(apperr.Validation, "end date must not precede start date")
	}

	if _, err := m.store.GetProject(ctx, in.ProjectID); err != nil {
		return models.Sprint{}, storage.Translate(err, "project %d", in.ProjectID)
	}

	unlock := m.locks.Lock(in.ProjectID)
	defer unlock()

	number, err := m.store.NextSprintNumber(ctx, in.ProjectID)
	if err != nil {
		return models.Sprint{}, err
	}
	sp, err = m.store.CreateSprint(ctx, models.Sprint{
		ProjectID: in.ProjectID,
		Name:      in.Name,
		Objective: in.Objective,
		Number:    number,
		Status:    models.SprintPending,
		StartDate: *in.StartDate,
		EndDate:   *in.EndDate,
	})
	if err != nil {
		return models.Sprint{}, storage.Translate(err, "sprint %d of project %d", number, in.ProjectID)
	}

	if len(in.StoryIDs) > 0 {
		if _, err := m.store.AssignStoriesToSprint(ctx, sp.ProjectID, sp.ID, in.StoryIDs); err != nil {
			return models.Sprint{}, err
		}
	}
	return m.withStories(ctx, sp)
}

// Get returns a sprint with its scoped stories.
func (m *Manager) Get(ctx context.Context, id int64) (models.Sprint, error) {
	sp, err := m.store.GetSprint(ctx, id)
	if err != nil {
		return models.Sprint{}, storage.Translate(err, "sprint %d", id)
	}
	return m.withStories(ctx, sp)
}

// List returns the sprints of a project by number.
func (m *Manager) List(ctx context.Context, projectID int64) ([]models.Sprint, error) {
	if _, err := m.store.GetProject(ctx, projectID); err != nil {
		return nil, storage.Translate(err, "project %d", projectID)
	}
	return m.store.ListSprints(ctx, projectID)
}

// Update changes descriptive fields and, for sprints not in progress, the
// story scope. Status changes are refused: they must go through Start,
// Finish or Cancel so their preconditions run.
func (m *Manager) Update(ctx context.Context, id int64, in UpdateInput) (sp models.Sprint, err error) {
	ctx, span := m.span(ctx, "update", id)
	defer func() { endSpan(span, err) }()

	current, err := m.store.GetSprint(ctx, id)
	if err != nil {
		return models.Sprint{}, storage.Translate(err, "sprint %d", id)
	}

	unlock := m.locks.Lock(current.ProjectID)
	defer unlock()

	if current, err = m.store.GetSprint(ctx, id); err != nil {
		return models.Sprint{}, storage.Translate(err, "sprint %d", id)
	}
	if in.Status != nil && *in.Status != current.Status {
		if err := checkTransition(current.Status, *in.Status); err != nil {
			return models.Sprint{}, err
		}
		return models.Sprint{}, apperr.New(apperr.InvalidOperation,
			"sprint status cannot be set directly; use start, finish or cancel")
	}
	if in.StoryIDs != nil && current.Status == models.SprintInProgress {
		return models.Sprint{}, apperr.New(apperr.InvalidOperation,
			"stories of a sprint in progress cannot be reselected")
	}

	start, end := current.StartDate, current.EndDate
	if in.StartDate != nil {
		start = *in.StartDate
	}
	if in.EndDate != nil {
		end = *in.EndDate
	}
	if end.Before(start) {
		return models.Sprint{}, apperr.New(apperr.Validation, "end date must not precede start date")
	}

	sp, err = m.store.UpdateSprintDetails(ctx, id, storage.SprintChanges{
		Name:      in.Name,
		Objective: in.Objective,
		StartDate: in.StartDate,
		EndDate:   in.EndDate,
	})
	if err != nil {
		return models.Sprint{}, storage.Translate(err, "sprint %d", id)
	}

	if in.StoryIDs != nil {
		if _, err := m.store.DetachSprintStories(ctx, id); err != nil {
			return models.Sprint{}, err
		}
		if _, err := m.store.AssignStoriesToSprint(ctx, sp.ProjectID, id, *in.StoryIDs); err != nil {
			return models.Sprint{}, err
		}
	}
	return m.withStories(ctx, sp)
}

// Delete removes a sprint that is not running and returns its stories to
// the backlog.
func (m *Manager) Delete(ctx context.Context, id int64) (err error) {
	ctx, span := m.span(ctx, "delete", id)
	defer func() { endSpan(span, err) }()

	sp, err := m.store.GetSprint(ctx, id)
	if err != nil {
		return storage.Translate(err, "sprint %d", id)
	}

	unlock := m.locks.Lock(sp.ProjectID)
	defer unlock()

	if sp, err = m.store.GetSprint(ctx, id); err != nil {
		return storage.Translate(err, "sprint %d", id)
	}
	if sp.Status == models.SprintInProgress {
		return apperr.New(apperr.InvalidOperation, "a sprint in progress cannot be deleted; cancel it first")
	}
	if _, err := m.store.DetachSprintStories(ctx, id); err != nil {
		return err
	}
	return storage.Translate(m.store.DeleteSprint(ctx, id), "sprint %d", id)
}

// AssignStories scopes stories of the sprint's project to the sprint and
// reports how many were updated.
func (m *Manager) AssignStories(ctx context.Context, sprintID int64, storyIDs []int64) (int64, error) {
	if len(storyIDs) == 0 {
		return 0, apperr.New(apperr.Validation, "story ids are required")
	}
	sp, err := m.store.GetSprint(ctx, sprintID)
	if err != nil {
		return 0, storage.Translate(err, "sprint %d", sprintID)
	}
	return m.store.AssignStoriesToSprint(ctx, sp.ProjectID, sprintID, storyIDs)
}

// UnassignStories removes stories from the sprint. Stories that are not in
// it are skipped; a missing sprint simply matches nothing.
func (m *Manager) UnassignStories(ctx context.Context, sprintID int64, storyIDs []int64) (int64, error) {
	if len(storyIDs) == 0 {
		return 0, apperr.New(apperr.Validation, "story ids are required")
	}
	return m.store.UnassignStoriesFromSprint(ctx, sprintID, storyIDs)
}
