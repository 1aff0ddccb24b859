package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sprintboard/internal/events"
	"sprintboard/internal/storage"
)

type testServer struct {
	srv   *Server
	store *storage.Store
	bus   *events.Bus
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store, err := storage.Open(context.Background(), storage.Options{
		Driver: storage.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "api.db"),
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	bus := events.NewBus(0)
	return &testServer{srv: New(store, bus, nil, ""), store: store, bus: bus}
}

// do sends a JSON request and decodes the envelope.
func (ts *testServer) do(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.srv.Engine().ServeHTTP(rec, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec.Code, out
}

// ok asserts a success envelope and returns the named object.
func (ts *testServer) ok(t *testing.T, method, path string, body any, key string) map[string]any {
	t.Helper()
	code, out := ts.do(t, method, path, body)
	require.Less(t, code, 300, "%s %s: %v", method, path, out)
	require.Equal(t, true, out["success"])
	if key == "" {
		return out
	}
	obj, ok := out[key].(map[string]any)
	require.True(t, ok, "missing %q in %v", key, out)
	return obj
}

func id(obj map[string]any) int64 {
	return int64(obj["id"].(float64))
}

type seeded struct {
	projectID int64
	epicID    int64
	columns   []int64
}

func (ts *testServer) seed(t *testing.T) seeded {
	t.Helper()
	project := ts.ok(t, http.MethodPost, "/api/projects", jsonObj{"name": "Atlas"}, "project")
	pid := id(project)
	epic := ts.ok(t, http.MethodPost, fmt.Sprintf("/api/projects/%d/epics", pid), jsonObj{"name": "Billing"}, "epic")
	board := ts.ok(t, http.MethodGet, fmt.Sprintf("/api/projects/%d/board", pid), nil, "board")

	var columns []int64
	for _, col := range board["columns"].([]any) {
		columns = append(columns, id(col.(map[string]any)))
	}
	return seeded{projectID: pid, epicID: id(epic), columns: columns}
}

func (ts *testServer) story(t *testing.T, s seeded, title string) int64 {
	t.Helper()
	story := ts.ok(t, http.MethodPost, fmt.Sprintf("/api/projects/%d/stories", s.projectID),
		jsonObj{"epic_id": s.epicID, "title": title, "points": 3}, "story")
	return id(story)
}

func (ts *testServer) sprint(t *testing.T, s seeded, name string, storyIDs ...int64) int64 {
	t.Helper()
	if storyIDs == nil {
		storyIDs = []int64{}
	}
	sp := ts.ok(t, http.MethodPost, fmt.Sprintf("/api/projects/%d/sprints", s.projectID), jsonObj{
		"name":       name,
		"start_date": "2026-03-02",
		"end_date":   "2026-03-16",
		"story_ids":  storyIDs,
	}, "sprint")
	return id(sp)
}

type jsonObj = map[string]any

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	ts.srv.Engine().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
	assert.JSONEq(t, `{"success": true, "status": "ok", "driver": "sqlite3"}`, rec.Body.String())
}

func TestRequestIDIsGenerated(t *testing.T) {
	ts := newTestServer(t)
	rec := httptest.NewRecorder()
	ts.srv.Engine().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/projects", nil))

	assert.Len(t, rec.Header().Get("X-Request-ID"), 36)
}

func TestSprintLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	s := ts.seed(t)
	storyID := ts.story(t, s, "Invoice export")
	taskOut := ts.ok(t, http.MethodPost, fmt.Sprintf("/api/projects/%d/tasks", s.projectID),
		jsonObj{"title": "CSV writer", "story_id": storyID, "assignee": jsonObj{"_id": "12"}}, "task")
	assert.Equal(t, float64(12), taskOut["assignee_id"])

	sprintID := ts.sprint(t, s, "Sprint 1", storyID)

	check := ts.ok(t, http.MethodGet, fmt.Sprintf("/api/sprints/%d/can-start", sprintID), nil, "")
	assert.Equal(t, true, check["allowed"])

	started := ts.ok(t, http.MethodPost, fmt.Sprintf("/api/sprints/%d/start", sprintID), nil, "sprint")
	assert.Equal(t, "en progreso", started["status"])
	stories := started["stories"].([]any)
	require.Len(t, stories, 1)
	assert.Equal(t, float64(s.columns[0]), stories[0].(map[string]any)["column_id"])

	check = ts.ok(t, http.MethodGet, fmt.Sprintf("/api/sprints/%d/can-finish", sprintID), nil, "")
	assert.Equal(t, false, check["allowed"])
	assert.Equal(t, "incomplete_work", check["code"])

	code, out := ts.do(t, http.MethodPost, fmt.Sprintf("/api/sprints/%d/finish", sprintID), nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "incomplete_work", out["error"])
	assert.NotEmpty(t, out["message"])

	done := s.columns[len(s.columns)-1]
	moved := ts.ok(t, http.MethodPut, fmt.Sprintf("/api/stories/%d/move", storyID), jsonObj{"column_id": done}, "story")
	assert.Equal(t, "completada", moved["status"])

	tasks := ts.ok(t, http.MethodGet, fmt.Sprintf("/api/projects/%d/tasks", s.projectID), nil, "")
	require.Len(t, tasks["tasks"], 1)
	assert.Equal(t, "completada", tasks["tasks"].([]any)[0].(map[string]any)["status"])

	finished := ts.ok(t, http.MethodPost, fmt.Sprintf("/api/sprints/%d/finish", sprintID), nil, "sprint")
	assert.Equal(t, "completado", finished["status"])
	assert.NotNil(t, finished["finished_at"])
}

func TestFailureEnvelopes(t *testing.T) {
	ts := newTestServer(t)
	s := ts.seed(t)
	empty := ts.sprint(t, s, "Empty")
	loose := ts.story(t, s, "Loose story")

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		kind   string
	}{
		{"empty scope", http.MethodPost, fmt.Sprintf("/api/sprints/%d/start", empty), nil, http.StatusBadRequest, "empty_scope"},
		{"unknown sprint", http.MethodPost, "/api/sprints/999/start", nil, http.StatusNotFound, "not_found"},
		{"can-start unknown sprint", http.MethodGet, "/api/sprints/999/can-start", nil, http.StatusNotFound, "not_found"},
		{"bad id", http.MethodGet, "/api/sprints/abc", nil, http.StatusBadRequest, "validation"},
		{"status via update", http.MethodPut, fmt.Sprintf("/api/sprints/%d", empty), jsonObj{"status": "en progreso"}, http.StatusBadRequest, "invalid_operation"},
		{"illegal status via update", http.MethodPut, fmt.Sprintf("/api/sprints/%d", empty), jsonObj{"status": "completado"}, http.StatusBadRequest, "invalid_transition"},
		{"move backlog story", http.MethodPut, fmt.Sprintf("/api/stories/%d/move", loose), jsonObj{"column_id": s.columns[1]}, http.StatusBadRequest, "invalid_operation"},
		{"missing sprint name", http.MethodPost, fmt.Sprintf("/api/projects/%d/sprints", s.projectID), jsonObj{"start_date": "2026-03-02", "end_date": "2026-03-09"}, http.StatusBadRequest, "validation"},
		{"bad date", http.MethodPost, fmt.Sprintf("/api/projects/%d/sprints", s.projectID), jsonObj{"name": "x", "start_date": "march", "end_date": "2026-03-09"}, http.StatusBadRequest, "validation"},
		{"unknown project board", http.MethodGet, "/api/projects/999/board", nil, http.StatusNotFound, "not_found"},
		{"empty assign", http.MethodPost, fmt.Sprintf("/api/sprints/%d/stories", empty), jsonObj{"story_ids": []int64{}}, http.StatusBadRequest, "validation"},
		{"unknown route", http.MethodGet, "/api/nope", nil, http.StatusNotFound, "not_found"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, out := ts.do(t, tc.method, tc.path, tc.body)
			assert.Equal(t, tc.status, code)
			assert.Equal(t, false, out["success"])
			assert.Equal(t, tc.kind, out["error"])
			assert.NotEmpty(t, out["message"])
		})
	}
}

func TestOrderViolationThenCancel(t *testing.T) {
	ts := newTestServer(t)
	s := ts.seed(t)
	first := ts.sprint(t, s, "T")
	second := ts.sprint(t, s, "S", ts.story(t, s, "Ledger"))

	code, out := ts.do(t, http.MethodPost, fmt.Sprintf("/api/sprints/%d/start", second), nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "order_violation", out["error"])

	ts.ok(t, http.MethodPost, fmt.Sprintf("/api/sprints/%d/cancel", first), nil, "sprint")
	started := ts.ok(t, http.MethodPost, fmt.Sprintf("/api/sprints/%d/start", second), nil, "sprint")
	assert.Equal(t, "en progreso", started["status"])
}

func TestAssignAndUnassignStories(t *testing.T) {
	ts := newTestServer(t)
	s := ts.seed(t)
	a, b := ts.story(t, s, "A"), ts.story(t, s, "B")
	sprintID := ts.sprint(t, s, "Sprint 1")

	out := ts.ok(t, http.MethodPost, fmt.Sprintf("/api/sprints/%d/stories", sprintID), jsonObj{"story_ids": []int64{a, b}}, "")
	assert.Equal(t, float64(2), out["updated"])

	out = ts.ok(t, http.MethodPost, fmt.Sprintf("/api/sprints/%d/stories/remove", sprintID), jsonObj{"story_ids": []int64{a}}, "")
	assert.Equal(t, float64(1), out["updated"])

	sp := ts.ok(t, http.MethodGet, fmt.Sprintf("/api/sprints/%d", sprintID), nil, "sprint")
	require.Len(t, sp["stories"], 1)

	backlog := ts.ok(t, http.MethodGet, fmt.Sprintf("/api/projects/%d/stories?backlog=true", s.projectID), nil, "")
	require.Len(t, backlog["stories"], 1)
	assert.Equal(t, float64(a), backlog["stories"].([]any)[0].(map[string]any)["id"])
}

func TestTransitionsArePublished(t *testing.T) {
	ts := newTestServer(t)
	s := ts.seed(t)
	sprintID := ts.sprint(t, s, "Sprint 1", ts.story(t, s, "A"))

	ch, cancel := ts.bus.Subscribe(s.projectID)
	defer cancel()

	ts.ok(t, http.MethodPost, fmt.Sprintf("/api/sprints/%d/start", sprintID), nil, "sprint")

	select {
	case msg := <-ch:
		var ev events.Event
		require.NoError(t, json.Unmarshal(msg, &ev))
		assert.Equal(t, events.SprintStarted, ev.Type)
		assert.Equal(t, s.projectID, ev.ProjectID)
	case <-time.After(time.Second):
		t.Fatal("no event published")
	}
}

func TestColumnsAndTaskMove(t *testing.T) {
	ts := newTestServer(t)
	s := ts.seed(t)

	col := ts.ok(t, http.MethodPost, fmt.Sprintf("/api/projects/%d/board/columns", s.projectID), jsonObj{"name": "QA"}, "column")
	assert.Equal(t, float64(len(s.columns)+1), col["position"])

	renamed := ts.ok(t, http.MethodPut, fmt.Sprintf("/api/columns/%d", id(col)), jsonObj{"name": "Review"}, "column")
	assert.Equal(t, "Review", renamed["name"])

	task := ts.ok(t, http.MethodPost, fmt.Sprintf("/api/projects/%d/tasks", s.projectID), jsonObj{"title": "Fix flaky job"}, "task")
	moved := ts.ok(t, http.MethodPut, fmt.Sprintf("/api/tasks/%d/move", id(task)), jsonObj{"column_id": id(col)}, "task")
	assert.Equal(t, float64(id(col)), moved["column_id"])
	assert.Equal(t, task["status"], moved["status"])

	updated := ts.ok(t, http.MethodPut, fmt.Sprintf("/api/tasks/%d", id(task)), jsonObj{"assignee": 5}, "task")
	assert.Equal(t, float64(5), updated["assignee_id"])
	updated = ts.ok(t, http.MethodPut, fmt.Sprintf("/api/tasks/%d", id(task)), jsonObj{"assignee": jsonObj{"id": nil}}, "task")
	assert.Nil(t, updated["assignee_id"])
}
