package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nguyenbaduy011/IE221-fe-sub000/internal/report"
	"github.com/nguyenbaduy011/IE221-fe-sub000/internal/server"
	"github.com/nguyenbaduy011/IE221-fe-sub000/internal/training"
)

var today = time.Date(2024, 1, 12, 10, 0, 0, 0, time.UTC)

func newHandler(t *testing.T, store training.Store, opts ...server.Option) http.Handler {
	t.Helper()
	svc := training.NewService(training.Config{
		Store: store,
		Now:   func() time.Time { return today },
	})
	return server.New(svc, opts...).Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
	return v
}

type errorResponse struct {
	Error     string `json:"error"`
	Field     string `json:"field"`
	Refetch   bool   `json:"refetch"`
	Retryable bool   `json:"retryable"`
	Action    string `json:"action"`
	Pending   int    `json:"pending"`
}

func addSubject(t *testing.T, h http.Handler, courseID, body string) training.CourseSubject {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/api/courses/"+courseID+"/subjects", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add subject status = %d, body = %s", rec.Code, rec.Body.String())
	}
	return decodeBody[training.CourseSubject](t, rec)
}

func TestHealthEndpoints(t *testing.T) {
	tests := []struct {
		name       string
		checks     []server.Option
		path       string
		wantStatus int
		wantState  string
	}{
		{
			name:       "healthz returns 200",
			path:       "/healthz",
			wantStatus: http.StatusOK,
			wantState:  "ok",
		},
		{
			name:       "readyz returns 200 without checks",
			path:       "/readyz",
			wantStatus: http.StatusOK,
			wantState:  "ready",
		},
		{
			name: "readyz returns 503 when a check fails",
			checks: []server.Option{
				server.WithCheck("database", func(context.Context) error { return errors.New("connection refused") }),
			},
			path:       "/readyz",
			wantStatus: http.StatusServiceUnavailable,
			wantState:  "unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHandler(t, nil, tt.checks...)
			rec := do(t, h, http.MethodGet, tt.path, "")
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			body := decodeBody[map[string]any](t, rec)
			if body["status"] != tt.wantState {
				t.Errorf("status field = %v, want %q", body["status"], tt.wantState)
			}
		})
	}
}

func TestCurriculumFlow(t *testing.T) {
	h := newHandler(t, nil)

	first := addSubject(t, h, "c1", `{"name":"Ruby","estimated_time_days":5,"max_score":100,"tasks":["Install","Scaffold"],"planned_start_date":"2024-01-01","planned_finish_date":"2024-01-10"}`)
	second := addSubject(t, h, "c1", `{"name":"Git","max_score":10}`)
	if first.Position != 1 || second.Position != 2 {
		t.Fatalf("positions = %d, %d; want 1, 2", first.Position, second.Position)
	}
	if len(first.Tasks) != 2 {
		t.Fatalf("tasks = %d, want 2", len(first.Tasks))
	}

	rec := do(t, h, http.MethodGet, "/api/courses/c1/subjects", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET curriculum status = %d", rec.Code)
	}
	etag := rec.Header().Get("ETag")
	if etag == "" {
		t.Fatal("missing ETag")
	}
	list := decodeBody[[]training.CourseSubject](t, rec)
	if len(list) != 2 || list[0].ID != first.ID {
		t.Fatalf("curriculum = %+v", list)
	}

	rec = do(t, h, http.MethodGet, "/api/courses/c1/subjects", "", "If-None-Match", etag)
	if rec.Code != http.StatusNotModified {
		t.Errorf("conditional GET status = %d, want 304", rec.Code)
	}

	rec = do(t, h, http.MethodPut, "/api/courses/c1/subjects/order",
		`{"ordered_ids":["`+second.ID+`","`+first.ID+`"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("reorder status = %d, body = %s", rec.Code, rec.Body.String())
	}
	list = decodeBody[[]training.CourseSubject](t, rec)
	if list[0].ID != second.ID || list[0].Position != 1 || list[1].Position != 2 {
		t.Errorf("reordered = %+v", list)
	}

	rec = do(t, h, http.MethodGet, "/api/courses/c1/subjects", "", "If-None-Match", etag)
	if rec.Code != http.StatusOK {
		t.Errorf("GET after reorder with stale ETag status = %d, want 200", rec.Code)
	}

	rec = do(t, h, http.MethodPut, "/api/courses/c1/subjects/order", `{"ordered_ids":["`+first.ID+`"]}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("partial reorder status = %d, want 409", rec.Code)
	}
	if body := decodeBody[errorResponse](t, rec); body.Error != "incomplete_ordering" || !body.Refetch {
		t.Errorf("partial reorder body = %+v", body)
	}

	rec = do(t, h, http.MethodPatch, "/api/course-subjects/"+first.ID, `{"name":"Ruby on Rails","estimated_time_days":7}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if cs := decodeBody[training.CourseSubject](t, rec); cs.Subject.Name != "Ruby on Rails" || cs.Subject.EstimatedTimeDays != 7 {
		t.Errorf("updated = %+v", cs.Subject)
	}
}

func TestRemoveSubjectConfirmation(t *testing.T) {
	h := newHandler(t, nil)
	cs := addSubject(t, h, "c1", `{"name":"Ruby","tasks":["Install"]}`)

	rec := do(t, h, http.MethodDelete, "/api/course-subjects/"+cs.ID, "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("unconfirmed delete status = %d, want 409", rec.Code)
	}
	if body := decodeBody[errorResponse](t, rec); body.Error != "confirmation_required" || body.Action != training.ActionRemoveSubject {
		t.Errorf("unconfirmed delete body = %+v", body)
	}

	rec = do(t, h, http.MethodDelete, "/api/course-subjects/"+cs.ID+"?confirm=true", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("confirmed delete status = %d, want 204", rec.Code)
	}

	rec = do(t, h, http.MethodDelete, "/api/course-subjects/"+cs.ID+"?confirm=true", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("repeat delete status = %d, want 404", rec.Code)
	}
	if body := decodeBody[errorResponse](t, rec); !body.Refetch {
		t.Errorf("not found body should ask for refetch: %+v", body)
	}
}

func TestErrorMapping(t *testing.T) {
	h := newHandler(t, nil)
	cs := addSubject(t, h, "c1", `{"name":"Ruby","max_score":50,"tasks":["Install Ruby"]}`)

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantError  string
	}{
		{"duplicate task", http.MethodPost, "/api/course-subjects/" + cs.ID + "/tasks", `{"name":"  install   RUBY "}`, http.StatusConflict, "duplicate_task_name"},
		{"blank task", http.MethodPost, "/api/course-subjects/" + cs.ID + "/tasks", `{"name":"  "}`, http.StatusUnprocessableEntity, "validation_failed"},
		{"unknown field", http.MethodPost, "/api/course-subjects/" + cs.ID + "/tasks", `{"title":"x"}`, http.StatusBadRequest, "bad_request"},
		{"malformed json", http.MethodPost, "/api/courses/c1/subjects", `{"name":`, http.StatusBadRequest, "bad_request"},
		{"bad date", http.MethodPost, "/api/courses/c1/subjects", `{"name":"Go","planned_start_date":"01/02/2024"}`, http.StatusUnprocessableEntity, "validation_failed"},
		{"inverted dates", http.MethodPost, "/api/courses/c1/subjects", `{"name":"Go","planned_start_date":"2024-02-01","planned_finish_date":"2024-01-01"}`, http.StatusUnprocessableEntity, "invalid_date_range"},
		{"duplicate template tasks", http.MethodPost, "/api/courses/c1/subjects", `{"name":"Go","tasks":["A","a"]}`, http.StatusConflict, "duplicate_task_name"},
		{"score too high", http.MethodPut, "/api/course-subjects/" + cs.ID + "/trainees/t1/assessment", `{"score":51}`, http.StatusUnprocessableEntity, "score_out_of_range"},
		{"unknown task", http.MethodPatch, "/api/tasks/nope", `{"name":"x"}`, http.StatusNotFound, "not_found"},
		{"unknown course subject", http.MethodGet, "/api/course-subjects/nope/trainees/t1/progress", "", http.StatusNotFound, "not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.path, tt.body)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if body := decodeBody[errorResponse](t, rec); body.Error != tt.wantError {
				t.Errorf("error = %q, want %q", body.Error, tt.wantError)
			}
		})
	}
}

func TestProgressFlow(t *testing.T) {
	h := newHandler(t, nil)
	cs := addSubject(t, h, "c1", `{"name":"Ruby","max_score":100,"tasks":["A","B"],"planned_finish_date":"2024-01-20"}`)

	rec := do(t, h, http.MethodPost, "/api/courses/c1/trainees", `{"trainee_id":"t1"}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("enroll status = %d, body = %s", rec.Code, rec.Body.String())
	}

	taskA := cs.Tasks[0].ID
	rec = do(t, h, http.MethodPost, "/api/tasks/"+taskA+"/trainees/t1/toggle", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("toggle status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if body := decodeBody[map[string]string](t, rec); body["status"] != string(training.TaskDone) {
		t.Errorf("toggle status = %q, want DONE", body["status"])
	}

	rec = do(t, h, http.MethodGet, "/api/course-subjects/"+cs.ID+"/trainees/t1/progress", "")
	view := decodeBody[training.ProgressView](t, rec)
	if view.CompletionPercent != 50 || view.Status != training.StatusInProgress {
		t.Errorf("progress = %d%% %s, want 50%% IN_PROGRESS", view.CompletionPercent, view.Status)
	}

	finish := `{"actual_start_date":"2024-01-02","actual_finish_date":"2024-01-11"}`
	rec = do(t, h, http.MethodPost, "/api/course-subjects/"+cs.ID+"/trainees/t1/finish", finish)
	if rec.Code != http.StatusConflict {
		t.Fatalf("unconfirmed finish status = %d, want 409", rec.Code)
	}
	if body := decodeBody[errorResponse](t, rec); body.Action != training.ActionFinishIncomplete || body.Pending != 1 {
		t.Errorf("unconfirmed finish body = %+v", body)
	}

	rec = do(t, h, http.MethodPost, "/api/course-subjects/"+cs.ID+"/trainees/t1/finish",
		`{"actual_start_date":"2024-01-05","actual_finish_date":"2024-01-04","confirm":true}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("inverted finish status = %d, want 422", rec.Code)
	}

	rec = do(t, h, http.MethodPost, "/api/course-subjects/"+cs.ID+"/trainees/t1/finish",
		`{"actual_start_date":"2024-01-02","actual_finish_date":"2024-01-11","confirm":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("confirmed finish status = %d, body = %s", rec.Code, rec.Body.String())
	}
	view = decodeBody[training.ProgressView](t, rec)
	if view.Status != training.StatusFinishedEarly || view.CompletionPercent != 50 {
		t.Errorf("finished = %s %d%%, want FINISHED_EARLY 50%%", view.Status, view.CompletionPercent)
	}

	rec = do(t, h, http.MethodPost, "/api/course-subjects/"+cs.ID+"/trainees/t1/force-complete", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("force-complete status = %d", rec.Code)
	}
	view = decodeBody[training.ProgressView](t, rec)
	if view.CompletionPercent != 100 {
		t.Errorf("force-complete percent = %d, want 100", view.CompletionPercent)
	}

	rec = do(t, h, http.MethodPut, "/api/course-subjects/"+cs.ID+"/trainees/t1/assessment",
		`{"score":90,"supervisor_comment":"  solid work "}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("assessment status = %d, body = %s", rec.Code, rec.Body.String())
	}
	view = decodeBody[training.ProgressView](t, rec)
	if view.Score == nil || *view.Score != 90 {
		t.Errorf("score = %v, want 90", view.Score)
	}
	if view.SupervisorComment == nil || *view.SupervisorComment != "solid work" {
		t.Errorf("comment = %v, want trimmed", view.SupervisorComment)
	}

	rec = do(t, h, http.MethodGet, "/api/courses/c1/report.xlsx", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("report status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != report.ContentType {
		t.Errorf("report content type = %q", ct)
	}
	if rec.Body.Len() == 0 {
		t.Error("report body is empty")
	}
}

// downStore fails every curriculum read like an unreachable database.
type downStore struct {
	*training.MemoryStore
}

func (downStore) FetchCurriculum(context.Context, string) ([]training.CourseSubject, error) {
	return nil, &training.PersistenceError{Op: "fetch curriculum", Err: errors.New("connection reset")}
}

func TestPersistenceFailureIsRetryable(t *testing.T) {
	h := newHandler(t, downStore{training.NewMemoryStore()})

	rec := do(t, h, http.MethodGet, "/api/courses/c1/subjects", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if body := decodeBody[errorResponse](t, rec); !body.Retryable {
		t.Errorf("body = %+v, want retryable", body)
	}
}
