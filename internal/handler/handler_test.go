package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nm90/educational-mvc-sub001/internal/config"
	"github.com/nm90/educational-mvc-sub001/internal/middleware"
	"github.com/nm90/educational-mvc-sub001/internal/pkg/apperrors"
	"github.com/nm90/educational-mvc-sub001/internal/repository/repotest"
	"github.com/nm90/educational-mvc-sub001/internal/service"
	"github.com/nm90/educational-mvc-sub001/internal/tracing"
)

const scriptOpen = "<script>window.__DEBUG__ = "

// No value length limit, so whole view data can be decoded.
var tracingOn = config.TracingConfig{Enabled: true, InjectHTML: true, EmbedJSON: true}

func setupRouter(t *testing.T, tcfg config.TracingConfig) (*gin.Engine, *tracing.Registry) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := repotest.Seeded(t)
	users := service.NewUserService(store.Users)
	tasks := service.NewTaskService(store.Tasks, users)

	p := NewPresenter(tcfg)
	h := Handlers{
		Tasks:     NewTaskHandler(tasks, users, p),
		Users:     NewUserHandler(users, tasks, p),
		Health:    NewHealthHandler(store.DB),
		Presenter: p,
	}

	reg := tracing.NewRegistry(tracing.WithMaxValueLength(tcfg.MaxValueLength))
	r := gin.New()
	r.Use(gin.Recovery())
	require.NoError(t, Setup(r, &config.Config{Tracing: tcfg}, reg, h))
	return r, reg
}

func do(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func getPage(r http.Handler, path string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	return do(r, req)
}

func pageTrace(t *testing.T, body string) tracing.Trace {
	t.Helper()

	i := strings.Index(body, scriptOpen)
	require.GreaterOrEqual(t, i, 0, "no trace in page")
	rest := body[i+len(scriptOpen):]
	j := strings.Index(rest, ";</script>")
	require.GreaterOrEqual(t, j, 0)

	var tr tracing.Trace
	require.NoError(t, json.Unmarshal([]byte(rest[:j]), &tr))
	return tr
}

type envelope struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *apperrors.AppError `json:"error"`
	Debug   *tracing.Trace      `json:"__DEBUG__"`
}

func names(calls []tracing.CallRecord) []string {
	out := make([]string, 0, len(calls))
	for _, c := range calls {
		out = append(out, c.QualifiedName)
	}
	return out
}

func TestTaskIndexPageCarriesTrace(t *testing.T) {
	r, reg := setupRouter(t, tracingOn)

	w := getPage(r, "/tasks")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")

	body := w.Body.String()
	assert.Equal(t, 1, strings.Count(body, scriptOpen))
	assert.Contains(t, body, ";</script></body>")
	assert.Contains(t, body, "Ada Lovelace")

	tr := pageTrace(t, body)
	assert.Equal(t, w.Header().Get(middleware.HeaderRequestID), tr.RequestID)
	assert.Equal(t, "TaskController.index", tr.RequestInfo.Controller)
	assert.Equal(t, http.StatusOK, tr.RequestInfo.StatusCode)

	calls := names(tr.MethodCalls)
	assert.Contains(t, calls, "Task.list")
	assert.Contains(t, calls, "User.list")
	assert.Equal(t, "TaskController.index", calls[len(calls)-1])

	// One task query, one owner lookup per seeded task, one for the form's users.
	assert.Len(t, tr.DBQueries, 6)

	assert.JSONEq(t, `"Tasks"`, string(tr.ViewData["title"]))
	var tasks []map[string]any
	require.NoError(t, json.Unmarshal(tr.ViewData["tasks"], &tasks))
	assert.Len(t, tasks, 4)

	assert.Equal(t, 0, reg.Live())
}

func TestDuplicateUserJSON(t *testing.T) {
	r, reg := setupRouter(t, tracingOn)

	req, _ := http.NewRequest(http.MethodPost, "/users", strings.NewReader(`{"name":"Ada","email":"ada@example.com"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	w := do(r, req)

	require.Equal(t, http.StatusConflict, w.Code)
	assert.NotContains(t, w.Body.String(), scriptOpen)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Equal(t, apperrors.ErrDuplicate, env.Error.Type)
	assert.Equal(t, "email", env.Error.Field)

	require.NotNil(t, env.Debug)
	tr := env.Debug
	assert.Equal(t, w.Header().Get(middleware.HeaderRequestID), tr.RequestID)
	assert.Equal(t, "UserController.create", tr.RequestInfo.Controller)
	assert.Equal(t, http.StatusConflict, tr.RequestInfo.StatusCode)
	assert.Equal(t, []string{"User.validate", "User.create", "UserController.create"}, names(tr.MethodCalls))
	for _, c := range tr.MethodCalls[1:] {
		require.NotNil(t, c.Raised, c.QualifiedName)
		assert.Equal(t, "DUPLICATE", c.Raised.Kind)
	}

	require.NotEmpty(t, tr.DBQueries)
	last := tr.DBQueries[len(tr.DBQueries)-1]
	require.NotNil(t, last.Error)
	assert.Equal(t, tracing.KindUniqueViolation, last.Error.Kind)

	assert.Equal(t, 0, reg.Live())
}

func TestCreateTaskFormRedirects(t *testing.T) {
	r, _ := setupRouter(t, tracingOn)

	form := url.Values{"title": {"Write docs"}, "priority": {"high"}, "owner_id": {"2"}}
	req, _ := http.NewRequest(http.MethodPost, "/tasks", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := do(r, req)

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/tasks/5", w.Header().Get("Location"))
	assert.NotContains(t, w.Body.String(), "__DEBUG__")

	w = getPage(r, "/tasks/5")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Write docs")
	assert.Contains(t, body, "Alan Turing")

	tr := pageTrace(t, body)
	assert.Equal(t, []string{"User.get", "Task.get", "TaskController.show"}, names(tr.MethodCalls))
	assert.JSONEq(t, `{"id":"5"}`, string(tr.MethodCalls[2].Arguments.Positional[0]))
}

func TestCreateTaskJSON(t *testing.T) {
	r, _ := setupRouter(t, tracingOn)

	req, _ := http.NewRequest(http.MethodPost, "/tasks", strings.NewReader(`{"title":"Ship it","owner_id":1}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	w := do(r, req)

	require.Equal(t, http.StatusCreated, w.Code)
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.True(t, env.Success)

	var task struct {
		ID       int64  `json:"id"`
		Title    string `json:"title"`
		Priority string `json:"priority"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &task))
	assert.Equal(t, "Ship it", task.Title)
	assert.Equal(t, "medium", task.Priority)

	require.NotNil(t, env.Debug)
	assert.Equal(t, []string{"Task.validate", "User.get", "Task.create"}, names(env.Debug.MethodCalls),
		"the controller call is still running while the envelope is built")
	assert.Equal(t, http.StatusCreated, env.Debug.RequestInfo.StatusCode)
}

func TestNotFoundRendersErrorPage(t *testing.T) {
	r, _ := setupRouter(t, tracingOn)

	w := getPage(r, "/tasks/999")
	require.Equal(t, http.StatusNotFound, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, "task 999 not found")
	assert.Equal(t, 1, strings.Count(body, scriptOpen))

	tr := pageTrace(t, body)
	assert.Equal(t, http.StatusNotFound, tr.RequestInfo.StatusCode)
	require.Len(t, tr.MethodCalls, 2)
	assert.Equal(t, "Task.get", tr.MethodCalls[0].QualifiedName)
	ctrl := tr.MethodCalls[1]
	assert.Equal(t, "TaskController.show", ctrl.QualifiedName)
	require.NotNil(t, ctrl.Raised)
	assert.Equal(t, "NOT_FOUND", ctrl.Raised.Kind)
	assert.Contains(t, tr.ViewData, "error")
}

func TestInvalidIDJSON(t *testing.T) {
	r, _ := setupRouter(t, tracingOn)

	req, _ := http.NewRequest(http.MethodGet, "/users/abc?format=json", nil)
	w := do(r, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.NotNil(t, env.Error)
	assert.Equal(t, apperrors.ErrInvalidRequest, env.Error.Type)
}

func TestUserShowListsOwnTasks(t *testing.T) {
	r, _ := setupRouter(t, tracingOn)

	req, _ := http.NewRequest(http.MethodGet, "/users/1", nil)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	w := do(r, req)
	require.Equal(t, http.StatusOK, w.Code)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	var data struct {
		User struct {
			Name string `json:"name"`
		} `json:"user"`
		Tasks []struct {
			OwnerID int64 `json:"owner_id"`
		} `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "Ada Lovelace", data.User.Name)
	assert.Len(t, data.Tasks, 2)
	for _, task := range data.Tasks {
		assert.Equal(t, int64(1), task.OwnerID)
	}
}

func TestDeleteUserWithTasksConflicts(t *testing.T) {
	r, _ := setupRouter(t, tracingOn)

	req, _ := http.NewRequest(http.MethodPost, "/users/2/delete", nil)
	w := do(r, req)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "still owns tasks")
	assert.Equal(t, 1, strings.Count(w.Body.String(), scriptOpen))

	tr := pageTrace(t, w.Body.String())
	last := tr.DBQueries[len(tr.DBQueries)-1]
	require.NotNil(t, last.Error)
	assert.Equal(t, tracing.KindForeignKeyViolation, last.Error.Kind)
}

func TestJSONEmbeddingDisabled(t *testing.T) {
	cfg := tracingOn
	cfg.EmbedJSON = false
	r, _ := setupRouter(t, cfg)

	req, _ := http.NewRequest(http.MethodGet, "/tasks?format=json", nil)
	w := do(r, req)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotContains(t, body, DebugKey)
	assert.JSONEq(t, `true`, string(body["success"]))
}

func TestRootAndHealth(t *testing.T) {
	r, reg := setupRouter(t, tracingOn)

	w := getPage(r, "/")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/tasks", w.Header().Get("Location"))
	assert.NotContains(t, w.Body.String(), "__DEBUG__")

	w = getPage(r, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.Empty(t, w.Header().Get(middleware.HeaderRequestID), "health checks are not traced")

	assert.Equal(t, 0, reg.Live())
}

func TestWantsJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name   string
		target string
		header http.Header
		want   bool
	}{
		{"browser", "/tasks", http.Header{"Accept": {"text/html,application/xhtml+xml,*/*;q=0.8"}}, false},
		{"no accept", "/tasks", nil, false},
		{"accept json", "/tasks", http.Header{"Accept": {"application/json"}}, true},
		{"format param", "/tasks?format=json", nil, true},
		{"xhr", "/tasks", http.Header{"X-Requested-With": {"XMLHttpRequest"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodGet, tt.target, nil)
			for k, v := range tt.header {
				c.Request.Header[k] = v
			}
			assert.Equal(t, tt.want, WantsJSON(c))
		})
	}
}
