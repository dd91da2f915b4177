package repository_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nm90/educational-mvc-sub001/internal/model"
	"github.com/nm90/educational-mvc-sub001/internal/repository"
	"github.com/nm90/educational-mvc-sub001/internal/repository/repotest"
	"github.com/nm90/educational-mvc-sub001/internal/tracing"
)

func traced(t *testing.T) (context.Context, *tracing.RequestContext) {
	t.Helper()

	reg := tracing.NewRegistry()
	ctx, rc, err := reg.Begin(context.Background(), tracing.RequestInfo{Method: "GET", Path: "/test"})
	require.NoError(t, err)
	t.Cleanup(func() { reg.End(rc) })
	return ctx, rc
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()

	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func newUser(t *testing.T, s *repotest.Store, email string) *model.User {
	t.Helper()

	u := &model.User{Name: "Test " + email, Email: email}
	require.NoError(t, s.Users.Create(context.Background(), u))
	require.NotZero(t, u.ID)
	return u
}

func TestTaskRepoCRUD(t *testing.T) {
	s := repotest.Open(t)
	ctx := context.Background()
	owner := newUser(t, s, "owner@example.com")

	task := &model.Task{Title: "write tests", Status: model.StatusTodo, Priority: model.PriorityHigh, OwnerID: owner.ID}
	require.NoError(t, s.Tasks.Create(ctx, task))
	require.NotZero(t, task.ID)

	got, err := s.Tasks.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "write tests", got.Title)
	assert.Equal(t, owner.ID, got.OwnerID)
	assert.Nil(t, got.AssigneeID)
	assert.False(t, got.CreatedAt.IsZero())

	ok, err := s.Tasks.UpdateStatus(ctx, task.ID, model.StatusDone)
	require.NoError(t, err)
	assert.True(t, ok)

	done, err := s.Tasks.List(ctx, model.TaskFilter{Status: model.StatusDone})
	require.NoError(t, err)
	require.Len(t, done, 1)
	todo, err := s.Tasks.List(ctx, model.TaskFilter{Status: model.StatusTodo})
	require.NoError(t, err)
	assert.Empty(t, todo)

	ok, err = s.Tasks.Delete(ctx, task.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = s.Tasks.Get(ctx, task.ID)
	assert.ErrorIs(t, err, repository.ErrTaskNotFound)

	ok, err = s.Tasks.UpdateStatus(ctx, task.ID, model.StatusDone)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUserRepo(t *testing.T) {
	s := repotest.Open(t)
	ctx := context.Background()

	a := newUser(t, s, "a@example.com")
	newUser(t, s, "b@example.com")

	users, err := s.Users.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "a@example.com", users[0].Email)

	got, err := s.Users.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.Name, got.Name)

	_, err = s.Users.Get(ctx, 9999)
	assert.ErrorIs(t, err, repository.ErrUserNotFound)

	err = s.Users.Create(ctx, &model.User{Name: "dup", Email: "a@example.com"})
	require.Error(t, err)
	assert.True(t, repository.IsUniqueViolation(err))

	ok, err := s.Users.Delete(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	n, err := s.Users.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestQueriesAreRecordedInRequest(t *testing.T) {
	s := repotest.Open(t)
	owner := newUser(t, s, "owner@example.com")
	ctx, rc := traced(t)

	_, err := s.Tasks.List(ctx, model.TaskFilter{Status: model.StatusTodo})
	require.NoError(t, err)
	_, err = s.Tasks.Get(ctx, 12345)
	require.ErrorIs(t, err, repository.ErrTaskNotFound)
	_, err = s.Users.Get(ctx, owner.ID)
	require.NoError(t, err)
	_, err = s.Users.Get(ctx, 777)
	require.ErrorIs(t, err, repository.ErrUserNotFound)

	qs := rc.Queries()
	require.Len(t, qs, 4)

	assert.Contains(t, qs[0].OperationText, "FROM tasks WHERE status = ?")
	assert.JSONEq(t, `["todo"]`, mustJSON(t, qs[0].Parameters))
	require.NotNil(t, qs[0].RowCount)
	assert.EqualValues(t, 0, *qs[0].RowCount)

	for i, q := range qs[1:] {
		assert.Nil(t, q.Error, "query %d", i+1)
		require.NotNil(t, q.RowCount, "query %d", i+1)
	}
	assert.EqualValues(t, 0, *qs[1].RowCount, "missing task is a read of zero rows")
	assert.Contains(t, qs[2].OperationText, "users")
	assert.EqualValues(t, 1, *qs[2].RowCount)
	assert.EqualValues(t, 0, *qs[3].RowCount, "gorm not-found is a read of zero rows")
}

func TestConstraintErrorsAreClassified(t *testing.T) {
	s := repotest.Open(t)
	owner := newUser(t, s, "owner@example.com")
	require.NoError(t, s.Tasks.Create(context.Background(), &model.Task{
		Title: "keep", Status: model.StatusTodo, Priority: model.PriorityLow, OwnerID: owner.ID,
	}))
	ctx, rc := traced(t)

	tests := []struct {
		name string
		run  func() error
		kind string
	}{
		{"unique", func() error {
			return s.Users.Create(ctx, &model.User{Name: "again", Email: "owner@example.com"})
		}, tracing.KindUniqueViolation},
		{"not null", func() error {
			_, err := s.DB.Exec(ctx, `INSERT INTO tasks (title, owner_id, created_at, updated_at) VALUES (NULL, ?, ?, ?)`, owner.ID, "2024-01-01", "2024-01-01")
			return err
		}, tracing.KindNotNullViolation},
		{"foreign key", func() error {
			return s.Tasks.Create(ctx, &model.Task{Title: "orphan", Status: model.StatusTodo, Priority: model.PriorityLow, OwnerID: 4242})
		}, tracing.KindForeignKeyViolation},
		{"check", func() error {
			return s.Tasks.Create(ctx, &model.Task{Title: "odd", Status: "someday", Priority: model.PriorityLow, OwnerID: owner.ID})
		}, tracing.KindCheckViolation},
		{"syntax", func() error {
			_, err := s.DB.Exec(ctx, `SELEC * FROM tasks`)
			return err
		}, tracing.KindSyntaxError},
		{"referenced row", func() error {
			_, err := s.Users.Delete(ctx, owner.ID)
			return err
		}, tracing.KindForeignKeyViolation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := len(rc.Queries())
			err := tt.run()
			require.Error(t, err)
			assert.Equal(t, tt.kind, repository.ErrorKind(err))

			qs := rc.Queries()
			require.Greater(t, len(qs), before)
			last := qs[len(qs)-1]
			require.NotNil(t, last.Error)
			assert.Equal(t, tt.kind, last.Error.Kind)
			assert.NotEmpty(t, last.Error.Raw)
			assert.Nil(t, last.RowCount)
		})
	}
}

func TestSeedOutsideRequest(t *testing.T) {
	s := repotest.Seeded(t)
	ctx := context.Background()

	users, err := s.Users.Count(ctx)
	require.NoError(t, err)
	tasks, err := s.Tasks.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, users)
	assert.EqualValues(t, 4, tasks)

	require.NoError(t, repository.Seed(ctx, s.Users, s.Tasks))
	again, err := s.Tasks.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, tasks, again, "seeding twice is a no-op")
}

func TestClassifyUnknownError(t *testing.T) {
	assert.Nil(t, repository.ClassifyError(assert.AnError))
	assert.Equal(t, tracing.KindGeneric, repository.ErrorKind(assert.AnError))
	assert.Empty(t, repository.ErrorKind(nil))
}
