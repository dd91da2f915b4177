package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/nm90/educational-mvc-sub001/internal/model"
)

// TaskRepo stores tasks with hand-written SQL. Placeholders are written as
// ? and rebound by DB for the active driver.
type TaskRepo struct {
	db *DB
}

func NewTaskRepo(db *DB) *TaskRepo {
	return &TaskRepo{db: db}
}

const taskColumns = `id, title, description, status, priority, owner_id, assignee_id, created_at, updated_at`

const sqliteTaskSchema = `
CREATE TABLE IF NOT EXISTS tasks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL CHECK (length(title) > 0),
	description TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'todo' CHECK (status IN ('todo', 'in_progress', 'done')),
	priority TEXT NOT NULL DEFAULT 'medium' CHECK (priority IN ('low', 'medium', 'high')),
	owner_id INTEGER NOT NULL REFERENCES users(id),
	assignee_id INTEGER REFERENCES users(id) ON DELETE SET NULL,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
)`

const postgresTaskSchema = `
CREATE TABLE IF NOT EXISTS tasks (
	id BIGSERIAL PRIMARY KEY,
	title TEXT NOT NULL CHECK (length(title) > 0),
	description TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'todo' CHECK (status IN ('todo', 'in_progress', 'done')),
	priority TEXT NOT NULL DEFAULT 'medium' CHECK (priority IN ('low', 'medium', 'high')),
	owner_id BIGINT NOT NULL REFERENCES users(id),
	assignee_id BIGINT REFERENCES users(id) ON DELETE SET NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`

// EnsureSchema creates the tasks table. The users table must exist first.
func (r *TaskRepo) EnsureSchema(ctx context.Context) error {
	schema := sqliteTaskSchema
	if r.db.Driver() == DriverPostgres {
		schema = postgresTaskSchema
	}
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return err
	}
	_, err := r.db.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks (status)`)
	return err
}

func (r *TaskRepo) List(ctx context.Context, filter model.TaskFilter) ([]model.Task, error) {
	tasks := []model.Task{}
	query := `SELECT ` + taskColumns + ` FROM tasks`
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		where = append(where, `status = ?`)
		args = append(args, filter.Status)
	}
	if filter.OwnerID > 0 {
		where = append(where, `owner_id = ?`)
		args = append(args, filter.OwnerID)
	}
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY id`

	if err := r.db.Select(ctx, &tasks, query, args...); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *TaskRepo) Get(ctx context.Context, id int64) (*model.Task, error) {
	var t model.Task
	err := r.db.Get(ctx, &t, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	return &t, nil
}

// Create inserts t and fills in its ID and timestamps.
func (r *TaskRepo) Create(ctx context.Context, t *model.Task) error {
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now

	return r.db.Get(ctx, &t.ID,
		`INSERT INTO tasks (title, description, status, priority, owner_id, assignee_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		t.Title, t.Description, t.Status, t.Priority, t.OwnerID, t.AssigneeID, t.CreatedAt, t.UpdatedAt)
}

// UpdateStatus reports whether the task existed.
func (r *TaskRepo) UpdateStatus(ctx context.Context, id int64, status string) (bool, error) {
	n, err := r.db.Exec(ctx, `UPDATE tasks SET status = ?, updated_at = ? WHERE id = ?`, status, time.Now().UTC(), id)
	return n > 0, err
}

// Delete reports whether the task existed.
func (r *TaskRepo) Delete(ctx context.Context, id int64) (bool, error) {
	n, err := r.db.Exec(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	return n > 0, err
}

func (r *TaskRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.Get(ctx, &n, `SELECT COUNT(*) FROM tasks`)
	return n, err
}
