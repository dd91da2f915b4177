package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/nm90/educational-mvc-sub001/internal/model"
	"github.com/nm90/educational-mvc-sub001/internal/pkg/apperrors"
	"github.com/nm90/educational-mvc-sub001/internal/repository"
	"github.com/nm90/educational-mvc-sub001/internal/tracing"
)

type TaskStore interface {
	List(ctx context.Context, filter model.TaskFilter) ([]model.Task, error)
	Get(ctx context.Context, id int64) (*model.Task, error)
	Create(ctx context.Context, t *model.Task) error
	UpdateStatus(ctx context.Context, id int64, status string) (bool, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

// TaskService holds the task business rules. Owners are resolved through
// UserService, so its calls nest inside the task calls in a trace.
type TaskService struct {
	repo  TaskStore
	users *UserService

	validate     func(context.Context, model.TaskInput) (model.TaskInput, error)
	list         func(context.Context, model.TaskFilter) ([]model.Task, error)
	get          func(context.Context, int64) (*model.Task, error)
	create       func(context.Context, model.TaskInput) (*model.Task, error)
	updateStatus func(context.Context, int64, string) (*model.Task, error)
	remove       func(context.Context, int64) error
}

func NewTaskService(repo TaskStore, users *UserService) *TaskService {
	s := &TaskService{repo: repo, users: users}
	s.validate = tracing.Wrap1("Task.validate", s.doValidate)
	s.list = tracing.Wrap1("Task.list", s.doList)
	s.get = tracing.Wrap1("Task.get", s.doGet)
	s.create = tracing.Wrap1("Task.create", s.doCreate)
	s.updateStatus = tracing.WrapNamed("Task.update_status", []string{"task_id", "status"}, s.doUpdateStatus)
	s.remove = tracing.WrapFunc("Task.delete", s.doDelete)
	return s
}

func (s *TaskService) Validate(ctx context.Context, in model.TaskInput) (model.TaskInput, error) {
	return s.validate(ctx, in)
}

func (s *TaskService) List(ctx context.Context, filter model.TaskFilter) ([]model.Task, error) {
	return s.list(ctx, filter)
}

func (s *TaskService) Get(ctx context.Context, id int64) (*model.Task, error) {
	return s.get(ctx, id)
}

func (s *TaskService) Create(ctx context.Context, in model.TaskInput) (*model.Task, error) {
	return s.create(ctx, in)
}

func (s *TaskService) UpdateStatus(ctx context.Context, id int64, status string) (*model.Task, error) {
	return s.updateStatus(ctx, id, status)
}

func (s *TaskService) Delete(ctx context.Context, id int64) error {
	return s.remove(ctx, id)
}

func (s *TaskService) doValidate(_ context.Context, in model.TaskInput) (model.TaskInput, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Priority = strings.ToLower(strings.TrimSpace(in.Priority))
	if in.Priority == "" {
		in.Priority = model.PriorityMedium
	}

	switch {
	case in.Title == "":
		return in, apperrors.NewValidation("title", "title is required")
	case len(in.Title) > 200:
		return in, apperrors.NewValidation("title", "title must be at most 200 characters")
	case !slices.Contains(model.Priorities, in.Priority):
		return in, apperrors.NewValidation("priority", fmt.Sprintf("priority must be one of %s", strings.Join(model.Priorities, ", ")))
	case in.OwnerID <= 0:
		return in, apperrors.NewValidation("owner_id", "owner is required")
	case in.AssigneeID != nil && *in.AssigneeID <= 0:
		in.AssigneeID = nil
	}
	return in, nil
}

func (s *TaskService) doList(ctx context.Context, filter model.TaskFilter) ([]model.Task, error) {
	if filter.Status != "" && !slices.Contains(model.Statuses, filter.Status) {
		return nil, apperrors.NewValidation("status", fmt.Sprintf("unknown status %q", filter.Status))
	}

	tasks, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	// One owner lookup per task: the N+1 pattern the trace makes visible.
	for i := range tasks {
		owner, err := s.users.Get(ctx, tasks[i].OwnerID)
		if err != nil {
			if apperrors.Is(err, apperrors.ErrNotFound) {
				continue
			}
			return nil, err
		}
		tasks[i].Owner = owner
	}
	return tasks, nil
}

func (s *TaskService) doGet(ctx context.Context, id int64) (*model.Task, error) {
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			return nil, apperrors.NewNotFound(fmt.Sprintf("task %d not found", id))
		}
		return nil, err
	}

	owner, err := s.users.Get(ctx, t.OwnerID)
	if err != nil && !apperrors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}
	t.Owner = owner
	return t, nil
}

func (s *TaskService) doCreate(ctx context.Context, in model.TaskInput) (*model.Task, error) {
	in, err := s.validate(ctx, in)
	if err != nil {
		return nil, err
	}

	owner, err := s.users.Get(ctx, in.OwnerID)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NewValidation("owner_id", fmt.Sprintf("user %d does not exist", in.OwnerID))
		}
		return nil, err
	}

	t := &model.Task{
		Title:       in.Title,
		Description: in.Description,
		Status:      model.StatusTodo,
		Priority:    in.Priority,
		OwnerID:     in.OwnerID,
		AssigneeID:  in.AssigneeID,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		if repository.IsForeignKeyViolation(err) {
			return nil, apperrors.NewValidation("assignee_id", "assignee does not exist")
		}
		return nil, err
	}
	t.Owner = owner
	return t, nil
}

func (s *TaskService) doUpdateStatus(ctx context.Context, id int64, status string) (*model.Task, error) {
	status = strings.TrimSpace(status)
	if !slices.Contains(model.Statuses, status) {
		return nil, apperrors.NewValidation("status", fmt.Sprintf("status must be one of %s", strings.Join(model.Statuses, ", ")))
	}

	ok, err := s.repo.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.NewNotFound(fmt.Sprintf("task %d not found", id))
	}
	return s.get(ctx, id)
}

func (s *TaskService) doDelete(ctx context.Context, id int64) error {
	ok, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NewNotFound(fmt.Sprintf("task %d not found", id))
	}
	return nil
}
