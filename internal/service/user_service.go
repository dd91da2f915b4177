package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/nm90/educational-mvc-sub001/internal/model"
	"github.com/nm90/educational-mvc-sub001/internal/pkg/apperrors"
	"github.com/nm90/educational-mvc-sub001/internal/repository"
	"github.com/nm90/educational-mvc-sub001/internal/tracing"
)

type UserStore interface {
	List(ctx context.Context) ([]model.User, error)
	Get(ctx context.Context, id int64) (*model.User, error)
	Create(ctx context.Context, u *model.User) error
	Delete(ctx context.Context, id int64) (bool, error)
}

// UserService holds the user business rules. Every operation is traced
// under its User.* name.
type UserService struct {
	repo UserStore

	validate func(context.Context, model.UserInput) (model.UserInput, error)
	list     func(context.Context) ([]model.User, error)
	get      func(context.Context, int64) (*model.User, error)
	create   func(context.Context, model.UserInput) (*model.User, error)
	remove   func(context.Context, int64) error
}

func NewUserService(repo UserStore) *UserService {
	s := &UserService{repo: repo}
	s.validate = tracing.WrapFunc("User.validate", s.doValidate)
	s.list = tracing.Wrap0("User.list", s.doList)
	s.get = tracing.Wrap1("User.get", s.doGet)
	s.create = tracing.Wrap1("User.create", s.doCreate)
	s.remove = tracing.WrapFunc("User.delete", s.doDelete)
	return s
}

func (s *UserService) Validate(ctx context.Context, in model.UserInput) (model.UserInput, error) {
	return s.validate(ctx, in)
}

func (s *UserService) List(ctx context.Context) ([]model.User, error) {
	return s.list(ctx)
}

func (s *UserService) Get(ctx context.Context, id int64) (*model.User, error) {
	return s.get(ctx, id)
}

func (s *UserService) Create(ctx context.Context, in model.UserInput) (*model.User, error) {
	return s.create(ctx, in)
}

func (s *UserService) Delete(ctx context.Context, id int64) error {
	return s.remove(ctx, id)
}

func (s *UserService) doValidate(_ context.Context, in model.UserInput) (model.UserInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	switch {
	case in.Name == "":
		return in, apperrors.NewValidation("name", "name is required")
	case len(in.Name) > 100:
		return in, apperrors.NewValidation("name", "name must be at most 100 characters")
	case in.Email == "":
		return in, apperrors.NewValidation("email", "email is required")
	}
	addr, err := mail.ParseAddress(in.Email)
	if err != nil || addr.Address != in.Email {
		return in, apperrors.NewValidation("email", "email is not a valid address")
	}
	return in, nil
}

func (s *UserService) doList(ctx context.Context) ([]model.User, error) {
	return s.repo.List(ctx)
}

func (s *UserService) doGet(ctx context.Context, id int64) (*model.User, error) {
	u, err := s.repo.Get(ctx, id)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, apperrors.NewNotFound(fmt.Sprintf("user %d not found", id))
	}
	return u, err
}

func (s *UserService) doCreate(ctx context.Context, in model.UserInput) (*model.User, error) {
	in, err := s.validate(ctx, in)
	if err != nil {
		return nil, err
	}

	u := &model.User{Name: in.Name, Email: in.Email}
	if err := s.repo.Create(ctx, u); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, apperrors.NewDuplicate("email", fmt.Sprintf("email %s is already registered", in.Email), err)
		}
		return nil, err
	}
	return u, nil
}

func (s *UserService) doDelete(ctx context.Context, id int64) error {
	ok, err := s.repo.Delete(ctx, id)
	if err != nil {
		if repository.IsForeignKeyViolation(err) {
			return apperrors.New(apperrors.ErrConflict, fmt.Sprintf("user %d still owns tasks", id), err)
		}
		return err
	}
	if !ok {
		return apperrors.NewNotFound(fmt.Sprintf("user %d not found", id))
	}
	return nil
}
