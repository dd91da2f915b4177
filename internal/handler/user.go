package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nm90/educational-mvc-sub001/internal/model"
	"github.com/nm90/educational-mvc-sub001/internal/service"
)

type UserHandler struct {
	users *service.UserService
	tasks *service.TaskService
	p     Presenter
}

func NewUserHandler(users *service.UserService, tasks *service.TaskService, p Presenter) *UserHandler {
	return &UserHandler{users: users, tasks: tasks, p: p}
}

func (h *UserHandler) Index(c *gin.Context) {
	users, err := h.users.List(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	if WantsJSON(c) {
		h.p.JSON(c, http.StatusOK, users)
		return
	}
	h.p.Render(c, http.StatusOK, "users_index.html", gin.H{
		"title": "Users",
		"users": users,
	})
}

// Show lists the user's own tasks next to the profile.
func (h *UserHandler) Show(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	user, err := h.users.Get(ctx, id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	tasks, err := h.tasks.List(ctx, model.TaskFilter{OwnerID: id})
	if err != nil {
		_ = c.Error(err)
		return
	}
	if WantsJSON(c) {
		h.p.JSON(c, http.StatusOK, gin.H{"user": user, "tasks": tasks})
		return
	}
	h.p.Render(c, http.StatusOK, "users_show.html", gin.H{
		"title": user.Name,
		"user":  user,
		"tasks": tasks,
	})
}

func (h *UserHandler) Create(c *gin.Context) {
	var in model.UserInput
	if err := c.ShouldBind(&in); err != nil {
		bindError(c, err)
		return
	}
	user, err := h.users.Create(c.Request.Context(), in)
	if err != nil {
		_ = c.Error(err)
		return
	}
	h.p.Done(c, http.StatusCreated, user, fmt.Sprintf("/users/%d", user.ID))
}

func (h *UserHandler) Delete(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := h.users.Delete(c.Request.Context(), id); err != nil {
		_ = c.Error(err)
		return
	}
	h.p.Done(c, http.StatusOK, gin.H{"id": id}, "/users")
}
