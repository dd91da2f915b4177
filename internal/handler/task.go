package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nm90/educational-mvc-sub001/internal/model"
	"github.com/nm90/educational-mvc-sub001/internal/service"
)

type TaskHandler struct {
	tasks *service.TaskService
	users *service.UserService
	p     Presenter
}

func NewTaskHandler(tasks *service.TaskService, users *service.UserService, p Presenter) *TaskHandler {
	return &TaskHandler{tasks: tasks, users: users, p: p}
}

func (h *TaskHandler) Index(c *gin.Context) {
	var filter model.TaskFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		bindError(c, err)
		return
	}

	ctx := c.Request.Context()
	tasks, err := h.tasks.List(ctx, filter)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if WantsJSON(c) {
		h.p.JSON(c, http.StatusOK, tasks)
		return
	}

	// The new-task form needs the owner choices.
	users, err := h.users.List(ctx)
	if err != nil {
		_ = c.Error(err)
		return
	}
	h.p.Render(c, http.StatusOK, "tasks_index.html", gin.H{
		"title":      "Tasks",
		"tasks":      tasks,
		"users":      users,
		"filter":     filter,
		"statuses":   model.Statuses,
		"priorities": model.Priorities,
	})
}

func (h *TaskHandler) Show(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	task, err := h.tasks.Get(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if WantsJSON(c) {
		h.p.JSON(c, http.StatusOK, task)
		return
	}
	h.p.Render(c, http.StatusOK, "tasks_show.html", gin.H{
		"title":    task.Title,
		"task":     task,
		"statuses": model.Statuses,
	})
}

func (h *TaskHandler) Create(c *gin.Context) {
	var in model.TaskInput
	if err := c.ShouldBind(&in); err != nil {
		bindError(c, err)
		return
	}
	task, err := h.tasks.Create(c.Request.Context(), in)
	if err != nil {
		_ = c.Error(err)
		return
	}
	h.p.Done(c, http.StatusCreated, task, fmt.Sprintf("/tasks/%d", task.ID))
}

type statusInput struct {
	Status string `json:"status" form:"status"`
}

func (h *TaskHandler) UpdateStatus(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var in statusInput
	if err := c.ShouldBind(&in); err != nil {
		bindError(c, err)
		return
	}
	task, err := h.tasks.UpdateStatus(c.Request.Context(), id, in.Status)
	if err != nil {
		_ = c.Error(err)
		return
	}
	h.p.Done(c, http.StatusOK, task, fmt.Sprintf("/tasks/%d", task.ID))
}

func (h *TaskHandler) Delete(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := h.tasks.Delete(c.Request.Context(), id); err != nil {
		_ = c.Error(err)
		return
	}
	h.p.Done(c, http.StatusOK, gin.H{"id": id}, "/tasks")
}
