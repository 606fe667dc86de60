package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"portal-backend/models"
	"portal-backend/portal"
)

// -----------------------------
// Tasks
// -----------------------------

type CreateTaskRequest struct {
	Title      string   `json:"title" binding:"required"`
	AssignedTo []string `json:"assignedTo" binding:"required,min=1,dive,required"`
	Deadline   string   `json:"deadline"`
}

type TaskStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=pending completed"`
}

// CreateTask adds a task to an event. Retrying the request creates a
// second task.
func (h *Handler) CreateTask(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	var body CreateTaskRequest
	if !bind(c, &body) {
		return
	}
	deadline, ok := parseDate(body.Deadline)
	if !ok {
		jsonError(c, http.StatusBadRequest, "invalid deadline format (use RFC3339 or YYYY-MM-DD)")
		return
	}

	task, err := h.svc.AddTask(c.Request.Context(), actor, c.Param("id"), portal.TaskInput{
		Title:      body.Title,
		AssignedTo: body.AssignedTo,
		Deadline:   deadline,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

// CompleteTask records the caller's part of a task as done.
func (h *Handler) CompleteTask(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	task, err := h.svc.RecordCompletion(c.Request.Context(), actor, c.Param("id"), c.Param("taskId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *Handler) UpdateTaskStatus(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	var body TaskStatusRequest
	if !bind(c, &body) {
		return
	}
	task, err := h.svc.SetTaskStatus(c.Request.Context(), actor, c.Param("id"), c.Param("taskId"), models.TaskStatus(body.Status))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *Handler) PendingTasks(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	tasks, err := h.svc.PendingTasks(c.Request.Context(), actor)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}
