package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"portal-backend/models"
	"portal-backend/portal"
)

// -----------------------------
// Users (admin)
// -----------------------------

type CreateUserRequest struct {
	RegisterRequest
	Role string `json:"role" binding:"omitempty,oneof=admin member"`
}

type RoleRequest struct {
	Role string `json:"role" binding:"required,oneof=admin member"`
}

// CreateUser adds an account on behalf of an admin. It still needs approval.
func (h *Handler) CreateUser(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	var body CreateUserRequest
	if !bind(c, &body) {
		return
	}
	role := models.RoleMember
	if body.Role != "" {
		role = models.Role(body.Role)
	}
	u, err := h.svc.CreateUser(c.Request.Context(), actor, portal.CreateUserInput{
		RegisterInput: portal.RegisterInput{
			Username: body.Username,
			Email:    body.Email,
			Password: body.Password,
		},
		Role: role,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

func (h *Handler) ListPendingUsers(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	users, err := h.svc.ListPendingUsers(c.Request.Context(), actor)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// ListTeam is the member directory: every approved account.
func (h *Handler) ListTeam(c *gin.Context) {
	users, err := h.svc.ListTeam(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (h *Handler) ApproveUser(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	u, err := h.svc.Approve(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *Handler) SetUserRole(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	var body RoleRequest
	if !bind(c, &body) {
		return
	}
	u, err := h.svc.SetRole(c.Request.Context(), actor, c.Param("id"), models.Role(body.Role))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *Handler) DeleteUser(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	if err := h.svc.RemoveUser(c.Request.Context(), actor, c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "user removed"})
}
