package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"portal-backend/middleware"
	"portal-backend/models"
	"portal-backend/portal"
)

type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"omitempty,email"`
	Password string `json:"password" binding:"required"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type GoogleLoginRequest struct {
	Token string `json:"token" binding:"required"`
}

// Register creates an account. The very first account becomes an approved
// admin and is logged in straight away; everyone else waits for approval.
func (h *Handler) Register(c *gin.Context) {
	var body RegisterRequest
	if !bind(c, &body) {
		return
	}

	u, err := h.svc.Register(c.Request.Context(), portal.RegisterInput{
		Username: body.Username,
		Email:    body.Email,
		Password: body.Password,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	resp := gin.H{"user": u}
	if u.CanLogin() {
		sess, err := h.svc.Authenticate(c.Request.Context(), body.Username, body.Password)
		if err != nil {
			h.fail(c, err)
			return
		}
		resp["token"] = sess.Token
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) Login(c *gin.Context) {
	var body LoginRequest
	if !bind(c, &body) {
		return
	}
	sess, err := h.svc.Authenticate(c.Request.Context(), body.Username, body.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// GoogleLogin exchanges a Firebase ID token for a session. Unknown emails
// get a needsRegistration answer with the prefilled identity.
func (h *Handler) GoogleLogin(c *gin.Context) {
	var body GoogleLoginRequest
	if !bind(c, &body) {
		return
	}
	sess, reg, err := h.svc.AuthenticateByVerifiedIdentity(c.Request.Context(), body.Token)
	if err != nil {
		h.fail(c, err)
		return
	}
	if reg != nil {
		c.JSON(http.StatusOK, gin.H{
			"needsRegistration": true,
			"email":             reg.Email,
			"name":              reg.Name,
			"picture":           reg.Picture,
		})
		return
	}
	c.JSON(http.StatusOK, sess)
}

// Logout revokes the presented token until it would have expired anyway.
func (h *Handler) Logout(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		jsonError(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	if h.revoker != nil && claims.ID != "" {
		if err := h.revoker.Revoke(c.Request.Context(), claims.ID, time.Until(claims.ExpiresAt)); err != nil {
			h.log.WithError(err).Error("revoke token")
			jsonError(c, http.StatusInternalServerError, "could not log out")
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func (h *Handler) Me(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	u, err := h.svc.GetUser(c.Request.Context(), actor.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	var body models.ProfilePatch
	if !bind(c, &body) {
		return
	}
	u, err := h.svc.UpdateProfile(c.Request.Context(), actor, body)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}
