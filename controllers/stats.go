package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) AdminStats(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	stats, err := h.svc.AdminStats(c.Request.Context(), actor)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) MemberStats(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	stats, err := h.svc.MemberStats(c.Request.Context(), actor)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
