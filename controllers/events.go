package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"portal-backend/models"
	"portal-backend/portal"
)

// -----------------------------
// Events
// -----------------------------

type CreateEventRequest struct {
	Title                string `json:"title" binding:"required"`
	Description          string `json:"description"`
	Venue                string `json:"venue"`
	SuggestedDate        string `json:"suggestedDate"` // expect RFC3339 or "YYYY-MM-DD"
	ExpectedParticipants *int   `json:"expectedParticipants" binding:"omitempty,min=0"`
}

type UpdateEventRequest struct {
	Title                *string `json:"title"`
	Description          *string `json:"description"`
	Venue                *string `json:"venue"`
	SuggestedDate        *string `json:"suggestedDate"`
	ExpectedParticipants *int    `json:"expectedParticipants" binding:"omitempty,min=0"`
	// Status "approved" applies the edit and approves in one step.
	Status *string `json:"status" binding:"omitempty,oneof=approved"`
}

type StatusRequest struct {
	Status string `json:"status" binding:"required,oneof=approved declined"`
}

type VoteRequest struct {
	Direction string `json:"direction" binding:"required,oneof=up down"`
}

type CommentRequest struct {
	Text string `json:"text"`
}

func (h *Handler) CreateEvent(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	var body CreateEventRequest
	if !bind(c, &body) {
		return
	}
	date, ok := parseDate(body.SuggestedDate)
	if !ok {
		jsonError(c, http.StatusBadRequest, "invalid date format (use RFC3339 or YYYY-MM-DD)")
		return
	}

	ev, err := h.svc.Propose(c.Request.Context(), actor, portal.EventInput{
		Title:                body.Title,
		Description:          body.Description,
		Venue:                body.Venue,
		SuggestedDate:        date,
		ExpectedParticipants: body.ExpectedParticipants,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, ev)
}

// ListEvents lists every event, optionally filtered with ?status=.
func (h *Handler) ListEvents(c *gin.Context) {
	var status *models.EventStatus
	if raw := c.Query("status"); raw != "" {
		s, err := models.ParseEventStatus(raw)
		if err != nil {
			jsonError(c, http.StatusBadRequest, err.Error())
			return
		}
		status = &s
	}
	events, err := h.svc.ListEvents(c.Request.Context(), status)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}

func (h *Handler) MyProposals(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	events, err := h.svc.MyProposals(c.Request.Context(), actor)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}

func (h *Handler) GetEvent(c *gin.Context) {
	ev, err := h.svc.GetEvent(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ev)
}

func (h *Handler) UpdateEvent(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	var body UpdateEventRequest
	if !bind(c, &body) {
		return
	}

	patch := models.EventPatch{
		Title:                body.Title,
		Description:          body.Description,
		Venue:                body.Venue,
		ExpectedParticipants: body.ExpectedParticipants,
	}
	if body.SuggestedDate != nil {
		date, ok := parseDate(*body.SuggestedDate)
		if !ok || date == nil {
			jsonError(c, http.StatusBadRequest, "invalid date format (use RFC3339 or YYYY-MM-DD)")
			return
		}
		patch.SuggestedDate = date
	}

	var (
		ev  *models.Event
		err error
	)
	if body.Status != nil {
		ev, err = h.svc.UpdateAndApprove(c.Request.Context(), actor, c.Param("id"), patch)
	} else {
		ev, err = h.svc.UpdateFields(c.Request.Context(), actor, c.Param("id"), patch)
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ev)
}

func (h *Handler) SetEventStatus(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	var body StatusRequest
	if !bind(c, &body) {
		return
	}
	ev, err := h.svc.Decide(c.Request.Context(), actor, c.Param("id"), models.EventStatus(body.Status))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ev)
}

// WithdrawEvent lets the proposer take back a pending proposal.
func (h *Handler) WithdrawEvent(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	if err := h.svc.Withdraw(c.Request.Context(), actor, c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "event withdrawn"})
}

func (h *Handler) DeleteEvent(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteEvent(c.Request.Context(), actor, c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "event deleted"})
}

func (h *Handler) Vote(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	var body VoteRequest
	if !bind(c, &body) {
		return
	}
	ev, err := h.svc.Vote(c.Request.Context(), actor, c.Param("id"), models.VoteDirection(body.Direction))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ev)
}

func (h *Handler) AddComment(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	var body CommentRequest
	if !bind(c, &body) {
		return
	}
	ev, err := h.svc.Comment(c.Request.Context(), actor, c.Param("id"), body.Text)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, ev)
}
