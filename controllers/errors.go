package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"portal-backend/portal"
)

var statusByCode = map[string]int{
	"DuplicateUsername":  http.StatusConflict,
	"DuplicateEmail":     http.StatusConflict,
	"InvalidCredentials": http.StatusUnauthorized,
	"NotApproved":        http.StatusForbidden,
	"Forbidden":          http.StatusForbidden,
	"InvalidTransition":  http.StatusConflict,
	"NotAssigned":        http.StatusForbidden,
	"AlreadyCompleted":   http.StatusConflict,
	"EmptyAssignment":    http.StatusBadRequest,
	"EmptyComment":       http.StatusBadRequest,
	"InvalidPhoneFormat": http.StatusBadRequest,
	"NotFound":           http.StatusNotFound,
	"InvalidInput":       http.StatusBadRequest,
	"AdminExists":        http.StatusConflict,
	"IdentityUnverified": http.StatusUnauthorized,
	"StorageFailure":     http.StatusInternalServerError,
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return "Unauthorized"
	case http.StatusForbidden:
		return "Forbidden"
	case http.StatusNotFound:
		return "NotFound"
	case http.StatusBadRequest:
		return "InvalidInput"
	}
	return "Internal"
}

// fail answers with the status that matches a core failure. Internal
// details of storage failures are logged, not returned.
func (h *Handler) fail(c *gin.Context, err error) {
	code := portal.Code(err)
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.log.WithError(err).WithFields(logrus.Fields{
			"path":       c.FullPath(),
			"request_id": c.GetString("request_id"),
		}).Error("request failed")
		msg = "internal server error"
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": msg, "code": code})
}
