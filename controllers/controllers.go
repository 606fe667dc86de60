// Package controllers holds the gin handlers. Handlers translate HTTP
// requests into portal operations and core failures into status codes.
package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"portal-backend/auth"
	"portal-backend/middleware"
	"portal-backend/models"
	"portal-backend/portal"
)

type Handler struct {
	svc     *portal.Service
	revoker auth.Revoker
	log     *logrus.Logger
}

func New(svc *portal.Service, revoker auth.Revoker, log *logrus.Logger) *Handler {
	return &Handler{svc: svc, revoker: revoker, log: log}
}

// -----------------------------
// Helper functions
// -----------------------------

func jsonError(c *gin.Context, code int, msg string) {
	c.JSON(code, gin.H{"error": msg, "code": codeForStatus(code)})
}

// getActor expects AuthMiddleware to have set the actor. If not present -> unauthorized.
func getActor(c *gin.Context) (models.Actor, bool) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		jsonError(c, http.StatusUnauthorized, "unauthorized")
	}
	return actor, ok
}

func bind(c *gin.Context, body any) bool {
	if err := c.ShouldBindJSON(body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + describe(err), "code": "InvalidInput"})
		return false
	}
	return true
}

// describe turns validator failures into "field: rule" messages.
func describe(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err.Error()
	}
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		msgs = append(msgs, fmt.Sprintf("%s: %s", fieldName(fe), rule))
	}
	return strings.Join(msgs, ", ")
}

func fieldName(fe validator.FieldError) string {
	name := fe.Field()
	if name == "" {
		return fe.StructField()
	}
	return strings.ToLower(name[:1]) + name[1:]
}

// parseDate accepts RFC3339 or YYYY-MM-DD. An empty string means no date.
func parseDate(s string) (*time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t, err = time.Parse("2006-01-02", s)
		if err != nil {
			return nil, false
		}
	}
	t = t.UTC()
	return &t, true
}
