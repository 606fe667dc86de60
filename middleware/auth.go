// Package middleware holds the gin middleware shared by every route group.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"portal-backend/auth"
	"portal-backend/models"
	"portal-backend/portal"
)

const (
	actorKey  = "actor"
	claimsKey = "claims"
)

type TokenParser interface {
	Parse(token string) (*auth.Claims, error)
}

type UserLoader interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
}

func abort(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg, "code": code})
}

// BearerToken extracts the token from an "Authorization: Bearer ..." header.
func BearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	token = strings.TrimSpace(token)
	return token, ok && token != ""
}

// AuthMiddleware resolves the bearer token to the current account. The role
// is read from the store, not the token, so role changes apply immediately.
func AuthMiddleware(tokens TokenParser, revoker auth.Revoker, users UserLoader, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			abort(c, http.StatusUnauthorized, "Unauthorized", "Missing Authorization header")
			return
		}
		tokenString, ok := BearerToken(c)
		if !ok {
			abort(c, http.StatusUnauthorized, "Unauthorized", "Invalid token format")
			return
		}

		claims, err := tokens.Parse(tokenString)
		if err != nil {
			abort(c, http.StatusUnauthorized, "Unauthorized", "Invalid token")
			return
		}

		if revoker != nil && claims.ID != "" {
			revoked, err := revoker.IsRevoked(c.Request.Context(), claims.ID)
			if err != nil {
				// A revocation store outage must not lock everyone out.
				log.WithError(err).Warn("revocation check failed")
			}
			if revoked {
				abort(c, http.StatusUnauthorized, "Unauthorized", "Token revoked")
				return
			}
		}

		u, err := users.GetUser(c.Request.Context(), claims.UserID)
		switch {
		case errors.Is(err, portal.ErrNotFound):
			abort(c, http.StatusUnauthorized, "Unauthorized", "Account no longer exists")
			return
		case err != nil:
			log.WithError(err).Error("load current user")
			abort(c, http.StatusInternalServerError, portal.Code(err), "could not load account")
			return
		case !u.CanLogin():
			abort(c, http.StatusForbidden, "NotApproved", "Account awaiting approval")
			return
		}

		c.Set(claimsKey, claims)
		c.Set(actorKey, models.Actor{ID: u.ID, Role: u.Role})
		c.Next()
	}
}

// AdminOnly rejects non-admin actors. It must run after AuthMiddleware.
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFrom(c)
		if !ok {
			abort(c, http.StatusUnauthorized, "Unauthorized", "unauthorized")
			return
		}
		if !actor.IsAdmin() {
			abort(c, http.StatusForbidden, "Forbidden", "admin access required")
			return
		}
		c.Next()
	}
}

// ActorFrom returns the actor set by AuthMiddleware.
func ActorFrom(c *gin.Context) (models.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return models.Actor{}, false
	}
	actor, ok := v.(models.Actor)
	return actor, ok
}

// ClaimsFrom returns the parsed access token of the current request.
func ClaimsFrom(c *gin.Context) (*auth.Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*auth.Claims)
	return claims, ok
}
