package routes

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portal-backend/auth"
	"portal-backend/controllers"
	"portal-backend/database/memory"
	"portal-backend/middleware"
	"portal-backend/portal"
)

type api struct {
	t *testing.T
	r *gin.Engine
}

func newAPI(t *testing.T) *api {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	tokens := auth.NewTokenIssuer("test-secret", time.Hour)
	svc := portal.New(memory.Stores(), auth.Credentials{BcryptHasher: auth.BcryptHasher{Cost: 4}, Tokens: tokens})
	revoker := auth.NewMemoryRevoker()

	r := gin.New()
	r.Use(middleware.RequestID())
	SetupRoutes(r, controllers.New(svc, revoker, log), middleware.AuthMiddleware(tokens, revoker, svc, log))
	return &api{t: t, r: r}
}

func (a *api) do(method, path, token string, body any) (int, map[string]any) {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.r.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 && w.Body.Bytes()[0] == '{' {
		require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w.Code, out
}

func (a *api) list(path, token string) []any {
	a.t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	a.r.ServeHTTP(w, req)
	require.Equal(a.t, http.StatusOK, w.Code, w.Body.String())
	var out []any
	require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func (a *api) login(username, password string) string {
	a.t.Helper()
	code, body := a.do(http.MethodPost, "/api/auth/login", "", gin.H{"username": username, "password": password})
	require.Equal(a.t, http.StatusOK, code, body)
	return body["token"].(string)
}

func TestHealth(t *testing.T) {
	a := newAPI(t)
	code, body := a.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestOnboardingFlow(t *testing.T) {
	a := newAPI(t)

	code, body := a.do(http.MethodPost, "/api/auth/register", "", gin.H{"username": "alice", "email": "alice@example.com", "password": "secret1"})
	require.Equal(t, http.StatusCreated, code, body)
	adminToken, _ := body["token"].(string)
	require.NotEmpty(t, adminToken, "first account is logged in straight away")
	assert.Equal(t, "admin", body["user"].(map[string]any)["role"])
	assert.NotContains(t, body["user"], "passwordHash")

	code, body = a.do(http.MethodPost, "/api/auth/register", "", gin.H{"username": "bob", "password": "secret2"})
	require.Equal(t, http.StatusCreated, code)
	assert.NotContains(t, body, "token")
	bobID := body["user"].(map[string]any)["id"].(string)

	code, body = a.do(http.MethodPost, "/api/auth/register", "", gin.H{"username": "bob", "password": "x"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "DuplicateUsername", body["code"])

	code, body = a.do(http.MethodPost, "/api/auth/login", "", gin.H{"username": "bob", "password": "secret2"})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "NotApproved", body["code"])

	code, body = a.do(http.MethodPost, "/api/auth/login", "", gin.H{"username": "bob", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "InvalidCredentials", body["code"])

	pending := a.list("/api/admin/users/pending", adminToken)
	require.Len(t, pending, 1)

	code, _ = a.do(http.MethodPut, "/api/admin/users/"+bobID+"/approve", adminToken, nil)
	require.Equal(t, http.StatusOK, code)

	bobToken := a.login("bob", "secret2")
	code, body = a.do(http.MethodGet, "/api/auth/me", bobToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "bob", body["username"])

	assert.Len(t, a.list("/api/admin/users", bobToken), 2)

	code, body = a.do(http.MethodGet, "/api/admin/users/pending", bobToken, nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "Forbidden", body["code"])

	code, body = a.do(http.MethodPut, "/api/auth/profile", bobToken, gin.H{"contact": "123"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "InvalidPhoneFormat", body["code"])

	code, body = a.do(http.MethodPut, "/api/auth/profile", bobToken, gin.H{"name": "Bob", "contact": "+1 5551234567"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Bob", body["profile"].(map[string]any)["name"])

	code, _ = a.do(http.MethodPost, "/api/auth/logout", bobToken, nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = a.do(http.MethodGet, "/api/auth/me", bobToken, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestEventLifecycle(t *testing.T) {
	a := newAPI(t)
	code, body := a.do(http.MethodPost, "/api/auth/register", "", gin.H{"username": "alice", "password": "secret1"})
	require.Equal(t, http.StatusCreated, code)
	admin := body["token"].(string)

	code, body = a.do(http.MethodPost, "/api/admin/users", admin, gin.H{"username": "bob", "password": "secret2"})
	require.Equal(t, http.StatusCreated, code, body)
	assert.Equal(t, false, body["isApproved"])
	bobID := body["id"].(string)
	code, _ = a.do(http.MethodPut, "/api/admin/users/"+bobID+"/approve", admin, nil)
	require.Equal(t, http.StatusOK, code)
	bob := a.login("bob", "secret2")

	code, body = a.do(http.MethodPost, "/api/events", bob, gin.H{"title": "Hack Night", "suggestedDate": "2026-05-01", "venue": "Lab"})
	require.Equal(t, http.StatusCreated, code, body)
	assert.Equal(t, "pending", body["status"])
	id := body["id"].(string)

	code, body = a.do(http.MethodPost, "/api/events", bob, gin.H{"title": "Bad date", "suggestedDate": "May first"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = a.do(http.MethodPost, "/api/events", bob, gin.H{"description": "no title"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "InvalidInput", body["code"])
	assert.Contains(t, body["error"], "title: required")

	code, body = a.do(http.MethodPost, "/api/events/"+id+"/vote", admin, gin.H{"direction": "up"})
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["upvotes"], 1)

	code, _ = a.do(http.MethodPost, "/api/events/"+id+"/vote", admin, gin.H{"direction": "sideways"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = a.do(http.MethodPost, "/api/events/"+id+"/discussion", bob, gin.H{"text": "   "})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "EmptyComment", body["code"])

	code, body = a.do(http.MethodPost, "/api/events/"+id+"/discussion", bob, gin.H{"text": "pizza?"})
	require.Equal(t, http.StatusCreated, code)
	assert.Len(t, body["discussion"], 1)

	code, _ = a.do(http.MethodPut, "/api/events/"+id+"/status", bob, gin.H{"status": "approved"})
	assert.Equal(t, http.StatusForbidden, code)

	code, body = a.do(http.MethodPut, "/api/events/"+id, admin, gin.H{"title": "Hack Night 2.0", "status": "approved"})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "approved", body["status"])
	assert.Equal(t, "Hack Night 2.0", body["title"])

	code, body = a.do(http.MethodPut, "/api/events/"+id+"/status", admin, gin.H{"status": "declined"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "InvalidTransition", body["code"])

	code, body = a.do(http.MethodPut, "/api/events/"+id, bob, gin.H{"title": "mine again"})
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = a.do(http.MethodPost, "/api/events/"+id+"/withdraw", bob, nil)
	assert.Equal(t, http.StatusConflict, code)

	approved := a.list("/api/events?status=approved", bob)
	assert.Len(t, approved, 1)
	code, _ = a.do(http.MethodGet, "/api/events?status=archived", bob, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Len(t, a.list("/api/events/my-proposals", bob), 1)

	code, body = a.do(http.MethodPost, "/api/events/"+id+"/tasks", admin, gin.H{"title": "Order pizza", "assignedTo": []string{bobID}, "deadline": "2026-04-30"})
	require.Equal(t, http.StatusCreated, code, body)
	taskID := body["id"].(string)

	code, _ = a.do(http.MethodPost, "/api/events/"+id+"/tasks", admin, gin.H{"title": "Nobody", "assignedTo": []string{}})
	assert.Equal(t, http.StatusBadRequest, code)

	tasks := a.list("/api/tasks/pending", bob)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Hack Night 2.0", tasks[0].(map[string]any)["eventTitle"])

	code, body = a.do(http.MethodGet, "/api/stats/member-stats", bob, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["tasksPending"])

	code, body = a.do(http.MethodPost, "/api/events/"+id+"/tasks/"+taskID+"/complete", bob, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "completed", body["status"])

	code, body = a.do(http.MethodPost, "/api/events/"+id+"/tasks/"+taskID+"/complete", bob, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "AlreadyCompleted", body["code"])

	code, body = a.do(http.MethodPut, "/api/events/"+id+"/tasks/"+taskID, admin, gin.H{"status": "pending"})
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, body["completedBy"])

	code, body = a.do(http.MethodGet, "/api/stats/admin-stats", admin, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["activeEvents"])
	assert.Equal(t, float64(2), body["totalUsers"])

	code, _ = a.do(http.MethodGet, "/api/stats/admin-stats", bob, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = a.do(http.MethodDelete, "/api/events/"+id, admin, nil)
	require.Equal(t, http.StatusOK, code)
	code, body = a.do(http.MethodGet, "/api/events/"+id, bob, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NotFound", body["code"])
}

func TestRoleChangeAppliesImmediately(t *testing.T) {
	a := newAPI(t)
	_, body := a.do(http.MethodPost, "/api/auth/register", "", gin.H{"username": "alice", "password": "secret1"})
	admin := body["token"].(string)
	_, body = a.do(http.MethodPost, "/api/admin/users", admin, gin.H{"username": "bob", "password": "secret2"})
	bobID := body["id"].(string)
	a.do(http.MethodPut, "/api/admin/users/"+bobID+"/approve", admin, nil)
	bob := a.login("bob", "secret2")

	code, _ := a.do(http.MethodGet, "/api/stats/admin-stats", bob, nil)
	require.Equal(t, http.StatusForbidden, code)

	code, body = a.do(http.MethodPut, "/api/admin/users/"+bobID+"/role", admin, gin.H{"role": "admin"})
	require.Equal(t, http.StatusOK, code, body)

	code, _ = a.do(http.MethodGet, "/api/stats/admin-stats", bob, nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = a.do(http.MethodPut, "/api/admin/users/"+bobID+"/role", admin, gin.H{"role": "owner"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = a.do(http.MethodDelete, "/api/admin/users/"+bobID, admin, nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = a.do(http.MethodGet, "/api/auth/me", bob, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestGoogleLoginDisabled(t *testing.T) {
	a := newAPI(t)
	code, body := a.do(http.MethodPost, "/api/auth/google", "", gin.H{"token": "whatever"})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "IdentityUnverified", body["code"])
}

func TestRegisterOverlongPassword(t *testing.T) {
	a := newAPI(t)
	code, body := a.do(http.MethodPost, "/api/auth/register", "", gin.H{"username": "alice", "password": strings.Repeat("p", 80)})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "InvalidInput", body["code"])
}
