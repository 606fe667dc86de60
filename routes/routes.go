// Package routes wires the HTTP surface onto a gin engine.
package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"portal-backend/controllers"
	"portal-backend/middleware"
)

func SetupRoutes(r *gin.Engine, h *controllers.Handler, authMW gin.HandlerFunc) {
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	api := r.Group("/api")

	// Public Routes
	public := api.Group("/auth")
	{
		public.POST("/register", h.Register)
		public.POST("/login", h.Login)
		public.POST("/google", h.GoogleLogin)
	}

	// Protected Routes
	authorized := api.Group("")
	authorized.Use(authMW)
	{
		// ACCOUNT
		authorized.GET("/auth/me", h.Me)
		authorized.PUT("/auth/profile", h.UpdateProfile)
		authorized.POST("/auth/logout", h.Logout)

		// EVENTS
		authorized.GET("/events", h.ListEvents)
		authorized.GET("/events/my-proposals", h.MyProposals)
		authorized.POST("/events", h.CreateEvent)
		authorized.GET("/events/:id", h.GetEvent)
		authorized.PUT("/events/:id", h.UpdateEvent)
		authorized.DELETE("/events/:id", h.DeleteEvent)
		authorized.POST("/events/:id/withdraw", h.WithdrawEvent)
		authorized.PUT("/events/:id/status", middleware.AdminOnly(), h.SetEventStatus)

		// VOTES & DISCUSSION
		authorized.POST("/events/:id/vote", h.Vote)
		authorized.POST("/events/:id/discussion", h.AddComment)

		// TASKS
		authorized.POST("/events/:id/tasks", middleware.AdminOnly(), h.CreateTask)
		authorized.POST("/events/:id/tasks/:taskId/complete", h.CompleteTask)
		authorized.PUT("/events/:id/tasks/:taskId", middleware.AdminOnly(), h.UpdateTaskStatus)
		authorized.GET("/tasks/pending", h.PendingTasks)

		// TEAM
		authorized.GET("/admin/users", h.ListTeam)

		// STATS
		authorized.GET("/stats/admin-stats", middleware.AdminOnly(), h.AdminStats)
		authorized.GET("/stats/member-stats", h.MemberStats)
	}

	admin := authorized.Group("/admin")
	admin.Use(middleware.AdminOnly())
	{
		admin.GET("/users/pending", h.ListPendingUsers)
		admin.POST("/users", h.CreateUser)
		admin.PUT("/users/:id/approve", h.ApproveUser)
		admin.PUT("/users/:id/role", h.SetUserRole)
		admin.DELETE("/users/:id", h.DeleteUser)
	}
}
