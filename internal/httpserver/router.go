package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"inboxintel/internal/handler"
	"inboxintel/web"
)

type Router struct {
	Engine *gin.Engine
}

func NewRouter(
	authHandler *handler.AuthHandler,
	syncHandler *handler.SyncHandler,
	taskHandler *handler.TaskHandler,
	resolver SessionResolver,
	db *pgxpool.Pool,
) *Router {
	r := gin.Default()
	r.Use(MetricsMiddleware())

	// Health endpoints
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(200)
	})
	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c, 1*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			c.JSON(500, gin.H{"status": "db_not_ready", "error": err.Error()})
			return
		}

		c.JSON(200, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Dashboard
	r.GET("/", func(c *gin.Context) {
		page, err := web.FS.ReadFile("index.html")
		if err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", page)
	})

	// Public
	r.GET("/auth/login", authHandler.Login)
	r.GET("/auth/callback", authHandler.Callback)
	r.GET("/auth/logout", authHandler.Logout)

	// Protected
	protected := r.Group("/")
	protected.Use(AuthMiddleware(resolver))
	{
		protected.GET("/auth/me", authHandler.Me)
		protected.POST("/sync", syncHandler.Sync)
		protected.GET("/tasks", taskHandler.ListTasks)
		protected.POST("/tasks", taskHandler.CreateTasks)
		protected.PATCH("/tasks", taskHandler.CompleteTask)
	}

	return &Router{Engine: r}
}

func (r *Router) Run(port string) error {
	return r.Engine.Run(port)
}
