package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/abhisek/traverse/internal/logger"
)

// UserHeader carries the caller's user ID. Authentication happens in front
// of this service.
const UserHeader = "X-User-ID"

const userKey = "user_id"

var errMissingUser = errors.New("missing " + UserHeader + " header")

// RouterConfig wires the router.
type RouterConfig struct {
	Handler *Handler
	Logger  *logger.Logger

	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

// NewRouter builds the gin engine.
func NewRouter(cfg RouterConfig) *gin.Engine {
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log))

	router.GET("/healthz", HealthCheck)
	if cfg.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	h := cfg.Handler
	api := router.Group("/api")
	api.Use(requireUser())
	{
		api.POST("/paths", h.CreatePath)
		api.GET("/paths", h.ListPaths)
		api.GET("/paths/:id", h.GetPath)
		api.DELETE("/paths/:id", h.DeletePath)
		api.GET("/paths/:id/graph", h.Graph)
		api.GET("/paths/:id/progress", h.GetProgress)
		api.POST("/paths/:id/nodes/:node/challenge", h.IssueChallenge)
		api.POST("/challenges/:id/submissions", h.SubmitAnswer)
		api.POST("/nodes/:node/remediate", h.Remediate)
	}
	return router
}

func requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(UserHeader)
		if id == "" {
			respondError(c, http.StatusUnauthorized, "unauthorized", errMissingUser)
			return
		}
		c.Set(userKey, id)
		c.Next()
	}
}

func userID(c *gin.Context) string {
	return c.GetString(userKey)
}

func requestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
		)
	}
}
