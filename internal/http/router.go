// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"calroute/internal/http/handlers"
	"calroute/internal/http/middleware"
)

func NewRouter(plan *handlers.PlanHandler) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Logging(), middleware.Recovery())

	api := r.Group("/api")
	api.POST("/plan", plan.Plan)
	api.POST("/optimize_schedule", plan.OptimizeSchedule)
	api.POST("/dynamic_schedule", plan.DynamicSchedule)

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	return r
}
