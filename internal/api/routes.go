package api

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func SetupRoutes(router *gin.Engine, handler *Handler) {
	router.GET("/health", handler.HealthCheck)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/tables", handler.ListTables)
		v1.POST("/tables/:table/update", handler.TriggerUpdate)
		v1.GET("/tables/:table/runs", handler.ListRuns)
	}
}

// NewRouter builds the engine with the standard middleware stack.
func NewRouter(handler *Handler, log zerolog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(LoggingMiddleware(log))
	router.Use(RecoveryMiddleware(log))
	SetupRoutes(router, handler)
	return router
}
