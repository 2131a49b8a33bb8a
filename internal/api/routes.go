package api

import (
	"github.com/gin-gonic/gin"
)

func SetupRoutes(router *gin.Engine, handler *Handler) {
	api := router.Group("/api")
	{
		api.GET("/lots", handler.GetLots)
		api.GET("/lots/:id", handler.GetLot)
		api.GET("/stats", handler.GetStats)
		api.GET("/dedup/stats", handler.GetDedupStats)
		api.POST("/run", handler.TriggerRun)
		api.GET("/run/last", handler.GetLastRun)
	}
}
