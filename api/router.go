package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func SetupRouter(h *Handler, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(TraceID(), RequestLogger(logger), gin.Recovery())

	r.GET("/health", h.Health)
	r.POST("/tasks", h.CreateTask)
	r.GET("/tasks/:taskID", h.GetTask)

	return r
}
