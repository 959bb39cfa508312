package handler

import (
	"pointsystem/internal/service"

	"github.com/gin-gonic/gin"
)

// SetupRouter 配置路由
func SetupRouter(pointService *service.PointService, mode string) *gin.Engine {
	if mode != "" {
		gin.SetMode(mode)
	}

	r := gin.New()

	r.Use(RecoveryMiddleware())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	h := NewHandler(pointService)

	api := r.Group("/api/v1")
	{
		point := api.Group("/point")
		{
			point.GET("/:id", h.GetPoint)
			point.GET("/:id/histories", h.GetHistory)
			point.GET("/:id/audit", h.Audit)
			point.PATCH("/:id/charge", h.Charge)
			point.PATCH("/:id/use", h.Use)
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
