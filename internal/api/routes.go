package api

import (
	"github.com/gin-gonic/gin"

	"github.com/rakhimov-me/smax-ai/internal/telemetry"
)

// SetupRoutes configures all API routes on the router.
func SetupRoutes(router *gin.Engine, handler *Handler, tel *telemetry.Provider, rps int) {
	router.GET("/health", handler.HealthCheck)
	router.GET("/ready", handler.ReadyCheck)
	if tel != nil {
		router.GET("/metrics", gin.WrapH(tel.Handler()))
	}

	v1 := router.Group("/api/v1")
	if rps > 0 {
		v1.Use(RateLimit(rps))
	}

	v1.POST("/predict", handler.Predict) // POST /api/v1/predict

	ingest := v1.Group("/ingest")
	ingest.POST("", handler.Ingest)        // POST /api/v1/ingest
	ingest.POST("/reload", handler.Reload) // POST /api/v1/ingest/reload

	mdl := v1.Group("/model")
	mdl.POST("/save", handler.SaveModel)        // POST /api/v1/model/save
	mdl.POST("/load", handler.LoadModel)        // POST /api/v1/model/load
	mdl.POST("/clear", handler.ClearModel)      // POST /api/v1/model/clear
	mdl.PUT("/threshold", handler.SetThreshold) // PUT /api/v1/model/threshold

	stats := v1.Group("/stats")
	stats.GET("", handler.GetStats)                       // GET /api/v1/stats
	stats.GET("/predictions", handler.GetPredictionStats) // GET /api/v1/stats/predictions

	v1.GET("/data", handler.GetData) // GET /api/v1/data
}
