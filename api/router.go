// Package api assembles the ops HTTP server.
package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/leafsignal/menuwatch/api/handler"
	"github.com/leafsignal/menuwatch/api/middleware"
	"github.com/leafsignal/menuwatch/config"
	"github.com/leafsignal/menuwatch/scraper"
)

// NewRouter builds the gin engine: health and metrics are open, the
// run trigger sits behind bearer auth.
func NewRouter(cfg *config.Config, service *scraper.Service, gatherer prometheus.Gatherer) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	router := gin.New()
	router.Use(gin.Recovery())

	h := handler.New(service)

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", h.Health)
		v1.POST("/runs", middleware.BearerAuth(cfg.Auth.Token), h.TriggerRun)
	}

	return router
}
