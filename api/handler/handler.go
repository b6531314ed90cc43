// Package handler implements the ops API endpoints.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/leafsignal/menuwatch/models"
	"github.com/leafsignal/menuwatch/scraper"
)

// Version is stamped at build time.
var Version = "dev"

// Handler serves the ops endpoints over the running scraper service.
type Handler struct {
	service   *scraper.Service
	startedAt time.Time
	log       *slog.Logger
}

// New creates the handler.
func New(service *scraper.Service) *Handler {
	return &Handler{
		service:   service,
		startedAt: time.Now(),
		log:       slog.Default().With("component", "api"),
	}
}

// Health reports process status and the last batch roll-up.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, models.HealthResponse{
		Status:    "ok",
		Uptime:    time.Since(h.startedAt).Round(time.Second).String(),
		Running:   h.service.Running(),
		LastBatch: h.service.LastSummary(),
		Version:   Version,
	})
}

// TriggerRun starts a batch in the background. A batch already in
// flight is a conflict, not an error.
func (h *Handler) TriggerRun(c *gin.Context) {
	if h.service.Running() {
		c.JSON(http.StatusConflict, gin.H{"error": scraper.ErrRunInProgress.Error()})
		return
	}

	go func() {
		summary, err := h.service.Run(context.Background())
		if err != nil {
			if !errors.Is(err, scraper.ErrRunInProgress) {
				h.log.Error("triggered batch failed", "error", err)
			}
			return
		}
		h.log.Info("triggered batch finished", "batchId", summary.BatchID)
	}()

	c.JSON(http.StatusAccepted, models.RunResponse{Status: "started"})
}
