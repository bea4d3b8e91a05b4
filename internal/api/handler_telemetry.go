package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"ecoshower-backend/internal/telemetry"
)

type telemetryRequest struct {
	DeviceID    string          `json:"device_id" binding:"required"`
	Temperature decimal.Decimal `json:"temperature"`
	Status      string          `json:"status"`
	Timestamp   *time.Time      `json:"timestamp"`
}

// IngestTelemetry handles POST /ingest/telemetry, invoked by the device
// ingestion pipeline rather than end users.
func (h *Handler) IngestTelemetry(c *gin.Context) {
	var req telemetryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reading := telemetry.Reading{
		DeviceID:    req.DeviceID,
		Temperature: req.Temperature,
		Status:      req.Status,
	}
	if req.Timestamp != nil {
		reading.Timestamp = *req.Timestamp
	}

	if err := h.telemetry.Ingest(c.Request.Context(), reading); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "telemetry processed", "device_id": req.DeviceID})
}
