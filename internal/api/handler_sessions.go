package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"ecoshower-backend/internal/mw"
	"ecoshower-backend/internal/session"
)

type startSessionRequest struct {
	TargetTemp *decimal.Decimal `json:"target_temp"`
	Duration   *int             `json:"duration"`
}

// StartSession handles POST /api/devices/:device_id/start.
func (h *Handler) StartSession(c *gin.Context) {
	var req startSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	created, err := h.sessions.Start(c.Request.Context(), session.StartParams{
		DeviceID:        c.Param("device_id"),
		RequesterID:     mw.RequesterID(c),
		RequesterRole:   mw.RequesterRole(c),
		TargetTemp:      req.TargetTemp,
		PlannedDuration: req.Duration,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"session": created})
}

type stopSessionRequest struct {
	SessionID string           `json:"session_id"`
	Duration  *decimal.Decimal `json:"duration"`
}

// StopSession handles POST /api/devices/:device_id/stop.
func (h *Handler) StopSession(c *gin.Context) {
	var req stopSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	result, err := h.sessions.Stop(c.Request.Context(), session.StopParams{
		DeviceID:             c.Param("device_id"),
		RequesterID:          mw.RequesterID(c),
		RequesterRole:        mw.RequesterRole(c),
		SessionID:            req.SessionID,
		ClientElapsedSeconds: req.Duration,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	if !result.Stopped {
		c.JSON(http.StatusOK, gin.H{"message": "heating stopped (no active session found)", "result": result})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "session stopped", "result": result})
}

// DeleteSession handles DELETE /api/sessions/:session_id.
func (h *Handler) DeleteSession(c *gin.Context) {
	err := h.sessions.Delete(c.Request.Context(), c.Param("session_id"), mw.RequesterID(c), mw.RequesterRole(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "session deleted and stats updated"})
}
