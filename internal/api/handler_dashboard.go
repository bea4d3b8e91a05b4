package api

import (
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"ecoshower-backend/internal/model"
	"ecoshower-backend/internal/mw"
)

// GetSummary handles GET /api/dashboard/summary: all-time savings totals
// over the requester's completed sessions.
func (h *Handler) GetSummary(c *gin.Context) {
	ctx := c.Request.Context()
	devices, err := h.store.Devices.ListByOwner(ctx, mw.RequesterID(c))
	if err != nil {
		abortWithError(c, err)
		return
	}

	totalWater := decimal.Zero
	totalMoney := decimal.Zero
	todayUsage := decimal.Zero
	sessionCount := 0
	todayStart := time.Now().UTC().Truncate(24 * time.Hour)

	for _, device := range devices {
		sessions, err := h.store.Sessions.ListByDevice(ctx, device.ID)
		if err != nil {
			abortWithError(c, err)
			return
		}
		for _, s := range sessions {
			if s.Status != model.SessionStatusCompleted {
				continue
			}
			sessionCount++
			totalWater = totalWater.Add(s.WaterUsed)
			totalMoney = totalMoney.Add(s.MoneySaved)
			if !s.StartTime.Before(todayStart) {
				todayUsage = todayUsage.Add(s.WaterUsed)
			}
		}
	}

	avg := decimal.Zero
	if sessionCount > 0 {
		avg = totalWater.Div(decimal.NewFromInt(int64(sessionCount)))
	}

	c.JSON(http.StatusOK, gin.H{
		"total_water_saved": totalWater,
		"total_money_saved": totalMoney,
		"sessions_count":    sessionCount,
		"avg_per_session":   avg,
		"today_usage":       todayUsage,
		"period":            "all_time",
	})
}

// GetHistory handles GET /api/dashboard/history: the requester's sessions
// across all their devices, most recent first.
func (h *Handler) GetHistory(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	ctx := c.Request.Context()
	devices, err := h.store.Devices.ListByOwner(ctx, mw.RequesterID(c))
	if err != nil {
		abortWithError(c, err)
		return
	}

	var sessions []model.Session
	for _, device := range devices {
		perDevice, err := h.store.Sessions.ListByDevice(ctx, device.ID)
		if err != nil {
			abortWithError(c, err)
			return
		}
		for _, s := range perDevice {
			if s.DeviceName == "" {
				s.DeviceName = device.Name
			}
			sessions = append(sessions, s)
		}
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartTime.After(sessions[j].StartTime)
	})
	if len(sessions) > limit {
		sessions = sessions[:limit]
	}

	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

// GetRealtime handles GET /api/dashboard/realtime/:device_id: the device
// record plus its most recent telemetry window.
func (h *Handler) GetRealtime(c *gin.Context) {
	device, err := h.ownedDevice(c)
	if err != nil {
		abortWithError(c, err)
		return
	}

	since := time.Now().UTC().Add(-5 * time.Minute)
	readings, err := h.store.Telemetry.RecentByDevice(c.Request.Context(), device.ID, since, 10)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"device": device, "telemetry": readings})
}
