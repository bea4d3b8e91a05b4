package api

import (
	"log"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"ecoshower-backend/internal/model"
	"ecoshower-backend/internal/mw"
)

// RequireAdmin rejects non-admin requesters for the admin route group.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if mw.RequesterRole(c) != model.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			return
		}
		c.Next()
	}
}

// GetSystemStats handles GET /api/admin/stats. An optional userId query
// narrows the stats to a single user's fleet.
func (h *Handler) GetSystemStats(c *gin.Context) {
	ctx := c.Request.Context()

	users, err := h.store.Users.ListAll(ctx)
	if err != nil {
		abortWithError(c, err)
		return
	}
	devices, err := h.store.Devices.ListAll(ctx)
	if err != nil {
		abortWithError(c, err)
		return
	}
	sessions, err := h.store.Sessions.ListAll(ctx)
	if err != nil {
		abortWithError(c, err)
		return
	}

	if target := c.Query("userId"); target != "" {
		owned := make(map[string]bool)
		var filteredDevices []model.Device
		for _, d := range devices {
			if d.UserID == target {
				owned[d.ID] = true
				filteredDevices = append(filteredDevices, d)
			}
		}
		var filteredUsers []model.User
		for _, u := range users {
			if u.ID == target {
				filteredUsers = append(filteredUsers, u)
			}
		}
		var filteredSessions []model.Session
		for _, s := range sessions {
			if owned[s.DeviceID] {
				filteredSessions = append(filteredSessions, s)
			}
		}
		users, devices, sessions = filteredUsers, filteredDevices, filteredSessions
	}

	online := 0
	for _, d := range devices {
		if d.Status == "online" {
			online++
		}
	}

	totalWater := decimal.Zero
	type dayRow struct {
		Date     string          `json:"date"`
		Sessions int             `json:"sessions"`
		Water    decimal.Decimal `json:"water"`
	}
	days := make(map[string]*dayRow)
	for _, s := range sessions {
		day := s.StartTime.UTC().Format("2006-01-02")
		row, ok := days[day]
		if !ok {
			row = &dayRow{Date: day, Water: decimal.Zero}
			days[day] = row
		}
		row.Sessions++
		if s.Status == model.SessionStatusCompleted {
			row.Water = row.Water.Add(s.WaterUsed)
			totalWater = totalWater.Add(s.WaterUsed)
		}
	}
	activity := make([]dayRow, 0, len(days))
	for _, row := range days {
		activity = append(activity, *row)
	}
	sort.Slice(activity, func(i, j int) bool { return activity[i].Date < activity[j].Date })

	c.JSON(http.StatusOK, gin.H{
		"total_users":       len(users),
		"total_devices":     len(devices),
		"devices_online":    online,
		"total_sessions":    len(sessions),
		"total_water_saved": totalWater,
		"activity_data":     activity,
	})
}

// ListAllUsers handles GET /api/admin/users, annotating each user with their
// device and session counts.
func (h *Handler) ListAllUsers(c *gin.Context) {
	ctx := c.Request.Context()
	users, err := h.store.Users.ListAll(ctx)
	if err != nil {
		abortWithError(c, err)
		return
	}
	devices, err := h.store.Devices.ListAll(ctx)
	if err != nil {
		abortWithError(c, err)
		return
	}
	sessions, err := h.store.Sessions.ListAll(ctx)
	if err != nil {
		abortWithError(c, err)
		return
	}

	deviceCounts := make(map[string]int)
	for _, d := range devices {
		deviceCounts[d.UserID]++
	}
	sessionCounts := make(map[string]int)
	for _, s := range sessions {
		sessionCounts[s.UserID]++
	}

	type adminUser struct {
		model.User
		DevicesCount  int `json:"devices_count"`
		SessionsCount int `json:"sessions_count"`
	}
	out := make([]adminUser, 0, len(users))
	for _, u := range users {
		out = append(out, adminUser{
			User:          u,
			DevicesCount:  deviceCounts[u.ID],
			SessionsCount: sessionCounts[u.ID],
		})
	}
	c.JSON(http.StatusOK, gin.H{"users": out})
}

// ListAllDevices handles GET /api/admin/devices.
func (h *Handler) ListAllDevices(c *gin.Context) {
	devices, err := h.store.Devices.ListAll(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"devices": devices})
}

// DeleteUser handles DELETE /api/admin/users/:user_id. Children go first
// (sessions, then devices, then the user) and every step is an idempotent
// best-effort delete, so a crash mid-cascade is repaired by retrying.
func (h *Handler) DeleteUser(c *gin.Context) {
	ctx := c.Request.Context()
	targetID := c.Param("user_id")

	devices, err := h.store.Devices.ListByOwner(ctx, targetID)
	if err != nil {
		log.Printf("admin: listing devices for user %s cascade failed: %v", targetID, err)
	}
	for _, device := range devices {
		sessions, err := h.store.Sessions.ListByDevice(ctx, device.ID)
		if err != nil {
			log.Printf("admin: listing sessions for device %s cascade failed: %v", device.ID, err)
		}
		for _, s := range sessions {
			if err := h.store.Sessions.Delete(ctx, s.ID); err != nil {
				log.Printf("admin: cascade delete of session %s failed: %v", s.ID, err)
			}
		}
		if err := h.store.Devices.Delete(ctx, device.ID); err != nil {
			log.Printf("admin: cascade delete of device %s failed: %v", device.ID, err)
		}
	}

	if err := h.store.Users.Delete(ctx, targetID); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "user " + targetID + " and all associated data deleted"})
}

type updateRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// UpdateUserRole handles POST /api/admin/users/:user_id/role.
func (h *Handler) UpdateUserRole(c *gin.Context) {
	var req updateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Role != model.RoleAdmin && req.Role != model.RoleUser {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid role, must be admin or user"})
		return
	}

	if err := h.store.Users.Update(c.Request.Context(), c.Param("user_id"), map[string]any{"role": req.Role}); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "user role updated to " + req.Role})
}
