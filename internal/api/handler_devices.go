package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ecoshower-backend/internal/command"
	"ecoshower-backend/internal/model"
	"ecoshower-backend/internal/mw"
	"ecoshower-backend/internal/notification"
)

const deviceCodeLength = 12

// deviceStats is the aggregate recomputed from the sessions table; the
// stored device counters drift under concurrent writes, so list responses
// report the recomputed values instead.
type deviceStats struct {
	DeviceID      string
	TotalSessions int64
	TotalWater    decimal.Decimal
}

// ListDevices handles GET /api/devices.
func (h *Handler) ListDevices(c *gin.Context) {
	devices, err := h.store.Devices.ListByOwner(c.Request.Context(), mw.RequesterID(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	if len(devices) == 0 {
		c.JSON(http.StatusOK, gin.H{"devices": []model.Device{}})
		return
	}

	deviceIDs := make([]string, len(devices))
	for i, d := range devices {
		deviceIDs[i] = d.ID
	}

	var stats []deviceStats
	err = h.store.DB().WithContext(c.Request.Context()).
		Model(&model.Session{}).
		Select("device_id, COUNT(*) as total_sessions, COALESCE(SUM(water_used), 0) as total_water").
		Where("device_id IN ?", deviceIDs).
		Group("device_id").
		Scan(&stats).Error
	if err != nil {
		log.Printf("devices: stats aggregation failed, using stored counters: %v", err)
	} else {
		statMap := make(map[string]deviceStats, len(stats))
		for _, s := range stats {
			statMap[s.DeviceID] = s
		}
		for i := range devices {
			if s, ok := statMap[devices[i].ID]; ok {
				devices[i].TotalSessions = s.TotalSessions
				devices[i].TotalWaterSaved = s.TotalWater
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{"devices": devices})
}

// GetDevice handles GET /api/devices/:device_id.
func (h *Handler) GetDevice(c *gin.Context) {
	device, err := h.ownedDevice(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"device": device})
}

type addDeviceRequest struct {
	Name       string           `json:"name" binding:"required"`
	DeviceCode string           `json:"device_code" binding:"required"`
	TargetTemp *decimal.Decimal `json:"target_temp"`
}

// AddDevice handles POST /api/devices.
func (h *Handler) AddDevice(c *gin.Context) {
	var req addDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.DeviceCode) != deviceCodeLength {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid device code format"})
		return
	}

	target := decimal.NewFromInt(38)
	if req.TargetTemp != nil {
		target = *req.TargetTemp
	}

	device := &model.Device{
		ID:              uuid.NewString(),
		UserID:          mw.RequesterID(c),
		Name:            req.Name,
		DeviceCode:      req.DeviceCode,
		Status:          model.DeviceStatusReady,
		TargetTemp:      target,
		CurrentTemp:     decimal.Zero,
		TotalWaterSaved: decimal.Zero,
	}
	if err := h.store.Devices.Put(c.Request.Context(), device); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"device": device})
}

type updateDeviceRequest struct {
	Name       *string          `json:"name"`
	Status     *string          `json:"status"`
	TargetTemp *decimal.Decimal `json:"target_temp"`
}

// UpdateDevice handles PUT /api/devices/:device_id.
func (h *Handler) UpdateDevice(c *gin.Context) {
	device, err := h.ownedDevice(c)
	if err != nil {
		abortWithError(c, err)
		return
	}

	var req updateDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	fields := map[string]any{}
	if req.Name != nil {
		fields["name"] = *req.Name
	}
	if req.Status != nil {
		fields["status"] = *req.Status
	}
	if req.TargetTemp != nil {
		if req.TargetTemp.LessThan(decimal.NewFromInt(30)) || req.TargetTemp.GreaterThan(decimal.NewFromInt(45)) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "temperature must be 30-45°C"})
			return
		}
		fields["target_temp"] = *req.TargetTemp
	}

	if len(fields) > 0 {
		if err := h.store.Devices.Update(c.Request.Context(), device.ID, fields); err != nil {
			abortWithError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "device updated"})
}

// DeleteDevice handles DELETE /api/devices/:device_id. Sessions are removed
// first, then the device; each delete is idempotent so a re-run after a
// partial failure converges.
func (h *Handler) DeleteDevice(c *gin.Context) {
	device, err := h.ownedDevice(c)
	if err != nil {
		abortWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	sessions, err := h.store.Sessions.ListByDevice(ctx, device.ID)
	if err != nil {
		log.Printf("devices: listing sessions for cascade delete of %s failed: %v", device.ID, err)
	}
	for _, s := range sessions {
		if err := h.store.Sessions.Delete(ctx, s.ID); err != nil {
			log.Printf("devices: cascade delete of session %s failed: %v", s.ID, err)
		}
	}

	if err := h.store.Devices.Delete(ctx, device.ID); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "device and history deleted"})
}

type commandRequest struct {
	Command string `json:"command" binding:"required"`
}

// SendCommand handles POST /api/devices/:device_id/command.
func (h *Handler) SendCommand(c *gin.Context) {
	var req commandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cmd := command.Command(req.Command)
	if !cmd.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid command"})
		return
	}

	device, err := h.ownedDevice(c)
	if err != nil {
		abortWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	if err := h.commands.Publish(ctx, device.ID, cmd); err != nil {
		abortWithError(c, err)
		return
	}

	// Stopping the heater from the outside leaves the device idle; keep
	// the stored status in sync, best-effort.
	if cmd == command.StopHeating {
		if err := h.store.Devices.Update(ctx, device.ID, map[string]any{"status": model.DeviceStatusReady}); err != nil {
			log.Printf("devices: status sync after %s failed: %v", cmd, err)
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": "command " + req.Command + " sent"})
}

// MarkWaterReady handles POST /api/devices/:device_id/ready. It force-marks
// the device ready and notifies the owner, mirroring what a threshold
// crossing does. Kept for bench setups where the heater has no sensor.
func (h *Handler) MarkWaterReady(c *gin.Context) {
	device, err := h.ownedDevice(c)
	if err != nil {
		abortWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	if err := h.store.Devices.Update(ctx, device.ID, map[string]any{"status": model.DeviceStatusReady}); err != nil {
		abortWithError(c, err)
		return
	}

	msg := notification.WaterReady(device.Name, model.Celsius(device.TargetTemp))
	h.composer.Notify(ctx, device.UserID, msg, notification.TypeWaterReady, device.ID)

	c.JSON(http.StatusOK, gin.H{"message": "water marked as ready"})
}

// ownedDevice loads the device from the path parameter and enforces the
// owner-or-admin rule.
func (h *Handler) ownedDevice(c *gin.Context) (*model.Device, error) {
	device, err := h.store.Devices.Get(c.Request.Context(), c.Param("device_id"))
	if err != nil {
		return nil, err
	}
	if mw.RequesterRole(c) != model.RoleAdmin && device.UserID != mw.RequesterID(c) {
		return nil, errAccessDenied(mw.RequesterID(c))
	}
	return device, nil
}
