package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"ecoshower-backend/internal/errs"
	"ecoshower-backend/internal/model"
	"ecoshower-backend/internal/mw"
)

// GetProfile handles GET /api/users/me. A profile missing for an
// authenticated requester is created on the fly from the forwarded identity
// headers, so accounts provisioned upstream heal themselves here.
func (h *Handler) GetProfile(c *gin.Context) {
	ctx := c.Request.Context()
	user, err := h.store.Users.Get(ctx, mw.RequesterID(c))
	if err != nil && errors.Is(err, errs.ErrNotFound) {
		email := c.GetHeader("X-User-Email")
		if email == "" {
			abortWithError(c, err)
			return
		}
		name := c.GetHeader("X-User-Name")
		if name == "" {
			name = strings.SplitN(email, "@", 2)[0]
		}
		user = &model.User{
			ID:    mw.RequesterID(c),
			Email: email,
			Name:  name,
			Role:  model.RoleUser,
			System: model.SystemPrefs{
				TemperatureUnit: model.UnitCelsius,
				Language:        "he",
			},
		}
		if err := h.store.Users.Put(ctx, user); err != nil {
			abortWithError(c, err)
			return
		}
	} else if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

type updateProfileRequest struct {
	Name          *string                  `json:"name"`
	Notifications *model.NotificationPrefs `json:"notifications"`
	System        *model.SystemPrefs       `json:"system"`
}

// UpdateProfile handles PUT /api/users/me and PUT /api/settings.
func (h *Handler) UpdateProfile(c *gin.Context) {
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	fields := map[string]any{}
	if req.Name != nil {
		fields["name"] = *req.Name
	}
	if req.Notifications != nil {
		fields["notifications"] = encodePrefs(*req.Notifications)
	}
	if req.System != nil {
		fields["system"] = encodePrefs(*req.System)
	}

	if len(fields) > 0 {
		if err := h.store.Users.Update(c.Request.Context(), mw.RequesterID(c), fields); err != nil {
			abortWithError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "profile updated"})
}

// GetSettings handles GET /api/settings.
func (h *Handler) GetSettings(c *gin.Context) {
	user, err := h.store.Users.Get(c.Request.Context(), mw.RequesterID(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": gin.H{
		"user_id":       user.ID,
		"email":         user.Email,
		"name":          user.Name,
		"role":          user.Role,
		"notifications": user.Notifications,
		"system":        user.System,
	}})
}

type putSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
	Keys     struct {
		P256DH string `json:"p256dh" binding:"required"`
		Auth   string `json:"auth" binding:"required"`
	} `json:"keys" binding:"required"`
}

// PutSubscription handles PUT /api/users/me/subscription: it provisions the
// user's notification channel by persisting the push subscription as the
// opaque channel handle.
func (h *Handler) PutSubscription(c *gin.Context) {
	var req putSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ref, err := json.Marshal(req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if err := h.store.Users.Update(c.Request.Context(), mw.RequesterID(c), map[string]any{
		"notification_channel": string(ref),
	}); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusCreated)
}

// DeleteSubscription handles DELETE /api/users/me/subscription.
func (h *Handler) DeleteSubscription(c *gin.Context) {
	if err := h.store.Users.Update(c.Request.Context(), mw.RequesterID(c), map[string]any{
		"notification_channel": "",
	}); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetVAPIDPublicKey handles GET /api/vapid_public_key.
func (h *Handler) GetVAPIDPublicKey(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"public_key": h.vapidPublicKey})
}

// encodePrefs serializes a preference struct for a column update; the model
// uses the gorm JSON serializer, but map-based updates bypass it.
func encodePrefs(v any) string {
	encoded, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(encoded)
}
