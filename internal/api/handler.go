package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"ecoshower-backend/internal/command"
	"ecoshower-backend/internal/errs"
	"ecoshower-backend/internal/notification"
	"ecoshower-backend/internal/session"
	"ecoshower-backend/internal/store"
	"ecoshower-backend/internal/telemetry"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store          *store.Store
	sessions       *session.Manager
	telemetry      *telemetry.Processor
	commands       command.Publisher
	composer       *notification.Composer
	vapidPublicKey string
}

// NewHandler creates a new API handler.
func NewHandler(s *store.Store, sessions *session.Manager, processor *telemetry.Processor, commands command.Publisher, composer *notification.Composer, vapidPublicKey string) *Handler {
	return &Handler{
		store:          s,
		sessions:       sessions,
		telemetry:      processor,
		commands:       commands,
		composer:       composer,
		vapidPublicKey: vapidPublicKey,
	}
}

// errAccessDenied builds the ownership failure for API-level checks.
func errAccessDenied(requesterID string) error {
	return errs.AccessDeniedf("user %s does not own this resource", requesterID)
}

// abortWithError maps the core error taxonomy to HTTP status codes.
func abortWithError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, errs.ErrAccessDenied):
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, errs.ErrValidation):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
