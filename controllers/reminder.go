// controllers/reminder.go
package controllers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"clinicremind-backend/models"
	"clinicremind-backend/services"
	"clinicremind-backend/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	defaultSentLimit = 50
	maxSentLimit     = 500
)

type ReminderRunner interface {
	Run(ctx context.Context) (*services.Report, error)
}

type NotificationLister interface {
	ListNotifications(ctx context.Context, limit int) ([]models.NotificationRecord, error)
}

// ReminderController exposes the on-demand run and the sent log
type ReminderController struct {
	Runner        ReminderRunner
	Notifications NotificationLister
	Logger        *zap.Logger
}

// RunReminders runs the same cycle as the scheduler, synchronously. The run
// outlives a dropped client; reminder.run_timeout still bounds it.
func (rc *ReminderController) RunReminders(c *gin.Context) {
	report, err := rc.Runner.Run(context.WithoutCancel(c.Request.Context()))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, services.ErrRunInProgress) {
			status = http.StatusConflict
		}
		rc.logger().Error("error checking appointments", zap.Error(err))
		c.JSON(status, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Appointment check completed",
		"report":  report,
	})
}

// GetSentNotifications lists dedup markers, newest first
func (rc *ReminderController) GetSentNotifications(c *gin.Context) {
	limit := defaultSentLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			utils.RespondWithError(c, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = min(parsed, maxSentLimit)
	}

	records, err := rc.Notifications.ListNotifications(c.Request.Context(), limit)
	if err != nil {
		rc.logger().Error("failed to list notifications", zap.Error(err))
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to retrieve notifications")
		return
	}

	c.JSON(http.StatusOK, records)
}

func (rc *ReminderController) logger() *zap.Logger {
	if rc.Logger == nil {
		return zap.NewNop()
	}
	return rc.Logger
}
