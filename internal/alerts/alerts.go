package alerts

import (
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nawasena/options-api/pkg/response"
)

// ErrValidation marks request parameters the caller can correct. Handlers
// map it to a 400 with the full message.
var ErrValidation = errors.New("invalid alert parameters")

// Service handles alert and notification CRUD for authenticated users.
type Service struct {
	db *Database
}

func NewService(gormDB *gorm.DB) *Service {
	return &Service{db: NewDatabase(gormDB)}
}

// GetDB exposes the store for the monitor.
func (s *Service) GetDB() *Database {
	return s.db
}

// CreateAlert validates and persists a new alert rule for a user.
func (s *Service) CreateAlert(userID string, req *CreateAlertRequest) (*Alert, error) {
	if err := validateAlertRequest(req); err != nil {
		return nil, err
	}

	alert := &Alert{
		AlertID:           uuid.New().String(),
		UserID:            userID,
		PositionID:        req.PositionID,
		Type:              req.Type,
		Enabled:           true,
		Threshold:         req.Threshold,
		HoursBeforeExpiry: req.HoursBeforeExpiry,
		CreatedAt:         time.Now(),
		UpdatedAt:         time.Now(),
	}

	if err := s.db.CreateAlert(alert); err != nil {
		return nil, fmt.Errorf("failed to create alert: %w", err)
	}
	return alert, nil
}

func validateAlertRequest(req *CreateAlertRequest) error {
	switch req.Type {
	case TypeExpiryReminder:
		if req.HoursBeforeExpiry == nil || *req.HoursBeforeExpiry <= 0 {
			return fmt.Errorf("%w: hours_before_expiry is required and must be positive for %s alerts", ErrValidation, TypeExpiryReminder)
		}
	case TypePriceMove:
		if req.Threshold == nil || *req.Threshold <= 0 {
			return fmt.Errorf("%w: threshold is required and must be positive for %s alerts", ErrValidation, TypePriceMove)
		}
	default:
		return fmt.Errorf("%w: invalid alert type %q, must be one of: EXPIRY_REMINDER, PRICE_MOVE", ErrValidation, req.Type)
	}
	return nil
}

// GetUserAlerts lists a user's alerts, newest first.
func (s *Service) GetUserAlerts(userID string) ([]Alert, error) {
	return s.db.GetUserAlerts(userID)
}

// GetAlert fetches one alert, enforcing ownership.
func (s *Service) GetAlert(alertID, userID string) (*Alert, error) {
	alert, err := s.db.GetAlert(alertID)
	if err != nil {
		return nil, err
	}
	if alert.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	return alert, nil
}

// UpdateAlert applies the provided fields to an owned alert.
func (s *Service) UpdateAlert(alertID, userID string, req *UpdateAlertRequest) (*Alert, error) {
	alert, err := s.GetAlert(alertID, userID)
	if err != nil {
		return nil, err
	}

	if req.Enabled != nil {
		alert.Enabled = *req.Enabled
	}
	if req.Threshold != nil {
		if *req.Threshold <= 0 {
			return nil, fmt.Errorf("%w: threshold must be positive", ErrValidation)
		}
		alert.Threshold = req.Threshold
	}
	if req.HoursBeforeExpiry != nil {
		if *req.HoursBeforeExpiry <= 0 {
			return nil, fmt.Errorf("%w: hours_before_expiry must be positive", ErrValidation)
		}
		alert.HoursBeforeExpiry = req.HoursBeforeExpiry
	}
	alert.UpdatedAt = time.Now()

	if err := s.db.UpdateAlert(alert); err != nil {
		return nil, fmt.Errorf("failed to update alert: %w", err)
	}
	return alert, nil
}

// DeleteAlert removes an owned alert.
func (s *Service) DeleteAlert(alertID, userID string) error {
	return s.db.DeleteAlert(alertID, userID)
}

// GetUserNotifications lists a user's notifications, newest first.
func (s *Service) GetUserNotifications(userID string) ([]Notification, error) {
	return s.db.GetUserNotifications(userID)
}

// MarkNotificationRead flips the read flag on an owned notification.
func (s *Service) MarkNotificationRead(notificationID, userID string) error {
	return s.db.MarkNotificationRead(notificationID, userID)
}

// GinHandlers contains HTTP handlers for alert and notification endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{service: service}
}

func userID(c *gin.Context) string {
	return c.GetString("userID")
}

// CreateAlertHandler handles POST requests to create alerts.
func (h *GinHandlers) CreateAlertHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := userID(c)
		if uid == "" {
			response.Unauthorized(c, "Missing user identity")
			return
		}

		var req CreateAlertRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		alert, err := h.service.CreateAlert(uid, &req)
		if err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		response.Success(c, alert)
	}
}

// ListAlertsHandler handles GET requests for a user's alerts.
func (h *GinHandlers) ListAlertsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := userID(c)
		if uid == "" {
			response.Unauthorized(c, "Missing user identity")
			return
		}

		alerts, err := h.service.GetUserAlerts(uid)
		response.Handle(c, alerts, err)
	}
}

// GetAlertHandler handles GET requests for a single alert.
func (h *GinHandlers) GetAlertHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		alert, err := h.service.GetAlert(c.Param("alert_id"), userID(c))
		response.Handle(c, alert, err)
	}
}

// UpdateAlertHandler handles PATCH requests to update an alert.
func (h *GinHandlers) UpdateAlertHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UpdateAlertRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		alert, err := h.service.UpdateAlert(c.Param("alert_id"), userID(c), &req)
		if errors.Is(err, ErrValidation) {
			response.BadRequest(c, err.Error())
			return
		}
		response.Handle(c, alert, err)
	}
}

// DeleteAlertHandler handles DELETE requests for an alert.
func (h *GinHandlers) DeleteAlertHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.service.DeleteAlert(c.Param("alert_id"), userID(c)); err != nil {
			response.NotFound(c, "Alert not found")
			return
		}
		response.Success(c, gin.H{"message": "alert deleted"})
	}
}

// ListNotificationsHandler handles GET requests for a user's notifications.
func (h *GinHandlers) ListNotificationsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := userID(c)
		if uid == "" {
			response.Unauthorized(c, "Missing user identity")
			return
		}

		notifications, err := h.service.GetUserNotifications(uid)
		response.Handle(c, notifications, err)
	}
}

// MarkNotificationReadHandler handles POST requests to mark a notification read.
func (h *GinHandlers) MarkNotificationReadHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.service.MarkNotificationRead(c.Param("notification_id"), userID(c)); err != nil {
			response.NotFound(c, "Notification not found")
			return
		}
		response.Success(c, gin.H{"message": "notification marked as read"})
	}
}
