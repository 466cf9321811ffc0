package alerts

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Alert types
const (
	TypeExpiryReminder = "EXPIRY_REMINDER"
	TypePriceMove      = "PRICE_MOVE"
)

// Alert is a user-configured monitoring rule over one on-chain position.
// Threshold applies to PRICE_MOVE (percent move from baseline);
// HoursBeforeExpiry applies to EXPIRY_REMINDER. The monitor mutates
// LastTriggered and LastPrice; users mutate Enabled.
type Alert struct {
	gorm.Model        `json:"-"`
	AlertID           string     `gorm:"uniqueIndex" json:"id"`
	UserID            string     `gorm:"index" json:"user_id"`
	PositionID        uint64     `json:"position_id"`
	Type              string     `json:"type"`
	Enabled           bool       `json:"enabled"`
	Threshold         *float64   `json:"threshold,omitempty"`
	HoursBeforeExpiry *int       `json:"hours_before_expiry,omitempty"`
	LastTriggered     *time.Time `json:"last_triggered,omitempty"`
	LastPrice         *float64   `json:"last_price,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Notification is an append-only record emitted by the monitor; only the
// read flag is mutated afterwards.
type Notification struct {
	gorm.Model     `json:"-"`
	NotificationID string         `gorm:"uniqueIndex" json:"id"`
	UserID         string         `gorm:"index" json:"user_id"`
	AlertID        string         `json:"alert_id"`
	PositionID     uint64         `json:"position_id"`
	Type           string         `json:"type"`
	Title          string         `json:"title"`
	Message        string         `json:"message"`
	Read           bool           `json:"read"`
	SentAt         time.Time      `json:"sent_at"`
	Metadata       datatypes.JSON `json:"metadata,omitempty"`
}

// CreateAlertRequest is the client payload for creating an alert.
type CreateAlertRequest struct {
	PositionID        uint64   `json:"position_id"`
	Type              string   `json:"type" binding:"required"`
	Threshold         *float64 `json:"threshold,omitempty"`
	HoursBeforeExpiry *int     `json:"hours_before_expiry,omitempty"`
}

// UpdateAlertRequest is the client payload for updating an alert. Only the
// provided fields change.
type UpdateAlertRequest struct {
	Enabled           *bool    `json:"enabled,omitempty"`
	Threshold         *float64 `json:"threshold,omitempty"`
	HoursBeforeExpiry *int     `json:"hours_before_expiry,omitempty"`
}

// MonitorResult summarizes one monitor pass.
type MonitorResult struct {
	Success   bool      `json:"success"`
	Checked   int       `json:"checked"`
	Triggered int       `json:"triggered"`
	Failures  int       `json:"failures"`
	Timestamp time.Time `json:"timestamp"`
}
