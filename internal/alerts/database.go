package alerts

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) CreateAlert(alert *Alert) error {
	return d.db.Create(alert).Error
}

func (d *Database) GetAlert(alertID string) (*Alert, error) {
	var alert Alert
	if err := d.db.Where("alert_id = ?", alertID).First(&alert).Error; err != nil {
		return nil, err
	}
	return &alert, nil
}

func (d *Database) GetUserAlerts(userID string) ([]Alert, error) {
	var alerts []Alert
	if err := d.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&alerts).Error; err != nil {
		return nil, err
	}
	return alerts, nil
}

// GetEnabledAlerts returns every alert the monitor must evaluate.
func (d *Database) GetEnabledAlerts() ([]Alert, error) {
	var alerts []Alert
	if err := d.db.Where("enabled = ?", true).Find(&alerts).Error; err != nil {
		return nil, err
	}
	return alerts, nil
}

func (d *Database) UpdateAlert(alert *Alert) error {
	return d.db.Save(alert).Error
}

func (d *Database) DeleteAlert(alertID, userID string) error {
	result := d.db.Where("alert_id = ? AND user_id = ?", alertID, userID).Delete(&Alert{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errors.New("alert not found")
	}
	return nil
}

// MarkTriggered stamps the trigger time (and, for price alerts, the new
// baseline) on an alert.
func (d *Database) MarkTriggered(alert *Alert, at time.Time) error {
	alert.LastTriggered = &at
	return d.db.Save(alert).Error
}

func (d *Database) CreateNotification(n *Notification) error {
	return d.db.Create(n).Error
}

func (d *Database) GetUserNotifications(userID string) ([]Notification, error) {
	var notifications []Notification
	if err := d.db.Where("user_id = ?", userID).Order("sent_at DESC").Find(&notifications).Error; err != nil {
		return nil, err
	}
	return notifications, nil
}

func (d *Database) MarkNotificationRead(notificationID, userID string) error {
	result := d.db.Model(&Notification{}).
		Where("notification_id = ? AND user_id = ?", notificationID, userID).
		Update("read", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errors.New("notification not found")
	}
	return nil
}
