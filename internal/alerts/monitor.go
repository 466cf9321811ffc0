package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"

	"github.com/nawasena/options-api/internal/oracle"
	"github.com/nawasena/options-api/internal/types"
)

// PositionReader reads a single position from the on-chain registry.
type PositionReader interface {
	GetPosition(ctx context.Context, id uint64) (*types.Position, error)
}

// Monitor evaluates enabled alerts against fresh chain state and emits
// notifications on threshold crossings. Each alert is evaluated
// independently; one failure never aborts the pass.
type Monitor struct {
	db        *Database
	positions PositionReader
	prices    oracle.PriceSource
	now       func() time.Time
}

func NewMonitor(db *Database, positions PositionReader, prices oracle.PriceSource) *Monitor {
	return &Monitor{
		db:        db,
		positions: positions,
		prices:    prices,
		now:       time.Now,
	}
}

// Run performs one monitoring pass over every enabled alert.
func (m *Monitor) Run(ctx context.Context) MonitorResult {
	logger := log.With().Str("component", "alert_monitor").Logger()
	started := m.now()

	enabled, err := m.db.GetEnabledAlerts()
	if err != nil {
		logger.Error().Err(err).Msg("failed to load enabled alerts")
		return MonitorResult{Success: false, Timestamp: started}
	}

	result := MonitorResult{Success: true, Checked: len(enabled), Timestamp: started}
	for i := range enabled {
		alert := &enabled[i]
		triggered, err := m.evaluate(ctx, alert)
		if err != nil {
			result.Failures++
			logger.Error().Err(err).
				Str("alert_id", alert.AlertID).
				Str("type", alert.Type).
				Msg("alert evaluation failed")
			continue
		}
		if triggered {
			result.Triggered++
		}
	}

	logger.Info().
		Int("checked", result.Checked).
		Int("triggered", result.Triggered).
		Int("failures", result.Failures).
		Msg("alert monitor pass completed")

	return result
}

func (m *Monitor) evaluate(ctx context.Context, alert *Alert) (bool, error) {
	switch alert.Type {
	case TypeExpiryReminder:
		return m.evaluateExpiry(ctx, alert)
	case TypePriceMove:
		return m.evaluatePriceMove(ctx, alert)
	default:
		return false, fmt.Errorf("unknown alert type %q", alert.Type)
	}
}

// evaluateExpiry fires when hours-until-expiry drops to or below the
// configured threshold. The alert latches: once triggered it never re-arms.
func (m *Monitor) evaluateExpiry(ctx context.Context, alert *Alert) (bool, error) {
	if alert.LastTriggered != nil {
		return false, nil
	}
	if alert.HoursBeforeExpiry == nil {
		return false, fmt.Errorf("expiry alert %s has no hours_before_expiry", alert.AlertID)
	}

	pos, err := m.positions.GetPosition(ctx, alert.PositionID)
	if err != nil {
		return false, fmt.Errorf("failed to read position %d: %w", alert.PositionID, err)
	}

	hoursLeft := float64(pos.Expiry-m.now().Unix()) / 3600.0
	if hoursLeft > float64(*alert.HoursBeforeExpiry) {
		return false, nil
	}

	title := "Position expiring soon"
	message := fmt.Sprintf("Your %s position #%d expires in %.1f hours.", pos.UnderlyingAsset, pos.ID, math.Max(hoursLeft, 0))
	if err := m.notify(alert, title, message, map[string]interface{}{"hours_left": hoursLeft}); err != nil {
		return false, err
	}

	return true, m.db.MarkTriggered(alert, m.now())
}

// evaluatePriceMove compares the current oracle price against the stored
// baseline. The first observation only records the baseline; a crossing
// emits a notification and resets the baseline to the current price, so the
// next trigger needs a fresh move of the same magnitude.
func (m *Monitor) evaluatePriceMove(ctx context.Context, alert *Alert) (bool, error) {
	if alert.Threshold == nil {
		return false, fmt.Errorf("price alert %s has no threshold", alert.AlertID)
	}

	pos, err := m.positions.GetPosition(ctx, alert.PositionID)
	if err != nil {
		return false, fmt.Errorf("failed to read position %d: %w", alert.PositionID, err)
	}

	price, err := m.prices.GetPrice(ctx, pos.UnderlyingAsset)
	if err != nil {
		return false, fmt.Errorf("failed to read price for %s: %w", pos.UnderlyingAsset, err)
	}

	if alert.LastPrice == nil {
		alert.LastPrice = &price
		alert.UpdatedAt = m.now()
		return false, m.db.UpdateAlert(alert)
	}

	baseline := *alert.LastPrice
	change := (price - baseline) / baseline * 100.0
	if math.Abs(change) < *alert.Threshold {
		return false, nil
	}

	direction := "up"
	if change < 0 {
		direction = "down"
	}
	title := fmt.Sprintf("%s moved %.1f%%", pos.UnderlyingAsset, math.Abs(change))
	message := fmt.Sprintf("%s is %s %.1f%% from $%.2f to $%.2f.", pos.UnderlyingAsset, direction, math.Abs(change), baseline, price)
	if err := m.notify(alert, title, message, map[string]interface{}{
		"baseline": baseline,
		"price":    price,
		"change":   change,
	}); err != nil {
		return false, err
	}

	alert.LastPrice = &price
	return true, m.db.MarkTriggered(alert, m.now())
}

func (m *Monitor) notify(alert *Alert, title, message string, metadata map[string]interface{}) error {
	var meta datatypes.JSON
	if raw, err := json.Marshal(metadata); err == nil {
		meta = raw
	}

	n := &Notification{
		NotificationID: uuid.New().String(),
		UserID:         alert.UserID,
		AlertID:        alert.AlertID,
		PositionID:     alert.PositionID,
		Type:           alert.Type,
		Title:          title,
		Message:        message,
		SentAt:         m.now(),
		Metadata:       meta,
	}
	if err := m.db.CreateNotification(n); err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}
