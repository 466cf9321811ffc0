package alerts

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/nawasena/options-api/internal/types"
)

type fakeRegistry struct {
	positions map[uint64]*types.Position
	err       error
}

func (f *fakeRegistry) GetPosition(_ context.Context, id uint64) (*types.Position, error) {
	if f.err != nil {
		return nil, f.err
	}
	pos, ok := f.positions[id]
	if !ok {
		return nil, errors.New("position not found")
	}
	return pos, nil
}

type fakePrices struct {
	prices map[string]float64
	err    error
}

func (f *fakePrices) GetPrice(_ context.Context, symbol string) (float64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.prices[symbol], nil
}

func (f *fakePrices) Symbols() []string {
	symbols := make([]string, 0, len(f.prices))
	for s := range f.prices {
		symbols = append(symbols, s)
	}
	return symbols
}

func testDB(t *testing.T) *Database {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&Alert{}, &Notification{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	// Isolate each test from the shared in-memory database
	db.Unscoped().Where("1 = 1").Delete(&Alert{})
	db.Unscoped().Where("1 = 1").Delete(&Notification{})
	return NewDatabase(db)
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func TestMonitor_PriceMove(t *testing.T) {
	db := testDB(t)
	registry := &fakeRegistry{positions: map[uint64]*types.Position{
		7: {ID: 7, UnderlyingAsset: "ETH", Status: types.PositionActive, Expiry: time.Now().Add(48 * time.Hour).Unix()},
	}}
	prices := &fakePrices{prices: map[string]float64{"ETH": 2000}}

	alert := &Alert{
		AlertID:    "a-1",
		UserID:     "user-1",
		PositionID: 7,
		Type:       TypePriceMove,
		Enabled:    true,
		Threshold:  floatPtr(5),
	}
	if err := db.CreateAlert(alert); err != nil {
		t.Fatalf("failed to seed alert: %v", err)
	}

	monitor := NewMonitor(db, registry, prices)

	// First pass: baseline stored, no notification
	result := monitor.Run(context.Background())
	if result.Triggered != 0 {
		t.Fatalf("first pass should only store baseline, triggered %d", result.Triggered)
	}
	stored, _ := db.GetAlert("a-1")
	if stored.LastPrice == nil || *stored.LastPrice != 2000 {
		t.Fatalf("expected baseline 2000, got %v", stored.LastPrice)
	}
	notifications, _ := db.GetUserNotifications("user-1")
	if len(notifications) != 0 {
		t.Fatalf("expected no notifications, got %d", len(notifications))
	}

	// +3%: below a 5% threshold, nothing fires, baseline stays
	prices.prices["ETH"] = 2060
	result = monitor.Run(context.Background())
	if result.Triggered != 0 {
		t.Fatalf("3%% move should not trigger a 5%% alert")
	}
	stored, _ = db.GetAlert("a-1")
	if *stored.LastPrice != 2000 {
		t.Errorf("baseline must not move on a sub-threshold change, got %.2f", *stored.LastPrice)
	}

	// +6% from baseline: exactly one notification, baseline resets
	prices.prices["ETH"] = 2120
	result = monitor.Run(context.Background())
	if result.Triggered != 1 {
		t.Fatalf("expected 1 trigger, got %d", result.Triggered)
	}
	notifications, _ = db.GetUserNotifications("user-1")
	if len(notifications) != 1 {
		t.Fatalf("expected exactly 1 notification, got %d", len(notifications))
	}
	stored, _ = db.GetAlert("a-1")
	if *stored.LastPrice != 2120 {
		t.Errorf("expected baseline reset to 2120, got %.2f", *stored.LastPrice)
	}

	// Same price again: a fresh move is required from the new baseline
	result = monitor.Run(context.Background())
	if result.Triggered != 0 {
		t.Error("unchanged price must not re-trigger")
	}
}

func TestMonitor_PriceMove_Downside(t *testing.T) {
	db := testDB(t)
	registry := &fakeRegistry{positions: map[uint64]*types.Position{
		1: {ID: 1, UnderlyingAsset: "BTC", Status: types.PositionActive},
	}}
	prices := &fakePrices{prices: map[string]float64{"BTC": 60000}}

	alert := &Alert{AlertID: "a-2", UserID: "u", PositionID: 1, Type: TypePriceMove, Enabled: true, Threshold: floatPtr(5)}
	if err := db.CreateAlert(alert); err != nil {
		t.Fatal(err)
	}

	monitor := NewMonitor(db, registry, prices)
	monitor.Run(context.Background()) // baseline

	prices.prices["BTC"] = 56000 // -6.67%
	result := monitor.Run(context.Background())
	if result.Triggered != 1 {
		t.Fatalf("downside move should trigger, got %d", result.Triggered)
	}
}

func TestMonitor_ExpiryReminder(t *testing.T) {
	db := testDB(t)
	registry := &fakeRegistry{positions: map[uint64]*types.Position{
		3: {ID: 3, UnderlyingAsset: "ETH", Status: types.PositionActive, Expiry: time.Now().Add(10 * time.Hour).Unix()},
	}}
	prices := &fakePrices{prices: map[string]float64{"ETH": 2000}}

	alert := &Alert{
		AlertID:           "a-3",
		UserID:            "user-1",
		PositionID:        3,
		Type:              TypeExpiryReminder,
		Enabled:           true,
		HoursBeforeExpiry: intPtr(24),
	}
	if err := db.CreateAlert(alert); err != nil {
		t.Fatal(err)
	}

	monitor := NewMonitor(db, registry, prices)

	result := monitor.Run(context.Background())
	if result.Triggered != 1 {
		t.Fatalf("10h left with 24h threshold should trigger, got %d", result.Triggered)
	}
	stored, _ := db.GetAlert("a-3")
	if stored.LastTriggered == nil {
		t.Fatal("expected last_triggered stamped")
	}

	// One-shot latch: a second pass never re-fires
	result = monitor.Run(context.Background())
	if result.Triggered != 0 {
		t.Error("expiry reminder must fire at most once")
	}
	notifications, _ := db.GetUserNotifications("user-1")
	if len(notifications) != 1 {
		t.Errorf("expected exactly 1 notification, got %d", len(notifications))
	}
}

func TestMonitor_ExpiryReminder_NotYet(t *testing.T) {
	db := testDB(t)
	registry := &fakeRegistry{positions: map[uint64]*types.Position{
		4: {ID: 4, UnderlyingAsset: "ETH", Expiry: time.Now().Add(72 * time.Hour).Unix()},
	}}

	alert := &Alert{AlertID: "a-4", UserID: "u", PositionID: 4, Type: TypeExpiryReminder, Enabled: true, HoursBeforeExpiry: intPtr(24)}
	if err := db.CreateAlert(alert); err != nil {
		t.Fatal(err)
	}

	monitor := NewMonitor(db, registry, &fakePrices{})
	result := monitor.Run(context.Background())
	if result.Triggered != 0 {
		t.Errorf("72h left with 24h threshold must not trigger")
	}
}

func TestMonitor_FailureIsolation(t *testing.T) {
	db := testDB(t)
	registry := &fakeRegistry{positions: map[uint64]*types.Position{
		// position 9 is missing: that alert fails
		5: {ID: 5, UnderlyingAsset: "ETH", Expiry: time.Now().Add(1 * time.Hour).Unix()},
	}}
	prices := &fakePrices{prices: map[string]float64{"ETH": 2000}}

	broken := &Alert{AlertID: "a-broken", UserID: "u", PositionID: 9, Type: TypeExpiryReminder, Enabled: true, HoursBeforeExpiry: intPtr(24)}
	working := &Alert{AlertID: "a-working", UserID: "u", PositionID: 5, Type: TypeExpiryReminder, Enabled: true, HoursBeforeExpiry: intPtr(24)}
	if err := db.CreateAlert(broken); err != nil {
		t.Fatal(err)
	}
	if err := db.CreateAlert(working); err != nil {
		t.Fatal(err)
	}

	monitor := NewMonitor(db, registry, prices)
	result := monitor.Run(context.Background())

	if result.Failures != 1 {
		t.Errorf("expected 1 failure, got %d", result.Failures)
	}
	if result.Triggered != 1 {
		t.Errorf("working alert must still trigger, got %d", result.Triggered)
	}
}

func TestService_CreateAlertValidation(t *testing.T) {
	db := testDB(t)
	svc := &Service{db: db}

	if _, err := svc.CreateAlert("u", &CreateAlertRequest{PositionID: 1, Type: "BOGUS"}); err == nil {
		t.Error("expected error for unknown type")
	}
	if _, err := svc.CreateAlert("u", &CreateAlertRequest{PositionID: 1, Type: TypePriceMove}); err == nil {
		t.Error("expected error for PRICE_MOVE without threshold")
	}
	if _, err := svc.CreateAlert("u", &CreateAlertRequest{PositionID: 1, Type: TypeExpiryReminder}); err == nil {
		t.Error("expected error for EXPIRY_REMINDER without hours")
	}

	alert, err := svc.CreateAlert("u", &CreateAlertRequest{PositionID: 1, Type: TypePriceMove, Threshold: floatPtr(5)})
	if err != nil {
		t.Fatalf("valid request failed: %v", err)
	}
	if !alert.Enabled {
		t.Error("new alerts start enabled")
	}

	// Ownership: another user cannot read it
	if _, err := svc.GetAlert(alert.AlertID, "someone-else"); err == nil {
		t.Error("expected ownership check to hide the alert")
	}
}
