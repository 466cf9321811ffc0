package alerts

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func testRouter(t *testing.T) (*gin.Engine, *Database) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testDB(t)
	handlers := NewGinHandlers(&Service{db: db})

	router := gin.New()
	asUser := func(c *gin.Context) { c.Set("userID", "user-1") }
	router.POST("/alerts", asUser, handlers.CreateAlertHandler())
	router.PATCH("/alerts/:alert_id", asUser, handlers.UpdateAlertHandler())
	return router, db
}

func doJSON(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateAlertHandler_FirstPosition(t *testing.T) {
	router, db := testRouter(t)

	// The registry numbers positions from 0; an alert on the first one must
	// be accepted
	w := doJSON(router, http.MethodPost, "/alerts", `{"position_id":0,"type":"PRICE_MOVE","threshold":5}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Success bool  `json:"success"`
		Data    Alert `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Success {
		t.Error("expected success envelope")
	}
	if resp.Data.PositionID != 0 {
		t.Errorf("expected position 0, got %d", resp.Data.PositionID)
	}

	stored, err := db.GetUserAlerts("user-1")
	if err != nil || len(stored) != 1 {
		t.Fatalf("expected 1 persisted alert, got %d (%v)", len(stored), err)
	}
}

func TestUpdateAlertHandler_RejectsBadThreshold(t *testing.T) {
	router, db := testRouter(t)

	threshold := 5.0
	alert := &Alert{AlertID: "a-1", UserID: "user-1", PositionID: 1, Type: TypePriceMove, Enabled: true, Threshold: &threshold}
	if err := db.CreateAlert(alert); err != nil {
		t.Fatal(err)
	}

	w := doJSON(router, http.MethodPatch, "/alerts/a-1", `{"threshold":-1}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative threshold, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Success {
		t.Error("expected failure envelope")
	}
	if !strings.Contains(resp.Error, "threshold") {
		t.Errorf("expected a threshold message the client can act on, got %q", resp.Error)
	}

	// The stored alert keeps its original threshold
	stored, _ := db.GetAlert("a-1")
	if stored.Threshold == nil || *stored.Threshold != 5 {
		t.Errorf("rejected update must not change the alert, got %v", stored.Threshold)
	}
}

func TestUpdateAlert_ValidationSentinel(t *testing.T) {
	db := testDB(t)
	svc := &Service{db: db}

	hours := 24
	alert := &Alert{AlertID: "a-2", UserID: "u", PositionID: 0, Type: TypeExpiryReminder, Enabled: true, HoursBeforeExpiry: &hours}
	if err := db.CreateAlert(alert); err != nil {
		t.Fatal(err)
	}

	bad := -3
	_, err := svc.UpdateAlert("a-2", "u", &UpdateAlertRequest{HoursBeforeExpiry: &bad})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}
