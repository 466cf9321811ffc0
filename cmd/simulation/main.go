package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nawasena/options-api/internal/alerts"
	"github.com/nawasena/options-api/internal/types"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	minRequests   = 10
	maxRequests   = 60
	numWorkers    = 5
	serverAddress = "http://localhost:8080"

	apiKey    = "nawasena-api-key"
	apiSecret = "nawasena-api-secret"
)

var (
	goals       = []types.Goal{types.GoalProtectAsset, types.GoalCaptureUpside, types.GoalEarnSafely}
	risks       = []types.RiskComfort{types.RiskConservative, types.RiskModerate, types.RiskAggressive}
	confidences = []types.Confidence{types.ConfidenceLow, types.ConfidenceMid, types.ConfidenceHigh}
)

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	// Configure pretty logging
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// routeStats tracks performance statistics for an API endpoint
type routeStats struct {
	name       string
	durations  []time.Duration
	totalCalls int
	failures   int
}

// addDuration records a new duration measurement for the route
func (rs *routeStats) addDuration(d time.Duration) {
	rs.durations = append(rs.durations, d)
	rs.totalCalls++
}

// calculate computes performance statistics from recorded durations
// Returns min, max, mean, median, 95th percentile, and 99th percentile durations
func (rs *routeStats) calculate() (min, max, mean, median, p95, p99 time.Duration) {
	if len(rs.durations) == 0 {
		return 0, 0, 0, 0, 0, 0
	}

	// Sort durations for percentile calculations
	sort.Slice(rs.durations, func(i, j int) bool {
		return rs.durations[i] < rs.durations[j]
	})

	min = rs.durations[0]
	max = rs.durations[len(rs.durations)-1]

	// Calculate mean
	var sum time.Duration
	for _, d := range rs.durations {
		sum += d
	}
	mean = sum / time.Duration(len(rs.durations))

	// Calculate median
	median = rs.durations[len(rs.durations)/2]

	// Calculate percentiles
	p95idx := int(math.Ceil(float64(len(rs.durations))*0.95)) - 1
	p99idx := int(math.Ceil(float64(len(rs.durations))*0.99)) - 1
	p95 = rs.durations[p95idx]
	p99 = rs.durations[p99idx]

	return
}

// simulationClient handles HTTP communication with the options API
type simulationClient struct {
	baseURL   string
	authToken string
	client    *http.Client
	stats     map[string]*routeStats
	mu        sync.Mutex
}

// newSimulationClient creates and initializes a new simulation client
// It authenticates with the API and prepares performance tracking
func newSimulationClient() (*simulationClient, error) {
	// Create HTTP client with timeout
	client := &http.Client{
		Timeout: 30 * time.Second,
	}

	sc := &simulationClient{
		baseURL: serverAddress,
		client:  client,
		stats: map[string]*routeStats{
			"auth":          {name: "Authentication"},
			"recommend":     {name: "Recommendations"},
			"create_alert":  {name: "Create Alert"},
			"list_alerts":   {name: "List Alerts"},
			"delete_alert":  {name: "Delete Alert"},
			"notifications": {name: "Notifications"},
		},
	}

	// Get auth token
	token, err := sc.authenticate()
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}
	sc.authToken = token

	return sc, nil
}

// record stores a duration measurement for the named route
func (sc *simulationClient) record(route string, start time.Time, failed bool) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.stats[route].addDuration(time.Since(start))
	if failed {
		sc.stats[route].failures++
	}
}

// authenticate performs API authentication and returns a JWT token
func (sc *simulationClient) authenticate() (string, error) {
	start := time.Now()
	var failed bool
	defer func() {
		sc.record("auth", start, failed)
	}()

	credentials := map[string]string{
		"api_key":    apiKey,
		"api_secret": apiSecret,
	}

	body, err := json.Marshal(credentials)
	if err != nil {
		failed = true
		return "", err
	}

	resp, err := sc.client.Post(
		fmt.Sprintf("%s/api/v1/auth/token", sc.baseURL),
		"application/json",
		bytes.NewBuffer(body),
	)
	if err != nil {
		failed = true
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		failed = true
		return "", fmt.Errorf("authentication failed with status: %d", resp.StatusCode)
	}

	var result struct {
		Success bool `json:"success"`
		Data    struct {
			Token string `json:"jwt_token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		failed = true
		return "", err
	}
	if result.Data.Token == "" {
		failed = true
		return "", fmt.Errorf("no token in response")
	}

	return result.Data.Token, nil
}

// do sends an authenticated request and returns the raw response body
func (sc *simulationClient) do(method, path string, payload interface{}) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		body = bytes.NewBuffer(raw)
	}

	req, err := http.NewRequest(method, sc.baseURL+path, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", sc.authToken))
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := sc.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

// getRecommendations requests option recommendations for a user profile
func (sc *simulationClient) getRecommendations(profile types.UserProfile) ([]types.Recommendation, error) {
	start := time.Now()
	var failed bool
	defer func() {
		sc.record("recommend", start, failed)
	}()

	status, respBody, err := sc.do("POST", "/api/v1/recommendations", profile)
	if err != nil {
		failed = true
		return nil, err
	}
	log.Debug().Str("response", string(respBody)).Msg("Recommendations response")

	if status != http.StatusOK && status != http.StatusCreated {
		failed = true
		return nil, fmt.Errorf("recommendations failed with status %d: %s", status, string(respBody))
	}

	var result struct {
		Success bool                   `json:"success"`
		Data    []types.Recommendation `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		failed = true
		return nil, fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}

	return result.Data, nil
}

// createAlert registers a new alert for a position
// Returns the alert ID on success
func (sc *simulationClient) createAlert(req alerts.CreateAlertRequest) (string, error) {
	start := time.Now()
	var failed bool
	defer func() {
		sc.record("create_alert", start, failed)
	}()

	status, respBody, err := sc.do("POST", "/api/v1/alerts", req)
	if err != nil {
		failed = true
		return "", err
	}
	log.Debug().Str("response", string(respBody)).Msg("Create alert response")

	if status != http.StatusOK && status != http.StatusCreated {
		failed = true
		return "", fmt.Errorf("create alert failed with status %d: %s", status, string(respBody))
	}

	var result struct {
		Success bool         `json:"success"`
		Data    alerts.Alert `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		failed = true
		return "", fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}
	if result.Data.AlertID == "" {
		failed = true
		return "", fmt.Errorf("no alert ID in response: %s", string(respBody))
	}

	return result.Data.AlertID, nil
}

// listAlerts fetches all alerts for the authenticated user
func (sc *simulationClient) listAlerts() ([]alerts.Alert, error) {
	start := time.Now()
	var failed bool
	defer func() {
		sc.record("list_alerts", start, failed)
	}()

	status, respBody, err := sc.do("GET", "/api/v1/alerts", nil)
	if err != nil {
		failed = true
		return nil, err
	}
	if status != http.StatusOK {
		failed = true
		return nil, fmt.Errorf("list alerts failed with status %d: %s", status, string(respBody))
	}

	var result struct {
		Success bool           `json:"success"`
		Data    []alerts.Alert `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		failed = true
		return nil, fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}
	return result.Data, nil
}

// deleteAlert removes an alert by ID
func (sc *simulationClient) deleteAlert(alertID string) error {
	start := time.Now()
	var failed bool
	defer func() {
		sc.record("delete_alert", start, failed)
	}()

	status, respBody, err := sc.do("DELETE", "/api/v1/alerts/"+alertID, nil)
	if err != nil {
		failed = true
		return err
	}
	if status != http.StatusOK {
		failed = true
		return fmt.Errorf("delete alert failed with status %d: %s", status, string(respBody))
	}
	return nil
}

// listNotifications fetches notifications for the authenticated user
func (sc *simulationClient) listNotifications() ([]alerts.Notification, error) {
	start := time.Now()
	var failed bool
	defer func() {
		sc.record("notifications", start, failed)
	}()

	status, respBody, err := sc.do("GET", "/api/v1/notifications", nil)
	if err != nil {
		failed = true
		return nil, err
	}
	if status != http.StatusOK {
		failed = true
		return nil, fmt.Errorf("list notifications failed with status %d: %s", status, string(respBody))
	}

	var result struct {
		Success bool                  `json:"success"`
		Data    []alerts.Notification `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		failed = true
		return nil, fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}
	return result.Data, nil
}

// printPerformanceStats outputs formatted performance statistics for all API endpoints
func (sc *simulationClient) printPerformanceStats() {
	fmt.Println("\n📊 API Performance Statistics")
	fmt.Println(strings.Repeat("-", 100))
	fmt.Printf("%-20s %10s %10s %10s %10s %10s %10s %10s %10s\n",
		"Endpoint", "Calls", "Errors", "Min", "Max", "Mean", "Median", "P95", "P99")
	fmt.Println(strings.Repeat("-", 100))

	for _, stats := range sc.stats {
		min, max, mean, median, p95, p99 := stats.calculate()
		fmt.Printf("%-20s %10d %10d %10s %10s %10s %10s %10s %10s\n",
			stats.name,
			stats.totalCalls,
			stats.failures,
			min.Round(time.Millisecond),
			max.Round(time.Millisecond),
			mean.Round(time.Millisecond),
			median.Round(time.Millisecond),
			p95.Round(time.Millisecond),
			p99.Round(time.Millisecond))
	}
	fmt.Println(strings.Repeat("-", 100))
}

// main runs the options API simulation against a running server
// It fires concurrent recommendation requests, then exercises the alert
// and notification endpoints with the results
func main() {
	// Initialize simulation client against a server started separately
	simClient, err := newSimulationClient()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize simulation client")
	}

	// Generate random number of recommendation requests
	targetRequests := rand.Intn(maxRequests-minRequests) + minRequests
	log.Info().Int("target_requests", targetRequests).Msg("Starting simulation")

	// Channel to collect recommendations
	recsChan := make(chan types.Recommendation, targetRequests*8)
	var wg sync.WaitGroup

	// Start worker goroutines
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			requestRecommendations(workerID, targetRequests/numWorkers, simClient, recsChan)
		}(i)
	}

	// Wait for all requests to complete
	wg.Wait()
	close(recsChan)

	// Collect all recommendations
	var recommendations []types.Recommendation
	for rec := range recsChan {
		recommendations = append(recommendations, rec)
	}

	log.Info().Int("recommendations", len(recommendations)).Msg("All recommendation requests completed")

	// Collect statistics during processing
	stats := struct {
		TotalRecommendations int
		AlertsCreated        int
		AlertsDeleted        int
		FailedAlerts         int
		Notifications        int
		StartTime            time.Time
		Assets               map[string]int
		Types                map[string]int
	}{
		StartTime: time.Now(),
		Assets:    make(map[string]int),
		Types:     make(map[string]int),
	}
	stats.TotalRecommendations = len(recommendations)

	for _, rec := range recommendations {
		stats.Assets[rec.Asset]++
		stats.Types[string(rec.OptionType)]++
	}

	// Create alerts against synthetic position IDs
	var alertIDs []string
	for i, rec := range recommendations {
		if i >= 20 {
			break
		}

		positionID := uint64(rand.Intn(1000))
		var req alerts.CreateAlertRequest
		if i%2 == 0 {
			threshold := 5.0
			req = alerts.CreateAlertRequest{
				PositionID: positionID,
				Type:       alerts.TypePriceMove,
				Threshold:  &threshold,
			}
		} else {
			hours := 24
			req = alerts.CreateAlertRequest{
				PositionID:        positionID,
				Type:              alerts.TypeExpiryReminder,
				HoursBeforeExpiry: &hours,
			}
		}

		alertID, err := simClient.createAlert(req)
		if err != nil {
			log.Error().Err(err).
				Uint64("position_id", positionID).
				Msg("Failed to create alert")
			stats.FailedAlerts++
			continue
		}
		alertIDs = append(alertIDs, alertID)
		stats.AlertsCreated++
		log.Info().
			Str("alert_id", alertID).
			Str("type", req.Type).
			Str("asset", rec.Asset).
			Msg("Alert created")
	}

	// Verify listing returns everything we created
	listed, err := simClient.listAlerts()
	if err != nil {
		log.Error().Err(err).Msg("Failed to list alerts")
	} else {
		log.Info().Int("alerts", len(listed)).Msg("Alerts listed")
	}

	// Clean up half of the alerts
	for i, alertID := range alertIDs {
		if i%2 != 0 {
			continue
		}
		if err := simClient.deleteAlert(alertID); err != nil {
			log.Error().Err(err).Str("alert_id", alertID).Msg("Failed to delete alert")
			continue
		}
		stats.AlertsDeleted++
	}

	// Check for notifications produced by the monitor
	notifications, err := simClient.listNotifications()
	if err != nil {
		log.Error().Err(err).Msg("Failed to list notifications")
	} else {
		stats.Notifications = len(notifications)
	}

	// Print summary
	duration := time.Since(stats.StartTime)
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("🚀 OPTIONS API SIMULATION SUMMARY")
	fmt.Println(strings.Repeat("=", 80))

	fmt.Printf(`
📊 Request Statistics
--------------------
Recommendations:  %d
Alerts Created:   %d
Alerts Deleted:   %d
Failed Alerts:    %d
Notifications:    %d
Duration:         %v

📈 Asset Distribution
--------------------
`, stats.TotalRecommendations, stats.AlertsCreated, stats.AlertsDeleted,
		stats.FailedAlerts, stats.Notifications, duration.Round(time.Millisecond))

	// Print asset distribution with simple ASCII bar chart
	maxAssetCount := 0
	for _, count := range stats.Assets {
		if count > maxAssetCount {
			maxAssetCount = count
		}
	}

	for asset, count := range stats.Assets {
		barLength := int(float64(count) / float64(maxAssetCount) * 20)
		bar := strings.Repeat("█", barLength)
		fmt.Printf("%-6s: %s (%d)\n", asset, bar, count)
	}

	fmt.Println("\n📉 Option Type Distribution")
	fmt.Println("--------------------------")
	for optType, count := range stats.Types {
		barLength := int(float64(count) / float64(stats.TotalRecommendations) * 20)
		bar := strings.Repeat("█", barLength)
		fmt.Printf("%-4s: %s (%d)\n", optType, bar, count)
	}

	fmt.Println("\n" + strings.Repeat("=", 80))

	log.Info().
		Int("recommendations", stats.TotalRecommendations).
		Int("alerts_created", stats.AlertsCreated).
		Int("notifications", stats.Notifications).
		Dur("duration", duration).
		Msg("Simulation completed")

	simClient.printPerformanceStats()
}

// requestRecommendations fires recommendation requests with random user
// profiles, sending each returned recommendation to recsChan
func requestRecommendations(workerID, numRequests int, simClient *simulationClient, recsChan chan<- types.Recommendation) {
	for i := 0; i < numRequests; i++ {
		profile := types.UserProfile{
			Goal:        goals[rand.Intn(len(goals))],
			RiskComfort: risks[rand.Intn(len(risks))],
			Confidence:  confidences[rand.Intn(len(confidences))],
			Amount:      float64(rand.Intn(10000) + 100),
		}

		recs, err := simClient.getRecommendations(profile)
		if err != nil {
			log.Error().Err(err).
				Str("worker_id", fmt.Sprintf("%d", workerID)).
				Str("goal", string(profile.Goal)).
				Msg("Failed to get recommendations")
			continue
		}

		for _, rec := range recs {
			recsChan <- rec
		}
		log.Info().
			Str("worker_id", fmt.Sprintf("%d", workerID)).
			Str("goal", string(profile.Goal)).
			Str("risk", string(profile.RiskComfort)).
			Float64("amount", profile.Amount).
			Int("recommendations", len(recs)).
			Msg("Recommendations received")

		// Random sleep between requests
		time.Sleep(time.Duration(rand.Intn(500)) * time.Millisecond)
	}
}
