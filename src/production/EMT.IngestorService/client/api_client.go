package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	emtmodels "gitlab.com/gridsense1/emt.telemetry_server/src/production/EMT.Models"
)

// CircuitBreakerState represents the state of the circuit breaker
type CircuitBreakerState int

const (
	StateClosed CircuitBreakerState = iota
	StateOpen
	StateHalfOpen
)

// CircuitBreaker implements circuit breaker pattern for resilience
type CircuitBreaker struct {
	maxFailures  int
	resetTimeout time.Duration
	state        CircuitBreakerState
	failureCount int
	lastFailTime time.Time
	mutex        sync.RWMutex
}

// APIClient pushes measurement batches to the API service. The electric
// write endpoint is public; temperature writes need a bearer token, which
// the client obtains by verifying its configured credentials and refreshes
// when the service answers 401.
type APIClient struct {
	baseURL        string
	httpClient     *http.Client
	username       string
	password       string
	circuitBreaker *CircuitBreaker
	maxRetries     int
	retryDelay     time.Duration

	tokenMu sync.RWMutex
	token   string
}

// NewAPIClient creates a new API client
func NewAPIClient(baseURL, username, password string) *APIClient {
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		username: username,
		password: password,
		circuitBreaker: &CircuitBreaker{
			maxFailures:  5,
			resetTimeout: 30 * time.Second,
			state:        StateClosed,
		},
		maxRetries: 3,
		retryDelay: 1 * time.Second,
	}
}

// ElectricBatch is the payload for the electric write endpoint
type ElectricBatch struct {
	Currents        []emtmodels.Measurement `json:"currents"`
	GridFrequencies []emtmodels.Measurement `json:"gridFrequencies"`
	Voltages        []emtmodels.Measurement `json:"voltages"`
}

// IsEmpty reports whether the batch carries no measurements at all
func (b ElectricBatch) IsEmpty() bool {
	return len(b.Currents) == 0 && len(b.GridFrequencies) == 0 && len(b.Voltages) == 0
}

type verifyRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Circuit breaker methods
func (cb *CircuitBreaker) canExecute() bool {
	cb.mutex.RLock()
	defer cb.mutex.RUnlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		return time.Since(cb.lastFailTime) > cb.resetTimeout
	case StateHalfOpen:
		return true
	default:
		return false
	}
}

func (cb *CircuitBreaker) onSuccess() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.failureCount = 0
	cb.state = StateClosed
}

func (cb *CircuitBreaker) onFailure() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.failureCount++
	cb.lastFailTime = time.Now()

	if cb.failureCount >= cb.maxFailures {
		cb.state = StateOpen
	}
}

// GetCircuitBreakerStatus returns the current breaker state for diagnostics
func (c *APIClient) GetCircuitBreakerStatus() map[string]interface{} {
	c.circuitBreaker.mutex.RLock()
	defer c.circuitBreaker.mutex.RUnlock()

	state := "closed"
	switch c.circuitBreaker.state {
	case StateOpen:
		state = "open"
	case StateHalfOpen:
		state = "half-open"
	}

	return map[string]interface{}{
		"state":         state,
		"failure_count": c.circuitBreaker.failureCount,
	}
}

// retryWithBackoff executes a function with exponential backoff retry logic
func (c *APIClient) retryWithBackoff(ctx context.Context, operation func() error) error {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if !c.circuitBreaker.canExecute() {
			return fmt.Errorf("circuit breaker is open")
		}

		err := operation()
		if err == nil {
			c.circuitBreaker.onSuccess()
			return nil
		}

		lastErr = err
		c.circuitBreaker.onFailure()

		if attempt == c.maxRetries {
			break
		}

		delay := time.Duration(float64(c.retryDelay) * math.Pow(2, float64(attempt)))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("operation failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

// PushElectric sends an electric quantities batch to the public write endpoint
func (c *APIClient) PushElectric(ctx context.Context, batch ElectricBatch) error {
	if batch.IsEmpty() {
		return nil
	}

	return c.retryWithBackoff(ctx, func() error {
		resp, err := c.makeRequest(ctx, http.MethodPost, "/api/electric-quantities", batch, false)
		if err != nil {
			return fmt.Errorf("failed to push electric batch: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
		}
		return nil
	})
}

// PushTemperatures sends a temperature batch to the authenticated write endpoint
func (c *APIClient) PushTemperatures(ctx context.Context, measurements []emtmodels.Measurement) error {
	if len(measurements) == 0 {
		return nil
	}

	return c.retryWithBackoff(ctx, func() error {
		resp, err := c.makeRequest(ctx, http.MethodPost, "/api/temperature", measurements, true)
		if err != nil {
			return fmt.Errorf("failed to push temperature batch: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusUnauthorized {
			// Stale token; drop it so the next attempt re-verifies.
			c.setToken("")
			return fmt.Errorf("API rejected token")
		}
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
		}
		return nil
	})
}

// Health checks whether the API service is reachable
func (c *APIClient) Health(ctx context.Context) error {
	resp, err := c.makeRequest(ctx, http.MethodGet, "/health", nil, false)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API returned status %d", resp.StatusCode)
	}
	return nil
}

func (c *APIClient) getToken() string {
	c.tokenMu.RLock()
	defer c.tokenMu.RUnlock()
	return c.token
}

func (c *APIClient) setToken(token string) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()
	c.token = token
}

// authenticate verifies the configured credentials and captures the bearer
// token from the Authorization response header.
func (c *APIClient) authenticate(ctx context.Context) error {
	if c.username == "" {
		return fmt.Errorf("no API credentials configured")
	}

	resp, err := c.makeRequest(ctx, http.MethodPost, "/api/user/verify", verifyRequest{
		Username: c.username,
		Password: c.password,
	}, false)
	if err != nil {
		return fmt.Errorf("failed to verify credentials: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("credential verification returned status %d", resp.StatusCode)
	}

	header := resp.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return fmt.Errorf("credentials rejected")
	}

	c.setToken(header[len("Bearer "):])
	return nil
}

// makeRequest makes an HTTP request to the API service
func (c *APIClient) makeRequest(ctx context.Context, method, path string, body interface{}, authenticated bool) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if authenticated {
		if c.getToken() == "" {
			if err := c.authenticate(ctx); err != nil {
				return nil, err
			}
		}
		req.Header.Set("Authorization", "Bearer "+c.getToken())
	}

	return c.httpClient.Do(req)
}
