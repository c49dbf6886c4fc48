// Package client is the typed HTTP client used by the call console and the
// ticket issuer.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"hauntq/internal/mailto"
	"hauntq/internal/models"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const DefaultTimeout = 5 * time.Second

type Options struct {
	BaseURL string
	// Timeout bounds every request, including reading the response body.
	Timeout    time.Duration
	Token      string
	HTTPClient *http.Client
}

type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration

	mu    sync.RWMutex
	token string
}

// APIError is a non-2xx response decoded from the error envelope.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("api error %d", e.Status)
	}
	return fmt.Sprintf("api error %d %s: %s", e.Status, e.Code, e.Message)
}

// IsStatus reports whether err is an APIError with the given HTTP status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

type Status struct {
	CurrentNumber int       `json:"currentNumber"`
	SystemPaused  bool      `json:"systemPaused"`
	Timestamp     time.Time `json:"timestamp"`
	Version       int64     `json:"version"`
	LastResetDate string    `json:"lastResetDate"`
}

type Counter struct {
	Counter       int `json:"counter"`
	CurrentNumber int `json:"currentNumber"`
}

type Upcoming struct {
	CurrentNumber int                  `json:"currentNumber"`
	Reservations  []models.Reservation `json:"reservations"`
	Links         []mailto.Link        `json:"links"`
}

type CreateReservation struct {
	Email   string `json:"email"`
	Count   int    `json:"count"`
	Age     string `json:"age"`
	Channel string `json:"channel,omitempty"`
}

type CallStateUpdate struct {
	CurrentNumber *int   `json:"currentNumber,omitempty"`
	SystemPaused  *bool  `json:"systemPaused,omitempty"`
	Version       *int64 `json:"version,omitempty"`
}

type envelope struct {
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type loginResponse struct {
	Success   bool   `json:"success"`
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expiresIn"`
}

func New(options Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(options.BaseURL), "/")
	if base == "" {
		return nil, errors.New("base url is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient := options.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	return &Client{
		baseURL: base,
		http:    httpClient,
		timeout: timeout,
		token:   options.Token,
	}, nil
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Login exchanges the admin password for a token and keeps it for later
// admin calls.
func (c *Client) Login(ctx context.Context, password string) (time.Duration, error) {
	body, status, err := c.send(ctx, http.MethodPost, "/admin/login", map[string]string{"password": password})
	if err != nil {
		return 0, err
	}
	if status != http.StatusOK {
		return 0, decodeError(status, body)
	}
	var resp loginResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("decode login: %w", err)
	}
	if !resp.Success || resp.Token == "" {
		return 0, &APIError{Status: status, Code: "invalid_credentials", Message: "login rejected"}
	}
	c.SetToken(resp.Token)
	return time.Duration(resp.ExpiresIn) * time.Second, nil
}

func (c *Client) CreateReservation(ctx context.Context, req CreateReservation) (models.Reservation, error) {
	var reservation models.Reservation
	err := c.do(ctx, http.MethodPost, "/reservations", req, &reservation)
	return reservation, err
}

func (c *Client) ListReservations(ctx context.Context, filter url.Values) ([]models.Reservation, error) {
	path := "/reservations"
	if len(filter) > 0 {
		path += "?" + filter.Encode()
	}
	var reservations []models.Reservation
	err := c.do(ctx, http.MethodGet, path, nil, &reservations)
	return reservations, err
}

func (c *Client) UpdateReservationStatus(ctx context.Context, key int64, status string, byTicket bool) (models.Reservation, error) {
	var reservation models.Reservation
	err := c.do(ctx, http.MethodPut, targetPath(key, byTicket, "/status"), map[string]string{"status": status}, &reservation)
	return reservation, err
}

func (c *Client) DeleteReservation(ctx context.Context, key int64, byTicket bool) (models.Reservation, error) {
	var reservation models.Reservation
	err := c.do(ctx, http.MethodDelete, targetPath(key, byTicket, ""), nil, &reservation)
	return reservation, err
}

func (c *Client) Status(ctx context.Context) (Status, error) {
	var status Status
	err := c.do(ctx, http.MethodGet, "/reservations/status", nil, &status)
	return status, err
}

func (c *Client) Counter(ctx context.Context) (Counter, error) {
	var counter Counter
	err := c.do(ctx, http.MethodGet, "/reservations/counter", nil, &counter)
	return counter, err
}

func (c *Client) UpdateCallState(ctx context.Context, update CallStateUpdate) (Status, error) {
	var status Status
	err := c.do(ctx, http.MethodPut, "/reservations/current-number", update, &status)
	return status, err
}

func (c *Client) SetCurrentNumber(ctx context.Context, number int) (Status, error) {
	return c.UpdateCallState(ctx, CallStateUpdate{CurrentNumber: &number})
}

func (c *Client) SetPaused(ctx context.Context, paused bool) (Status, error) {
	return c.UpdateCallState(ctx, CallStateUpdate{SystemPaused: &paused})
}

func (c *Client) Step(ctx context.Context, delta int) (Status, error) {
	var status Status
	err := c.do(ctx, http.MethodPost, "/reservations/current-number/step", map[string]int{"delta": delta}, &status)
	return status, err
}

func (c *Client) ResetCounter(ctx context.Context) (Status, error) {
	var status Status
	err := c.do(ctx, http.MethodPost, "/reservations/reset-counter", nil, &status)
	return status, err
}

func (c *Client) ClearAll(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/reservations/clear-all", nil, nil)
}

func (c *Client) Upcoming(ctx context.Context, count int) (Upcoming, error) {
	var upcoming Upcoming
	err := c.do(ctx, http.MethodGet, "/reservations/upcoming?count="+strconv.Itoa(count), nil, &upcoming)
	return upcoming, err
}

func (c *Client) do(ctx context.Context, method, path string, payload, out interface{}) error {
	body, status, err := c.send(ctx, method, path, payload)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return decodeError(status, body)
	}
	if out == nil {
		return nil
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	if len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode %s %s data: %w", method, path, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, payload interface{}) ([]byte, int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

func decodeError(status int, body []byte) error {
	apiErr := &APIError{Status: status}
	var env envelope
	if err := json.Unmarshal(body, &env); err == nil && env.Error != nil {
		apiErr.Code = env.Error.Code
		apiErr.Message = env.Error.Message
	} else {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	return apiErr
}

func targetPath(key int64, byTicket bool, suffix string) string {
	path := "/reservations/" + strconv.FormatInt(key, 10) + suffix
	if byTicket {
		path += "?by=ticket"
	}
	return path
}
