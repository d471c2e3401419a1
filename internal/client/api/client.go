package api

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
	"time"

	"github.com/kamikazebr/sentinel/pkg/models"
)

// ErrUnauthorized is returned when the server rejects the API key
var ErrUnauthorized = errors.New("unauthorized")

// APIError carries a non-2xx response from the server
type APIError struct {
	StatusCode int
	Body       models.ErrorResponse
}

func (e *APIError) Error() string {
	msg := e.Body.Message
	if msg == "" {
		msg = e.Body.Error
	}
	if e.Body.Details != "" {
		msg += " (" + e.Body.Details + ")"
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, msg)
}

func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return nil
}

// StatusCode extracts the HTTP status from an *APIError, or 0
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-Sentinel-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		bodyBytes, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(bodyBytes, &apiErr.Body) != nil {
			apiErr.Body.Message = string(bodyBytes)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if raw, ok := out.(*[]byte); ok {
		*raw, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// HealthCheck checks if the server is reachable
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

func (c *Client) Health(ctx context.Context) (*models.HealthSnapshot, error) {
	var result models.HealthSnapshot
	if err := c.do(ctx, http.MethodGet, "/api/health", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) State(ctx context.Context) (*models.StateSnapshot, error) {
	var result models.StateSnapshot
	if err := c.do(ctx, http.MethodGet, "/api/state", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) Logs(ctx context.Context, limit int) ([]models.LogEntry, error) {
	path := "/api/logs"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var result models.ListLogsResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return result.Logs, nil
}

// Devices

func (c *Client) ListDevices(ctx context.Context) ([]models.Device, error) {
	var result models.ListDevicesResponse
	if err := c.do(ctx, http.MethodGet, "/api/devices", nil, &result); err != nil {
		return nil, err
	}
	return result.Devices, nil
}

func (c *Client) SetStatus(ctx context.Context, deviceID string, status models.DeviceStatus) error {
	return c.do(ctx, http.MethodPost, "/api/devices/"+url.PathEscape(deviceID)+"/status",
		models.StatusUpdateRequest{Status: status}, nil)
}

func (c *Client) Revoke(ctx context.Context, deviceID string) error {
	return c.do(ctx, http.MethodPost, "/api/devices/"+url.PathEscape(deviceID)+"/revoke", nil, nil)
}

// Pairing

func (c *Client) StartPairing(ctx context.Context, req models.PairStartRequest) (*models.PairStartResponse, error) {
	var result models.PairStartResponse
	if err := c.do(ctx, http.MethodPost, "/api/pair/start", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) CompletePairing(ctx context.Context, deviceID, code, publicKey string) (*models.PairCompleteResponse, error) {
	var result models.PairCompleteResponse
	req := models.PairCompleteRequest{DeviceID: deviceID, PairingCode: code, PublicKey: publicKey}
	if err := c.do(ctx, http.MethodPost, "/api/pair/complete", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) ListPendingPairings(ctx context.Context) ([]models.PairingSession, error) {
	var result models.ListPairingsResponse
	if err := c.do(ctx, http.MethodGet, "/api/pair/pending", nil, &result); err != nil {
		return nil, err
	}
	return result.Pairings, nil
}

// PairingQR fetches the PNG enrollment QR for a pending pairing
func (c *Client) PairingQR(ctx context.Context, deviceID string, size int) ([]byte, error) {
	path := "/api/pair/" + url.PathEscape(deviceID) + "/qr"
	if size > 0 {
		path += "?size=" + strconv.Itoa(size)
	}
	var png []byte
	if err := c.do(ctx, http.MethodGet, path, nil, &png); err != nil {
		return nil, err
	}
	return png, nil
}

// Unlock

func (c *Client) RequestUnlock(ctx context.Context, deviceID, reason string) (*models.UnlockRequest, error) {
	var result models.UnlockRequestResponse
	req := models.UnlockRequestBody{DeviceID: deviceID, Reason: reason}
	if err := c.do(ctx, http.MethodPost, "/api/unlock/request", req, &result); err != nil {
		return nil, err
	}
	return &result.Request, nil
}

func (c *Client) ListPendingRequests(ctx context.Context) ([]models.UnlockRequest, error) {
	var result models.ListRequestsResponse
	if err := c.do(ctx, http.MethodGet, "/api/unlock/pending", nil, &result); err != nil {
		return nil, err
	}
	return result.Requests, nil
}

func (c *Client) Approve(ctx context.Context, requestID string, durationMinutes int) (*models.ApproveResponse, error) {
	var result models.ApproveResponse
	req := models.ApproveRequest{DurationMinutes: durationMinutes}
	if err := c.do(ctx, http.MethodPost, "/api/unlock/"+url.PathEscape(requestID)+"/approve", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) Deny(ctx context.Context, requestID string) error {
	return c.do(ctx, http.MethodPost, "/api/unlock/"+url.PathEscape(requestID)+"/deny", nil, nil)
}

func (c *Client) CreateToken(ctx context.Context, deviceID string, ttlSeconds int) (*models.TokenCreateResponse, error) {
	var result models.TokenCreateResponse
	req := models.TokenCreateRequest{DeviceID: deviceID, TTLSeconds: ttlSeconds}
	if err := c.do(ctx, http.MethodPost, "/api/unlock/token/create", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) RedeemToken(ctx context.Context, deviceID, token string, durationMinutes int) (*models.UnlockResponse, error) {
	var result models.UnlockResponse
	req := models.TokenRedeemRequest{DeviceID: deviceID, Token: token, DurationMinutes: durationMinutes}
	if err := c.do(ctx, http.MethodPost, "/api/unlock/token/redeem", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) UnlockTOTP(ctx context.Context, deviceID, code string, durationMinutes int) (*models.UnlockResponse, error) {
	var result models.UnlockResponse
	req := models.TOTPUnlockRequest{DeviceID: deviceID, Code: code, DurationMinutes: durationMinutes}
	if err := c.do(ctx, http.MethodPost, "/api/unlock/totp", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
