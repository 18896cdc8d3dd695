package cloudflare

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"cfguard/internal/metrics"
	"cfguard/internal/models"
)

const userAgent = "cf-guard/1.0"

// Client reads and changes a zone's security_level setting. It keeps no
// state; the API is the source of truth for the active mode.
type Client struct {
	BaseURL string
	ZoneID  string
	Token   string
	HTTP    *http.Client
}

// APIError is a failed API call: transport error, timeout, non-2xx status
// or an envelope with success=false. Status is 0 when no response arrived.
type APIError struct {
	Op     string
	Status int
	Body   string
	Err    error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cloudflare %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("cloudflare %s failed with status %d: %s", e.Op, e.Status, e.Body)
}

func (e *APIError) Unwrap() error { return e.Err }

type envelope struct {
	Success bool `json:"success"`
	Errors  []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
	Result struct {
		ID    string `json:"id"`
		Value string `json:"value"`
	} `json:"result"`
}

func NewClient(baseURL, zoneID, token string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		ZoneID:  zoneID,
		Token:   token,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) CurrentMode(ctx context.Context) (models.SecurityMode, error) {
	env, err := c.do(ctx, "get_mode", http.MethodGet, nil)
	if err != nil {
		return "", err
	}
	if env.Result.Value == "" {
		return "", &APIError{Op: "get_mode", Status: http.StatusOK, Body: "empty security_level value"}
	}
	return models.SecurityMode(env.Result.Value), nil
}

func (c *Client) SetMode(ctx context.Context, mode models.SecurityMode) error {
	body, _ := json.Marshal(map[string]string{"value": string(mode)})
	_, err := c.do(ctx, "set_mode", http.MethodPatch, body)
	return err
}

// Ping checks that the zone setting is reachable with the configured token.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.CurrentMode(ctx)
	return err
}

func (c *Client) do(ctx context.Context, op, method string, body []byte) (envelope, error) {
	start := time.Now()
	env, err := c.roundTrip(ctx, op, method, body)
	metrics.APIRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	status := "success"
	if err != nil {
		status = "failed"
	}
	metrics.APIRequestsTotal.WithLabelValues(op, status).Inc()
	return env, err
}

func (c *Client) roundTrip(ctx context.Context, op, method string, body []byte) (envelope, error) {
	var env envelope
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	u := fmt.Sprintf("%s/zones/%s/settings/security_level", c.BaseURL, c.ZoneID)
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return env, &APIError{Op: op, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	res, err := c.HTTP.Do(req)
	if err != nil {
		return env, &APIError{Op: op, Err: err}
	}
	defer res.Body.Close()
	b, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return env, &APIError{Op: op, Status: res.StatusCode, Err: err}
	}
	if res.StatusCode >= 300 {
		return env, &APIError{Op: op, Status: res.StatusCode, Body: trimBody(b, res.Status)}
	}
	if err := json.Unmarshal(b, &env); err != nil {
		return env, &APIError{Op: op, Status: res.StatusCode, Body: trimBody(b, res.Status), Err: fmt.Errorf("decode response: %w", err)}
	}
	if !env.Success {
		msg := trimBody(b, res.Status)
		if len(env.Errors) > 0 {
			msg = env.Errors[0].Message
		}
		return env, &APIError{Op: op, Status: res.StatusCode, Body: msg}
	}
	return env, nil
}

func trimBody(b []byte, fallback string) string {
	msg := strings.TrimSpace(string(b))
	if msg == "" {
		return fallback
	}
	if len(msg) > 512 {
		msg = msg[:512]
	}
	return msg
}

// IsTimeout reports whether err is an API call that ran out of time.
func IsTimeout(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Err == nil {
		return false
	}
	if errors.Is(apiErr.Err, context.DeadlineExceeded) {
		return true
	}
	var t interface{ Timeout() bool }
	return errors.As(apiErr.Err, &t) && t.Timeout()
}
