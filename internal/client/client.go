// Package client provides an HTTP client for the mealchat server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/raphaelgruber/mealchat-go/internal/metrics"
	"github.com/raphaelgruber/mealchat-go/internal/server"
)

// Client talks to the mealchat server's REST and websocket endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new client.
// If baseURL is empty, uses MEALCHAT_SERVER_URL env var or defaults to localhost:8490.
// Timeout can be configured via MEALCHAT_CLIENT_TIMEOUT env var (default 30s).
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("MEALCHAT_SERVER_URL")
	}
	if baseURL == "" {
		baseURL = "http://localhost:8490"
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	timeout := 30 * time.Second
	if t := os.Getenv("MEALCHAT_CLIENT_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// errorResponse is the server's error payload.
type errorResponse struct {
	Error string `json:"error"`
}

// do sends one request and decodes the JSON response into result.
func (c *Client) do(ctx context.Context, method, path string, payload, result any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var errResp errorResponse
		if json.Unmarshal(raw, &errResp) == nil && errResp.Error != "" {
			return fmt.Errorf("server error: %s", errResp.Error)
		}
		return fmt.Errorf("server error: %s - %s", resp.Status, string(raw))
	}

	if result != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

type postMessagePayload struct {
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// SendText appends a text message to the user's conversation.
func (c *Client) SendText(ctx context.Context, userID, text string) (*server.MessageDTO, error) {
	var msg server.MessageDTO
	err := c.do(ctx, http.MethodPost,
		"/conversations/"+url.PathEscape(userID)+"/messages",
		postMessagePayload{Text: text}, &msg)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// SendImage appends an image message; the server fetches and analyzes the
// image asynchronously.
func (c *Client) SendImage(ctx context.Context, userID, imageURL string) (*server.MessageDTO, error) {
	var msg server.MessageDTO
	err := c.do(ctx, http.MethodPost,
		"/conversations/"+url.PathEscape(userID)+"/messages",
		postMessagePayload{ImageURL: imageURL}, &msg)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// History returns the conversation messages in chronological order.
func (c *Client) History(ctx context.Context, userID string, limit int) ([]server.MessageDTO, error) {
	path := "/conversations/" + url.PathEscape(userID) + "/messages"
	if limit > 0 {
		path += fmt.Sprintf("?limit=%d", limit)
	}
	var resp struct {
		Messages []server.MessageDTO `json:"messages"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// Clear deletes the conversation's messages and reports how many were removed.
func (c *Client) Clear(ctx context.Context, userID string) (int, error) {
	var resp struct {
		Deleted int `json:"deleted"`
	}
	err := c.do(ctx, http.MethodDelete,
		"/conversations/"+url.PathEscape(userID)+"/messages", nil, &resp)
	if err != nil {
		return 0, err
	}
	return resp.Deleted, nil
}

// Meals returns the user's logged meals, most recent first.
func (c *Client) Meals(ctx context.Context, userID string, limit int) ([]server.MealDTO, error) {
	path := "/conversations/" + url.PathEscape(userID) + "/meals"
	if limit > 0 {
		path += fmt.Sprintf("?limit=%d", limit)
	}
	var resp struct {
		Meals []server.MealDTO `json:"meals"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Meals, nil
}

// MealsToday returns today's meals with calorie and macro totals.
func (c *Client) MealsToday(ctx context.Context, userID string) (*server.DailyTotalsDTO, error) {
	var totals server.DailyTotalsDTO
	err := c.do(ctx, http.MethodGet,
		"/conversations/"+url.PathEscape(userID)+"/meals/today", nil, &totals)
	if err != nil {
		return nil, err
	}
	return &totals, nil
}

// GetMeal returns one meal record by id.
func (c *Client) GetMeal(ctx context.Context, mealID string) (*server.MealDTO, error) {
	var meal server.MealDTO
	if err := c.do(ctx, http.MethodGet, "/meals/"+url.PathEscape(mealID), nil, &meal); err != nil {
		return nil, err
	}
	return &meal, nil
}

// Stats returns the server's operation statistics.
func (c *Client) Stats(ctx context.Context) (*metrics.Snapshot, error) {
	var stats metrics.Snapshot
	if err := c.do(ctx, http.MethodGet, "/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Health checks server liveness.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

// Watch streams live conversation messages, invoking onMessage for each one
// until ctx is cancelled or the connection drops.
func (c *Client) Watch(ctx context.Context, userID string, onMessage func(server.MessageDTO)) error {
	wsURL, err := c.watchURL(userID)
	if err != nil {
		return err
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("websocket connect: %w", err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
	}()

	for {
		var msg server.MessageDTO
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read message: %w", err)
		}
		onMessage(msg)
	}
}

// watchURL converts the HTTP base URL to its websocket equivalent.
func (c *Client) watchURL(userID string) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/conversations/" + url.PathEscape(userID) + "/watch"
	return u.String(), nil
}
