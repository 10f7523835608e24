// Package telegram is a minimal Telegram Bot API client for posting
// notifications to a chat.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/espasatel/espasatel/internal/resilience"
)

// DefaultBaseURL is the public Bot API endpoint.
const DefaultBaseURL = "https://api.telegram.org"

// ParseMode selects how Telegram renders message text.
type ParseMode string

const (
	Markdown ParseMode = "Markdown"
	HTML     ParseMode = "HTML"
)

// Client sends messages through a bot.
type Client interface {
	// SendMessage posts text to chatID. Throttling and 5xx answers come back
	// as *resilience.TransientError so callers can retry them.
	SendMessage(ctx context.Context, chatID, text string) (*Message, error)
}

// Message is the part of the sent message the caller cares about.
type Message struct {
	MessageID int64 `json:"message_id"`
	Date      int64 `json:"date"`
}

// APIError is a non-ok answer from the Bot API.
type APIError struct {
	StatusCode  int
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram: api error %d: %s", e.Code, e.Description)
}

type sendMessageRequest struct {
	ChatID    string    `json:"chat_id"`
	Text      string    `json:"text"`
	ParseMode ParseMode `json:"parse_mode,omitempty"`
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL points the client at another API host (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithParseMode overrides the Markdown default.
func WithParseMode(m ParseMode) Option {
	return func(c *httpClient) {
		c.parseMode = m
	}
}

type httpClient struct {
	token     string
	baseURL   string
	parseMode ParseMode
	http      *http.Client
}

// NewClient creates a client for the bot identified by token.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		token:     token,
		baseURL:   DefaultBaseURL,
		parseMode: Markdown,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) SendMessage(ctx context.Context, chatID, text string) (*Message, error) {
	body, err := json.Marshal(sendMessageRequest{ChatID: chatID, Text: text, ParseMode: c.parseMode})
	if err != nil {
		return nil, eris.Wrap(err, "telegram: marshal request")
	}

	url := c.baseURL + "/bot" + c.token + "/sendMessage"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "telegram: create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "telegram: send message")
		}
		// Never wrap the raw error text: it contains the URL and so the token.
		return nil, resilience.Transient(eris.New("telegram: request failed"), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, resilience.Transient(eris.Wrap(err, "telegram: read response"), resp.StatusCode)
	}

	var ar apiResponse
	if err := json.Unmarshal(raw, &ar); err != nil {
		if resilience.IsTransientStatus(resp.StatusCode) {
			return nil, resilience.Transient(eris.Errorf("telegram: status %d", resp.StatusCode), resp.StatusCode)
		}
		return nil, eris.Wrapf(err, "telegram: decode response (status %d)", resp.StatusCode)
	}

	if !ar.OK || resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode, Code: ar.ErrorCode, Description: ar.Description}
		if resilience.IsTransientStatus(resp.StatusCode) {
			te := resilience.Transient(apiErr, resp.StatusCode)
			if ar.Parameters != nil && ar.Parameters.RetryAfter > 0 {
				te.RetryAfter = time.Duration(ar.Parameters.RetryAfter) * time.Second
			}
			return nil, te
		}
		return nil, apiErr
	}

	var msg Message
	if err := json.Unmarshal(ar.Result, &msg); err != nil {
		return nil, eris.Wrap(err, "telegram: decode message")
	}
	return &msg, nil
}
